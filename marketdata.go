package mt5

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/xKoRx/mt5/bridge"
	"github.com/xKoRx/mt5/domain"
	"github.com/xKoRx/mt5/telemetry"
	"github.com/xKoRx/mt5/telemetry/metricbundle"
	"github.com/xKoRx/mt5/telemetry/semconv"
	"github.com/xKoRx/mt5/utils"
)

// streamBufferSize tamaño del canal de entrega de streams.
const streamBufferSize = 256

// MarketDataService obtiene velas y ticks del terminal, mantiene
// streams de polling y ofrece post-procesamiento de series.
type MarketDataService struct {
	tx        bridge.Transport
	telemetry *telemetry.Client
	metrics   *metricbundle.Mt5Metrics
	ticks     *metricbundle.TickMetrics
	candles   *metricbundle.CandleMetrics

	// Cache de velas por (symbol, timeframe)
	cacheTTL time.Duration
	cacheMu  sync.RWMutex
	cache    map[string]*candleCacheEntry

	// Streams activos
	streamsMu sync.Mutex
	streams   map[string]*stream

	// Stats
	statsMu       sync.Mutex
	candlesServed int64
	ticksServed   int64
}

type candleCacheEntry struct {
	candles   []domain.Candle
	fetchedMs int64
}

type stream struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMarketDataService crea el servicio de datos de mercado.
func NewMarketDataService(tx bridge.Transport, tel *telemetry.Client, candleTTL time.Duration) *MarketDataService {
	if tel == nil {
		tel = telemetry.NewNop()
	}
	if candleTTL <= 0 {
		candleTTL = time.Minute
	}
	return &MarketDataService{
		tx:        tx,
		telemetry: tel,
		metrics:   metricbundle.GetGlobalMt5Metrics(),
		ticks:     metricbundle.GetGlobalTickMetrics(),
		candles:   metricbundle.GetGlobalCandleMetrics(),
		cacheTTL:  candleTTL,
		cache:     make(map[string]*candleCacheEntry),
		streams:   make(map[string]*stream),
	}
}

// ---------- Velas ----------

// CandlesFrom retorna count velas desde una fecha dada.
func (s *MarketDataService) CandlesFrom(ctx context.Context, symbol string, tf domain.Timeframe, from time.Time, count int) ([]domain.Candle, error) {
	return s.copyRates(ctx, symbol, tf, map[string]interface{}{
		"mode":    "from",
		"from_ms": from.UnixMilli(),
		"count":   count,
	})
}

// CandlesByPos retorna count velas desde una posición (0 = vela actual).
//
// Es la consulta más común (últimas N velas) y la única cacheada.
func (s *MarketDataService) CandlesByPos(ctx context.Context, symbol string, tf domain.Timeframe, start, count int) ([]domain.Candle, error) {
	if start == 0 {
		key := fmt.Sprintf("%s|%s|%d", symbol, tf, count)
		s.cacheMu.RLock()
		entry, ok := s.cache[key]
		s.cacheMu.RUnlock()
		if ok && utils.NowUnixMilli()-entry.fetchedMs < s.cacheTTL.Milliseconds() {
			s.metrics.RecordCacheHit(ctx, "candle")
			return cloneCandles(entry.candles), nil
		}
		s.metrics.RecordCacheMiss(ctx, "candle")

		candles, err := s.copyRates(ctx, symbol, tf, map[string]interface{}{
			"mode":  "pos",
			"start": start,
			"count": count,
		})
		if err != nil {
			return nil, err
		}
		// La entrada guarda su propia copia: mutar el resultado no la toca
		s.cacheMu.Lock()
		s.cache[key] = &candleCacheEntry{candles: cloneCandles(candles), fetchedMs: utils.NowUnixMilli()}
		s.cacheMu.Unlock()
		return candles, nil
	}

	return s.copyRates(ctx, symbol, tf, map[string]interface{}{
		"mode":  "pos",
		"start": start,
		"count": count,
	})
}

func cloneCandles(candles []domain.Candle) []domain.Candle {
	out := make([]domain.Candle, len(candles))
	copy(out, candles)
	return out
}

// CandlesRange retorna las velas entre dos fechas.
func (s *MarketDataService) CandlesRange(ctx context.Context, symbol string, tf domain.Timeframe, from, to time.Time) ([]domain.Candle, error) {
	if err := domain.ValidateDateRange(from, to); err != nil {
		return nil, err
	}
	return s.copyRates(ctx, symbol, tf, map[string]interface{}{
		"mode":    "range",
		"from_ms": from.UnixMilli(),
		"to_ms":   to.UnixMilli(),
	})
}

func (s *MarketDataService) copyRates(ctx context.Context, symbol string, tf domain.Timeframe, params map[string]interface{}) ([]domain.Candle, error) {
	if err := domain.ValidateSymbolFormat(symbol); err != nil {
		return nil, err
	}
	if !tf.IsValid() {
		return nil, domain.NewError(domain.ErrInvalidRequest,
			fmt.Sprintf("invalid timeframe %d", int(tf)))
	}

	params["symbol"] = symbol
	params["timeframe"] = int(tf)

	var out struct {
		Candles []domain.Candle `json:"candles"`
	}
	err := s.tx.Call(ctx, bridge.MethodCopyRates, params, &out)
	s.candles.RecordCandlesFetched(ctx, symbol, tf.String(), int64(len(out.Candles)), err == nil)
	if err != nil {
		return nil, err
	}

	for i := range out.Candles {
		if out.Candles[i].Symbol == "" {
			out.Candles[i].Symbol = symbol
		}
	}

	s.statsMu.Lock()
	s.candlesServed += int64(len(out.Candles))
	s.statsMu.Unlock()

	return out.Candles, nil
}

// ---------- Ticks ----------

// TicksFrom retorna count ticks desde una fecha dada.
func (s *MarketDataService) TicksFrom(ctx context.Context, symbol string, from time.Time, count int, flags domain.CopyTicksFlag) ([]domain.Tick, error) {
	return s.copyTicks(ctx, symbol, map[string]interface{}{
		"mode":    "from",
		"from_ms": from.UnixMilli(),
		"count":   count,
		"flags":   int(flags),
	})
}

// TicksRange retorna los ticks entre dos fechas.
func (s *MarketDataService) TicksRange(ctx context.Context, symbol string, from, to time.Time, flags domain.CopyTicksFlag) ([]domain.Tick, error) {
	if err := domain.ValidateDateRange(from, to); err != nil {
		return nil, err
	}
	return s.copyTicks(ctx, symbol, map[string]interface{}{
		"mode":    "range",
		"from_ms": from.UnixMilli(),
		"to_ms":   to.UnixMilli(),
		"flags":   int(flags),
	})
}

func (s *MarketDataService) copyTicks(ctx context.Context, symbol string, params map[string]interface{}) ([]domain.Tick, error) {
	if err := domain.ValidateSymbolFormat(symbol); err != nil {
		return nil, err
	}
	params["symbol"] = symbol

	var out struct {
		Ticks []domain.Tick `json:"ticks"`
	}
	err := s.tx.Call(ctx, bridge.MethodCopyTicks, params, &out)
	if err != nil {
		s.ticks.RecordTickProcessed(ctx, symbol, false)
		return nil, err
	}
	s.ticks.RecordTickVolume(ctx, symbol, int64(len(out.Ticks)))

	for i := range out.Ticks {
		if out.Ticks[i].Symbol == "" {
			out.Ticks[i].Symbol = symbol
		}
	}

	s.statsMu.Lock()
	s.ticksServed += int64(len(out.Ticks))
	s.statsMu.Unlock()

	return out.Ticks, nil
}

// ---------- Streams ----------

// StreamTicks abre un stream de ticks por polling.
//
// Entrega en un canal buffered; si el consumidor se atrasa se descarta
// la muestra más vieja (el polling nunca bloquea) y se registra la
// métrica de drop. Cancelar con StopStream o cerrando el contexto.
func (s *MarketDataService) StreamTicks(ctx context.Context, symbol string, interval time.Duration) (string, <-chan domain.Tick, error) {
	if err := domain.ValidateSymbolFormat(symbol); err != nil {
		return "", nil, err
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	id := "tick:" + symbol + ":" + utils.GenerateUUIDv7()

	streamCtx, cancel := context.WithCancel(ctx)
	out := make(chan domain.Tick, streamBufferSize)
	st := &stream{id: id, cancel: cancel, done: make(chan struct{})}

	s.streamsMu.Lock()
	s.streams[id] = st
	s.streamsMu.Unlock()

	go func() {
		defer close(st.done)
		defer close(out)
		defer s.removeStream(id)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var lastTimeMs int64
		for {
			select {
			case <-streamCtx.Done():
				return
			case <-ticker.C:
			}

			var tick domain.Tick
			params := map[string]interface{}{"symbol": symbol}
			if err := s.tx.Call(streamCtx, bridge.MethodSymbolTick, params, &tick); err != nil {
				if streamCtx.Err() != nil {
					return
				}
				continue
			}
			if tick.TimeMs == lastTimeMs {
				continue // sin tick nuevo
			}
			lastTimeMs = tick.TimeMs
			if tick.Symbol == "" {
				tick.Symbol = symbol
			}

			s.deliverTick(streamCtx, out, tick, id)
		}
	}()

	s.telemetry.Info(ctx, "Tick stream started",
		semconv.Mt5.StreamID.String(id),
		semconv.Mt5.Symbol.String(symbol),
	)
	return id, out, nil
}

// deliverTick envía al canal descartando la muestra más vieja si está lleno.
func (s *MarketDataService) deliverTick(ctx context.Context, out chan domain.Tick, tick domain.Tick, streamID string) {
	select {
	case out <- tick:
		return
	default:
	}

	// Canal lleno: tirar el más viejo y reintentar
	select {
	case <-out:
		s.metrics.RecordStreamDrop(ctx, streamID)
	default:
	}
	select {
	case out <- tick:
	default:
	}
}

// StreamCandles abre un stream de velas cerradas por polling.
//
// Emite cada vez que el terminal reporta una vela nueva del timeframe.
func (s *MarketDataService) StreamCandles(ctx context.Context, symbol string, tf domain.Timeframe, interval time.Duration) (string, <-chan domain.Candle, error) {
	if err := domain.ValidateSymbolFormat(symbol); err != nil {
		return "", nil, err
	}
	if !tf.IsValid() {
		return "", nil, domain.NewError(domain.ErrInvalidRequest,
			fmt.Sprintf("invalid timeframe %d", int(tf)))
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}

	id := "candle:" + symbol + ":" + tf.String() + ":" + utils.GenerateUUIDv7()

	streamCtx, cancel := context.WithCancel(ctx)
	out := make(chan domain.Candle, streamBufferSize)
	st := &stream{id: id, cancel: cancel, done: make(chan struct{})}

	s.streamsMu.Lock()
	s.streams[id] = st
	s.streamsMu.Unlock()

	go func() {
		defer close(st.done)
		defer close(out)
		defer s.removeStream(id)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var lastOpenMs int64
		for {
			select {
			case <-streamCtx.Done():
				return
			case <-ticker.C:
			}

			// Pedir la última vela cerrada (posición 1; la 0 sigue abierta)
			candles, err := s.copyRates(streamCtx, symbol, tf, map[string]interface{}{
				"mode":  "pos",
				"start": 1,
				"count": 1,
			})
			if err != nil || len(candles) == 0 {
				if streamCtx.Err() != nil {
					return
				}
				continue
			}
			candle := candles[0]
			if candle.TimeMs == lastOpenMs {
				continue
			}
			lastOpenMs = candle.TimeMs

			select {
			case out <- candle:
			default:
				select {
				case <-out:
					s.metrics.RecordStreamDrop(streamCtx, id)
				default:
				}
				select {
				case out <- candle:
				default:
				}
			}
		}
	}()

	s.telemetry.Info(ctx, "Candle stream started",
		semconv.Mt5.StreamID.String(id),
		semconv.Mt5.Symbol.String(symbol),
		semconv.Mt5.Timeframe.String(tf.String()),
	)
	return id, out, nil
}

// StopStream detiene un stream por ID y espera su cierre.
func (s *MarketDataService) StopStream(id string) bool {
	s.streamsMu.Lock()
	st, ok := s.streams[id]
	s.streamsMu.Unlock()
	if !ok {
		return false
	}
	st.cancel()
	<-st.done
	return true
}

// StopAllStreams detiene todos los streams activos.
func (s *MarketDataService) StopAllStreams() {
	s.streamsMu.Lock()
	active := make([]*stream, 0, len(s.streams))
	for _, st := range s.streams {
		active = append(active, st)
	}
	s.streamsMu.Unlock()

	for _, st := range active {
		st.cancel()
		<-st.done
	}
}

// ActiveStreams retorna los IDs de los streams activos.
func (s *MarketDataService) ActiveStreams() []string {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()
	ids := make([]string, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *MarketDataService) removeStream(id string) {
	s.streamsMu.Lock()
	delete(s.streams, id)
	s.streamsMu.Unlock()
}

// ---------- Procesamiento de series ----------

// CleanCandles ordena por tiempo y elimina duplicados (mismo open time).
func CleanCandles(candles []domain.Candle) []domain.Candle {
	if len(candles) == 0 {
		return candles
	}
	sorted := make([]domain.Candle, len(candles))
	copy(sorted, candles)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TimeMs < sorted[j].TimeMs })

	out := sorted[:1]
	for _, c := range sorted[1:] {
		if c.TimeMs == out[len(out)-1].TimeMs {
			out[len(out)-1] = c // la última versión gana
			continue
		}
		out = append(out, c)
	}
	return out
}

// DetectGaps retorna los índices donde falta al menos una vela del
// timeframe entre muestras consecutivas.
func DetectGaps(candles []domain.Candle, tf domain.Timeframe) []int {
	if len(candles) < 2 {
		return nil
	}
	step := tf.Duration().Milliseconds()
	if step <= 0 {
		return nil
	}
	var gaps []int
	for i := 1; i < len(candles); i++ {
		if candles[i].TimeMs-candles[i-1].TimeMs > step {
			gaps = append(gaps, i)
		}
	}
	return gaps
}

// FillGaps inserta velas sintéticas planas (OHLC = close previo) en los
// huecos de la serie. Volumen cero marca la vela como sintética.
func FillGaps(candles []domain.Candle, tf domain.Timeframe) []domain.Candle {
	if len(candles) < 2 {
		return candles
	}
	step := tf.Duration().Milliseconds()
	if step <= 0 {
		return candles
	}

	out := make([]domain.Candle, 0, len(candles))
	out = append(out, candles[0])
	for i := 1; i < len(candles); i++ {
		prev := out[len(out)-1]
		for t := prev.TimeMs + step; t < candles[i].TimeMs; t += step {
			out = append(out, domain.Candle{
				Symbol: prev.Symbol,
				TimeMs: t,
				Open:   prev.Close,
				High:   prev.Close,
				Low:    prev.Close,
				Close:  prev.Close,
			})
		}
		out = append(out, candles[i])
	}
	return out
}

// Resample agrega velas a un timeframe mayor.
//
// El destino debe ser múltiplo del origen (M1 -> M5, M5 -> H1...).
func Resample(candles []domain.Candle, from, to domain.Timeframe) ([]domain.Candle, error) {
	if from.Minutes() <= 0 || to.Minutes() <= 0 {
		return nil, domain.NewError(domain.ErrInvalidRequest, "invalid timeframe for resample")
	}
	if to.Minutes() <= from.Minutes() || to.Minutes()%from.Minutes() != 0 {
		return nil, domain.NewError(domain.ErrInvalidRequest,
			fmt.Sprintf("cannot resample %s to %s", from, to))
	}
	if len(candles) == 0 {
		return nil, nil
	}

	bucketMs := to.Duration().Milliseconds()
	var out []domain.Candle
	var current *domain.Candle

	for _, c := range CleanCandles(candles) {
		bucket := c.TimeMs - (c.TimeMs % bucketMs)
		if current == nil || current.TimeMs != bucket {
			if current != nil {
				out = append(out, *current)
			}
			cc := c
			cc.TimeMs = bucket
			current = &cc
			continue
		}
		if c.High > current.High {
			current.High = c.High
		}
		if c.Low < current.Low {
			current.Low = c.Low
		}
		current.Close = c.Close
		current.TickVolume += c.TickVolume
		current.RealVolume += c.RealVolume
	}
	if current != nil {
		out = append(out, *current)
	}
	return out, nil
}

// NormalizeCandles escala los cuatro precios al rango [0,1] (min-max
// sobre el low/high de toda la serie). Retorna copias; tiempos y
// volúmenes no se tocan.
//
// Con rango cero (serie plana) los precios quedan en cero.
func NormalizeCandles(candles []domain.Candle) []domain.Candle {
	if len(candles) == 0 {
		return nil
	}

	minPrice, maxPrice := candles[0].Low, candles[0].High
	for _, c := range candles {
		if c.Low < minPrice {
			minPrice = c.Low
		}
		if c.High > maxPrice {
			maxPrice = c.High
		}
	}

	priceRange := maxPrice - minPrice
	scale := func(v float64) float64 {
		if priceRange <= 0 {
			return 0
		}
		return (v - minPrice) / priceRange
	}

	out := make([]domain.Candle, len(candles))
	for i, c := range candles {
		nc := c
		nc.Open = scale(c.Open)
		nc.High = scale(c.High)
		nc.Low = scale(c.Low)
		nc.Close = scale(c.Close)
		out[i] = nc
	}
	return out
}

// ---------- Export ----------

// ExportCandlesCSV serializa velas a CSV.
func ExportCandlesCSV(candles []domain.Candle) ([]byte, error) {
	var buf bytes.Buffer
	if err := gocsv.Marshal(&candles, &buf); err != nil {
		return nil, fmt.Errorf("failed to serialize candles: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportTicksCSV serializa ticks a CSV.
func ExportTicksCSV(ticks []domain.Tick) ([]byte, error) {
	var buf bytes.Buffer
	if err := gocsv.Marshal(&ticks, &buf); err != nil {
		return nil, fmt.Errorf("failed to serialize ticks: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportCandlesJSON serializa velas a JSON indentado.
func ExportCandlesJSON(candles []domain.Candle) ([]byte, error) {
	data, err := utils.MarshalJSON(candles)
	if err != nil {
		return nil, err
	}
	return []byte(utils.PrettyPrint(data)), nil
}

// SummarizeCandles resume una serie de velas: rango temporal, extremos
// de precio y variación neta.
func SummarizeCandles(candles []domain.Candle) map[string]interface{} {
	if len(candles) == 0 {
		return map[string]interface{}{"count": 0}
	}

	clean := CleanCandles(candles)
	high, low := clean[0].High, clean[0].Low
	var tickVolume int64
	for _, c := range clean {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
		tickVolume += c.TickVolume
	}

	first, last := clean[0], clean[len(clean)-1]
	return map[string]interface{}{
		"symbol":      first.Symbol,
		"count":       len(clean),
		"start_ms":    first.TimeMs,
		"end_ms":      last.TimeMs,
		"high":        high,
		"low":         low,
		"open":        first.Open,
		"close":       last.Close,
		"net_change":  last.Close - first.Open,
		"tick_volume": tickVolume,
	}
}

// ---------- Stats ----------

// Stats contadores del servicio de datos.
func (s *MarketDataService) Stats() map[string]interface{} {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return map[string]interface{}{
		"candles_served": s.candlesServed,
		"ticks_served":   s.ticksServed,
		"active_streams": len(s.ActiveStreams()),
	}
}
