package mt5

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xKoRx/mt5/bridge"
	"github.com/xKoRx/mt5/domain"
	"github.com/xKoRx/mt5/telemetry"
	"github.com/xKoRx/mt5/telemetry/metricbundle"
	"github.com/xKoRx/mt5/telemetry/semconv"
	"github.com/xKoRx/mt5/utils"
)

// SymbolService consulta y gestiona símbolos del broker.
//
// Las specs (SymbolInfo) se cachean con TTL: una spec vieja produce
// validaciones incorrectas de stops y volumen, así que pasada la
// ventana se refetchea del terminal.
type SymbolService struct {
	tx        bridge.Transport
	telemetry *telemetry.Client
	metrics   *metricbundle.Mt5Metrics

	cacheTTL time.Duration
	cacheMu  sync.RWMutex
	cache    map[string]*domain.SymbolInfo
}

// NewSymbolService crea el servicio de símbolos.
func NewSymbolService(tx bridge.Transport, tel *telemetry.Client, cacheTTL time.Duration) *SymbolService {
	if tel == nil {
		tel = telemetry.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Second
	}
	return &SymbolService{
		tx:        tx,
		telemetry: tel,
		metrics:   metricbundle.GetGlobalMt5Metrics(),
		cacheTTL:  cacheTTL,
		cache:     make(map[string]*domain.SymbolInfo),
	}
}

// List retorna los nombres de símbolos del broker.
//
// group filtra con la sintaxis del terminal (ej. "*USD*", "Forex\\*");
// vacío retorna todos. onlyVisible limita a los del MarketWatch.
func (s *SymbolService) List(ctx context.Context, group string, onlyVisible bool) ([]string, error) {
	params := map[string]interface{}{
		"only_visible": onlyVisible,
	}
	if group != "" {
		params["group"] = group
	}

	var out struct {
		Symbols []string `json:"symbols"`
	}
	if err := s.tx.Call(ctx, bridge.MethodSymbols, params, &out); err != nil {
		return nil, err
	}
	sort.Strings(out.Symbols)
	return out.Symbols, nil
}

// Select agrega un símbolo al MarketWatch.
func (s *SymbolService) Select(ctx context.Context, symbol string) error {
	return s.selectSymbol(ctx, symbol, true)
}

// Hide quita un símbolo del MarketWatch.
func (s *SymbolService) Hide(ctx context.Context, symbol string) error {
	return s.selectSymbol(ctx, symbol, false)
}

func (s *SymbolService) selectSymbol(ctx context.Context, symbol string, enable bool) error {
	if err := domain.ValidateSymbolFormat(symbol); err != nil {
		return err
	}
	params := map[string]interface{}{
		"symbol": symbol,
		"enable": enable,
	}
	if err := s.tx.Call(ctx, bridge.MethodSymbolSelect, params, nil); err != nil {
		return err
	}
	s.invalidate(symbol)
	return nil
}

// Info retorna la spec del símbolo, sirviéndola del cache si está fresca.
func (s *SymbolService) Info(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	if err := domain.ValidateSymbolFormat(symbol); err != nil {
		return nil, err
	}

	s.cacheMu.RLock()
	cached, ok := s.cache[symbol]
	s.cacheMu.RUnlock()

	if ok && cached.AgeMs(utils.NowUnixMilli()) < s.cacheTTL.Milliseconds() {
		s.metrics.RecordCacheHit(ctx, "symbol")
		return cached, nil
	}
	s.metrics.RecordCacheMiss(ctx, "symbol")

	params := map[string]interface{}{"symbol": symbol}
	var info domain.SymbolInfo
	if err := s.tx.Call(ctx, bridge.MethodSymbolInfo, params, &info); err != nil {
		return nil, err
	}
	info.ReportedAtMs = utils.NowUnixMilli()

	s.cacheMu.Lock()
	s.cache[symbol] = &info
	s.cacheMu.Unlock()

	return &info, nil
}

// GetAttribute retorna un atributo puntual de la spec por nombre.
func (s *SymbolService) GetAttribute(ctx context.Context, symbol, name string) (interface{}, error) {
	info, err := s.Info(ctx, symbol)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(name) {
	case "bid":
		return info.Bid, nil
	case "ask":
		return info.Ask, nil
	case "last":
		return info.Last, nil
	case "point":
		return info.Point, nil
	case "digits":
		return info.Digits, nil
	case "spread":
		return info.Spread, nil
	case "volume_min":
		return info.VolumeMin, nil
	case "volume_max":
		return info.VolumeMax, nil
	case "volume_step":
		return info.VolumeStep, nil
	case "trade_tick_value":
		return info.TradeTickValue, nil
	case "trade_tick_size":
		return info.TradeTickSize, nil
	case "trade_contract_size":
		return info.TradeContractSize, nil
	case "trade_stops_level":
		return info.TradeStopsLevel, nil
	case "currency_base":
		return info.CurrencyBase, nil
	case "currency_profit":
		return info.CurrencyProfit, nil
	case "description":
		return info.Description, nil
	case "path":
		return info.Path, nil
	default:
		return nil, domain.NewError(domain.ErrInvalidRequest,
			fmt.Sprintf("unknown symbol attribute %q", name))
	}
}

// SymbolCheck resultado de las comprobaciones de un símbolo.
type SymbolCheck struct {
	Exists       bool `json:"exists"`
	Visible      bool `json:"visible"`
	TradeAllowed bool `json:"trade_allowed"`
	MarketOpen   bool `json:"market_open"`
}

// Check comprueba visibilidad, permisos de trading y mercado abierto.
//
// MarketOpen se infiere del quote: un símbolo con quotes dentro de la
// ventana del cache se considera operable.
func (s *SymbolService) Check(ctx context.Context, symbol string) (*SymbolCheck, error) {
	info, err := s.Info(ctx, symbol)
	if err != nil {
		if domain.CodeOf(err) == domain.ErrInvalidSymbol || domain.CodeOf(err) == domain.ErrNotFound {
			return &SymbolCheck{}, nil
		}
		return nil, err
	}

	marketOpen := info.Bid > 0 && info.Ask > 0 && info.TradeAllowed()

	return &SymbolCheck{
		Exists:       true,
		Visible:      info.Visible,
		TradeAllowed: info.TradeAllowed(),
		MarketOpen:   marketOpen,
	}, nil
}

// Price retorna el quote actual del símbolo (siempre fresco, sin cache).
func (s *SymbolService) Price(ctx context.Context, symbol string) (*domain.Tick, error) {
	if err := domain.ValidateSymbolFormat(symbol); err != nil {
		return nil, err
	}

	params := map[string]interface{}{"symbol": symbol}
	var tick domain.Tick
	if err := s.tx.Call(ctx, bridge.MethodSymbolTick, params, &tick); err != nil {
		return nil, err
	}
	if tick.Symbol == "" {
		tick.Symbol = symbol
	}
	return &tick, nil
}

// Spread retorna el spread actual en points.
func (s *SymbolService) Spread(ctx context.Context, symbol string) (float64, error) {
	info, err := s.Info(ctx, symbol)
	if err != nil {
		return 0, err
	}
	tick, err := s.Price(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return tick.SpreadPoints(info.Point), nil
}

// Subscribe abre la suscripción de profundidad de mercado (DOM).
func (s *SymbolService) Subscribe(ctx context.Context, symbol string) error {
	if err := domain.ValidateSymbolFormat(symbol); err != nil {
		return err
	}
	params := map[string]interface{}{"symbol": symbol}
	return s.tx.Call(ctx, bridge.MethodMarketBookAdd, params, nil)
}

// Unsubscribe cierra la suscripción de profundidad de mercado.
func (s *SymbolService) Unsubscribe(ctx context.Context, symbol string) error {
	params := map[string]interface{}{"symbol": symbol}
	return s.tx.Call(ctx, bridge.MethodMarketBookRel, params, nil)
}

// Depth retorna el libro de órdenes actual (requiere Subscribe previo).
func (s *SymbolService) Depth(ctx context.Context, symbol string) ([]domain.MarketBookEntry, error) {
	params := map[string]interface{}{"symbol": symbol}
	var out struct {
		Book []domain.MarketBookEntry `json:"book"`
	}
	if err := s.tx.Call(ctx, bridge.MethodMarketBookGet, params, &out); err != nil {
		return nil, err
	}
	return out.Book, nil
}

// ValidateVolume valida un volumen contra la spec del símbolo.
func (s *SymbolService) ValidateVolume(ctx context.Context, symbol string, volume float64) error {
	info, err := s.Info(ctx, symbol)
	if err != nil {
		return err
	}
	return domain.ValidateLotSize(volume, info.VolumeMin, info.VolumeMax, info.VolumeStep)
}

// ValidateStops valida SL/TP contra el stops level del símbolo.
func (s *SymbolService) ValidateStops(ctx context.Context, symbol string, orderType domain.OrderType, price, sl, tp float64) error {
	info, err := s.Info(ctx, symbol)
	if err != nil {
		return err
	}
	if sl > 0 {
		if err := domain.ValidateStopLoss(sl, price, orderType); err != nil {
			return err
		}
	}
	if tp > 0 {
		if err := domain.ValidateTakeProfit(tp, price, orderType); err != nil {
			return err
		}
	}
	return domain.ValidateStopsDistance(price, sl, tp, info.Point, info.TradeStopsLevel)
}

// Summary retorna un resumen compacto de la spec.
func (s *SymbolService) Summary(ctx context.Context, symbol string) (map[string]interface{}, error) {
	info, err := s.Info(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"name":          info.Name,
		"description":   info.Description,
		"path":          info.Path,
		"digits":        info.Digits,
		"point":         info.Point,
		"spread":        info.Spread,
		"bid":           info.Bid,
		"ask":           info.Ask,
		"volume_min":    info.VolumeMin,
		"volume_max":    info.VolumeMax,
		"volume_step":   info.VolumeStep,
		"contract_size": info.TradeContractSize,
		"trade_allowed": info.TradeAllowed(),
		"visible":       info.Visible,
	}, nil
}

// ExportList exporta la lista de símbolos de un grupo como JSON.
func (s *SymbolService) ExportList(ctx context.Context, group string) ([]byte, error) {
	symbols, err := s.List(ctx, group, false)
	if err != nil {
		return nil, err
	}
	data, err := utils.MarshalJSON(map[string]interface{}{
		"group":   group,
		"count":   len(symbols),
		"symbols": symbols,
	})
	if err != nil {
		return nil, err
	}
	return []byte(utils.PrettyPrint(data)), nil
}

// InvalidateCache vacía el cache de specs (tras login o switch de cuenta).
func (s *SymbolService) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache = make(map[string]*domain.SymbolInfo)
	s.cacheMu.Unlock()

	s.telemetry.Debug(context.Background(), "Symbol cache invalidated",
		semconv.Mt5.Component.String(semconv.ComponentValues.Client),
	)
}

func (s *SymbolService) invalidate(symbol string) {
	s.cacheMu.Lock()
	delete(s.cache, symbol)
	s.cacheMu.Unlock()
}
