package mt5

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/mt5/bridge"
	"github.com/xKoRx/mt5/domain"
)

// mdBase apertura alineada a bucket de 5 minutos.
const mdBase = int64(1_700_000_400_000)

const minuteMs = int64(60_000)

func mdCandle(timeMs int64, open, high, low, close float64, volume int64) domain.Candle {
	return domain.Candle{
		Symbol:     "EURUSD",
		TimeMs:     timeMs,
		Open:       open,
		High:       high,
		Low:        low,
		Close:      close,
		TickVolume: volume,
	}
}

func TestCleanCandlesSortsAndDedupes(t *testing.T) {
	candles := []domain.Candle{
		mdCandle(mdBase+2*minuteMs, 1.2, 1.3, 1.1, 1.25, 10),
		mdCandle(mdBase, 1.0, 1.1, 0.9, 1.05, 10),
		mdCandle(mdBase+minuteMs, 1.1, 1.2, 1.0, 1.15, 10),
		mdCandle(mdBase, 1.0, 1.2, 0.9, 1.10, 20), // duplicado: gana la última versión
	}

	out := CleanCandles(candles)
	require.Len(t, out, 3)
	assert.Equal(t, mdBase, out[0].TimeMs)
	assert.InDelta(t, 1.10, out[0].Close, 1e-9)
	assert.Equal(t, mdBase+minuteMs, out[1].TimeMs)
	assert.Equal(t, mdBase+2*minuteMs, out[2].TimeMs)
}

func TestCleanCandlesEmpty(t *testing.T) {
	assert.Empty(t, CleanCandles(nil))
}

func TestDetectGaps(t *testing.T) {
	candles := []domain.Candle{
		mdCandle(mdBase, 1, 1, 1, 1, 1),
		mdCandle(mdBase+minuteMs, 1, 1, 1, 1, 1),
		mdCandle(mdBase+4*minuteMs, 1, 1, 1, 1, 1), // faltan dos velas
	}

	gaps := DetectGaps(candles, domain.TimeframeM1)
	assert.Equal(t, []int{2}, gaps)

	assert.Nil(t, DetectGaps(candles[:1], domain.TimeframeM1))
}

func TestFillGaps(t *testing.T) {
	candles := []domain.Candle{
		mdCandle(mdBase, 1.0, 1.1, 0.9, 1.05, 10),
		mdCandle(mdBase+3*minuteMs, 1.2, 1.3, 1.1, 1.25, 10),
	}

	out := FillGaps(candles, domain.TimeframeM1)
	require.Len(t, out, 4)

	// Las sintéticas son planas al close previo y con volumen cero
	for _, synth := range out[1:3] {
		assert.InDelta(t, 1.05, synth.Open, 1e-9)
		assert.InDelta(t, 1.05, synth.High, 1e-9)
		assert.InDelta(t, 1.05, synth.Low, 1e-9)
		assert.InDelta(t, 1.05, synth.Close, 1e-9)
		assert.Zero(t, synth.TickVolume)
		assert.Equal(t, "EURUSD", synth.Symbol)
	}
	assert.Equal(t, mdBase+minuteMs, out[1].TimeMs)
	assert.Equal(t, mdBase+2*minuteMs, out[2].TimeMs)
	assert.Equal(t, mdBase+3*minuteMs, out[3].TimeMs)
}

func TestResample(t *testing.T) {
	candles := []domain.Candle{
		mdCandle(mdBase, 1.00, 1.10, 0.95, 1.05, 10),
		mdCandle(mdBase+minuteMs, 1.05, 1.20, 1.00, 1.15, 10),
		mdCandle(mdBase+2*minuteMs, 1.15, 1.18, 0.90, 0.95, 10),
		mdCandle(mdBase+5*minuteMs, 0.95, 1.00, 0.90, 0.98, 5), // siguiente bucket
	}

	out, err := Resample(candles, domain.TimeframeM1, domain.TimeframeM5)
	require.NoError(t, err)
	require.Len(t, out, 2)

	first := out[0]
	assert.Equal(t, mdBase, first.TimeMs)
	assert.InDelta(t, 1.00, first.Open, 1e-9)
	assert.InDelta(t, 1.20, first.High, 1e-9)
	assert.InDelta(t, 0.90, first.Low, 1e-9)
	assert.InDelta(t, 0.95, first.Close, 1e-9)
	assert.Equal(t, int64(30), first.TickVolume)

	second := out[1]
	assert.Equal(t, mdBase+5*minuteMs, second.TimeMs)
	assert.Equal(t, int64(5), second.TickVolume)
}

func TestNormalizeCandles(t *testing.T) {
	candles := []domain.Candle{
		mdCandle(mdBase, 1.00, 1.10, 0.90, 1.05, 10),
		mdCandle(mdBase+minuteMs, 1.05, 1.30, 1.00, 1.25, 20),
	}

	norm := NormalizeCandles(candles)
	require.Len(t, norm, 2)

	// Rango de la serie: [0.90, 1.30].
	assert.InDelta(t, 0.0, norm[0].Low, 1e-9)
	assert.InDelta(t, 1.0, norm[1].High, 1e-9)
	assert.InDelta(t, 0.25, norm[0].Open, 1e-9)
	assert.InDelta(t, 0.875, norm[1].Close, 1e-9)

	// Tiempo y volumen intactos; la serie original no se toca.
	assert.Equal(t, mdBase, norm[0].TimeMs)
	assert.Equal(t, int64(10), norm[0].TickVolume)
	assert.InDelta(t, 1.00, candles[0].Open, 1e-9)
}

func TestNormalizeCandlesFlatSeries(t *testing.T) {
	norm := NormalizeCandles([]domain.Candle{mdCandle(mdBase, 1, 1, 1, 1, 5)})
	require.Len(t, norm, 1)
	assert.Zero(t, norm[0].Close)
	assert.Nil(t, NormalizeCandles(nil))
}

func TestSummarizeCandles(t *testing.T) {
	candles := []domain.Candle{
		mdCandle(mdBase+minuteMs, 1.05, 1.30, 1.00, 1.25, 20),
		mdCandle(mdBase, 1.00, 1.10, 0.90, 1.05, 10),
	}

	summary := SummarizeCandles(candles)
	assert.Equal(t, "EURUSD", summary["symbol"])
	assert.Equal(t, 2, summary["count"])
	assert.Equal(t, mdBase, summary["start_ms"], "ordena antes de resumir")
	assert.Equal(t, mdBase+minuteMs, summary["end_ms"])
	assert.InDelta(t, 1.30, summary["high"].(float64), 1e-9)
	assert.InDelta(t, 0.90, summary["low"].(float64), 1e-9)
	assert.InDelta(t, 0.25, summary["net_change"].(float64), 1e-9)
	assert.Equal(t, int64(30), summary["tick_volume"])

	assert.Equal(t, 0, SummarizeCandles(nil)["count"])
}

func TestResampleRejectsBadTargets(t *testing.T) {
	candles := []domain.Candle{mdCandle(mdBase, 1, 1, 1, 1, 1)}

	_, err := Resample(candles, domain.TimeframeM5, domain.TimeframeM1)
	require.Error(t, err, "el destino debe ser mayor")

	_, err = Resample(candles, domain.TimeframeM10, domain.TimeframeM15)
	require.Error(t, err, "el destino debe ser múltiplo")
}

func TestDeliverTickDropsOldestWhenFull(t *testing.T) {
	svc := NewMarketDataService(newFakeTransport(), nil, time.Minute)

	out := make(chan domain.Tick, 2)
	out <- domain.Tick{Symbol: "EURUSD", TimeMs: 1}
	out <- domain.Tick{Symbol: "EURUSD", TimeMs: 2}

	// Canal lleno: la entrega no bloquea y tira la muestra más vieja
	svc.deliverTick(context.Background(), out, domain.Tick{Symbol: "EURUSD", TimeMs: 3}, "tick:EURUSD:test")

	first := <-out
	second := <-out
	assert.Equal(t, int64(2), first.TimeMs)
	assert.Equal(t, int64(3), second.TimeMs)
	assert.Empty(t, out)
}

func TestCandlesByPosCacheHitReturnsCopy(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodCopyRates, map[string]interface{}{
		"candles": []domain.Candle{mdCandle(mdBase, 1.00, 1.10, 0.90, 1.05, 10)},
	})
	svc := NewMarketDataService(tx, nil, time.Minute)
	ctx := context.Background()

	first, err := svc.CandlesByPos(ctx, "EURUSD", domain.TimeframeM1, 0, 1)
	require.NoError(t, err)
	first[0].Close = 9.99 // el caller ensucia su resultado

	second, err := svc.CandlesByPos(ctx, "EURUSD", domain.TimeframeM1, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, tx.callCount(bridge.MethodCopyRates), "hit de cache")
	assert.InDelta(t, 1.05, second[0].Close, 1e-9, "la entrada no se envenena")

	second[0].Close = 8.88
	third, err := svc.CandlesByPos(ctx, "EURUSD", domain.TimeframeM1, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.05, third[0].Close, 1e-9, "el hit tampoco expone la entrada")
}

func TestCandlesByPosCached(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodCopyRates, map[string]interface{}{
		"candles": []domain.Candle{mdCandle(mdBase, 1, 1, 1, 1, 1)},
	})
	svc := NewMarketDataService(tx, nil, time.Minute)
	ctx := context.Background()

	first, err := svc.CandlesByPos(ctx, "EURUSD", domain.TimeframeM1, 0, 10)
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = svc.CandlesByPos(ctx, "EURUSD", domain.TimeframeM1, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, tx.callCount(bridge.MethodCopyRates),
		"la segunda consulta pos-0 debe salir del cache")

	// Distinto count es otra entrada de cache
	_, err = svc.CandlesByPos(ctx, "EURUSD", domain.TimeframeM1, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, tx.callCount(bridge.MethodCopyRates))
}

func TestCandlesByPosOffsetNotCached(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodCopyRates, map[string]interface{}{
		"candles": []domain.Candle{mdCandle(mdBase, 1, 1, 1, 1, 1)},
	})
	svc := NewMarketDataService(tx, nil, time.Minute)
	ctx := context.Background()

	_, err := svc.CandlesByPos(ctx, "EURUSD", domain.TimeframeM1, 5, 10)
	require.NoError(t, err)
	_, err = svc.CandlesByPos(ctx, "EURUSD", domain.TimeframeM1, 5, 10)
	require.NoError(t, err)

	assert.Equal(t, 2, tx.callCount(bridge.MethodCopyRates))
}

func TestCandlesRejectInvalidTimeframe(t *testing.T) {
	svc := NewMarketDataService(newFakeTransport(), nil, time.Minute)

	_, err := svc.CandlesByPos(context.Background(), "EURUSD", domain.Timeframe(7), 0, 10)
	require.Error(t, err)
	assert.Equal(t, domain.ErrInvalidRequest, domain.CodeOf(err))
}

func TestCandlesRangeValidatesDates(t *testing.T) {
	svc := NewMarketDataService(newFakeTransport(), nil, time.Minute)
	now := time.Now()

	_, err := svc.CandlesRange(context.Background(), "EURUSD", domain.TimeframeM1, now, now.Add(-time.Hour))
	require.Error(t, err)
}

func TestCandlesBackfillSymbol(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodCopyRates, map[string]interface{}{
		"candles": []domain.Candle{{TimeMs: mdBase, Open: 1, High: 1, Low: 1, Close: 1}},
	})
	svc := NewMarketDataService(tx, nil, time.Minute)

	candles, err := svc.CandlesFrom(context.Background(), "GBPUSD", domain.TimeframeM5, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, "GBPUSD", candles[0].Symbol)
}

func TestTicksRangeFetch(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodCopyTicks, map[string]interface{}{
		"ticks": []domain.Tick{{TimeMs: mdBase, Bid: 1.1, Ask: 1.10012}},
	})
	svc := NewMarketDataService(tx, nil, time.Minute)
	now := time.Now()

	ticks, err := svc.TicksRange(context.Background(), "EURUSD", now.Add(-time.Hour), now, domain.CopyTicksAll)
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, "EURUSD", ticks[0].Symbol)

	_, err = svc.TicksRange(context.Background(), "EURUSD", now, now.Add(-time.Hour), domain.CopyTicksAll)
	require.Error(t, err, "rango invertido")
}

func TestStreamTicksStop(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodSymbolTick, &domain.Tick{TimeMs: mdBase, Bid: 1.1, Ask: 1.10012})
	svc := NewMarketDataService(tx, nil, time.Minute)

	id, ch, err := svc.StreamTicks(context.Background(), "EURUSD", time.Millisecond)
	require.NoError(t, err)
	require.Contains(t, svc.ActiveStreams(), id)

	tick := <-ch
	assert.Equal(t, "EURUSD", tick.Symbol)

	require.True(t, svc.StopStream(id))
	assert.Empty(t, svc.ActiveStreams())
	assert.False(t, svc.StopStream(id), "ya detenido")

	// El canal se cierra al detener el stream
	for range ch {
	}
}

func TestStopAllStreams(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodSymbolTick, &domain.Tick{TimeMs: mdBase, Bid: 1.1, Ask: 1.2})
	svc := NewMarketDataService(tx, nil, time.Minute)

	_, _, err := svc.StreamTicks(context.Background(), "EURUSD", time.Millisecond)
	require.NoError(t, err)
	_, _, err = svc.StreamTicks(context.Background(), "GBPUSD", time.Millisecond)
	require.NoError(t, err)
	require.Len(t, svc.ActiveStreams(), 2)

	svc.StopAllStreams()
	assert.Empty(t, svc.ActiveStreams())
}

func TestExportCandlesCSVHasHeader(t *testing.T) {
	data, err := ExportCandlesCSV([]domain.Candle{mdCandle(mdBase, 1.0, 1.1, 0.9, 1.05, 10)})
	require.NoError(t, err)
	assert.Contains(t, string(data), "time_ms")
	assert.Contains(t, string(data), "EURUSD")
}
