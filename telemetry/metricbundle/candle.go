package metricbundle

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xKoRx/mt5/telemetry/semconv"
)

// CandleMetrics representa métricas relacionadas a velas (rates).
type CandleMetrics struct {
	*BaseMetrics
}

// NewCandleMetrics inicializa un nuevo bundle de métricas para velas.
func NewCandleMetrics(client MetricsClient) *CandleMetrics {
	base := NewBaseMetrics(client, "trading", "candle")
	return &CandleMetrics{BaseMetrics: base}
}

// ----------------------------------------------------------------------------------
// Bundle global singleton con inicialización segura para concurrencia
// ----------------------------------------------------------------------------------

var (
	globalCandleMetrics   *CandleMetrics
	onceInitCandleMetrics sync.Once
)

// InitGlobalCandleBundle inicializa el bundle global para uso compartido.
func InitGlobalCandleBundle(client MetricsClient) {
	onceInitCandleMetrics.Do(func() {
		globalCandleMetrics = NewCandleMetrics(client)
	})
}

// GetGlobalCandleMetrics retorna el bundle global ya inicializado.
func GetGlobalCandleMetrics() *CandleMetrics {
	return globalCandleMetrics // nil si no inicializado (no-op seguro)
}

// ----------------------------------------------------------------------------------
// Helpers para casos de uso comunes
// ----------------------------------------------------------------------------------

// RecordCandlesFetched registra una descarga de velas desde el terminal.
func (cm *CandleMetrics) RecordCandlesFetched(
	ctx context.Context,
	symbol, interval string,
	count int64,
	success bool,
	additionalAttrs ...attribute.KeyValue,
) {
	if cm == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}

	attrs := []attribute.KeyValue{
		semconv.Metrics.Symbol.String(symbol),
		semconv.Metrics.Interval.String(interval),
		semconv.Metrics.Count.Int64(count),
		semconv.Metrics.Status.String(status),
		semconv.Metrics.Action.String("fetch"),
	}
	attrs = append(attrs, additionalAttrs...)

	cm.RecordResult(ctx, attrs...)
}

// RecordGapDetected registra un hueco temporal detectado en una serie de velas.
func (cm *CandleMetrics) RecordGapDetected(
	ctx context.Context,
	symbol, interval string,
	additionalAttrs ...attribute.KeyValue,
) {
	if cm == nil {
		return
	}
	attrs := []attribute.KeyValue{
		semconv.Metrics.Symbol.String(symbol),
		semconv.Metrics.Interval.String(interval),
		semconv.Metrics.Action.String("gap_detected"),
	}
	attrs = append(attrs, additionalAttrs...)

	cm.RecordResult(ctx, attrs...)
}
