package metricbundle

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xKoRx/mt5/telemetry/semconv"
)

// TickMetrics representa métricas relacionadas a ticks de mercado.
type TickMetrics struct {
	*BaseMetrics
}

// NewTickMetrics inicializa un nuevo bundle de métricas para ticks.
func NewTickMetrics(client MetricsClient) *TickMetrics {
	base := NewBaseMetrics(client, "trading", "tick")
	return &TickMetrics{BaseMetrics: base}
}

// ----------------------------------------------------------------------------------
// Bundle global singleton con inicialización segura para concurrencia
// ----------------------------------------------------------------------------------

var (
	globalTickMetrics   *TickMetrics
	onceInitTickMetrics sync.Once
)

// InitGlobalTickBundle inicializa el bundle global para uso compartido.
func InitGlobalTickBundle(client MetricsClient) {
	onceInitTickMetrics.Do(func() {
		globalTickMetrics = NewTickMetrics(client)
	})
}

// GetGlobalTickMetrics retorna el bundle global ya inicializado.
func GetGlobalTickMetrics() *TickMetrics {
	return globalTickMetrics // nil si no inicializado (no-op seguro)
}

// ----------------------------------------------------------------------------------
// Helpers para casos de uso comunes
// ----------------------------------------------------------------------------------

// AddDefaultTickAttributes añade atributos comunes para métricas de ticks.
func AddDefaultTickAttributes(symbol string) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.Metrics.Symbol.String(symbol),
		semconv.Metrics.Service.String("market-data"),
	}
}

// RecordTickProcessed registra métricas para un tick procesado.
func (tm *TickMetrics) RecordTickProcessed(
	ctx context.Context,
	symbol string,
	success bool,
	additionalAttrs ...attribute.KeyValue,
) {
	if tm == nil {
		return
	}
	attrs := AddDefaultTickAttributes(symbol)
	attrs = append(attrs, additionalAttrs...)

	status := "success"
	if !success {
		status = "error"
	}
	attrs = append(attrs, semconv.Metrics.Status.String(status))
	attrs = append(attrs, semconv.Metrics.Action.String("process"))

	tm.RecordResult(ctx, attrs...)
}

// RecordTickVolume registra un volumen de ticks procesados.
func (tm *TickMetrics) RecordTickVolume(
	ctx context.Context,
	symbol string,
	count int64,
	additionalAttrs ...attribute.KeyValue,
) {
	if tm == nil {
		return
	}
	attrs := AddDefaultTickAttributes(symbol)
	attrs = append(attrs, additionalAttrs...)
	attrs = append(attrs, semconv.Metrics.Action.String("count"))

	name := MetricName(tm.namespace, tm.entity, "result")
	tm.client.RecordCounter(ctx, name, count, attrs...)
}
