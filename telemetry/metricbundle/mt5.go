package metricbundle

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xKoRx/mt5/telemetry/semconv"
)

// Mt5Metrics bundle de métricas para la librería mt5.
//
// Cubre el ciclo completo de interacción con el terminal:
// comandos al bridge, reintentos, reconexiones, órdenes y streams.
//
// # Métricas de Conteo
//
//   - trading.mt5.command: comandos enviados al bridge (method, status)
//   - trading.mt5.retry: reintentos de comandos de trading (method, attempt)
//   - trading.mt5.reconnect: intentos de reconexión del bridge (status)
//   - trading.mt5.order: resultados de order_send (symbol, status, retcode)
//   - trading.mt5.stream_drop: mensajes descartados por backpressure (stream_id)
//   - trading.mt5.cache: accesos al cache de símbolos y velas (status=hit/miss)
//
// # Métricas de Latencia
//
//   - trading.mt5.command_latency: latencia de round-trip del bridge en ms
//   - trading.mt5.duration: duración de operaciones en segundos (base)
type Mt5Metrics struct {
	*BaseMetrics
}

// NewMt5Metrics inicializa un nuevo bundle de métricas mt5.
func NewMt5Metrics(client MetricsClient) *Mt5Metrics {
	base := NewBaseMetrics(client, "trading", "mt5")
	return &Mt5Metrics{BaseMetrics: base}
}

// ----------------------------------------------------------------------------------
// Bundle global singleton con inicialización segura para concurrencia
// ----------------------------------------------------------------------------------

var (
	globalMt5Metrics   *Mt5Metrics
	onceInitMt5Metrics sync.Once
)

// InitGlobalMt5Bundle inicializa el bundle global para uso compartido.
func InitGlobalMt5Bundle(client MetricsClient) {
	onceInitMt5Metrics.Do(func() {
		globalMt5Metrics = NewMt5Metrics(client)
	})
}

// GetGlobalMt5Metrics retorna el bundle global ya inicializado.
func GetGlobalMt5Metrics() *Mt5Metrics {
	return globalMt5Metrics // nil si no inicializado (no-op seguro)
}

// ----------------------------------------------------------------------------------
// Helpers para casos de uso comunes
// ----------------------------------------------------------------------------------

// RecordCommand registra un comando enviado al bridge.
func (m *Mt5Metrics) RecordCommand(ctx context.Context, method, status string, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	all := append([]attribute.KeyValue{
		semconv.Mt5.Method.String(method),
		semconv.Metrics.Status.String(status),
	}, attrs...)
	m.client.RecordCounter(ctx, MetricName(m.namespace, m.entity, "command"), 1, all...)
}

// RecordCommandLatency registra la latencia de round-trip de un comando en ms.
func (m *Mt5Metrics) RecordCommandLatency(ctx context.Context, method string, latencyMs float64, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	all := append([]attribute.KeyValue{
		semconv.Mt5.Method.String(method),
	}, attrs...)
	m.client.RecordHistogram(ctx, MetricName(m.namespace, m.entity, "command_latency"), latencyMs, all...)
}

// RecordRetry registra un reintento de un comando de trading.
func (m *Mt5Metrics) RecordRetry(ctx context.Context, method string, attempt int, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	all := append([]attribute.KeyValue{
		semconv.Mt5.Method.String(method),
		semconv.Mt5.Attempt.Int(attempt),
	}, attrs...)
	m.client.RecordCounter(ctx, MetricName(m.namespace, m.entity, "retry"), 1, all...)
}

// RecordReconnect registra un intento de reconexión del bridge.
func (m *Mt5Metrics) RecordReconnect(ctx context.Context, success bool, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	all := append([]attribute.KeyValue{
		semconv.Metrics.Status.String(status),
	}, attrs...)
	m.client.RecordCounter(ctx, MetricName(m.namespace, m.entity, "reconnect"), 1, all...)
}

// RecordOrderSend registra el resultado de un order_send.
func (m *Mt5Metrics) RecordOrderSend(ctx context.Context, symbol, status string, retcode int, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	all := append([]attribute.KeyValue{
		semconv.Metrics.Symbol.String(symbol),
		semconv.Metrics.Status.String(status),
		semconv.Mt5.Retcode.Int(retcode),
	}, attrs...)
	m.client.RecordCounter(ctx, MetricName(m.namespace, m.entity, "order"), 1, all...)
}

// RecordStreamDrop registra un mensaje descartado por backpressure en un stream.
func (m *Mt5Metrics) RecordStreamDrop(ctx context.Context, streamID string, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	all := append([]attribute.KeyValue{
		semconv.Mt5.StreamID.String(streamID),
	}, attrs...)
	m.client.RecordCounter(ctx, MetricName(m.namespace, m.entity, "stream_drop"), 1, all...)
}

// RecordCacheHit registra un acceso al cache resuelto localmente.
func (m *Mt5Metrics) RecordCacheHit(ctx context.Context, component string, attrs ...attribute.KeyValue) {
	m.recordCache(ctx, component, "hit", attrs...)
}

// RecordCacheMiss registra un acceso al cache que requirió ir al terminal.
func (m *Mt5Metrics) RecordCacheMiss(ctx context.Context, component string, attrs ...attribute.KeyValue) {
	m.recordCache(ctx, component, "miss", attrs...)
}

func (m *Mt5Metrics) recordCache(ctx context.Context, component, status string, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	all := append([]attribute.KeyValue{
		semconv.Metrics.Component.String(component),
		semconv.Metrics.Status.String(status),
	}, attrs...)
	m.client.RecordCounter(ctx, MetricName(m.namespace, m.entity, "cache"), 1, all...)
}
