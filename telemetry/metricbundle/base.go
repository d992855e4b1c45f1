package metricbundle

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsClient define la interfaz para recopilar métricas a través de OpenTelemetry.
// Abstrae las operaciones fundamentales para registrar contadores e histogramas.
// telemetry.Client satisface esta interfaz.
type MetricsClient interface {
	// Counter crea o retorna un contador existente.
	// Los contadores son monótonos y solo permiten incrementos.
	Counter(name, description string) metric.Int64Counter

	// Histogram crea o retorna un histograma existente.
	// Los histogramas capturan distribuciones de valores (como latencias).
	Histogram(name, description string) metric.Float64Histogram

	// RecordCounter incrementa un contador con un valor específico.
	RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue)

	// RecordHistogram registra un valor en un histograma.
	RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue)
}

// BaseMetrics contiene contadores y histogramas comunes a todos los bundles.
// Proporciona funcionalidad base para registrar resultados y duraciones de
// operaciones.
type BaseMetrics struct {
	client    MetricsClient
	entity    string
	namespace string

	// ResultCounter contabiliza los resultados de operaciones.
	ResultCounter metric.Int64Counter

	// DurationHistogram mide la distribución de tiempos de ejecución en segundos.
	DurationHistogram metric.Float64Histogram
}

// NewBaseMetrics crea una nueva instancia de BaseMetrics con los contadores
// e histogramas básicos. Cada bundle específico utiliza esta base y añade
// sus propias métricas especializadas.
func NewBaseMetrics(client MetricsClient, namespace, entity string) *BaseMetrics {
	return &BaseMetrics{
		client:    client,
		entity:    entity,
		namespace: namespace,
		ResultCounter: client.Counter(
			MetricName(namespace, entity, "result"),
			"Results of operations for "+entity+" labeled by status, service, etc.",
		),
		DurationHistogram: client.Histogram(
			MetricName(namespace, entity, "duration"),
			"Duration of operations for "+entity+" in seconds.",
		),
	}
}

// RecordResult incrementa el contador de resultados para un evento específico.
//
// Atributos comunes a incluir:
//   - semconv.Metrics.Status.String("success"/"error")
//   - semconv.Metrics.Action.String("send"/"close"/...)
func (bm *BaseMetrics) RecordResult(ctx context.Context, attrs ...attribute.KeyValue) {
	name := MetricName(bm.namespace, bm.entity, "result")
	bm.client.RecordCounter(ctx, name, 1, attrs...)
}

// StartDurationTimer mide la duración de una operación y retorna una función
// que debe llamarse al finalizar para registrar el tiempo transcurrido.
//
// Ejemplo de uso:
//
//	done := metrics.StartDurationTimer(ctx,
//	    semconv.Metrics.Action.String("order_send"),
//	)
//	// Realizar operación...
//	done()
func (bm *BaseMetrics) StartDurationTimer(ctx context.Context, attrs ...attribute.KeyValue) func() {
	start := time.Now()
	return func() {
		duration := time.Since(start).Seconds()
		name := MetricName(bm.namespace, bm.entity, "duration")
		bm.client.RecordHistogram(ctx, name, duration, attrs...)
	}
}

// MetricName genera un nombre de métrica con formato estándar
// <namespace>.<entity>.<metric_type>.
func MetricName(namespace, entity, metricType string) string {
	return strings.Join([]string{namespace, entity, metricType}, ".")
}
