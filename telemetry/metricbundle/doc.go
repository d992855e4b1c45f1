// Package metricbundle agrupa métricas OpenTelemetry por dominio.
//
// Cada bundle (Mt5Metrics, TickMetrics, CandleMetrics) empaqueta los
// contadores e histogramas de una entidad con nombres consistentes
// (<namespace>.<entity>.<tipo>) y helpers para los casos de uso comunes.
package metricbundle
