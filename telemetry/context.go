package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// contextKey tipo privado para las claves de contexto del paquete.
type contextKey string

const (
	commonAttrsKey contextKey = "telemetry_common_attrs"
	eventAttrsKey  contextKey = "telemetry_event_attrs"
	metricAttrsKey contextKey = "telemetry_metric_attrs"
)

// AppendCommonAttrs anota atributos que viajan en el contexto y se
// adjuntan a todo log y métrica emitidos con él (típicamente login y
// server de la sesión activa).
func AppendCommonAttrs(ctx context.Context, attrs ...attribute.KeyValue) context.Context {
	return appendAttrs(ctx, commonAttrsKey, attrs...)
}

// AppendEventAttrs anota atributos que sólo se adjuntan a los logs.
func AppendEventAttrs(ctx context.Context, attrs ...attribute.KeyValue) context.Context {
	return appendAttrs(ctx, eventAttrsKey, attrs...)
}

// AppendMetricAttrs anota atributos que sólo se adjuntan a las métricas.
func AppendMetricAttrs(ctx context.Context, attrs ...attribute.KeyValue) context.Context {
	return appendAttrs(ctx, metricAttrsKey, attrs...)
}

// GetCommonAttrs extrae los atributos comunes del contexto.
func GetCommonAttrs(ctx context.Context) []attribute.KeyValue {
	return getAttrs(ctx, commonAttrsKey)
}

// GetEventAttrs extrae los atributos de log del contexto.
func GetEventAttrs(ctx context.Context) []attribute.KeyValue {
	return getAttrs(ctx, eventAttrsKey)
}

// GetMetricAttrs extrae los atributos de métrica del contexto.
func GetMetricAttrs(ctx context.Context) []attribute.KeyValue {
	return getAttrs(ctx, metricAttrsKey)
}

// logAttrs combina comunes + evento del contexto con los attrs
// explícitos de la llamada. Los explícitos van al final.
func logAttrs(ctx context.Context, attrs []attribute.KeyValue) []attribute.KeyValue {
	return mergeAttrs(ctx, eventAttrsKey, attrs)
}

// metricAttrs combina comunes + métrica del contexto con los attrs
// explícitos de la llamada.
func metricAttrs(ctx context.Context, attrs []attribute.KeyValue) []attribute.KeyValue {
	return mergeAttrs(ctx, metricAttrsKey, attrs)
}

func mergeAttrs(ctx context.Context, key contextKey, attrs []attribute.KeyValue) []attribute.KeyValue {
	common := getAttrs(ctx, commonAttrsKey)
	specific := getAttrs(ctx, key)
	if len(common) == 0 && len(specific) == 0 {
		return attrs
	}
	merged := make([]attribute.KeyValue, 0, len(common)+len(specific)+len(attrs))
	merged = append(merged, common...)
	merged = append(merged, specific...)
	merged = append(merged, attrs...)
	return merged
}

// appendAttrs copia antes de extender: dos contextos hijos del mismo
// padre no deben compartir backing array.
func appendAttrs(ctx context.Context, key contextKey, attrs ...attribute.KeyValue) context.Context {
	existing := getAttrs(ctx, key)
	merged := make([]attribute.KeyValue, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, key, merged)
}

func getAttrs(ctx context.Context, key contextKey) []attribute.KeyValue {
	attrs, _ := ctx.Value(key).([]attribute.KeyValue)
	return attrs
}
