// Package telemetry proporciona observabilidad para el cliente mt5
// mediante los tres pilares:
//
// 1. Logs: registro estructurado JSON (slog) compatible con Loki
// 2. Métricas: OpenTelemetry exportables a Prometheus
// 3. Trazas: trazado distribuido con OpenTelemetry/Jaeger
//
// Uso básico:
//
//	import (
//	    "context"
//	    "github.com/xKoRx/mt5/telemetry"
//	)
//
//	func main() {
//	    ctx := context.Background()
//
//	    client, err := telemetry.New(ctx, "mt5-client", "production")
//	    if err != nil {
//	        panic(err)
//	    }
//	    defer client.Shutdown(ctx)
//
//	    client.Info(ctx, "Terminal connected")
//
//	    ctx, span := client.StartSpan(ctx, "order_send")
//	    defer span.End()
//
//	    client.RecordCounter(ctx, "mt5.command.sent", 1)
//	}
package telemetry
