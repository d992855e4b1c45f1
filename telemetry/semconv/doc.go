// Package semconv define convenciones semánticas para los atributos
// OpenTelemetry de la librería mt5.
//
// Centraliza las claves de atributos (mt5.symbol, mt5.command_id, etc.)
// para que logs, métricas y trazas usen nombres consistentes en todos
// los componentes.
package semconv
