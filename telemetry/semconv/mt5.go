package semconv

import "go.opentelemetry.io/otel/attribute"

// Mt5 contiene atributos semánticos específicos de la librería mt5.
//
// # Identificadores
//
//   - mt5.command_id: UUID del comando enviado al bridge (UUIDv7)
//   - mt5.method: Método del bridge (order_send, copy_rates, etc.)
//   - mt5.login: Login de la cuenta MT5
//   - mt5.server: Servidor del broker
//
// # Trading
//
//   - mt5.symbol: Símbolo del instrumento (EURUSD, XAUUSD, etc.)
//   - mt5.order_side: Lado de la orden (BUY/SELL)
//   - mt5.lot_size: Tamaño en lotes
//   - mt5.price: Precio de la orden
//   - mt5.magic_number: MagicNumber MT5
//   - mt5.ticket: Ticket de orden o posición
//   - mt5.retcode: Retcode del servidor de trading
//
// # Estado
//
//   - mt5.status: Estado de la operación (success/rejected/timeout)
//   - mt5.error_code: Código de error si aplica
//   - mt5.component: Componente (client/bridge/trade/data/history)
//
// # Uso
//
//	import "github.com/xKoRx/mt5/telemetry/semconv"
//
//	// Logs
//	client.Info(ctx, "Order sent",
//	    semconv.Mt5.Symbol.String("EURUSD"),
//	    semconv.Mt5.OrderSide.String("BUY"),
//	    semconv.Mt5.LotSize.Float64(0.10),
//	)
//
//	// Métricas
//	metrics.RecordOrderSend(ctx, "success",
//	    semconv.Mt5.Symbol.String("EURUSD"),
//	)
var Mt5 = mt5Attributes{
	// Identificadores
	CommandID: attribute.Key("mt5.command_id"),
	Method:    attribute.Key("mt5.method"),
	Login:     attribute.Key("mt5.login"),
	Server:    attribute.Key("mt5.server"),

	// Trading
	Symbol:      attribute.Key("mt5.symbol"),
	OrderSide:   attribute.Key("mt5.order_side"),
	LotSize:     attribute.Key("mt5.lot_size"),
	Price:       attribute.Key("mt5.price"),
	MagicNumber: attribute.Key("mt5.magic_number"),
	Ticket:      attribute.Key("mt5.ticket"),
	Retcode:     attribute.Key("mt5.retcode"),
	Deviation:   attribute.Key("mt5.deviation"),
	Spread:      attribute.Key("mt5.spread"),

	// Estado
	Status:    attribute.Key("mt5.status"),
	ErrorCode: attribute.Key("mt5.error_code"),
	Component: attribute.Key("mt5.component"),

	// Adicionales
	Timeframe:        attribute.Key("mt5.timeframe"),
	Attempt:          attribute.Key("mt5.attempt"),
	StreamID:         attribute.Key("mt5.stream_id"),
	Decision:         attribute.Key("mt5.decision"),
	Reason:           attribute.Key("mt5.reason"),
	RiskAmount:       attribute.Key("mt5.risk.amount"),
	RiskPercent:      attribute.Key("mt5.risk.percent"),
	RiskDecision:     attribute.Key("mt5.risk.decision"),
	RiskRejectReason: attribute.Key("mt5.risk.reject_reason"),
}

type mt5Attributes struct {
	// Identificadores
	CommandID attribute.Key // UUID del comando (UUIDv7)
	Method    attribute.Key // Método del bridge
	Login     attribute.Key // Login de la cuenta
	Server    attribute.Key // Servidor del broker

	// Trading
	Symbol      attribute.Key // Símbolo del instrumento
	OrderSide   attribute.Key // Lado de la orden (BUY/SELL)
	LotSize     attribute.Key // Tamaño en lotes
	Price       attribute.Key // Precio de la orden
	MagicNumber attribute.Key // MagicNumber MT5
	Ticket      attribute.Key // Ticket de orden o posición
	Retcode     attribute.Key // Retcode del servidor de trading
	Deviation   attribute.Key // Desviación máxima en points
	Spread      attribute.Key // Spread en points

	// Estado
	Status    attribute.Key // Estado (success/rejected/timeout)
	ErrorCode attribute.Key // Código de error
	Component attribute.Key // Componente (client/bridge/trade/data/history)

	// Adicionales
	Timeframe        attribute.Key // Timeframe (M1, M5, H1, etc.)
	Attempt          attribute.Key // Número de intento (reintentos)
	StreamID         attribute.Key // ID del stream de ticks o velas
	Decision         attribute.Key // Decisión (clamp/reject/pass_through)
	Reason           attribute.Key // Razón asociada a la decisión
	RiskAmount       attribute.Key // Monto de riesgo en divisa de la cuenta
	RiskPercent      attribute.Key // Riesgo como porcentaje del balance
	RiskDecision     attribute.Key // Decisión del motor de riesgo (proceed/reject)
	RiskRejectReason attribute.Key // Motivo del rechazo del riesgo
}

// Values pre-definidos para atributos comunes

// ComponentValues valores válidos para mt5.component
var ComponentValues = struct {
	Client    string
	Bridge    string
	Trade     string
	Data      string
	History   string
	Risk      string
	Validator string
}{
	Client:    "client",
	Bridge:    "bridge",
	Trade:     "trade",
	Data:      "data",
	History:   "history",
	Risk:      "risk",
	Validator: "validator",
}

// OrderSideValues valores válidos para mt5.order_side
var OrderSideValues = struct {
	Buy  string
	Sell string
}{
	Buy:  "BUY",
	Sell: "SELL",
}

// StatusValues valores válidos para mt5.status
var StatusValues = struct {
	Success  string
	Rejected string
	Timeout  string
	Pending  string
	Retry    string
}{
	Success:  "success",
	Rejected: "rejected",
	Timeout:  "timeout",
	Pending:  "pending",
	Retry:    "retry",
}

// Helper functions para crear atributos comunes

// CommandAttributes crea atributos para un comando del bridge.
//
// Example:
//
//	attrs := semconv.CommandAttributes("01HKQV8Y...", "order_send")
//	client.Debug(ctx, "Command dispatched", attrs...)
func CommandAttributes(commandID, method string) []attribute.KeyValue {
	return []attribute.KeyValue{
		Mt5.CommandID.String(commandID),
		Mt5.Method.String(method),
	}
}

// OrderAttributes crea atributos para una orden.
//
// Example:
//
//	attrs := semconv.OrderAttributes("EURUSD", "BUY", 0.10)
//	client.Info(ctx, "Order sent", attrs...)
func OrderAttributes(symbol, orderSide string, lotSize float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		Mt5.Symbol.String(symbol),
		Mt5.OrderSide.String(orderSide),
		Mt5.LotSize.Float64(lotSize),
	}
}

// AccountAttributes crea atributos para una cuenta.
//
// Example:
//
//	attrs := semconv.AccountAttributes(12345678, "Broker-Demo")
//	client.Info(ctx, "Logged in", attrs...)
func AccountAttributes(login int64, server string) []attribute.KeyValue {
	return []attribute.KeyValue{
		Mt5.Login.Int64(login),
		Mt5.Server.String(server),
	}
}

// ErrorAttributes crea atributos para un error.
//
// Example:
//
//	attrs := semconv.ErrorAttributes("ERR_REQUOTE", "rejected")
//	client.Error(ctx, "Order failed", err, attrs...)
func ErrorAttributes(errorCode, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		Mt5.ErrorCode.String(errorCode),
		Mt5.Status.String(status),
	}
}
