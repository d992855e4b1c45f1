package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/xKoRx/mt5/domain"
)

// Tipos de mensaje del protocolo JSON line-delimited.
const (
	MessageTypeRequest  = "request"
	MessageTypeResponse = "response"
	MessageTypeTick     = "tick"
	MessageTypeCandle   = "candle"
	MessageTypeEvent    = "event"
)

// Métodos soportados por el bridge EA.
//
// Los nombres replican la API del terminal para que el EA haga un
// dispatch directo sin tabla de traducción.
const (
	MethodInitialize      = "initialize"
	MethodLogin           = "login"
	MethodShutdown        = "shutdown"
	MethodPing            = "ping"
	MethodLastError       = "last_error"
	MethodTerminalInfo    = "terminal_info"
	MethodAccountInfo     = "account_info"
	MethodSymbols         = "symbols"
	MethodSymbolInfo      = "symbol_info"
	MethodSymbolSelect    = "symbol_select"
	MethodSymbolTick      = "symbol_tick"
	MethodMarketBookAdd   = "market_book_add"
	MethodMarketBookGet   = "market_book_get"
	MethodMarketBookRel   = "market_book_release"
	MethodCopyRates       = "copy_rates"
	MethodCopyTicks       = "copy_ticks"
	MethodOrderSend       = "order_send"
	MethodOrderCheck      = "order_check"
	MethodOrderCalcMargin = "order_calc_margin"
	MethodOrderCalcProfit = "order_calc_profit"
	MethodOrdersGet       = "orders_get"
	MethodPositionsGet    = "positions_get"
	MethodHistoryDeals    = "history_deals"
	MethodHistoryOrders   = "history_orders"
)

// Request es un comando enviado al bridge EA.
//
// Wire format:
//
//	{"type":"request","command_id":"01HKQ...","method":"order_send","params":{...}}\n
type Request struct {
	Type      string      `json:"type"`
	CommandID string      `json:"command_id"`
	Method    string      `json:"method"`
	Params    interface{} `json:"params,omitempty"`
}

// Response es la respuesta del bridge EA a un Request.
//
// Status "ok" trae el resultado en Payload; status "error" trae Error.
type Response struct {
	Type      string          `json:"type"`
	CommandID string          `json:"command_id"`
	Status    string          `json:"status"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     *WireError      `json:"error,omitempty"`
}

// OK indica si la respuesta fue exitosa.
func (r *Response) OK() bool {
	return r.Status == "ok"
}

// WireError es el error serializado que reporta el bridge EA.
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Mql     int    `json:"mql_error,omitempty"` // código de GetLastError() en MQL5
}

// ToDomain convierte el error de wire a un TradingError.
func (e *WireError) ToDomain() *domain.TradingError {
	if e == nil {
		return nil
	}
	code := domain.ErrorCode(e.Code)
	if code == "" {
		code = domain.ErrUnknown
	}
	terr := domain.NewError(code, e.Message)
	if e.Mql != 0 {
		terr = terr.WithDetail("mql_error", e.Mql)
	}
	return terr
}

// Inbound es el sobre genérico de los mensajes que llegan del EA.
//
// Se decodifica primero para enrutar por Type; Payload se decodifica
// después según el destino (response pendiente, stream de ticks, etc.).
type Inbound struct {
	Type      string          `json:"type"`
	CommandID string          `json:"command_id,omitempty"`
	Status    string          `json:"status,omitempty"`
	Symbol    string          `json:"symbol,omitempty"`
	Timeframe string          `json:"timeframe,omitempty"`
	Event     string          `json:"event,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     *WireError      `json:"error,omitempty"`
}

// TickMessage es un tick empujado por el EA (OnTick del chart del bridge).
type TickMessage struct {
	Symbol string
	Tick   domain.Tick
}

// CandleMessage es una vela cerrada empujada por el EA.
type CandleMessage struct {
	Symbol    string
	Timeframe domain.Timeframe
	Candle    domain.Candle
}

// EventMessage es un evento de terminal empujado por el EA
// (trade transaction, cambio de cuenta, etc.).
type EventMessage struct {
	Name    string
	Payload json.RawMessage
}

// decodeResponse convierte un Inbound de tipo response a Response.
func decodeResponse(in *Inbound) (*Response, error) {
	if in.CommandID == "" {
		return nil, fmt.Errorf("response without command_id")
	}
	return &Response{
		Type:      in.Type,
		CommandID: in.CommandID,
		Status:    in.Status,
		Payload:   in.Payload,
		Error:     in.Error,
	}, nil
}
