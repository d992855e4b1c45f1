package domain

import (
	"errors"
	"fmt"
)

// ErrorCode representa un código de error del dominio de trading.
type ErrorCode string

// Códigos de error estándar
const (
	// ErrNoError indica éxito (sin error)
	ErrNoError ErrorCode = "NO_ERROR"

	// Errores de validación
	ErrInvalidPrice         ErrorCode = "INVALID_PRICE"
	ErrInvalidStops         ErrorCode = "INVALID_STOPS"
	ErrInvalidVolume        ErrorCode = "INVALID_VOLUME"
	ErrInvalidSymbol        ErrorCode = "INVALID_SYMBOL"
	ErrInvalidRequest       ErrorCode = "INVALID_REQUEST"
	ErrInvalidMagicNumber   ErrorCode = "INVALID_MAGIC_NUMBER"
	ErrInvalidCommandID     ErrorCode = "INVALID_COMMAND_ID"
	ErrInvalidFill          ErrorCode = "INVALID_FILL"
	ErrInvalidExpiration    ErrorCode = "INVALID_EXPIRATION"
	ErrMissingRequiredField ErrorCode = "MISSING_REQUIRED_FIELD"

	// Errores de mercado/broker
	ErrMarketClosed    ErrorCode = "MARKET_CLOSED"
	ErrNoMoney         ErrorCode = "NO_MONEY"
	ErrPriceChanged    ErrorCode = "PRICE_CHANGED"
	ErrOffQuotes       ErrorCode = "OFF_QUOTES"
	ErrBrokerBusy      ErrorCode = "BROKER_BUSY"
	ErrRequote         ErrorCode = "REQUOTE"
	ErrTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"
	ErrTimeout         ErrorCode = "TIMEOUT"
	ErrTradeDisabled   ErrorCode = "TRADE_DISABLED"
	ErrLongOnly        ErrorCode = "LONG_ONLY"
	ErrShortOnly       ErrorCode = "SHORT_ONLY"
	ErrCloseOnly       ErrorCode = "CLOSE_ONLY"
	ErrRejected        ErrorCode = "REJECTED"
	ErrLimitVolume     ErrorCode = "LIMIT_VOLUME"
	ErrLimitOrders     ErrorCode = "LIMIT_ORDERS"
	ErrPositionClosed  ErrorCode = "POSITION_CLOSED"
	ErrFrozen          ErrorCode = "FROZEN"

	// Errores de sistema
	ErrUnknown           ErrorCode = "UNKNOWN"
	ErrNotConnected      ErrorCode = "NOT_CONNECTED"
	ErrConnectionLost    ErrorCode = "CONNECTION_LOST"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrAuthFailed        ErrorCode = "AUTH_FAILED"
	ErrPolicyViolation   ErrorCode = "POLICY_VIOLATION"
	ErrSpecMissing       ErrorCode = "SPEC_MISSING"
	ErrQuoteStale        ErrorCode = "QUOTE_STALE"
	ErrRiskPolicyMissing ErrorCode = "RISK_POLICY_MISSING"
)

// TradingError representa un error del dominio de trading con contexto.
type TradingError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implementa la interfaz error.
func (e *TradingError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implementa la interfaz errors.Unwrap.
func (e *TradingError) Unwrap() error {
	return e.Wrapped
}

// WithDetail agrega un detalle al error.
func (e *TradingError) WithDetail(key string, value interface{}) *TradingError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewError crea un nuevo TradingError.
//
// Example:
//
//	err := domain.NewError(domain.ErrInvalidSymbol, "symbol not known by broker")
func NewError(code ErrorCode, message string) *TradingError {
	return &TradingError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError envuelve un error existente con contexto de trading.
//
// Example:
//
//	err := domain.WrapError(domain.ErrConnectionLost, "pipe read failed", originalErr)
func WrapError(code ErrorCode, message string, wrapped error) *TradingError {
	return &TradingError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: wrapped,
	}
}

// CodeOf extrae el ErrorCode de un error cualquiera.
//
// Retorna ErrUnknown si el error no lleva un TradingError en su cadena.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrNoError
	}
	var te *TradingError
	if errors.As(err, &te) {
		return te.Code
	}
	return ErrUnknown
}

// IsRetryable indica si un error es retriable (puede reintentarse).
func IsRetryable(code ErrorCode) bool {
	switch code {
	case ErrBrokerBusy, ErrRequote, ErrTimeout, ErrTooManyRequests,
		ErrOffQuotes, ErrPriceChanged:
		return true
	default:
		return false
	}
}

// IsFatal indica si un error es fatal (no se debe reintentar).
func IsFatal(code ErrorCode) bool {
	switch code {
	case ErrInvalidSymbol, ErrInvalidMagicNumber, ErrInvalidCommandID,
		ErrInvalidRequest, ErrMissingRequiredField, ErrInvalidVolume,
		ErrInvalidStops, ErrInvalidFill, ErrTradeDisabled, ErrAuthFailed:
		return true
	default:
		return false
	}
}
