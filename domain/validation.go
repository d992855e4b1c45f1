package domain

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// ValidationError representa un error de validación.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implementa la interfaz error.
func (v *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s' with value '%v': %s", v.Field, v.Value, v.Message)
}

// NewValidationError crea un nuevo ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

var symbolFormatRe = regexp.MustCompile(`^[A-Z0-9._#-]{2,31}$`)
var uuidFormatRe = regexp.MustCompile(`^[0-9A-F]{8}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{12}$`)

// ValidateSymbolFormat valida el formato básico de un símbolo.
//
// Brokers usan sufijos y prefijos variados (EURUSD.m, #AAPL); se aceptan
// alfanuméricos con separadores comunes.
func ValidateSymbolFormat(symbol string) error {
	if symbol == "" {
		return NewValidationError("symbol", symbol, "symbol cannot be empty")
	}

	if !symbolFormatRe.MatchString(strings.ToUpper(symbol)) {
		return NewValidationError("symbol", symbol, "invalid symbol format (expected: 2-31 alphanumeric chars)")
	}

	return nil
}

// ValidateLotSize valida que el lot size respete la spec de volumen.
func ValidateLotSize(lotSize, minLot, maxLot, lotStep float64) error {
	if lotSize <= 0 {
		return NewValidationError("lot_size", lotSize, "lot size must be positive")
	}

	if lotSize < minLot {
		return NewValidationError("lot_size", lotSize, fmt.Sprintf("lot size below minimum: %f", minLot))
	}

	if lotSize > maxLot {
		return NewValidationError("lot_size", lotSize, fmt.Sprintf("lot size exceeds maximum: %f", maxLot))
	}

	// Verificar alineación al step con tolerancia float
	if lotStep > 0 {
		steps := math.Round(lotSize / lotStep)
		if math.Abs(steps*lotStep-lotSize) > floatTolerance {
			return NewValidationError("lot_size", lotSize, fmt.Sprintf("lot size must be multiple of %f", lotStep))
		}
	}

	return nil
}

// ValidateLotSizeBasic valida solo que el lot size sea positivo.
//
// Útil cuando aún no se tiene la spec completa del símbolo.
func ValidateLotSizeBasic(lotSize float64) error {
	if lotSize <= 0 {
		return NewValidationError("lot_size", lotSize, "lot size must be positive")
	}
	return nil
}

// ValidatePrice valida que un precio sea positivo.
func ValidatePrice(price float64) error {
	if price <= 0 {
		return NewValidationError("price", price, "price must be positive")
	}
	return nil
}

// ValidateStopLoss valida un stop loss respecto al precio de entrada.
//
// Para compras el SL debe ir debajo del precio; para ventas, encima.
func ValidateStopLoss(sl, entryPrice float64, orderType OrderType) error {
	if sl == 0 {
		// SL opcional
		return nil
	}

	if err := ValidatePrice(sl); err != nil {
		return err
	}

	switch {
	case orderType.IsBuy():
		if sl >= entryPrice {
			return NewValidationError("stop_loss", sl, fmt.Sprintf("buy stop loss must be below entry price: %f", entryPrice))
		}
	case orderType.IsSell():
		if sl <= entryPrice {
			return NewValidationError("stop_loss", sl, fmt.Sprintf("sell stop loss must be above entry price: %f", entryPrice))
		}
	default:
		return NewValidationError("type", orderType, "invalid order type for SL validation")
	}

	return nil
}

// ValidateTakeProfit valida un take profit respecto al precio de entrada.
//
// Para compras el TP debe ir encima del precio; para ventas, debajo.
func ValidateTakeProfit(tp, entryPrice float64, orderType OrderType) error {
	if tp == 0 {
		// TP opcional
		return nil
	}

	if err := ValidatePrice(tp); err != nil {
		return err
	}

	switch {
	case orderType.IsBuy():
		if tp <= entryPrice {
			return NewValidationError("take_profit", tp, fmt.Sprintf("buy take profit must be above entry price: %f", entryPrice))
		}
	case orderType.IsSell():
		if tp >= entryPrice {
			return NewValidationError("take_profit", tp, fmt.Sprintf("sell take profit must be below entry price: %f", entryPrice))
		}
	default:
		return NewValidationError("type", orderType, "invalid order type for TP validation")
	}

	return nil
}

// ValidateStopsDistance valida que SL/TP respeten la distancia mínima del broker.
//
// stopsLevel viene en points de la spec del símbolo; 0 significa sin mínimo.
func ValidateStopsDistance(price, sl, tp, point float64, stopsLevel int64) error {
	if stopsLevel <= 0 || point <= 0 {
		return nil
	}
	minDistance := float64(stopsLevel) * point

	if sl != 0 && math.Abs(price-sl) < minDistance {
		return NewValidationError("stop_loss", sl, fmt.Sprintf("stop loss closer than stops level (%d points)", stopsLevel))
	}
	if tp != 0 && math.Abs(price-tp) < minDistance {
		return NewValidationError("take_profit", tp, fmt.Sprintf("take profit closer than stops level (%d points)", stopsLevel))
	}
	return nil
}

// ValidateUUIDv7 valida que un UUID sea formato v7 específicamente.
//
// UUIDv7 debe tener:
//   - Formato UUID estándar (8-4-4-4-12)
//   - Versión 7 en el nibble alto del byte 6
//   - Variant RFC 4122 (nibble 8/9/A/B)
func ValidateUUIDv7(uuid string) error {
	if uuid == "" {
		return NewValidationError("uuid", uuid, "uuid cannot be empty")
	}

	if !uuidFormatRe.MatchString(strings.ToUpper(uuid)) {
		return NewValidationError("uuid", uuid, "invalid UUID format")
	}

	if uuid[14] != '7' {
		return NewValidationError("uuid", uuid, fmt.Sprintf("not UUIDv7 (version nibble is '%c', expected '7')", uuid[14]))
	}

	switch strings.ToUpper(string(uuid[19])) {
	case "8", "9", "A", "B":
		return nil
	}
	return NewValidationError("uuid", uuid, fmt.Sprintf("invalid UUID variant (nibble is '%c', expected 8/9/A/B)", uuid[19]))
}

// ValidateCommandID valida que un command_id sea un UUIDv7.
func ValidateCommandID(commandID string) error {
	if commandID == "" {
		return NewValidationError("command_id", commandID, "command_id cannot be empty")
	}
	if err := ValidateUUIDv7(commandID); err != nil {
		return WrapError(ErrInvalidCommandID, "command_id must be UUIDv7", err)
	}
	return nil
}

// ValidateMagicNumber valida que un magic number sea válido.
//
// MagicNumbers en MT5 son no-negativos.
func ValidateMagicNumber(magicNumber int64) error {
	if magicNumber < 0 {
		return NewValidationError("magic_number", magicNumber, "magic_number cannot be negative")
	}
	return nil
}

// ValidateTicket valida que un ticket sea positivo.
func ValidateTicket(ticket int64) error {
	if ticket <= 0 {
		return NewValidationError("ticket", ticket, "ticket must be positive")
	}
	return nil
}

// ValidateDeviation valida la desviación máxima permitida en points.
func ValidateDeviation(deviation int64) error {
	if deviation < 0 {
		return NewValidationError("deviation", deviation, "deviation cannot be negative")
	}
	return nil
}

// ValidateExpiration valida la expiración de una orden pendiente.
//
// Solo aplica cuando TypeTime exige tiempo específico; la expiración debe
// quedar en el futuro.
func ValidateExpiration(typeTime OrderTime, expirationMs, nowMs int64) error {
	switch typeTime {
	case OrderTimeGTC, OrderTimeDay:
		return nil
	case OrderTimeSpecified, OrderTimeSpecifiedDay:
		if expirationMs <= 0 {
			return NewValidationError("expiration", expirationMs, "expiration required for specified time policy")
		}
		if expirationMs <= nowMs {
			return NewValidationError("expiration", expirationMs, "expiration must be in the future")
		}
		return nil
	}
	return NewValidationError("type_time", typeTime, "invalid order time policy")
}

// ValidateDateRange valida un rango temporal from/to.
func ValidateDateRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return NewValidationError("date_range", nil, "from and to are required")
	}
	if !to.After(from) {
		return NewValidationError("date_range", nil, "to must be after from")
	}
	return nil
}

// ValidateCredentials valida credenciales de login al trade server.
func ValidateCredentials(login int64, password, server string) error {
	if login <= 0 {
		return NewValidationError("login", login, "login must be positive")
	}
	if password == "" {
		return NewValidationError("password", "", "password cannot be empty")
	}
	if server == "" {
		return NewValidationError("server", server, "server cannot be empty")
	}
	return nil
}

// ValidateTradeRequest valida un TradeRequest completo antes de enviarlo.
//
// Reglas por acción:
//   - DEAL/PENDING: symbol, volume y tipo de orden obligatorios
//   - PENDING: precio obligatorio
//   - SLTP: position obligatoria
//   - MODIFY/REMOVE: order obligatoria
//   - CLOSE_BY: position y position_by obligatorias
func ValidateTradeRequest(req *TradeRequest) error {
	if req == nil {
		return NewError(ErrMissingRequiredField, "trade request is nil")
	}

	if err := ValidateMagicNumber(req.Magic); err != nil {
		return err
	}
	if err := ValidateDeviation(req.Deviation); err != nil {
		return err
	}

	switch req.Action {
	case TradeActionDeal, TradeActionPending:
		if err := ValidateSymbolFormat(req.Symbol); err != nil {
			return err
		}
		if err := ValidateLotSizeBasic(req.Volume); err != nil {
			return err
		}
		if !req.Type.IsValid() || req.Type == OrderTypeCloseBy {
			return NewValidationError("type", req.Type, "invalid order type for deal/pending action")
		}
		if req.Action == TradeActionPending {
			if !req.Type.IsPending() {
				return NewValidationError("type", req.Type, "pending action requires pending order type")
			}
			if err := ValidatePrice(req.Price); err != nil {
				return err
			}
		}
		// SL/TP contra el precio de referencia (para market puede venir 0)
		refPrice := req.Price
		if refPrice > 0 {
			if err := ValidateStopLoss(req.StopLoss, refPrice, req.Type); err != nil {
				return err
			}
			if err := ValidateTakeProfit(req.TakeProfit, refPrice, req.Type); err != nil {
				return err
			}
		}
		return nil

	case TradeActionSLTP:
		return ValidateTicket(req.Position)

	case TradeActionModify, TradeActionRemove:
		return ValidateTicket(req.Order)

	case TradeActionCloseBy:
		if err := ValidateTicket(req.Position); err != nil {
			return err
		}
		return ValidateTicket(req.PositionBy)
	}

	return NewValidationError("action", req.Action, "invalid trade action")
}
