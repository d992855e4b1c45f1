package domain

import (
	"math"
	"strconv"
)

// RoundPrice redondea un precio a los dígitos del símbolo.
func RoundPrice(price float64, digits int) float64 {
	if digits < 0 {
		return price
	}
	factor := math.Pow10(digits)
	return math.Round(price*factor) / factor
}

// RoundVolume redondea un volumen al múltiplo más cercano del step.
func RoundVolume(volume, step float64) float64 {
	if step <= 0 {
		return volume
	}
	return normalizeToStep(volume, step)
}

// FormatPrice formatea un precio con los dígitos del símbolo.
func FormatPrice(price float64, digits int) string {
	if digits < 0 {
		digits = 5
	}
	return strconv.FormatFloat(price, 'f', digits, 64)
}

// PipSize retorna el tamaño de un pip para un símbolo de N dígitos.
//
// Brokers de 5 y 3 dígitos cotizan en décimas de pip; el pip sigue siendo
// 0.0001 y 0.01 respectivamente.
func PipSize(digits int) float64 {
	switch digits {
	case 5, 4:
		return 0.0001
	case 3, 2:
		return 0.01
	default:
		return math.Pow10(-digits)
	}
}

// PointsBetween retorna la distancia entre dos precios en points.
func PointsBetween(a, b, point float64) float64 {
	if point <= 0 {
		return 0
	}
	return math.Abs(a-b) / point
}

// PipValue calcula el valor monetario de un pip por lote.
//
// tickValue/tickSize vienen de la spec del símbolo; el resultado está en
// la divisa de la cuenta.
func PipValue(tickValue, tickSize, pipSize float64) float64 {
	if tickSize <= 0 {
		return 0
	}
	return tickValue * (pipSize / tickSize)
}

// EstimateProfit estima el P&L de cerrar volume lotes entre dos precios.
//
// Aproximación lineal con tick value de la spec; el P&L real lo reporta
// el terminal en el deal de cierre.
func EstimateProfit(orderType OrderType, volume, openPrice, closePrice, tickValue, tickSize float64) float64 {
	if tickSize <= 0 || volume <= 0 {
		return 0
	}
	distance := closePrice - openPrice
	if orderType.IsSell() {
		distance = -distance
	}
	return distance / tickSize * tickValue * volume
}

// EstimateMargin estima el margen requerido para abrir volume lotes.
//
// Para símbolos con margen por apalancamiento:
//
//	margin = volume * contractSize * price / leverage
//
// Si la spec trae MarginInitial fijo, se usa ese valor por lote.
func EstimateMargin(volume, contractSize, price float64, leverage int64, marginInitial float64) float64 {
	if volume <= 0 {
		return 0
	}
	if marginInitial > 0 {
		return volume * marginInitial
	}
	if leverage <= 0 || contractSize <= 0 || price <= 0 {
		return 0
	}
	return volume * contractSize * price / float64(leverage)
}
