package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundPrice(t *testing.T) {
	assert.InDelta(t, 1950.25, RoundPrice(1950.25001, 2), 1e-12)
	assert.InDelta(t, 1.09342, RoundPrice(1.093419, 5), 1e-12)
	assert.InDelta(t, 1950.254, RoundPrice(1950.254, -1), 1e-12)
}

func TestRoundVolume(t *testing.T) {
	assert.InDelta(t, 0.02, RoundVolume(0.019, 0.01), 1e-12)
	assert.InDelta(t, 0.5, RoundVolume(0.5, 0), 1e-12)
}

func TestPipSize(t *testing.T) {
	assert.InDelta(t, 0.0001, PipSize(5), 1e-12)
	assert.InDelta(t, 0.0001, PipSize(4), 1e-12)
	assert.InDelta(t, 0.01, PipSize(3), 1e-12)
	assert.InDelta(t, 0.01, PipSize(2), 1e-12)
}

func TestPointsBetween(t *testing.T) {
	assert.InDelta(t, 500, PointsBetween(1950.00, 1945.00, 0.01), 1e-9)
	assert.InDelta(t, 500, PointsBetween(1945.00, 1950.00, 0.01), 1e-9)
	assert.Equal(t, 0.0, PointsBetween(1, 2, 0))
}

func TestPipValue(t *testing.T) {
	// EURUSD estándar: tick value 1 USD por 0.00001 => pip de 0.0001 vale 10 USD
	assert.InDelta(t, 10, PipValue(1, 0.00001, 0.0001), 1e-9)
	assert.Equal(t, 0.0, PipValue(1, 0, 0.0001))
}

func TestEstimateProfit(t *testing.T) {
	// Compra de 0.1 lotes, sube 1.00 con tick 0.01/0.1 USD => 0.1/0.01*0.1*... lineal
	profit := EstimateProfit(OrderTypeBuy, 1, 1950.00, 1951.00, 1, 0.01)
	assert.InDelta(t, 100, profit, 1e-9)

	loss := EstimateProfit(OrderTypeSell, 1, 1950.00, 1951.00, 1, 0.01)
	assert.InDelta(t, -100, loss, 1e-9)

	assert.Equal(t, 0.0, EstimateProfit(OrderTypeBuy, 0, 1, 2, 1, 0.01))
}

func TestEstimateMargin(t *testing.T) {
	// 1 lote de 100oz de oro a 1950 con leverage 1:100
	assert.InDelta(t, 1950, EstimateMargin(1, 100, 1950, 100, 0), 1e-9)
	// MarginInitial fijo domina sobre el cálculo por leverage
	assert.InDelta(t, 500, EstimateMargin(1, 100, 1950, 100, 500), 1e-9)
	assert.Equal(t, 0.0, EstimateMargin(1, 100, 1950, 0, 0))
}
