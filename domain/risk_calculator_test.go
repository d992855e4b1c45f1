package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateLotByRisk_Success(t *testing.T) {
	lot, err := CalculateLotByRisk(5000, 1, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.02, lot, 1e-9)
}

func TestCalculateLotByRisk_InvalidInputs(t *testing.T) {
	tests := []struct {
		name           string
		distancePoints float64
		tickValue      float64
		riskAmount     float64
	}{
		{"zero distance", 0, 1, 100},
		{"zero tick", 5000, 0, 100},
		{"zero risk", 5000, 1, 0},
		{"negative distance", -100, 1, 100},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CalculateLotByRisk(tc.distancePoints, tc.tickValue, tc.riskAmount)
			assert.Error(t, err)
		})
	}
}

func TestCalculateLotByRiskWithCosts(t *testing.T) {
	// Con comisión por lote el lote resultante baja respecto al cálculo sin costos
	base, err := CalculateLotByRisk(5000, 1, 100)
	require.NoError(t, err)

	withCosts, err := CalculateLotByRiskWithCosts(5000, 1, 100, 15.65)
	require.NoError(t, err)

	assert.Less(t, withCosts, base)
	assert.InDelta(t, 100/(5000*1+15.65), withCosts, 1e-9)
}

func TestCalculateLotByRiskWithCosts_NegativeCost(t *testing.T) {
	_, err := CalculateLotByRiskWithCosts(5000, 1, 100, -1)
	assert.Error(t, err)
}

func TestRiskAmountForLot_Roundtrip(t *testing.T) {
	lot, err := CalculateLotByRiskWithCosts(2000, 1.5, 1500, 7)
	require.NoError(t, err)
	require.False(t, math.IsNaN(lot))

	risk, err := RiskAmountForLot(lot, 2000, 1.5, 7)
	require.NoError(t, err)
	assert.InDelta(t, 1500, risk, 1e-6)
}

func TestRiskAmountForLot_InvalidInputs(t *testing.T) {
	_, err := RiskAmountForLot(0, 2000, 1.5, 0)
	assert.Error(t, err)

	_, err = RiskAmountForLot(0.1, 0, 1.5, 0)
	assert.Error(t, err)
}
