package mt5

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/mt5/bridge"
	"github.com/xKoRx/mt5/domain"
)

func newRiskFixture(t *testing.T) (*fakeTransport, *RiskService) {
	t.Helper()
	tx := newFakeTransport()
	tx.respond(bridge.MethodAccountInfo, testAccountInfo())
	tx.respond(bridge.MethodSymbolInfo, testSymbolInfo())

	account := NewAccountService(tx, nil)
	symbols := NewSymbolService(tx, nil, time.Minute)
	return tx, NewRiskService(account, symbols, nil)
}

func TestRiskCalculateSizeByPercent(t *testing.T) {
	_, svc := newRiskFixture(t)

	// Balance 10000, 1% = 100 USD. Distancia 100 points a 1 USD/point/lote
	// → lote crudo 1.0.
	result, err := svc.CalculateSize(context.Background(), SizeRequest{
		Symbol:      "EURUSD",
		EntryPrice:  1.10000,
		StopLoss:    1.09900,
		RiskPercent: 1,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, result.LotSize, 1e-9)
	assert.InDelta(t, 100.0, result.RiskAmount, 1e-6)
}

func TestRiskCalculateSizeByAmount(t *testing.T) {
	_, svc := newRiskFixture(t)

	result, err := svc.CalculateSize(context.Background(), SizeRequest{
		Symbol:     "EURUSD",
		EntryPrice: 1.10000,
		StopLoss:   1.09950, // 50 points
		RiskAmount: 25,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, result.LotSize, 1e-9)
}

func TestRiskCalculateSizeClampsToLimit(t *testing.T) {
	_, svc := newRiskFixture(t)
	limits := DefaultRiskLimits()
	limits.MaxPositionSize = 0.5
	svc.SetLimits(limits)

	result, err := svc.CalculateSize(context.Background(), SizeRequest{
		Symbol:      "EURUSD",
		EntryPrice:  1.10000,
		StopLoss:    1.09900,
		RiskPercent: 2, // pediría 2.0 lotes
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, result.LotSize, 1e-9)
	assert.True(t, result.Clamped)
	assert.Less(t, result.RiskAmount, 200.0, "el riesgo real baja con el clamp")
}

func TestRiskCalculateSizeRequiresStops(t *testing.T) {
	_, svc := newRiskFixture(t)

	_, err := svc.CalculateSize(context.Background(), SizeRequest{
		Symbol:      "EURUSD",
		EntryPrice:  1.10000,
		RiskPercent: 1,
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrInvalidStops, domain.CodeOf(err))
}

func TestRiskCalculateRisk(t *testing.T) {
	_, svc := newRiskFixture(t)

	risk, err := svc.CalculateRisk(context.Background(), "EURUSD", 0.5, 1.10000, 1.09900)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, risk, 1e-6)
}

func TestRiskValidateVolumeLimit(t *testing.T) {
	_, svc := newRiskFixture(t)
	limits := DefaultRiskLimits()
	limits.MaxPositionSize = 1
	svc.SetLimits(limits)

	req := &domain.TradeRequest{
		Action: domain.TradeActionDeal,
		Symbol: "EURUSD",
		Type:   domain.OrderTypeBuy,
		Volume: 2,
	}
	check, err := svc.Validate(context.Background(), req, 0)
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	require.Len(t, check.Violations, 1)
	assert.Contains(t, check.Violations[0], "max position size")
}

func TestRiskValidatePositionCountLimit(t *testing.T) {
	_, svc := newRiskFixture(t)
	limits := DefaultRiskLimits()
	limits.MaxPositions = 5
	svc.SetLimits(limits)

	req := &domain.TradeRequest{
		Action: domain.TradeActionDeal,
		Symbol: "EURUSD",
		Type:   domain.OrderTypeBuy,
		Volume: 0.1,
	}
	check, err := svc.Validate(context.Background(), req, 5)
	require.NoError(t, err)
	assert.False(t, check.Allowed)
}

func TestRiskValidatePerTradeRisk(t *testing.T) {
	_, svc := newRiskFixture(t)
	limits := DefaultRiskLimits()
	limits.MaxRiskPerTrade = 1 // 1% de 10000 = 100 USD
	svc.SetLimits(limits)

	// 2 lotes a 100 points = 200 USD de riesgo
	req := &domain.TradeRequest{
		Action:   domain.TradeActionDeal,
		Symbol:   "EURUSD",
		Type:     domain.OrderTypeBuy,
		Volume:   2,
		Price:    1.10000,
		StopLoss: 1.09900,
	}
	check, err := svc.Validate(context.Background(), req, 0)
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.InDelta(t, 200.0, check.RiskAmount, 1e-6)
	assert.InDelta(t, 2.0, check.RiskPct, 1e-6)
}

func TestRiskValidateMinRiskReward(t *testing.T) {
	_, svc := newRiskFixture(t)
	limits := DefaultRiskLimits()
	limits.MinRiskReward = 2
	svc.SetLimits(limits)

	// RR 1:1, debajo del mínimo 2
	req := &domain.TradeRequest{
		Action:     domain.TradeActionDeal,
		Symbol:     "EURUSD",
		Type:       domain.OrderTypeBuy,
		Volume:     0.1,
		Price:      1.10000,
		StopLoss:   1.09900,
		TakeProfit: 1.10100,
	}
	check, err := svc.Validate(context.Background(), req, 0)
	require.NoError(t, err)
	assert.False(t, check.Allowed)
}

func TestRiskValidateAllowed(t *testing.T) {
	_, svc := newRiskFixture(t)

	req := &domain.TradeRequest{
		Action:     domain.TradeActionDeal,
		Symbol:     "EURUSD",
		Type:       domain.OrderTypeBuy,
		Volume:     0.1,
		Price:      1.10000,
		StopLoss:   1.09900,
		TakeProfit: 1.10300,
	}
	check, err := svc.Validate(context.Background(), req, 2)
	require.NoError(t, err)
	assert.True(t, check.Allowed)
	assert.Empty(t, check.Violations)
}

func TestRiskPortfolio(t *testing.T) {
	_, svc := newRiskFixture(t)

	positions := []domain.Position{
		{Ticket: 1, Symbol: "EURUSD", Type: domain.OrderTypeBuy, Volume: 1,
			PriceOpen: 1.10000, StopLoss: 1.09900, Profit: 10},
		{Ticket: 2, Symbol: "EURUSD", Type: domain.OrderTypeSell, Volume: 0.5,
			PriceOpen: 1.10000, Profit: -3}, // sin SL
		{Ticket: 3, Symbol: "EURUSD", Type: domain.OrderTypeBuy, Volume: 1,
			PriceOpen: 1.10000, StopLoss: 1.10050, Profit: 8}, // SL en ganancia
	}

	pr, err := svc.Portfolio(context.Background(), positions)
	require.NoError(t, err)
	assert.Equal(t, 3, pr.OpenPositions)
	assert.Equal(t, 1, pr.UnprotectedPos)
	assert.InDelta(t, 100.0, pr.TotalRisk, 1e-6, "sólo el SL perdedor arriesga capital")
	assert.InDelta(t, 1.0, pr.TotalRiskPct, 1e-6)
	assert.InDelta(t, 15.0, pr.FloatingPL, 1e-9)
	assert.True(t, pr.WithinLimits)
}

func TestRiskCheckHealthy(t *testing.T) {
	_, svc := newRiskFixture(t)

	// Fixture: drawdown 2%, margin level 1960%, riesgo 1% del balance.
	positions := []domain.Position{
		{Ticket: 1, Symbol: "EURUSD", Type: domain.OrderTypeBuy, Volume: 1,
			PriceOpen: 1.10000, StopLoss: 1.09900},
	}
	check, err := svc.Check(context.Background(), positions)
	require.NoError(t, err)
	assert.True(t, check.OK())
	assert.Empty(t, check.Issues)
	assert.InDelta(t, 1960.0, check.MarginLevel, 1e-9)
	assert.InDelta(t, 2.0, check.DrawdownPct, 1e-9)
	assert.InDelta(t, 1.0, check.TotalRisk, 1e-6)
}

func TestRiskCheckViolations(t *testing.T) {
	_, svc := newRiskFixture(t)
	limits := DefaultRiskLimits()
	limits.MaxTotalRisk = 0.5    // fixture arriesga 1%
	limits.MaxDrawdown = 1       // fixture tiene 2%
	limits.MinMarginLevel = 2000 // fixture reporta 1960%
	svc.SetLimits(limits)

	positions := []domain.Position{
		{Ticket: 1, Symbol: "EURUSD", Type: domain.OrderTypeBuy, Volume: 1,
			PriceOpen: 1.10000, StopLoss: 1.09900},
	}
	check, err := svc.Check(context.Background(), positions)
	require.NoError(t, err)
	assert.False(t, check.OK())
	assert.False(t, check.ExposureOK)
	assert.False(t, check.MarginOK)
	assert.False(t, check.DrawdownOK)
	assert.Len(t, check.Issues, 3)
}

func TestRiskCheckFlatAccountSkipsMargin(t *testing.T) {
	_, svc := newRiskFixture(t)
	limits := DefaultRiskLimits()
	limits.MinMarginLevel = 5000
	limits.MaxDrawdown = 0 // deshabilitado
	svc.SetLimits(limits)

	check, err := svc.Check(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, check.MarginOK, "sin posiciones el margin level no aplica")
	assert.True(t, check.OK())
}

func TestRiskPortfolioOverLimit(t *testing.T) {
	_, svc := newRiskFixture(t)
	limits := DefaultRiskLimits()
	limits.MaxTotalRisk = 0.5
	svc.SetLimits(limits)

	positions := []domain.Position{
		{Ticket: 1, Symbol: "EURUSD", Type: domain.OrderTypeBuy, Volume: 1,
			PriceOpen: 1.10000, StopLoss: 1.09900},
	}
	pr, err := svc.Portfolio(context.Background(), positions)
	require.NoError(t, err)
	assert.False(t, pr.WithinLimits)
}
