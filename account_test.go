package mt5

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/mt5/bridge"
	"github.com/xKoRx/mt5/domain"
)

func testAccountInfo() *domain.AccountInfo {
	return &domain.AccountInfo{
		Login:        123456,
		TradeMode:    0,
		Leverage:     100,
		TradeAllowed: true,
		TradeExpert:  true,
		Balance:      10000,
		Equity:       9800,
		Profit:       -200,
		Margin:       500,
		MarginFree:   9300,
		MarginLevel:  1960,
		MarginSOCall: 100,
		Name:         "Test Trader",
		Server:       "Demo-Server",
		Currency:     "USD",
	}
}

func TestAccountGet(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodAccountInfo, testAccountInfo())
	svc := NewAccountService(tx, nil)

	info, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(123456), info.Login)
	assert.Equal(t, 10000.0, info.Balance)
	assert.True(t, info.IsDemo())
	assert.False(t, info.IsReal())
}

func TestAccountGetAttribute(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodAccountInfo, testAccountInfo())
	svc := NewAccountService(tx, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		want interface{}
	}{
		{"balance", 10000.0},
		{"equity", 9800.0},
		{"currency", "USD"},
		{"server", "Demo-Server"},
		{"leverage", int64(100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.GetAttribute(ctx, tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := svc.GetAttribute(ctx, "no_such_attribute")
	require.Error(t, err)
	assert.Equal(t, domain.ErrInvalidRequest, domain.CodeOf(err))
}

func TestAccountCheck(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodAccountInfo, testAccountInfo())
	svc := NewAccountService(tx, nil)

	check, err := svc.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, check.TradeAllowed)
	assert.True(t, check.ExpertAllowed)
	assert.True(t, check.MarginOK)
	assert.True(t, check.IsDemo)
	assert.True(t, check.Connected)
}

func TestAccountCheckMarginCall(t *testing.T) {
	info := testAccountInfo()
	info.MarginLevel = 90 // debajo del margin call (100)

	tx := newFakeTransport()
	tx.respond(bridge.MethodAccountInfo, info)
	svc := NewAccountService(tx, nil)

	check, err := svc.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, check.MarginOK)
}

func TestAccountCalculateHealth(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodAccountInfo, testAccountInfo())
	svc := NewAccountService(tx, nil)

	health, err := svc.Calculate(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 200.0, health.DrawdownAbsolute, 1e-9)
	assert.InDelta(t, 2.0, health.DrawdownPercent, 1e-9)
	assert.InDelta(t, -2.0, health.ProfitPercent, 1e-9)
	assert.InDelta(t, 9300.0/9800.0, health.FreeMarginRatio, 1e-9)
}

func TestAccountCalculateHealthFlatAccount(t *testing.T) {
	info := testAccountInfo()
	info.Equity = info.Balance
	info.Margin = 0
	info.Profit = 0

	tx := newFakeTransport()
	tx.respond(bridge.MethodAccountInfo, info)
	svc := NewAccountService(tx, nil)

	health, err := svc.Calculate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, health.DrawdownAbsolute)
	assert.Zero(t, health.DrawdownPercent)
}

func TestAccountMarginRequired(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodOrderCalcMargin, map[string]interface{}{"margin": 332.15})
	svc := NewAccountService(tx, nil)

	margin, err := svc.MarginRequired(context.Background(), "EURUSD", domain.OrderTypeBuy, 0.1, 1.1000)
	require.NoError(t, err)
	assert.InDelta(t, 332.15, margin, 1e-9)
}

func TestAccountExportCSVEscapesFields(t *testing.T) {
	info := testAccountInfo()
	info.Name = `Trader, "The Best"`

	tx := newFakeTransport()
	tx.respond(bridge.MethodAccountInfo, info)
	svc := NewAccountService(tx, nil)

	data, err := svc.ExportCSV(context.Background())
	require.NoError(t, err)

	out := string(data)
	assert.True(t, strings.HasPrefix(out, "login,name,server"))
	assert.Contains(t, out, `"Trader, ""The Best"""`)
}
