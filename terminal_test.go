package mt5

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/mt5/bridge"
	"github.com/xKoRx/mt5/domain"
)

func testTerminalInfo() *domain.TerminalInfo {
	return &domain.TerminalInfo{
		Connected:      true,
		TradeAllowed:   true,
		DLLsAllowed:    true,
		Build:          4200,
		MaxBars:        100000,
		PingLastMicros: 12500,
		Company:        "MetaQuotes Ltd.",
		Name:           "MetaTrader 5",
		Language:       "English",
		Path:           `C:\Program Files\MetaTrader 5`,
	}
}

func TestTerminalGet(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodTerminalInfo, testTerminalInfo())
	svc := NewTerminalService(tx, nil)

	info, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4200, info.Build)
	assert.True(t, info.Connected)
}

func TestTerminalGetAttribute(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodTerminalInfo, testTerminalInfo())
	svc := NewTerminalService(tx, nil)
	ctx := context.Background()

	build, err := svc.GetAttribute(ctx, "build")
	require.NoError(t, err)
	assert.Equal(t, 4200, build)

	name, err := svc.GetAttribute(ctx, "Name")
	require.NoError(t, err)
	assert.Equal(t, "MetaTrader 5", name)

	_, err = svc.GetAttribute(ctx, "no_such_attr")
	require.Error(t, err)
	assert.Equal(t, domain.ErrInvalidRequest, domain.CodeOf(err))
}

func TestTerminalCheck(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodTerminalInfo, testTerminalInfo())
	svc := NewTerminalService(tx, nil)

	check, err := svc.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, check.Connected)
	assert.True(t, check.TradeAllowed)
	assert.True(t, check.DLLsAllowed)
}

func TestTerminalCheckCompatibilityClean(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodTerminalInfo, testTerminalInfo())
	svc := NewTerminalService(tx, nil)

	issues, err := svc.CheckCompatibility(context.Background())
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestTerminalCheckCompatibilityIssues(t *testing.T) {
	info := testTerminalInfo()
	info.Build = 3000 // debajo del mínimo soportado
	info.DLLsAllowed = false
	info.TradeAllowed = false

	tx := newFakeTransport()
	tx.respond(bridge.MethodTerminalInfo, info)
	svc := NewTerminalService(tx, nil)

	issues, err := svc.CheckCompatibility(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 3)

	var errors, warnings int
	for _, issue := range issues {
		switch issue.Severity {
		case "error":
			errors++
		case "warning":
			warnings++
		}
	}
	assert.Equal(t, 2, errors, "build viejo y DLLs deshabilitadas")
	assert.Equal(t, 1, warnings, "trading algorítmico apagado")
}

func TestTerminalProperties(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodTerminalInfo, testTerminalInfo())
	svc := NewTerminalService(tx, nil)

	props, err := svc.Properties(context.Background())
	require.NoError(t, err)
	assert.Contains(t, props, "network")
	assert.Equal(t, 4200, props["display"]["build"])
}

func TestTerminalPrintInfo(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodTerminalInfo, testTerminalInfo())
	svc := NewTerminalService(tx, nil)

	var buf bytes.Buffer
	require.NoError(t, svc.PrintInfo(context.Background(), &buf))
	assert.Contains(t, buf.String(), "MetaTrader 5")
	assert.Contains(t, buf.String(), "4200")
}

func TestTerminalExport(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodTerminalInfo, testTerminalInfo())
	svc := NewTerminalService(tx, nil)

	data, err := svc.Export(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"build"`)
}
