package mt5

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/mt5/domain"
)

func TestValidatorDefaultRules(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		rule    string
		value   interface{}
		wantErr bool
	}{
		{"volume ok", RuleVolume, 0.1, false},
		{"volume zero", RuleVolume, 0.0, true},
		{"volume wrong type", RuleVolume, "0.1", true},
		{"price ok", RulePrice, 1.1000, false},
		{"price negative", RulePrice, -1.0, true},
		{"order type ok", RuleOrderType, domain.OrderTypeBuyLimit, false},
		{"order type invalid", RuleOrderType, domain.OrderType(99), true},
		{"magic ok", RuleMagic, int64(777), false},
		{"magic negative", RuleMagic, int64(-1), true},
		{"deviation ok", RuleDeviation, int64(10), false},
		{"timeframe ok", RuleTimeframe, domain.TimeframeH1, false},
		{"timeframe invalid", RuleTimeframe, domain.Timeframe(7), true},
		{"ticket ok", RuleTicket, int64(12345), false},
		{"ticket zero", RuleTicket, int64(0), true},
		{"symbol ok", RuleSymbol, "EURUSD", false},
		{"symbol bad", RuleSymbol, "eur usd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.rule, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatorStopsRule(t *testing.T) {
	v := NewValidator()

	err := v.Validate(RuleStops, StopsArgs{
		OrderType: domain.OrderTypeBuy,
		Entry:     1.10000,
		StopLoss:  1.09900,
	})
	require.NoError(t, err)

	err = v.Validate(RuleStops, StopsArgs{
		OrderType: domain.OrderTypeBuy,
		Entry:     1.10000,
		StopLoss:  1.10100, // SL arriba de la entrada en un BUY
	})
	require.Error(t, err)
}

func TestValidatorDateRangeRule(t *testing.T) {
	v := NewValidator()
	now := time.Now()

	require.NoError(t, v.Validate(RuleDateRange, DateRangeArgs{
		From: now.Add(-time.Hour),
		To:   now,
	}))
	require.Error(t, v.Validate(RuleDateRange, DateRangeArgs{
		From: now,
		To:   now.Add(-time.Hour),
	}))
}

func TestValidatorCredentialsRule(t *testing.T) {
	v := NewValidator()

	require.NoError(t, v.Validate(RuleCredentials, CredentialsArgs{
		Login:    123456,
		Password: "secret123",
		Server:   "Broker-Demo",
	}))
	require.Error(t, v.Validate(RuleCredentials, CredentialsArgs{
		Login:    0,
		Password: "secret123",
		Server:   "Broker-Demo",
	}))
}

func TestValidatorUnknownRule(t *testing.T) {
	v := NewValidator()

	err := v.Validate("no_such_rule", 1)
	require.Error(t, err)
	assert.Equal(t, domain.ErrInvalidRequest, domain.CodeOf(err))
}

func TestValidatorDisabledRulePasses(t *testing.T) {
	v := NewValidator()

	require.Error(t, v.Validate(RuleVolume, 0.0))
	require.True(t, v.SetEnabled(RuleVolume, false))
	require.NoError(t, v.Validate(RuleVolume, 0.0))
}

func TestValidatorUpdateRule(t *testing.T) {
	v := NewValidator()

	v.Update(RuleVolume, "sólo lotes enteros", func(value interface{}) error {
		lot, ok := value.(float64)
		if !ok || lot != float64(int(lot)) {
			return domain.NewError(domain.ErrInvalidVolume, "lot must be whole")
		}
		return nil
	})

	require.NoError(t, v.Validate(RuleVolume, 2.0))
	require.Error(t, v.Validate(RuleVolume, 0.5))
}

func TestValidatorValidateMultiple(t *testing.T) {
	v := NewValidator()

	err := v.ValidateMultiple(map[string]interface{}{
		RuleVolume: 0.1,
		RulePrice:  1.1000,
		RuleMagic:  int64(7),
	})
	require.NoError(t, err)

	err = v.ValidateMultiple(map[string]interface{}{
		RuleVolume: 0.1,
		RulePrice:  -5.0,
	})
	require.Error(t, err)
}

func TestValidatorRuleLookup(t *testing.T) {
	v := NewValidator()

	rule, ok := v.Rule(RuleVolume)
	require.True(t, ok)
	assert.Equal(t, RuleVolume, rule.Name)
	assert.True(t, rule.Enabled)

	_, ok = v.Rule("nope")
	assert.False(t, ok)

	assert.GreaterOrEqual(t, len(v.Rules()), 14)
}
