package mt5

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/mt5/bridge"
	"github.com/xKoRx/mt5/domain"
)

func newTestClient(t *testing.T, tx *fakeTransport) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.AccountStorePath = filepath.Join(t.TempDir(), "accounts.db")
	return NewWithTransport(cfg, tx, nil)
}

func TestClientInitialize(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodInitialize, nil)
	c := newTestClient(t, tx)

	require.False(t, c.IsConnected())
	require.NoError(t, c.Initialize(context.Background()))
	assert.True(t, c.IsConnected())
	assert.False(t, c.IsLoggedIn(), "sin credenciales no hay login")
}

func TestClientInitializeWithCredentials(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodInitialize, nil)

	cfg := DefaultConfig()
	cfg.AccountStorePath = filepath.Join(t.TempDir(), "accounts.db")
	WithCredentials(123456, "secret", "Broker-Demo")(cfg)
	c := NewWithTransport(cfg, tx, nil)

	require.NoError(t, c.Initialize(context.Background()))
	assert.True(t, c.IsLoggedIn())
	assert.Equal(t, int64(123456), c.CurrentLogin())
}

func TestClientLogin(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodLogin, nil)
	c := newTestClient(t, tx)

	require.NoError(t, c.Login(context.Background(), 123456, "secret123", "Broker-Demo"))
	assert.True(t, c.IsLoggedIn())
	assert.Equal(t, int64(123456), c.CurrentLogin())

	c.Logout()
	assert.False(t, c.IsLoggedIn())
	assert.Zero(t, c.CurrentLogin())
}

func TestClientLoginValidatesCredentials(t *testing.T) {
	c := newTestClient(t, newFakeTransport())

	err := c.Login(context.Background(), 0, "secret123", "Broker-Demo")
	require.Error(t, err)
	assert.Equal(t, int64(1), c.ErrorCount())
	assert.Error(t, c.LastError())

	c.ResetErrors()
	assert.Zero(t, c.ErrorCount())
	assert.NoError(t, c.LastError())
}

func TestClientPing(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodPing, nil)
	c := newTestClient(t, tx)

	rtt, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rtt, time.Duration(0))
}

func TestClientEvents(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodInitialize, nil)
	c := newTestClient(t, tx)

	connected := make(chan struct{}, 1)
	require.NoError(t, c.On(EventConnect, func() {
		connected <- struct{}{}
	}))

	require.NoError(t, c.Initialize(context.Background()))
	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatal("no llegó el evento de conexión")
	}
}

func TestClientAccountProfiles(t *testing.T) {
	c := newTestClient(t, newFakeTransport())

	require.NoError(t, c.SaveAccount("demo", 123456, "Broker-Demo", "pruebas"))

	profiles, err := c.ListAccounts()
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "demo", profiles[0].Name)

	require.NoError(t, c.RemoveAccount("demo"))
	profiles, err = c.ListAccounts()
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestClientSwitchAccount(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodLogin, nil)
	c := newTestClient(t, tx)

	require.NoError(t, c.SaveAccount("real", 654321, "Broker-Live", ""))
	require.NoError(t, c.SwitchAccount(context.Background(), "real", "fresh-password"))
	assert.Equal(t, int64(654321), c.CurrentLogin())

	err := c.SwitchAccount(context.Background(), "nope", "pw")
	require.Error(t, err)
	assert.Equal(t, domain.ErrNotFound, domain.CodeOf(err))
}

func TestClientAutoReconnectToggle(t *testing.T) {
	c := newTestClient(t, newFakeTransport())

	require.True(t, c.AutoReconnectEnabled())
	c.DisableAutoReconnect()
	assert.False(t, c.AutoReconnectEnabled())
	c.EnableAutoReconnect()
	assert.True(t, c.AutoReconnectEnabled())
}

func TestClientManualReconnect(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodInitialize, nil)
	c := newTestClient(t, tx)

	reconnected := make(chan int, 1)
	require.NoError(t, c.On(EventReconnect, func(attempt int) {
		reconnected <- attempt
	}))

	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Reconnect(context.Background()))
	assert.True(t, c.IsConnected())

	select {
	case attempt := <-reconnected:
		assert.Zero(t, attempt, "reconexión manual, sin intento de backoff")
	case <-time.After(time.Second):
		t.Fatal("no llegó el evento de reconexión")
	}
}

func TestClientStatus(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodInitialize, nil)
	c := newTestClient(t, tx)

	st := c.Status()
	assert.False(t, st.Initialized)

	require.NoError(t, c.Initialize(context.Background()))
	st = c.Status()
	assert.True(t, st.Initialized)
	assert.True(t, st.Connected)
	assert.NotZero(t, st.ConnectedAtMs)
}

func TestClientDisconnect(t *testing.T) {
	tx := newFakeTransport()
	tx.respond(bridge.MethodInitialize, nil)
	c := newTestClient(t, tx)

	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Disconnect())
	assert.False(t, c.IsConnected())
}

func TestClientServiceAccessors(t *testing.T) {
	c := newTestClient(t, newFakeTransport())

	assert.NotNil(t, c.Account())
	assert.NotNil(t, c.Symbols())
	assert.NotNil(t, c.Terminal())
	assert.NotNil(t, c.Data())
	assert.NotNil(t, c.History())
	assert.NotNil(t, c.Trade())
	assert.NotNil(t, c.Risk())
	assert.NotNil(t, c.Validator())
	assert.NotNil(t, c.Config())
}
