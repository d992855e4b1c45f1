package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/mt5/domain"
	"github.com/xKoRx/mt5/telemetry"
)

// fakePipeServer implementa ipc.PipeServer sobre un net.Pipe en memoria.
// El otro extremo del pipe simula al bridge EA.
type fakePipeServer struct {
	conn net.Conn
	name string
}

func newFakePipeServer() (*fakePipeServer, net.Conn) {
	server, client := net.Pipe()
	return &fakePipeServer{conn: server, name: "mt5_bridge_test"}, client
}

func (f *fakePipeServer) Read(p []byte) (int, error)  { return f.conn.Read(p) }
func (f *fakePipeServer) Write(p []byte) (int, error) { return f.conn.Write(p) }
func (f *fakePipeServer) Close() error                { return f.conn.Close() }
func (f *fakePipeServer) SetReadDeadline(t time.Time) error {
	return f.conn.SetReadDeadline(t)
}
func (f *fakePipeServer) SetWriteDeadline(t time.Time) error {
	return f.conn.SetWriteDeadline(t)
}
func (f *fakePipeServer) WaitForConnection(ctx context.Context) error { return nil }
func (f *fakePipeServer) DisconnectClient() error                     { return nil }
func (f *fakePipeServer) Name() string                                { return f.name }

// fakeEA responde a cada request con el payload indicado por método.
func fakeEA(t *testing.T, conn net.Conn, payloads map[string]interface{}) {
	t.Helper()
	go func() {
		scanner := bufio.NewScanner(conn)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			var req Request
			if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
				continue
			}

			resp := Response{
				Type:      MessageTypeResponse,
				CommandID: req.CommandID,
				Status:    "ok",
			}
			if payload, ok := payloads[req.Method]; ok {
				raw, _ := json.Marshal(payload)
				resp.Payload = raw
			}

			data, _ := json.Marshal(resp)
			data = append(data, '\n')
			if _, err := conn.Write(data); err != nil {
				return
			}
		}
	}()
}

func startSession(t *testing.T, opts ...SessionOption) (*Session, net.Conn) {
	t.Helper()

	server, eaConn := newFakePipeServer()
	session := NewSession(server, telemetry.NewNop(), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, session.Start(ctx))
	t.Cleanup(func() { _ = session.Close() })

	return session, eaConn
}

func TestSessionCallRoundTrip(t *testing.T) {
	session, eaConn := startSession(t)

	fakeEA(t, eaConn, map[string]interface{}{
		"ping": map[string]interface{}{"pong": true},
	})

	var out struct {
		Pong bool `json:"pong"`
	}
	err := session.Call(context.Background(), "ping", nil, &out)
	require.NoError(t, err)
	assert.True(t, out.Pong)

	stats := session.Stats()
	assert.Equal(t, int64(1), stats.CommandsSent)
	assert.Equal(t, int64(1), stats.ResponsesMatched)
}

func TestSessionCallDecodesPayload(t *testing.T) {
	session, eaConn := startSession(t)

	fakeEA(t, eaConn, map[string]interface{}{
		"account_info": map[string]interface{}{
			"login":    int64(12345678),
			"balance":  10000.50,
			"currency": "USD",
		},
	})

	var info domain.AccountInfo
	err := session.Call(context.Background(), "account_info", nil, &info)
	require.NoError(t, err)
	assert.Equal(t, int64(12345678), info.Login)
	assert.InDelta(t, 10000.50, info.Balance, 1e-9)
	assert.Equal(t, "USD", info.Currency)
}

func TestSessionCallBridgeError(t *testing.T) {
	session, eaConn := startSession(t)

	// EA que rechaza todo con un error de wire
	go func() {
		scanner := bufio.NewScanner(eaConn)
		for scanner.Scan() {
			var req Request
			if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
				continue
			}
			resp := Response{
				Type:      MessageTypeResponse,
				CommandID: req.CommandID,
				Status:    "error",
				Error: &WireError{
					Code:    string(domain.ErrInvalidSymbol),
					Message: "unknown symbol",
					Mql:     4301,
				},
			}
			data, _ := json.Marshal(resp)
			data = append(data, '\n')
			if _, err := eaConn.Write(data); err != nil {
				return
			}
		}
	}()

	err := session.Call(context.Background(), "symbol_info", map[string]string{"symbol": "NOPE"}, nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrInvalidSymbol, domain.CodeOf(err))
}

func TestSessionCallTimeout(t *testing.T) {
	// EA que nunca responde
	session, _ := startSession(t, WithCallTimeout(100*time.Millisecond))

	err := session.Call(context.Background(), "ping", nil, nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrTimeout, domain.CodeOf(err))
}

func TestSessionCallContextCancel(t *testing.T) {
	session, _ := startSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := session.Call(ctx, "ping", nil, nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrTimeout, domain.CodeOf(err))
}

func TestSessionNotConnected(t *testing.T) {
	server, _ := newFakePipeServer()
	session := NewSession(server, telemetry.NewNop())

	// Sin Start: no hay conexión
	err := session.Call(context.Background(), "ping", nil, nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrNotConnected, domain.CodeOf(err))
}

func TestSessionTickRouting(t *testing.T) {
	session, eaConn := startSession(t)

	received := make(chan TickMessage, 1)
	session.OnTick(func(msg TickMessage) {
		received <- msg
	})

	tick := map[string]interface{}{
		"type":   MessageTypeTick,
		"symbol": "EURUSD",
		"payload": map[string]interface{}{
			"bid":     1.09876,
			"ask":     1.09889,
			"time_ms": int64(1700000000000),
		},
	}
	data, _ := json.Marshal(tick)
	data = append(data, '\n')
	_, err := eaConn.Write(data)
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, "EURUSD", msg.Symbol)
		assert.InDelta(t, 1.09876, msg.Tick.Bid, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("tick not routed")
	}

	assert.Equal(t, int64(1), session.Stats().TicksReceived)
}

func TestSessionCandleRouting(t *testing.T) {
	session, eaConn := startSession(t)

	received := make(chan CandleMessage, 1)
	session.OnCandle(func(msg CandleMessage) {
		received <- msg
	})

	candle := map[string]interface{}{
		"type":      MessageTypeCandle,
		"symbol":    "XAUUSD",
		"timeframe": "M5",
		"payload": map[string]interface{}{
			"open":  2050.10,
			"high":  2051.00,
			"low":   2049.80,
			"close": 2050.55,
		},
	}
	data, _ := json.Marshal(candle)
	data = append(data, '\n')
	_, err := eaConn.Write(data)
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, "XAUUSD", msg.Symbol)
		assert.Equal(t, domain.TimeframeM5, msg.Timeframe)
		assert.InDelta(t, 2050.55, msg.Candle.Close, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("candle not routed")
	}
}

func TestSessionOrphanResponseDiscarded(t *testing.T) {
	session, eaConn := startSession(t)

	// Respuesta sin comando en vuelo
	resp := Response{
		Type:      MessageTypeResponse,
		CommandID: "01HKQV8YDEADBEEFDEADBEEF",
		Status:    "ok",
	}
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	_, err := eaConn.Write(data)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return session.Stats().ResponsesOrphan == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionMalformedLineIgnored(t *testing.T) {
	session, eaConn := startSession(t)

	fakeEA(t, eaConn, map[string]interface{}{
		"ping": map[string]interface{}{"pong": true},
	})

	// Basura antes del tráfico real: el loop debe descartarla y seguir vivo
	_, err := eaConn.Write([]byte("this is not json\n"))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.True(t, session.Connected())

	err = session.Call(context.Background(), "ping", nil, nil)
	require.NoError(t, err)
}

func TestSessionConcurrentCalls(t *testing.T) {
	session, eaConn := startSession(t)

	fakeEA(t, eaConn, map[string]interface{}{
		"ping": map[string]interface{}{"pong": true},
	})

	const calls = 20
	errCh := make(chan error, calls)
	for i := 0; i < calls; i++ {
		go func() {
			errCh <- session.Call(context.Background(), "ping", nil, nil)
		}()
	}

	for i := 0; i < calls; i++ {
		require.NoError(t, <-errCh)
	}

	assert.Equal(t, int64(calls), session.Stats().CommandsSent)
}

// reconnectingPipeServer simula un PipeServer que acepta conexiones
// sucesivas: cada WaitForConnection toma la siguiente del canal next.
type reconnectingPipeServer struct {
	mu   sync.Mutex
	conn net.Conn
	next chan net.Conn
}

func newReconnectingPipeServer() *reconnectingPipeServer {
	return &reconnectingPipeServer{next: make(chan net.Conn, 2)}
}

func (f *reconnectingPipeServer) current() net.Conn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn
}

func (f *reconnectingPipeServer) Read(p []byte) (int, error) {
	c := f.current()
	if c == nil {
		return 0, io.EOF
	}
	return c.Read(p)
}

func (f *reconnectingPipeServer) Write(p []byte) (int, error) {
	c := f.current()
	if c == nil {
		return 0, io.ErrClosedPipe
	}
	return c.Write(p)
}

func (f *reconnectingPipeServer) Close() error {
	if c := f.current(); c != nil {
		return c.Close()
	}
	return nil
}

func (f *reconnectingPipeServer) SetReadDeadline(t time.Time) error {
	if c := f.current(); c != nil {
		return c.SetReadDeadline(t)
	}
	return nil
}

func (f *reconnectingPipeServer) SetWriteDeadline(t time.Time) error {
	if c := f.current(); c != nil {
		return c.SetWriteDeadline(t)
	}
	return nil
}

func (f *reconnectingPipeServer) WaitForConnection(ctx context.Context) error {
	select {
	case conn := <-f.next:
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *reconnectingPipeServer) DisconnectClient() error {
	if c := f.current(); c != nil {
		_ = c.Close()
	}
	return nil
}

func (f *reconnectingPipeServer) Name() string { return "mt5_bridge_retest" }

func TestSessionReconnect(t *testing.T) {
	server := newReconnectingPipeServer()
	srvConn1, eaConn1 := net.Pipe()
	server.next <- srvConn1

	session := NewSession(server, telemetry.NewNop(),
		WithReconnectBackoff(10*time.Millisecond, 50*time.Millisecond))

	reconnected := make(chan int, 1)
	session.OnReconnect(func(attempt int) { reconnected <- attempt })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, session.Start(ctx))
	t.Cleanup(func() { _ = session.Close() })

	fakeEA(t, eaConn1, map[string]interface{}{
		"ping": map[string]interface{}{"pong": true},
	})
	require.NoError(t, session.Call(context.Background(), "ping", nil, nil))

	// Cae el EA; la sesión debe levantar la siguiente conexión sola
	_ = eaConn1.Close()
	srvConn2, eaConn2 := net.Pipe()
	server.next <- srvConn2

	select {
	case attempt := <-reconnected:
		assert.Equal(t, 1, attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("la sesión no reconectó")
	}

	fakeEA(t, eaConn2, map[string]interface{}{
		"ping": map[string]interface{}{"pong": true},
	})
	require.NoError(t, session.Call(context.Background(), "ping", nil, nil))
	assert.True(t, session.Connected())
	assert.Equal(t, int64(1), session.Stats().Reconnects)
}

func TestSessionAutoReconnectDisabled(t *testing.T) {
	server := newReconnectingPipeServer()
	srvConn, eaConn := net.Pipe()
	server.next <- srvConn

	session := NewSession(server, telemetry.NewNop(),
		WithReconnectBackoff(5*time.Millisecond, 20*time.Millisecond))
	session.SetAutoReconnect(false)
	require.False(t, session.AutoReconnectEnabled())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, session.Start(ctx))
	t.Cleanup(func() { _ = session.Close() })

	_ = eaConn.Close()

	assert.Eventually(t, func() bool {
		return session.State() == domain.StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(0), session.Stats().Reconnects)

	err := session.Call(context.Background(), "ping", nil, nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrNotConnected, domain.CodeOf(err))
}

func TestSessionReconnectSingleFlight(t *testing.T) {
	server := newReconnectingPipeServer()
	srvConn1, eaConn1 := net.Pipe()
	server.next <- srvConn1

	session := NewSession(server, telemetry.NewNop(),
		WithReconnectBackoff(50*time.Millisecond, 100*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, session.Start(ctx))
	t.Cleanup(func() { _ = session.Close() })

	_ = eaConn1.Close()

	// Disparos redundantes durante la ventana de backoff: el guard
	// debe dejar un solo loop de reconexión vivo
	session.handleDisconnect()
	session.handleDisconnect()

	srvConn2, eaConn2 := net.Pipe()
	defer eaConn2.Close()
	server.next <- srvConn2

	assert.Eventually(t, func() bool {
		return session.Stats().Reconnects == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int64(1), session.Stats().Reconnects)
	assert.Empty(t, server.next, "un solo WaitForConnection consumido")
}

func TestSessionDuplicateResponseDropped(t *testing.T) {
	session, eaConn := startSession(t)

	// Canal pendiente que nadie drena, como un caller aún no atendido
	ch := make(chan *Response, 1)
	session.pendingMu.Lock()
	session.pending["dup-cmd"] = ch
	session.pendingMu.Unlock()

	resp := Response{Type: MessageTypeResponse, CommandID: "dup-cmd", Status: "ok"}
	data, _ := json.Marshal(resp)
	data = append(data, '\n')

	_, err := eaConn.Write(data)
	require.NoError(t, err)
	_, err = eaConn.Write(data)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return session.Stats().ResponsesOrphan == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), session.Stats().ResponsesMatched)
	assert.Len(t, ch, 1)
}
