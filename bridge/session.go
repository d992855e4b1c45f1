package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xKoRx/mt5/domain"
	"github.com/xKoRx/mt5/ipc"
	"github.com/xKoRx/mt5/telemetry"
	"github.com/xKoRx/mt5/telemetry/metricbundle"
	"github.com/xKoRx/mt5/telemetry/semconv"
	"github.com/xKoRx/mt5/utils"
)

// Transport es la dependencia que los servicios de alto nivel usan para
// hablar con el terminal. Session la implementa; los tests la fakean.
type Transport interface {
	// Call envía un comando al bridge y decodifica el payload de la
	// respuesta sobre out (out puede ser nil si no interesa el payload).
	Call(ctx context.Context, method string, params, out interface{}) error

	// Connected indica si hay un bridge EA conectado.
	Connected() bool
}

// SessionConfig configura una Session.
type SessionConfig struct {
	// PipeName nombre del Named Pipe (sin prefijo \\.\pipe\).
	PipeName string

	// CallTimeout timeout por defecto para cada round-trip.
	CallTimeout time.Duration

	// ReconnectBase delay inicial del backoff de reconexión.
	ReconnectBase time.Duration

	// ReconnectMax tope del backoff exponencial.
	ReconnectMax time.Duration

	// MaxReconnectAttempts límite de reintentos (0 = ilimitado).
	MaxReconnectAttempts int
}

// DefaultSessionConfig retorna la configuración por defecto.
func DefaultSessionConfig(pipeName string) SessionConfig {
	return SessionConfig{
		PipeName:      pipeName,
		CallTimeout:   10 * time.Second,
		ReconnectBase: 500 * time.Millisecond,
		ReconnectMax:  30 * time.Second,
	}
}

// SessionOption modifica la configuración de la sesión.
type SessionOption func(*SessionConfig)

// WithCallTimeout establece el timeout por round-trip.
func WithCallTimeout(d time.Duration) SessionOption {
	return func(c *SessionConfig) { c.CallTimeout = d }
}

// WithReconnectBackoff establece el backoff de reconexión.
func WithReconnectBackoff(base, max time.Duration) SessionOption {
	return func(c *SessionConfig) {
		c.ReconnectBase = base
		c.ReconnectMax = max
	}
}

// WithMaxReconnectAttempts limita los reintentos de reconexión.
func WithMaxReconnectAttempts(n int) SessionOption {
	return func(c *SessionConfig) { c.MaxReconnectAttempts = n }
}

// SessionStats estadísticas acumuladas de la sesión.
type SessionStats struct {
	CommandsSent     int64
	ResponsesMatched int64
	ResponsesOrphan  int64
	TicksReceived    int64
	CandlesReceived  int64
	EventsReceived   int64
	Reconnects       int64
	LastConnectedMs  int64
}

// Session gestiona la conexión con el bridge EA sobre un Named Pipe.
//
// Una goroutine de lectura enruta los mensajes entrantes: las respuestas
// van a la llamada pendiente por command_id; ticks, velas y eventos van
// a los handlers registrados. Las escrituras se serializan en JSONWriter.
type Session struct {
	config    SessionConfig
	server    ipc.PipeServer
	telemetry *telemetry.Client
	metrics   *metricbundle.Mt5Metrics

	// reader/writer se reemplazan en cada attach; punteros atómicos para
	// que un Call en vuelo nunca vea una escritura a medias
	writer atomic.Pointer[ipc.JSONWriter]
	reader atomic.Pointer[ipc.JSONReader]

	// Llamadas pendientes por command_id
	pendingMu sync.Mutex
	pending   map[string]chan *Response

	// Handlers de mensajes push (opcionales)
	handlersMu       sync.RWMutex
	tickHandler      func(TickMessage)
	candleHandler    func(CandleMessage)
	eventHandler     func(EventMessage)
	reconnectHandler func(attempt int)

	// Estado
	state         atomic.Value // domain.ConnectionState
	reconnecting  atomic.Bool  // single-flight de reconexión
	autoReconnect atomic.Bool

	// Stats
	commandsSent     atomic.Int64
	responsesMatched atomic.Int64
	responsesOrphan  atomic.Int64
	ticksReceived    atomic.Int64
	candlesReceived  atomic.Int64
	eventsReceived   atomic.Int64
	reconnects       atomic.Int64
	lastConnectedMs  atomic.Int64

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewSession crea una sesión sobre un PipeServer ya creado.
//
// El caller conserva la propiedad del server hasta llamar Start; a
// partir de ahí la sesión lo gestiona (incluida la reconexión).
func NewSession(server ipc.PipeServer, tel *telemetry.Client, opts ...SessionOption) *Session {
	if tel == nil {
		tel = telemetry.NewNop()
	}

	cfg := DefaultSessionConfig(server.Name())
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Session{
		config:    cfg,
		server:    server,
		telemetry: tel,
		metrics:   metricbundle.GetGlobalMt5Metrics(),
		pending:   make(map[string]chan *Response),
	}
	s.state.Store(domain.StateDisconnected)
	s.autoReconnect.Store(true)
	return s
}

// SetAutoReconnect habilita o deshabilita la reconexión automática.
//
// Deshabilitada, una desconexión deja la sesión en StateDisconnected
// hasta que el caller la rearme.
func (s *Session) SetAutoReconnect(enabled bool) {
	s.autoReconnect.Store(enabled)
}

// AutoReconnectEnabled indica si la reconexión automática está activa.
func (s *Session) AutoReconnectEnabled() bool {
	return s.autoReconnect.Load()
}

// State retorna el estado actual de la conexión.
func (s *Session) State() domain.ConnectionState {
	st, _ := s.state.Load().(domain.ConnectionState)
	return st
}

// Connected implementa Transport.
func (s *Session) Connected() bool {
	return s.State() == domain.StateConnected
}

// Stats retorna una copia de las estadísticas acumuladas.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		CommandsSent:     s.commandsSent.Load(),
		ResponsesMatched: s.responsesMatched.Load(),
		ResponsesOrphan:  s.responsesOrphan.Load(),
		TicksReceived:    s.ticksReceived.Load(),
		CandlesReceived:  s.candlesReceived.Load(),
		EventsReceived:   s.eventsReceived.Load(),
		Reconnects:       s.reconnects.Load(),
		LastConnectedMs:  s.lastConnectedMs.Load(),
	}
}

// OnTick registra el handler de ticks empujados por el EA.
func (s *Session) OnTick(h func(TickMessage)) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.tickHandler = h
}

// OnCandle registra el handler de velas cerradas.
func (s *Session) OnCandle(h func(CandleMessage)) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.candleHandler = h
}

// OnEvent registra el handler de eventos de terminal.
func (s *Session) OnEvent(h func(EventMessage)) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.eventHandler = h
}

// OnReconnect registra el handler que se dispara tras cada reconexión
// exitosa, con el número de intento que la logró.
func (s *Session) OnReconnect(h func(attempt int)) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.reconnectHandler = h
}

// Start espera la conexión del bridge EA y arranca el loop de lectura.
//
// Bloquea hasta que el EA conecta o el contexto se cancela.
func (s *Session) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.state.Store(domain.StateInitializing)

	s.telemetry.Info(s.ctx, "Waiting for bridge EA connection",
		attribute.String("pipe_name", s.config.PipeName),
	)

	if err := s.server.WaitForConnection(ctx); err != nil {
		s.state.Store(domain.StateFailed)
		return domain.WrapError(domain.ErrNotConnected, "bridge EA did not connect", err)
	}

	s.attach()

	s.wg.Add(1)
	go s.readLoop()

	s.telemetry.Info(s.ctx, "Bridge EA connected",
		attribute.String("pipe_name", s.config.PipeName),
	)

	return nil
}

// attach (re)crea reader/writer sobre la conexión actual y marca conectado.
func (s *Session) attach() {
	s.writer.Store(ipc.NewJSONWriterWithTimeout(s.server, s.config.CallTimeout))
	// Sin deadline de lectura: una sesión sin tráfico no es una sesión caída
	s.reader.Store(ipc.NewJSONReaderWithTimeout(s.server, 0))
	s.state.Store(domain.StateConnected)
	s.lastConnectedMs.Store(utils.NowUnixMilli())
}

// Close cierra la sesión y el pipe subyacente.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	err := s.server.Close()
	s.failPending(domain.NewError(domain.ErrConnectionLost, "session closed"))
	s.state.Store(domain.StateDisconnected)
	s.wg.Wait()
	return err
}

// Call implementa Transport.
//
// Genera un command_id UUIDv7, envía el request y bloquea hasta recibir
// la respuesta correlacionada, el timeout o la cancelación del contexto.
func (s *Session) Call(ctx context.Context, method string, params, out interface{}) error {
	writer := s.writer.Load()
	if !s.Connected() || writer == nil {
		return domain.NewError(domain.ErrNotConnected, "bridge EA not connected")
	}

	commandID := utils.GenerateUUIDv7()

	req := Request{
		Type:      MessageTypeRequest,
		CommandID: commandID,
		Method:    method,
		Params:    params,
	}

	respCh := make(chan *Response, 1)
	s.pendingMu.Lock()
	s.pending[commandID] = respCh
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, commandID)
		s.pendingMu.Unlock()
	}()

	start := time.Now()
	if err := writer.WriteJSON(req); err != nil {
		s.metrics.RecordCommand(ctx, method, "error")
		return domain.WrapError(domain.ErrConnectionLost, "failed to write command", err)
	}
	s.commandsSent.Add(1)

	s.telemetry.Debug(ctx, "Command dispatched",
		semconv.Mt5.CommandID.String(commandID),
		semconv.Mt5.Method.String(method),
	)

	timeout := s.config.CallTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-respCh:
		latencyMs := float64(time.Since(start).Microseconds()) / 1000.0
		s.metrics.RecordCommandLatency(ctx, method, latencyMs)

		if !resp.OK() {
			s.metrics.RecordCommand(ctx, method, "rejected")
			if resp.Error != nil {
				return resp.Error.ToDomain()
			}
			return domain.NewError(domain.ErrUnknown, "bridge returned error without detail")
		}

		s.metrics.RecordCommand(ctx, method, "success")
		if out != nil && len(resp.Payload) > 0 {
			if err := json.Unmarshal(resp.Payload, out); err != nil {
				return domain.WrapError(domain.ErrInvalidRequest,
					fmt.Sprintf("failed to decode %s payload", method), err)
			}
		}
		return nil

	case <-timer.C:
		s.metrics.RecordCommand(ctx, method, "timeout")
		return domain.NewError(domain.ErrTimeout,
			fmt.Sprintf("command %s timed out after %s", method, timeout)).
			WithDetail("command_id", commandID)

	case <-ctx.Done():
		s.metrics.RecordCommand(ctx, method, "canceled")
		return domain.WrapError(domain.ErrTimeout, "command canceled", ctx.Err())
	}
}

// readLoop enruta los mensajes entrantes hasta que la sesión se cierra.
func (s *Session) readLoop() {
	defer s.wg.Done()

	// La conexión de este loop: un attach posterior crea otro loop
	reader := s.reader.Load()
	if reader == nil {
		return
	}

	for {
		if s.ctx.Err() != nil {
			return
		}

		var in Inbound
		if err := reader.ReadRaw(&in); err != nil {
			if s.ctx.Err() != nil || s.closed.Load() {
				return
			}
			// Línea malformada: descartar y seguir leyendo
			if _, ok := err.(*ipc.ErrInvalidMessage); ok {
				s.telemetry.Warn(s.ctx, "Discarding malformed message",
					attribute.String("reason", err.Error()),
				)
				continue
			}

			s.telemetry.Warn(s.ctx, "Bridge EA connection lost",
				attribute.String("reason", err.Error()),
			)
			s.handleDisconnect()
			return
		}

		s.route(&in)
	}
}

// route despacha un mensaje entrante según su tipo.
func (s *Session) route(in *Inbound) {
	switch in.Type {
	case MessageTypeResponse:
		resp, err := decodeResponse(in)
		if err != nil {
			s.responsesOrphan.Add(1)
			return
		}
		s.pendingMu.Lock()
		ch, ok := s.pending[resp.CommandID]
		s.pendingMu.Unlock()
		if !ok {
			// Respuesta tardía de un comando ya vencido
			s.responsesOrphan.Add(1)
			s.telemetry.Debug(s.ctx, "Orphan response discarded",
				semconv.Mt5.CommandID.String(resp.CommandID),
			)
			return
		}
		// Un duplicado con el buffer ya ocupado no debe frenar el loop
		select {
		case ch <- resp:
			s.responsesMatched.Add(1)
		default:
			s.responsesOrphan.Add(1)
		}

	case MessageTypeTick:
		s.ticksReceived.Add(1)
		var tick domain.Tick
		if err := json.Unmarshal(in.Payload, &tick); err != nil {
			return
		}
		s.handlersMu.RLock()
		h := s.tickHandler
		s.handlersMu.RUnlock()
		if h != nil {
			h(TickMessage{Symbol: in.Symbol, Tick: tick})
		}

	case MessageTypeCandle:
		s.candlesReceived.Add(1)
		var candle domain.Candle
		if err := json.Unmarshal(in.Payload, &candle); err != nil {
			return
		}
		tf, err := domain.TimeframeFromString(in.Timeframe)
		if err != nil {
			return
		}
		s.handlersMu.RLock()
		h := s.candleHandler
		s.handlersMu.RUnlock()
		if h != nil {
			h(CandleMessage{Symbol: in.Symbol, Timeframe: tf, Candle: candle})
		}

	case MessageTypeEvent:
		s.eventsReceived.Add(1)
		s.handlersMu.RLock()
		h := s.eventHandler
		s.handlersMu.RUnlock()
		if h != nil {
			h(EventMessage{Name: in.Event, Payload: in.Payload})
		}

	default:
		s.telemetry.Debug(s.ctx, "Unknown message type discarded",
			attribute.String("message_type", in.Type),
		)
	}
}

// handleDisconnect falla las llamadas pendientes y dispara la reconexión.
func (s *Session) handleDisconnect() {
	s.failPending(domain.NewError(domain.ErrConnectionLost, "bridge EA disconnected"))

	if !s.autoReconnect.Load() {
		s.state.Store(domain.StateDisconnected)
		s.telemetry.Warn(s.ctx, "Auto-reconnect disabled, session stays down")
		return
	}
	s.state.Store(domain.StateReconnecting)

	// Single-flight: sólo una goroutine reconecta
	if !s.reconnecting.CompareAndSwap(false, true) {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.reconnecting.Store(false)
		s.reconnectLoop()
	}()
}

// reconnectLoop reintenta la conexión con backoff exponencial.
func (s *Session) reconnectLoop() {
	attempt := 0
	for {
		if s.ctx.Err() != nil || s.closed.Load() {
			return
		}

		attempt++
		if s.config.MaxReconnectAttempts > 0 && attempt > s.config.MaxReconnectAttempts {
			s.state.Store(domain.StateFailed)
			s.telemetry.Error(s.ctx, "Reconnect attempts exhausted", nil,
				semconv.Mt5.Attempt.Int(attempt-1),
			)
			return
		}

		backoff := s.backoffDuration(attempt)
		s.telemetry.Info(s.ctx, "Reconnecting to bridge EA",
			semconv.Mt5.Attempt.Int(attempt),
			attribute.String("backoff", backoff.String()),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-s.ctx.Done():
			timer.Stop()
			return
		}

		// Soltar la conexión muerta y esperar una nueva
		_ = s.server.DisconnectClient()

		if err := s.server.WaitForConnection(s.ctx); err != nil {
			s.metrics.RecordReconnect(s.ctx, false)
			continue
		}

		s.attach()
		s.reconnects.Add(1)
		s.metrics.RecordReconnect(s.ctx, true)
		s.telemetry.Info(s.ctx, "Bridge EA reconnected",
			semconv.Mt5.Attempt.Int(attempt),
		)

		s.wg.Add(1)
		go s.readLoop()

		s.handlersMu.RLock()
		h := s.reconnectHandler
		s.handlersMu.RUnlock()
		if h != nil {
			h(attempt)
		}
		return
	}
}

func (s *Session) backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	exp := float64(s.config.ReconnectBase) * math.Pow(2, float64(attempt-1))
	d := time.Duration(exp)
	if d > s.config.ReconnectMax {
		d = s.config.ReconnectMax
	}
	return d
}

// failPending entrega un error a todas las llamadas en vuelo.
func (s *Session) failPending(err *domain.TradingError) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	for id, ch := range s.pending {
		resp := &Response{
			Type:      MessageTypeResponse,
			CommandID: id,
			Status:    "error",
			Error: &WireError{
				Code:    string(err.Code),
				Message: err.Message,
			},
		}
		select {
		case ch <- resp:
		default:
		}
		delete(s.pending, id)
	}
}
