package mt5

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asaskevich/EventBus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/xKoRx/mt5/bridge"
	"github.com/xKoRx/mt5/domain"
	"github.com/xKoRx/mt5/ipc"
	"github.com/xKoRx/mt5/journal"
	"github.com/xKoRx/mt5/telemetry"
	"github.com/xKoRx/mt5/telemetry/metricbundle"
	"github.com/xKoRx/mt5/telemetry/semconv"
)

// Eventos publicados en el bus del cliente.
//
// Los handlers se registran con On(event, fn); la firma depende del
// evento (ver cada constante).
const (
	EventConnect       = "mt5:connect"        // func()
	EventDisconnect    = "mt5:disconnect"     // func()
	EventReconnect     = "mt5:reconnect"      // func(attempt int)
	EventError         = "mt5:error"          // func(err error)
	EventAccountSwitch = "mt5:account_switch" // func(login int64, server string)
)

// Client es el punto de entrada de la librería.
//
// Agrupa la sesión con el bridge EA y los servicios de dominio. Crear
// con New (producción, Named Pipe real) o con NewWithTransport (tests,
// transporte fake).
type Client struct {
	config    *Config
	telemetry *telemetry.Client
	metrics   *metricbundle.Mt5Metrics

	session *bridge.Session // nil cuando el transporte es inyectado
	tx      bridge.Transport
	bus     EventBus.Bus

	// Servicios
	account   *AccountService
	symbols   *SymbolService
	terminal  *TerminalService
	data      *MarketDataService
	history   *HistoryService
	trade     *TradeService
	risk      *RiskService
	validator *Validator

	// Persistencia (lazy)
	storeMu sync.Mutex
	store   *AccountStore

	// Estado
	initialized atomic.Bool
	loggedIn    atomic.Bool
	login       atomic.Int64

	// Error tracking
	errMu      sync.Mutex
	lastError  error
	errorCount atomic.Int64

	connectedAtMs atomic.Int64
}

// New crea un cliente de producción: carga config desde etcd, inicializa
// telemetría y crea el Named Pipe para el bridge EA.
//
// El bridge EA todavía no está conectado: llamar Initialize después.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg, err := LoadConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	telOpts := []telemetry.Option{
		telemetry.WithVersion(cfg.ServiceVersion),
		telemetry.WithLogLevel(cfg.LogLevel),
	}
	if cfg.OTLPEndpoint != "" {
		telOpts = append(telOpts, telemetry.WithOTLPEndpoint(cfg.OTLPEndpoint))
	} else {
		telOpts = append(telOpts,
			telemetry.WithMetricsDisabled(),
			telemetry.WithTracesDisabled(),
		)
	}

	tel, err := telemetry.New(ctx, cfg.ServiceName, cfg.Environment, telOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}
	metricbundle.InitGlobalMt5Bundle(tel)
	metricbundle.InitGlobalTickBundle(tel)
	metricbundle.InitGlobalCandleBundle(tel)

	server, err := ipc.NewWindowsPipeServer(cfg.PipeName)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe server: %w", err)
	}

	sessionOpts := []bridge.SessionOption{
		bridge.WithCallTimeout(cfg.CallTimeout),
		bridge.WithReconnectBackoff(cfg.ReconnectDelay, 30*time.Second),
	}
	if cfg.MaxReconnectAttempts > 0 {
		sessionOpts = append(sessionOpts, bridge.WithMaxReconnectAttempts(cfg.MaxReconnectAttempts))
	}

	session := bridge.NewSession(server, tel, sessionOpts...)
	session.SetAutoReconnect(cfg.AutoReconnect)

	c := newClient(cfg, session, tel)
	c.session = session
	session.OnReconnect(func(attempt int) {
		c.connectedAtMs.Store(time.Now().UnixMilli())
		c.bus.Publish(EventReconnect, attempt)
	})
	return c, nil
}

// NewWithTransport crea un cliente sobre un transporte ya construido.
//
// Pensado para tests y para embebidos que gestionan su propia sesión.
func NewWithTransport(cfg *Config, tx bridge.Transport, tel *telemetry.Client) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if tel == nil {
		tel = telemetry.NewNop()
	}
	return newClient(cfg, tx, tel)
}

func newClient(cfg *Config, tx bridge.Transport, tel *telemetry.Client) *Client {
	c := &Client{
		config:    cfg,
		telemetry: tel,
		metrics:   metricbundle.GetGlobalMt5Metrics(),
		tx:        tx,
		bus:       EventBus.New(),
	}

	c.validator = NewValidator()
	c.account = NewAccountService(tx, tel)
	c.symbols = NewSymbolService(tx, tel, cfg.SymbolCacheTTL)
	c.terminal = NewTerminalService(tx, tel)
	c.data = NewMarketDataService(tx, tel, cfg.CandleCacheTTL)
	c.history = NewHistoryService(tx, tel)
	c.risk = NewRiskService(c.account, c.symbols, tel)

	var jrnl *journal.Journal
	if cfg.JournalDSN != "" {
		jrnl = journal.New(cfg.JournalDSN, tel)
	}
	c.trade = NewTradeService(tx, tel, c.validator, c.symbols, TradeConfig{
		MaxRetries:       cfg.MaxRetries,
		RetryBackoff:     cfg.RetryBackoff,
		DefaultDeviation: cfg.DefaultDeviation,
		DefaultMagic:     cfg.DefaultMagic,
	}, jrnl)

	return c
}

// ---------- Accessors de servicios ----------

// Account retorna el servicio de cuenta.
func (c *Client) Account() *AccountService { return c.account }

// Symbols retorna el servicio de símbolos.
func (c *Client) Symbols() *SymbolService { return c.symbols }

// Terminal retorna el servicio de terminal.
func (c *Client) Terminal() *TerminalService { return c.terminal }

// Data retorna el servicio de datos de mercado.
func (c *Client) Data() *MarketDataService { return c.data }

// History retorna el servicio de histórico.
func (c *Client) History() *HistoryService { return c.history }

// Trade retorna el servicio de trading.
func (c *Client) Trade() *TradeService { return c.trade }

// Risk retorna el servicio de riesgo.
func (c *Client) Risk() *RiskService { return c.risk }

// Validator retorna el registro de reglas de validación.
func (c *Client) Validator() *Validator { return c.validator }

// Config retorna la configuración activa.
func (c *Client) Config() *Config { return c.config }

// ---------- Lifecycle ----------

// Initialize espera la conexión del bridge EA y ejecuta el handshake.
//
// Si la config trae credenciales, hace login en el mismo paso (el
// comportamiento de initialize del terminal).
func (c *Client) Initialize(ctx context.Context) error {
	if c.config.Login != 0 {
		// Viajan en el contexto: cada log y métrica aguas abajo los lleva
		ctx = telemetry.AppendCommonAttrs(ctx,
			semconv.Mt5.Login.Int64(c.config.Login),
			semconv.Mt5.Server.String(c.config.Server),
		)
	}

	if c.session != nil && !c.session.Connected() {
		if err := c.session.Start(ctx); err != nil {
			c.trackError(err)
			return err
		}
	}

	params := map[string]interface{}{
		"portable": c.config.Portable,
	}
	if c.config.TerminalPath != "" {
		params["path"] = c.config.TerminalPath
	}
	if c.config.Login != 0 {
		params["login"] = c.config.Login
		params["password"] = c.config.Password
		params["server"] = c.config.Server
	}

	if err := c.tx.Call(ctx, bridge.MethodInitialize, params, nil); err != nil {
		c.trackError(err)
		return err
	}

	c.initialized.Store(true)
	c.connectedAtMs.Store(time.Now().UnixMilli())
	if c.config.Login != 0 {
		c.loggedIn.Store(true)
		c.login.Store(c.config.Login)
	}

	c.telemetry.Info(ctx, "Terminal initialized",
		semconv.Mt5.Login.Int64(c.config.Login),
		semconv.Mt5.Server.String(c.config.Server),
	)
	c.bus.Publish(EventConnect)
	return nil
}

// Connect es un alias de Initialize para el flujo típico
// "configurar y conectar".
func (c *Client) Connect(ctx context.Context) error {
	return c.Initialize(ctx)
}

// Reconnect fuerza una reconexión manual: repite el handshake sobre el
// transporte y publica EventReconnect al completar.
//
// Con auto-reconnect habilitado la sesión se recupera sola; esto cubre
// el caso deshabilitado o un rearme a demanda.
func (c *Client) Reconnect(ctx context.Context) error {
	c.initialized.Store(false)
	if err := c.Initialize(ctx); err != nil {
		return err
	}
	c.bus.Publish(EventReconnect, 0)
	return nil
}

// EnableAutoReconnect habilita la reconexión automática en caliente.
func (c *Client) EnableAutoReconnect() {
	c.config.AutoReconnect = true
	if c.session != nil {
		c.session.SetAutoReconnect(true)
	}
}

// DisableAutoReconnect deshabilita la reconexión automática.
//
// Ante la próxima caída la sesión queda desconectada hasta un
// Reconnect manual.
func (c *Client) DisableAutoReconnect() {
	c.config.AutoReconnect = false
	if c.session != nil {
		c.session.SetAutoReconnect(false)
	}
}

// AutoReconnectEnabled indica si la reconexión automática está activa.
func (c *Client) AutoReconnectEnabled() bool {
	return c.config.AutoReconnect
}

// Login autentica una cuenta en el terminal.
func (c *Client) Login(ctx context.Context, login int64, password, server string) error {
	if err := domain.ValidateCredentials(login, password, server); err != nil {
		c.trackError(err)
		return err
	}

	params := map[string]interface{}{
		"login":    login,
		"password": password,
		"server":   server,
	}
	if err := c.tx.Call(ctx, bridge.MethodLogin, params, nil); err != nil {
		c.trackError(err)
		return err
	}

	previous := c.login.Load()
	c.loggedIn.Store(true)
	c.login.Store(login)

	c.telemetry.Info(ctx, "Logged in",
		semconv.Mt5.Login.Int64(login),
		semconv.Mt5.Server.String(server),
	)
	if previous != 0 && previous != login {
		c.bus.Publish(EventAccountSwitch, login, server)
	}
	c.symbols.InvalidateCache()
	return nil
}

// Logout olvida la sesión de cuenta actual.
//
// El terminal no tiene logout real: el estado local se limpia y el
// próximo Login autentica otra cuenta.
func (c *Client) Logout() {
	c.loggedIn.Store(false)
	c.login.Store(0)
}

// IsConnected indica si el bridge está conectado y el handshake hecho.
func (c *Client) IsConnected() bool {
	return c.initialized.Load() && c.tx.Connected()
}

// IsLoggedIn indica si hay una cuenta autenticada.
func (c *Client) IsLoggedIn() bool { return c.loggedIn.Load() }

// CurrentLogin retorna el login activo (0 si no hay sesión).
func (c *Client) CurrentLogin() int64 { return c.login.Load() }

// Ping mide el round-trip al bridge EA.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := c.tx.Call(ctx, bridge.MethodPing, nil, nil); err != nil {
		c.trackError(err)
		return 0, err
	}
	return time.Since(start), nil
}

// LastErrorCode consulta el último error del terminal (last_error).
func (c *Client) LastErrorCode(ctx context.Context) (int, string, error) {
	var out struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := c.tx.Call(ctx, bridge.MethodLastError, nil, &out); err != nil {
		return 0, "", err
	}
	return out.Code, out.Message, nil
}

// Disconnect corta la sesión con el bridge sin apagar el terminal.
func (c *Client) Disconnect() error {
	c.initialized.Store(false)
	c.bus.Publish(EventDisconnect)
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

// Shutdown pide el shutdown del terminal y cierra la sesión.
func (c *Client) Shutdown(ctx context.Context) error {
	if c.IsConnected() {
		// Best-effort: el EA puede morir antes de responder
		_ = c.tx.Call(ctx, bridge.MethodShutdown, nil, nil)
	}
	c.data.StopAllStreams()
	err := c.Disconnect()

	c.storeMu.Lock()
	if c.store != nil {
		_ = c.store.Close()
		c.store = nil
	}
	c.storeMu.Unlock()

	if c.telemetry != nil {
		_ = c.telemetry.Shutdown(ctx)
	}
	return err
}

// ---------- Eventos ----------

// On registra un handler para un evento del cliente.
func (c *Client) On(event string, handler interface{}) error {
	return c.bus.Subscribe(event, handler)
}

// Off elimina un handler previamente registrado.
func (c *Client) Off(event string, handler interface{}) error {
	return c.bus.Unsubscribe(event, handler)
}

// ---------- Multi-cuenta ----------

func (c *Client) accountStore() (*AccountStore, error) {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()
	if c.store != nil {
		return c.store, nil
	}
	store, err := OpenAccountStore(c.config.AccountStorePath)
	if err != nil {
		return nil, err
	}
	c.store = store
	return store, nil
}

// SaveAccount guarda un perfil de cuenta (sin password).
func (c *Client) SaveAccount(name string, login int64, server, alias string) error {
	store, err := c.accountStore()
	if err != nil {
		return err
	}
	return store.Save(&AccountProfile{
		Name:   name,
		Login:  login,
		Server: server,
		Alias:  alias,
	})
}

// ListAccounts retorna los perfiles guardados.
func (c *Client) ListAccounts() ([]*AccountProfile, error) {
	store, err := c.accountStore()
	if err != nil {
		return nil, err
	}
	return store.List()
}

// RemoveAccount elimina un perfil guardado.
func (c *Client) RemoveAccount(name string) error {
	store, err := c.accountStore()
	if err != nil {
		return err
	}
	return store.Delete(name)
}

// SwitchAccount hace login con un perfil guardado.
//
// La password no se persiste, así que se exige en cada switch.
func (c *Client) SwitchAccount(ctx context.Context, name, password string) error {
	store, err := c.accountStore()
	if err != nil {
		return err
	}
	profile, err := store.Get(name)
	if err != nil {
		return err
	}
	if profile == nil {
		return domain.NewError(domain.ErrNotFound,
			fmt.Sprintf("account profile %q not found", name))
	}

	if err := c.Login(ctx, profile.Login, password, profile.Server); err != nil {
		return err
	}
	_ = store.TouchLastUsed(name)
	c.bus.Publish(EventAccountSwitch, profile.Login, profile.Server)
	return nil
}

// ---------- Status y errores ----------

// Status snapshot del estado del cliente.
type Status struct {
	Initialized   bool                   `json:"initialized"`
	Connected     bool                   `json:"connected"`
	LoggedIn      bool                   `json:"logged_in"`
	Login         int64                  `json:"login,omitempty"`
	Server        string                 `json:"server,omitempty"`
	ConnectedAtMs int64                  `json:"connected_at_ms,omitempty"`
	UptimeSeconds float64                `json:"uptime_seconds,omitempty"`
	ErrorCount    int64                  `json:"error_count"`
	LastError     string                 `json:"last_error,omitempty"`
	Session       *bridge.SessionStats   `json:"session,omitempty"`
	ActiveStreams []string               `json:"active_streams,omitempty"`
	Extra         map[string]interface{} `json:"extra,omitempty"`
}

// Status retorna el snapshot actual.
func (c *Client) Status() Status {
	st := Status{
		Initialized: c.initialized.Load(),
		Connected:   c.IsConnected(),
		LoggedIn:    c.loggedIn.Load(),
		Login:       c.login.Load(),
		Server:      c.config.Server,
		ErrorCount:  c.errorCount.Load(),
	}
	if ts := c.connectedAtMs.Load(); ts > 0 {
		st.ConnectedAtMs = ts
		st.UptimeSeconds = time.Since(time.UnixMilli(ts)).Seconds()
	}
	c.errMu.Lock()
	if c.lastError != nil {
		st.LastError = c.lastError.Error()
	}
	c.errMu.Unlock()
	if c.session != nil {
		stats := c.session.Stats()
		st.Session = &stats
	}
	st.ActiveStreams = c.data.ActiveStreams()
	return st
}

// LastError retorna el último error registrado por el cliente.
func (c *Client) LastError() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.lastError
}

// ErrorCount retorna el total de errores registrados.
func (c *Client) ErrorCount() int64 { return c.errorCount.Load() }

// ResetErrors limpia el tracking de errores.
func (c *Client) ResetErrors() {
	c.errMu.Lock()
	c.lastError = nil
	c.errMu.Unlock()
	c.errorCount.Store(0)
}

func (c *Client) trackError(err error) {
	if err == nil {
		return
	}
	c.errMu.Lock()
	c.lastError = err
	c.errMu.Unlock()
	c.errorCount.Add(1)

	c.telemetry.Error(context.Background(), "Client error", err,
		attribute.String("error_code", string(domain.CodeOf(err))),
	)
	c.bus.Publish(EventError, err)
}
