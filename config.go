// Package mt5 expone el cliente de alto nivel para operar un terminal
// MetaTrader 5 a través del bridge EA.
//
// El Client agrupa los servicios de cuenta, símbolos, terminal, datos de
// mercado, histórico, trading, riesgo y validación. Todos comparten la
// misma sesión de bridge y la misma telemetría.
package mt5

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xKoRx/mt5/etcd"
	"github.com/xKoRx/mt5/utils"
)

// Config configuración del cliente mt5.
//
// Cargada desde etcd en namespace /mt5/{environment}/ con defaults
// locales; los perfiles de cuenta se guardan aparte (ver AccountStore).
type Config struct {
	// Credenciales
	Login    int64  `json:"login"`
	Password string `json:"-"` // nunca se serializa
	Server   string `json:"server"`

	// Terminal
	TerminalPath string `json:"terminal_path,omitempty"` // mt5/terminal_path
	Portable     bool   `json:"portable,omitempty"`      // mt5/portable

	// Bridge
	PipeName    string        `json:"pipe_name"`    // mt5/pipe_name
	CallTimeout time.Duration `json:"call_timeout"` // mt5/call_timeout_ms

	// Auto-reconexión
	AutoReconnect        bool          `json:"auto_reconnect"`         // mt5/auto_reconnect
	MaxReconnectAttempts int           `json:"max_reconnect_attempts"` // mt5/max_reconnect_attempts
	ReconnectDelay       time.Duration `json:"reconnect_delay"`        // mt5/reconnect_delay_ms

	// Trading
	MaxRetries       int           `json:"max_retries"`       // trade/max_retries
	RetryBackoff     time.Duration `json:"retry_backoff"`     // trade/retry_backoff_ms
	DefaultDeviation int64         `json:"default_deviation"` // trade/default_deviation
	DefaultMagic     int64         `json:"default_magic"`     // trade/default_magic

	// Caches
	SymbolCacheTTL time.Duration `json:"symbol_cache_ttl"` // cache/symbol_ttl_ms
	CandleCacheTTL time.Duration `json:"candle_cache_ttl"` // cache/candle_ttl_ms

	// Persistencia
	AccountStorePath string `json:"account_store_path"` // mt5/account_store_path
	JournalDSN       string `json:"-"`                  // endpoints/journal_dsn (credenciales)

	// Telemetry
	ServiceName    string `json:"service_name"`
	ServiceVersion string `json:"service_version"`
	Environment    string `json:"environment"`
	OTLPEndpoint   string `json:"otlp_endpoint,omitempty"`
	LogLevel       string `json:"log_level"`
}

// DefaultConfig retorna la configuración con defaults locales.
func DefaultConfig() *Config {
	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}

	return &Config{
		PipeName:             "mt5_bridge",
		CallTimeout:          10 * time.Second,
		AutoReconnect:        true,
		MaxReconnectAttempts: 0, // ilimitado
		ReconnectDelay:       500 * time.Millisecond,
		MaxRetries:           3,
		RetryBackoff:         200 * time.Millisecond,
		DefaultDeviation:     10,
		SymbolCacheTTL:       5 * time.Second,
		CandleCacheTTL:       time.Minute,
		AccountStorePath:     filepath.Join(defaultDataDir(), "accounts.db"),
		ServiceName:          "mt5-client",
		ServiceVersion:       "0.1.0",
		Environment:          env,
		LogLevel:             "INFO",
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "mt5")
	}
	return "."
}

// Option modifica la configuración del cliente.
type Option func(*Config)

// WithCredentials establece login, password y servidor del broker.
func WithCredentials(login int64, password, server string) Option {
	return func(c *Config) {
		c.Login = login
		c.Password = password
		c.Server = server
	}
}

// WithPipeName establece el nombre del Named Pipe del bridge.
func WithPipeName(name string) Option {
	return func(c *Config) { c.PipeName = name }
}

// WithTerminalPath establece la ruta del terminal (informativa para el EA).
func WithTerminalPath(path string) Option {
	return func(c *Config) { c.TerminalPath = path }
}

// WithPortable activa el modo portable del terminal.
func WithPortable(portable bool) Option {
	return func(c *Config) { c.Portable = portable }
}

// WithCallTimeout establece el timeout por comando.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Config) { c.CallTimeout = d }
}

// WithAutoReconnect configura la reconexión automática.
func WithAutoReconnect(enabled bool, maxAttempts int, delay time.Duration) Option {
	return func(c *Config) {
		c.AutoReconnect = enabled
		c.MaxReconnectAttempts = maxAttempts
		c.ReconnectDelay = delay
	}
}

// WithTradeDefaults establece deviation y magic por defecto.
func WithTradeDefaults(deviation, magic int64) Option {
	return func(c *Config) {
		c.DefaultDeviation = deviation
		c.DefaultMagic = magic
	}
}

// WithRetries configura los reintentos de comandos de trading.
func WithRetries(maxRetries int, backoff time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryBackoff = backoff
	}
}

// WithSymbolCacheTTL establece el TTL del cache de símbolos.
func WithSymbolCacheTTL(ttl time.Duration) Option {
	return func(c *Config) { c.SymbolCacheTTL = ttl }
}

// WithAccountStorePath establece la ruta del store de cuentas (bbolt).
func WithAccountStorePath(path string) Option {
	return func(c *Config) { c.AccountStorePath = path }
}

// WithJournalDSN establece el DSN de postgres para el journal de trades.
func WithJournalDSN(dsn string) Option {
	return func(c *Config) { c.JournalDSN = dsn }
}

// WithTelemetry establece los parámetros de telemetría.
func WithTelemetry(serviceName, environment, otlpEndpoint string) Option {
	return func(c *Config) {
		c.ServiceName = serviceName
		c.Environment = environment
		c.OTLPEndpoint = otlpEndpoint
	}
}

// WithLogLevel establece el nivel de log (DEBUG, INFO, WARN, ERROR).
func WithLogLevel(level string) Option {
	return func(c *Config) { c.LogLevel = level }
}

// LoadConfig carga configuración desde etcd con defaults locales.
//
// Environment se determina desde la variable de entorno ENV
// (default: development). Las opciones se aplican al final y ganan
// sobre lo que diga etcd.
func LoadConfig(ctx context.Context, opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	etcdClient, err := etcd.New(
		etcd.WithApp("mt5"),
		etcd.WithEnv(cfg.Environment),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	defer etcdClient.Close()

	if val, err := etcdClient.GetVarWithDefault(ctx, "mt5/pipe_name", ""); err == nil && val != "" {
		cfg.PipeName = val
	}
	if val, err := etcdClient.GetVarWithDefault(ctx, "mt5/terminal_path", ""); err == nil && val != "" {
		cfg.TerminalPath = val
	}
	if val, err := etcdClient.GetVarWithDefault(ctx, "mt5/portable", ""); err == nil && val != "" {
		if portable, err := strconv.ParseBool(val); err == nil {
			cfg.Portable = portable
		}
	}
	if d, err := etcdClient.GetVarDurationWithDefault(ctx, "mt5/call_timeout_ms", cfg.CallTimeout); err == nil {
		cfg.CallTimeout = d
	}
	if val, err := etcdClient.GetVarWithDefault(ctx, "mt5/auto_reconnect", ""); err == nil && val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			cfg.AutoReconnect = enabled
		}
	}
	if n, err := etcdClient.GetVarIntWithDefault(ctx, "mt5/max_reconnect_attempts", cfg.MaxReconnectAttempts); err == nil {
		cfg.MaxReconnectAttempts = n
	}
	if d, err := etcdClient.GetVarDurationWithDefault(ctx, "mt5/reconnect_delay_ms", cfg.ReconnectDelay); err == nil {
		cfg.ReconnectDelay = d
	}
	if n, err := etcdClient.GetVarIntWithDefault(ctx, "trade/max_retries", cfg.MaxRetries); err == nil {
		cfg.MaxRetries = n
	}
	if d, err := etcdClient.GetVarDurationWithDefault(ctx, "trade/retry_backoff_ms", cfg.RetryBackoff); err == nil {
		cfg.RetryBackoff = d
	}
	if n, err := etcdClient.GetVarIntWithDefault(ctx, "trade/default_deviation", int(cfg.DefaultDeviation)); err == nil {
		cfg.DefaultDeviation = int64(n)
	}
	if n, err := etcdClient.GetVarIntWithDefault(ctx, "trade/default_magic", int(cfg.DefaultMagic)); err == nil {
		cfg.DefaultMagic = int64(n)
	}
	if d, err := etcdClient.GetVarDurationWithDefault(ctx, "cache/symbol_ttl_ms", cfg.SymbolCacheTTL); err == nil {
		cfg.SymbolCacheTTL = d
	}
	if d, err := etcdClient.GetVarDurationWithDefault(ctx, "cache/candle_ttl_ms", cfg.CandleCacheTTL); err == nil {
		cfg.CandleCacheTTL = d
	}
	if val, err := etcdClient.GetVarWithDefault(ctx, "mt5/account_store_path", ""); err == nil && val != "" {
		cfg.AccountStorePath = val
	}
	if val, err := etcdClient.GetVarWithDefault(ctx, "endpoints/journal_dsn", ""); err == nil && val != "" {
		cfg.JournalDSN = val
	}
	if val, err := etcdClient.GetVarWithDefault(ctx, "endpoints/otel/otlp_endpoint", ""); err == nil && val != "" {
		cfg.OTLPEndpoint = val
	}
	if val, err := etcdClient.GetVarWithDefault(ctx, "telemetry/service_name", ""); err == nil && val != "" {
		cfg.ServiceName = val
	}
	if val, err := etcdClient.GetVarWithDefault(ctx, "telemetry/log_level", ""); err == nil && val != "" {
		cfg.LogLevel = val
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg, nil
}

// SaveConfigFile escribe la configuración a un archivo JSON.
//
// La password nunca se serializa (tag json:"-"); el perfil guardado
// sirve para recrear el cliente pero exige credenciales frescas.
func (c *Config) SaveConfigFile(path string) error {
	data, err := utils.MarshalJSON(c)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	data = []byte(utils.PrettyPrint(data))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadConfigFile carga una configuración desde un archivo JSON.
//
// Los campos ausentes conservan los defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := utils.UnmarshalJSON(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}
