// Package publish re-publica market data del terminal en NATS.
//
// Cada tick va a md.tick.<SYMBOL> y cada vela cerrada a
// md.candle.<SYMBOL>.<TF>, serializados como JSON. La entrega es
// fire-and-forget (NATS core); los consumidores que necesiten replay
// deben poner un stream JetStream encima de esos subjects.
package publish

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/xKoRx/mt5/domain"
	"github.com/xKoRx/mt5/telemetry"
	"github.com/xKoRx/mt5/telemetry/metricbundle"
	"github.com/xKoRx/mt5/telemetry/semconv"
	"github.com/xKoRx/mt5/utils"
)

// Config parametriza el publisher.
type Config struct {
	// URL del servidor NATS (nats://host:4222).
	URL string
	// Name identifica la conexión en el monitor de NATS.
	Name string
	// SubjectPrefix antecede a todos los subjects. Default "md".
	SubjectPrefix string
	// ConnectTimeout para el dial inicial.
	ConnectTimeout time.Duration
	// ReconnectWait entre reintentos de reconexión.
	ReconnectWait time.Duration
	// MaxReconnects antes de rendirse; -1 reintenta por siempre.
	MaxReconnects int
}

// DefaultConfig retorna la configuración por defecto.
func DefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		Name:           "mt5-publisher",
		SubjectPrefix:  "md",
		ConnectTimeout: 5 * time.Second,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
	}
}

// Option ajusta la configuración del publisher.
type Option func(*Config)

// WithURL fija la URL del servidor NATS.
func WithURL(url string) Option {
	return func(c *Config) { c.URL = url }
}

// WithName fija el nombre de la conexión.
func WithName(name string) Option {
	return func(c *Config) { c.Name = name }
}

// WithSubjectPrefix fija el prefijo de subjects.
func WithSubjectPrefix(prefix string) Option {
	return func(c *Config) { c.SubjectPrefix = prefix }
}

// WithReconnect fija la política de reconexión.
func WithReconnect(wait time.Duration, maxReconnects int) Option {
	return func(c *Config) {
		c.ReconnectWait = wait
		c.MaxReconnects = maxReconnects
	}
}

// Publisher publica ticks y velas en NATS.
type Publisher struct {
	config    Config
	telemetry *telemetry.Client
	ticks     *metricbundle.TickMetrics
	candles   *metricbundle.CandleMetrics

	mu sync.RWMutex
	nc *nats.Conn
}

// New crea un Publisher sin conectar; llamar Connect antes de publicar.
func New(tel *telemetry.Client, opts ...Option) *Publisher {
	if tel == nil {
		tel = telemetry.NewNop()
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Publisher{
		config:    cfg,
		telemetry: tel,
		ticks:     metricbundle.GetGlobalTickMetrics(),
		candles:   metricbundle.GetGlobalCandleMetrics(),
	}
}

// Connect establece la conexión con el servidor NATS.
func (p *Publisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.nc != nil && p.nc.IsConnected() {
		return nil
	}

	opts := []nats.Option{
		nats.Name(p.config.Name),
		nats.Timeout(p.config.ConnectTimeout),
		nats.ReconnectWait(p.config.ReconnectWait),
		nats.MaxReconnects(p.config.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.telemetry.Warn(context.Background(), "NATS disconnected",
				attribute.String("error", fmt.Sprint(err)),
			)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			p.telemetry.Info(context.Background(), "NATS reconnected",
				attribute.String("url", nc.ConnectedUrl()),
			)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			p.telemetry.Warn(context.Background(), "NATS connection closed")
		}),
	}

	nc, err := nats.Connect(p.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("nats connection failed: %w", err)
	}
	p.nc = nc

	p.telemetry.Info(ctx, "NATS publisher connected",
		attribute.String("url", p.config.URL),
		attribute.String("prefix", p.config.SubjectPrefix),
	)
	return nil
}

// Connected indica si hay conexión activa con NATS.
func (p *Publisher) Connected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.nc != nil && p.nc.IsConnected()
}

// PublishTick publica un tick en md.tick.<SYMBOL>.
func (p *Publisher) PublishTick(ctx context.Context, tick *domain.Tick) error {
	subject := p.subject("tick", tick.Symbol)
	if err := p.publish(subject, tick); err != nil {
		p.ticks.RecordTickProcessed(ctx, tick.Symbol, false)
		return err
	}
	p.ticks.RecordTickProcessed(ctx, tick.Symbol, true)
	return nil
}

// PublishCandle publica una vela cerrada en md.candle.<SYMBOL>.<TF>.
func (p *Publisher) PublishCandle(ctx context.Context, candle *domain.Candle, timeframe domain.Timeframe) error {
	subject := p.subject("candle", candle.Symbol, timeframe.String())
	if err := p.publish(subject, candle); err != nil {
		return err
	}
	p.candles.RecordCandlesFetched(ctx, candle.Symbol, timeframe.String(), 1, true)
	return nil
}

// PublishEvent publica un evento del terminal en md.event.<NAME>.
func (p *Publisher) PublishEvent(ctx context.Context, name string, payload interface{}) error {
	return p.publish(p.subject("event", name), payload)
}

func (p *Publisher) publish(subject string, payload interface{}) error {
	p.mu.RLock()
	nc := p.nc
	p.mu.RUnlock()

	if nc == nil || !nc.IsConnected() {
		return domain.NewError(domain.ErrNotConnected, "nats publisher not connected")
	}

	data, err := utils.MarshalJSON(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize payload for %s: %w", subject, err)
	}
	return nc.Publish(subject, data)
}

// subject arma el subject completo; los tokens van en mayúsculas para
// que los wildcards de NATS matcheen de forma predecible.
func (p *Publisher) subject(kind string, tokens ...string) string {
	parts := make([]string, 0, len(tokens)+2)
	if p.config.SubjectPrefix != "" {
		parts = append(parts, p.config.SubjectPrefix)
	}
	parts = append(parts, kind)
	for _, t := range tokens {
		parts = append(parts, strings.ToUpper(strings.ReplaceAll(t, ".", "_")))
	}
	return strings.Join(parts, ".")
}

// Flush espera a que el servidor confirme lo publicado.
func (p *Publisher) Flush() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.nc == nil {
		return nil
	}
	return p.nc.Flush()
}

// Close drena y cierra la conexión.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.nc == nil || p.nc.IsClosed() {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return err
	}
	p.telemetry.Info(ctx, "NATS publisher closed",
		semconv.Mt5.Component.String(semconv.ComponentValues.Data),
	)
	return nil
}
