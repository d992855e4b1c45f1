package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Client es el cliente unificado de telemetría para la librería mt5
type Client struct {
	config Config
	logger *slog.Logger
	tracer trace.Tracer
	meter  metric.Meter

	// Providers (para shutdown)
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	// Instrumentos de métricas comunes
	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// New crea una nueva instancia del cliente de telemetría
func New(ctx context.Context, serviceName, environment string, opts ...Option) (*Client, error) {
	cfg := DefaultConfig(serviceName, environment)
	for _, opt := range opts {
		opt(&cfg)
	}

	client := &Client{
		config:     cfg,
		meter:      noop.NewMeterProvider().Meter(cfg.ServiceName),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
		resource.WithAttributes(cfg.CommonAttributes...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if cfg.EnableLogs {
		client.initLogs()
	}

	if cfg.EnableTraces {
		if err := client.initTraces(ctx, res); err != nil {
			return nil, fmt.Errorf("failed to init traces: %w", err)
		}
	}

	if cfg.EnableMetrics {
		if err := client.initMetrics(ctx, res); err != nil {
			return nil, fmt.Errorf("failed to init metrics: %w", err)
		}
	}

	return client, nil
}

// NewNop retorna un cliente que descarta todo.
//
// Útil como default cuando el caller no configuró telemetría.
func NewNop() *Client {
	return &Client{
		config:     Config{ServiceName: "nop"},
		meter:      noop.NewMeterProvider().Meter("nop"),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

func (c *Client) initLogs() {
	level := slog.LevelInfo
	switch strings.ToUpper(c.config.LogLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	c.logger = slog.New(handler)
}

func (c *Client) initTraces(ctx context.Context, res *resource.Resource) error {
	endpoint := c.config.OTLPTracesEndpoint
	if endpoint == "" {
		endpoint = c.config.OTLPEndpoint
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return err
	}

	c.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(c.tracerProvider)
	c.tracer = c.tracerProvider.Tracer(c.config.ServiceName)

	return nil
}

func (c *Client) initMetrics(ctx context.Context, res *resource.Resource) error {
	endpoint := c.config.OTLPMetricsEndpoint
	if endpoint == "" {
		endpoint = c.config.OTLPEndpoint
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return err
	}

	c.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(c.meterProvider)
	c.meter = c.meterProvider.Meter(c.config.ServiceName)

	return nil
}

// Shutdown cierra todos los exporters y libera recursos
func (c *Client) Shutdown(ctx context.Context) error {
	var errs []error

	if c.tracerProvider != nil {
		if err := c.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if c.meterProvider != nil {
		if err := c.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	return nil
}

// GetOrCreateCounter obtiene o crea un contador
func (c *Client) GetOrCreateCounter(name, description string) (metric.Int64Counter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, exists := c.counters[name]; exists {
		return counter, nil
	}

	counter, err := c.meter.Int64Counter(name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, err
	}

	c.counters[name] = counter
	return counter, nil
}

// GetOrCreateHistogram obtiene o crea un histograma
func (c *Client) GetOrCreateHistogram(name, description string) (metric.Float64Histogram, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if histogram, exists := c.histograms[name]; exists {
		return histogram, nil
	}

	histogram, err := c.meter.Float64Histogram(name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, err
	}

	c.histograms[name] = histogram
	return histogram, nil
}

// Counter obtiene o crea un contador (interfaz para metricbundle).
func (c *Client) Counter(name, description string) metric.Int64Counter {
	counter, err := c.GetOrCreateCounter(name, description)
	if err != nil {
		return nil
	}
	return counter
}

// Histogram obtiene o crea un histograma (interfaz para metricbundle).
func (c *Client) Histogram(name, description string) metric.Float64Histogram {
	histogram, err := c.GetOrCreateHistogram(name, description)
	if err != nil {
		return nil
	}
	return histogram
}
