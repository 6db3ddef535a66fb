// Package otel owns the OpenTelemetry log and metric providers of one client
// or relay process.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const defaultMetricInterval = 30 * time.Second

// Config holds OTel configuration
type Config struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	LogWriter    io.Writer // pretty-printed log records, usually the log file
	Endpoint     string    // OTLP/HTTP collector, optional
	Insecure     bool
	// MetricWriter receives periodic metric dumps; metrics stay no-op when nil.
	MetricWriter   io.Writer
	MetricInterval time.Duration
	// Attributes are added to the resource, e.g. the match code and player id.
	Attributes map[string]string
}

// component is anything the provider has to flush and shut down.
type component interface {
	ForceFlush(context.Context) error
	Shutdown(context.Context) error
}

// Provider manages OpenTelemetry providers for logs and metrics
type Provider struct {
	logProvider   *sdklog.LoggerProvider
	meterProvider *sdkmetric.MeterProvider
	enabled       bool
}

// New builds the providers. A disabled config gives a provider whose methods
// are all no-ops.
func New(cfg Config) (*Provider, error) {
	p := &Provider{enabled: cfg.Enabled}
	if !cfg.Enabled {
		return p, nil
	}

	ctx := context.Background()
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if p.logProvider, err = newLogProvider(ctx, cfg, res); err != nil {
		return nil, err
	}
	if cfg.MetricWriter != nil {
		if p.meterProvider, err = newMeterProvider(cfg, res); err != nil {
			return nil, err
		}
		// dispatcher and session instruments resolve through the global provider
		otel.SetMeterProvider(p.meterProvider)
	}
	return p, nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	for k, v := range cfg.Attributes {
		if v != "" {
			attrs = append(attrs, attribute.String(k, v))
		}
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func newLogProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	var exporters []sdklog.Exporter
	if cfg.LogWriter != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(cfg.LogWriter), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		exporters = append(exporters, exp)
	}
	if cfg.Endpoint != "" {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		exporters = append(exporters, exp)
	}
	if len(exporters) == 0 {
		return nil, errors.New("OTel enabled but no log writer or endpoint configured")
	}

	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, exp := range exporters {
		opts = append(opts, sdklog.WithProcessor(
			sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout))))
	}
	return sdklog.NewLoggerProvider(opts...), nil
}

func newMeterProvider(cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exp, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.MetricWriter))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = defaultMetricInterval
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
	), nil
}

// LoggerProvider returns the log provider for the otelslog bridge, nil when
// OTel is disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logProvider
}

// Meter returns a meter with the given name, or a no-op meter when metrics
// are not exported.
func (p *Provider) Meter(name string) metric.Meter {
	if p.meterProvider == nil {
		return noop.Meter{}
	}
	return p.meterProvider.Meter(name)
}

func (p *Provider) components() []component {
	var cs []component
	if p.logProvider != nil {
		cs = append(cs, p.logProvider)
	}
	if p.meterProvider != nil {
		cs = append(cs, p.meterProvider)
	}
	return cs
}

// Flush exports everything pending; called when a match ends.
func (p *Provider) Flush(ctx context.Context) error {
	var errs []error
	for _, c := range p.components() {
		if err := c.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops every provider. Every provider is shut down even
// when an earlier one fails.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, c := range p.components() {
		if err := c.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Enabled returns whether OTel is enabled
func (p *Provider) Enabled() bool {
	return p.enabled
}
