// Package otel builds the OpenTelemetry log pipeline behind the slog bridge.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/myplaces/placemap/internal/config"
)

// DefaultServiceName is reported when otel.serviceName is not set.
const DefaultServiceName = "placemap"

// ErrNoSink is returned when OTel is enabled with neither a log writer nor an
// OTLP endpoint to export to.
var ErrNoSink = errors.New("otel enabled but no log writer or endpoint configured")

// Provider owns the log provider and its exporters.
type Provider struct {
	enabled     bool
	serviceName string
	logProvider *sdklog.LoggerProvider
}

// New builds the log pipeline from cfg. Records are exported as pretty JSON
// to logWriter when it is non-nil, and over OTLP/HTTP when cfg.Endpoint is
// set. A disabled cfg yields a Provider whose methods are no-ops.
func New(cfg config.OTelConfig, logWriter io.Writer) (*Provider, error) {
	p := &Provider{
		enabled:     cfg.Enabled,
		serviceName: cfg.ServiceName,
	}
	if p.serviceName == "" {
		p.serviceName = DefaultServiceName
	}
	if !cfg.Enabled {
		return p, nil
	}

	ctx := context.Background()
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(p.serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	batch := func(exp sdklog.Exporter) sdklog.LoggerProviderOption {
		if cfg.BatchTimeout > 0 {
			return sdklog.WithProcessor(sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout)))
		}
		return sdklog.WithProcessor(sdklog.NewBatchProcessor(exp))
	}

	if logWriter != nil {
		exp, err := stdoutlog.New(
			stdoutlog.WithWriter(logWriter),
			stdoutlog.WithPrettyPrint(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		opts = append(opts, batch(exp))
	}

	if cfg.Endpoint != "" {
		otlpOpts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			otlpOpts = append(otlpOpts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(ctx, otlpOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		opts = append(opts, batch(exp))
	}

	if len(opts) == 1 {
		return nil, ErrNoSink
	}

	p.logProvider = sdklog.NewLoggerProvider(opts...)
	return p, nil
}

// LoggerProvider returns the provider for the otelslog bridge, or nil when
// OTel is disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logProvider
}

// ServiceName is the service.name resource attribute.
func (p *Provider) ServiceName() string {
	return p.serviceName
}

// Enabled reports whether the pipeline is running.
func (p *Provider) Enabled() bool {
	return p.enabled
}

// Flush exports all buffered records.
func (p *Provider) Flush(ctx context.Context) error {
	if p.logProvider == nil {
		return nil
	}
	if err := p.logProvider.ForceFlush(ctx); err != nil {
		return fmt.Errorf("log flush failed: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.logProvider == nil {
		return nil
	}
	if err := p.logProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("log shutdown failed: %w", err)
	}
	return nil
}
