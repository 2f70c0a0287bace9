package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// MeterProvider wraps the OpenTelemetry MeterProvider with lifecycle management
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
	config   Config
}

// NewMeterProvider creates and configures a new MeterProvider.
// If metrics are disabled, it returns a provider that wraps the no-op global meter.
func NewMeterProvider(ctx context.Context, cfg Config, logger *zap.Logger) (*MeterProvider, error) {
	mp := &MeterProvider{
		logger: logger,
		config: cfg,
	}

	if !cfg.Enabled {
		logger.Info("Metrics disabled, using no-op meter provider")
		return mp, nil
	}

	exporterOpts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint),
	}
	if cfg.Insecure {
		exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(60*time.Second)),
		),
	)
	otel.SetMeterProvider(mp.provider)

	logger.Info("OpenTelemetry MeterProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.String("service_name", cfg.ServiceName),
	)
	return mp, nil
}

// Shutdown gracefully shuts down the meter provider, flushing any pending metrics
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := mp.provider.Shutdown(shutdownCtx); err != nil {
		mp.logger.Error("Error shutting down meter provider", zap.Error(err))
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}

// Meter returns a named meter from the provider
func (mp *MeterProvider) Meter(name string) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name)
	}
	return mp.provider.Meter(name)
}

// CommitMetrics tracks the commit protocol: orders committed, tokens sold,
// and rollbacks triggered.
type CommitMetrics struct {
	ordersCommitted metric.Int64Counter
	tokensSold      metric.Int64Counter
	rollbacks       metric.Int64Counter
	ledgerPosts     metric.Int64Counter
}

// NewCommitMetrics creates the commit protocol metric instruments
func NewCommitMetrics(meter metric.Meter) (*CommitMetrics, error) {
	ordersCommitted, err := meter.Int64Counter(
		"venda_orders_committed_total",
		metric.WithDescription("Total number of orders committed"),
		metric.WithUnit("{orders}"),
	)
	if err != nil {
		return nil, err
	}

	tokensSold, err := meter.Int64Counter(
		"venda_tokens_sold_total",
		metric.WithDescription("Total number of access tokens sold"),
		metric.WithUnit("{tokens}"),
	)
	if err != nil {
		return nil, err
	}

	rollbacks, err := meter.Int64Counter(
		"venda_commit_rollbacks_total",
		metric.WithDescription("Total number of order commits rolled back"),
		metric.WithUnit("{rollbacks}"),
	)
	if err != nil {
		return nil, err
	}

	ledgerPosts, err := meter.Int64Counter(
		"venda_ledger_posts_total",
		metric.WithDescription("Total number of ledger entries posted"),
		metric.WithUnit("{entries}"),
	)
	if err != nil {
		return nil, err
	}

	return &CommitMetrics{
		ordersCommitted: ordersCommitted,
		tokensSold:      tokensSold,
		rollbacks:       rollbacks,
		ledgerPosts:     ledgerPosts,
	}, nil
}

// RecordOrderCommitted records one committed order
func (m *CommitMetrics) RecordOrderCommitted(ctx context.Context, tenantID string) {
	m.ordersCommitted.Add(ctx, 1, metric.WithAttributes(attribute.String("tenant_id", tenantID)))
}

// RecordTokensSold records sold tokens
func (m *CommitMetrics) RecordTokensSold(ctx context.Context, tenantID string, count int64) {
	m.tokensSold.Add(ctx, count, metric.WithAttributes(attribute.String("tenant_id", tenantID)))
}

// RecordRollback records one unwound commit
func (m *CommitMetrics) RecordRollback(ctx context.Context, tenantID, reason string) {
	m.rollbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("reason", reason),
	))
}

// RecordLedgerPost records one posted ledger entry
func (m *CommitMetrics) RecordLedgerPost(ctx context.Context, tenantID string) {
	m.ledgerPosts.Add(ctx, 1, metric.WithAttributes(attribute.String("tenant_id", tenantID)))
}
