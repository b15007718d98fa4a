package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/safar/stockbill/internal/config"
)

const instrumentationName = "github.com/safar/stockbill"

type Shutdown func(context.Context) error

// Setup installs the global tracer and meter providers. Spans and metrics are
// exported to w when stdout export is enabled and dropped otherwise.
func Setup(cfg config.TelemetryConfig, w io.Writer) (Shutdown, error) {
	res := resource.NewWithAttributes("",
		attribute.String("service.name", cfg.ServiceName),
	)

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if cfg.Stdout {
		spans, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(spans))

		metrics, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("create metric exporter: %w", err)
		}
		meterOpts = append(meterOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metrics)))
	}

	tracerProvider := sdktrace.NewTracerProvider(traceOpts...)
	meterProvider := sdkmetric.NewMeterProvider(meterOpts...)
	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func(ctx context.Context) error {
		return errors.Join(
			tracerProvider.Shutdown(ctx),
			meterProvider.Shutdown(ctx),
		)
	}, nil
}

// BillingMetrics counts stock movements and committed bills.
type BillingMetrics struct {
	reserved        metric.Int64Counter
	released        metric.Int64Counter
	releaseFailures metric.Int64Counter
	bills           metric.Int64Counter
	revenue         metric.Float64Counter
	reaped          metric.Int64Counter
}

func NewBillingMetrics(meter metric.Meter) (*BillingMetrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	var (
		m   BillingMetrics
		err error
	)
	if m.reserved, err = meter.Int64Counter("stock.reserved",
		metric.WithDescription("Units of stock reserved by carts"),
		metric.WithUnit("{unit}")); err != nil {
		return nil, fmt.Errorf("create stock.reserved counter: %w", err)
	}
	if m.released, err = meter.Int64Counter("stock.released",
		metric.WithDescription("Units of stock returned to the catalog"),
		metric.WithUnit("{unit}")); err != nil {
		return nil, fmt.Errorf("create stock.released counter: %w", err)
	}
	if m.releaseFailures, err = meter.Int64Counter("stock.release_failures",
		metric.WithDescription("Releases that failed and were skipped")); err != nil {
		return nil, fmt.Errorf("create stock.release_failures counter: %w", err)
	}
	if m.bills, err = meter.Int64Counter("bills.committed",
		metric.WithDescription("Bills persisted")); err != nil {
		return nil, fmt.Errorf("create bills.committed counter: %w", err)
	}
	if m.revenue, err = meter.Float64Counter("bills.revenue",
		metric.WithDescription("Grand total of committed bills")); err != nil {
		return nil, fmt.Errorf("create bills.revenue counter: %w", err)
	}
	if m.reaped, err = meter.Int64Counter("carts.reaped",
		metric.WithDescription("Idle or orphaned carts cancelled by the reaper")); err != nil {
		return nil, fmt.Errorf("create carts.reaped counter: %w", err)
	}

	return &m, nil
}

func (m *BillingMetrics) StockReserved(ctx context.Context, amount int) {
	m.reserved.Add(ctx, int64(amount))
}

func (m *BillingMetrics) StockReleased(ctx context.Context, amount int) {
	m.released.Add(ctx, int64(amount))
}

func (m *BillingMetrics) ReleaseFailed(ctx context.Context) {
	m.releaseFailures.Add(ctx, 1)
}

func (m *BillingMetrics) BillCommitted(ctx context.Context, total decimal.Decimal) {
	m.bills.Add(ctx, 1)
	m.revenue.Add(ctx, total.InexactFloat64())
}

func (m *BillingMetrics) CartsReaped(ctx context.Context, n int) {
	m.reaped.Add(ctx, int64(n))
}
