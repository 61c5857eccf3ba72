package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// MeterName scopes every instrument created by this service.
const MeterName = "bmai-api"

const metricExportInterval = 30 * time.Second

// Metrics holds the OTLP-pushed instruments. Besides the HTTP instruments it
// mirrors the session lifecycle, so it can stand in as a session observer.
type Metrics struct {
	RequestsTotal       metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	RateLimitRejections metric.Int64Counter

	sessionRefreshes metric.Int64Counter
	refreshCoalesced metric.Int64Counter
	openSessions     atomic.Int64
}

// InitMetrics installs a global meter provider exporting to endpoint over
// OTLP gRPC and returns the service instruments created on it.
func InitMetrics(ctx context.Context, serviceName, endpoint string) (*sdkmetric.MeterProvider, *Metrics, error) {
	res, err := newResource(ctx, serviceName)
	if err != nil {
		return nil, nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exporter, err := otlpmetricgrpc.New(dialCtx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithDialOption(grpc.WithBlock()),
		otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(metricExportInterval))),
	)
	otel.SetMeterProvider(mp)

	metrics, err := NewMetrics(mp)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}
	return mp, metrics, nil
}

// NewMetrics creates the service instruments on any meter provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(MeterName)
	m := &Metrics{}

	var err error
	if m.RequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create requests counter: %w", err)
	}

	if m.RequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	if m.RateLimitRejections, err = meter.Int64Counter("rate_limit_rejections_total",
		metric.WithDescription("Requests rejected by the per-principal rate limit"),
		metric.WithUnit("{rejection}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create rate limit counter: %w", err)
	}

	if m.sessionRefreshes, err = meter.Int64Counter("session_refreshes_total",
		metric.WithDescription("Completed session refreshes by outcome"),
		metric.WithUnit("{refresh}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create session refresh counter: %w", err)
	}

	if m.refreshCoalesced, err = meter.Int64Counter("session_refreshes_coalesced_total",
		metric.WithDescription("Refresh requests that joined an in-flight refresh"),
		metric.WithUnit("{refresh}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create coalesced refresh counter: %w", err)
	}

	if _, err = meter.Int64ObservableGauge("session_open",
		metric.WithDescription("Sessions currently held by the manager"),
		metric.WithUnit("{session}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.openSessions.Load())
			return nil
		}),
	); err != nil {
		return nil, fmt.Errorf("failed to create open sessions gauge: %w", err)
	}

	return m, nil
}

// RefreshCompleted counts one finished refresh.
func (m *Metrics) RefreshCompleted(outcome string) {
	m.sessionRefreshes.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RefreshCoalesced counts a caller that joined an in-flight refresh.
func (m *Metrics) RefreshCoalesced() {
	m.refreshCoalesced.Add(context.Background(), 1)
}

// SessionsOpen records the current number of open sessions.
func (m *Metrics) SessionsOpen(n int) {
	m.openSessions.Store(int64(n))
}

// SessionObserver matches session.Observer.
type SessionObserver interface {
	RefreshCompleted(outcome string)
	RefreshCoalesced()
	SessionsOpen(n int)
}

type fanOut []SessionObserver

// FanOut reports session events to each observer in order.
func FanOut(observers ...SessionObserver) SessionObserver {
	return fanOut(observers)
}

func (f fanOut) RefreshCompleted(outcome string) {
	for _, o := range f {
		o.RefreshCompleted(outcome)
	}
}

func (f fanOut) RefreshCoalesced() {
	for _, o := range f {
		o.RefreshCoalesced()
	}
}

func (f fanOut) SessionsOpen(n int) {
	for _, o := range f {
		o.SessionsOpen(n)
	}
}
