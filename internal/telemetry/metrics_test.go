package telemetry

import (
	"context"
	"testing"

	"bmai-api/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var (
	_ session.Observer = (*Metrics)(nil)
	_ session.Observer = FanOut()
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Aggregation{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestMetrics_SessionInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	metrics, err := NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	metrics.RefreshCompleted(session.OutcomeOK)
	metrics.RefreshCompleted(session.OutcomeOK)
	metrics.RefreshCompleted(session.OutcomeDiscarded)
	metrics.RefreshCoalesced()
	metrics.SessionsOpen(4)

	data := collect(t, reader)

	refreshes, ok := data["session_refreshes_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	byOutcome := map[string]int64{}
	for _, dp := range refreshes.DataPoints {
		outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
		byOutcome[outcome.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"ok": 2, "discarded": 1}, byOutcome)

	coalesced, ok := data["session_refreshes_coalesced_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, coalesced.DataPoints, 1)
	assert.Equal(t, int64(1), coalesced.DataPoints[0].Value)

	open, ok := data["session_open"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, open.DataPoints, 1)
	assert.Equal(t, int64(4), open.DataPoints[0].Value)
}

type countingObserver struct {
	completed []string
	coalesced int
	open      int
}

func (c *countingObserver) RefreshCompleted(outcome string) { c.completed = append(c.completed, outcome) }
func (c *countingObserver) RefreshCoalesced()               { c.coalesced++ }
func (c *countingObserver) SessionsOpen(n int)              { c.open = n }

func TestFanOut(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	observer := FanOut(a, b)

	observer.RefreshCompleted(session.OutcomeFetchError)
	observer.RefreshCoalesced()
	observer.SessionsOpen(2)

	for _, c := range []*countingObserver{a, b} {
		assert.Equal(t, []string{session.OutcomeFetchError}, c.completed)
		assert.Equal(t, 1, c.coalesced)
		assert.Equal(t, 2, c.open)
	}
}
