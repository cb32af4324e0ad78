package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pulsemeter/internal/domain"
	"pulsemeter/internal/event"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() domain.CycleReport {
	return domain.CycleReport{
		Sample:   domain.Sample{Pulses: 50, Energy: 0.05, Power: 36},
		Duration: 40 * time.Millisecond,
		Results: []domain.SinkResult{
			{Sink: "dashboard", Status: domain.SinkOK, Duration: 10 * time.Millisecond},
			{Sink: "http", Status: domain.SinkFailed, Reason: "timeout"},
			{Sink: "mqtt", Status: domain.SinkSkipped},
		},
	}
}

func TestPromObs_ObservesEventsFromBus(t *testing.T) {
	obs := NewPromObs()
	bus := event.New()
	obs.Subscribe(bus)

	bus.Publish(domain.EventSampleReported, sampleReport())
	bus.Publish(domain.EventSampleReported, sampleReport())
	bus.Publish(domain.EventSinkStateChanged, domain.SinkState{Name: "mqtt", Connected: true})

	assert.Equal(t, 2.0, testutil.ToFloat64(obs.cycles))
	assert.Equal(t, 100.0, testutil.ToFloat64(obs.pulses))
	assert.Equal(t, 36.0, testutil.ToFloat64(obs.power))
	assert.Equal(t, 2.0, testutil.ToFloat64(obs.sinkResults.WithLabelValues("http", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(obs.sinkResults.WithLabelValues("dashboard", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.sinkConnected.WithLabelValues("mqtt")))
	assert.Equal(t, 1, testutil.CollectAndCount(obs.cycleDuration))

	bus.Publish(domain.EventSinkStateChanged, domain.SinkState{Name: "mqtt", Connected: false})
	assert.Equal(t, 0.0, testutil.ToFloat64(obs.sinkConnected.WithLabelValues("mqtt")))
}

type fakeStatus struct {
	latest *domain.Sample
}

func (f fakeStatus) Total() uint64 { return 1234 }

func (f fakeStatus) Pending() uint64 { return 7 }

func (f fakeStatus) Interval() time.Duration { return 5 * time.Second }

func (f fakeStatus) States() []domain.SinkState {
	return []domain.SinkState{{Name: "mqtt", Connected: true}}
}

func (f fakeStatus) Latest() (domain.Sample, bool) {
	if f.latest == nil {
		return domain.Sample{}, false
	}
	return *f.latest, true
}

func TestRouter_HealthzAndMetrics(t *testing.T) {
	obs := NewPromObs()
	obs.ObserveCycle(sampleReport())

	h := NewRouter(obs, fakeStatus{latest: &domain.Sample{Pulses: 50}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, uint64(1234), st.TotalPulses)
	assert.Equal(t, uint64(7), st.PendingPulses)
	assert.Equal(t, int64(5000), st.IntervalMS)
	require.NotNil(t, st.Latest)
	assert.Equal(t, uint64(50), st.Latest.Pulses)
	require.Len(t, st.Sinks, 1)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "pulsemeter_cycles_total 1"))
}
