package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestInstrumentHandler_CountsByCanonicalPath(t *testing.T) {
	m := New()
	h := m.InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	for _, p := range []string{"/createAlarm", "/createAlarm/", "/createAlarm/x/y"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, p, nil))
	}

	assert.Contains(t, scrape(t, m), `wakeup_http_requests_total{method="PUT",path="/createAlarm",status="418"} 3`)
}

func TestEventAndJobCounters(t *testing.T) {
	m := New()
	m.RecordPublish(shared.EventSleepEnded)
	m.RecordPublish(shared.EventSleepEnded)
	m.RecordHandlerExecution(shared.EventSleepEnded, time.Millisecond, false)
	m.RecordJob("", time.Second, true)
	m.SetBreakerState("postgres", 1)
	m.RecordWakePlanned()

	out := scrape(t, m)
	assert.Contains(t, out, `wakeup_events_published_total{type="sleep.ended"} 2`)
	assert.Contains(t, out, `wakeup_events_handler_runs_total{success="false",type="sleep.ended"} 1`)
	assert.Contains(t, out, `wakeup_scheduler_job_runs_total{job="unknown",success="true"} 1`)
	assert.Contains(t, out, `wakeup_breaker_state{name="postgres"} 1`)
	assert.Contains(t, out, "wakeup_alarm_wakes_planned_total 1")
}

func TestCanonicalPath(t *testing.T) {
	assert.Equal(t, "/", canonicalPath(""))
	assert.Equal(t, "/", canonicalPath("/"))
	assert.Equal(t, "/getUser", canonicalPath("/getUser"))
	assert.Equal(t, "/challenges", canonicalPath("/challenges/table"))
}
