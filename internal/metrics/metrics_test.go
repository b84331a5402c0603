package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.ObservePlan("video", 3)
	m.ObservePlan("deskshare", 1)
	m.IncInvalidPlans()
	m.IncFragments("blank")
	m.IncToolFailures("blank")
	m.IncToolRetries()
	m.ObserveRender("completed", 12.5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	s := string(body)
	require.Contains(t, s, `timeline_paddings_total{namespace="video"} 3`)
	require.Contains(t, s, `timeline_plans_total{namespace="deskshare"} 1`)
	require.Contains(t, s, "timeline_invalid_plans_total 1")
	require.Contains(t, s, `timeline_fragments_generated_total{kind="blank"} 1`)
	require.Contains(t, s, `timeline_renders_total{status="completed"} 1`)
	require.Contains(t, s, "timeline_render_duration_seconds_count 1")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObservePlan("video", 1)
	m.IncInvalidPlans()
	m.IncFragments("blank")
	m.IncToolFailures("concat")
	m.IncToolRetries()
	m.ObserveRender("failed", 1)
}
