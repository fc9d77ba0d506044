package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendpulse/internal/core"
)

func TestRecordRun(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	before := testutil.ToFloat64(RunItems.WithLabelValues("written"))

	RecordRun(&core.RunSummary{
		Status:     core.RunSuccess,
		StartedAt:  start,
		FinishedAt: start.Add(30 * time.Second),
		Written:    4,
	})
	assert.Equal(t, before+4, testutil.ToFloat64(RunItems.WithLabelValues("written")))
	assert.Equal(t, float64(start.Add(30*time.Second).Unix()), testutil.ToFloat64(LastRun))

	rejected := testutil.ToFloat64(Runs.WithLabelValues("rejected"))
	RecordRun(&core.RunSummary{Status: core.RunRejected})
	assert.Equal(t, rejected+1, testutil.ToFloat64(Runs.WithLabelValues("rejected")))

	RecordRun(nil)
}

func TestGaugesReset(t *testing.T) {
	RecordTrends([]core.TrendRecord{
		{Breakdown: core.ScoreBreakdown{Action: core.ActionEscalate, RiskLevel: core.RiskHigh}},
		{Breakdown: core.ScoreBreakdown{Action: core.ActionEscalate, RiskLevel: core.RiskHigh}},
	})
	assert.Equal(t, 2.0, testutil.ToFloat64(TrendsByAction.WithLabelValues("ESCALATE", "high")))

	RecordTrends(nil)
	assert.Equal(t, 0, testutil.CollectAndCount(TrendsByAction))

	RecordPitchCards([]core.PitchCard{{Market: "NG", Confidence: core.ConfidenceHigh}})
	assert.Equal(t, 1.0, testutil.ToFloat64(PitchCards.WithLabelValues("NG", "High")))

	RecordValidation(2, 5)
	assert.Equal(t, 5.0, testutil.ToFloat64(ValidationViolations.WithLabelValues("warning")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordJob("validate", time.Second, errors.New("boom"))
	RecordSourceFetch("rss", nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `trendpulse_job_executions_total{job="validate",status="error"}`))
	assert.True(t, strings.Contains(body, `trendpulse_source_fetches_total{source="rss",status="success"}`))
}
