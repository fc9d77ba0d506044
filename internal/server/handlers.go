package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"trendpulse/internal/core"
	"trendpulse/internal/health"
	"trendpulse/internal/persistence"
	"trendpulse/internal/scheduler"
	"trendpulse/internal/sources"
)

const (
	defaultTrendLimit = 50
	maxTrendLimit     = 500
	defaultRunLimit   = 20
)

// HealthResponse is the /health payload
type HealthResponse struct {
	Status  string                  `json:"status"`
	Checks  map[string]string       `json:"checks"`
	Sources []sources.AdapterHealth `json:"sources,omitempty"`
}

// StatusResponse is the /api/status payload
type StatusResponse struct {
	Version   string                  `json:"version"`
	Uptime    string                  `json:"uptime"`
	Running   bool                    `json:"running"`
	Stats     *persistence.TrendStats `json:"stats"`
	LatestRun *core.RunSummary        `json:"latest_run,omitempty"`
	Jobs      []scheduler.JobHealth   `json:"jobs,omitempty"`
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if err := s.deps.DB.Ping(r.Context()); err != nil {
		checks["database"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Checks: checks,
		})
		return
	}

	checks["database"] = "ok"
	resp := HealthResponse{Status: "ok", Checks: checks}
	if s.deps.Sources != nil {
		resp.Sources = s.deps.Sources.SourceHealth()
		checks["sources"] = "ok"
		for _, h := range resp.Sources {
			if h.Failing() {
				checks["sources"] = "degraded"
				resp.Status = "degraded"
				break
			}
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleStatus handles the /api/status endpoint
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := s.deps.DB.Trends().Stats(ctx)
	if err != nil {
		s.log.Error("Failed to load trend stats", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	resp := StatusResponse{
		Version: s.deps.Version,
		Uptime:  time.Since(s.started).Truncate(time.Second).String(),
		Stats:   stats,
	}
	if s.deps.Runner != nil {
		resp.Running = s.deps.Runner.Running()
	}
	if s.deps.Jobs != nil {
		resp.Jobs = s.deps.Jobs.Health()
	}

	latest, err := s.deps.DB.Runs().Latest(ctx)
	switch {
	case err == nil:
		resp.LatestRun = latest
	case !errors.Is(err, persistence.ErrNotFound):
		s.log.Warn("Failed to load latest run", "error", err)
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleListTrends handles GET /api/trends
func (s *Server) handleListTrends(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTrendFilter(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.deps.DB.Trends().Query(r.Context(), filter)
	if err != nil {
		s.log.Error("Failed to query trends", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to query trends")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"trends": records,
		"count":  len(records),
	})
}

// handleGetTrend handles GET /api/trends/{id}
func (s *Server) handleGetTrend(w http.ResponseWriter, r *http.Request) {
	record, ok := s.lookupTrend(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, record)
}

// handleTrendHistory handles GET /api/trends/{id}/history
func (s *Server) handleTrendHistory(w http.ResponseWriter, r *http.Request) {
	record, ok := s.lookupTrend(w, r)
	if !ok {
		return
	}

	limit, err := intParam(r, "limit", 0, maxTrendLimit)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := s.deps.DB.Trends().History(r.Context(), record.Fingerprint, limit)
	if err != nil {
		s.log.Error("Failed to load trend history", "id", record.ID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":          record.ID,
		"fingerprint": record.Fingerprint,
		"history":     history,
	})
}

func (s *Server) lookupTrend(w http.ResponseWriter, r *http.Request) (*core.TrendRecord, bool) {
	id := chi.URLParam(r, "id")
	record, err := s.deps.DB.Trends().GetByID(r.Context(), id)
	if errors.Is(err, persistence.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "trend not found")
		return nil, false
	}
	if err != nil {
		s.log.Error("Failed to load trend", "id", id, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load trend")
		return nil, false
	}
	return record, true
}

// handleListPitchCards handles GET /api/pitch-cards
func (s *Server) handleListPitchCards(w http.ResponseWriter, r *http.Request) {
	market := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("market")))
	cards, err := s.deps.DB.PitchCards().List(r.Context(), market)
	if err != nil {
		s.log.Error("Failed to list pitch cards", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list pitch cards")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"pitch_cards": cards,
		"count":       len(cards),
	})
}

// handleValidation handles GET /api/validation
func (s *Server) handleValidation(w http.ResponseWriter, r *http.Request) {
	if s.deps.Validator == nil {
		s.respondError(w, http.StatusServiceUnavailable, "validator not configured")
		return
	}

	report, err := s.deps.Validator.Run(r.Context(), s.deps.DB.Trends(), time.Now().UTC())
	if err != nil {
		s.log.Error("Validation failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "validation failed")
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

// handleModuleHealth handles GET /api/health/modules
func (s *Server) handleModuleHealth(w http.ResponseWriter, r *http.Request) {
	monitor := s.deps.Monitor
	if monitor == nil {
		monitor = health.NewMonitor(s.deps.DB, nil)
	}
	s.respondJSON(w, http.StatusOK, monitor.Check(r.Context(), time.Now()))
}

// handleSourceHealth handles GET /api/health/sources
func (s *Server) handleSourceHealth(w http.ResponseWriter, r *http.Request) {
	adapters := []sources.AdapterHealth{}
	if s.deps.Sources != nil {
		adapters = s.deps.Sources.SourceHealth()
	}
	failing := 0
	for _, h := range adapters {
		if h.Failing() {
			failing++
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sources": adapters,
		"count":   len(adapters),
		"failing": failing,
	})
}

// handleListRuns handles GET /api/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultRunLimit, maxTrendLimit)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	runs, err := s.deps.DB.Runs().List(r.Context(), limit)
	if err != nil {
		s.log.Error("Failed to list runs", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleTriggerRun handles POST /api/runs. The run continues after the
// response and is cancelled only when the server shuts down.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runner == nil {
		s.respondError(w, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}

	runID, results, err := s.deps.Runner.Start(s.runCtx)
	if errors.Is(err, core.ErrRunInProgress) {
		s.respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.log.Error("Failed to start pipeline run", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to start run")
		return
	}

	go func() {
		res := <-results
		if res.Err != nil {
			s.log.Warn("Triggered run failed", "run_id", runID, "error", res.Err)
			return
		}
		s.log.Info("Triggered run completed", "run_id", runID, "written", res.Run.Written)
	}()

	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"status": "started",
	})
}

// parseTrendFilter reads trend filters from the query string
func parseTrendFilter(r *http.Request) (persistence.TrendFilter, error) {
	q := r.URL.Query()
	filter := persistence.TrendFilter{
		Market: strings.ToUpper(strings.TrimSpace(q.Get("market"))),
		Topic:  strings.ToLower(strings.TrimSpace(q.Get("topic"))),
	}

	if v := strings.TrimSpace(q.Get("risk_level")); v != "" {
		level := core.RiskLevel(strings.ToLower(v))
		if !level.Valid() {
			return filter, errors.New("risk_level must be low, medium or high")
		}
		filter.RiskLevel = level
	}

	if v := strings.TrimSpace(q.Get("action")); v != "" {
		action := core.Action(strings.ToUpper(v))
		if !validAction(action) {
			return filter, errors.New("unknown action " + v)
		}
		filter.Action = action
	}

	if v := strings.TrimSpace(q.Get("min_score")); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil || score < 0 || score > 100 {
			return filter, errors.New("min_score must be a number between 0 and 100")
		}
		filter.MinScore = score
	}

	limit, err := intParam(r, "limit", defaultTrendLimit, maxTrendLimit)
	if err != nil {
		return filter, err
	}
	filter.Limit = limit
	return filter, nil
}

// intParam parses a positive integer query parameter capped at max
func intParam(r *http.Request, name string, fallback, max int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.New(name + " must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}

func validAction(a core.Action) bool {
	switch a {
	case core.ActionMonitor, core.ActionEngage, core.ActionPartner, core.ActionAvoid, core.ActionEscalate:
		return true
	}
	return false
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"status":  status,
			"message": message,
		},
	})
}
