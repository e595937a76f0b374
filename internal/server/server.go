package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/domain"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/metrics"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/scheduler"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/service"
)

// Server exposes the read surface of the pipeline plus manual task triggers
// and the Prometheus endpoint.
type Server struct {
	ingest    *service.IngestService
	query     *service.QueryService
	scheduler *scheduler.Scheduler
	metrics   *metrics.PipelineMetrics
	logger    zerolog.Logger
}

func New(ingest *service.IngestService, query *service.QueryService, sched *scheduler.Scheduler, pm *metrics.PipelineMetrics, logger zerolog.Logger) *Server {
	return &Server{
		ingest:    ingest,
		query:     query,
		scheduler: sched,
		metrics:   pm,
		logger:    logger,
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/fragments", s.handleSubmitFragment)
	mux.HandleFunc("GET /api/v1/matches", s.handleListMatches)
	mux.HandleFunc("GET /api/v1/matches/{id}/prediction", s.handleGetPrediction)
	mux.HandleFunc("GET /api/v1/stats/accuracy", s.handleAccuracyStats)

	mux.HandleFunc("POST /api/v1/tasks/sweep", s.triggerHandler("sweep", s.scheduler.RunSweep))
	mux.HandleFunc("POST /api/v1/tasks/predictions", s.triggerHandler("predictions", s.scheduler.RunPredictions))
	mux.HandleFunc("POST /api/v1/tasks/verification", s.triggerHandler("verification", s.scheduler.RunVerification))
	mux.HandleFunc("POST /api/v1/tasks/backfill", s.triggerHandler("backfill", s.scheduler.RunBackfill))

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return mux
}

func (s *Server) handleSubmitFragment(w http.ResponseWriter, r *http.Request) {
	var fragment domain.MatchFragment
	if err := json.NewDecoder(r.Body).Decode(&fragment); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid fragment payload")
		return
	}
	if fragment.ObservedAt.IsZero() {
		fragment.ObservedAt = time.Now().UTC()
	}

	if err := s.ingest.SubmitFragment(r.Context(), fragment); err != nil {
		s.logger.Error().Err(err).Str("provider", fragment.Provider).Msg("fragment submit failed")
		s.writeError(w, http.StatusInternalServerError, "fragment submit failed")
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	state, ok := parseState(r.URL.Query().Get("state"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "state must be one of scheduled, live, completed")
		return
	}

	since, err := parseSince(r.URL.Query().Get("since"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "since must be RFC 3339")
		return
	}

	matches, err := s.query.ListMatches(r.Context(), state, r.URL.Query().Get("sport"), since)
	if err != nil {
		s.logger.Error().Err(err).Msg("list matches failed")
		s.writeError(w, http.StatusInternalServerError, "list matches failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"matches": matches, "count": len(matches)})
}

func (s *Server) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")

	p, err := s.query.GetPrediction(r.Context(), matchID)
	if err != nil {
		s.logger.Error().Err(err).Str("match_id", matchID).Msg("get prediction failed")
		s.writeError(w, http.StatusInternalServerError, "get prediction failed")
		return
	}
	if p == nil {
		s.writeError(w, http.StatusNotFound, "no prediction for match")
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAccuracyStats(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			s.writeError(w, http.StatusBadRequest, "window must be a positive duration, e.g. 168h")
			return
		}
		window = d
	}

	stats, err := s.query.AccuracyStats(r.Context(), window)
	if err != nil {
		s.logger.Error().Err(err).Msg("accuracy stats failed")
		s.writeError(w, http.StatusInternalServerError, "accuracy stats failed")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) triggerHandler(name string, run func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := run(r.Context()); err != nil {
			s.logger.Error().Err(err).Str("task", name).Msg("manual task trigger failed")
			s.writeError(w, http.StatusInternalServerError, "task failed")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"task": name, "status": "done"})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("response encode failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func parseState(raw string) (domain.Lifecycle, bool) {
	switch strings.ToLower(raw) {
	case "":
		return "", true
	case "scheduled":
		return domain.LifecycleScheduled, true
	case "live":
		return domain.LifecycleLive, true
	case "completed":
		return domain.LifecycleCompleted, true
	default:
		return "", false
	}
}

func parseSince(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
