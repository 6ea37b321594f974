package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimesli/internal/domain"
	apimw "github.com/hamed0406/uptimesli/internal/httpapi/middleware"
	"github.com/hamed0406/uptimesli/internal/metrics"
	"github.com/hamed0406/uptimesli/internal/probe"
	"github.com/hamed0406/uptimesli/internal/repo"
	"github.com/hamed0406/uptimesli/internal/scheduler"
	"github.com/hamed0406/uptimesli/internal/sli"
)

const historyLimit = 50

type Server struct {
	Logger  *zap.Logger
	Targets repo.TargetStore
	History repo.HistoryStore
	SLIs    repo.SliStore
	Checker probe.Checker

	// optional invocation triggers; nil answers 503
	Sweeper *scheduler.Sweeper
	SLI     *sli.Aggregator
}

func NewServer(l *zap.Logger, ts repo.TargetStore, hs repo.HistoryStore, ss repo.SliStore, c probe.Checker) *Server {
	return &Server{Logger: l, Targets: ts, History: hs, SLIs: ss, Checker: c}
}

// Router wires public reads and admin writes. Empty origins allows any.
func (s *Server) Router(keys apimw.Keys, origins []string, publicRPM, publicBurst, adminRPM, adminBurst int) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(publicRPM, publicBurst))
			r.Use(apimw.RequireAny(keys))
			r.Get("/servers", s.handleListServers)
			r.Get("/status", s.handleStatus)
			r.Get("/history/{id}", s.handleHistory)
			r.Get("/sli/{id}", s.handleSLI)
		})
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(adminRPM, adminBurst))
			r.Use(apimw.RequireAdmin(keys))
			r.Post("/servers", s.handleAddServer)
			r.Delete("/servers/{id}", s.handleDeleteServer)
			r.Post("/runs/healthcheck", s.handleRunHealthcheck)
			r.Post("/runs/sli", s.handleRunSLI)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

type addPayload struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (s *Server) handleAddServer(w http.ResponseWriter, r *http.Request) {
	var p addPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || !isValidHTTPURL(p.URL) {
		writeError(w, http.StatusBadRequest, "name and a valid http(s) url are required")
		return
	}
	url := normalizeHTTPURL(p.URL)
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = extractHost(url)
	}

	existing, err := s.Targets.List(r.Context())
	if err != nil {
		s.Logger.Warn("api_list_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	for _, t := range existing {
		if normalizeHTTPURL(t.URL) == url {
			writeError(w, http.StatusConflict, "server already registered")
			return
		}
	}

	t := &domain.Target{Name: name, URL: url, CreatedAt: time.Now().UTC()}
	if err := s.Targets.Add(r.Context(), t); err != nil {
		s.Logger.Warn("api_add_error", zap.String("url", url), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not add")
		return
	}

	resp := map[string]any{"server": t}
	// one immediate probe for feedback; it becomes the target's first record
	if s.Checker != nil {
		res := s.Checker.Check(r.Context(), url)
		res.TargetID = t.ID
		if err := s.History.Append(r.Context(), &res); err != nil {
			s.Logger.Warn("api_append_error", zap.String("target_id", string(t.ID)), zap.Error(err))
		}
		resp["summary"] = res
	}

	s.Logger.Info("added_server",
		zap.String("target_id", string(t.ID)),
		zap.String("name", name),
		zap.String("url", url),
	)
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	err := s.Targets.Delete(r.Context(), id)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case err != nil:
		s.Logger.Warn("api_delete_error", zap.String("target_id", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "delete error")
	default:
		metrics.ForgetTarget(id)
		s.Logger.Info("deleted_server", zap.String("target_id", string(id)))
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Targets.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if ts == nil {
		ts = []domain.Target{}
	}
	writeJSON(w, http.StatusOK, ts)
}

type statusRow struct {
	ID         domain.TargetID `json:"id"`
	Name       string          `json:"name"`
	URL        string          `json:"url"`
	Up         bool            `json:"up"`
	Latency    float64         `json:"latency"`
	StatusCode int             `json:"status_code"`
	Reason     string          `json:"reason,omitempty"`
	CheckedAt  *time.Time      `json:"checked_at,omitempty"`
}

// handleStatus reports each server's newest record; servers never checked
// show as down with zero latency.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Targets.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	out := make([]statusRow, 0, len(ts))
	for _, t := range ts {
		row := statusRow{ID: t.ID, Name: t.Name, URL: t.URL}
		recs, err := s.History.QueryLatest(r.Context(), t.ID, 1)
		if err != nil {
			s.Logger.Warn("api_status_error", zap.String("target_id", string(t.ID)), zap.Error(err))
		}
		if len(recs) == 1 {
			rec := recs[0]
			row.Up = rec.Up
			row.Latency = rec.LatencyMS
			row.StatusCode = rec.StatusCode
			row.Reason = rec.Reason
			row.CheckedAt = &rec.CheckedAt
		}
		out = append(out, row)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	recs, err := s.History.QueryLatest(r.Context(), id, historyLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history error")
		return
	}
	// oldest first for charting
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	if recs == nil {
		recs = []domain.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleSLI(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	rec, err := s.SLIs.LatestSLI(r.Context(), id)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "no sli yet")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "sli error")
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleRunHealthcheck(w http.ResponseWriter, r *http.Request) {
	if s.Sweeper == nil {
		writeError(w, http.StatusServiceUnavailable, "health check runs not enabled")
		return
	}
	rep, err := s.Sweeper.TryRunOnce(r.Context())
	if errors.Is(err, scheduler.ErrSweepInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.Logger.Warn("api_sweep_error", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleRunSLI(w http.ResponseWriter, r *http.Request) {
	if s.SLI == nil {
		writeError(w, http.StatusServiceUnavailable, "sli runs not enabled")
		return
	}
	rep, err := s.SLI.RunOnce(r.Context())
	if err != nil {
		s.Logger.Warn("api_sli_error", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
