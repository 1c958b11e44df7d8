// Package api is the HTTP surface the configuration UI consumes: run
// submission and cancellation, state and log reads, run history, a
// websocket stream of live log lines, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/history"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/model"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/service"
)

type Server struct {
	supervisor *service.Supervisor
	metrics    *Metrics
	registry   *prometheus.Registry
}

func NewServer(supervisor *service.Supervisor) *Server {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry, func() float64 {
		if supervisor.Controller().State() == model.StateRunning {
			return 1
		}
		return 0
	})
	supervisor.Controller().SetHooks(metrics.Hooks())
	return &Server{
		supervisor: supervisor,
		metrics:    metrics,
		registry:   registry,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/run", s.getRun)
	mux.HandleFunc("POST /api/v1/run", s.postRun)
	mux.HandleFunc("POST /api/v1/run/cancel", s.postCancel)
	mux.HandleFunc("GET /api/v1/run/log", s.getLog)
	mux.HandleFunc("GET /api/v1/run/stream", s.streamLog)
	mux.HandleFunc("GET /api/v1/history", s.getHistory)
	mux.HandleFunc("GET /api/v1/history/{run_id}", s.getHistoryRun)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// Serve blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, listen string) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(ctx, "api shutdown failed", "error", err)
		}
	}()

	slog.InfoContext(ctx, "api listening", "addr", listen)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type runView struct {
	State              model.RunState     `json:"state"`
	RunID              string             `json:"run_id,omitempty"`
	Kind               model.PipelineKind `json:"kind,omitempty"`
	ElapsedMs          int64              `json:"elapsed_ms"`
	LogLen             int                `json:"log_len"`
	TerminationWarning string             `json:"termination_warning,omitempty"`
}

func (s *Server) getRun(w http.ResponseWriter, _ *http.Request) {
	ctrl := s.supervisor.Controller()
	view := runView{
		State:     ctrl.State(),
		RunID:     ctrl.Request().RunID,
		Kind:      ctrl.Request().Kind,
		ElapsedMs: ctrl.Elapsed().Milliseconds(),
		LogLen:    ctrl.LogLen(),
	}
	if err := ctrl.TerminationWarning(); err != nil {
		view.TerminationWarning = err.Error()
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) postRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Pipeline   string `json:"pipeline"`
		ConfigPath string `json:"config_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind, err := model.ParsePipelineKind(body.Pipeline)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.ConfigPath == "" {
		writeError(w, http.StatusBadRequest, "config_path is required")
		return
	}
	if !s.supervisor.Controller().State().Terminal() &&
		s.supervisor.Controller().State() != model.StateIdle {
		writeError(w, http.StatusConflict, "a run is already active")
		return
	}

	req, err := s.supervisor.NewRequest(kind, body.ConfigPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.supervisor.Trigger(req)
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": req.RunID})
}

func (s *Server) postCancel(w http.ResponseWriter, _ *http.Request) {
	err := s.supervisor.Controller().Cancel()
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"state": string(s.supervisor.Controller().State())})
	case errors.Is(err, model.ErrRunNotActive):
		writeError(w, http.StatusConflict, err.Error())
	default:
		// tree kill failed: the run is still cancelled, surface the warning
		writeJSON(w, http.StatusOK, map[string]string{
			"state":   string(s.supervisor.Controller().State()),
			"warning": err.Error(),
		})
	}
}

func (s *Server) getLog(w http.ResponseWriter, r *http.Request) {
	since := 0
	if q := r.URL.Query().Get("since"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
		since = n
	}

	ctrl := s.supervisor.Controller()
	lines := ctrl.Since(since)
	writeJSON(w, http.StatusOK, map[string]any{
		"next":  since + len(lines),
		"lines": lines,
	})
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := history.List(r.Context(), s.supervisor.RunsDir())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": entries})
}

func (s *Server) getHistoryRun(w http.ResponseWriter, r *http.Request) {
	entry, err := history.Classify(r.Context(), s.supervisor.RunsDir(), r.PathValue("run_id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, entry)
	case errors.Is(err, model.ErrNoSuchRun):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
