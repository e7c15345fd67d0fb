// Package server exposes the pipeline over HTTP: trigger a run, list past runs, scrape
// metrics. At most one run is in flight at a time.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"blissbuilder/internal/app"
)

const (
	triggerLimit  = 6
	triggerWindow = time.Hour
)

type Runner interface {
	Run(ctx context.Context) *app.PipelineRun
}

type AuditReader interface {
	Rows() ([]app.AuditRow, error)
}

type Options struct {
	Addr     string
	Runner   Runner
	AuditLog AuditReader
	Metrics  http.Handler
	Logger   *slog.Logger
}

type Server struct {
	runner   Runner
	auditLog AuditReader
	metrics  http.Handler
	logger   *slog.Logger
	http     *http.Server

	// baseCtx outlives requests so a triggered run is not cancelled when its request ends.
	baseCtx context.Context
	cancel  context.CancelFunc

	running sync.Mutex
	mu      sync.Mutex
	latest  *app.PipelineRun
	active  bool
	wg      sync.WaitGroup
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		runner:   opts.Runner,
		auditLog: opts.AuditLog,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "server"),
		baseCtx:  ctx,
		cancel:   cancel,
	}
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Get("/latest", s.handleLatest)
		r.With(httprate.Limit(
			triggerLimit,
			triggerWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(triggerWindow.Seconds())))
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate_limit_exceeded"})
			}),
		)).Post("/", s.handleTrigger)
	})
	return r
}

// ListenAndServe blocks until ctx is done, then shuts down and waits for an active run.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", "addr", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.http.Shutdown(shutdownCtx)
	s.cancel()
	s.Wait()
	return err
}

// Wait blocks until a triggered run has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "running": active})
}

func (s *Server) handleTrigger(w http.ResponseWriter, _ *http.Request) {
	if s.runner == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "pipeline not configured"})
		return
	}
	if !s.running.TryLock() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a run is already in progress"})
		return
	}

	s.mu.Lock()
	s.active = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Unlock()

		run := s.runner.Run(s.baseCtx)

		s.mu.Lock()
		s.latest = run
		s.active = false
		s.mu.Unlock()
		s.logger.Info("Triggered run finished", "run_id", run.ID, "success", run.Success)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	latest := s.latest
	active := s.active
	s.mu.Unlock()

	if latest == nil {
		status := http.StatusNotFound
		if active {
			status = http.StatusAccepted
		}
		writeJSON(w, status, map[string]any{"error": "no finished run", "running": active})
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

type runRow struct {
	Timestamp string `json:"timestamp"`
	Success   bool   `json:"success"`
	OutputDir string `json:"output_dir"`
	Theme     string `json:"theme"`
	VideoID   string `json:"video_id,omitempty"`
	VideoURL  string `json:"video_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	var rows []app.AuditRow
	var err error
	if s.auditLog != nil {
		rows, err = s.auditLog.Rows()
	}
	if err != nil {
		s.logger.Error("Failed to read audit log", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "audit log unreadable"})
		return
	}

	out := make([]runRow, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		row := runRow{
			Timestamp: r.Timestamp,
			Success:   r.Success,
			OutputDir: r.OutputDir,
			Theme:     r.Theme,
			VideoID:   r.VideoID,
			VideoURL:  r.VideoURL,
		}
		if r.Error != "None" {
			row.Error = r.Error
		}
		out = append(out, row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
