package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"blissbuilder/internal/app"
	"blissbuilder/internal/metrics"
)

type blockingRunner struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 4), release: make(chan struct{})}
}

func (b *blockingRunner) Run(context.Context) *app.PipelineRun {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-b.release
	return &app.PipelineRun{ID: uuid.New(), Success: true, Theme: "gentle rain"}
}

func newTestServer(t *testing.T, runner Runner, auditLog AuditReader) *Server {
	t.Helper()
	return New(Options{
		Runner:   runner,
		AuditLog: auditLog,
		Metrics:  metrics.New().Handler(),
		Logger:   slog.New(slog.DiscardHandler),
	})
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := do(t, s.Routes(), http.MethodGet, "/healthz")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestTriggerRejectsConcurrentRun(t *testing.T) {
	runner := newBlockingRunner()
	s := newTestServer(t, runner, nil)
	h := s.Routes()

	first := do(t, h, http.MethodPost, "/runs")
	if first.Code != http.StatusAccepted {
		t.Fatalf("first trigger status = %d", first.Code)
	}
	<-runner.started

	second := do(t, h, http.MethodPost, "/runs")
	if second.Code != http.StatusConflict {
		t.Errorf("second trigger status = %d, want 409", second.Code)
	}

	latest := do(t, h, http.MethodGet, "/runs/latest")
	if latest.Code != http.StatusAccepted {
		t.Errorf("latest while running = %d, want 202", latest.Code)
	}

	close(runner.release)
	s.Wait()

	latest = do(t, h, http.MethodGet, "/runs/latest")
	if latest.Code != http.StatusOK || !strings.Contains(latest.Body.String(), "gentle rain") {
		t.Errorf("latest = %d %s", latest.Code, latest.Body)
	}

	third := do(t, h, http.MethodPost, "/runs")
	if third.Code != http.StatusAccepted {
		t.Errorf("trigger after finish = %d, want 202", third.Code)
	}
	<-runner.started
	s.Wait()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.calls != 2 {
		t.Errorf("runs = %d, want 2", runner.calls)
	}
}

func TestTriggerWithoutRunner(t *testing.T) {
	s := newTestServer(t, nil, nil)

	if rec := do(t, s.Routes(), http.MethodPost, "/runs"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestTriggerRateLimited(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)
	s := newTestServer(t, runner, nil)
	h := s.Routes()

	var last int
	for i := 0; i <= triggerLimit; i++ {
		last = do(t, h, http.MethodPost, "/runs").Code
		s.Wait()
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("status after %d triggers = %d, want 429", triggerLimit+1, last)
	}
}

func TestListRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline_log.csv")
	audit := app.NewAuditLog(path)
	_ = audit.Append(app.AuditRow{Timestamp: "20261013_090000", OutputDir: "output/20261013_090000", Error: "trend stage failed"})
	_ = audit.Append(app.AuditRow{Timestamp: "20261014_090000", Success: true, OutputDir: "output/20261014_090000", Theme: "rain", VideoID: "abc", VideoURL: "https://youtube.com/watch?v=abc"})
	s := newTestServer(t, nil, audit)

	rec := do(t, s.Routes(), http.MethodGet, "/runs")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Runs []runRow `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(body.Runs))
	}
	if body.Runs[0].VideoID != "abc" || body.Runs[0].Error != "" {
		t.Errorf("newest run = %+v", body.Runs[0])
	}
	if body.Runs[1].Success || body.Runs[1].Theme != "N/A" {
		t.Errorf("oldest run = %+v", body.Runs[1])
	}
}

func TestListRunsDuringAppends(t *testing.T) {
	audit := app.NewAuditLog(filepath.Join(t.TempDir(), "pipeline_log.csv"))
	s := newTestServer(t, nil, audit)
	h := s.Routes()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 50 {
			_ = audit.Append(app.AuditRow{Timestamp: fmt.Sprintf("20261014_%06d", i), Theme: strings.Repeat("rain ", 200)})
		}
	}()

	for range 50 {
		req := httptest.NewRequest(http.MethodGet, "/runs", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d while appending: %s", rec.Code, rec.Body.String())
		}
	}
	wg.Wait()
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := do(t, s.Routes(), http.MethodGet, "/metrics")

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("metrics = %d", rec.Code)
	}
}
