package retry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func newTestExecutor(policy Policy) (*Executor, *recordingSleeper) {
	sleeper := &recordingSleeper{}
	e := New(policy, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.Sleep = sleeper.sleep
	return e, sleeper
}

func TestRunAlwaysFailing(t *testing.T) {
	for _, attempts := range []int{1, 2, 3, 5} {
		e, sleeper := newTestExecutor(FetchPolicy(attempts))

		calls := 0
		result := Run(context.Background(), e, "fetch", func(context.Context) (string, error) {
			calls++
			return "", errors.New("boom")
		})

		if result.OK() {
			t.Fatalf("attempts=%d: expected failure", attempts)
		}
		if calls != attempts {
			t.Errorf("attempts=%d: calls = %d", attempts, calls)
		}
		if result.Attempts != attempts {
			t.Errorf("attempts=%d: result.Attempts = %d", attempts, result.Attempts)
		}
		if len(sleeper.delays) != attempts-1 {
			t.Errorf("attempts=%d: waits = %d, want %d", attempts, len(sleeper.delays), attempts-1)
		}

		failure := result.Failure()
		if failure == nil || failure.Status != StatusError || failure.Attempts != attempts {
			t.Errorf("attempts=%d: failure = %+v", attempts, failure)
		}
		if !strings.Contains(failure.Error, "boom") {
			t.Errorf("failure error = %q, want it to carry the cause", failure.Error)
		}
	}
}

func TestRunSucceedsOnAttemptK(t *testing.T) {
	tests := []struct {
		name      string
		attempts  int
		succeedOn int
	}{
		{"firstTry", 3, 1},
		{"secondTry", 3, 2},
		{"lastTry", 3, 3},
		{"longPolicy", 6, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, sleeper := newTestExecutor(UploadPolicy(tt.attempts))

			calls := 0
			result := Run(context.Background(), e, "upload", func(context.Context) (int, error) {
				calls++
				if calls < tt.succeedOn {
					return 0, errors.New("transient")
				}
				return 42, nil
			})

			if !result.OK() {
				t.Fatalf("unexpected error: %v", result.Err)
			}
			if result.Value != 42 {
				t.Errorf("Value = %d, want 42", result.Value)
			}
			if result.Attempts != tt.succeedOn {
				t.Errorf("Attempts = %d, want %d", result.Attempts, tt.succeedOn)
			}
			if calls != tt.succeedOn {
				t.Errorf("calls = %d, want %d", calls, tt.succeedOn)
			}
			if len(sleeper.delays) != tt.succeedOn-1 {
				t.Errorf("waits = %d, want %d", len(sleeper.delays), tt.succeedOn-1)
			}
			if result.Failure() != nil {
				t.Error("Failure() should be nil on success")
			}
		})
	}
}

func TestBackoffDelays(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		want   []time.Duration
	}{
		{"fetch", FetchPolicy(4), []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}},
		{"upload", UploadPolicy(3), []time.Duration{3 * time.Second, 6 * time.Second}},
		{"single", FetchPolicy(1), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, sleeper := newTestExecutor(tt.policy)
			Run(context.Background(), e, tt.name, func(context.Context) (struct{}, error) {
				return struct{}{}, errors.New("fail")
			})

			if diff := cmp.Diff(tt.want, sleeper.delays); diff != "" {
				t.Errorf("delays mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPolicyDelay(t *testing.T) {
	p := FetchPolicy(3)
	if d := p.Delay(1); d != 0 {
		t.Errorf("Delay(1) = %v, want 0", d)
	}
	if d := p.Delay(2); d != 2*time.Second {
		t.Errorf("Delay(2) = %v, want 2s", d)
	}
	if d := p.Delay(3); d != 4*time.Second {
		t.Errorf("Delay(3) = %v, want 4s", d)
	}
}

func TestRunNonPositiveAttempts(t *testing.T) {
	for _, attempts := range []int{0, -1} {
		e, sleeper := newTestExecutor(FetchPolicy(attempts))

		called := false
		result := Run(context.Background(), e, "noop", func(context.Context) (string, error) {
			called = true
			return "", nil
		})

		if called {
			t.Errorf("attempts=%d: work should not run", attempts)
		}
		if result.OK() {
			t.Errorf("attempts=%d: expected failure", attempts)
		}
		if !errors.Is(result.Err, ErrNoAttempts) {
			t.Errorf("attempts=%d: err = %v, want ErrNoAttempts", attempts, result.Err)
		}
		if result.Failure().Attempts != 0 {
			t.Errorf("attempts=%d: failure attempts = %d, want 0", attempts, result.Failure().Attempts)
		}
		if len(sleeper.delays) != 0 {
			t.Errorf("attempts=%d: unexpected waits", attempts)
		}
	}
}

func TestRunPermanentStopsEarly(t *testing.T) {
	e, sleeper := newTestExecutor(FetchPolicy(3))
	cause := errors.New("no veo access")

	calls := 0
	result := Run(context.Background(), e, "veo", func(context.Context) (string, error) {
		calls++
		return "", Permanent(cause)
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
	if !errors.Is(result.Err, cause) {
		t.Errorf("err = %v, want wrapped cause", result.Err)
	}
	if !IsPermanent(result.Err) {
		t.Error("IsPermanent() = false, want true")
	}
	if len(sleeper.delays) != 0 {
		t.Errorf("waits = %d, want 0", len(sleeper.delays))
	}
}

func TestRunRecoversPanic(t *testing.T) {
	e, _ := newTestExecutor(FetchPolicy(2))

	result := Run(context.Background(), e, "panicky", func(context.Context) (string, error) {
		panic("kaboom")
	})

	if result.OK() {
		t.Fatal("expected failure")
	}
	if result.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", result.Attempts)
	}
	if !strings.Contains(result.Err.Error(), "kaboom") {
		t.Errorf("err = %v, want panic value", result.Err)
	}
}

func TestRunStopsOnCancelledWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := New(FetchPolicy(3), slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.Sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	calls := 0
	result := Run(ctx, e, "fetch", func(context.Context) (string, error) {
		calls++
		return "", errors.New("fail")
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", result.Err)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
}

func TestRunLogsAttemptsAndWaits(t *testing.T) {
	var buf bytes.Buffer
	e := New(FetchPolicy(2), slog.New(slog.NewTextHandler(&buf, nil)))
	e.Sleep = func(context.Context, time.Duration) error { return nil }

	Run(context.Background(), e, "search", func(context.Context) (string, error) {
		return "", errors.New("quota")
	})

	out := buf.String()
	for _, want := range []string{"op=search", "attempt=1", "attempt=2", "delay=2s", "Attempt failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestFailureJSON(t *testing.T) {
	f := Failure{Status: StatusError, Error: "x", Attempts: 3}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"status":"error","error":"x","attempts":3}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), 0); err != nil {
		t.Errorf("sleepContext(0) = %v", err)
	}
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("sleepContext(1ms) = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext(cancelled) = %v, want context.Canceled", err)
	}
}
