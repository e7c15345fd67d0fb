package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultAttempts = 3
	FetchBackoff    = 2 * time.Second
	UploadBackoff   = 3 * time.Second
	StatusError     = "error"
)

var ErrNoAttempts = errors.New("no attempts allowed")

// Policy bounds an operation to Attempts tries. The wait before attempt i is (i-1)*Base.
type Policy struct {
	Attempts int
	Base     time.Duration
}

func FetchPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, Base: FetchBackoff}
}

func UploadPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, Base: UploadBackoff}
}

// Delay returns the wait before the given 1-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	return time.Duration(attempt-1) * p.Base
}

// Failure is the tagged record handed to callers once an operation gives up.
type Failure struct {
	Status   string `json:"status"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}

type Result[T any] struct {
	Value    T
	Attempts int
	Err      error
}

func (r Result[T]) OK() bool {
	return r.Err == nil
}

func (r Result[T]) Failure() *Failure {
	if r.Err == nil {
		return nil
	}
	return &Failure{Status: StatusError, Error: r.Err.Error(), Attempts: r.Attempts}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that Run stops without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type Executor struct {
	Policy Policy
	Logger *slog.Logger
	Sleep  func(ctx context.Context, d time.Duration) error
}

func New(policy Policy, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		Policy: policy,
		Logger: logger,
		Sleep:  sleepContext,
	}
}

// Run executes fn under the executor's policy. It never panics and never returns a bare error:
// the outcome, including the number of attempts made, is carried by the Result.
func Run[T any](ctx context.Context, e *Executor, op string, fn func(ctx context.Context) (T, error)) Result[T] {
	var result Result[T]
	attempts := e.Policy.Attempts
	if attempts <= 0 {
		result.Err = fmt.Errorf("%s: %w", op, ErrNoAttempts)
		return result
	}

	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := e.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := e.Policy.Delay(attempt)
			logger.Warn("Waiting before retry", "op", op, "attempt", attempt, "delay", delay)
			if err := sleep(ctx, delay); err != nil {
				result.Err = fmt.Errorf("%s: %w", op, err)
				return result
			}
		}

		logger.Info("Attempting", "op", op, "attempt", attempt, "of", attempts)
		result.Attempts = attempt

		value, err := call(ctx, fn)
		if err == nil {
			result.Value = value
			return result
		}

		lastErr = err
		logger.Warn("Attempt failed", "op", op, "attempt", attempt, "of", attempts, "error", err)

		if IsPermanent(err) {
			result.Err = fmt.Errorf("%s: %w", op, err)
			return result
		}
	}

	logger.Error("All attempts failed", "op", op, "attempts", attempts)
	result.Err = fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
	return result
}

func call[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
