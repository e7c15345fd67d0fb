// Package stage holds the three pipeline stages. Every stage returns a tagged result
// and never an error, so a caller can decide what to do next from the result alone.
package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

type State int

const (
	NotStarted State = iota
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{NotStarted, Running, Succeeded, Failed} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown stage state %q", text)
}

// Envelope is the part of every stage result that the orchestrator inspects.
type Envelope struct {
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Attempts  int       `json:"attempts"`
	Timestamp time.Time `json:"timestamp"`
}

func (e Envelope) OK() bool {
	return e.Status == StatusSuccess
}

func (e Envelope) Err() error {
	if e.OK() {
		return nil
	}
	if e.Error == "" {
		return errors.New("stage failed without an error message")
	}
	return errors.New(e.Error)
}

func (e Envelope) State() State {
	if e.OK() {
		return Succeeded
	}
	return Failed
}

func succeeded(attempts int, now time.Time) Envelope {
	return Envelope{Status: StatusSuccess, Attempts: attempts, Timestamp: now}
}

func failed(err error, attempts int, now time.Time) Envelope {
	return Envelope{Status: StatusError, Error: err.Error(), Attempts: attempts, Timestamp: now}
}

type TrendRunner interface {
	Run(ctx context.Context, in TrendInput) TrendResult
}

type VideoRunner interface {
	Run(ctx context.Context, in VideoInput) VideoResult
}

type UploadRunner interface {
	Run(ctx context.Context, in UploadInput) UploadResult
}

// WriteJSON renders a result as a single JSON document, the form every standalone stage
// prints on stdout.
func WriteJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return append(data, '\n'), nil
}
