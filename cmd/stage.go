package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"blissbuilder/internal/stage"
)

var errStageFailed = errors.New("stage failed")

// emitResult prints the single JSON result of a standalone stage on stdout. A failed stage
// still prints its result and then makes the process exit non-zero.
func emitResult(result any, env stage.Envelope) error {
	data, err := stage.WriteJSON(result)
	if err != nil {
		return err
	}
	if _, err := os.Stdout.Write(data); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if !env.OK() {
		return fmt.Errorf("%w: %s", errStageFailed, env.Error)
	}
	return nil
}

// setupFailure is the result printed when a stage cannot even be built.
func setupFailure(err error) stage.Envelope {
	return stage.Envelope{Status: stage.StatusError, Error: err.Error(), Timestamp: time.Now()}
}
