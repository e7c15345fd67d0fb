package stage

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// Exec runs stages as subcommands of a binary. Each subcommand prints one JSON result on
// stdout; its stderr is forwarded line by line to the logger.
type Exec struct {
	binary string
	prefix []string
	logger *slog.Logger
	now    func() time.Time
}

// NewExec returns stage runners backed by binary. prefix is placed before the subcommand name.
func NewExec(binary string, prefix []string, logger *slog.Logger) *Exec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exec{
		binary: binary,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

func (e *Exec) Trend() TrendRunner   { return execTrend{e} }
func (e *Exec) Video() VideoRunner   { return execVideo{e} }
func (e *Exec) Upload() UploadRunner { return execUpload{e} }

type execTrend struct{ e *Exec }

func (s execTrend) Run(ctx context.Context, in TrendInput) TrendResult {
	args := []string{"fetch", "--output-json", in.TrendsPath, "--output-theme", in.ThemePath}
	if in.Region != "" {
		args = append(args, "--region", in.Region)
	}
	if in.MaxResults > 0 {
		args = append(args, "--max", strconv.Itoa(in.MaxResults))
	}

	var result TrendResult
	if err := s.e.run(ctx, args, &result); err != nil {
		return TrendResult{Envelope: failed(err, 0, s.e.now())}
	}
	if result.OK() {
		result.TrendsPath = cmp.Or(result.TrendsPath, in.TrendsPath)
		result.ThemePath = cmp.Or(result.ThemePath, in.ThemePath)
	}
	return result
}

type execVideo struct{ e *Exec }

func (s execVideo) Run(ctx context.Context, in VideoInput) VideoResult {
	args := []string{"generate", "--output", in.VideoPath}
	args = appendFlag(args, "--theme", in.Theme)
	args = appendFlag(args, "--theme-file", in.ThemePath)
	args = appendFlag(args, "--trends-json", in.TrendsPath)
	args = appendFlag(args, "--output-narration", in.NarrationPath)
	args = appendFlag(args, "--output-prompt", in.PromptPath)
	if in.Duration > 0 {
		args = append(args, "--duration", strconv.Itoa(in.Duration))
	}
	if in.FPS > 0 {
		args = append(args, "--fps", strconv.Itoa(in.FPS))
	}

	var result VideoResult
	if err := s.e.run(ctx, args, &result); err != nil {
		return VideoResult{Envelope: failed(err, 0, s.e.now()), Theme: in.Theme}
	}
	if result.OK() {
		result.VideoPath = cmp.Or(result.VideoPath, in.VideoPath)
		result.NarrationPath = cmp.Or(result.NarrationPath, in.NarrationPath)
		result.PromptPath = cmp.Or(result.PromptPath, in.PromptPath)
	}
	return result
}

type execUpload struct{ e *Exec }

func (s execUpload) Run(ctx context.Context, in UploadInput) UploadResult {
	args := []string{"upload", "--video", in.VideoPath}
	args = appendFlag(args, "--theme", in.Theme)
	args = appendFlag(args, "--theme-file", in.ThemePath)
	args = appendFlag(args, "--narration-file", in.NarrationPath)
	args = appendFlag(args, "--output-result", in.ResultPath)
	args = appendFlag(args, "--privacy", in.Privacy)

	var result UploadResult
	if err := s.e.run(ctx, args, &result); err != nil {
		return UploadResult{Envelope: failed(err, 0, s.e.now()), Theme: in.Theme}
	}
	return result
}

func appendFlag(args []string, name, value string) []string {
	if value == "" {
		return args
	}
	return append(args, name, value)
}

// run executes one subcommand and decodes its stdout into out. A non-zero exit is not an
// error when the process still printed a result, because stages report failure in-band.
func (e *Exec) run(ctx context.Context, args []string, out any) error {
	name := args[0]
	cmd := exec.CommandContext(ctx, e.binary, append(append([]string{}, e.prefix...), args...)...)

	var stdout bytes.Buffer
	stderr := &lineLogger{logger: e.logger.With("stage", name)}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	e.logger.Debug("Starting stage process", "binary", e.binary, "args", args)
	runErr := cmd.Run()
	stderr.Flush()

	data := bytes.TrimSpace(stdout.Bytes())
	if len(data) == 0 {
		if runErr != nil {
			return fmt.Errorf("%s process failed: %w", name, runErr)
		}
		return fmt.Errorf("%s process printed no result", name)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s result: %w", name, err)
	}
	return nil
}

// lineLogger is an io.Writer that logs each complete line it receives.
type lineLogger struct {
	mu     sync.Mutex
	logger *slog.Logger
	buf    []byte
}

func (w *lineLogger) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *lineLogger) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *lineLogger) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	w.logger.Info(string(line))
}
