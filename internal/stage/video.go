package stage

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"

	"blissbuilder/internal/gemini"
	"blissbuilder/internal/llm"
	"blissbuilder/internal/storage"
	"blissbuilder/internal/trends"
	"blissbuilder/internal/video"
	"blissbuilder/pkg/prompts"
	"blissbuilder/pkg/retry"
)

const captionPromptLimit = 200

// VideoGenerator is the primary generative path. gemini.Client satisfies it.
type VideoGenerator interface {
	GeneratePrompt(ctx context.Context, theme string, records []trends.Record) (string, error)
	CheckCapability(ctx context.Context) error
	GenerateVideo(ctx context.Context, prompt, outputPath string) error
}

type VideoProber interface {
	Probe(ctx context.Context, path string) (*video.ProbeResult, error)
}

type FallbackRenderer interface {
	Render(ctx context.Context, captions []string, outputPath string, duration, fps int) (*video.Artifact, error)
}

type VideoInput struct {
	Theme         string
	ThemePath     string
	TrendsPath    string
	VideoPath     string
	NarrationPath string
	PromptPath    string
	Duration      int
	FPS           int
}

type VideoResult struct {
	Envelope
	Theme          string          `json:"theme,omitempty"`
	Narration      string          `json:"narration,omitempty"`
	Prompt         string          `json:"veo3_prompt,omitempty"`
	PromptFallback bool            `json:"prompt_fallback"`
	VideoPath      string          `json:"video_path,omitempty"`
	NarrationPath  string          `json:"narration_file,omitempty"`
	PromptPath     string          `json:"prompt_file,omitempty"`
	Artifact       *video.Artifact `json:"artifact,omitempty"`
	Note           string          `json:"note,omitempty"`
}

func (r VideoResult) UsedFallback() bool {
	return r.Artifact != nil && r.Artifact.UsedFallback
}

type VideoStageOptions struct {
	Narrator  llm.NarrationClient
	Generator VideoGenerator
	Fallback  FallbackRenderer
	Prober    VideoProber
	Prompts   *prompts.Prompts
	Exec      *retry.Executor
	Rand      *rand.Rand
	Logger    *slog.Logger
}

// VideoStage writes narration for a theme and produces the video, through Veo when it is
// available and through caption stills otherwise.
type VideoStage struct {
	narrator  llm.NarrationClient
	generator VideoGenerator
	fallback  FallbackRenderer
	prober    VideoProber
	prompts   *prompts.Prompts
	exec      *retry.Executor
	rng       *rand.Rand
	logger    *slog.Logger
	now       func() time.Time
}

func NewVideoStage(opts VideoStageOptions) *VideoStage {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	exec := opts.Exec
	if exec == nil {
		exec = retry.New(retry.FetchPolicy(retry.DefaultAttempts), logger)
	}
	return &VideoStage{
		narrator:  opts.Narrator,
		generator: opts.Generator,
		fallback:  opts.Fallback,
		prober:    opts.Prober,
		prompts:   opts.Prompts,
		exec:      exec,
		rng:       rng,
		logger:    logger.With("stage", "video"),
		now:       time.Now,
	}
}

func (s *VideoStage) Run(ctx context.Context, in VideoInput) VideoResult {
	fail := func(err error, attempts int, theme string) VideoResult {
		s.logger.Error("Video stage failed", "error", err, "attempts", attempts)
		return VideoResult{Envelope: failed(err, attempts, s.now()), Theme: theme}
	}

	theme, err := resolveTheme(in.Theme, in.ThemePath)
	if err != nil {
		return fail(err, 0, "")
	}
	switch {
	case theme == "":
		return fail(fmt.Errorf("%w: theme", ErrMissingInput), 0, "")
	case s.narrator == nil:
		return fail(fmt.Errorf("%w: GROQ_API_KEY not set", ErrMissingInput), 0, theme)
	case in.VideoPath == "":
		return fail(fmt.Errorf("%w: video output path", ErrMissingInput), 0, theme)
	case s.fallback == nil || s.prompts == nil:
		return fail(fmt.Errorf("%w: video fallback", ErrMissingInput), 0, theme)
	case in.Duration <= 0 || in.FPS <= 0:
		return fail(fmt.Errorf("invalid duration %ds at %d fps", in.Duration, in.FPS), 0, theme)
	}

	narrated := retry.Run(ctx, s.exec, "narration", func(ctx context.Context) (string, error) {
		return s.narrator.WriteNarration(ctx, theme)
	})
	if !narrated.OK() {
		return fail(narrated.Err, narrated.Attempts, theme)
	}
	narration := narrated.Value
	if err := writeOptional(in.NarrationPath, narration); err != nil {
		return fail(fmt.Errorf("save narration: %w", err), narrated.Attempts, theme)
	}
	s.logger.Info("Narration written", "words", len(strings.Fields(narration)))

	prompt, promptFallback, err := s.prompt(ctx, theme, in.TrendsPath)
	if err != nil {
		return fail(err, narrated.Attempts, theme)
	}
	if err := writeOptional(in.PromptPath, prompt); err != nil {
		return fail(fmt.Errorf("save prompt: %w", err), narrated.Attempts, theme)
	}

	artifact, videoAttempts, note := s.generate(ctx, prompt, in)
	attempts := narrated.Attempts + videoAttempts
	if artifact == nil {
		captions := []string{theme, truncate(prompt, captionPromptLimit)}
		artifact, err = s.fallback.Render(ctx, captions, in.VideoPath, in.Duration, in.FPS)
		if err != nil {
			return fail(fmt.Errorf("video fallback: %w", err), attempts, theme)
		}
		s.logger.Warn("Used fallback video", "reason", note, "path", artifact.Path)
	}
	artifact.Prompt = prompt

	return VideoResult{
		Envelope:       succeeded(attempts, s.now()),
		Theme:          theme,
		Narration:      narration,
		Prompt:         prompt,
		PromptFallback: promptFallback,
		VideoPath:      artifact.Path,
		NarrationPath:  in.NarrationPath,
		PromptPath:     in.PromptPath,
		Artifact:       artifact,
		Note:           note,
	}
}

func (s *VideoStage) prompt(ctx context.Context, theme, trendsPath string) (string, bool, error) {
	if s.generator != nil {
		var records []trends.Record
		if trendsPath != "" {
			loaded, err := trends.Load(trendsPath)
			if err != nil {
				s.logger.Warn("Trends unavailable for prompt context", "error", err)
			}
			records = loaded
		}

		prompt, err := s.generator.GeneratePrompt(ctx, theme, records)
		if err == nil {
			return prompt, false, nil
		}
		s.logger.Warn("Prompt generation failed, using fallback prompt", "error", err)
	}

	prompt, err := gemini.FallbackPrompt(s.prompts, theme, s.rng)
	if err != nil {
		return "", true, fmt.Errorf("fallback prompt: %w", err)
	}
	return prompt, true, nil
}

// generate runs the primary path. A nil artifact means the caller must fall back; note
// says why.
func (s *VideoStage) generate(ctx context.Context, prompt string, in VideoInput) (*video.Artifact, int, string) {
	if s.generator == nil {
		return nil, 0, "GEMINI_API_KEY not set"
	}

	// Each attempt re-checks capability so a transient listing failure is retried like a
	// failed job. Only a capability or permanent error skips Veo.
	var unavailable error
	generated := retry.Run(ctx, s.exec, "video generation", func(ctx context.Context) (struct{}, error) {
		if err := s.generator.CheckCapability(ctx); err != nil {
			if gemini.IsCapability(err) || retry.IsPermanent(err) {
				unavailable = err
				return struct{}{}, retry.Permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, s.generator.GenerateVideo(ctx, prompt, in.VideoPath)
	})
	if unavailable != nil {
		s.logger.Warn("Video generation unavailable", "error", unavailable)
		return nil, generated.Attempts - 1, fmt.Sprintf("video generation unavailable: %v", unavailable)
	}
	if !generated.OK() {
		return nil, generated.Attempts, fmt.Sprintf("video generation failed: %v", generated.Err)
	}

	artifact := &video.Artifact{
		Path:     in.VideoPath,
		Duration: in.Duration,
		FPS:      in.FPS,
		Frames:   in.Duration * in.FPS,
	}
	s.checkQuality(ctx, artifact, in)
	return artifact, generated.Attempts, ""
}

func (s *VideoStage) checkQuality(ctx context.Context, artifact *video.Artifact, in VideoInput) {
	if s.prober == nil {
		return
	}
	probe, err := s.prober.Probe(ctx, artifact.Path)
	if err != nil {
		s.logger.Warn("Quality check skipped", "error", err)
		return
	}
	if probe.Frames > 0 {
		artifact.Frames = probe.Frames
	}
	warnings := video.QualityWarnings(*probe, in.Duration, in.FPS)
	for _, w := range warnings {
		s.logger.Warn("Video quality", "warning", w)
	}
	if len(warnings) == 0 {
		s.logger.Info("Video quality confirmed",
			"resolution", fmt.Sprintf("%dx%d", probe.Width, probe.Height), "frames", probe.Frames)
	}
}

func resolveTheme(theme, path string) (string, error) {
	if theme = strings.TrimSpace(theme); theme != "" || path == "" {
		return theme, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read theme file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func writeOptional(path, text string) error {
	if path == "" {
		return nil
	}
	return storage.WriteText(path, text)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
