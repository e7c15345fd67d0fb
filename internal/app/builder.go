package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"blissbuilder/internal/distribution"
	"blissbuilder/internal/distribution/youtube"
	"blissbuilder/internal/gemini"
	"blissbuilder/internal/llm/groq"
	"blissbuilder/internal/metrics"
	"blissbuilder/internal/stage"
	"blissbuilder/internal/storage"
	"blissbuilder/internal/theme"
	"blissbuilder/internal/trends"
	"blissbuilder/internal/video"
	"blissbuilder/pkg/config"
	"blissbuilder/pkg/prompts"
	"blissbuilder/pkg/retry"
)

type BuildOptions struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Verbose is forwarded to stage subprocesses.
	Verbose bool
}

type BuildResult struct {
	Service *Service
	// Close releases clients opened for the service, such as the GCS archive.
	Close func() error
}

// BuildService wires the pipeline from configuration. The pipeline mode decides whether the
// stages run in this process or as subcommands of the current executable.
func BuildService(ctx context.Context, cfg *config.Config, opts BuildOptions) (*BuildResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	localStorage := storage.NewLocalStorage(cfg.Video.OutputDir)
	if err := localStorage.EnsureDirectories(); err != nil {
		return nil, err
	}

	serviceOpts := ServiceOptions{
		Config:  cfg,
		Storage: localStorage,
		Audit:   NewAuditLog(auditPath(cfg)),
		Metrics: opts.Metrics,
		Logger:  logger,
	}

	switch cfg.Pipeline.Mode {
	case config.ModeSubprocess:
		binary, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
		var prefix []string
		if opts.Verbose {
			prefix = []string{"--verbose"}
		}
		runner := stage.NewExec(binary, prefix, logger.With("component", "stage-exec"))
		serviceOpts.Trend = runner.Trend()
		serviceOpts.Video = runner.Video()
		serviceOpts.Upload = runner.Upload()
	case config.ModeInProcess, "":
		trendStage, err := BuildTrendStage(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		videoStage, err := BuildVideoStage(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		uploadStage, err := BuildUploadStage(cfg, logger)
		if err != nil {
			return nil, err
		}
		serviceOpts.Trend = trendStage
		serviceOpts.Video = videoStage
		serviceOpts.Upload = uploadStage
	default:
		return nil, fmt.Errorf("unknown pipeline mode %q", cfg.Pipeline.Mode)
	}

	closeFn := func() error { return nil }
	if cfg.GCS.Enabled && cfg.GCSBucket != "" {
		gcs, err := storage.NewGCSStorage(ctx, cfg.GCSBucket, cfg.GCS.Prefix)
		if err != nil {
			return nil, err
		}
		serviceOpts.Archiver = gcs
		closeFn = gcs.Close
	} else if cfg.GCS.Enabled {
		logger.Warn("GCS archive enabled but GCS_BUCKET not set")
	}

	return &BuildResult{
		Service: NewService(serviceOpts),
		Close:   closeFn,
	}, nil
}

func auditPath(cfg *config.Config) string {
	if filepath.IsAbs(cfg.Pipeline.AuditLog) {
		return cfg.Pipeline.AuditLog
	}
	return filepath.Join(cfg.Video.OutputDir, cfg.Pipeline.AuditLog)
}

func fetchExecutor(cfg *config.Config, logger *slog.Logger) *retry.Executor {
	return retry.New(retry.Policy{Attempts: cfg.Retry.Attempts, Base: cfg.Retry.FetchBackoff}, logger)
}

func uploadExecutor(cfg *config.Config, logger *slog.Logger) *retry.Executor {
	return retry.New(retry.Policy{Attempts: cfg.Retry.Attempts, Base: cfg.Retry.UploadBackoff}, logger)
}

func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// BuildTrendStage wires the trend stage. Without YOUTUBE_API_KEY the stage is still returned and
// fails its precondition check when run.
func BuildTrendStage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stage.TrendStage, error) {
	p, err := prompts.Load()
	if err != nil {
		return nil, err
	}
	exec := fetchExecutor(cfg, logger)

	var collector stage.TrendCollector
	if cfg.YouTubeAPIKey != "" {
		c, err := trends.NewCollector(ctx, trends.CollectorConfig{
			APIKey:       cfg.YouTubeAPIKey,
			Query:        cfg.Trends.Query,
			Region:       cfg.Trends.Region,
			LookbackDays: cfg.Trends.LookbackDays,
			RequestRate:  cfg.Trends.RequestRate,
			Logger:       logger.With("component", "trends"),
		})
		if err != nil {
			return nil, err
		}
		collector = c
	}

	extractor := theme.NewExtractor(nil, exec, newRand(), logger.With("component", "theme"))
	if cfg.GroqAPIKey != "" {
		client, err := groq.NewClient(cfg.GroqAPIKey, cfg.Groq.Model, cfg.Video.Duration, p)
		if err != nil {
			return nil, err
		}
		extractor = theme.NewExtractor(client, exec, newRand(), logger.With("component", "theme"))
	} else {
		logger.Warn("GROQ_API_KEY not set, themes will come from the keyword table")
	}

	return stage.NewTrendStage(collector, extractor, exec, logger), nil
}

// BuildVideoStage wires the video stage. Without GEMINI_API_KEY the stage uses the fallback prompt
// and the stills video.
func BuildVideoStage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stage.VideoStage, error) {
	p, err := prompts.Load()
	if err != nil {
		return nil, err
	}

	opts := stage.VideoStageOptions{
		Prompts: p,
		Exec:    fetchExecutor(cfg, logger),
		Rand:    newRand(),
		Logger:  logger,
	}

	if cfg.GroqAPIKey != "" {
		client, err := groq.NewClient(cfg.GroqAPIKey, cfg.Groq.Model, cfg.Video.Duration, p)
		if err != nil {
			return nil, err
		}
		opts.Narrator = client
	}

	if cfg.GeminiAPIKey != "" {
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, gemini.Options{
			PromptModel:  cfg.Gemini.PromptModel,
			VideoModel:   cfg.Gemini.VideoModel,
			DailyLimit:   cfg.Gemini.DailyLimit,
			PollInterval: cfg.Gemini.PollInterval,
			MaxPolls:     cfg.Gemini.MaxPolls,
			Duration:     cfg.Video.Duration,
		}, p, logger.With("component", "gemini"))
		if err != nil {
			return nil, err
		}
		opts.Generator = client
	}

	assembler := video.NewAssembler(cfg.Video.FFmpegPath, cfg.Video.FFprobePath)
	width, height := video.ParseResolution(cfg.Video.Resolution)
	opts.Fallback = video.NewFallback(assembler, width, height, logger.With("component", "fallback"))
	opts.Prober = assembler

	return stage.NewVideoStage(opts), nil
}

// BuildUploadStage wires the upload stage. Without OAuth client credentials the stage fails its
// precondition check when run.
func BuildUploadStage(cfg *config.Config, logger *slog.Logger) (*stage.UploadStage, error) {
	p, err := prompts.Load()
	if err != nil {
		return nil, err
	}

	var uploader distribution.Uploader
	if cfg.YouTubeClientID != "" && cfg.YouTubeClientSecret != "" {
		auth := youtube.NewAuth(cfg.YouTubeClientID, cfg.YouTubeClientSecret, cfg.YouTubeTokenPath)
		uploader = youtube.NewClient(auth)
	}

	meta := youtube.Metadata{
		Privacy:     cfg.YouTube.Privacy,
		CategoryID:  cfg.YouTube.CategoryID,
		DefaultTags: cfg.YouTube.DefaultTags,
	}
	build := func(videoPath, theme, narration string) (distribution.UploadRequest, error) {
		return youtube.BuildRequest(p, meta, videoPath, theme, narration)
	}

	return stage.NewUploadStage(uploader, build, uploadExecutor(cfg, logger), logger), nil
}
