package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"blissbuilder/internal/metrics"
	"blissbuilder/internal/stage"
	"blissbuilder/internal/theme"
)

// Pipeline runs trend, video and upload in order. Artifacts pass between stages as file
// paths inside the run directory, so the stages can also run as separate processes.
type Pipeline struct {
	service *Service
	now     func() time.Time
	newID   func() uuid.UUID
}

func NewPipeline(service *Service) *Pipeline {
	return &Pipeline{
		service: service,
		now:     time.Now,
		newID:   uuid.New,
	}
}

// Run executes one pipeline run. It never returns nil. The audit row is written whether or
// not the run succeeds; use PipelineRun.Err for the outcome.
func (p *Pipeline) Run(ctx context.Context) *PipelineRun {
	cfg := p.service.Config()
	logger := p.service.Logger().With("component", "pipeline")
	started := p.now()
	run := newRun(p.newID(), cfg.Pipeline.Mode, started)

	logger.Info("Pipeline started", "run_id", run.ID, "mode", run.Mode)

	sess, err := newSession(cfg.Video.OutputDir, started)
	if err != nil {
		run.Error = err.Error()
		p.finish(ctx, run, nil, logger)
		return run
	}
	run.Timestamp = sess.id
	run.OutputDir = sess.dir
	logger.Info("Output directory", "path", sess.dir)

	if err := p.runStages(ctx, run, sess, logger); err != nil {
		run.Error = err.Error()
	} else {
		run.Success = true
	}

	p.finish(ctx, run, sess, logger)
	return run
}

func (p *Pipeline) runStages(ctx context.Context, run *PipelineRun, sess *session, logger *slog.Logger) error {
	cfg := p.service.Config()
	m := p.service.Metrics()

	if p.service.Trend() == nil || p.service.Video() == nil || p.service.Upload() == nil {
		return errors.New("pipeline stages not configured")
	}

	logger.Info("Step 1: fetching trends and extracting theme")
	run.Stages[StageTrend] = stage.Running
	start := p.now()
	trend := p.service.Trend().Run(ctx, stage.TrendInput{
		TrendsPath: sess.trendsPath(),
		ThemePath:  sess.themePath(),
		Region:     cfg.Trends.Region,
		MaxResults: cfg.Trends.MaxResults,
	})
	run.Trend = &trend
	run.Stages[StageTrend] = trend.State()
	m.RecordStage(StageTrend, trend.OK(), trend.Attempts, p.now().Sub(start))
	if !trend.OK() {
		return stageError(StageTrend, trend.Envelope)
	}
	run.Theme = trend.Theme
	if trend.ThemeSource == theme.SourceFallback {
		m.RecordFallback(metrics.FallbackTheme)
	}

	logger.Info("Step 2: generating narration and video", "theme", trend.Theme)
	run.Stages[StageVideo] = stage.Running
	start = p.now()
	generated := p.service.Video().Run(ctx, stage.VideoInput{
		ThemePath:     trend.ThemePath,
		TrendsPath:    trend.TrendsPath,
		VideoPath:     sess.videoPath(),
		NarrationPath: sess.narrationPath(),
		PromptPath:    sess.promptPath(),
		Duration:      cfg.Video.Duration,
		FPS:           cfg.Video.FPS,
	})
	run.Video = &generated
	run.Stages[StageVideo] = generated.State()
	m.RecordStage(StageVideo, generated.OK(), generated.Attempts, p.now().Sub(start))
	if !generated.OK() {
		return stageError(StageVideo, generated.Envelope)
	}
	if generated.PromptFallback {
		m.RecordFallback(metrics.FallbackPrompt)
	}
	if generated.UsedFallback() {
		m.RecordFallback(metrics.FallbackVideo)
		logger.Warn("Video came from the fallback path", "note", generated.Note)
	}

	logger.Info("Step 3: uploading", "privacy", cfg.YouTube.Privacy)
	run.Stages[StageUpload] = stage.Running
	start = p.now()
	uploaded := p.service.Upload().Run(ctx, stage.UploadInput{
		VideoPath:     generated.VideoPath,
		ThemePath:     trend.ThemePath,
		NarrationPath: generated.NarrationPath,
		ResultPath:    sess.resultPath(),
		Privacy:       cfg.YouTube.Privacy,
	})
	run.Upload = &uploaded
	run.Stages[StageUpload] = uploaded.State()
	m.RecordStage(StageUpload, uploaded.OK(), uploaded.Attempts, p.now().Sub(start))
	if !uploaded.OK() {
		return stageError(StageUpload, uploaded.Envelope)
	}

	logger.Info("Uploaded", "video_id", uploaded.VideoID, "url", uploaded.VideoURL)
	return nil
}

func stageError(name string, env stage.Envelope) error {
	return fmt.Errorf("%s stage failed after %d attempts: %w", name, env.Attempts, env.Err())
}

// finish persists the run: manifest, audit row, archive and metrics. Failures here are logged
// and never change the run's outcome.
func (p *Pipeline) finish(ctx context.Context, run *PipelineRun, sess *session, logger *slog.Logger) {
	run.FinishedAt = p.now()

	if sess != nil {
		if err := run.save(sess.manifestPath()); err != nil {
			logger.Warn("Failed to save run manifest", "error", err)
		}
	}

	if audit := p.service.Audit(); audit != nil {
		if err := audit.Append(run.auditRow()); err != nil {
			logger.Error("Failed to write audit log", "path", audit.Path(), "error", err)
		} else {
			logger.Info("Logged result", "path", audit.Path())
		}
	}

	if archiver := p.service.Archiver(); archiver != nil && sess != nil {
		n, err := archiver.ArchiveRun(ctx, sess.dir)
		run.Archived = n
		if err != nil {
			logger.Warn("Run archive incomplete", "archived", n, "error", err)
		} else {
			logger.Info("Run archived", "files", n)
		}
	}

	p.service.Metrics().RecordRun(run.Success, run.FinishedAt)

	if run.Success {
		logger.Info("Pipeline completed", "run_id", run.ID, "duration", run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
	} else {
		logger.Error("Pipeline failed", "run_id", run.ID, "stage", run.FailedStage(), "error", run.Error)
	}
}
