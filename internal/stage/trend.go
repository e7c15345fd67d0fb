package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"blissbuilder/internal/storage"
	"blissbuilder/internal/theme"
	"blissbuilder/internal/trends"
	"blissbuilder/pkg/retry"
)

var ErrMissingInput = errors.New("missing required input")

type TrendCollector interface {
	Collect(ctx context.Context, region string, maxResults int) ([]trends.Record, error)
}

type ThemeExtractor interface {
	Extract(ctx context.Context, records []trends.Record) theme.Result
}

type TrendInput struct {
	TrendsPath string
	ThemePath  string
	Region     string
	MaxResults int
}

type TrendResult struct {
	Envelope
	Theme       string       `json:"theme,omitempty"`
	ThemeSource theme.Source `json:"theme_source,omitempty"`
	TrendsCount int          `json:"trends_count"`
	TrendsPath  string       `json:"output_file,omitempty"`
	ThemePath   string       `json:"theme_file,omitempty"`
}

// TrendStage collects trending videos and derives the run's theme from them.
type TrendStage struct {
	collector TrendCollector
	extractor ThemeExtractor
	exec      *retry.Executor
	logger    *slog.Logger
	now       func() time.Time
}

// NewTrendStage builds the stage. A nil collector means YOUTUBE_API_KEY is not configured and
// every run fails before any request.
func NewTrendStage(collector TrendCollector, extractor ThemeExtractor, exec *retry.Executor, logger *slog.Logger) *TrendStage {
	if logger == nil {
		logger = slog.Default()
	}
	if exec == nil {
		exec = retry.New(retry.FetchPolicy(retry.DefaultAttempts), logger)
	}
	return &TrendStage{
		collector: collector,
		extractor: extractor,
		exec:      exec,
		logger:    logger.With("stage", "trend"),
		now:       time.Now,
	}
}

func (s *TrendStage) Run(ctx context.Context, in TrendInput) TrendResult {
	fail := func(err error, attempts int) TrendResult {
		s.logger.Error("Trend stage failed", "error", err, "attempts", attempts)
		return TrendResult{Envelope: failed(err, attempts, s.now())}
	}

	switch {
	case s.collector == nil:
		return fail(fmt.Errorf("%w: YOUTUBE_API_KEY not set", ErrMissingInput), 0)
	case s.extractor == nil:
		return fail(fmt.Errorf("%w: theme extractor", ErrMissingInput), 0)
	case in.TrendsPath == "":
		return fail(fmt.Errorf("%w: trends output path", ErrMissingInput), 0)
	case in.ThemePath == "":
		return fail(fmt.Errorf("%w: theme output path", ErrMissingInput), 0)
	}

	maxResults := in.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}

	fetched := retry.Run(ctx, s.exec, "fetch trends", func(ctx context.Context) ([]trends.Record, error) {
		records, err := s.collector.Collect(ctx, in.Region, maxResults)
		if errors.Is(err, trends.ErrNoVideos) {
			return nil, retry.Permanent(err)
		}
		return records, err
	})
	if !fetched.OK() {
		return fail(fetched.Err, fetched.Attempts)
	}
	records := fetched.Value

	if err := trends.Save(in.TrendsPath, records); err != nil {
		return fail(err, fetched.Attempts)
	}
	s.logger.Info("Saved trends", "path", in.TrendsPath, "count", len(records))

	extracted := s.extractor.Extract(ctx, records)
	if err := storage.WriteText(in.ThemePath, extracted.Theme); err != nil {
		return fail(fmt.Errorf("save theme: %w", err), fetched.Attempts)
	}
	s.logger.Info("Theme selected", "theme", extracted.Theme, "source", extracted.Source)

	return TrendResult{
		Envelope:    succeeded(fetched.Attempts, s.now()),
		Theme:       extracted.Theme,
		ThemeSource: extracted.Source,
		TrendsCount: len(records),
		TrendsPath:  in.TrendsPath,
		ThemePath:   in.ThemePath,
	}
}
