package theme

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"blissbuilder/internal/llm"
	"blissbuilder/internal/trends"
	"blissbuilder/pkg/retry"
)

type Source string

const (
	SourceGenerated Source = "generated"
	SourceFallback  Source = "fallback"

	minSample     = 10
	maxSample     = 15
	minThemeWords = 4
	contextFields = 5
	maxSeed       = 1_000_000
)

var ErrInvalidTheme = errors.New("theme too short")

var (
	perspectives = []string{"texture-focused", "sound design", "visual aesthetics", "tactile sensation", "relaxation technique"}
	styles       = []string{"materials and textures", "auditory experience", "visual flow", "sensory journey", "meditative quality"}
)

type Result struct {
	Theme    string          `json:"theme"`
	Source   Source          `json:"source"`
	Sample   []trends.Record `json:"sample"`
	Attempts int             `json:"attempts"`
}

func (r Result) UsedFallback() bool {
	return r.Source == SourceFallback
}

type Extractor struct {
	client llm.ThemeClient
	exec   *retry.Executor
	rng    *rand.Rand
	logger *slog.Logger
}

// NewExtractor returns an extractor that asks client for a theme and falls back to the keyword table.
// A nil client sends every call straight to the fallback. A nil rng uses a time-seeded source.
func NewExtractor(client llm.ThemeClient, exec *retry.Executor, rng *rand.Rand, logger *slog.Logger) *Extractor {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = slog.Default()
	}
	if exec == nil {
		exec = retry.New(retry.FetchPolicy(retry.DefaultAttempts), logger)
	}
	return &Extractor{
		client: client,
		exec:   exec,
		rng:    rng,
		logger: logger,
	}
}

func (e *Extractor) Extract(ctx context.Context, records []trends.Record) Result {
	if e.client == nil {
		e.logger.Warn("No text generation credential, using fallback theme")
		return e.fallback(records, 0)
	}
	if len(records) == 0 {
		e.logger.Warn("No trend records, using fallback theme")
		return e.fallback(records, 0)
	}

	sample := e.sample(records)
	req := llm.ThemeRequest{
		Perspective: perspectives[e.rng.Intn(len(perspectives))],
		Style:       styles[e.rng.Intn(len(styles))],
		Context:     RenderContext(sample),
		Seed:        1 + e.rng.Intn(maxSeed),
	}
	e.logger.Debug("Requesting theme", "sample", len(sample), "perspective", req.Perspective, "style", req.Style)

	res := retry.Run(ctx, e.exec, "theme extraction", func(ctx context.Context) (string, error) {
		theme, err := e.client.ExtractTheme(ctx, req)
		if err != nil {
			return "", err
		}
		if len(strings.Fields(theme)) < minThemeWords {
			return "", retry.Permanent(fmt.Errorf("%w: %q", ErrInvalidTheme, theme))
		}
		return theme, nil
	})
	if !res.OK() {
		e.logger.Warn("Theme extraction failed, using fallback", "error", res.Err, "attempts", res.Attempts)
		return e.fallback(records, res.Attempts)
	}

	e.logger.Info("Extracted theme", "theme", res.Value)
	return Result{
		Theme:    res.Value,
		Source:   SourceGenerated,
		Sample:   sample,
		Attempts: res.Attempts,
	}
}

func (e *Extractor) fallback(records []trends.Record, attempts int) Result {
	theme := Fallback(records, e.rng)
	e.logger.Info("Fallback theme", "theme", theme)

	scanned := records
	if len(scanned) > scanLimit {
		scanned = scanned[:scanLimit]
	}
	return Result{
		Theme:    theme,
		Source:   SourceFallback,
		Sample:   scanned,
		Attempts: attempts,
	}
}

// sample picks 10 to 15 distinct records from the first 20, fewer when less are available.
func (e *Extractor) sample(records []trends.Record) []trends.Record {
	pool := records
	if len(pool) > scanLimit {
		pool = pool[:scanLimit]
	}

	size := min(minSample+e.rng.Intn(maxSample-minSample+1), len(pool))
	picked := make([]trends.Record, 0, size)
	for _, idx := range e.rng.Perm(len(pool))[:size] {
		picked = append(picked, pool[idx])
	}
	return picked
}

// RenderContext formats records as Title / Keywords / Hashtags blocks for the theme prompt.
func RenderContext(records []trends.Record) string {
	blocks := make([]string, 0, len(records))
	for _, r := range records {
		blocks = append(blocks, fmt.Sprintf("Title: %s\nKeywords: %s\nHashtags: %s",
			r.Title,
			strings.Join(head(r.Keywords, contextFields), ", "),
			strings.Join(head(r.Hashtags, contextFields), ", "),
		))
	}
	return strings.Join(blocks, "\n\n")
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
