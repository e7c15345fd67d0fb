package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var ErrNoCaptions = errors.New("no captions to render")

// Artifact describes a finished video. Fallback artifacts carry the same duration and frame
// contract as generated ones.
type Artifact struct {
	Path         string `json:"path"`
	Duration     int    `json:"duration"`
	FPS          int    `json:"fps"`
	Frames       int    `json:"frames"`
	UsedFallback bool   `json:"used_fallback"`
	Prompt       string `json:"prompt"`
}

type StillsAssembler interface {
	AssembleStills(ctx context.Context, stills []string, outputPath string, duration, fps int) error
}

// Fallback turns caption text into a video of still frames without any network call.
type Fallback struct {
	assembler StillsAssembler
	width     int
	height    int
	logger    *slog.Logger
}

func NewFallback(assembler StillsAssembler, width, height int, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{
		assembler: assembler,
		width:     width,
		height:    height,
		logger:    logger,
	}
}

func (f *Fallback) Render(ctx context.Context, captions []string, outputPath string, duration, fps int) (*Artifact, error) {
	var texts []string
	for _, c := range captions {
		if c = strings.TrimSpace(c); c != "" {
			texts = append(texts, c)
		}
	}
	if len(texts) == 0 {
		return nil, ErrNoCaptions
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	stillsDir, err := os.MkdirTemp(filepath.Dir(outputPath), "stills-")
	if err != nil {
		return nil, fmt.Errorf("failed to create stills directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(stillsDir) }()

	f.logger.Info("Rendering fallback stills", "count", len(texts), "size", fmt.Sprintf("%dx%d", f.width, f.height))
	stills := make([]string, 0, len(texts))
	for i, text := range texts {
		img, err := RenderCaption(text, f.width, f.height)
		if err != nil {
			return nil, fmt.Errorf("render caption %d: %w", i, err)
		}
		path := filepath.Join(stillsDir, fmt.Sprintf("still_%03d.png", i))
		if err := SavePNG(path, img); err != nil {
			return nil, fmt.Errorf("save caption %d: %w", i, err)
		}
		stills = append(stills, path)
	}

	f.logger.Info("Assembling fallback video", "stills", len(stills), "duration", duration, "fps", fps)
	if err := f.assembler.AssembleStills(ctx, stills, outputPath, duration, fps); err != nil {
		return nil, fmt.Errorf("assemble fallback video: %w", err)
	}

	return &Artifact{
		Path:         outputPath,
		Duration:     duration,
		FPS:          fps,
		Frames:       duration * fps,
		UsedFallback: true,
	}, nil
}
