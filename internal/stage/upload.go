package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"blissbuilder/internal/distribution"
	"blissbuilder/internal/storage"
	"blissbuilder/pkg/retry"
)

// RequestBuilder turns the run's artifacts into platform metadata.
type RequestBuilder func(videoPath, theme, narration string) (distribution.UploadRequest, error)

// authenticator is implemented by uploaders that need a stored credential before they can run.
type authenticator interface {
	Authenticated() bool
}

type UploadInput struct {
	VideoPath     string
	Theme         string
	ThemePath     string
	Narration     string
	NarrationPath string
	ResultPath    string
	Privacy       string
}

type UploadResult struct {
	Envelope
	VideoID    string `json:"video_id,omitempty"`
	VideoURL   string `json:"video_url,omitempty"`
	Title      string `json:"title,omitempty"`
	Privacy    string `json:"privacy,omitempty"`
	Theme      string `json:"theme,omitempty"`
	Disclosed  bool   `json:"ai_disclosed"`
	ResultPath string `json:"output_file,omitempty"`
}

// UploadStage publishes the finished video. It has no fallback; a failed upload fails the run.
type UploadStage struct {
	uploader distribution.Uploader
	build    RequestBuilder
	exec     *retry.Executor
	logger   *slog.Logger
	now      func() time.Time
}

// NewUploadStage builds the stage. A nil uploader means the OAuth client is not configured.
func NewUploadStage(uploader distribution.Uploader, build RequestBuilder, exec *retry.Executor, logger *slog.Logger) *UploadStage {
	if logger == nil {
		logger = slog.Default()
	}
	if exec == nil {
		exec = retry.New(retry.UploadPolicy(retry.DefaultAttempts), logger)
	}
	return &UploadStage{
		uploader: uploader,
		build:    build,
		exec:     exec,
		logger:   logger.With("stage", "upload"),
		now:      time.Now,
	}
}

func (s *UploadStage) Run(ctx context.Context, in UploadInput) UploadResult {
	fail := func(err error, attempts int) UploadResult {
		s.logger.Error("Upload stage failed", "error", err, "attempts", attempts)
		return UploadResult{Envelope: failed(err, attempts, s.now()), Theme: in.Theme}
	}

	theme, err := resolveTheme(in.Theme, in.ThemePath)
	if err != nil {
		return fail(err, 0)
	}
	in.Theme = theme

	privacy := in.Privacy
	if privacy == "" {
		privacy = distribution.PrivacyPublic
	}

	switch {
	case in.VideoPath == "":
		return fail(fmt.Errorf("%w: video path", ErrMissingInput), 0)
	case theme == "":
		return fail(fmt.Errorf("%w: theme", ErrMissingInput), 0)
	case !fileExists(in.VideoPath):
		return fail(fmt.Errorf("video file not found: %s", in.VideoPath), 0)
	case !distribution.ValidPrivacy(privacy):
		return fail(fmt.Errorf("invalid privacy %q", privacy), 0)
	case s.uploader == nil:
		return fail(fmt.Errorf("%w: YOUTUBE_CLIENT_ID and YOUTUBE_CLIENT_SECRET not set", ErrMissingInput), 0)
	case s.build == nil:
		return fail(fmt.Errorf("%w: upload metadata builder", ErrMissingInput), 0)
	}
	if a, ok := s.uploader.(authenticator); ok && !a.Authenticated() {
		return fail(fmt.Errorf("%w: %s token, run `auth youtube` first", ErrMissingInput, s.uploader.Platform()), 0)
	}

	narration, err := resolveTheme(in.Narration, in.NarrationPath)
	if err != nil {
		s.logger.Warn("Narration unavailable for description", "error", err)
	}

	req, err := s.build(in.VideoPath, theme, narration)
	if err != nil {
		return fail(err, 0)
	}
	req.Privacy = privacy

	s.logger.Info("Uploading video", "platform", s.uploader.Platform(), "title", req.Title, "privacy", privacy)
	uploaded := retry.Run(ctx, s.exec, "upload", func(ctx context.Context) (*distribution.UploadResponse, error) {
		return s.uploader.Upload(ctx, req)
	})
	if !uploaded.OK() {
		return fail(uploaded.Err, uploaded.Attempts)
	}

	resp := uploaded.Value
	result := UploadResult{
		Envelope:   succeeded(uploaded.Attempts, s.now()),
		VideoID:    resp.ID,
		VideoURL:   resp.URL,
		Title:      resp.Title,
		Privacy:    resp.Privacy,
		Theme:      theme,
		Disclosed:  resp.Disclosure,
		ResultPath: in.ResultPath,
	}

	if in.ResultPath != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err == nil {
			err = storage.WriteFileAtomic(in.ResultPath, data)
		}
		if err != nil {
			s.logger.Warn("Failed to save upload result", "path", in.ResultPath, "error", err)
		}
	}

	s.logger.Info("Upload complete", "video_id", resp.ID, "url", resp.URL, "attempts", uploaded.Attempts)
	return result
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
