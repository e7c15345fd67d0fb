package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"google.golang.org/genai"

	"blissbuilder/internal/storage"
	"blissbuilder/pkg/prompts"
	"blissbuilder/pkg/retry"
)

const (
	aspectRatio = "9:16"
	resolution  = "1080p"
)

var (
	ErrPermissionDenied = errors.New("api key lacks veo permissions")
	ErrModelNotFound    = errors.New("veo model not found")
	ErrQuotaExceeded    = errors.New("api quota exceeded")
	ErrNoVeoModel       = errors.New("no veo models available for this api key")
	ErrTimeout          = errors.New("video generation timed out")
	ErrNoVideo          = errors.New("operation returned no video")
	ErrNotVideo         = errors.New("downloaded file is not a video")
)

// IsCapability reports whether err means this credential cannot generate video at all.
func IsCapability(err error) bool {
	return errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrModelNotFound) ||
		errors.Is(err, ErrNoVeoModel) ||
		errors.Is(err, ErrDailyLimit)
}

var (
	forbiddenCode = regexp.MustCompile(`\b403\b`)
	notFoundCode  = regexp.MustCompile(`\b404\b`)
	quotaCode     = regexp.MustCompile(`\b429\b`)
)

// classify maps a provider error onto the sentinel errors. Permission and not-found
// failures are permanent; quota errors stay retryable. Typed API errors are classified
// by code and status; the message text is only consulted for untyped errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if apiErr, ok := asAPIError(err); ok {
		switch {
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED":
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		case apiErr.Code == http.StatusForbidden || apiErr.Status == "PERMISSION_DENIED":
			return retry.Permanent(fmt.Errorf("%w: %v", ErrPermissionDenied, err))
		case apiErr.Code == http.StatusNotFound || apiErr.Status == "NOT_FOUND":
			return retry.Permanent(fmt.Errorf("%w: %v", ErrModelNotFound, err))
		default:
			return err
		}
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case quotaCode.MatchString(msg) || strings.Contains(lower, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED"):
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	case forbiddenCode.MatchString(msg) || strings.Contains(msg, "PERMISSION_DENIED"):
		return retry.Permanent(fmt.Errorf("%w: %v", ErrPermissionDenied, err))
	case notFoundCode.MatchString(msg):
		return retry.Permanent(fmt.Errorf("%w: %v", ErrModelNotFound, err))
	default:
		return err
	}
}

func asAPIError(err error) (genai.APIError, bool) {
	var value genai.APIError
	if errors.As(err, &value) {
		return value, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return genai.APIError{}, false
}

// CheckCapability lists models and fails permanently when none of them is a Veo model
// or the daily job budget is spent.
func (c *Client) CheckCapability(ctx context.Context) error {
	if err := c.usage.Check(); err != nil {
		return retry.Permanent(err)
	}

	names, err := c.video.ListModels(ctx)
	if err != nil {
		return classify(err)
	}

	var veo []string
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), "veo") {
			veo = append(veo, name)
		}
	}
	c.logger.Debug("Listed models", "total", len(names), "veo", veo)
	if len(veo) == 0 {
		return retry.Permanent(ErrNoVeoModel)
	}
	return nil
}

// GenerateVideo submits one Veo job for prompt, waits for it and writes the result to outputPath.
func (c *Client) GenerateVideo(ctx context.Context, prompt, outputPath string) error {
	if err := c.usage.Check(); err != nil {
		return retry.Permanent(err)
	}

	enhanced, err := c.prompts.RenderEnhance(prompts.EnhanceParams{Prompt: prompt, Duration: c.opts.Duration})
	if err != nil {
		return retry.Permanent(fmt.Errorf("render enhanced prompt: %w", err))
	}

	c.logger.Info("Submitting video job", "model", c.opts.VideoModel, "aspect", aspectRatio, "resolution", resolution)
	op, err := c.video.Submit(ctx, c.opts.VideoModel, enhanced, &genai.GenerateVideosConfig{
		AspectRatio:    aspectRatio,
		Resolution:     resolution,
		NegativePrompt: strings.TrimSpace(c.prompts.Veo.Negative),
	})
	if err != nil {
		return classify(err)
	}
	if err := c.usage.Increment(); err != nil {
		c.logger.Warn("Failed to record video usage", "error", err)
	}

	op, err = c.wait(ctx, op)
	if err != nil {
		return err
	}

	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0] == nil {
		return retry.Permanent(ErrNoVideo)
	}

	data, err := c.video.Download(ctx, op.Response.GeneratedVideos[0])
	if err != nil {
		return fmt.Errorf("download video: %w", err)
	}
	if !filetype.IsVideo(data) {
		return fmt.Errorf("%w: %d bytes", ErrNotVideo, len(data))
	}

	if err := storage.WriteFileAtomic(outputPath, data); err != nil {
		return fmt.Errorf("save video: %w", err)
	}
	c.logger.Info("Video downloaded", "path", outputPath, "bytes", len(data))
	return nil
}

func (c *Client) wait(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	if op == nil {
		return nil, retry.Permanent(ErrNoVideo)
	}

	var err error
	for polls := 0; !op.Done; polls++ {
		if polls >= c.opts.MaxPolls {
			return nil, retry.Permanent(fmt.Errorf("%w after %d polls", ErrTimeout, polls))
		}
		c.logger.Info("Polling video job", "poll", polls+1, "of", c.opts.MaxPolls, "elapsed", time.Duration(polls+1)*c.opts.PollInterval)
		if err := c.sleep(ctx, c.opts.PollInterval); err != nil {
			return nil, err
		}
		op, err = c.video.Poll(ctx, op)
		if err != nil {
			return nil, classify(err)
		}
		if op == nil {
			return nil, retry.Permanent(ErrNoVideo)
		}
	}

	if op.Error != nil {
		return nil, classify(fmt.Errorf("video job failed: %v", op.Error))
	}
	return op, nil
}
