package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/genai"

	"blissbuilder/pkg/prompts"
)

const usageFileName = ".blissbuilder_veo_usage"

type Options struct {
	PromptModel  string
	VideoModel   string
	DailyLimit   int
	PollInterval time.Duration
	MaxPolls     int
	Duration     int
	UsageFile    string
}

type contentAPI interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

type videoAPI interface {
	ListModels(ctx context.Context) ([]string, error)
	Submit(ctx context.Context, model, prompt string, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
	Poll(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
	Download(ctx context.Context, video *genai.GeneratedVideo) ([]byte, error)
}

type Client struct {
	text    contentAPI
	video   videoAPI
	opts    Options
	prompts *prompts.Prompts
	usage   *Usage
	rng     *rand.Rand
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *slog.Logger
}

func NewClient(ctx context.Context, apiKey string, opts Options, p *prompts.Prompts, logger *slog.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	if opts.UsageFile == "" {
		home, _ := os.UserHomeDir()
		opts.UsageFile = filepath.Join(home, usageFileName)
	}

	backend := &genaiBackend{client: client}
	return newClient(backend, backend, opts, p, logger), nil
}

func newClient(text contentAPI, video videoAPI, opts Options, p *prompts.Prompts, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		text:    text,
		video:   video,
		opts:    opts,
		prompts: p,
		usage:   NewUsage(opts.UsageFile, opts.DailyLimit),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   sleepContext,
		logger:  logger,
	}
}

type genaiBackend struct {
	client *genai.Client
}

func (b *genaiBackend) Generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := b.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response")
	}

	if resp.Candidates[0].Content.Parts[0].Text == "" {
		return "", fmt.Errorf("empty response")
	}

	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func (b *genaiBackend) ListModels(ctx context.Context) ([]string, error) {
	var names []string
	for model, err := range b.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}
		names = append(names, model.Name)
	}
	return names, nil
}

func (b *genaiBackend) Submit(ctx context.Context, model, prompt string, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	return b.client.Models.GenerateVideos(ctx, model, prompt, nil, config)
}

func (b *genaiBackend) Poll(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	return b.client.Operations.GetVideosOperation(ctx, op, nil)
}

func (b *genaiBackend) Download(ctx context.Context, video *genai.GeneratedVideo) ([]byte, error) {
	return b.client.Files.Download(ctx, genai.NewDownloadURIFromGeneratedVideo(video), nil)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
