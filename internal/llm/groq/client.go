package groq

import (
	"context"
	"fmt"
	"strings"

	"github.com/conneroisu/groq-go"

	"blissbuilder/internal/llm"
	"blissbuilder/pkg/prompts"
)

var _ llm.Client = (*Client)(nil)

const (
	themeMaxTokens        = 120
	themeTemperature      = 0.95
	themeTopP             = 0.98
	themeFrequencyPenalty = 0.7
	themePresencePenalty  = 0.5

	narrationTemperature = 0.7
)

type Client struct {
	client   *groq.Client
	model    groq.ChatModel
	duration int
	prompts  *prompts.Prompts
}

// NewClient builds a Groq client. duration is the target video length the narration is paced for.
func NewClient(apiKey, model string, duration int, p *prompts.Prompts) (*Client, error) {
	client, err := groq.NewClient(apiKey)
	if err != nil {
		return nil, fmt.Errorf("create groq client: %w", err)
	}

	return &Client{
		client:   client,
		model:    groq.ChatModel(model),
		duration: duration,
		prompts:  p,
	}, nil
}

func (c *Client) ExtractTheme(ctx context.Context, req llm.ThemeRequest) (string, error) {
	prompt, err := c.prompts.RenderTheme(prompts.ThemeParams{
		Perspective: req.Perspective,
		Style:       req.Style,
		Context:     req.Context,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	seed := req.Seed
	content, err := c.complete(ctx, groq.ChatCompletionRequest{
		Model: c.model,
		Messages: []groq.ChatCompletionMessage{
			{Role: groq.RoleSystem, Content: c.prompts.Theme.System},
			{Role: groq.RoleUser, Content: prompt},
		},
		MaxTokens:        themeMaxTokens,
		Temperature:      themeTemperature,
		TopP:             themeTopP,
		FrequencyPenalty: themeFrequencyPenalty,
		PresencePenalty:  themePresencePenalty,
		Seed:             &seed,
	})
	if err != nil {
		return "", err
	}

	return cleanText(content), nil
}

func (c *Client) WriteNarration(ctx context.Context, theme string) (string, error) {
	prompt, err := c.prompts.RenderNarration(prompts.NarrationParams{
		Theme:    theme,
		Duration: c.duration,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	messages := []groq.ChatCompletionMessage{{Role: groq.RoleUser, Content: prompt}}
	if c.prompts.Narration.System != "" {
		messages = append([]groq.ChatCompletionMessage{{Role: groq.RoleSystem, Content: c.prompts.Narration.System}}, messages...)
	}

	content, err := c.complete(ctx, groq.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: narrationTemperature,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(content), nil
}

func cleanText(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.Trim(text, "\"'")
	return strings.TrimSpace(text)
}

func (c *Client) complete(ctx context.Context, req groq.ChatCompletionRequest) (string, error) {
	resp, err := c.client.ChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response")
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("empty response")
	}

	return content, nil
}
