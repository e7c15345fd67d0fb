package llm

import "context"

// ThemeRequest carries the rendered trend context plus the creative angle drawn for this run.
type ThemeRequest struct {
	Perspective string
	Style       string
	Context     string
	// Seed varies sampling between runs that share a context.
	Seed int
}

type ThemeClient interface {
	ExtractTheme(ctx context.Context, req ThemeRequest) (string, error)
}

type NarrationClient interface {
	WriteNarration(ctx context.Context, theme string) (string, error)
}

type Client interface {
	ThemeClient
	NarrationClient
}
