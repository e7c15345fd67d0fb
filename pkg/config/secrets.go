package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// SecretSource returns the latest value of a named secret.
type SecretSource interface {
	Access(ctx context.Context, name string) (string, error)
}

type SecretManagerSource struct {
	client  *secretmanager.Client
	project string
}

func NewSecretManagerSource(ctx context.Context, project string) (*SecretManagerSource, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create secret manager client: %w", err)
	}
	return &SecretManagerSource{client: client, project: project}, nil
}

func (s *SecretManagerSource) Access(ctx context.Context, name string) (string, error) {
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.project, name),
	})
	if err != nil {
		return "", fmt.Errorf("access secret %s: %w", name, err)
	}
	return strings.TrimSpace(string(resp.GetPayload().GetData())), nil
}

func (s *SecretManagerSource) Close() error {
	return s.client.Close()
}

// ResolveSecrets fills credentials that the environment left empty. A secret that
// cannot be read is skipped; the stage that needs it reports the missing credential.
func ResolveSecrets(ctx context.Context, cfg *Config, source SecretSource) error {
	if source == nil {
		return nil
	}

	fields := []struct {
		name  string
		value *string
	}{
		{"GROQ_API_KEY", &cfg.GroqAPIKey},
		{"GEMINI_API_KEY", &cfg.GeminiAPIKey},
		{"YOUTUBE_API_KEY", &cfg.YouTubeAPIKey},
		{"YOUTUBE_CLIENT_ID", &cfg.YouTubeClientID},
		{"YOUTUBE_CLIENT_SECRET", &cfg.YouTubeClientSecret},
	}

	for _, f := range fields {
		if *f.value != "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		value, err := source.Access(ctx, f.name)
		if err != nil {
			slog.Warn("Secret not resolved", "name", f.name, "error", err)
			continue
		}
		*f.value = value
	}

	return nil
}
