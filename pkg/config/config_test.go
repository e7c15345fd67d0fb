package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	orig, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(orig) })
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	return tmp
}

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GROQ_API_KEY", "GEMINI_API_KEY", "YOUTUBE_API_KEY",
		"YOUTUBE_CLIENT_ID", "YOUTUBE_CLIENT_SECRET", "YOUTUBE_TOKEN_PATH", "GCS_BUCKET",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromYAML(t *testing.T) {
	tmp := chdirTemp(t)
	clearCredentialEnv(t)

	yaml := `
groq:
  model: test-model
gemini:
  poll_interval: 5s
  max_polls: 12
trends:
  region: GB
  max_results: 20
video:
  duration: 10
retry:
  attempts: 5
  upload_backoff: 1s
youtube:
  privacy: unlisted
pipeline:
  mode: subprocess
`
	_ = os.WriteFile(filepath.Join(tmp, "config.yaml"), []byte(yaml), 0644)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Groq.Model != "test-model" {
		t.Errorf("Groq.Model = %q, want test-model", cfg.Groq.Model)
	}
	if cfg.Gemini.PollInterval != 5*time.Second {
		t.Errorf("Gemini.PollInterval = %v, want 5s", cfg.Gemini.PollInterval)
	}
	if cfg.Gemini.MaxPolls != 12 {
		t.Errorf("Gemini.MaxPolls = %d, want 12", cfg.Gemini.MaxPolls)
	}
	if cfg.Trends.Region != "GB" || cfg.Trends.MaxResults != 20 {
		t.Errorf("Trends = %+v", cfg.Trends)
	}
	if cfg.Video.Duration != 10 {
		t.Errorf("Video.Duration = %d, want 10", cfg.Video.Duration)
	}
	if cfg.Retry.Attempts != 5 {
		t.Errorf("Retry.Attempts = %d, want 5", cfg.Retry.Attempts)
	}
	if cfg.Retry.UploadBackoff != time.Second {
		t.Errorf("Retry.UploadBackoff = %v, want 1s", cfg.Retry.UploadBackoff)
	}
	if cfg.Retry.FetchBackoff != defaultFetchBackoff {
		t.Errorf("Retry.FetchBackoff = %v, want default", cfg.Retry.FetchBackoff)
	}
	if cfg.YouTube.Privacy != "unlisted" {
		t.Errorf("YouTube.Privacy = %q, want unlisted", cfg.YouTube.Privacy)
	}
	if cfg.Pipeline.Mode != ModeSubprocess {
		t.Errorf("Pipeline.Mode = %q, want subprocess", cfg.Pipeline.Mode)
	}
}

func TestLoadFromEnv(t *testing.T) {
	chdirTemp(t)
	clearCredentialEnv(t)

	t.Setenv("GROQ_API_KEY", "test-groq")
	t.Setenv("GEMINI_API_KEY", "test-gemini")
	t.Setenv("YOUTUBE_API_KEY", "test-youtube")
	t.Setenv("YOUTUBE_TOKEN_PATH", "/tmp/yt.json")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.GroqAPIKey != "test-groq" {
		t.Errorf("GroqAPIKey = %q, want test-groq", cfg.GroqAPIKey)
	}
	if cfg.GeminiAPIKey != "test-gemini" {
		t.Errorf("GeminiAPIKey = %q, want test-gemini", cfg.GeminiAPIKey)
	}
	if cfg.YouTubeAPIKey != "test-youtube" {
		t.Errorf("YouTubeAPIKey = %q, want test-youtube", cfg.YouTubeAPIKey)
	}
	if cfg.YouTubeTokenPath != "/tmp/yt.json" {
		t.Errorf("YouTubeTokenPath = %q, want /tmp/yt.json", cfg.YouTubeTokenPath)
	}
}

func TestLoadMissingConfigFileUsesDefaults(t *testing.T) {
	chdirTemp(t)
	clearCredentialEnv(t)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"groqModel", cfg.Groq.Model, defaultGroqModel},
		{"videoModel", cfg.Gemini.VideoModel, defaultVideoModel},
		{"promptModel", cfg.Gemini.PromptModel, defaultPromptModel},
		{"pollInterval", cfg.Gemini.PollInterval, 10 * time.Second},
		{"maxPolls", cfg.Gemini.MaxPolls, 60},
		{"region", cfg.Trends.Region, "US"},
		{"maxResults", cfg.Trends.MaxResults, 50},
		{"lookback", cfg.Trends.LookbackDays, 7},
		{"duration", cfg.Video.Duration, 8},
		{"fps", cfg.Video.FPS, 24},
		{"resolution", cfg.Video.Resolution, "1080x1920"},
		{"attempts", cfg.Retry.Attempts, 3},
		{"fetchBackoff", cfg.Retry.FetchBackoff, 2 * time.Second},
		{"uploadBackoff", cfg.Retry.UploadBackoff, 3 * time.Second},
		{"privacy", cfg.YouTube.Privacy, "public"},
		{"mode", cfg.Pipeline.Mode, ModeInProcess},
		{"auditLog", cfg.Pipeline.AuditLog, "pipeline_log.csv"},
		{"tokenPath", cfg.YouTubeTokenPath, defaultTokenPath},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadMalformedConfig(t *testing.T) {
	tmp := chdirTemp(t)
	clearCredentialEnv(t)

	_ = os.WriteFile(filepath.Join(tmp, "config.yaml"), []byte("video: [unclosed"), 0644)

	if _, err := Load(context.Background()); err == nil {
		t.Error("Load() should fail on malformed config.yaml")
	}
}

func TestNegativeAttemptsKept(t *testing.T) {
	cfg := &Config{Retry: RetryConfig{Attempts: -1}}
	applyDefaults(cfg)
	if cfg.Retry.Attempts != -1 {
		t.Errorf("Retry.Attempts = %d, want -1", cfg.Retry.Attempts)
	}
}

type fakeSecrets struct {
	values map[string]string
	calls  []string
}

func (f *fakeSecrets) Access(_ context.Context, name string) (string, error) {
	f.calls = append(f.calls, name)
	v, ok := f.values[name]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func TestResolveSecrets(t *testing.T) {
	cfg := &Config{GroqAPIKey: "from-env"}
	source := &fakeSecrets{values: map[string]string{
		"GROQ_API_KEY":    "from-secret",
		"GEMINI_API_KEY":  "gemini-secret",
		"YOUTUBE_API_KEY": "youtube-secret",
	}}

	if err := ResolveSecrets(context.Background(), cfg, source); err != nil {
		t.Fatalf("ResolveSecrets() error: %v", err)
	}

	if cfg.GroqAPIKey != "from-env" {
		t.Errorf("GroqAPIKey = %q, env value should win", cfg.GroqAPIKey)
	}
	if cfg.GeminiAPIKey != "gemini-secret" {
		t.Errorf("GeminiAPIKey = %q, want gemini-secret", cfg.GeminiAPIKey)
	}
	if cfg.YouTubeAPIKey != "youtube-secret" {
		t.Errorf("YouTubeAPIKey = %q, want youtube-secret", cfg.YouTubeAPIKey)
	}
	if cfg.YouTubeClientID != "" {
		t.Errorf("YouTubeClientID = %q, want empty", cfg.YouTubeClientID)
	}
	for _, name := range source.calls {
		if name == "GROQ_API_KEY" {
			t.Error("GROQ_API_KEY should not be fetched when set")
		}
	}
}

func TestResolveSecretsNilSource(t *testing.T) {
	cfg := &Config{}
	if err := ResolveSecrets(context.Background(), cfg, nil); err != nil {
		t.Errorf("ResolveSecrets(nil) = %v", err)
	}
}
