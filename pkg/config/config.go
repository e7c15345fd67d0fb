package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath    = "config.yaml"
	defaultOutputDir     = "./output"
	defaultAuditLog      = "pipeline_log.csv"
	defaultResolution    = "1080x1920"
	defaultDuration      = 8
	defaultFPS           = 24
	defaultFFmpegPath    = "ffmpeg"
	defaultFFprobePath   = "ffprobe"
	defaultTokenPath     = "./youtube_token.json"
	defaultGroqModel     = "llama-3.3-70b-versatile"
	defaultPromptModel   = "gemini-2.0-flash-exp"
	defaultVideoModel    = "veo-3.1-generate-preview"
	defaultDailyLimit    = 10
	defaultPollInterval  = 10 * time.Second
	defaultMaxPolls      = 60
	defaultQuery         = "ASMR"
	defaultRegion        = "US"
	defaultMaxResults    = 50
	defaultLookbackDays  = 7
	defaultRequestRate   = 5.0
	defaultAttempts      = 3
	defaultFetchBackoff  = 2 * time.Second
	defaultUploadBackoff = 3 * time.Second
	defaultPrivacy       = "public"
	defaultCategoryID    = "22"
	defaultPipelineMode  = ModeInProcess
	defaultGCSPrefix     = "runs"
	defaultServerAddr    = ":8080"
)

const (
	ModeInProcess  = "inprocess"
	ModeSubprocess = "subprocess"
)

type Config struct {
	GroqAPIKey          string
	GeminiAPIKey        string
	YouTubeAPIKey       string
	YouTubeClientID     string
	YouTubeClientSecret string
	YouTubeTokenPath    string
	GCSBucket           string

	Groq     GroqConfig     `yaml:"groq"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Trends   TrendsConfig   `yaml:"trends"`
	Video    VideoConfig    `yaml:"video"`
	Retry    RetryConfig    `yaml:"retry"`
	YouTube  YouTubeConfig  `yaml:"youtube"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	GCS      GCSConfig      `yaml:"gcs"`
	Secrets  SecretsConfig  `yaml:"secrets"`
	Server   ServerConfig   `yaml:"server"`
}

type GroqConfig struct {
	Model string `yaml:"model"`
}

type GeminiConfig struct {
	PromptModel  string        `yaml:"prompt_model"`
	VideoModel   string        `yaml:"video_model"`
	DailyLimit   int           `yaml:"daily_limit"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxPolls     int           `yaml:"max_polls"`
}

type TrendsConfig struct {
	Query        string  `yaml:"query"`
	Region       string  `yaml:"region"`
	MaxResults   int     `yaml:"max_results"`
	LookbackDays int     `yaml:"lookback_days"`
	RequestRate  float64 `yaml:"requests_per_second"`
}

type VideoConfig struct {
	OutputDir   string `yaml:"output_dir"`
	Resolution  string `yaml:"resolution"`
	Duration    int    `yaml:"duration"`
	FPS         int    `yaml:"fps"`
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
}

type RetryConfig struct {
	Attempts      int           `yaml:"attempts"`
	FetchBackoff  time.Duration `yaml:"fetch_backoff"`
	UploadBackoff time.Duration `yaml:"upload_backoff"`
}

type YouTubeConfig struct {
	Privacy     string   `yaml:"privacy"`
	CategoryID  string   `yaml:"category_id"`
	DefaultTags []string `yaml:"default_tags"`
}

type PipelineConfig struct {
	Mode     string `yaml:"mode"`
	AuditLog string `yaml:"audit_log"`
}

type GCSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Prefix  string `yaml:"prefix"`
}

type SecretsConfig struct {
	Project string `yaml:"project"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on environment variables")
	}

	cfg := fromEnv()

	if err := loadYAMLConfig(cfg, defaultConfigPath); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if cfg.Secrets.Project != "" {
		source, err := NewSecretManagerSource(ctx, cfg.Secrets.Project)
		if err != nil {
			return nil, err
		}
		defer func() { _ = source.Close() }()

		if err := ResolveSecrets(ctx, cfg, source); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		GroqAPIKey:          os.Getenv("GROQ_API_KEY"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		YouTubeAPIKey:       os.Getenv("YOUTUBE_API_KEY"),
		YouTubeClientID:     os.Getenv("YOUTUBE_CLIENT_ID"),
		YouTubeClientSecret: os.Getenv("YOUTUBE_CLIENT_SECRET"),
		YouTubeTokenPath:    getEnvOrDefault("YOUTUBE_TOKEN_PATH", defaultTokenPath),
		GCSBucket:           os.Getenv("GCS_BUCKET"),
	}
}

func loadYAMLConfig(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("No config.yaml found, using defaults")
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	applyGroqDefaults(cfg)
	applyGeminiDefaults(cfg)
	applyTrendsDefaults(cfg)
	applyVideoDefaults(cfg)
	applyRetryDefaults(cfg)
	applyYouTubeDefaults(cfg)
	applyPipelineDefaults(cfg)
	applyGCSDefaults(cfg)
	applyServerDefaults(cfg)
}

func applyGroqDefaults(cfg *Config) {
	if cfg.Groq.Model == "" {
		cfg.Groq.Model = defaultGroqModel
	}
}

func applyGeminiDefaults(cfg *Config) {
	if cfg.Gemini.PromptModel == "" {
		cfg.Gemini.PromptModel = defaultPromptModel
	}
	if cfg.Gemini.VideoModel == "" {
		cfg.Gemini.VideoModel = defaultVideoModel
	}
	if cfg.Gemini.DailyLimit == 0 {
		cfg.Gemini.DailyLimit = defaultDailyLimit
	}
	if cfg.Gemini.PollInterval == 0 {
		cfg.Gemini.PollInterval = defaultPollInterval
	}
	if cfg.Gemini.MaxPolls == 0 {
		cfg.Gemini.MaxPolls = defaultMaxPolls
	}
}

func applyTrendsDefaults(cfg *Config) {
	if cfg.Trends.Query == "" {
		cfg.Trends.Query = defaultQuery
	}
	if cfg.Trends.Region == "" {
		cfg.Trends.Region = defaultRegion
	}
	if cfg.Trends.MaxResults == 0 {
		cfg.Trends.MaxResults = defaultMaxResults
	}
	if cfg.Trends.LookbackDays == 0 {
		cfg.Trends.LookbackDays = defaultLookbackDays
	}
	if cfg.Trends.RequestRate == 0 {
		cfg.Trends.RequestRate = defaultRequestRate
	}
}

func applyVideoDefaults(cfg *Config) {
	if cfg.Video.OutputDir == "" {
		cfg.Video.OutputDir = defaultOutputDir
	}
	if cfg.Video.Resolution == "" {
		cfg.Video.Resolution = defaultResolution
	}
	if cfg.Video.Duration == 0 {
		cfg.Video.Duration = defaultDuration
	}
	if cfg.Video.FPS == 0 {
		cfg.Video.FPS = defaultFPS
	}
	if cfg.Video.FFmpegPath == "" {
		cfg.Video.FFmpegPath = defaultFFmpegPath
	}
	if cfg.Video.FFprobePath == "" {
		cfg.Video.FFprobePath = defaultFFprobePath
	}
}

// Attempts is left alone when negative so that a disabled retry budget stays visible downstream.
func applyRetryDefaults(cfg *Config) {
	if cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = defaultAttempts
	}
	if cfg.Retry.FetchBackoff == 0 {
		cfg.Retry.FetchBackoff = defaultFetchBackoff
	}
	if cfg.Retry.UploadBackoff == 0 {
		cfg.Retry.UploadBackoff = defaultUploadBackoff
	}
}

func applyYouTubeDefaults(cfg *Config) {
	if cfg.YouTube.Privacy == "" {
		cfg.YouTube.Privacy = defaultPrivacy
	}
	if cfg.YouTube.CategoryID == "" {
		cfg.YouTube.CategoryID = defaultCategoryID
	}
	if len(cfg.YouTube.DefaultTags) == 0 {
		cfg.YouTube.DefaultTags = []string{"asmr", "shorts", "relaxing", "satisfying"}
	}
}

func applyPipelineDefaults(cfg *Config) {
	if cfg.Pipeline.Mode == "" {
		cfg.Pipeline.Mode = defaultPipelineMode
	}
	if cfg.Pipeline.AuditLog == "" {
		cfg.Pipeline.AuditLog = defaultAuditLog
	}
}

func applyGCSDefaults(cfg *Config) {
	if cfg.GCS.Prefix == "" {
		cfg.GCS.Prefix = defaultGCSPrefix
	}
}

func applyServerDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultServerAddr
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
