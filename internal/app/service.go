package app

import (
	"log/slog"

	"blissbuilder/internal/metrics"
	"blissbuilder/internal/stage"
	"blissbuilder/internal/storage"
	"blissbuilder/pkg/config"
)

type Service struct {
	cfg      *config.Config
	trend    stage.TrendRunner
	video    stage.VideoRunner
	upload   stage.UploadRunner
	storage  *storage.LocalStorage
	audit    *AuditLog
	archiver storage.Archiver
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type ServiceOptions struct {
	Config   *config.Config
	Trend    stage.TrendRunner
	Video    stage.VideoRunner
	Upload   stage.UploadRunner
	Storage  *storage.LocalStorage
	Audit    *AuditLog
	Archiver storage.Archiver
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

func NewService(opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:      opts.Config,
		trend:    opts.Trend,
		video:    opts.Video,
		upload:   opts.Upload,
		storage:  opts.Storage,
		audit:    opts.Audit,
		archiver: opts.Archiver,
		metrics:  opts.Metrics,
		logger:   logger,
	}
}

func (s *Service) Config() *config.Config         { return s.cfg }
func (s *Service) Trend() stage.TrendRunner       { return s.trend }
func (s *Service) Video() stage.VideoRunner       { return s.video }
func (s *Service) Upload() stage.UploadRunner     { return s.upload }
func (s *Service) Storage() *storage.LocalStorage { return s.storage }
func (s *Service) Audit() *AuditLog               { return s.audit }
func (s *Service) Archiver() storage.Archiver     { return s.archiver }
func (s *Service) Metrics() *metrics.Metrics      { return s.metrics }
func (s *Service) Logger() *slog.Logger           { return s.logger }
