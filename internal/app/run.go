package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"blissbuilder/internal/stage"
	"blissbuilder/internal/storage"
)

const (
	StageTrend  = "trend"
	StageVideo  = "video"
	StageUpload = "upload"
)

var stageOrder = []string{StageTrend, StageVideo, StageUpload}

// PipelineRun is the record of one run. The pipeline owns it; stages only see their inputs.
type PipelineRun struct {
	ID         uuid.UUID              `json:"id"`
	Timestamp  string                 `json:"timestamp"`
	Mode       string                 `json:"mode"`
	OutputDir  string                 `json:"output_dir"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Success    bool                   `json:"success"`
	Error      string                 `json:"error,omitempty"`
	Theme      string                 `json:"theme,omitempty"`
	Stages     map[string]stage.State `json:"stages"`
	Trend      *stage.TrendResult     `json:"trend,omitempty"`
	Video      *stage.VideoResult     `json:"video,omitempty"`
	Upload     *stage.UploadResult    `json:"upload,omitempty"`
	Archived   int                    `json:"-"`
}

func newRun(id uuid.UUID, mode string, now time.Time) *PipelineRun {
	stages := make(map[string]stage.State, len(stageOrder))
	for _, name := range stageOrder {
		stages[name] = stage.NotStarted
	}
	return &PipelineRun{
		ID:        id,
		Timestamp: now.Format(sessionLayout),
		Mode:      mode,
		StartedAt: now,
		Stages:    stages,
	}
}

func (r *PipelineRun) Err() error {
	if r.Success {
		return nil
	}
	if r.Error == "" {
		return errors.New("pipeline failed")
	}
	return errors.New(r.Error)
}

// FailedStage names the stage that ended the run, or "" when none did.
func (r *PipelineRun) FailedStage() string {
	for _, name := range stageOrder {
		if r.Stages[name] == stage.Failed {
			return name
		}
	}
	return ""
}

func (r *PipelineRun) VideoID() string {
	if r.Upload == nil {
		return ""
	}
	return r.Upload.VideoID
}

func (r *PipelineRun) VideoURL() string {
	if r.Upload == nil {
		return ""
	}
	return r.Upload.VideoURL
}

func (r *PipelineRun) auditRow() AuditRow {
	return AuditRow{
		Timestamp: r.Timestamp,
		Success:   r.Success,
		OutputDir: r.OutputDir,
		Theme:     r.Theme,
		VideoID:   r.VideoID(),
		VideoURL:  r.VideoURL(),
		Error:     r.Error,
	}
}

func (r *PipelineRun) save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run manifest: %w", err)
	}
	return storage.WriteFileAtomic(path, data)
}

// LoadRun reads a run.json manifest.
func LoadRun(path string) (*PipelineRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run manifest: %w", err)
	}
	var run PipelineRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parse run manifest: %w", err)
	}
	return &run, nil
}
