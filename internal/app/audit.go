package app

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

const (
	unknownTheme = "N/A"
	noError      = "None"
)

var auditHeader = []string{"timestamp", "success", "output_dir", "theme", "video_id", "video_url", "error"}

// AuditRow is one line of the cumulative run log.
type AuditRow struct {
	Timestamp string
	Success   bool
	OutputDir string
	Theme     string
	VideoID   string
	VideoURL  string
	Error     string
}

func (r AuditRow) record() []string {
	theme := r.Theme
	if theme == "" {
		theme = unknownTheme
	}
	errText := r.Error
	if errText == "" {
		errText = noError
	}
	return []string{
		r.Timestamp,
		strconv.FormatBool(r.Success),
		r.OutputDir,
		theme,
		r.VideoID,
		r.VideoURL,
		errText,
	}
}

// AuditLog appends rows to a CSV file. The header is written when the file is created.
type AuditLog struct {
	mu   sync.Mutex
	path string
}

func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

func (a *AuditLog) Path() string {
	return a.path
}

func (a *AuditLog) Append(row AuditRow) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return fmt.Errorf("create audit log directory: %w", err)
	}

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat audit log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(auditHeader); err != nil {
			return fmt.Errorf("write audit header: %w", err)
		}
	}
	if err := w.Write(row.record()); err != nil {
		return fmt.Errorf("write audit row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush audit log: %w", err)
	}
	return nil
}

// Rows reads the log under the append lock so a reader never sees a half-written row.
func (a *AuditLog) Rows() ([]AuditRow, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ReadAudit(a.path)
}

// ReadAudit returns every row after the header. A missing log has no rows.
func ReadAudit(path string) ([]AuditRow, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(auditHeader)

	var rows []AuditRow
	for line := 0; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse audit log: %w", err)
		}
		if line == 0 {
			continue
		}
		success, _ := strconv.ParseBool(rec[1])
		rows = append(rows, AuditRow{
			Timestamp: rec[0],
			Success:   success,
			OutputDir: rec[2],
			Theme:     rec[3],
			VideoID:   rec[4],
			VideoURL:  rec[5],
			Error:     rec[6],
		})
	}
	return rows, nil
}
