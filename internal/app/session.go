package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	sessionLayout = "20060102_150405"
	maxSessions   = 100
)

// session is one run directory and the artifact paths inside it.
type session struct {
	id  string
	dir string
}

// newSession creates a fresh directory named for now. Runs started in the same second get
// a _2, _3, ... suffix instead of sharing a directory.
func newSession(baseDir string, now time.Time) (*session, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	stamp := now.Format(sessionLayout)
	for n := 1; n <= maxSessions; n++ {
		id := stamp
		if n > 1 {
			id = fmt.Sprintf("%s_%d", stamp, n)
		}
		dir := filepath.Join(baseDir, id)
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return &session{id: id, dir: dir}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create run directory: %w", err)
		}
	}
	return nil, fmt.Errorf("create run directory: %d runs already started at %s", maxSessions, stamp)
}

func (s *session) trendsPath() string    { return filepath.Join(s.dir, "trends.json") }
func (s *session) themePath() string     { return filepath.Join(s.dir, "theme.txt") }
func (s *session) narrationPath() string { return filepath.Join(s.dir, "narration.txt") }
func (s *session) promptPath() string    { return filepath.Join(s.dir, "veo3_prompt.txt") }
func (s *session) videoPath() string     { return filepath.Join(s.dir, "asmr_video.mp4") }
func (s *session) resultPath() string    { return filepath.Join(s.dir, "upload_result.json") }
func (s *session) manifestPath() string  { return filepath.Join(s.dir, "run.json") }
