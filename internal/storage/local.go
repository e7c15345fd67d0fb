package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/google/renameio/v2"
)

var runDirRegex = regexp.MustCompile(`^\d{8}_\d{6}(_\d+)?$`)

// WriteFileAtomic replaces path with data so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return replaceFile(path, data, 0644)
}

// WriteFilePrivate atomically writes an owner-only file. The parent directory must exist.
func WriteFilePrivate(path string, data []byte) error {
	return replaceFile(path, data, 0600)
}

func replaceFile(path string, data []byte, perm os.FileMode) error {
	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(perm))
	if err != nil {
		return fmt.Errorf("failed to create pending file: %w", err)
	}
	defer func() { _ = pendingFile.Cleanup() }()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func WriteText(path, text string) error {
	return WriteFileAtomic(path, []byte(text))
}

type LocalStorage struct {
	outputDir string
}

func NewLocalStorage(outputDir string) *LocalStorage {
	return &LocalStorage{outputDir: outputDir}
}

func (s *LocalStorage) OutputDir() string {
	return s.outputDir
}

func (s *LocalStorage) EnsureDirectories() error {
	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// ListRuns returns run directories (named YYYYMMDD_HHMMSS) oldest first.
func (s *LocalStorage) ListRuns() ([]string, error) {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var runs []string
	for _, entry := range entries {
		if entry.IsDir() && runDirRegex.MatchString(entry.Name()) {
			runs = append(runs, entry.Name())
		}
	}
	sort.Strings(runs)
	return runs, nil
}

// PruneRuns deletes all but the newest keep run directories and returns the removed names.
func (s *LocalStorage) PruneRuns(keep int) ([]string, error) {
	if keep < 0 {
		keep = 0
	}

	runs, err := s.ListRuns()
	if err != nil {
		return nil, err
	}
	if len(runs) <= keep {
		return nil, nil
	}

	var removed []string
	for _, name := range runs[:len(runs)-keep] {
		if err := os.RemoveAll(filepath.Join(s.outputDir, name)); err != nil {
			return removed, fmt.Errorf("failed to remove run %s: %w", name, err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}
