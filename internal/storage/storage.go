package storage

import "context"

// Archiver copies a finished run directory to durable storage.
type Archiver interface {
	ArchiveRun(ctx context.Context, runDir string) (int, error)
}

var _ Archiver = (*GCSStorage)(nil)
