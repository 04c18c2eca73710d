package domain

import (
	"context"
	"time"
)

// Artifact is the compressed dump produced by a single run.
type Artifact struct {
	Key       string
	Path      string
	Size      int64
	RawSize   int64
	CreatedAt time.Time
}

type BackupExecutor interface {
	Execute(ctx context.Context) (*Artifact, error)
}
