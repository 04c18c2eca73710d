package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/semmidev/pgstash/internal/domain"
)

type Backup struct {
	db         domain.Database
	workspace  Workspace
	storage    domain.ObjectStorage
	compressor domain.Compressor
	logger     Logger
	prefix     string
	keepLocal  bool
	now        func() time.Time
}

// Workspace holds the artifact between dump and upload.
type Workspace interface {
	Create(name string) (*os.File, error)
	Size(name string) (int64, error)
	Delete(name string) error
	GetPath(name string) string
}

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

type Option func(*Backup)

// WithClock replaces time.Now as the source of the run timestamp.
func WithClock(now func() time.Time) Option {
	return func(b *Backup) {
		b.now = now
	}
}

func WithKeepLocal(keep bool) Option {
	return func(b *Backup) {
		b.keepLocal = keep
	}
}

func NewBackup(
	db domain.Database,
	workspace Workspace,
	storage domain.ObjectStorage,
	compressor domain.Compressor,
	logger Logger,
	prefix string,
	opts ...Option,
) *Backup {
	b := &Backup{
		db:         db,
		workspace:  workspace,
		storage:    storage,
		compressor: compressor,
		logger:     logger,
		prefix:     prefix,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute runs ping, dump and compress, bucket check and upload exactly once.
// A bucket created here is left in place when a later step fails.
func (uc *Backup) Execute(ctx context.Context) (*domain.Artifact, error) {
	start := uc.now()
	dbName := uc.db.GetName()
	uc.logger.Infof("[%s] Starting backup...", dbName)

	if err := uc.db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("database ping: %w", classify(domain.ErrDump, err))
	}

	artifact, err := uc.dumpAndCompress(ctx, ObjectKey(uc.prefix, start), start)
	if err != nil {
		return nil, err
	}

	bucket := uc.storage.GetBucketName()
	created, err := uc.storage.EnsureBucket(ctx)
	if err != nil {
		uc.logger.Errorf("[%s] Bucket %s unavailable, artifact kept at %s", dbName, bucket, artifact.Path)
		return nil, fmt.Errorf("ensure bucket: %w", classify(domain.ErrStorage, err))
	}
	if created {
		uc.logger.Infof("[%s] Created bucket %s", dbName, bucket)
	}

	uc.logger.Infof("[%s] Uploading %s to bucket %s...", dbName, artifact.Key, bucket)
	if err := uc.storage.Upload(ctx, artifact.Path, artifact.Key); err != nil {
		uc.logger.Errorf("[%s] Upload failed, artifact kept at %s", dbName, artifact.Path)
		return nil, fmt.Errorf("upload: %w", classify(domain.ErrUpload, err))
	}
	uc.logger.Infof("[%s] Successfully uploaded to %s", dbName, bucket)

	if !uc.keepLocal {
		if err := uc.workspace.Delete(localName(artifact.Key)); err != nil {
			uc.logger.Warnf("[%s] Failed to remove local artifact: %v", dbName, err)
		} else {
			uc.logger.Infof("[%s] Removed local artifact %s", dbName, artifact.Path)
		}
	}

	uc.logger.Infof("[%s] Backup completed in %s: %s",
		dbName, uc.now().Sub(start).Round(time.Millisecond), artifact.Key)

	return artifact, nil
}

func (uc *Backup) dumpAndCompress(ctx context.Context, key string, createdAt time.Time) (*domain.Artifact, error) {
	dbName := uc.db.GetName()
	name := localName(key)
	path := uc.workspace.GetPath(name)

	file, err := uc.workspace.Create(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDump, err)
	}

	uc.logger.Infof("[%s] Dumping to: %s", dbName, path)
	raw, err := uc.writeDump(ctx, file)
	if err != nil {
		if rmErr := uc.workspace.Delete(name); rmErr != nil {
			uc.logger.Warnf("[%s] Failed to remove partial artifact: %v", dbName, rmErr)
		}
		return nil, err
	}

	size, err := uc.workspace.Size(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDump, err)
	}

	ratio := 0.0
	if raw > 0 {
		ratio = float64(size) / float64(raw) * 100
	}
	uc.logger.Infof("[%s] Dump complete, size: %.2f MB compressed to %.2f MB (%.1f%% of original)",
		dbName, megabytes(raw), megabytes(size), ratio)

	return &domain.Artifact{
		Key:       key,
		Path:      path,
		Size:      size,
		RawSize:   raw,
		CreatedAt: createdAt,
	}, nil
}

// writeDump streams the dump through the compressor into file and closes
// both. It returns the number of uncompressed bytes.
func (uc *Backup) writeDump(ctx context.Context, file *os.File) (int64, error) {
	gz, err := uc.compressor.NewWriter(file)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("%w: compression: %w", domain.ErrDump, err)
	}

	counter := &countingWriter{w: gz}
	dumpErr := uc.db.Dump(ctx, counter)
	closeErr := errors.Join(gz.Close(), file.Close())

	switch {
	case dumpErr != nil:
		return 0, fmt.Errorf("dump: %w", classify(domain.ErrDump, dumpErr))
	case closeErr != nil:
		return 0, fmt.Errorf("%w: compression: %w", domain.ErrDump, closeErr)
	case counter.n == 0:
		return 0, fmt.Errorf("%w: %s produced no output", domain.ErrDump, uc.db.GetType())
	}

	return counter.n, nil
}

// classify makes sure err carries a failure class for the exit code.
func classify(class, err error) error {
	if errors.Is(err, domain.ErrConfig) || errors.Is(err, domain.ErrDump) ||
		errors.Is(err, domain.ErrStorage) || errors.Is(err, domain.ErrUpload) {
		return err
	}
	return fmt.Errorf("%w: %w", class, err)
}
