package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/semmidev/pgstash/internal/adapter/compressor"
	"github.com/semmidev/pgstash/internal/adapter/database"
	"github.com/semmidev/pgstash/internal/adapter/storage"
	"github.com/semmidev/pgstash/internal/config"
	"github.com/semmidev/pgstash/internal/domain"
	"github.com/semmidev/pgstash/internal/infrastructure/logger"
	"github.com/semmidev/pgstash/internal/usecase"
)

// Exit codes reported by the backup command.
const (
	ExitOK      = 0
	ExitUnknown = 1
	ExitConfig  = 2
	ExitDump    = 3
	ExitStorage = 4
	ExitUpload  = 5
)

type App struct {
	config *config.Config
	logger *logger.Logger
	backup domain.BackupExecutor
}

type options struct {
	db      domain.Database
	objects domain.ObjectStorage
	clock   func() time.Time
}

type Option func(*options)

// WithDatabase replaces the PostgreSQL adapter built from the config.
func WithDatabase(db domain.Database) Option {
	return func(o *options) {
		o.db = db
	}
}

// WithObjectStorage replaces the S3 adapter built from the config.
func WithObjectStorage(objects domain.ObjectStorage) Option {
	return func(o *options) {
		o.objects = objects
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := &options{clock: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	log, err := logger.New(cfg.App.Name, cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize logger: %w", domain.ErrConfig, err)
	}

	log.Infof("Starting %s", cfg.App.Name)

	workspace, err := storage.NewLocal(cfg.Backup.OutputDir)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("%w: failed to initialize local storage: %w", domain.ErrDump, err)
	}

	db := o.db
	if db == nil {
		db = database.NewPostgreSQL(&cfg.Database, &cfg.Backup, log)
	}

	objects := o.objects
	if objects == nil {
		s3Storage, err := storage.NewS3(ctx, &cfg.Storage)
		if err != nil {
			log.Close()
			return nil, fmt.Errorf("failed to initialize S3: %w", err)
		}
		objects = s3Storage
	}

	endpoint := cfg.Storage.Endpoint
	if endpoint == "" {
		endpoint = "aws"
	}
	log.Infof("✓ Database %s at %s:%d", cfg.Database.Name, cfg.Database.Host, cfg.Database.Port)
	log.Infof("✓ S3 upload target: bucket %s (%s, %s)", objects.GetBucketName(), cfg.Storage.Region, endpoint)

	backup := usecase.NewBackup(
		db,
		workspace,
		objects,
		compressor.NewGzip(cfg.Backup.CompressionLevel, cfg.Backup.Pgzip),
		log,
		cfg.Storage.Prefix,
		usecase.WithClock(o.clock),
		usecase.WithKeepLocal(cfg.Backup.KeepLocal),
	)

	return &App{
		config: cfg,
		logger: log,
		backup: backup,
	}, nil
}

// Run executes a single backup. Errors are logged here and returned for the
// exit code.
func (a *App) Run(ctx context.Context) (*domain.Artifact, error) {
	artifact, err := a.backup.Execute(ctx)
	if err != nil {
		a.logger.Errorf("Backup of %s failed: %v", a.config.Database.Name, err)
		return nil, err
	}
	return artifact, nil
}

func (a *App) Shutdown() {
	a.logger.Close()
}

// ExitCode maps a run error onto the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, domain.ErrConfig):
		return ExitConfig
	case errors.Is(err, domain.ErrDump):
		return ExitDump
	case errors.Is(err, domain.ErrStorage):
		return ExitStorage
	case errors.Is(err, domain.ErrUpload):
		return ExitUpload
	default:
		return ExitUnknown
	}
}
