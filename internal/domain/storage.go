package domain

import "context"

type ObjectStorage interface {
	// EnsureBucket creates the target bucket when it does not exist yet and
	// reports whether it had to.
	EnsureBucket(ctx context.Context) (bool, error)
	Upload(ctx context.Context, localPath string, key string) error
	GetBucketName() string
}
