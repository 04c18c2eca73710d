package domain

import (
	"context"
	"io"
)

type Database interface {
	// Dump streams a plain SQL dump into w.
	Dump(ctx context.Context, w io.Writer) error
	GetName() string
	GetType() string
	Ping(ctx context.Context) error
}
