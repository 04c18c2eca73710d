package compressor

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/pgzip"
)

type GzipCompressor struct {
	level    int
	parallel bool
}

// NewGzip returns a gzip compressor at the given level. With parallel set the
// stream is encoded by pgzip, whose output is still a plain gzip member.
func NewGzip(level int, parallel bool) *GzipCompressor {
	return &GzipCompressor{level: level, parallel: parallel}
}

func (g *GzipCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	if g.parallel {
		gz, err := pgzip.NewWriterLevel(w, g.level)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgzip writer: %w", err)
		}
		return gz, nil
	}

	gz, err := gzip.NewWriterLevel(w, g.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	return gz, nil
}
