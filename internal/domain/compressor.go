package domain

import "io"

// Compressor wraps w so that everything written is compressed. Closing the
// returned writer flushes the compressed stream but does not close w.
type Compressor interface {
	NewWriter(w io.Writer) (io.WriteCloser, error)
}
