package usecase

import (
	"fmt"
	"io"
	"path"
	"time"
)

const keyTimeLayout = "20060102_150405_-0700"

// ObjectKey names the artifact of a run started at t, e.g.
// mydb_20240102_030405_+0000.sql.gz. The offset is taken from t's location.
func ObjectKey(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s.sql.gz", prefix, t.Format(keyTimeLayout))
}

// localName is the workspace file name for key. A prefix may contain
// slashes; only the last element names the local file.
func localName(key string) string {
	return path.Base(key)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func megabytes(n int64) float64 {
	return float64(n) / (1024 * 1024)
}
