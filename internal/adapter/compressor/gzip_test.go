package compressor

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func roundTrip(data []byte) []byte {
	r, err := gzip.NewReader(bytes.NewReader(data))
	So(err, ShouldBeNil)
	defer r.Close()

	out, err := io.ReadAll(r)
	So(err, ShouldBeNil)
	return out
}

func TestGzipCompressor(t *testing.T) {
	Convey("Given a GzipCompressor", t, func() {
		dump := []byte(strings.Repeat("INSERT INTO orders VALUES (1, 'pending');\n", 500))

		for _, parallel := range []bool{false, true} {
			compressor := NewGzip(6, parallel)
			var buf bytes.Buffer

			w, err := compressor.NewWriter(&buf)
			So(err, ShouldBeNil)
			_, err = w.Write(dump)
			So(err, ShouldBeNil)
			So(w.Close(), ShouldBeNil)

			So(buf.Len(), ShouldBeGreaterThan, 2)
			So(buf.Bytes()[:2], ShouldResemble, []byte{0x1f, 0x8b})
			So(buf.Len(), ShouldBeLessThan, len(dump))
			So(roundTrip(buf.Bytes()), ShouldResemble, dump)
		}

		Convey("When the stream is empty", func() {
			var buf bytes.Buffer
			w, err := NewGzip(9, false).NewWriter(&buf)
			So(err, ShouldBeNil)
			So(w.Close(), ShouldBeNil)

			Convey("It should still produce a valid gzip member", func() {
				So(buf.Bytes()[:2], ShouldResemble, []byte{0x1f, 0x8b})
				So(roundTrip(buf.Bytes()), ShouldBeEmpty)
			})
		})

		Convey("When the level is invalid", func() {
			_, err := NewGzip(42, false).NewWriter(io.Discard)
			_, perr := NewGzip(42, true).NewWriter(io.Discard)

			Convey("It should return an error for both encoders", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "failed to create gzip writer")
				So(perr, ShouldNotBeNil)
				So(perr.Error(), ShouldContainSubstring, "failed to create pgzip writer")
			})
		})
	})
}
