// Package unzip decompresses gzip encoded request bodies.
package unzip

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/KretovDmitry/ordermart/pkg/logger"
)

// compressReader implements ReadCloser interface
// and replaces Read method with a decompression one.
type compressReader struct {
	r  io.ReadCloser
	zr *gzip.Reader
}

func newCompressReader(r io.ReadCloser) (*compressReader, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("new gzip reader: %w", err)
	}

	return &compressReader{
		r:  r,
		zr: zr,
	}, nil
}

func (c compressReader) Read(p []byte) (int, error) {
	return c.zr.Read(p)
}

func (c *compressReader) Close() error {
	if err := c.r.Close(); err != nil {
		return fmt.Errorf("close failed: %w", err)
	}
	return c.zr.Close()
}

// sendsGzip reports whether gzip is among the request content codings.
func sendsGzip(r *http.Request) bool {
	for _, coding := range strings.Split(r.Header.Get("Content-Encoding"), ",") {
		if strings.EqualFold(strings.TrimSpace(coding), "gzip") {
			return true
		}
	}
	return false
}

// Middleware decides whether or not to decompress request
// judging by content encoding. A body that is not valid gzip
// is answered with 400 Bad Request.
func Middleware(logger logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		f := func(w http.ResponseWriter, r *http.Request) {
			if sendsGzip(r) {
				cr, err := newCompressReader(r.Body)
				if err != nil {
					logger.With(r.Context()).Warnf("%s %s: %s", r.Method, r.URL.Path, err)
					http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
					return
				}
				defer cr.Close()

				// The decompressed length is unknown.
				r.Body = cr
				r.ContentLength = -1
				r.Header.Del("Content-Encoding")
				r.Header.Del("Content-Length")
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(f)
	}
}
