// Package accesslog provides a middleware that records every request.
package accesslog

import (
	"net/http"
	"time"

	"github.com/KretovDmitry/ordermart/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Request and correlation ID headers.
const (
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
)

// Handler returns a middleware that tags the request context with a request ID
// and logs the method, path, status, size and duration of every request.
func Handler(l logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		f := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(HeaderRequestID)
			if !validID(requestID) {
				requestID = uuid.New().String()
			}
			correlationID := r.Header.Get(HeaderCorrelationID)
			if !validID(correlationID) {
				correlationID = ""
			}

			ctx := logger.WithRequestID(r.Context(), requestID, correlationID)
			r = r.WithContext(ctx)

			w.Header().Set(HeaderRequestID, requestID)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				l.With(ctx,
					"duration", time.Since(start).Milliseconds(),
					"status", status,
					"size", ww.BytesWritten(),
				).Infof("%s %s %s", r.Method, r.URL.Path, r.Proto)
			}()

			next.ServeHTTP(ww, r)
		}

		return http.HandlerFunc(f)
	}
}

// validID accepts up to 128 printable ASCII characters.
func validID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x20 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
