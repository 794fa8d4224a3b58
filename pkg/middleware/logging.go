package middleware

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/vaidashi/storefront-api/pkg/logger"
)

// Observer receives the outcome of every request
type Observer func(r *http.Request, status int, elapsed time.Duration)

// RequestLogger logs each request and reports it to observe when set
func RequestLogger(log logger.Logger, observe Observer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newStatusCodeWriter(w)

			next.ServeHTTP(wrapped, r)

			elapsed := time.Since(start)
			if observe != nil {
				observe(r, wrapped.statusCode, elapsed)
			}

			keyvals := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", elapsed,
				"remoteAddr", r.RemoteAddr,
			}
			if wrapped.statusCode >= http.StatusInternalServerError {
				log.Error("Request failed", keyvals...)
				return
			}
			log.Info("Request completed", keyvals...)
		})
	}
}

// Recoverer turns a panicking handler into a 500 response
func Recoverer(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("Handler panicked",
						"panic", rec,
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Timeout bounds the request context
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// statusCodeWriter is a wrapper around http.ResponseWriter that captures the status code
type statusCodeWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func newStatusCodeWriter(w http.ResponseWriter) *statusCodeWriter {
	return &statusCodeWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (w *statusCodeWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusCodeWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}
