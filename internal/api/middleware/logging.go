package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggingConfig holds configuration for logging middleware
type LoggingConfig struct {
	AccessLogger *zerolog.Logger // Optional separate access logger
	SkipPaths    []string        // Paths to skip logging (e.g., /health)
}

// Logging middleware logs HTTP requests and responses
func Logging(cfg LoggingConfig) func(http.Handler) http.Handler {
	logger := log.Logger
	if cfg.AccessLogger != nil {
		logger = *cfg.AccessLogger
	}

	skipMap := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skipMap[path] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipMap[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			path := r.URL.Path
			if raw := r.URL.RawQuery; raw != "" {
				path = path + "?" + raw
			}
			requestID := GetRequestID(r.Context())

			log.Debug().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", path).
				Str("ip", r.RemoteAddr).
				Msg("→ Request started")

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			// WARN for 4xx, ERROR for 5xx
			event := logger.Info()
			if status >= 500 {
				event = logger.Error()
			} else if status >= 400 {
				event = logger.Warn()
			}

			event.
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", path).
				Int("status", status).
				Int64("duration_ms", duration.Milliseconds()).
				Int("response_size", ww.BytesWritten()).
				Str("ip", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("← Request completed")

			if duration > time.Second {
				log.Warn().
					Str("request_id", requestID).
					Str("method", r.Method).
					Str("path", path).
					Int64("duration_ms", duration.Milliseconds()).
					Msg("⚠️  Slow request detected")
			}
		})
	}
}

// Recovery middleware with logging
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			requestID := GetRequestID(r.Context())
			log.Error().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Interface("panic", rec).
				Msg("🚨 Panic recovered")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{
					"code":       "INTERNAL_SERVER_ERROR",
					"message":    "Internal server error",
					"request_id": requestID,
				},
			})
		}()

		next.ServeHTTP(w, r)
	})
}
