package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/plexgate/plexgate/internal/codec"
)

const invalidAPIKeyError = "Invalid or missing API key"

// openRoutes never require credentials or an API key.
func openRoute(path string) bool {
	return path == "/health" || path == "/metrics"
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqHeaders := r.Header.Get("Access-Control-Request-Headers")
		if reqHeaders == "" {
			reqHeaders = "Authorization, Content-Type, Accept, X-Api-Key"
		}
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// configMiddleware turns a failed credential load into a stable 500 on
// every route that depends on credentials, leaving /health and /metrics
// reachable.
func (s *Server) configMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.credErr != nil && !openRoute(r.URL.Path) {
			codec.WriteError(w, codec.Configuration(s.credErr.Error()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the client-supplied API key against the configured
// secret. The key arrives in a dedicated header or as a bearer token;
// comparison is constant-time.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if openRoute(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		provided := clientAPIKey(r)
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(s.creds.APIKey)) != 1 {
			codec.WriteError(w, codec.Authorization(invalidAPIKeyError))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientAPIKey extracts the key from x-api-key or a bearer Authorization
// header. The dedicated header wins when both are present.
func clientAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("x-api-key")); key != "" {
		return key
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.Fields(header)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

func (s *Server) verboseMiddleware(next http.Handler) http.Handler {
	if !s.Config.Verbose {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Info("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.metrics.ObserveRequest(r.URL.Path, strconv.Itoa(rec.status), time.Since(start).Seconds())
	})
}
