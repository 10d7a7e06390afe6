package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/plexgate/plexgate/internal/codec"
	"github.com/plexgate/plexgate/internal/config"
	"github.com/plexgate/plexgate/internal/metrics"
	"github.com/plexgate/plexgate/internal/upstream"
	"github.com/plexgate/plexgate/internal/usage"
)

// maxBodyBytes limits the size of incoming request bodies. Attachments can
// be large, so this is well above a typical JSON search request.
const maxBodyBytes = 50 * 1024 * 1024

// Server is the main HTTP server.
type Server struct {
	Config *config.ServerConfig
	Usage  *usage.Tracker

	// creds is nil and credErr set when startup configuration was
	// malformed; every non-health request then answers with a
	// configuration error while /health keeps reporting the failure.
	creds   *config.Credentials
	credErr error

	searcher upstream.Searcher
	accounts upstream.AccountCreator
	metrics  *metrics.Metrics

	httpServer *http.Server
}

// New creates a server with all routes registered. Credential loading
// happens here, once; a failure is retained rather than fatal so the
// liveness probe stays meaningful.
func New(cfg *config.ServerConfig) *Server {
	tracker := usage.NewTracker()

	s := &Server{
		Config:  cfg,
		Usage:   tracker,
		metrics: metrics.New(),
	}

	creds, err := config.LoadCredentials()
	if err != nil {
		s.credErr = err
	} else {
		s.creds = creds
		client := upstream.NewClient(creds.ProviderCookies, creds.EmailCookies, tracker, cfg.Verbose)
		s.searcher = client
		s.accounts = client
	}

	s.buildHTTPServer()
	return s
}

// newForTest wires a server around fake credentials and a fake downstream,
// skipping the environment entirely.
func newForTest(cfg *config.ServerConfig, creds *config.Credentials, credErr error, searcher upstream.Searcher, accounts upstream.AccountCreator) *Server {
	s := &Server{
		Config:   cfg,
		Usage:    usage.NewTracker(),
		creds:    creds,
		credErr:  credErr,
		searcher: searcher,
		accounts: accounts,
		metrics:  metrics.New(),
	}
	s.buildHTTPServer()
	return s
}

func (s *Server) buildHTTPServer() {
	mux := http.NewServeMux()

	// Liveness and scraping, exempt from auth.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	// Search surface; both historical route variants stay served.
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /v1/search", s.handleSearch)
	mux.HandleFunc("POST /v1/search/upload", s.handleSearchUpload)

	// Session provisioning and informational routes.
	mux.HandleFunc("POST /v1/account", s.handleAccount)
	mux.HandleFunc("GET /v1/models", s.handleModels)
	mux.HandleFunc("GET /v1/usage", s.handleUsage)

	mux.HandleFunc("OPTIONS /", s.handleOptions)

	handler := corsMiddleware(s.configMiddleware(s.authMiddleware(s.verboseMiddleware(s.metricsMiddleware(mux)))))

	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// readBody reads a bounded request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		codec.WriteError(w, codec.Validation("", "Failed to read request body"))
		return nil, false
	}
	return body, true
}
