package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/plexgate/plexgate/internal/codec"
	"github.com/plexgate/plexgate/internal/config"
	"github.com/plexgate/plexgate/internal/models"
	"github.com/plexgate/plexgate/internal/normalize"
	"github.com/plexgate/plexgate/internal/sse"
	"github.com/plexgate/plexgate/internal/types"
	"github.com/plexgate/plexgate/internal/upstream"
)

// handleSearch handles POST /search and POST /v1/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	req, nerr := normalize.Request(body)
	if nerr != nil {
		codec.WriteError(w, nerr)
		return
	}

	s.dispatch(w, r, req)
}

// handleSearchUpload handles POST /v1/search/upload: the multipart variant
// of the search route, with files supplied as form parts.
func (s *Server) handleSearchUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		codec.WriteError(w, codec.Validation("", "Request body must be a valid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files, nerr := normalize.FilesFromMultipart(r.MultipartForm)
	if nerr != nil {
		codec.WriteError(w, nerr)
		return
	}

	fields := make(map[string]string, len(r.MultipartForm.Value))
	for key, values := range r.MultipartForm.Value {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}

	req, nerr := normalize.FromMultipart(fields, files)
	if nerr != nil {
		codec.WriteError(w, nerr)
		return
	}

	s.dispatch(w, r, req)
}

// dispatch issues the single downstream call for a canonical request and
// transcodes its outcome. The per-request execution budget is enforced
// here; everything before this point is local validation.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *types.CanonicalRequest) {
	if s.Config.Verbose {
		slog.Info("search.request",
			"mode", req.Mode,
			"model", req.Model,
			"sources", req.Sources,
			"stream", req.Stream,
			"incognito", req.Incognito,
			"files", len(req.Files),
			"known_mode", models.KnownMode(req.Mode),
		)
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.Config.RequestTimeout)
	defer cancel()

	outcome, err := s.searcher.Search(ctx, req)
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}

	if outcome.Fragments != nil {
		delivered := sse.WriteStream(ctx, w, outcome.Fragments, sse.Negotiate(r.Header.Get("Accept")))
		s.metrics.AddStreamFragments(delivered)
		return
	}
	sse.WriteResult(w, outcome.Result)
}

// writeDispatchError maps a downstream failure onto the gateway's error
// taxonomy. Headers have not been sent yet on this path.
func (s *Server) writeDispatchError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		s.metrics.ObserveDownstreamError("timeout")
		codec.WriteError(w, codec.Timeout())
		return
	}

	var uerr *upstream.Error
	if errors.As(err, &uerr) {
		s.metrics.ObserveDownstreamError(strconv.Itoa(uerr.StatusCode))
		codec.WriteError(w, &codec.Error{
			Status:  uerr.StatusCode,
			Code:    codec.CodeDownstream,
			Message: uerr.Message,
		})
		return
	}

	s.metrics.ObserveDownstreamError("unknown")
	codec.WriteError(w, &codec.Error{
		Status:  http.StatusBadGateway,
		Code:    codec.CodeDownstream,
		Message: "Search failed: " + err.Error(),
	})
}

// handleAccount handles POST /v1/account: exchanges the configured mail
// cookies for a freshly issued provider session and returns its cookies.
func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	if len(s.creds.EmailCookies) == 0 {
		codec.WriteError(w, codec.Configuration(config.EnvEmailCookies+" environment variable is not set"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.Config.RequestTimeout)
	defer cancel()

	cookies, err := s.accounts.CreateAccount(ctx)
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}
	codec.WriteJSON(w, http.StatusOK, map[string]any{"cookies": cookies})
}

// handleModels handles GET /v1/models.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	codec.WriteJSON(w, http.StatusOK, map[string]any{"modes": models.Catalog})
}

// handleUsage handles GET /v1/usage.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	snap := s.Usage.Last()
	if snap == nil {
		codec.WriteJSON(w, http.StatusOK, map[string]any{"status": "no usage data recorded yet"})
		return
	}
	codec.WriteJSON(w, http.StatusOK, snap)
}
