package server

import (
	"net/http"

	"github.com/plexgate/plexgate/internal/codec"
)

// handleHealth reports process readiness, including whether the credential
// store loaded. Never requires the API key.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.credErr != nil {
		codec.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "degraded",
			"config": s.credErr.Error(),
		})
		return
	}
	codec.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
