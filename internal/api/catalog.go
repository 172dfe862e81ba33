package api

import (
	"net/http"

	"github.com/skybridge-obs/skybridge-core/internal/catalog"
)

// handleListModels returns the device model catalog, sorted by name.
func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	var models []catalog.Model
	if s.catalog != nil {
		models = s.catalog.Models()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"models": models,
		"count":  len(models),
	})
}
