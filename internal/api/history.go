package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/skybridge-obs/skybridge-core/internal/history"
	"github.com/skybridge-obs/skybridge-core/internal/telescope"
)

const maxHistoryLimit = 200

// handleListHistory returns recent history events, newest first.
//
// Query parameters:
//   - slot: filter by slot number
//   - kind: filter by event kind (telescope_connected, goto, ...)
//   - limit: maximum entries (default 50, max 200)
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "event history unavailable")
		return
	}

	var f history.Filter

	if slotStr := r.URL.Query().Get("slot"); slotStr != "" {
		slot, err := strconv.Atoi(slotStr)
		if err != nil || slot < telescope.MinSlot || slot > telescope.MaxSlot {
			writeBadRequest(w, "slot must be a number between 1 and 9")
			return
		}
		f.Slot = slot
	}

	f.Kind = r.URL.Query().Get("kind")

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > maxHistoryLimit {
			writeBadRequest(w, fmt.Sprintf("limit must be between 1 and %d", maxHistoryLimit))
			return
		}
		f.Limit = limit
	}

	entries, err := s.history.List(r.Context(), f)
	if err != nil {
		writeInternalError(w, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": entries,
		"count":  len(entries),
	})
}
