package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/skybridge-obs/skybridge-core/internal/history"
	"github.com/skybridge-obs/skybridge-core/internal/protocol"
	"github.com/skybridge-obs/skybridge-core/internal/telescope"
	"github.com/skybridge-obs/skybridge-core/internal/transport"
)

// slotParam extracts the slot URL parameter. A non-numeric or
// out-of-range slot is a client error.
func slotParam(r *http.Request) (int, bool) {
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil {
		return 0, false
	}
	if slot < telescope.MinSlot || slot > telescope.MaxSlot {
		return 0, false
	}
	return slot, true
}

// handleListTelescopes returns every occupied slot with its live status.
func (s *Server) handleListTelescopes(w http.ResponseWriter, _ *http.Request) {
	views := s.registry.Slots()
	writeJSON(w, http.StatusOK, map[string]any{
		"telescopes": views,
		"count":      len(views),
	})
}

// handleGetTelescope returns one slot's description, status and last
// known position.
func (s *Server) handleGetTelescope(w http.ResponseWriter, r *http.Request) {
	slot, ok := slotParam(r)
	if !ok {
		writeBadRequest(w, "slot must be a number between 1 and 9")
		return
	}

	view, ok := s.registry.SlotAt(slot)
	if !ok {
		writeNotFound(w, "no telescope at this slot")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handlePutTelescope validates and stores a description at a slot,
// replacing whatever was there, then persists the mapping. A live
// transport at the slot keeps running with its old settings until
// restarted.
func (s *Server) handlePutTelescope(w http.ResponseWriter, r *http.Request) {
	slot, ok := slotParam(r)
	if !ok {
		writeBadRequest(w, "slot must be a number between 1 and 9")
		return
	}

	var d telescope.Description
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	// An omitted port falls back to the slot convention before
	// validation so the range check applies to the effective value.
	if d.Port == 0 && (d.Kind == transport.KindLocal || d.Kind == transport.KindRemote) {
		d.Port = telescope.DefaultPort(slot)
	}

	if err := d.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.registry.Add(slot, d); err != nil {
		writeRegistryError(w, err)
		return
	}
	if err := s.registry.Persist(); err != nil {
		writeRegistryError(w, err)
		return
	}

	view, _ := s.registry.SlotAt(slot)
	writeJSON(w, http.StatusOK, view)
}

// handleDeleteTelescope stops the slot if active, removes its stored
// description and persists the mapping.
func (s *Server) handleDeleteTelescope(w http.ResponseWriter, r *http.Request) {
	slot, ok := slotParam(r)
	if !ok {
		writeBadRequest(w, "slot must be a number between 1 and 9")
		return
	}

	if _, ok := s.registry.SlotAt(slot); !ok {
		writeNotFound(w, "no telescope at this slot")
		return
	}

	if s.registry.IsActive(slot) {
		if err := s.registry.Stop(slot); err != nil && !errors.Is(err, telescope.ErrStopUnconfirmed) {
			writeRegistryError(w, err)
			return
		}
		// An unconfirmed stop still removed the bookkeeping; the
		// description removal proceeds.
	}

	if err := s.registry.Remove(slot); err != nil {
		writeRegistryError(w, err)
		return
	}
	if err := s.registry.Persist(); err != nil {
		writeRegistryError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleStartTelescope brings a slot up.
func (s *Server) handleStartTelescope(w http.ResponseWriter, r *http.Request) {
	slot, ok := slotParam(r)
	if !ok {
		writeBadRequest(w, "slot must be a number between 1 and 9")
		return
	}

	if err := s.registry.Start(slot); err != nil {
		writeRegistryError(w, err)
		return
	}

	view, _ := s.registry.SlotAt(slot)
	writeJSON(w, http.StatusOK, view)
}

// handleStopTelescope takes a slot down. Stopping an inactive slot is
// a no-op, mirroring the registry semantics.
func (s *Server) handleStopTelescope(w http.ResponseWriter, r *http.Request) {
	slot, ok := slotParam(r)
	if !ok {
		writeBadRequest(w, "slot must be a number between 1 and 9")
		return
	}

	if err := s.registry.Stop(slot); err != nil {
		writeRegistryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"slot":   slot,
		"active": s.registry.IsActive(slot),
	})
}

// handleGoto queues a goto command for the slot's next communication
// tick. The body carries either a unit vector or RA/dec angles.
func (s *Server) handleGoto(w http.ResponseWriter, r *http.Request) {
	s.handleCommand(w, r, history.KindGoto, s.registry.Slew)
}

// handleSync tells a connected mount that its current pointing equals
// the given direction. Transports that cannot express sync report 502.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	s.handleCommand(w, r, history.KindSync, s.registry.Sync)
}

// handleCommand is the shared goto/sync path: parse slot and direction,
// dispatch into the registry, record the command in history.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request, kind string, dispatch func(int, protocol.Vec3) error) {
	slot, ok := slotParam(r)
	if !ok {
		writeBadRequest(w, "slot must be a number between 1 and 9")
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeBadRequest(w, "reading request body")
		return
	}
	direction, err := telescope.ParseDirection(body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := dispatch(slot, direction); err != nil {
		writeRegistryError(w, err)
		return
	}

	s.recordCommand(r, kind, slot, direction)

	ra, dec := direction.RADec()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"slot":        slot,
		"ra_hours":    ra,
		"dec_degrees": dec,
	})
}

// handleStopAll stops every active slot. The response reports whether
// every stop was clean; the registry holds no live transports either way.
func (s *Server) handleStopAll(w http.ResponseWriter, _ *http.Request) {
	clean := s.registry.StopAll()
	writeJSON(w, http.StatusOK, map[string]any{
		"clean": clean,
	})
}

// handleDeleteAll stops everything, clears all stored descriptions and
// persists the empty mapping: the full reset.
func (s *Server) handleDeleteAll(w http.ResponseWriter, _ *http.Request) {
	s.registry.DeleteAll()
	if err := s.registry.Persist(); err != nil {
		writeRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recordCommand writes an issued command to the event history. History
// failures never fail the command.
func (s *Server) recordCommand(r *http.Request, kind string, slot int, direction protocol.Vec3) {
	if s.history == nil {
		return
	}

	name := ""
	if d, ok := s.registry.DescriptionAt(slot); ok {
		name = d.Name
	}
	ra, dec := direction.RADec()

	e := history.Entry{
		Slot: slot,
		Kind: kind,
		Name: name,
		Detail: map[string]any{
			"ra_hours":    ra,
			"dec_degrees": dec,
		},
	}
	if err := s.history.Record(r.Context(), &e); err != nil {
		s.logger.Warn("history write failed", "kind", kind, "slot", slot, "error", err)
	}
}

// readBody reads the request body, bounded upstream by the body size
// middleware.
func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close() //nolint:errcheck // Read side close
	return io.ReadAll(r.Body)
}
