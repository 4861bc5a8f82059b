package server

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mvs-go/internal/model"
	"mvs-go/internal/mvs"
)

// Snapshot payloads cross the wire base64-encoded. payload_encoding mirrors
// the service's PayloadEncoding: "raw" (default) or "gzip" when the caller
// already compressed the payload.
func (s *Server) handleAppendSnapshot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tick            int64      `json:"tick"`
		Day             int64      `json:"day"`
		Kind            string     `json:"kind"`
		Event           *eventJSON `json:"event"`
		Decay           *decayJSON `json:"decay"`
		Payload         string     `json:"payload"`
		PayloadEncoding string     `json:"payload_encoding"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}

	payload, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		s.writeError(w, mvs.InvalidRequestf("payload is not valid base64: %v", err))
		return
	}

	var decay *model.DecayPolicy
	if req.Decay != nil {
		decay = &model.DecayPolicy{
			DecayAfterTicks: req.Decay.DecayAfterTicks,
			NeverDecay:      req.Decay.NeverDecay,
			Reason:          req.Decay.Reason,
		}
	}

	entry, err := s.svc.AppendSnapshot(r.Context(), mvs.AppendSnapshotRequest{
		UniverseID: chi.URLParam(r, "universeID"),
		Tick:       req.Tick,
		Day:        req.Day,
		Kind:       model.SnapshotKind(req.Kind),
		Event:      req.Event.model(),
		Decay:      decay,
		Payload:    payload,
		Encoding:   mvs.PayloadEncoding(req.PayloadEncoding),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, entryView(entry))
}

func (s *Server) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.GetTimeline(r.Context(), chi.URLParam(r, "universeID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entryViews(entries),
	})
}

func (s *Server) handleListCanonicalEvents(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.ListCanonicalEvents(r.Context(), chi.URLParam(r, "universeID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entryViews(entries),
	})
}

func (s *Server) handleLoadSnapshotAtTick(w http.ResponseWriter, r *http.Request) {
	tick, err := strconv.ParseInt(chi.URLParam(r, "tick"), 10, 64)
	if err != nil {
		s.writeError(w, mvs.InvalidRequestf("invalid tick %q", chi.URLParam(r, "tick")))
		return
	}

	payload, entry, err := s.svc.LoadSnapshotAtTick(r.Context(), chi.URLParam(r, "universeID"), tick)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSnapshot(w, payload, entry)
}

func (s *Server) handleLoadLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	payload, entry, err := s.svc.LoadLatestSnapshot(r.Context(), chi.URLParam(r, "universeID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSnapshot(w, payload, entry)
}

func (s *Server) writeSnapshot(w http.ResponseWriter, payload []byte, entry *model.TimelineEntry) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"entry":   entryView(entry),
		"payload": base64.StdEncoding.EncodeToString(payload),
	})
}
