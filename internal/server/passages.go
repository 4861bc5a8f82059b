package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mvs-go/internal/model"
	"mvs-go/internal/mvs"
)

func (s *Server) handleCreatePassage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID               string `json:"id"`
		SourceUniverseID string `json:"source_universe_id"`
		TargetUniverseID string `json:"target_universe_id"`
		Type             string `json:"type"`
		CreatedBy        string `json:"created_by"`
		Stability        *int   `json:"stability"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}

	p, err := s.svc.CreatePassage(r.Context(), mvs.CreatePassageRequest{
		ID:               req.ID,
		SourceUniverseID: req.SourceUniverseID,
		TargetUniverseID: req.TargetUniverseID,
		Type:             model.PassageType(req.Type),
		CreatedBy:        req.CreatedBy,
		Stability:        req.Stability,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, passageView(p))
}

func (s *Server) handleListPassages(w http.ResponseWriter, r *http.Request) {
	ps, err := s.svc.ListPassages(r.Context(), r.URL.Query().Get("universe"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]passageJSON, len(ps))
	for i, p := range ps {
		out[i] = passageView(p)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(out),
		"passages": out,
	})
}

func (s *Server) handleGetPassage(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetPassage(r.Context(), chi.URLParam(r, "passageID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, passageView(p))
}

func (s *Server) handleUpdatePassage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stability        *int       `json:"stability"`
		LastMaintainedAt *time.Time `json:"last_maintained_at"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}

	p, err := s.svc.UpdatePassage(r.Context(), chi.URLParam(r, "passageID"), mvs.UpdatePassageRequest{
		Stability:        req.Stability,
		LastMaintainedAt: req.LastMaintainedAt,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, passageView(p))
}

func (s *Server) handleDeletePassage(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.SoftDeletePassage(r.Context(), chi.URLParam(r, "passageID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, passageView(p))
}

func (s *Server) handleRegisterPlayer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"display_name"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}

	p, err := s.svc.RegisterOrUpdatePlayer(r.Context(), chi.URLParam(r, "playerID"), req.DisplayName)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, playerView(p))
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetPlayer(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, playerView(p))
}

func (s *Server) handlePlayerUniverses(w http.ResponseWriter, r *http.Request) {
	ids, err := s.svc.GetPlayerUniverses(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(ids),
		"universes": ids,
	})
}
