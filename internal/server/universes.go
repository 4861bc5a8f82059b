package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mvs-go/internal/mvs"
)

func (s *Server) handleCreateUniverse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      string         `json:"id"`
		Name    string         `json:"name"`
		OwnerID string         `json:"owner_id"`
		Public  bool           `json:"public"`
		Config  map[string]any `json:"config"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}

	u, err := s.svc.CreateUniverse(r.Context(), mvs.CreateUniverseRequest{
		ID:      req.ID,
		Name:    req.Name,
		OwnerID: req.OwnerID,
		Public:  req.Public,
		Config:  req.Config,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, universeView(u))
}

func (s *Server) handleListUniverses(w http.ResponseWriter, r *http.Request) {
	filter := mvs.UniverseFilter{
		OwnerID: r.URL.Query().Get("owner"),
	}
	if p := r.URL.Query().Get("public"); p != "" {
		b, err := strconv.ParseBool(p)
		if err != nil {
			s.writeError(w, mvs.InvalidRequestf("invalid public filter %q", p))
			return
		}
		filter.PublicOnly = b
	}

	us, err := s.svc.ListUniverses(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(us),
		"universes": universeViews(us),
	})
}

func (s *Server) handleGetUniverse(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.GetUniverse(r.Context(), chi.URLParam(r, "universeID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, universeView(u))
}

func (s *Server) handleUpdateUniverse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   *string        `json:"name"`
		Public *bool          `json:"public"`
		Config map[string]any `json:"config"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}

	u, err := s.svc.UpdateUniverse(r.Context(), chi.URLParam(r, "universeID"), mvs.UpdateUniverseRequest{
		Name:   req.Name,
		Public: req.Public,
		Config: req.Config,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, universeView(u))
}

func (s *Server) handleDeleteUniverse(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.SoftDeleteUniverse(r.Context(), chi.URLParam(r, "universeID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, universeView(u))
}

func (s *Server) handleSweepUniverse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentTick int64 `json:"current_tick"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}

	res, err := s.svc.SweepUniverse(r.Context(), chi.URLParam(r, "universeID"), req.CurrentTick)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"evaluated":   res.Evaluated,
		"evicted":     res.Evicted,
		"preserved":   res.Preserved,
		"bytes_freed": res.BytesFreed,
	})
}

func (s *Server) handleForkUniverse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceTick    int64  `json:"source_tick"`
		NewUniverseID string `json:"new_universe_id"`
		OwnerID       string `json:"owner_id"`
		Name          string `json:"name"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}

	u, err := s.svc.ForkUniverse(r.Context(), mvs.ForkUniverseRequest{
		SourceUniverseID: chi.URLParam(r, "universeID"),
		SourceTick:       req.SourceTick,
		NewUniverseID:    req.NewUniverseID,
		OwnerID:          req.OwnerID,
		Name:             req.Name,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, universeView(u))
}

func (s *Server) handleListForks(w http.ResponseWriter, r *http.Request) {
	us, err := s.svc.ListForks(r.Context(), chi.URLParam(r, "universeID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count": len(us),
		"forks": universeViews(us),
	})
}
