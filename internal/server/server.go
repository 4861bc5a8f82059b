package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mvs-go/internal/mvs"
)

// Server is the snapshot store HTTP API server.
type Server struct {
	svc     *mvs.Service
	logger  mvs.Logger
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server backed by the given service.
func New(svc *mvs.Service, logger mvs.Logger, version string) *Server {
	if logger == nil {
		logger = mvs.NewNopLogger()
	}
	s := &Server{
		svc:     svc,
		logger:  logger,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/universes", s.handleCreateUniverse)
		r.Get("/universes", s.handleListUniverses)
		r.Get("/universes/{universeID}", s.handleGetUniverse)
		r.Patch("/universes/{universeID}", s.handleUpdateUniverse)
		r.Delete("/universes/{universeID}", s.handleDeleteUniverse)

		r.Get("/universes/{universeID}/timeline", s.handleGetTimeline)
		r.Get("/universes/{universeID}/events", s.handleListCanonicalEvents)
		r.Post("/universes/{universeID}/snapshots", s.handleAppendSnapshot)
		r.Get("/universes/{universeID}/snapshots/latest", s.handleLoadLatestSnapshot)
		r.Get("/universes/{universeID}/snapshots/{tick}", s.handleLoadSnapshotAtTick)
		r.Post("/universes/{universeID}/sweep", s.handleSweepUniverse)

		r.Post("/universes/{universeID}/forks", s.handleForkUniverse)
		r.Get("/universes/{universeID}/forks", s.handleListForks)

		r.Post("/passages", s.handleCreatePassage)
		r.Get("/passages", s.handleListPassages)
		r.Get("/passages/{passageID}", s.handleGetPassage)
		r.Patch("/passages/{passageID}", s.handleUpdatePassage)
		r.Delete("/passages/{passageID}", s.handleDeletePassage)

		r.Put("/players/{playerID}", s.handleRegisterPlayer)
		r.Get("/players/{playerID}", s.handleGetPlayer)
		r.Get("/players/{playerID}/universes", s.handlePlayerUniverses)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the store's error taxonomy onto HTTP status codes and
// renders the kind alongside the message so clients can branch without
// string matching.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := mvs.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case mvs.KindNotFound:
		status = http.StatusNotFound
	case mvs.KindAlreadyExists:
		status = http.StatusConflict
	case mvs.KindInvalidRequest:
		status = http.StatusBadRequest
	case mvs.KindCorrupt, mvs.KindIOFailure:
		status = http.StatusInternalServerError
	}
	if status >= 500 {
		s.logger.Error("request failed", "kind", string(kind), "error", err)
	}
	s.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	})
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid json: " + err.Error(),
			"kind":  string(mvs.KindInvalidRequest),
		})
		return false
	}
	return true
}
