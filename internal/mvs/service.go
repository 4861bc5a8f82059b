package mvs

import (
	"context"
	"strings"

	"mvs-go/internal/model"
)

// DeletedNamePrefix marks soft-deleted universes. The record, its timeline,
// and its blobs are all retained: conservation of game matter.
const DeletedNamePrefix = "[deleted] "

// Service is the store facade. It composes the metadata database, the blob
// vault, and the codec into the universe/snapshot/fork/passage/player
// operations, and owns the per-universe serialization that keeps timeline
// writes from losing entries.
//
// The service never runs background work: every mutation, including decay
// eviction, happens inside a caller-invoked request.
type Service struct {
	db     Database
	vault  BlobVault
	codec  Codec
	logger Logger
	clock  Clock
	idgen  IDGenerator

	// defaultDecayTicks is stamped onto non-canonical entries appended
	// without an explicit policy.
	defaultDecayTicks int64

	locks *universeLocks
}

// NewService creates a Service with the provided dependencies.
func NewService(db Database, vault BlobVault, codec Codec, logger Logger, clock Clock, idgen IDGenerator, defaultDecayTicks int64) *Service {
	return &Service{
		db:                db,
		vault:             vault,
		codec:             codec,
		logger:            logger,
		clock:             clock,
		idgen:             idgen,
		defaultDecayTicks: defaultDecayTicks,
		locks:             newUniverseLocks(),
	}
}

// CreateUniverseRequest carries the caller-supplied universe metadata.
type CreateUniverseRequest struct {
	ID      string
	Name    string
	OwnerID string
	Public  bool
	Config  map[string]any
}

// CreateUniverse registers a new universe with an empty timeline. The owner
// gets a player profile implicitly if they have none, and the universe is
// recorded in their owned list.
func (s *Service) CreateUniverse(ctx context.Context, req CreateUniverseRequest) (*model.Universe, error) {
	if req.ID == "" {
		return nil, InvalidRequestf("universe id is required")
	}
	if req.Name == "" {
		return nil, InvalidRequestf("universe name is required")
	}
	if req.OwnerID == "" {
		return nil, InvalidRequestf("universe owner id is required")
	}

	u := &model.Universe{
		ID:        req.ID,
		Name:      req.Name,
		OwnerID:   req.OwnerID,
		CreatedAt: s.clock.Now(),
		Public:    req.Public,
		Config:    req.Config,
	}
	if err := s.db.CreateUniverse(ctx, u); err != nil {
		return nil, err
	}

	if err := s.ensureOwnership(ctx, req.OwnerID, req.ID); err != nil {
		return nil, err
	}

	s.logger.Info("universe created", "universe", u.ID, "owner", u.OwnerID)
	return u, nil
}

// GetUniverse returns the metadata record for a universe.
func (s *Service) GetUniverse(ctx context.Context, id string) (*model.Universe, error) {
	if id == "" {
		return nil, InvalidRequestf("universe id is required")
	}
	return s.db.GetUniverse(ctx, id)
}

// UpdateUniverseRequest is a partial metadata update; nil fields are left
// unchanged.
type UpdateUniverseRequest struct {
	Name       *string
	Public     *bool
	Config     map[string]any // replaces the config map when non-nil
	ForkOrigin *model.ForkOrigin
}

// UpdateUniverse merges the request into the existing record. A fork origin,
// once set, cannot be changed.
func (s *Service) UpdateUniverse(ctx context.Context, id string, req UpdateUniverseRequest) (*model.Universe, error) {
	if id == "" {
		return nil, InvalidRequestf("universe id is required")
	}

	unlock := s.locks.acquire(id)
	defer unlock()

	u, err := s.db.GetUniverse(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.ForkOrigin != nil {
		if u.ForkOrigin != nil && *u.ForkOrigin != *req.ForkOrigin {
			return nil, InvalidRequestf("universe %s fork origin is immutable once set", id)
		}
		u.ForkOrigin = req.ForkOrigin
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Public != nil {
		u.Public = *req.Public
	}
	if req.Config != nil {
		u.Config = req.Config
	}

	if err := s.db.UpdateUniverse(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ListUniverses returns matching universes ordered by most recent snapshot
// first.
func (s *Service) ListUniverses(ctx context.Context, filter UniverseFilter) ([]*model.Universe, error) {
	return s.db.ListUniverses(ctx, filter)
}

// SoftDeleteUniverse marks a universe deleted by prefixing its display name
// and clearing the public flag. Metadata, timeline, and blobs are retained.
// Deleting an already-deleted universe is a no-op.
func (s *Service) SoftDeleteUniverse(ctx context.Context, id string) (*model.Universe, error) {
	if id == "" {
		return nil, InvalidRequestf("universe id is required")
	}

	unlock := s.locks.acquire(id)
	defer unlock()

	u, err := s.db.GetUniverse(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(u.Name, DeletedNamePrefix) && !u.Public {
		return u, nil
	}

	u.Name = DeletedNamePrefix + strings.TrimPrefix(u.Name, DeletedNamePrefix)
	u.Public = false
	if err := s.db.UpdateUniverse(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("universe soft-deleted", "universe", id)
	return u, nil
}
