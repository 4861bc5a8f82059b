package mvs

import (
	"context"
	"time"

	"mvs-go/internal/model"
)

// CreatePassageRequest carries a new directed connection between universes.
// ID is optional; one is generated when blank. Stability defaults to 100.
type CreatePassageRequest struct {
	ID               string
	SourceUniverseID string
	TargetUniverseID string
	Type             model.PassageType
	CreatedBy        string
	Stability        *int
}

// CreatePassage links two existing universes. Self-loops and multiple
// passages between the same pair are allowed; directionality is caller
// policy.
func (s *Service) CreatePassage(ctx context.Context, req CreatePassageRequest) (*model.Passage, error) {
	if req.SourceUniverseID == "" || req.TargetUniverseID == "" {
		return nil, InvalidRequestf("passage source and target universe ids are required")
	}
	if !model.ValidPassageType(req.Type) {
		return nil, InvalidRequestf("unknown passage type %q", req.Type)
	}

	stability := 100
	if req.Stability != nil {
		stability = *req.Stability
	}
	if stability < 0 || stability > 100 {
		return nil, InvalidRequestf("passage stability %d is outside 0-100", stability)
	}

	// Both endpoints must exist at creation time.
	if _, err := s.db.GetUniverse(ctx, req.SourceUniverseID); err != nil {
		return nil, err
	}
	if _, err := s.db.GetUniverse(ctx, req.TargetUniverseID); err != nil {
		return nil, err
	}

	id := req.ID
	if id == "" {
		id = s.idgen.New()
	}
	now := s.clock.Now()
	p := &model.Passage{
		ID:               id,
		SourceUniverseID: req.SourceUniverseID,
		TargetUniverseID: req.TargetUniverseID,
		Type:             req.Type,
		Active:           true,
		CreatedBy:        req.CreatedBy,
		CreatedAt:        now,
		Stability:        stability,
		LastMaintainedAt: now,
	}
	if err := s.db.CreatePassage(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("passage created", "passage", p.ID, "source", p.SourceUniverseID,
		"target", p.TargetUniverseID, "type", string(p.Type))
	return p, nil
}

// GetPassage returns a passage by id.
func (s *Service) GetPassage(ctx context.Context, id string) (*model.Passage, error) {
	if id == "" {
		return nil, InvalidRequestf("passage id is required")
	}
	return s.db.GetPassage(ctx, id)
}

// ListPassages returns passages touching the given universe as either
// endpoint, or all passages when universeID is empty.
func (s *Service) ListPassages(ctx context.Context, universeID string) ([]*model.Passage, error) {
	if universeID != "" {
		if _, err := s.db.GetUniverse(ctx, universeID); err != nil {
			return nil, err
		}
	}
	return s.db.ListPassages(ctx, universeID)
}

// UpdatePassageRequest writes back caller-computed maintenance state. The
// store persists stability but never computes its erosion.
type UpdatePassageRequest struct {
	Stability        *int
	LastMaintainedAt *time.Time
}

// UpdatePassage applies a partial maintenance update to a passage.
func (s *Service) UpdatePassage(ctx context.Context, id string, req UpdatePassageRequest) (*model.Passage, error) {
	if id == "" {
		return nil, InvalidRequestf("passage id is required")
	}

	p, err := s.db.GetPassage(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Stability != nil {
		if *req.Stability < 0 || *req.Stability > 100 {
			return nil, InvalidRequestf("passage stability %d is outside 0-100", *req.Stability)
		}
		p.Stability = *req.Stability
	}
	if req.LastMaintainedAt != nil {
		p.LastMaintainedAt = *req.LastMaintainedAt
	}
	if err := s.db.UpdatePassage(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SoftDeletePassage deactivates a passage. The record is preserved forever.
func (s *Service) SoftDeletePassage(ctx context.Context, id string) (*model.Passage, error) {
	if id == "" {
		return nil, InvalidRequestf("passage id is required")
	}

	p, err := s.db.GetPassage(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return p, nil
	}
	p.Active = false
	if err := s.db.UpdatePassage(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("passage soft-deleted", "passage", id)
	return p, nil
}
