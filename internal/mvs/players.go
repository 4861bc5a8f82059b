package mvs

import (
	"context"

	"mvs-go/internal/model"
)

// RegisterOrUpdatePlayer upserts a player profile. Creation time is
// preserved on update, last-seen is refreshed, and the display name falls
// back to the player id when blank.
func (s *Service) RegisterOrUpdatePlayer(ctx context.Context, id, displayName string) (*model.PlayerProfile, error) {
	if id == "" {
		return nil, InvalidRequestf("player id is required")
	}

	now := s.clock.Now()
	p, err := s.db.GetPlayer(ctx, id)
	switch {
	case err == nil:
		if displayName != "" {
			p.DisplayName = displayName
		}
		p.LastSeenAt = now
	case KindOf(err) == KindNotFound:
		if displayName == "" {
			displayName = id
		}
		p = &model.PlayerProfile{
			ID:          id,
			DisplayName: displayName,
			CreatedAt:   now,
			LastSeenAt:  now,
		}
	default:
		return nil, err
	}

	if err := s.db.UpsertPlayer(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetPlayer returns a player profile by id.
func (s *Service) GetPlayer(ctx context.Context, id string) (*model.PlayerProfile, error) {
	if id == "" {
		return nil, InvalidRequestf("player id is required")
	}
	return s.db.GetPlayer(ctx, id)
}

// GetPlayerUniverses returns the ids of universes owned by the player, in
// association order. The list is append-only: soft-deleted universes stay.
func (s *Service) GetPlayerUniverses(ctx context.Context, id string) ([]string, error) {
	if id == "" {
		return nil, InvalidRequestf("player id is required")
	}
	return s.db.PlayerUniverses(ctx, id)
}

// RecordUniverseOwnership appends universeID to the player's owned list. It
// is invoked implicitly by CreateUniverse and ForkUniverse and may also be
// called directly by consumers.
func (s *Service) RecordUniverseOwnership(ctx context.Context, playerID, universeID string) error {
	if playerID == "" || universeID == "" {
		return InvalidRequestf("player id and universe id are required")
	}
	if _, err := s.db.GetUniverse(ctx, universeID); err != nil {
		return err
	}
	if _, err := s.db.GetPlayer(ctx, playerID); err != nil {
		return err
	}
	return s.db.AddPlayerUniverse(ctx, playerID, universeID)
}

// ensureOwnership implicitly registers the owner and records the universe in
// their owned list. Used by CreateUniverse and ForkUniverse.
func (s *Service) ensureOwnership(ctx context.Context, ownerID, universeID string) error {
	if _, err := s.RegisterOrUpdatePlayer(ctx, ownerID, ""); err != nil {
		return err
	}
	return s.db.AddPlayerUniverse(ctx, ownerID, universeID)
}
