package mvs

import (
	"bytes"
	"context"

	"mvs-go/internal/model"
)

// ForkUniverseRequest names the source snapshot and the universe to create
// from it.
type ForkUniverseRequest struct {
	SourceUniverseID string
	SourceTick       int64
	NewUniverseID    string
	OwnerID          string
	Name             string
}

// ForkUniverse creates a new universe seeded from a copy of the source's
// snapshot at exactly SourceTick. There is no nearest-tick fallback: forking
// from unintended state must fail rather than succeed silently. The blob is
// copied under a fresh storage key, so the fork's seed entry survives any
// later decay of the source's entry.
func (s *Service) ForkUniverse(ctx context.Context, req ForkUniverseRequest) (*model.Universe, error) {
	if req.SourceUniverseID == "" || req.NewUniverseID == "" {
		return nil, InvalidRequestf("source and new universe ids are required")
	}
	if req.SourceUniverseID == req.NewUniverseID {
		return nil, InvalidRequestf("universe %s cannot fork into itself", req.SourceUniverseID)
	}
	if req.OwnerID == "" {
		return nil, InvalidRequestf("fork owner id is required")
	}
	if req.Name == "" {
		return nil, InvalidRequestf("fork universe name is required")
	}

	// Read the source entry and its blob under the source's lock so a
	// concurrent sweep cannot evict the entry mid-copy. The raw frame is
	// copied without decoding; checksum and size carry over with it.
	unlockSrc := s.locks.acquire(req.SourceUniverseID)
	src, err := s.db.GetUniverse(ctx, req.SourceUniverseID)
	if err != nil {
		unlockSrc()
		return nil, err
	}
	seed, err := s.db.GetEntry(ctx, req.SourceUniverseID, req.SourceTick)
	if err != nil {
		unlockSrc()
		return nil, err
	}
	var frame bytes.Buffer
	if err := s.vault.Get(ctx, seed.StorageKey, &frame); err != nil {
		unlockSrc()
		return nil, err
	}
	unlockSrc()

	// The seed entry is ordinary history in the new universe: a canonical
	// source entry is recorded as manual (the fork starts with zero
	// canonical events) but keeps its never-decay policy.
	seedKind := seed.Kind
	if seedKind == model.SnapshotCanonical {
		seedKind = model.SnapshotManual
	}

	newKey := s.storageKey(req.NewUniverseID, seedKind, req.SourceTick)
	if err := s.vault.Put(ctx, newKey, bytes.NewReader(frame.Bytes()), int64(frame.Len())); err != nil {
		return nil, err
	}

	unlock := s.locks.acquire(req.NewUniverseID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, IOFailuref("universe", req.NewUniverseID, err, "fork canceled before publish")
	}

	now := s.clock.Now()
	u := &model.Universe{
		ID:        req.NewUniverseID,
		Name:      req.Name,
		OwnerID:   req.OwnerID,
		CreatedAt: now,
		ForkOrigin: &model.ForkOrigin{
			SourceUniverseID: req.SourceUniverseID,
			SourceTick:       req.SourceTick,
		},
		Config: copyConfig(src.Config),
	}
	if err := s.db.CreateUniverse(ctx, u); err != nil {
		return nil, err
	}

	entry := &model.TimelineEntry{
		UniverseID: req.NewUniverseID,
		Tick:       req.SourceTick,
		RecordedAt: now,
		Day:        seed.Day,
		Kind:       seedKind,
		StorageKey: newKey,
		ByteSize:   seed.ByteSize,
		Checksum:   seed.Checksum,
		Decay:      seed.Decay,
	}
	if err := s.db.AppendEntry(ctx, entry); err != nil {
		return nil, err
	}

	u.LastSnapshotAt = now
	u.SnapshotCount = 1
	u.CanonicalEventCount = 0
	if err := s.db.UpdateUniverse(ctx, u); err != nil {
		return nil, err
	}

	if err := s.ensureOwnership(ctx, req.OwnerID, req.NewUniverseID); err != nil {
		return nil, err
	}

	s.logger.Info("universe forked", "source", req.SourceUniverseID,
		"tick", req.SourceTick, "fork", req.NewUniverseID, "owner", req.OwnerID)
	return u, nil
}

// ListForks returns every universe forked from the given source, across all
// source ticks.
func (s *Service) ListForks(ctx context.Context, universeID string) ([]*model.Universe, error) {
	if universeID == "" {
		return nil, InvalidRequestf("universe id is required")
	}
	if _, err := s.db.GetUniverse(ctx, universeID); err != nil {
		return nil, err
	}
	return s.db.ListForks(ctx, universeID)
}

func copyConfig(cfg map[string]any) map[string]any {
	if cfg == nil {
		return nil
	}
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		out[k] = v
	}
	return out
}
