package mvs

import (
	"bytes"
	"context"
	"fmt"

	"mvs-go/internal/model"
)

// PayloadEncoding states how the payload bytes in an append request are
// encoded. Guessing is forbidden: a caller uploading pre-compressed data
// must say so.
type PayloadEncoding string

const (
	// PayloadRaw is an uncompressed payload; the store compresses it.
	PayloadRaw PayloadEncoding = "raw"
	// PayloadGzip is a payload the caller already gzip-compressed.
	PayloadGzip PayloadEncoding = "gzip"
)

// AppendSnapshotRequest carries one snapshot from the simulation boundary.
type AppendSnapshotRequest struct {
	UniverseID string
	Tick       int64
	Day        int64
	Kind       model.SnapshotKind // defaults to auto
	Event      *model.CanonicalEvent
	Decay      *model.DecayPolicy // defaults by kind when nil
	Payload    []byte
	Encoding   PayloadEncoding // defaults to raw
}

// AppendSnapshot records one snapshot on a universe's timeline. The blob is
// written durably to the vault before the index entry is published, so a
// failed append can leave an orphaned blob but never a dangling or partial
// entry.
func (s *Service) AppendSnapshot(ctx context.Context, req AppendSnapshotRequest) (*model.TimelineEntry, error) {
	if req.UniverseID == "" {
		return nil, InvalidRequestf("universe id is required")
	}
	if len(req.Payload) == 0 {
		return nil, InvalidRequestf("snapshot payload is required")
	}
	if req.Tick < 0 {
		return nil, InvalidRequestf("tick %d is negative", req.Tick)
	}

	kind := req.Kind
	if kind == "" {
		kind = model.SnapshotAuto
	}
	if !model.ValidSnapshotKind(kind) {
		return nil, InvalidRequestf("unknown snapshot kind %q", kind)
	}
	if req.Event != nil && kind != model.SnapshotCanonical {
		return nil, InvalidRequestf("canonical event descriptor requires kind %q, got %q", model.SnapshotCanonical, kind)
	}

	decay, err := s.resolveDecay(req.Decay, kind)
	if err != nil {
		return nil, err
	}

	// The universe must exist before any blob lands in the vault.
	if _, err := s.db.GetUniverse(ctx, req.UniverseID); err != nil {
		return nil, err
	}

	blob, err := s.encodePayload(req.Payload, req.Encoding)
	if err != nil {
		return nil, err
	}

	key := s.storageKey(req.UniverseID, kind, req.Tick)
	if err := s.vault.Put(ctx, key, bytes.NewReader(blob.Frame), int64(len(blob.Frame))); err != nil {
		return nil, err
	}

	unlock := s.locks.acquire(req.UniverseID)
	defer unlock()

	// A deadline hit during the blob write leaves the timeline untouched;
	// check before publishing the entry.
	if err := ctx.Err(); err != nil {
		return nil, IOFailuref("snapshot", req.UniverseID, err, "append canceled before publish")
	}

	u, err := s.db.GetUniverse(ctx, req.UniverseID)
	if err != nil {
		return nil, err
	}

	entry := &model.TimelineEntry{
		UniverseID: req.UniverseID,
		Tick:       req.Tick,
		RecordedAt: s.clock.Now(),
		Day:        req.Day,
		Kind:       kind,
		Event:      req.Event,
		StorageKey: key,
		ByteSize:   blob.ByteSize,
		Checksum:   blob.Checksum,
		Decay:      decay,
	}
	if err := s.db.AppendEntry(ctx, entry); err != nil {
		// The staged blob is orphaned, never referenced; a separate sweep of
		// unreferenced keys can reclaim it.
		s.logger.Debug("append failed after blob write", "universe", req.UniverseID, "tick", req.Tick, "key", key)
		return nil, err
	}

	u.LastSnapshotAt = entry.RecordedAt
	u.SnapshotCount++
	if kind == model.SnapshotCanonical {
		u.CanonicalEventCount++
	}
	if err := s.db.UpdateUniverse(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Debug("snapshot appended", "universe", req.UniverseID, "tick", req.Tick, "kind", string(kind), "bytes", entry.ByteSize)
	return entry, nil
}

// resolveDecay validates an explicit policy or derives the default: canonical
// entries never decay, others get the configured tick threshold.
func (s *Service) resolveDecay(p *model.DecayPolicy, kind model.SnapshotKind) (model.DecayPolicy, error) {
	if p == nil {
		if kind == model.SnapshotCanonical {
			return model.DecayPolicy{NeverDecay: true, Reason: "canonical event"}, nil
		}
		return model.DecayPolicy{DecayAfterTicks: s.defaultDecayTicks}, nil
	}
	if p.NeverDecay {
		return model.DecayPolicy{NeverDecay: true, Reason: p.Reason}, nil
	}
	if p.DecayAfterTicks <= 0 {
		return model.DecayPolicy{}, InvalidRequestf("decay policy requires a positive decayAfterTicks or neverDecay")
	}
	if p.Reason != "" {
		return model.DecayPolicy{}, InvalidRequestf("decay reason is only valid with neverDecay")
	}
	return *p, nil
}

func (s *Service) encodePayload(payload []byte, enc PayloadEncoding) (*Blob, error) {
	switch enc {
	case PayloadRaw, "":
		return s.codec.Encode(payload)
	case PayloadGzip:
		return s.codec.EncodeCompressed(payload)
	default:
		return nil, InvalidRequestf("unknown payload encoding %q", enc)
	}
}

// storageKey builds a fresh vault key for a snapshot. Canonical entries are
// segregated into their own sub-area since they are permanent.
func (s *Service) storageKey(universeID string, kind model.SnapshotKind, tick int64) string {
	area := "snapshots"
	if kind == model.SnapshotCanonical {
		area = "canonical"
	}
	return fmt.Sprintf("%s/%s/%d-%s", universeID, area, tick, s.idgen.New())
}

// GetTimeline returns a universe's timeline ordered by tick.
func (s *Service) GetTimeline(ctx context.Context, universeID string) ([]*model.TimelineEntry, error) {
	if universeID == "" {
		return nil, InvalidRequestf("universe id is required")
	}
	if _, err := s.db.GetUniverse(ctx, universeID); err != nil {
		return nil, err
	}
	return s.db.GetTimeline(ctx, universeID)
}

// ListCanonicalEvents returns the canonical entries of a universe's timeline.
func (s *Service) ListCanonicalEvents(ctx context.Context, universeID string) ([]*model.TimelineEntry, error) {
	if universeID == "" {
		return nil, InvalidRequestf("universe id is required")
	}
	if _, err := s.db.GetUniverse(ctx, universeID); err != nil {
		return nil, err
	}
	return s.db.ListCanonicalEntries(ctx, universeID)
}

// LoadSnapshotAtTick returns the payload recorded at exactly the given tick,
// decompressed and checksum-verified, along with its timeline entry.
func (s *Service) LoadSnapshotAtTick(ctx context.Context, universeID string, tick int64) ([]byte, *model.TimelineEntry, error) {
	if universeID == "" {
		return nil, nil, InvalidRequestf("universe id is required")
	}
	if _, err := s.db.GetUniverse(ctx, universeID); err != nil {
		return nil, nil, err
	}
	entry, err := s.db.GetEntry(ctx, universeID, tick)
	if err != nil {
		return nil, nil, err
	}
	payload, err := s.loadEntryPayload(ctx, entry)
	if err != nil {
		return nil, nil, err
	}
	return payload, entry, nil
}

// LoadLatestSnapshot returns the payload and entry with the maximum tick.
func (s *Service) LoadLatestSnapshot(ctx context.Context, universeID string) ([]byte, *model.TimelineEntry, error) {
	if universeID == "" {
		return nil, nil, InvalidRequestf("universe id is required")
	}
	if _, err := s.db.GetUniverse(ctx, universeID); err != nil {
		return nil, nil, err
	}
	entry, err := s.db.LatestEntry(ctx, universeID)
	if err != nil {
		return nil, nil, err
	}
	payload, err := s.loadEntryPayload(ctx, entry)
	if err != nil {
		return nil, nil, err
	}
	return payload, entry, nil
}

func (s *Service) loadEntryPayload(ctx context.Context, entry *model.TimelineEntry) ([]byte, error) {
	var frame bytes.Buffer
	if err := s.vault.Get(ctx, entry.StorageKey, &frame); err != nil {
		return nil, err
	}
	return s.codec.Decode(frame.Bytes(), entry.Checksum)
}
