package mvs

import (
	"context"
	"errors"
)

// SweepResult reports what one decay sweep did, so callers can audit
// storage reclamation.
type SweepResult struct {
	Evaluated  int
	Evicted    int
	Preserved  int
	BytesFreed int64 // uncompressed payload bytes reclaimed
}

// SweepUniverse evaluates every timeline entry of one universe against its
// decay policy at the given simulation tick. An entry with tau =
// currentTick - entry.tick at or past its threshold is evicted: blob first,
// then index row. Entries marked neverDecay are skipped unconditionally.
//
// A failure to delete one entry's blob is logged and the entry is kept for
// retry on the next sweep; the sweep itself continues. A sweep over an empty
// timeline is a no-op.
func (s *Service) SweepUniverse(ctx context.Context, universeID string, currentTick int64) (*SweepResult, error) {
	if universeID == "" {
		return nil, InvalidRequestf("universe id is required")
	}

	unlock := s.locks.acquire(universeID)
	defer unlock()

	u, err := s.db.GetUniverse(ctx, universeID)
	if err != nil {
		return nil, err
	}
	entries, err := s.db.GetTimeline(ctx, universeID)
	if err != nil {
		return nil, err
	}

	res := &SweepResult{}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, IOFailuref("universe", universeID, err, "sweep canceled after %d evictions", res.Evicted)
		}

		res.Evaluated++
		if e.Decay.NeverDecay {
			res.Preserved++
			continue
		}
		tau := currentTick - e.Tick
		if tau < e.Decay.DecayAfterTicks {
			res.Preserved++
			continue
		}

		if err := s.vault.Delete(ctx, e.StorageKey); err != nil && !errors.Is(err, ErrNotFound) {
			// Keep the index entry so the next sweep retries the blob.
			s.logger.Warn("sweep could not delete blob, keeping entry for retry",
				"universe", universeID, "tick", e.Tick, "key", e.StorageKey, "err", err)
			res.Preserved++
			continue
		}
		if err := s.db.DeleteEntry(ctx, universeID, e.Tick); err != nil {
			s.logger.Error("sweep deleted blob but could not remove entry",
				"universe", universeID, "tick", e.Tick, "err", err)
			res.Preserved++
			continue
		}

		res.Evicted++
		res.BytesFreed += e.ByteSize
	}

	if res.Evicted > 0 {
		total, canonical, err := s.db.CountEntries(ctx, universeID)
		if err != nil {
			return nil, err
		}
		u.SnapshotCount = total
		u.CanonicalEventCount = canonical
		if err := s.db.UpdateUniverse(ctx, u); err != nil {
			return nil, err
		}
	}

	s.logger.Info("decay sweep complete", "universe", universeID,
		"current_tick", currentTick, "evaluated", res.Evaluated,
		"evicted", res.Evicted, "preserved", res.Preserved,
		"bytes_freed", res.BytesFreed)
	return res, nil
}
