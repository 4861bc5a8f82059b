package server

import (
	"time"

	"mvs-go/internal/model"
)

// JSON views for the API surface. The model package stays free of wire
// concerns; these translate it.

type forkOriginJSON struct {
	SourceUniverseID string `json:"source_universe_id"`
	SourceTick       int64  `json:"source_tick"`
}

type universeJSON struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	OwnerID             string          `json:"owner_id"`
	CreatedAt           time.Time       `json:"created_at"`
	LastSnapshotAt      *time.Time      `json:"last_snapshot_at,omitempty"`
	SnapshotCount       int64           `json:"snapshot_count"`
	CanonicalEventCount int64           `json:"canonical_event_count"`
	Public              bool            `json:"public"`
	ForkOrigin          *forkOriginJSON `json:"fork_origin,omitempty"`
	Config              map[string]any  `json:"config,omitempty"`
}

func universeView(u *model.Universe) universeJSON {
	v := universeJSON{
		ID:                  u.ID,
		Name:                u.Name,
		OwnerID:             u.OwnerID,
		CreatedAt:           u.CreatedAt,
		SnapshotCount:       u.SnapshotCount,
		CanonicalEventCount: u.CanonicalEventCount,
		Public:              u.Public,
		Config:              u.Config,
	}
	if !u.LastSnapshotAt.IsZero() {
		t := u.LastSnapshotAt
		v.LastSnapshotAt = &t
	}
	if u.ForkOrigin != nil {
		v.ForkOrigin = &forkOriginJSON{
			SourceUniverseID: u.ForkOrigin.SourceUniverseID,
			SourceTick:       u.ForkOrigin.SourceTick,
		}
	}
	return v
}

func universeViews(us []*model.Universe) []universeJSON {
	out := make([]universeJSON, len(us))
	for i, u := range us {
		out[i] = universeView(u)
	}
	return out
}

type decayJSON struct {
	DecayAfterTicks int64  `json:"decay_after_ticks,omitempty"`
	NeverDecay      bool   `json:"never_decay,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

type eventJSON struct {
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Day         int64    `json:"day"`
	Importance  int      `json:"importance"`
	EntityIDs   []string `json:"entity_ids,omitempty"`
}

func eventView(e *model.CanonicalEvent) *eventJSON {
	if e == nil {
		return nil
	}
	return &eventJSON{
		Type:        e.Type,
		Title:       e.Title,
		Description: e.Description,
		Day:         e.Day,
		Importance:  e.Importance,
		EntityIDs:   e.EntityIDs,
	}
}

func (e *eventJSON) model() *model.CanonicalEvent {
	if e == nil {
		return nil
	}
	return &model.CanonicalEvent{
		Type:        e.Type,
		Title:       e.Title,
		Description: e.Description,
		Day:         e.Day,
		Importance:  e.Importance,
		EntityIDs:   e.EntityIDs,
	}
}

type entryJSON struct {
	UniverseID string     `json:"universe_id"`
	Tick       int64      `json:"tick"`
	RecordedAt time.Time  `json:"recorded_at"`
	Day        int64      `json:"day"`
	Kind       string     `json:"kind"`
	Event      *eventJSON `json:"event,omitempty"`
	ByteSize   int64      `json:"byte_size"`
	Checksum   string     `json:"checksum"`
	Decay      decayJSON  `json:"decay"`
}

func entryView(e *model.TimelineEntry) entryJSON {
	return entryJSON{
		UniverseID: e.UniverseID,
		Tick:       e.Tick,
		RecordedAt: e.RecordedAt,
		Day:        e.Day,
		Kind:       string(e.Kind),
		Event:      eventView(e.Event),
		ByteSize:   e.ByteSize,
		Checksum:   e.Checksum,
		Decay: decayJSON{
			DecayAfterTicks: e.Decay.DecayAfterTicks,
			NeverDecay:      e.Decay.NeverDecay,
			Reason:          e.Decay.Reason,
		},
	}
}

func entryViews(es []*model.TimelineEntry) []entryJSON {
	out := make([]entryJSON, len(es))
	for i, e := range es {
		out[i] = entryView(e)
	}
	return out
}

type passageJSON struct {
	ID               string    `json:"id"`
	SourceUniverseID string    `json:"source_universe_id"`
	TargetUniverseID string    `json:"target_universe_id"`
	Type             string    `json:"type"`
	Active           bool      `json:"active"`
	CreatedBy        string    `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
	Stability        int       `json:"stability"`
	LastMaintainedAt time.Time `json:"last_maintained_at"`
}

func passageView(p *model.Passage) passageJSON {
	return passageJSON{
		ID:               p.ID,
		SourceUniverseID: p.SourceUniverseID,
		TargetUniverseID: p.TargetUniverseID,
		Type:             string(p.Type),
		Active:           p.Active,
		CreatedBy:        p.CreatedBy,
		CreatedAt:        p.CreatedAt,
		Stability:        p.Stability,
		LastMaintainedAt: p.LastMaintainedAt,
	}
}

type playerJSON struct {
	ID            string    `json:"id"`
	DisplayName   string    `json:"display_name"`
	CreatedAt     time.Time `json:"created_at"`
	LastSeenAt    time.Time `json:"last_seen_at"`
	UniverseCount int64     `json:"universe_count"`
}

func playerView(p *model.PlayerProfile) playerJSON {
	return playerJSON{
		ID:            p.ID,
		DisplayName:   p.DisplayName,
		CreatedAt:     p.CreatedAt,
		LastSeenAt:    p.LastSeenAt,
		UniverseCount: p.UniverseCount,
	}
}
