package model

import "time"

// SnapshotKind classifies how a timeline entry was produced.
type SnapshotKind string

const (
	SnapshotAuto      SnapshotKind = "auto"
	SnapshotManual    SnapshotKind = "manual"
	SnapshotCanonical SnapshotKind = "canonical"
)

// ValidSnapshotKind reports whether k is one of the known snapshot kinds.
func ValidSnapshotKind(k SnapshotKind) bool {
	switch k {
	case SnapshotAuto, SnapshotManual, SnapshotCanonical:
		return true
	}
	return false
}

// DecayPolicy controls when a timeline entry becomes eligible for eviction.
// Entries with NeverDecay set are kept unconditionally; otherwise an entry is
// evicted once currentTick - entry.Tick >= DecayAfterTicks.
type DecayPolicy struct {
	DecayAfterTicks int64
	NeverDecay      bool
	Reason          string // only meaningful when NeverDecay is set
}

// CanonicalEvent describes why a canonical snapshot is historically
// significant. It is a tag on a timeline entry, not a separate record.
type CanonicalEvent struct {
	Type        string // death, birth, catastrophe, discovery, ...
	Title       string
	Description string
	Day         int64 // simulated day the event occurred
	Importance  int
	EntityIDs   []string // involved simulated entities, if any
}

// TimelineEntry is one point-in-time record in a universe's timeline.
// Tick values are unique within a universe. The referenced blob is owned
// exclusively by this entry and is deleted only when the entry is evicted.
type TimelineEntry struct {
	UniverseID string
	Tick       int64 // simulation time, unique per universe
	RecordedAt time.Time
	Day        int64 // simulation day counter
	Kind       SnapshotKind
	Event      *CanonicalEvent // set only for canonical entries
	StorageKey string
	ByteSize   int64  // uncompressed payload size
	Checksum   string // SHA-256 hex of the uncompressed payload
	Decay      DecayPolicy
}

// ForkOrigin records the lineage of a forked universe. Once set it is
// immutable.
type ForkOrigin struct {
	SourceUniverseID string
	SourceTick       int64
}

// Universe is one independently evolving simulated world lineage.
// Universes are never hard-deleted; soft deletion prefixes the display name
// and clears the public flag while retaining all history.
type Universe struct {
	ID                  string
	Name                string
	OwnerID             string
	CreatedAt           time.Time
	LastSnapshotAt      time.Time // zero until the first snapshot
	SnapshotCount       int64
	CanonicalEventCount int64
	Public              bool
	ForkOrigin          *ForkOrigin
	Config              map[string]any // free-form, inherited on fork
}

// PassageType classifies a directed connection between universes.
type PassageType string

const (
	PassageThread     PassageType = "thread"
	PassageBridge     PassageType = "bridge"
	PassageGate       PassageType = "gate"
	PassageConfluence PassageType = "confluence"
)

// ValidPassageType reports whether t is one of the known passage types.
func ValidPassageType(t PassageType) bool {
	switch t {
	case PassageThread, PassageBridge, PassageGate, PassageConfluence:
		return true
	}
	return false
}

// Passage is a directed edge between two universes. Stability erodes without
// maintenance; the erosion itself is computed by callers and written back,
// the store only persists the score and timestamp.
type Passage struct {
	ID               string
	SourceUniverseID string
	TargetUniverseID string
	Type             PassageType
	Active           bool
	CreatedBy        string
	CreatedAt        time.Time
	Stability        int // 0-100
	LastMaintainedAt time.Time
}

// PlayerProfile maps an external player identity to the universes they own.
// The owned-universe list is append-only: a universe stays associated even
// after it is soft-deleted.
type PlayerProfile struct {
	ID            string
	DisplayName   string
	CreatedAt     time.Time
	LastSeenAt    time.Time
	UniverseCount int64
}
