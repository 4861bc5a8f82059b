package mvs

import (
	"context"

	"mvs-go/internal/model"
)

// UniverseFilter narrows ListUniverses results. Zero value matches all.
type UniverseFilter struct {
	PublicOnly bool
	OwnerID    string
}

// Database provides metadata storage for the universe registry, timeline
// index, passage graph, and player registry. Implementations map failures to
// taxonomy errors: missing rows are NotFound, duplicate creates are
// AlreadyExists, duplicate ticks are InvalidRequest, and storage-level
// failures are IOFailure.
type Database interface {
	// Universe registry

	// CreateUniverse persists a new universe record. Fails AlreadyExists if
	// the id is taken.
	CreateUniverse(ctx context.Context, u *model.Universe) error

	// GetUniverse returns the universe with the given id.
	GetUniverse(ctx context.Context, id string) (*model.Universe, error)

	// UpdateUniverse rewrites an existing universe record in full.
	UpdateUniverse(ctx context.Context, u *model.Universe) error

	// ListUniverses returns matching universes ordered by most recent
	// snapshot first.
	ListUniverses(ctx context.Context, filter UniverseFilter) ([]*model.Universe, error)

	// ListForks returns every universe whose fork origin references sourceID.
	ListForks(ctx context.Context, sourceID string) ([]*model.Universe, error)

	// Timeline index

	// AppendEntry inserts a timeline entry. A tick already present in the
	// universe's timeline fails InvalidRequest.
	AppendEntry(ctx context.Context, e *model.TimelineEntry) error

	// GetTimeline returns all entries for a universe ordered by tick.
	GetTimeline(ctx context.Context, universeID string) ([]*model.TimelineEntry, error)

	// GetEntry returns the entry at exactly the given tick.
	GetEntry(ctx context.Context, universeID string, tick int64) (*model.TimelineEntry, error)

	// LatestEntry returns the entry with the maximum tick. Fails NotFound on
	// an empty timeline.
	LatestEntry(ctx context.Context, universeID string) (*model.TimelineEntry, error)

	// ListCanonicalEntries returns entries of kind canonical ordered by tick.
	ListCanonicalEntries(ctx context.Context, universeID string) ([]*model.TimelineEntry, error)

	// DeleteEntry removes the entry at the given tick.
	DeleteEntry(ctx context.Context, universeID string, tick int64) error

	// CountEntries returns the total and canonical entry counts for a
	// universe.
	CountEntries(ctx context.Context, universeID string) (total, canonical int64, err error)

	// Passage graph

	CreatePassage(ctx context.Context, p *model.Passage) error
	GetPassage(ctx context.Context, id string) (*model.Passage, error)
	UpdatePassage(ctx context.Context, p *model.Passage) error

	// ListPassages returns passages touching universeID as either endpoint,
	// or all passages when universeID is empty.
	ListPassages(ctx context.Context, universeID string) ([]*model.Passage, error)

	// Player registry

	// UpsertPlayer inserts or updates a player profile, preserving CreatedAt
	// on update.
	UpsertPlayer(ctx context.Context, p *model.PlayerProfile) error
	GetPlayer(ctx context.Context, id string) (*model.PlayerProfile, error)

	// PlayerUniverses returns the ids of universes owned by the player in
	// association order.
	PlayerUniverses(ctx context.Context, id string) ([]string, error)

	// AddPlayerUniverse appends universeID to the player's owned list if not
	// already present and recomputes the derived universe count.
	AddPlayerUniverse(ctx context.Context, playerID, universeID string) error

	// Close closes the database connection.
	Close() error
}
