// Package testutil provides shared test doubles: an in-memory migrated
// database, a deterministic clock, and a sequential id generator.
package testutil

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"mvs-go/internal/codec"
	"mvs-go/internal/database"
	"mvs-go/internal/mvs"
	"mvs-go/internal/vault"
)

// NewTestDatabase creates a fully migrated in-memory SQLite database. It is
// closed automatically when the test finishes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()
	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// FixedClock is a Clock that returns a controllable time.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixedClock returns a FixedClock starting at the given time.
func NewFixedClock(start time.Time) *FixedClock {
	return &FixedClock{t: start}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// SequentialIDGenerator produces "id-1", "id-2", ... for stable assertions.
type SequentialIDGenerator struct {
	mu sync.Mutex
	n  int
}

func (g *SequentialIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

// TestService bundles a wired service with its backing fakes so tests can
// inspect state behind the facade.
type TestService struct {
	Service *mvs.Service
	DB      *database.SQLiteDatabase
	Vault   *vault.MemoryVault
	Clock   *FixedClock
}

// NewTestService creates a service over an in-memory database and vault with
// a fixed clock and sequential ids. defaultDecayTicks applies to entries
// appended without an explicit policy.
func NewTestService(t *testing.T, defaultDecayTicks int64) *TestService {
	t.Helper()
	db := NewTestDatabase(t)
	v := vault.NewMemoryVault("test")
	clock := NewFixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := mvs.NewService(db, v, codec.New(), mvs.NewNopLogger(), clock, &SequentialIDGenerator{}, defaultDecayTicks)
	return &TestService{Service: svc, DB: db, Vault: v, Clock: clock}
}
