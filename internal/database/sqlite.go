// Package database implements the metadata store (universe registry,
// timeline index, passage graph, player registry) on SQLite.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"mvs-go/internal/database/migrations"
	"mvs-go/internal/model"
	"mvs-go/internal/mvs"
)

// SQLiteDatabase implements mvs.Database using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

var _ mvs.Database = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase opens a SQLite database at path (or ":memory:") and
// brings the schema to the latest version.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the store relies on. path can be a file path or ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Foreign keys default to OFF in SQLite for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// The per-universe serialization in the service layer assumes a single
	// connection view; in-memory databases additionally vanish when their
	// last connection closes.
	db.SetMaxOpenConns(1)

	return db, nil
}

// CheckMigrations verifies the schema is at the latest version.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Path returns the database file path ("" for wrapped connections).
func (s *SQLiteDatabase) Path() string { return s.path }

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error { return s.db.Close() }

// isConstraintViolation reports whether err is a primary-key or unique
// constraint failure.
func isConstraintViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func toNanos(t time.Time) int64 { return t.UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

// Universe registry

const universeColumns = `id, name, owner_id, created_at, last_snapshot_at,
	snapshot_count, canonical_event_count, public, fork_source_id,
	fork_source_tick, config`

func (s *SQLiteDatabase) CreateUniverse(ctx context.Context, u *model.Universe) error {
	configJSON, err := marshalConfig(u.Config)
	if err != nil {
		return mvs.InvalidRequestf("universe %s config is not serializable: %v", u.ID, err)
	}

	var lastSnapshot sql.NullInt64
	if !u.LastSnapshotAt.IsZero() {
		lastSnapshot = sql.NullInt64{Int64: toNanos(u.LastSnapshotAt), Valid: true}
	}
	var forkID sql.NullString
	var forkTick sql.NullInt64
	if u.ForkOrigin != nil {
		forkID = sql.NullString{String: u.ForkOrigin.SourceUniverseID, Valid: true}
		forkTick = sql.NullInt64{Int64: u.ForkOrigin.SourceTick, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO universes (`+universeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.OwnerID, toNanos(u.CreatedAt), lastSnapshot,
		u.SnapshotCount, u.CanonicalEventCount, boolToInt(u.Public),
		forkID, forkTick, configJSON)
	if err != nil {
		if isConstraintViolation(err) {
			return mvs.AlreadyExistsf("universe", u.ID, "universe id is already taken")
		}
		return mvs.IOFailuref("universe", u.ID, err, "inserting universe")
	}
	return nil
}

func (s *SQLiteDatabase) GetUniverse(ctx context.Context, id string) (*model.Universe, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+universeColumns+` FROM universes WHERE id = ?`, id)
	u, err := scanUniverse(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, mvs.NotFoundf("universe", id, "universe does not exist")
		}
		return nil, mvs.IOFailuref("universe", id, err, "querying universe")
	}
	return u, nil
}

func (s *SQLiteDatabase) UpdateUniverse(ctx context.Context, u *model.Universe) error {
	configJSON, err := marshalConfig(u.Config)
	if err != nil {
		return mvs.InvalidRequestf("universe %s config is not serializable: %v", u.ID, err)
	}

	var lastSnapshot sql.NullInt64
	if !u.LastSnapshotAt.IsZero() {
		lastSnapshot = sql.NullInt64{Int64: toNanos(u.LastSnapshotAt), Valid: true}
	}
	var forkID sql.NullString
	var forkTick sql.NullInt64
	if u.ForkOrigin != nil {
		forkID = sql.NullString{String: u.ForkOrigin.SourceUniverseID, Valid: true}
		forkTick = sql.NullInt64{Int64: u.ForkOrigin.SourceTick, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE universes SET name = ?, owner_id = ?, last_snapshot_at = ?,
			snapshot_count = ?, canonical_event_count = ?, public = ?,
			fork_source_id = ?, fork_source_tick = ?, config = ?
		WHERE id = ?`,
		u.Name, u.OwnerID, lastSnapshot, u.SnapshotCount,
		u.CanonicalEventCount, boolToInt(u.Public), forkID, forkTick,
		configJSON, u.ID)
	if err != nil {
		return mvs.IOFailuref("universe", u.ID, err, "updating universe")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mvs.IOFailuref("universe", u.ID, err, "checking update result")
	}
	if n == 0 {
		return mvs.NotFoundf("universe", u.ID, "universe does not exist")
	}
	return nil
}

func (s *SQLiteDatabase) ListUniverses(ctx context.Context, filter mvs.UniverseFilter) ([]*model.Universe, error) {
	query := `SELECT ` + universeColumns + ` FROM universes`
	var conds []string
	var args []any
	if filter.PublicOnly {
		conds = append(conds, "public = 1")
	}
	if filter.OwnerID != "" {
		conds = append(conds, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += ` ORDER BY last_snapshot_at IS NULL, last_snapshot_at DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mvs.IOFailuref("universe", "", err, "listing universes")
	}
	defer rows.Close()
	return collectUniverses(rows)
}

func (s *SQLiteDatabase) ListForks(ctx context.Context, sourceID string) ([]*model.Universe, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+universeColumns+` FROM universes
		WHERE fork_source_id = ?
		ORDER BY created_at ASC`, sourceID)
	if err != nil {
		return nil, mvs.IOFailuref("universe", sourceID, err, "listing forks")
	}
	defer rows.Close()
	return collectUniverses(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUniverse(row rowScanner) (*model.Universe, error) {
	var u model.Universe
	var createdAt int64
	var lastSnapshot sql.NullInt64
	var public int
	var forkID sql.NullString
	var forkTick sql.NullInt64
	var configJSON sql.NullString

	err := row.Scan(&u.ID, &u.Name, &u.OwnerID, &createdAt, &lastSnapshot,
		&u.SnapshotCount, &u.CanonicalEventCount, &public, &forkID,
		&forkTick, &configJSON)
	if err != nil {
		return nil, err
	}

	u.CreatedAt = fromNanos(createdAt)
	if lastSnapshot.Valid {
		u.LastSnapshotAt = fromNanos(lastSnapshot.Int64)
	}
	u.Public = public != 0
	if forkID.Valid {
		u.ForkOrigin = &model.ForkOrigin{
			SourceUniverseID: forkID.String,
			SourceTick:       forkTick.Int64,
		}
	}
	if configJSON.Valid {
		if err := json.Unmarshal([]byte(configJSON.String), &u.Config); err != nil {
			return nil, fmt.Errorf("decoding universe config: %w", err)
		}
	}
	return &u, nil
}

func collectUniverses(rows *sql.Rows) ([]*model.Universe, error) {
	var out []*model.Universe
	for rows.Next() {
		u, err := scanUniverse(rows)
		if err != nil {
			return nil, mvs.IOFailuref("universe", "", err, "scanning universe row")
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, mvs.IOFailuref("universe", "", err, "iterating universe rows")
	}
	return out, nil
}

func marshalConfig(cfg map[string]any) (sql.NullString, error) {
	if cfg == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Timeline index

const entryColumns = `universe_id, tick, recorded_at, day, kind, event,
	storage_key, byte_size, checksum, decay_after_ticks, never_decay,
	never_decay_reason`

func (s *SQLiteDatabase) AppendEntry(ctx context.Context, e *model.TimelineEntry) error {
	var eventJSON sql.NullString
	if e.Event != nil {
		data, err := json.Marshal(e.Event)
		if err != nil {
			return mvs.InvalidRequestf("canonical event on tick %d is not serializable: %v", e.Tick, err)
		}
		eventJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO timeline_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UniverseID, e.Tick, toNanos(e.RecordedAt), e.Day, string(e.Kind),
		eventJSON, e.StorageKey, e.ByteSize, e.Checksum,
		e.Decay.DecayAfterTicks, boolToInt(e.Decay.NeverDecay),
		e.Decay.Reason)
	if err != nil {
		if isConstraintViolation(err) {
			return mvs.InvalidRequestf("universe %s already has a snapshot at tick %d", e.UniverseID, e.Tick)
		}
		return mvs.IOFailuref("snapshot", e.UniverseID, err, "inserting timeline entry at tick %d", e.Tick)
	}
	return nil
}

func (s *SQLiteDatabase) GetTimeline(ctx context.Context, universeID string) ([]*model.TimelineEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM timeline_entries
		WHERE universe_id = ? ORDER BY tick ASC`, universeID)
	if err != nil {
		return nil, mvs.IOFailuref("snapshot", universeID, err, "querying timeline")
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *SQLiteDatabase) GetEntry(ctx context.Context, universeID string, tick int64) (*model.TimelineEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM timeline_entries
		WHERE universe_id = ? AND tick = ?`, universeID, tick)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, mvs.NotFoundf("snapshot", universeID, "no snapshot at tick %d", tick)
		}
		return nil, mvs.IOFailuref("snapshot", universeID, err, "querying entry at tick %d", tick)
	}
	return e, nil
}

func (s *SQLiteDatabase) LatestEntry(ctx context.Context, universeID string) (*model.TimelineEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM timeline_entries
		WHERE universe_id = ? ORDER BY tick DESC LIMIT 1`, universeID)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, mvs.NotFoundf("snapshot", universeID, "timeline is empty")
		}
		return nil, mvs.IOFailuref("snapshot", universeID, err, "querying latest entry")
	}
	return e, nil
}

func (s *SQLiteDatabase) ListCanonicalEntries(ctx context.Context, universeID string) ([]*model.TimelineEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM timeline_entries
		WHERE universe_id = ? AND kind = ? ORDER BY tick ASC`,
		universeID, string(model.SnapshotCanonical))
	if err != nil {
		return nil, mvs.IOFailuref("snapshot", universeID, err, "querying canonical entries")
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *SQLiteDatabase) DeleteEntry(ctx context.Context, universeID string, tick int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM timeline_entries WHERE universe_id = ? AND tick = ?`,
		universeID, tick)
	if err != nil {
		return mvs.IOFailuref("snapshot", universeID, err, "deleting entry at tick %d", tick)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mvs.IOFailuref("snapshot", universeID, err, "checking delete result")
	}
	if n == 0 {
		return mvs.NotFoundf("snapshot", universeID, "no snapshot at tick %d", tick)
	}
	return nil
}

func (s *SQLiteDatabase) CountEntries(ctx context.Context, universeID string) (total, canonical int64, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(kind = ?), 0)
		FROM timeline_entries WHERE universe_id = ?`,
		string(model.SnapshotCanonical), universeID)
	if err := row.Scan(&total, &canonical); err != nil {
		return 0, 0, mvs.IOFailuref("snapshot", universeID, err, "counting entries")
	}
	return total, canonical, nil
}

func scanEntry(row rowScanner) (*model.TimelineEntry, error) {
	var e model.TimelineEntry
	var recordedAt int64
	var kind string
	var eventJSON sql.NullString
	var neverDecay int

	err := row.Scan(&e.UniverseID, &e.Tick, &recordedAt, &e.Day, &kind,
		&eventJSON, &e.StorageKey, &e.ByteSize, &e.Checksum,
		&e.Decay.DecayAfterTicks, &neverDecay, &e.Decay.Reason)
	if err != nil {
		return nil, err
	}

	e.RecordedAt = fromNanos(recordedAt)
	e.Kind = model.SnapshotKind(kind)
	e.Decay.NeverDecay = neverDecay != 0
	if eventJSON.Valid {
		e.Event = &model.CanonicalEvent{}
		if err := json.Unmarshal([]byte(eventJSON.String), e.Event); err != nil {
			return nil, fmt.Errorf("decoding canonical event: %w", err)
		}
	}
	return &e, nil
}

func collectEntries(rows *sql.Rows) ([]*model.TimelineEntry, error) {
	var out []*model.TimelineEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, mvs.IOFailuref("snapshot", "", err, "scanning timeline row")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mvs.IOFailuref("snapshot", "", err, "iterating timeline rows")
	}
	return out, nil
}

// Passage graph

const passageColumns = `id, source_universe_id, target_universe_id, type,
	active, created_by, created_at, stability, last_maintained_at`

func (s *SQLiteDatabase) CreatePassage(ctx context.Context, p *model.Passage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO passages (`+passageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SourceUniverseID, p.TargetUniverseID, string(p.Type),
		boolToInt(p.Active), p.CreatedBy, toNanos(p.CreatedAt),
		p.Stability, toNanos(p.LastMaintainedAt))
	if err != nil {
		if isConstraintViolation(err) {
			return mvs.AlreadyExistsf("passage", p.ID, "passage id is already taken")
		}
		return mvs.IOFailuref("passage", p.ID, err, "inserting passage")
	}
	return nil
}

func (s *SQLiteDatabase) GetPassage(ctx context.Context, id string) (*model.Passage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+passageColumns+` FROM passages WHERE id = ?`, id)
	p, err := scanPassage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, mvs.NotFoundf("passage", id, "passage does not exist")
		}
		return nil, mvs.IOFailuref("passage", id, err, "querying passage")
	}
	return p, nil
}

func (s *SQLiteDatabase) UpdatePassage(ctx context.Context, p *model.Passage) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE passages SET active = ?, stability = ?, last_maintained_at = ?
		WHERE id = ?`,
		boolToInt(p.Active), p.Stability, toNanos(p.LastMaintainedAt), p.ID)
	if err != nil {
		return mvs.IOFailuref("passage", p.ID, err, "updating passage")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mvs.IOFailuref("passage", p.ID, err, "checking update result")
	}
	if n == 0 {
		return mvs.NotFoundf("passage", p.ID, "passage does not exist")
	}
	return nil
}

func (s *SQLiteDatabase) ListPassages(ctx context.Context, universeID string) ([]*model.Passage, error) {
	query := `SELECT ` + passageColumns + ` FROM passages`
	var args []any
	if universeID != "" {
		query += ` WHERE source_universe_id = ? OR target_universe_id = ?`
		args = append(args, universeID, universeID)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mvs.IOFailuref("passage", universeID, err, "listing passages")
	}
	defer rows.Close()

	var out []*model.Passage
	for rows.Next() {
		p, err := scanPassage(rows)
		if err != nil {
			return nil, mvs.IOFailuref("passage", "", err, "scanning passage row")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mvs.IOFailuref("passage", "", err, "iterating passage rows")
	}
	return out, nil
}

func scanPassage(row rowScanner) (*model.Passage, error) {
	var p model.Passage
	var ptype string
	var active int
	var createdAt, maintainedAt int64

	err := row.Scan(&p.ID, &p.SourceUniverseID, &p.TargetUniverseID, &ptype,
		&active, &p.CreatedBy, &createdAt, &p.Stability, &maintainedAt)
	if err != nil {
		return nil, err
	}

	p.Type = model.PassageType(ptype)
	p.Active = active != 0
	p.CreatedAt = fromNanos(createdAt)
	p.LastMaintainedAt = fromNanos(maintainedAt)
	return &p, nil
}

// Player registry

func (s *SQLiteDatabase) UpsertPlayer(ctx context.Context, p *model.PlayerProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players (id, display_name, created_at, last_seen_at, universe_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			last_seen_at = excluded.last_seen_at`,
		p.ID, p.DisplayName, toNanos(p.CreatedAt), toNanos(p.LastSeenAt),
		p.UniverseCount)
	if err != nil {
		return mvs.IOFailuref("player", p.ID, err, "upserting player")
	}
	return nil
}

func (s *SQLiteDatabase) GetPlayer(ctx context.Context, id string) (*model.PlayerProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, created_at, last_seen_at, universe_count
		FROM players WHERE id = ?`, id)

	var p model.PlayerProfile
	var createdAt, lastSeenAt int64
	err := row.Scan(&p.ID, &p.DisplayName, &createdAt, &lastSeenAt, &p.UniverseCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, mvs.NotFoundf("player", id, "player does not exist")
		}
		return nil, mvs.IOFailuref("player", id, err, "querying player")
	}
	p.CreatedAt = fromNanos(createdAt)
	p.LastSeenAt = fromNanos(lastSeenAt)
	return &p, nil
}

func (s *SQLiteDatabase) PlayerUniverses(ctx context.Context, id string) ([]string, error) {
	// Distinguish "unknown player" from "player with no universes".
	if _, err := s.GetPlayer(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT universe_id FROM player_universes
		WHERE player_id = ? ORDER BY position ASC`, id)
	if err != nil {
		return nil, mvs.IOFailuref("player", id, err, "querying player universes")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var universeID string
		if err := rows.Scan(&universeID); err != nil {
			return nil, mvs.IOFailuref("player", id, err, "scanning player universe row")
		}
		out = append(out, universeID)
	}
	if err := rows.Err(); err != nil {
		return nil, mvs.IOFailuref("player", id, err, "iterating player universe rows")
	}
	return out, nil
}

func (s *SQLiteDatabase) AddPlayerUniverse(ctx context.Context, playerID, universeID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mvs.IOFailuref("player", playerID, err, "starting ownership transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO player_universes (player_id, universe_id, position)
		SELECT ?, ?, COALESCE(MAX(position), 0) + 1
		FROM player_universes WHERE player_id = ?`,
		playerID, universeID, playerID)
	if err != nil {
		if isConstraintViolation(err) {
			// Already associated; the list is append-only and deduplicated.
			return nil
		}
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return mvs.NotFoundf("player", playerID, "player does not exist")
		}
		return mvs.IOFailuref("player", playerID, err, "recording universe ownership")
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE players SET universe_count =
			(SELECT COUNT(*) FROM player_universes WHERE player_id = ?)
		WHERE id = ?`, playerID, playerID)
	if err != nil {
		return mvs.IOFailuref("player", playerID, err, "recomputing universe count")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mvs.IOFailuref("player", playerID, err, "checking count update")
	}
	if n == 0 {
		return mvs.NotFoundf("player", playerID, "player does not exist")
	}

	if err := tx.Commit(); err != nil {
		return mvs.IOFailuref("player", playerID, err, "committing ownership transaction")
	}
	return nil
}
