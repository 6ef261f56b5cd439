// Package library indexes stored snapshot files and the builds run from them
// in SQLite.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"voxelbuild.ai/internal/persistence/snapfile"
	"voxelbuild.ai/internal/sim/snapshot"
)

var ErrNotFound = errors.New("library: not found")

// timeLayout is fixed width so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Entry struct {
	ID      uuid.UUID
	Owner   uuid.UUID
	Name    string
	Type    snapshot.Type
	Created time.Time
	Path    string
	Digest  string
}

// Build is one finished or cancelled build of a snapshot.
type Build struct {
	ID         int64
	SnapshotID uuid.UUID
	Ticks      uint64
	Placed     int64
	Cleared    int64
	Cancelled  bool
	RecordedAt time.Time
}

type Library struct {
	db *sql.DB
}

func Open(path string) (*Library, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Library{db: db}, nil
}

func (l *Library) Close() error { return l.db.Close() }

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			created TEXT NOT NULL,
			path TEXT NOT NULL,
			digest TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS snapshots_owner ON snapshots(owner, created);`,
		`CREATE TABLE IF NOT EXISTS builds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
			ticks INTEGER NOT NULL,
			placed INTEGER NOT NULL,
			cleared INTEGER NOT NULL,
			cancelled INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS builds_snapshot ON builds(snapshot_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Add inserts e, replacing an entry with the same id.
func (l *Library) Add(ctx context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		return errors.New("library: nil snapshot id")
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO snapshots(id, owner, name, type, created, path, digest) VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET owner=excluded.owner, name=excluded.name, type=excluded.type,
			created=excluded.created, path=excluded.path, digest=excluded.digest`,
		e.ID.String(), e.Owner.String(), e.Name, string(e.Type), e.Created.UTC().Format(timeLayout), e.Path, e.Digest)
	return err
}

// Import reads the header of a snapshot file and adds it.
func (l *Library) Import(ctx context.Context, path string) (Entry, error) {
	info, err := snapfile.ReadInfo(path)
	if err != nil {
		return Entry{}, err
	}
	if info.Kind != snapfile.KindSnapshot || info.Snapshot == nil {
		return Entry{}, fmt.Errorf("%w: %s is a %s file", snapfile.ErrKind, path, info.Kind)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Entry{}, err
	}
	h := info.Snapshot
	e := Entry{ID: h.ID, Owner: h.Owner, Name: h.Name, Type: h.Type, Created: h.Created, Path: abs, Digest: info.Digest}
	return e, l.Add(ctx, e)
}

func (l *Library) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	row := l.db.QueryRowContext(ctx, `SELECT id, owner, name, type, created, path, digest FROM snapshots WHERE id = ?`, id.String())
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: snapshot %s", ErrNotFound, id)
	}
	return e, err
}

// List returns entries newest first. A nil owner lists everything; an empty
// typ lists both types.
func (l *Library) List(ctx context.Context, owner *uuid.UUID, typ snapshot.Type) ([]Entry, error) {
	q := `SELECT id, owner, name, type, created, path, digest FROM snapshots WHERE 1=1`
	var args []any
	if owner != nil {
		q += ` AND owner = ?`
		args = append(args, owner.String())
	}
	if typ != "" {
		q += ` AND type = ?`
		args = append(args, string(typ))
	}
	q += ` ORDER BY created DESC, name`
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *Library) Remove(ctx context.Context, id uuid.UUID) error {
	res, err := l.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: snapshot %s", ErrNotFound, id)
	}
	return nil
}

// RecordBuild stores b and returns its row id. The snapshot must be in the
// library.
func (l *Library) RecordBuild(ctx context.Context, b Build) (int64, error) {
	if b.RecordedAt.IsZero() {
		b.RecordedAt = time.Now()
	}
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO builds(snapshot_id, ticks, placed, cleared, cancelled, recorded_at) VALUES(?,?,?,?,?,?)`,
		b.SnapshotID.String(), int64(b.Ticks), b.Placed, b.Cleared, boolInt(b.Cancelled), b.RecordedAt.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Builds lists the builds of one snapshot, oldest first.
func (l *Library) Builds(ctx context.Context, snapshotID uuid.UUID) ([]Build, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, snapshot_id, ticks, placed, cleared, cancelled, recorded_at FROM builds WHERE snapshot_id = ? ORDER BY id`,
		snapshotID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Build
	for rows.Next() {
		var (
			b         Build
			sid, at   string
			ticks     int64
			cancelled int
		)
		if err := rows.Scan(&b.ID, &sid, &ticks, &b.Placed, &b.Cleared, &cancelled, &at); err != nil {
			return nil, err
		}
		if b.SnapshotID, err = uuid.Parse(sid); err != nil {
			return nil, err
		}
		if b.RecordedAt, err = time.Parse(timeLayout, at); err != nil {
			return nil, err
		}
		b.Ticks = uint64(ticks)
		b.Cancelled = cancelled != 0
		out = append(out, b)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e                     Entry
		id, owner, typ, creat string
	)
	if err := s.Scan(&id, &owner, &e.Name, &typ, &creat, &e.Path, &e.Digest); err != nil {
		return Entry{}, err
	}
	var err error
	if e.ID, err = uuid.Parse(id); err != nil {
		return Entry{}, err
	}
	if e.Owner, err = uuid.Parse(owner); err != nil {
		return Entry{}, err
	}
	if e.Created, err = time.Parse(timeLayout, creat); err != nil {
		return Entry{}, err
	}
	e.Type = snapshot.Type(typ)
	return e, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
