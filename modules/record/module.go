// Package record provides the "record" sink, which stores every visited leaf
// of a run in a SQLite database.
package record

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vk/treeclimb/internal/registry"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// DefaultPath is used when no database path is configured.
const DefaultPath = "treeclimb.db"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Sink appends one row per leaf to the visits table. Rows of earlier runs
// are kept; each run is identified by its run id.
type Sink struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

// Visit is a stored row.
type Visit struct {
	Seq       int
	Path      string
	Key       string
	Value     sql.NullString
	ValueType string
	VisitedAt time.Time
}

// Open opens (creating if needed) the database at path and registers a run.
// An empty runID gets a fresh time-ordered UUID.
func Open(ctx context.Context, path, runID string) (*Sink, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating %s", dir)
		}
	}
	if runID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, errors.Wrap(err, "generating run id")
		}
		runID = id.String()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	// One connection serializes writers; SQLite would otherwise report busy.
	db.SetMaxOpenConns(1)

	s := &Sink{db: db, runID: runID, now: time.Now}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating schema")
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at) VALUES (?, ?)`,
		runID, s.now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "registering run %s", runID)
	}
	return s, nil
}

// RunID returns the id rows are stored under.
func (s *Sink) RunID() string { return s.runID }

// Visit stores the leaf and returns its sequence number.
func (s *Sink) Visit(ctx context.Context, leaf registry.Leaf) (any, error) {
	var value sql.NullString
	if leaf.Value != nil {
		value = sql.NullString{String: fmt.Sprint(leaf.Value), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visits (run_id, seq, path, key, value, value_type, visited_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.runID, leaf.Seq, leaf.Path, leaf.Key, value, fmt.Sprintf("%T", leaf.Value),
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "recording %q", leaf.Path)
	}
	return leaf.Seq, nil
}

// Visits returns the rows of the sink's run ordered by sequence number.
func (s *Sink) Visits(ctx context.Context) ([]Visit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, path, key, value, value_type, visited_at FROM visits WHERE run_id = ? ORDER BY seq`,
		s.runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []Visit
	for rows.Next() {
		var v Visit
		var visitedAt string
		if err := rows.Scan(&v.Seq, &v.Path, &v.Key, &v.Value, &v.ValueType, &visitedAt); err != nil {
			return nil, err
		}
		if v.VisitedAt, err = time.Parse(time.RFC3339Nano, visitedAt); err != nil {
			return nil, errors.Wrapf(err, "row %d", v.Seq)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// Close closes the database.
func (s *Sink) Close() error {
	return s.db.Close()
}

// Register registers the sink with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterSink("record", func(ctx context.Context, s registry.Settings) (registry.Sink, error) {
		sink, err := Open(ctx, s.RecordPath, s.RunID)
		if err != nil {
			return nil, err
		}
		if s.Logger != nil {
			s.Logger.Info("Recording visits.", "db", s.RecordPath, "run_id", sink.RunID())
		}
		return sink, nil
	})
}
