// Package ledger records per-document pipeline outcomes in SQLite so that
// failures can be queried without scraping logs.
package ledger

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers "sqlite" driver

	"paperpipe/internal/domain"
)

// Outcome is one terminal result for one document in one run.
type Outcome struct {
	RunID      string
	Document   string
	Stem       string
	SHA256     string
	State      domain.State
	Stage      domain.Stage
	Reason     string
	Chunks     int
	RecordedAt time.Time
}

// Ledger wraps the outcome database.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the ledger at path and runs migrations. ":memory:"
// gives a private in-memory ledger.
func Open(path string) (*Ledger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ledger: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
	}
	// One connection keeps ":memory:" a single database and serialises writes.
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}
	return l, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error { return l.db.Close() }

func (l *Ledger) migrate() error {
	const ddl = `
PRAGMA busy_timeout = 10000;

CREATE TABLE IF NOT EXISTS outcomes (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL,
    document    TEXT NOT NULL,
    stem        TEXT NOT NULL,
    sha256      TEXT NOT NULL DEFAULT '',
    state       TEXT NOT NULL,
    stage       TEXT NOT NULL DEFAULT '',
    reason      TEXT NOT NULL DEFAULT '',
    chunks      INTEGER NOT NULL DEFAULT 0,
    recorded_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outcomes_stem ON outcomes(stem, id);
CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id);
`
	_, err := l.db.Exec(ddl)
	return err
}

// Record appends an outcome. A zero RecordedAt is set to now.
func (l *Ledger) Record(ctx context.Context, o Outcome) error {
	if o.RecordedAt.IsZero() {
		o.RecordedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
INSERT INTO outcomes (run_id, document, stem, sha256, state, stage, reason, chunks, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.Document, o.Stem, o.SHA256, string(o.State), string(o.Stage), o.Reason, o.Chunks,
		o.RecordedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("ledger: record %s: %w", o.Document, err)
	}
	return nil
}

const selectOutcome = `SELECT run_id, document, stem, sha256, state, stage, reason, chunks, recorded_at FROM outcomes`

// Last returns the latest non-skip outcome for stem.
func (l *Ledger) Last(ctx context.Context, stem string) (Outcome, bool, error) {
	row := l.db.QueryRowContext(ctx,
		selectOutcome+` WHERE stem = ? AND state != ? ORDER BY id DESC LIMIT 1`,
		stem, string(domain.StateSkipped))
	o, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Outcome{}, false, nil
	}
	if err != nil {
		return Outcome{}, false, err
	}
	return o, true, nil
}

// Quarantined lists documents whose latest non-skip outcome is quarantine.
func (l *Ledger) Quarantined(ctx context.Context) ([]Outcome, error) {
	rows, err := l.db.QueryContext(ctx, selectOutcome+`
WHERE id IN (SELECT MAX(id) FROM outcomes WHERE state != ? GROUP BY stem)
  AND state = ?
ORDER BY document`, string(domain.StateSkipped), string(domain.StateQuarantined))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// Unresolved lists documents whose latest non-skip outcome is a quarantine or
// a processed document that left a problem behind, such as an undeleted source.
func (l *Ledger) Unresolved(ctx context.Context) ([]Outcome, error) {
	rows, err := l.db.QueryContext(ctx, selectOutcome+`
WHERE id IN (SELECT MAX(id) FROM outcomes WHERE state != ? GROUP BY stem)
  AND (state = ? OR reason != '')
ORDER BY document`, string(domain.StateSkipped), string(domain.StateQuarantined))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// Run lists the outcomes of one run in processing order.
func (l *Ledger) Run(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := l.db.QueryContext(ctx, selectOutcome+` WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (Outcome, error) {
	var (
		o            Outcome
		state, stage string
		recordedAt   string
	)
	if err := s.Scan(&o.RunID, &o.Document, &o.Stem, &o.SHA256, &state, &stage, &o.Reason, &o.Chunks, &recordedAt); err != nil {
		return Outcome{}, err
	}
	o.State = domain.State(state)
	o.Stage = domain.Stage(stage)
	t, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return Outcome{}, fmt.Errorf("ledger: parse recorded_at: %w", err)
	}
	o.RecordedAt = t
	return o, nil
}

func collect(rows *sql.Rows) ([]Outcome, error) {
	var out []Outcome
	for rows.Next() {
		o, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// HashFile returns the hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
