// Package store keeps a SQLite journal of finished tool invocations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/harunnryd/sapa/pkg/errorsx"
	"github.com/harunnryd/sapa/pkg/invoke"
	"github.com/harunnryd/sapa/pkg/redact"
)

const schema = `
CREATE TABLE IF NOT EXISTS invocations (
	id            TEXT PRIMARY KEY,
	tool          TEXT NOT NULL,
	args          TEXT NOT NULL,
	status        TEXT NOT NULL,
	reason        TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	result_text   TEXT NOT NULL DEFAULT '',
	result_url    TEXT NOT NULL DEFAULT '',
	artifact_path TEXT NOT NULL DEFAULT '',
	artifact_err  TEXT NOT NULL DEFAULT '',
	polls         INTEGER NOT NULL DEFAULT 0,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS invocations_finished_at ON invocations(finished_at);
`

// Entry is a journaled invocation. Errors are kept as redacted text.
type Entry struct {
	ID           string
	Tool         string
	Args         map[string]any
	Status       invoke.Status
	Reason       string
	Error        string
	ResultText   string
	ResultURL    string
	ArtifactPath string
	ArtifactErr  string
	Polls        int
	StartedAt    time.Time
	FinishedAt   time.Time
}

type Journal struct {
	db *sql.DB
}

// Open opens the journal at path (":memory:" for a private in-memory one)
// and applies the schema.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Record stores a terminal invocation; re-recording the same ID replaces it.
func (j *Journal) Record(ctx context.Context, inv *invoke.Invocation) error {
	if inv == nil || !inv.Status.Terminal() {
		return fmt.Errorf("journal: invocation is not finished")
	}
	args, err := json.Marshal(inv.Args)
	if err != nil {
		return fmt.Errorf("journal: encode args: %w", err)
	}
	var reason, errText, artPath, artErr string
	if inv.Err != nil {
		reason = string(errorsx.Reason(inv.Err))
		errText = redact.Secrets(inv.Err.Error())
	}
	if inv.Artifact != nil {
		artPath = inv.Artifact.Path
		if inv.Artifact.Err != nil {
			artErr = redact.Secrets(inv.Artifact.Err.Error())
		}
	}
	_, err = j.db.ExecContext(ctx, `INSERT OR REPLACE INTO invocations
		(id, tool, args, status, reason, error, result_text, result_url, artifact_path, artifact_err, polls, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Tool, string(args), string(inv.Status), reason, errText,
		inv.Result.Text, inv.Result.URL, artPath, artErr, inv.Polls,
		inv.StartedAt.UTC().Format(time.RFC3339Nano), inv.FinishedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("journal: insert %s: %w", inv.ID, err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := j.db.QueryContext(ctx, `SELECT id, tool, args, status, reason, error, result_text, result_url,
		artifact_path, artifact_err, polls, started_at, finished_at
		FROM invocations ORDER BY finished_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var args, status, started, finished string
		if err := rows.Scan(&e.ID, &e.Tool, &args, &status, &e.Reason, &e.Error, &e.ResultText, &e.ResultURL,
			&e.ArtifactPath, &e.ArtifactErr, &e.Polls, &started, &finished); err != nil {
			return nil, err
		}
		e.Status = invoke.Status(status)
		if err := json.Unmarshal([]byte(args), &e.Args); err != nil {
			return nil, fmt.Errorf("journal: decode args of %s: %w", e.ID, err)
		}
		e.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		e.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, e)
	}
	return out, rows.Err()
}
