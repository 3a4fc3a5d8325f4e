// Package results persists experiment runs to a SQLite database so models
// and tuning strategies can be compared across invocations.
package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lexkit/fineprint/internal/model"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("results: run not found")

const ddl = `
CREATE TABLE IF NOT EXISTS runs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at    TEXT NOT NULL,
	model         TEXT NOT NULL,
	corpus        TEXT NOT NULL,
	params_json   TEXT NOT NULL DEFAULT '',
	tune_strategy TEXT NOT NULL,
	tune_split    TEXT NOT NULL,
	eval_split    TEXT NOT NULL,
	micro_p  REAL NOT NULL,
	micro_r  REAL NOT NULL,
	micro_f1 REAL NOT NULL,
	macro_p  REAL NOT NULL,
	macro_r  REAL NOT NULL,
	macro_f1 REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS run_labels (
	run_id    INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	label     TEXT NOT NULL,
	precision REAL NOT NULL,
	recall    REAL NOT NULL,
	f1        REAL NOT NULL,
	support   INTEGER NOT NULL,
	threshold REAL NOT NULL,
	PRIMARY KEY (run_id, label)
);
`

const insertRunSQL = `INSERT INTO runs (
		created_at, model, corpus, params_json, tune_strategy, tune_split, eval_split,
		micro_p, micro_r, micro_f1, macro_p, macro_r, macro_f1
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertLabelSQL = `INSERT INTO run_labels (
		run_id, label, precision, recall, f1, support, threshold
	) VALUES (?, ?, ?, ?, ?, ?, ?)`

const selectRunSQL = `SELECT
		id, created_at, model, corpus, params_json, tune_strategy, tune_split, eval_split,
		micro_p, micro_r, micro_f1, macro_p, macro_r, macro_f1
	FROM runs`

// Store wraps the runs database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the runs database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("results: open %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("results: %w", err)
	}
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("results: creating schema in %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a run and its per-label rows in one transaction. The
// assigned id is stored back into run.ID and returned. A zero CreatedAt is
// set to the current time.
func (s *Store) Record(ctx context.Context, run *model.Run) (int64, error) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("results: begin: %w", err)
	}

	res, err := tx.ExecContext(ctx, insertRunSQL,
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
		run.Model, run.Corpus, run.Params,
		run.TuneStrategy, run.TuneSplit, run.EvalSplit,
		run.MicroPrecision, run.MicroRecall, run.MicroF1,
		run.MacroPrecision, run.MacroRecall, run.MacroF1,
	)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("results: insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("results: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertLabelSQL)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("results: prepare: %w", err)
	}
	for _, l := range run.Labels {
		if _, err := stmt.ExecContext(ctx, id, l.Label, l.Precision, l.Recall, l.F1, l.Support, l.Threshold); err != nil {
			stmt.Close()
			tx.Rollback()
			return 0, fmt.Errorf("results: insert label %s: %w", l.Label, err)
		}
	}
	stmt.Close()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("results: commit: %w", err)
	}
	run.ID = id
	return id, nil
}

// List returns the most recent runs, newest first, without per-label rows.
// A limit <= 0 returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, selectRunSQL+" ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("results: list: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("results: list: %w", err)
	}
	return runs, nil
}

// Get returns one run with its per-label rows, sorted by label.
func (s *Store) Get(ctx context.Context, id int64) (*model.Run, error) {
	rows, err := s.db.QueryContext(ctx, selectRunSQL+" WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("results: get %d: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("results: get %d: %w", id, err)
		}
		return nil, fmt.Errorf("results: get %d: %w", id, ErrNotFound)
	}
	run, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	rows.Close()

	labelRows, err := s.db.QueryContext(ctx,
		`SELECT label, precision, recall, f1, support, threshold
		 FROM run_labels WHERE run_id = ? ORDER BY label`, id)
	if err != nil {
		return nil, fmt.Errorf("results: labels for %d: %w", id, err)
	}
	defer labelRows.Close()

	for labelRows.Next() {
		var l model.RunLabel
		if err := labelRows.Scan(&l.Label, &l.Precision, &l.Recall, &l.F1, &l.Support, &l.Threshold); err != nil {
			return nil, fmt.Errorf("results: scan label: %w", err)
		}
		run.Labels = append(run.Labels, l)
	}
	if err := labelRows.Err(); err != nil {
		return nil, fmt.Errorf("results: labels for %d: %w", id, err)
	}
	return run, nil
}

func scanRun(rows *sql.Rows) (*model.Run, error) {
	var run model.Run
	var createdAt string
	if err := rows.Scan(
		&run.ID, &createdAt, &run.Model, &run.Corpus, &run.Params,
		&run.TuneStrategy, &run.TuneSplit, &run.EvalSplit,
		&run.MicroPrecision, &run.MicroRecall, &run.MicroF1,
		&run.MacroPrecision, &run.MacroRecall, &run.MacroF1,
	); err != nil {
		return nil, fmt.Errorf("results: scan run: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("results: parse created_at %q: %w", createdAt, err)
	}
	run.CreatedAt = ts
	return &run, nil
}
