// Package history archives run records in sqlite so past runs survive
// the process and can be listed, inspected, and pruned.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stagehand-ci/stagehand/internal/report"
)

// ErrNotFound is returned when no archived run matches the query.
var ErrNotFound = errors.New("run not found")

// Store is a sqlite-backed run archive.
type Store struct {
	db *sql.DB
}

// Open creates or opens the archive at path.
func Open(path string) (*Store, error) {
	opts := []string{
		"_foreign_keys=1",
		"_journal_mode=WAL",
		"_synchronous=NORMAL",
	}

	db, err := sql.Open("sqlite3", path+"?"+strings.Join(opts, "&"))
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		create table if not exists runs (
			id integer primary key autoincrement,
			pipeline text not null,
			run_id text not null unique,
			build_number integer not null,
			branch text not null default '',
			status text not null,
			failure_kind text not null default '',
			error text not null default '',
			started_at text not null,
			finished_at text not null,
			duration_ms integer not null,
			record text not null -- full RunRecord as json
		);

		create index if not exists runs_pipeline on runs (pipeline, id desc);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history store: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// NextBuildNumber returns the build number the next run of the named
// pipeline should use: one past the highest archived number.
func (s *Store) NextBuildNumber(pipeline string) (int, error) {
	var max sql.NullInt64
	row := s.db.QueryRow(`select max(build_number) from runs where pipeline = ?`, pipeline)
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	return int(max.Int64) + 1, nil
}

// Save archives a finished run and prunes the pipeline's history down to
// retain entries. retain <= 0 keeps everything.
func (s *Store) Save(rec *report.RunRecord, retain int) error {
	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode run record: %w", err)
	}

	_, err = s.db.Exec(`
		insert into runs (pipeline, run_id, build_number, branch, status,
			failure_kind, error, started_at, finished_at, duration_ms, record)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Pipeline, rec.RunID, rec.BuildNumber, rec.Branch, string(rec.Status),
		string(rec.FailureKind), rec.Error,
		rec.StartedAt.UTC().Format(timeLayout),
		rec.FinishedAt.UTC().Format(timeLayout),
		rec.DurationMS, string(blob),
	)
	if err != nil {
		return fmt.Errorf("archive run %s: %w", rec.RunID, err)
	}

	if retain > 0 {
		_, err = s.db.Exec(`
			delete from runs
			where pipeline = ?1 and id not in (
				select id from runs where pipeline = ?1 order by id desc limit ?2
			)
		`, rec.Pipeline, retain)
		if err != nil {
			return fmt.Errorf("prune history for %s: %w", rec.Pipeline, err)
		}
	}
	return nil
}

// List returns archived runs, newest first, up to limit (0 for all).
// Optionally filtered to one pipeline name.
func (s *Store) List(pipeline string, limit int) ([]report.RunRecord, error) {
	query := `select record from runs`
	args := []any{}
	if pipeline != "" {
		query += ` where pipeline = ?`
		args = append(args, pipeline)
	}
	query += ` order by id desc`
	if limit > 0 {
		query += ` limit ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []report.RunRecord
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var rec report.RunRecord
		if err := json.Unmarshal([]byte(blob), &rec); err != nil {
			return nil, fmt.Errorf("decode run record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Get fetches one archived run by its run id.
func (s *Store) Get(runID string) (*report.RunRecord, error) {
	var blob string
	row := s.db.QueryRow(`select record from runs where run_id = ?`, runID)
	if err := row.Scan(&blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var rec report.RunRecord
	if err := json.Unmarshal([]byte(blob), &rec); err != nil {
		return nil, fmt.Errorf("decode run record: %w", err)
	}
	return &rec, nil
}

const timeLayout = "2006-01-02T15:04:05Z"
