// Package sqlite records tagging runs in a SQLite ledger.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
)

// Ledger stores run provenance: parameters, per-set pairing counts and
// per-label blob counts.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the ledger at path and migrates it.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	l := &Ledger{db: db, logger: logger}
	if err := l.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Ping reports whether the database is reachable.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// StartRun inserts a running entry and returns its id.
func (l *Ledger) StartRun(ctx context.Context, jobFile string, radiusDeg float64) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, job_file, radius_deg, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		id, jobFile, radiusDeg, domain.Now().UTC().Format(time.RFC3339Nano), string(domain.RunRunning))
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return id, nil
}

// RecordSet stores the summary of one blob set.
func (l *Ledger) RecordSet(ctx context.Context, runID string, s domain.SetSummary) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO set_results (run_id, set_name, blobs, radius, bbox, preassigned, unpaired, slices, partitions)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, s.Set, s.Blobs,
		s.Pairings[domain.PairRadius], s.Pairings[domain.PairBoundingBox],
		s.Pairings[domain.PairPreassigned], s.Pairings[domain.PairUnpaired],
		s.Slices, strings.Join(s.Partitions, ","))
	if err != nil {
		return fmt.Errorf("record set %s: %w", s.Set, err)
	}
	for _, lc := range s.Labels {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO label_counts (run_id, set_name, label, code, blobs) VALUES (?, ?, ?, ?, ?)`,
			runID, s.Set, lc.Label.Name, lc.Label.Code, lc.Blobs)
		if err != nil {
			return fmt.Errorf("record label %s for set %s: %w", lc.Label.Name, s.Set, err)
		}
	}
	return tx.Commit()
}

// FinishRun marks a run succeeded, or failed with runErr.
func (l *Ledger) FinishRun(ctx context.Context, runID string, runErr error) error {
	status, msg := domain.RunSucceeded, sql.NullString{}
	if runErr != nil {
		status, msg = domain.RunFailed, sql.NullString{String: runErr.Error(), Valid: true}
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE id = ?`,
		domain.Now().UTC().Format(time.RFC3339Nano), string(status), msg, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: unknown run %s", runID)
	}
	return nil
}

// Run loads one run with its set summaries.
func (l *Ledger) Run(ctx context.Context, runID string) (domain.Run, error) {
	var (
		r                domain.Run
		started, status  string
		finished, errMsg sql.NullString
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT id, job_file, radius_deg, started_at, finished_at, status, error FROM runs WHERE id = ?`, runID).
		Scan(&r.ID, &r.JobFile, &r.RadiusDeg, &started, &finished, &status, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Run{}, fmt.Errorf("unknown run %s", runID)
	}
	if err != nil {
		return domain.Run{}, err
	}
	r.Status = domain.RunStatus(status)
	r.Error = errMsg.String
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT set_name, blobs, radius, bbox, preassigned, unpaired, slices, partitions
		 FROM set_results WHERE run_id = ? ORDER BY set_name`, runID)
	if err != nil {
		return domain.Run{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			s                           domain.SetSummary
			radius, bbox, pre, unpaired int
			partitions                  string
		)
		if err := rows.Scan(&s.Set, &s.Blobs, &radius, &bbox, &pre, &unpaired, &s.Slices, &partitions); err != nil {
			return domain.Run{}, err
		}
		s.Pairings = map[domain.PairMethod]int{
			domain.PairRadius:      radius,
			domain.PairBoundingBox: bbox,
			domain.PairPreassigned: pre,
			domain.PairUnpaired:    unpaired,
		}
		if partitions != "" {
			s.Partitions = strings.Split(partitions, ",")
		}
		r.Sets = append(r.Sets, s)
	}
	if err := rows.Err(); err != nil {
		return domain.Run{}, err
	}

	for i := range r.Sets {
		if r.Sets[i].Labels, err = l.labelCounts(ctx, runID, r.Sets[i].Set); err != nil {
			return domain.Run{}, err
		}
	}
	return r, nil
}

func (l *Ledger) labelCounts(ctx context.Context, runID, set string) ([]domain.LabelCount, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT label, code, blobs FROM label_counts WHERE run_id = ? AND set_name = ? ORDER BY code`, runID, set)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.LabelCount
	for rows.Next() {
		var lc domain.LabelCount
		if err := rows.Scan(&lc.Label.Name, &lc.Label.Code, &lc.Blobs); err != nil {
			return nil, err
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}
