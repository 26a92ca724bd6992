package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run records one completed report-generation run.
type Run struct {
	ID            string
	Topic         string
	Iterations    int
	FinalScore    float64
	TerminalState string
	EvidenceCount int
	ReportPath    string
	CreatedAt     time.Time
}

// SaveRun persists a run record, assigning it a fresh ID, and returns
// the stored row.
func (db *DB) SaveRun(run Run) (Run, error) {
	run.ID = uuid.NewString()
	err := db.conn.QueryRow(`
		INSERT INTO runs (id, topic, iterations, final_score, terminal_state, evidence_count, report_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at`,
		run.ID, run.Topic, run.Iterations, run.FinalScore, run.TerminalState,
		run.EvidenceCount, run.ReportPath).Scan(&runScanTime{&run.CreatedAt})
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// GetRun fetches a single run by ID.
func (db *DB) GetRun(id string) (Run, error) {
	row := db.conn.QueryRow(`
		SELECT id, topic, iterations, final_score, terminal_state, evidence_count, report_path, created_at
		FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, topic, iterations, final_score, terminal_state, evidence_count, report_path, created_at
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var createdAt string
	err := row.Scan(&run.ID, &run.Topic, &run.Iterations, &run.FinalScore,
		&run.TerminalState, &run.EvidenceCount, &run.ReportPath, &createdAt)
	if err == sql.ErrNoRows {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse run created_at: %w", err)
	}
	return run, nil
}

// runScanTime lets QueryRow...RETURNING scan the TEXT timestamp straight
// into a time.Time field.
type runScanTime struct {
	t *time.Time
}

func (s *runScanTime) Scan(src any) error {
	raw, ok := src.(string)
	if !ok {
		return fmt.Errorf("unexpected created_at type %T", src)
	}
	t, err := parseTime(raw)
	if err != nil {
		return err
	}
	*s.t = t
	return nil
}
