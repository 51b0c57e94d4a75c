package store

import (
	"time"
)

type Pass struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Observed   int       `json:"observed"`
	Tracked    int       `json:"tracked"`
	Consists   int       `json:"consists"`
	Reclaimed  int       `json:"reclaimed"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

const passColumns = `id, run_id, started_at, duration_ms, observed, tracked, consists, reclaimed, failed, error, created_at`

func (db *DB) RecordPass(p *Pass) error {
	res, err := db.Exec(db.Q(`INSERT INTO passes (run_id, started_at, duration_ms, observed, tracked, consists, reclaimed, failed, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.RunID, db.timeArg(p.StartedAt), p.DurationMS, p.Observed, p.Tracked, p.Consists, p.Reclaimed, p.Failed, p.Error)
	if err != nil {
		return err
	}
	if db.driver == "sqlite" {
		p.ID, _ = res.LastInsertId()
	}
	return nil
}

func (db *DB) GetPass(runID string) (*Pass, error) {
	row := db.QueryRow(db.Q(`SELECT `+passColumns+` FROM passes WHERE run_id=?`), runID)
	return scanPass(row)
}

// ListPasses returns the most recent passes first.
func (db *DB) ListPasses(limit int) ([]*Pass, error) {
	rows, err := db.Query(db.Q(`SELECT `+passColumns+` FROM passes ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var passes []*Pass
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		passes = append(passes, p)
	}
	return passes, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPass(s scanner) (*Pass, error) {
	var p Pass
	var startedAt, createdAt any
	if err := s.Scan(&p.ID, &p.RunID, &startedAt, &p.DurationMS, &p.Observed, &p.Tracked,
		&p.Consists, &p.Reclaimed, &p.Failed, &p.Error, &createdAt); err != nil {
		return nil, err
	}
	p.StartedAt = parseTime(startedAt)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}
