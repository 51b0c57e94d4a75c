package store

import (
	"database/sql"
	"time"
)

// Reclamation is one slot acted on during a pass. Actions holds the
// attempted actions in order, e.g. "dispatch=false (dispatch unavailable) release=true (released)".
type Reclamation struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	Slot        int       `json:"slot"`
	Address     int       `json:"address"`
	ConsistID   int       `json:"consist_id"`
	Scope       string    `json:"scope"`
	Owner       *int      `json:"owner,omitempty"`
	IdleSeconds int64     `json:"idle_seconds"`
	DryRun      bool      `json:"dry_run"`
	Actions     string    `json:"actions"`
	OK          bool      `json:"ok"`
	CreatedAt   time.Time `json:"created_at"`
}

const reclamationColumns = `id, run_id, slot, address, consist_id, scope, owner, idle_seconds, dry_run, actions, ok, created_at`

func (db *DB) RecordReclamation(r *Reclamation) error {
	var owner sql.NullInt64
	if r.Owner != nil {
		owner = sql.NullInt64{Int64: int64(*r.Owner), Valid: true}
	}
	res, err := db.Exec(db.Q(`INSERT INTO reclamations (run_id, slot, address, consist_id, scope, owner, idle_seconds, dry_run, actions, ok) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.RunID, r.Slot, r.Address, r.ConsistID, r.Scope, owner, r.IdleSeconds, r.DryRun, r.Actions, r.OK)
	if err != nil {
		return err
	}
	if db.driver == "sqlite" {
		r.ID, _ = res.LastInsertId()
	}
	return nil
}

// ListReclamations returns the most recent reclamations first.
func (db *DB) ListReclamations(limit int) ([]*Reclamation, error) {
	return db.queryReclamations(`SELECT `+reclamationColumns+` FROM reclamations ORDER BY id DESC LIMIT ?`, limit)
}

func (db *DB) ListReclamationsByRun(runID string) ([]*Reclamation, error) {
	return db.queryReclamations(`SELECT `+reclamationColumns+` FROM reclamations WHERE run_id=? ORDER BY id`, runID)
}

func (db *DB) ListReclamationsByAddress(address, limit int) ([]*Reclamation, error) {
	return db.queryReclamations(`SELECT `+reclamationColumns+` FROM reclamations WHERE address=? ORDER BY id DESC LIMIT ?`, address, limit)
}

func (db *DB) queryReclamations(query string, args ...any) ([]*Reclamation, error) {
	rows, err := db.Query(db.Q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Reclamation
	for rows.Next() {
		var r Reclamation
		var owner sql.NullInt64
		var createdAt any
		if err := rows.Scan(&r.ID, &r.RunID, &r.Slot, &r.Address, &r.ConsistID, &r.Scope, &owner,
			&r.IdleSeconds, &r.DryRun, &r.Actions, &r.OK, &createdAt); err != nil {
			return nil, err
		}
		if owner.Valid {
			v := int(owner.Int64)
			r.Owner = &v
		}
		r.CreatedAt = parseTime(createdAt)
		out = append(out, &r)
	}
	return out, rows.Err()
}
