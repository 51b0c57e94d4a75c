package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"slotrecycler/config"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: dbPath},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})
	return db
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(&config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestRebind(t *testing.T) {
	got := Rebind(`SELECT * FROM reclamations WHERE run_id=? AND slot=? LIMIT ?`)
	want := `SELECT * FROM reclamations WHERE run_id=$1 AND slot=$2 LIMIT $3`
	if got != want {
		t.Errorf("Rebind = %q, want %q", got, want)
	}
}

func TestParseTime(t *testing.T) {
	if !parseTime(nil).IsZero() || !parseTime("").IsZero() {
		t.Error("empty values should parse to zero time")
	}
	got := parseTime("2026-03-01 08:30:00")
	if got.Hour() != 8 || got.Minute() != 30 || got.Location() != time.Local {
		t.Errorf("sqlite layout = %v", got)
	}
	ts := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	if !parseTime(ts).Equal(ts) {
		t.Error("time.Time should pass through")
	}
	if !parseTime(ts.Format(time.RFC3339Nano)).Equal(ts) {
		t.Error("RFC 3339 should parse")
	}
}

// --- Passes ---

func TestPassRoundTrip(t *testing.T) {
	db := testDB(t)
	started := time.Now().Truncate(time.Second)
	p := &Pass{RunID: "run-1", StartedAt: started, DurationMS: 42, Observed: 120, Tracked: 9, Consists: 1, Reclaimed: 2, Failed: 1}
	if err := db.RecordPass(p); err != nil {
		t.Fatalf("record: %v", err)
	}
	if p.ID == 0 {
		t.Fatal("ID should be assigned")
	}

	got, err := db.GetPass("run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if got.Observed != 120 || got.Tracked != 9 || got.Reclaimed != 2 || got.Failed != 1 || got.DurationMS != 42 {
		t.Errorf("pass = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	if err := db.RecordPass(&Pass{RunID: "run-1", StartedAt: started}); err == nil {
		t.Error("duplicate run id should be rejected")
	}
}

func TestListPassesNewestFirst(t *testing.T) {
	db := testDB(t)
	for _, id := range []string{"a", "b", "c"} {
		if err := db.RecordPass(&Pass{RunID: id, StartedAt: time.Now(), Error: "x"}); err != nil {
			t.Fatal(err)
		}
	}
	passes, err := db.ListPasses(2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(passes) != 2 || passes[0].RunID != "c" || passes[1].RunID != "b" {
		t.Fatalf("passes = %+v", passes)
	}
	if passes[0].Error != "x" {
		t.Errorf("Error = %q", passes[0].Error)
	}
}

func TestGetPassNotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetPass("missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

// --- Reclamations ---

func TestReclamationRoundTrip(t *testing.T) {
	db := testDB(t)
	owner := 0x12
	recs := []*Reclamation{
		{RunID: "r1", Slot: 3, Address: 1234, Scope: "loco", Owner: &owner, IdleSeconds: 301, Actions: "dispatch=true (dispatched)", OK: true},
		{RunID: "r1", Slot: 4, Address: 10, ConsistID: 7, Scope: "consist", IdleSeconds: 400, DryRun: true, Actions: "dispatch=true (dry-run dispatch)", OK: true},
		{RunID: "r2", Slot: 3, Address: 1234, Scope: "loco", IdleSeconds: 500, Actions: "dispatch=false (send failed: timeout) release=false (send failed: timeout)"},
	}
	for _, r := range recs {
		if err := db.RecordReclamation(r); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	byRun, err := db.ListReclamationsByRun("r1")
	if err != nil {
		t.Fatalf("by run: %v", err)
	}
	if len(byRun) != 2 {
		t.Fatalf("by run = %d, want 2", len(byRun))
	}
	first := byRun[0]
	if first.Owner == nil || *first.Owner != 0x12 || !first.OK || first.DryRun {
		t.Errorf("first = %+v", first)
	}
	second := byRun[1]
	if second.Owner != nil || second.ConsistID != 7 || second.Scope != "consist" || !second.DryRun {
		t.Errorf("second = %+v", second)
	}

	byAddr, err := db.ListReclamationsByAddress(1234, 10)
	if err != nil {
		t.Fatalf("by address: %v", err)
	}
	if len(byAddr) != 2 || byAddr[0].RunID != "r2" || byAddr[0].OK {
		t.Errorf("by address = %+v", byAddr)
	}

	all, err := db.ListReclamations(1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].RunID != "r2" {
		t.Errorf("list = %+v", all)
	}
}

// --- Audit ---

func TestAuditLog(t *testing.T) {
	db := testDB(t)
	if err := db.AppendAudit(EntityRecycler, 0, "started", "stopped", "running", "admin"); err != nil {
		t.Fatal(err)
	}
	if err := db.AppendAudit(EntitySlot, 5, "reclaimed", "1234", "", "system"); err != nil {
		t.Fatal(err)
	}

	entries, err := db.ListAuditLog(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].EntityType != EntitySlot {
		t.Fatalf("entries = %+v", entries)
	}

	slot, err := db.ListEntityAudit(EntitySlot, 5, 10)
	if err != nil {
		t.Fatalf("entity: %v", err)
	}
	if len(slot) != 1 || slot[0].Action != "reclaimed" || slot[0].OldValue != "1234" {
		t.Errorf("slot audit = %+v", slot)
	}
}

// --- Outbox ---

func TestOutboxLifecycle(t *testing.T) {
	db := testDB(t)
	if err := db.EnqueueOutbox("slotrecycler.events", []byte(`{"a":1}`), "slot.reclaimed", "club"); err != nil {
		t.Fatal(err)
	}
	if err := db.EnqueueOutbox("slotrecycler.events", []byte(`{"b":2}`), "pass.completed", "club"); err != nil {
		t.Fatal(err)
	}

	pending, err := db.ListPendingOutbox(10, 5)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 || pending[0].MsgType != "slot.reclaimed" || string(pending[0].Payload) != `{"a":1}` {
		t.Fatalf("pending = %+v", pending)
	}

	if err := db.AckOutbox(pending[0].ID); err != nil {
		t.Fatal(err)
	}
	msg, err := db.GetOutboxMessage(pending[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if msg.SentAt == nil {
		t.Error("SentAt should be set after ack")
	}

	for i := 0; i < 5; i++ {
		if err := db.IncrementOutboxRetries(pending[1].ID); err != nil {
			t.Fatal(err)
		}
	}
	pending, err = db.ListPendingOutbox(10, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after ack and retries exhausted = %+v", pending)
	}

	n, err := db.PurgeSentOutbox(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
}

// --- Admin users ---

func TestAdminUsers(t *testing.T) {
	db := testDB(t)
	exists, err := db.AdminUserExists()
	if err != nil || exists {
		t.Fatalf("exists = %v, err = %v", exists, err)
	}
	if err := db.CreateAdminUser("admin", "hash1"); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateAdminUser("admin", "hash2"); err == nil {
		t.Error("duplicate username should be rejected")
	}
	if err := db.UpdateAdminPassword("admin", "hash3"); err != nil {
		t.Fatal(err)
	}
	u, err := db.GetAdminUser("admin")
	if err != nil {
		t.Fatal(err)
	}
	if u.PasswordHash != "hash3" || u.CreatedAt.IsZero() {
		t.Errorf("user = %+v", u)
	}
	exists, _ = db.AdminUserExists()
	if !exists {
		t.Error("expected admin to exist")
	}
}
