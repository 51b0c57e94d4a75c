package recycler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"slotrecycler/bus"
)

// --- Fake clock ---

type fakeClock struct {
	mu  sync.Mutex
	now int64
}

func (c *fakeClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t int64) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d int64) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// --- Fake bus backend ---

type fakeBackend struct {
	mu         sync.Mutex
	recs       []bus.ResourceRecord
	sent       []bus.Action
	listErr    error
	sendErr    error
	noDispatch bool
	noRelease  bool
}

func (b *fakeBackend) set(recs ...bus.ResourceRecord) {
	b.mu.Lock()
	b.recs = recs
	b.mu.Unlock()
}

func (b *fakeBackend) ListResources(_ context.Context) ([]bus.ResourceRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]bus.ResourceRecord(nil), b.recs...), nil
}

func (b *fakeBackend) SendAction(_ context.Context, a bus.Action) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, a)
	return nil
}

func (b *fakeBackend) BuildDispatchAction(rec bus.ResourceRecord) (bus.Action, bool) {
	if b.noDispatch || rec.ID == nil {
		return bus.Action{}, false
	}
	return bus.Action{Kind: bus.ActionDispatch, Slot: *rec.ID}, true
}

func (b *fakeBackend) BuildReleaseAction(rec bus.ResourceRecord) (bus.Action, bool) {
	if b.noRelease || rec.ID == nil {
		return bus.Action{}, false
	}
	return bus.Action{Kind: bus.ActionRelease, Slot: *rec.ID}, true
}

func (b *fakeBackend) Ping() error  { return nil }
func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) sentActions() []bus.Action {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bus.Action(nil), b.sent...)
}

var errBusDown = errors.New("bus down")

// --- Records ---

func loco(slot, addr, speed int) bus.ResourceRecord {
	return bus.ResourceRecord{ID: bus.Int(slot), Address: bus.Int(addr), Speed: speed, Status: "in_use/none"}
}

func withOwner(r bus.ResourceRecord, owner int) bus.ResourceRecord {
	r.Owner = bus.Int(owner)
	return r
}

func inConsist(r bus.ResourceRecord, cid int) bus.ResourceRecord {
	r.ConsistID = bus.Int(cid)
	return r
}

// --- Observer and log capture ---

type recordingObserver struct {
	mu        sync.Mutex
	reclaimed []Reclamation
	passes    []PassSummary
}

func (o *recordingObserver) SlotReclaimed(r Reclamation) {
	o.mu.Lock()
	o.reclaimed = append(o.reclaimed, r)
	o.mu.Unlock()
}

func (o *recordingObserver) PassCompleted(s PassSummary) {
	o.mu.Lock()
	o.passes = append(o.passes, s)
	o.mu.Unlock()
}

type logCapture struct {
	mu    sync.Mutex
	lines []string
}

func (l *logCapture) logf(format string, args ...any) {
	l.mu.Lock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *logCapture) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}
