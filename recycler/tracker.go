package recycler

import (
	"sort"
	"strings"
	"sync"
	"time"

	"slotrecycler/bus"
)

// Clock returns a monotonic reading in whole seconds. Only differences
// between readings are meaningful.
type Clock func() int64

// MonotonicClock returns a Clock backed by the runtime's monotonic timer.
func MonotonicClock() Clock {
	start := time.Now()
	return func() int64 {
		return int64(time.Since(start) / time.Second)
	}
}

// Reason names the cause of the most recent activity on a slot.
type Reason string

const (
	ReasonFirstSeen      Reason = "firstSeen"
	ReasonAddressChanged Reason = "addressChanged"
	ReasonSpeedChanged   Reason = "speedChanged"
	ReasonStatusChanged  Reason = "statusChanged"
	ReasonOwnerChanged   Reason = "ownerChanged"
)

// TrackedState is the recycler's history for one slot.
type TrackedState struct {
	Slot         int      `json:"slot"`
	Address      int      `json:"address"`
	Speed        int      `json:"speed"`
	Status       string   `json:"status"`
	Owner        *int     `json:"owner,omitempty"`
	LastActivity int64    `json:"last_activity"`
	Reasons      []Reason `json:"reasons"`
	ConsistID    int      `json:"consist_id,omitempty"`
}

// Idle returns the seconds since the slot's last activity.
func (s *TrackedState) Idle(now int64) int64 {
	return now - s.LastActivity
}

func (s *TrackedState) ReasonString() string {
	parts := make([]string, len(s.Reasons))
	for i, r := range s.Reasons {
		parts[i] = string(r)
	}
	return strings.Join(parts, "+")
}

// Tracker keeps per-slot history across polls. Observe is called only from
// the pass worker; the mutex lets readers take snapshots concurrently.
type Tracker struct {
	mu     sync.Mutex
	clock  Clock
	states map[int]*TrackedState
}

func NewTracker(clock Clock) *Tracker {
	if clock == nil {
		clock = MonotonicClock()
	}
	return &Tracker{
		clock:  clock,
		states: make(map[int]*TrackedState),
	}
}

// Observe folds one record into the slot's history and returns a copy of the
// updated state, or nil when the record cannot be classified (no slot number,
// or no usable address). An unusable record leaves any earlier history for
// the slot untouched.
func (t *Tracker) Observe(rec bus.ResourceRecord) *TrackedState {
	slot, ok := rec.SlotNumber()
	if !ok {
		return nil
	}
	addr := rec.AddressValue()
	if addr <= 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	st, exists := t.states[slot]
	if !exists {
		st = &TrackedState{
			Slot:         slot,
			Address:      addr,
			Speed:        rec.Speed,
			Status:       rec.Status,
			Owner:        copyInt(rec.Owner),
			LastActivity: now,
			Reasons:      []Reason{ReasonFirstSeen},
			ConsistID:    rec.Consist(),
		}
		t.states[slot] = st
		return st.clone()
	}

	if st.Address != addr {
		*st = TrackedState{
			Slot:         slot,
			Address:      addr,
			Speed:        rec.Speed,
			Status:       rec.Status,
			Owner:        copyInt(rec.Owner),
			LastActivity: now,
			Reasons:      []Reason{ReasonAddressChanged},
			ConsistID:    rec.Consist(),
		}
		return st.clone()
	}

	var reasons []Reason
	if st.Speed != rec.Speed {
		st.Speed = rec.Speed
		reasons = append(reasons, ReasonSpeedChanged)
	}
	if st.Status != rec.Status {
		st.Status = rec.Status
		reasons = append(reasons, ReasonStatusChanged)
	}
	if !sameOwner(st.Owner, rec.Owner) {
		st.Owner = copyInt(rec.Owner)
		reasons = append(reasons, ReasonOwnerChanged)
	}
	if len(reasons) > 0 {
		st.LastActivity = now
		st.Reasons = reasons
	}
	st.ConsistID = rec.Consist()
	return st.clone()
}

// Get returns a copy of the slot's state.
func (t *Tracker) Get(slot int) (*TrackedState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[slot]
	if !ok {
		return nil, false
	}
	return st.clone(), true
}

// Snapshot returns copies of all tracked states ordered by slot.
func (t *Tracker) Snapshot() []TrackedState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TrackedState, 0, len(t.states))
	for _, st := range t.states {
		out = append(out, *st.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}

// Now reads the tracker's clock.
func (t *Tracker) Now() int64 { return t.clock() }

func (s *TrackedState) clone() *TrackedState {
	c := *s
	c.Owner = copyInt(s.Owner)
	c.Reasons = append([]Reason(nil), s.Reasons...)
	return &c
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func sameOwner(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
