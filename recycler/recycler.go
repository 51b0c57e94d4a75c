package recycler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"slotrecycler/bus"
)

type LogFunc func(format string, args ...any)

// Options configures a Recycler.
type Options struct {
	IdleTimeout        time.Duration
	ConsistIdleTimeout time.Duration
	Ordering           Ordering
	IncludeConsists    bool
	IncludeHandheld    bool
	AllowedThrottleIDs []int
	DryRun             bool
	SkipSystemSlots    bool
	ProtectedFile      string
}

// Observer receives pass results. Implementations must not block for long;
// they run on the pass worker.
type Observer interface {
	SlotReclaimed(r Reclamation)
	PassCompleted(s PassSummary)
}

// Reclamation records the actions taken on one slot.
type Reclamation struct {
	RunID     string    `json:"run_id"`
	Slot      int       `json:"slot"`
	Address   int       `json:"address"`
	ConsistID int       `json:"consist_id,omitempty"`
	Scope     string    `json:"scope"` // "loco" or "consist"
	Owner     *int      `json:"owner,omitempty"`
	Idle      int64     `json:"idle_seconds"`
	DryRun    bool      `json:"dry_run"`
	Attempts  []Attempt `json:"attempts"`
	OK        bool      `json:"ok"`
	At        time.Time `json:"at"`
}

// PassSummary describes one completed pass.
type PassSummary struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Observed  int           `json:"observed"`
	Tracked   int           `json:"tracked"`
	Consists  int           `json:"consists"`
	Reclaimed int           `json:"reclaimed"`
	Failed    int           `json:"failed"`
	Error     string        `json:"error,omitempty"`
}

// Recycler runs reclamation passes over a bus backend. It owns the tracked
// state; passes are serialized.
type Recycler struct {
	backend  bus.Backend
	reader   *SnapshotReader
	tracker  *Tracker
	policy   Policy
	executor *Executor
	opts     Options
	observer Observer
	logFn    LogFunc

	passMu sync.Mutex
}

func New(backend bus.Backend, opts Options, clock Clock, observer Observer, logFn LogFunc) *Recycler {
	if logFn == nil {
		logFn = log.Printf
	}
	allowed := make(map[int]struct{}, len(opts.AllowedThrottleIDs))
	for _, id := range opts.AllowedThrottleIDs {
		allowed[id] = struct{}{}
	}
	return &Recycler{
		backend: backend,
		reader:  NewSnapshotReader(backend, opts.SkipSystemSlots),
		tracker: NewTracker(clock),
		policy: Policy{
			IdleTimeout:        int64(opts.IdleTimeout / time.Second),
			ConsistIdleTimeout: int64(opts.ConsistIdleTimeout / time.Second),
			IncludeConsists:    opts.IncludeConsists,
			IncludeHandheld:    opts.IncludeHandheld,
			AllowedOwners:      allowed,
		},
		executor: NewExecutor(backend, opts.Ordering, opts.DryRun),
		opts:     opts,
		observer: observer,
		logFn:    logFn,
	}
}

func (r *Recycler) Tracker() *Tracker { return r.tracker }
func (r *Recycler) Options() Options  { return r.opts }

// RunPass performs one full pass: reload protected addresses, read the slot
// table, update history, reclaim eligible consists, then eligible single
// slots. Per-slot failures are logged and never abort the pass.
func (r *Recycler) RunPass(ctx context.Context) (*PassSummary, error) {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	sum := &PassSummary{RunID: uuid.NewString(), StartedAt: time.Now()}
	err := r.runPass(ctx, sum)
	sum.Duration = time.Since(sum.StartedAt)
	if err != nil {
		sum.Error = err.Error()
	}
	if r.observer != nil {
		r.observer.PassCompleted(*sum)
	}
	return sum, err
}

func (r *Recycler) runPass(ctx context.Context, sum *PassSummary) error {
	protected, err := LoadProtected(r.opts.ProtectedFile)
	if err != nil {
		return fmt.Errorf("protected addresses: %w", err)
	}

	recs, total, err := r.reader.Read(ctx)
	if err != nil {
		return fmt.Errorf("read slots: %w", err)
	}
	sum.Observed = total
	if total == 0 {
		r.logFn("recycler: no slots retrieved (gateway has no slot data yet)")
		return nil
	}

	live := make([]bus.ResourceRecord, 0, len(recs))
	for _, rec := range recs {
		if st := r.tracker.Observe(rec); st != nil {
			live = append(live, rec)
		}
	}
	sum.Tracked = len(live)
	now := r.tracker.Now()

	handled := make(map[int]struct{})
	if r.policy.IncludeConsists {
		groups := GroupConsists(live, r.tracker)
		sum.Consists = len(groups)
		for _, g := range groups {
			d := r.policy.EvaluateGroup(g, protected, now)
			if !d.Eligible {
				continue
			}
			r.logFn("recycler: CONSIST idle -> cid=%d members=%d idle=%ds : reclaiming", g.ConsistID, len(g.Members), d.Idle)
			for _, m := range g.Members {
				rc := r.reclaim(ctx, sum, m.Record, m.State, "consist", d.Idle)
				r.logFn("recycler:   member addr=%d slot=%d %s", rc.Address, rc.Slot, FormatAttempts(rc.Attempts))
				handled[rc.Slot] = struct{}{}
			}
		}
	}

	for _, rec := range live {
		slot, _ := rec.SlotNumber()
		if _, ok := handled[slot]; ok {
			continue
		}
		st, ok := r.tracker.Get(slot)
		if !ok {
			continue
		}
		d := r.policy.EvaluateSingle(rec, st, protected, now)
		if !d.Eligible {
			continue
		}
		rc := r.reclaim(ctx, sum, rec, st, "loco", d.Idle)
		r.logFn("recycler: LOCO idle -> addr=%d slot=%d idle=%ds owner=%s %s",
			rc.Address, rc.Slot, d.Idle, formatOwner(st.Owner), FormatAttempts(rc.Attempts))
	}
	return nil
}

func (r *Recycler) reclaim(ctx context.Context, sum *PassSummary, rec bus.ResourceRecord, st *TrackedState, scope string, idle int64) Reclamation {
	attempts := r.executor.Reclaim(ctx, rec)
	rc := Reclamation{
		RunID:     sum.RunID,
		Slot:      st.Slot,
		Address:   st.Address,
		ConsistID: rec.Consist(),
		Scope:     scope,
		Owner:     copyInt(st.Owner),
		Idle:      idle,
		DryRun:    r.opts.DryRun,
		Attempts:  attempts,
		OK:        Succeeded(attempts),
		At:        time.Now(),
	}
	if rc.OK {
		sum.Reclaimed++
	} else {
		sum.Failed++
	}
	if r.observer != nil {
		r.observer.SlotReclaimed(rc)
	}
	return rc
}

// FormatAttempts renders attempts as "dispatch=true (dispatched) ...".
func FormatAttempts(attempts []Attempt) string {
	parts := make([]string, len(attempts))
	for i, a := range attempts {
		parts[i] = fmt.Sprintf("%s=%v (%s)", a.Action, a.OK, a.Message)
	}
	return strings.Join(parts, " ")
}

func formatOwner(owner *int) string {
	if owner == nil {
		return "unknown"
	}
	return fmt.Sprintf("%#04x", *owner)
}
