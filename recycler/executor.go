package recycler

import (
	"context"
	"fmt"

	"slotrecycler/bus"
)

// Ordering selects which reclamation actions are tried.
type Ordering string

const (
	DispatchThenRelease Ordering = "dispatch_then_release"
	ReleaseOnly         Ordering = "release_only"
)

// Attempt is one reclamation action and its outcome.
type Attempt struct {
	Action  string `json:"action"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Executor performs dispatch/release against a bus backend.
type Executor struct {
	backend  bus.Backend
	ordering Ordering
	dryRun   bool
}

func NewExecutor(backend bus.Backend, ordering Ordering, dryRun bool) *Executor {
	if ordering == "" {
		ordering = DispatchThenRelease
	}
	return &Executor{backend: backend, ordering: ordering, dryRun: dryRun}
}

// Reclaim runs the configured action sequence for one slot. With
// dispatch-then-release, release is attempted only if dispatch failed.
func (x *Executor) Reclaim(ctx context.Context, rec bus.ResourceRecord) []Attempt {
	if x.ordering == ReleaseOnly {
		return []Attempt{x.release(ctx, rec)}
	}
	first := x.dispatch(ctx, rec)
	if first.OK {
		return []Attempt{first}
	}
	return []Attempt{first, x.release(ctx, rec)}
}

func (x *Executor) dispatch(ctx context.Context, rec bus.ResourceRecord) Attempt {
	action, ok := x.backend.BuildDispatchAction(rec)
	if !ok {
		return Attempt{Action: bus.ActionDispatch, Message: "dispatch unavailable"}
	}
	return x.send(ctx, action, bus.ActionDispatch, "dispatched")
}

func (x *Executor) release(ctx context.Context, rec bus.ResourceRecord) Attempt {
	action, ok := x.backend.BuildReleaseAction(rec)
	if !ok {
		return Attempt{Action: bus.ActionRelease, Message: "release unavailable"}
	}
	return x.send(ctx, action, bus.ActionRelease, "released")
}

func (x *Executor) send(ctx context.Context, action bus.Action, kind, done string) Attempt {
	if x.dryRun {
		return Attempt{Action: kind, OK: true, Message: "dry-run " + kind}
	}
	if err := x.backend.SendAction(ctx, action); err != nil {
		return Attempt{Action: kind, Message: fmt.Sprintf("%s send failed: %v", kind, err)}
	}
	return Attempt{Action: kind, OK: true, Message: done}
}

// Succeeded reports whether any attempt in the sequence succeeded.
func Succeeded(attempts []Attempt) bool {
	for _, a := range attempts {
		if a.OK {
			return true
		}
	}
	return false
}
