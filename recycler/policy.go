package recycler

import "slotrecycler/bus"

// Skip reasons reported with ineligible decisions.
const (
	SkipUnresolved      = "unresolved member"
	SkipNoAddress       = "no address"
	SkipProtected       = "protected"
	SkipMoving          = "moving"
	SkipNotIdle         = "not idle"
	SkipOwner           = "owner not allowed"
	SkipConsistDisabled = "consist handling disabled"
)

// Policy decides whether a slot or consist may be reclaimed.
type Policy struct {
	IdleTimeout        int64 // seconds, single slots
	ConsistIdleTimeout int64 // seconds, consist groups
	IncludeConsists    bool
	IncludeHandheld    bool
	AllowedOwners      map[int]struct{}
}

// Decision is the outcome of evaluating one slot or group.
type Decision struct {
	Eligible bool
	Idle     int64
	Skip     string
}

func skip(reason string, idle int64) Decision { return Decision{Skip: reason, Idle: idle} }

// AllowedOwner reports whether a slot held by owner may be reclaimed. With
// handhelds excluded and no allow-list configured nothing qualifies: an
// unverifiable owner is never reclaimed.
func (p Policy) AllowedOwner(owner *int) bool {
	if p.IncludeHandheld {
		return true
	}
	if len(p.AllowedOwners) > 0 {
		if owner == nil {
			return false
		}
		_, ok := p.AllowedOwners[*owner]
		return ok
	}
	return false
}

// EvaluateGroup applies the consist rules: all members resolved, none
// protected, all stopped, least idle member past the consist timeout, and
// every owner allowed.
func (p Policy) EvaluateGroup(g ConsistGroup, protected ProtectedSet, now int64) Decision {
	if !g.Resolved() {
		return skip(SkipUnresolved, 0)
	}
	for _, m := range g.Members {
		if protected.Contains(m.State.Address) {
			return skip(SkipProtected, 0)
		}
	}
	for _, m := range g.Members {
		if m.Record.Speed != 0 {
			return skip(SkipMoving, 0)
		}
	}
	idle := now - g.LastActivity()
	if idle <= p.ConsistIdleTimeout {
		return skip(SkipNotIdle, idle)
	}
	if !p.IncludeHandheld {
		for _, m := range g.Members {
			if !p.AllowedOwner(m.State.Owner) {
				return skip(SkipOwner, idle)
			}
		}
	}
	return Decision{Eligible: true, Idle: idle}
}

// EvaluateSingle applies the single-slot rules. With consist handling
// disabled, consist members are skipped since their membership cannot be
// evaluated alone. With it enabled, members of a group that was not reclaimed
// are judged like any other slot; the caller excludes reclaimed members.
func (p Policy) EvaluateSingle(rec bus.ResourceRecord, st *TrackedState, protected ProtectedSet, now int64) Decision {
	if st == nil {
		return skip(SkipUnresolved, 0)
	}
	if st.Address <= 0 {
		return skip(SkipNoAddress, 0)
	}
	if protected.Contains(st.Address) {
		return skip(SkipProtected, 0)
	}
	if rec.Speed != 0 {
		return skip(SkipMoving, 0)
	}
	idle := st.Idle(now)
	if idle <= p.IdleTimeout {
		return skip(SkipNotIdle, idle)
	}
	if !p.AllowedOwner(st.Owner) {
		return skip(SkipOwner, idle)
	}
	if rec.Consist() != 0 && !p.IncludeConsists {
		return skip(SkipConsistDisabled, idle)
	}
	return Decision{Eligible: true, Idle: idle}
}
