package recycler

import (
	"sort"

	"slotrecycler/bus"
)

// Member is one slot of a consist together with its tracked history.
// State is nil when the slot could not be resolved in the tracker.
type Member struct {
	Record bus.ResourceRecord
	State  *TrackedState
}

// ConsistGroup is every live slot sharing one consist identity.
type ConsistGroup struct {
	ConsistID int
	Members   []Member
}

// Resolved reports whether every member has a slot number and tracked state.
func (g ConsistGroup) Resolved() bool {
	if len(g.Members) == 0 {
		return false
	}
	for _, m := range g.Members {
		if _, ok := m.Record.SlotNumber(); !ok || m.State == nil {
			return false
		}
	}
	return true
}

// LastActivity returns the most recent activity time across members, which
// makes the least idle member govern the group.
func (g ConsistGroup) LastActivity() int64 {
	var last int64
	seen := false
	for _, m := range g.Members {
		if m.State == nil {
			continue
		}
		if !seen || m.State.LastActivity > last {
			last = m.State.LastActivity
			seen = true
		}
	}
	return last
}

// GroupConsists partitions records with a nonzero consist identity into
// groups ordered by consist id; members are ordered by slot number.
// Records outside any consist are not returned.
func GroupConsists(recs []bus.ResourceRecord, tracker *Tracker) []ConsistGroup {
	byID := make(map[int]*ConsistGroup)
	for _, rec := range recs {
		cid := rec.Consist()
		if cid == 0 {
			continue
		}
		g, ok := byID[cid]
		if !ok {
			g = &ConsistGroup{ConsistID: cid}
			byID[cid] = g
		}
		m := Member{Record: rec}
		if slot, ok := rec.SlotNumber(); ok {
			if st, ok := tracker.Get(slot); ok {
				m.State = st
			}
		}
		g.Members = append(g.Members, m)
	}

	groups := make([]ConsistGroup, 0, len(byID))
	for _, g := range byID {
		sort.SliceStable(g.Members, func(i, j int) bool {
			a, _ := g.Members[i].Record.SlotNumber()
			b, _ := g.Members[j].Record.SlotNumber()
			return a < b
		})
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ConsistID < groups[j].ConsistID })
	return groups
}
