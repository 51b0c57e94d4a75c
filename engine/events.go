package engine

import "slotrecycler/recycler"

const (
	EventPassCompleted EventType = iota + 1
	EventSlotReclaimed
	EventRecyclerStarted
	EventRecyclerStopped
	EventPassRequested
	EventBusConnected
	EventBusDisconnected
)

var eventNames = map[EventType]string{
	EventPassCompleted:   "pass-completed",
	EventSlotReclaimed:   "slot-reclaimed",
	EventRecyclerStarted: "recycler-started",
	EventRecyclerStopped: "recycler-stopped",
	EventPassRequested:   "pass-requested",
	EventBusConnected:    "bus-connected",
	EventBusDisconnected: "bus-disconnected",
}

// String returns the SSE event name.
func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return "unknown"
}

// --- Event payloads ---

type PassCompletedEvent struct {
	Summary recycler.PassSummary
}

type SlotReclaimedEvent struct {
	Reclamation recycler.Reclamation
}

type RecyclerStateEvent struct {
	Actor string
}

type ConnectionEvent struct {
	Detail string
}
