package engine

import "slotrecycler/recycler"

// passEmitter bridges recycler.Observer to the EventBus.
type passEmitter struct {
	bus *EventBus
}

func (p *passEmitter) SlotReclaimed(r recycler.Reclamation) {
	p.bus.Emit(Event{Type: EventSlotReclaimed, Payload: SlotReclaimedEvent{Reclamation: r}})
}

func (p *passEmitter) PassCompleted(s recycler.PassSummary) {
	p.bus.Emit(Event{Type: EventPassCompleted, Payload: PassCompletedEvent{Summary: s}})
}
