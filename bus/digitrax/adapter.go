package digitrax

import (
	"context"
	"sync"

	"slotrecycler/bus"
	"slotrecycler/loconet"
)

// Adapter wraps a loconet.Gateway to implement bus.Backend for a Digitrax
// command station's slot table.
type Adapter struct {
	gw loconet.Gateway

	mu    sync.Mutex
	stat1 map[int]byte // slot -> STAT1 from the last ListResources
}

// New creates a new Digitrax adapter over gw.
func New(gw loconet.Gateway) *Adapter {
	return &Adapter{
		gw:    gw,
		stat1: make(map[int]byte),
	}
}

// --- bus.Backend ---

func (a *Adapter) ListResources(_ context.Context) ([]bus.ResourceRecord, error) {
	slots, err := a.gw.ReadSlots()
	if err != nil {
		return nil, err
	}
	stat1 := make(map[int]byte, len(slots))
	recs := make([]bus.ResourceRecord, 0, len(slots))
	for _, sd := range slots {
		rec := mapSlot(sd)
		if sd.Slot != nil && sd.Stat1 != nil {
			stat1[*sd.Slot] = byte(*sd.Stat1)
		}
		recs = append(recs, rec)
	}
	a.mu.Lock()
	a.stat1 = stat1
	a.mu.Unlock()
	return recs, nil
}

func (a *Adapter) SendAction(_ context.Context, action bus.Action) error {
	return a.gw.Send(loconet.Message(action.Payload))
}

func (a *Adapter) BuildDispatchAction(rec bus.ResourceRecord) (bus.Action, bool) {
	slot, ok := rec.SlotNumber()
	if !ok {
		return bus.Action{}, false
	}
	msg, err := loconet.DispatchSlot(slot)
	if err != nil {
		return bus.Action{}, false
	}
	return bus.Action{Kind: bus.ActionDispatch, Slot: slot, Payload: msg}, true
}

func (a *Adapter) BuildReleaseAction(rec bus.ResourceRecord) (bus.Action, bool) {
	slot, ok := rec.SlotNumber()
	if !ok {
		return bus.Action{}, false
	}
	a.mu.Lock()
	stat1, known := a.stat1[slot]
	a.mu.Unlock()
	if !known {
		return bus.Action{}, false
	}
	msg, err := loconet.ReleaseSlot(slot, stat1)
	if err != nil {
		return bus.Action{}, false
	}
	return bus.Action{Kind: bus.ActionRelease, Slot: slot, Payload: msg}, true
}

func (a *Adapter) Ping() error {
	return a.gw.Ping()
}

func (a *Adapter) Name() string {
	return "Digitrax (" + a.gw.Name() + ")"
}
