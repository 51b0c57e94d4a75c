package digitrax

import (
	"context"
	"errors"
	"testing"

	"slotrecycler/bus"
	"slotrecycler/loconet"
)

type fakeGateway struct {
	slots []loconet.SlotData
	sent  []loconet.Message
	err   error
}

func (g *fakeGateway) ReadSlots() ([]loconet.SlotData, error) { return g.slots, g.err }
func (g *fakeGateway) Send(m loconet.Message) error {
	if g.err != nil {
		return g.err
	}
	g.sent = append(g.sent, m)
	return nil
}
func (g *fakeGateway) Ping() error  { return g.err }
func (g *fakeGateway) Name() string { return "fake" }

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func TestListResourcesMapsFields(t *testing.T) {
	gw := &fakeGateway{slots: []loconet.SlotData{
		{Slot: intp(3), Address: intp(1234), Speed: intp(12), Stat1: intp(loconet.StatInUse), ThrottleID: intp(0x1234)},
		{Slot: intp(4)},
		{Slot: intp(123), Address: intp(99)},
		{Slot: intp(5), System: boolp(true)},
		{Slot: intp(0), Address: intp(7)},
	}}
	a := New(gw)
	recs, err := a.ListResources(context.Background())
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}
	if len(recs) != 5 {
		t.Fatalf("len = %d, want 5", len(recs))
	}
	r := recs[0]
	if r.AddressValue() != 1234 || r.Speed != 12 || *r.Owner != 0x1234 || r.System {
		t.Errorf("slot 3 = %+v", r)
	}
	if r.Status != "in_use/none" {
		t.Errorf("Status = %q, want in_use/none", r.Status)
	}
	if recs[1].Address != nil || recs[1].Speed != 0 || recs[1].Owner != nil || recs[1].Status != "" {
		t.Errorf("unreported fields should be absent: %+v", recs[1])
	}
	for _, i := range []int{2, 3, 4} {
		if !recs[i].System {
			t.Errorf("record %d should be system", i)
		}
	}
}

func TestBuildActions(t *testing.T) {
	gw := &fakeGateway{slots: []loconet.SlotData{
		{Slot: intp(3), Address: intp(1234), Stat1: intp(loconet.StatInUse)},
		{Slot: intp(4), Address: intp(55)},
	}}
	a := New(gw)
	recs, _ := a.ListResources(context.Background())

	act, ok := a.BuildDispatchAction(recs[0])
	if !ok || act.Kind != bus.ActionDispatch || act.Slot != 3 {
		t.Fatalf("dispatch = %+v, %v", act, ok)
	}
	if !loconet.Message(act.Payload).Valid() {
		t.Error("dispatch payload checksum invalid")
	}

	act, ok = a.BuildReleaseAction(recs[0])
	if !ok || act.Kind != bus.ActionRelease {
		t.Fatalf("release = %+v, %v", act, ok)
	}
	if loconet.StatusName(act.Payload[2]) != "common" {
		t.Errorf("release status = %s", loconet.StatusName(act.Payload[2]))
	}

	if _, ok := a.BuildReleaseAction(recs[1]); ok {
		t.Error("release without STAT1 should be unsupported")
	}
	if _, ok := a.BuildDispatchAction(bus.ResourceRecord{}); ok {
		t.Error("dispatch without slot number should be unsupported")
	}
	if _, ok := a.BuildDispatchAction(bus.ResourceRecord{ID: bus.Int(124)}); ok {
		t.Error("dispatch of system slot should be unsupported")
	}
}

func TestSendAction(t *testing.T) {
	gw := &fakeGateway{}
	a := New(gw)
	act, _ := a.BuildDispatchAction(bus.ResourceRecord{ID: bus.Int(8)})
	if err := a.SendAction(context.Background(), act); err != nil {
		t.Fatalf("SendAction: %v", err)
	}
	if len(gw.sent) != 1 || gw.sent[0][1] != 8 {
		t.Errorf("sent = %v", gw.sent)
	}

	gw.err = errors.New("bus down")
	if err := a.SendAction(context.Background(), act); err == nil {
		t.Error("expected transport error")
	}
}
