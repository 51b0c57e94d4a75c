package loconet

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestChecksum(t *testing.T) {
	m := NewMessage(OpcMoveSlots, 0x03, 0x00)
	if len(m) != 4 {
		t.Fatalf("len = %d, want 4", len(m))
	}
	var x byte
	for _, b := range m {
		x ^= b
	}
	if x != 0xFF {
		t.Errorf("xor of message = %#x, want 0xff", x)
	}
	if !m.Valid() {
		t.Error("message should be valid")
	}
	m[1] = 0x04
	if m.Valid() {
		t.Error("corrupted message should be invalid")
	}
}

func TestDispatchSlot(t *testing.T) {
	m, err := DispatchSlot(5)
	if err != nil {
		t.Fatalf("DispatchSlot: %v", err)
	}
	if m[0] != OpcMoveSlots || m[1] != 5 || m[2] != 0 {
		t.Errorf("message = %s", m)
	}
	for _, slot := range []int{0, FirstSysSlot, MaxSlot, -1} {
		if _, err := DispatchSlot(slot); err == nil {
			t.Errorf("slot %d: expected error", slot)
		}
	}
}

func TestReleaseSlotSetsCommon(t *testing.T) {
	stat1 := byte(StatInUse | StatConDown | 0x03)
	m, err := ReleaseSlot(9, stat1)
	if err != nil {
		t.Fatalf("ReleaseSlot: %v", err)
	}
	if m[0] != OpcSlotStat1 || m[1] != 9 {
		t.Fatalf("message = %s", m)
	}
	if StatusName(m[2]) != "common" {
		t.Errorf("status = %s, want common", StatusName(m[2]))
	}
	if m[2]&StatConDown == 0 || m[2]&0x03 != 0x03 {
		t.Errorf("non-status bits not preserved: %#x", m[2])
	}
}

func TestStatusAndConsistNames(t *testing.T) {
	cases := map[byte]string{StatFree: "free", StatCommon: "common", StatIdle: "idle", StatInUse: "in_use"}
	for b, want := range cases {
		if got := StatusName(b); got != want {
			t.Errorf("StatusName(%#x) = %s, want %s", b, got, want)
		}
	}
	if ConsistName(StatConUp) != "sub" || ConsistName(StatConDown) != "top" ||
		ConsistName(StatConUp|StatConDown) != "mid" || ConsistName(0) != "none" {
		t.Error("unexpected consist names")
	}
}

func TestParseHex(t *testing.T) {
	m, _ := DispatchSlot(7)
	got, err := ParseHex(m.Hex())
	if err != nil {
		t.Fatalf("ParseHex: %v", err)
	}
	if got.String() != m.String() {
		t.Errorf("got %s, want %s", got, m)
	}
	if _, err := ParseHex("ba0700"); err == nil {
		t.Error("expected checksum error")
	}
}

func TestClientReadSlots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/slots" {
			t.Errorf("path = %q, want /slots", r.URL.Path)
		}
		w.Write([]byte(`{"code":0,"slots":[{"slot":3,"address":1234,"speed":0,"stat1":48,"throttle_id":4660},{"slot":4}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	slots, err := c.ReadSlots()
	if err != nil {
		t.Fatalf("ReadSlots: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("len = %d, want 2", len(slots))
	}
	if *slots[0].Address != 1234 || *slots[0].ThrottleID != 4660 {
		t.Errorf("slot 3 = %+v", slots[0])
	}
	if slots[1].Address != nil || slots[1].Speed != nil {
		t.Error("unreported fields should stay nil")
	}
}

func TestClientSend(t *testing.T) {
	var got SendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(Response{Code: 0})
	}))
	defer srv.Close()

	m, _ := DispatchSlot(3)
	if err := NewClient(srv.URL, time.Second).Send(m); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Hex != m.Hex() {
		t.Errorf("hex = %q, want %q", got.Hex, m.Hex())
	}
}

func TestClientSendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{Code: 2, Msg: "bus busy"})
	}))
	defer srv.Close()

	m, _ := DispatchSlot(3)
	if err := NewClient(srv.URL, time.Second).Send(m); err == nil {
		t.Fatal("expected error for non-zero response code")
	}
}

func TestMQTTGatewayHandleSlot(t *testing.T) {
	g := NewMQTTGateway(MQTTConfig{TopicPrefix: "ln"})
	if slots, _ := g.ReadSlots(); slots != nil {
		t.Error("expected nil before first sync")
	}
	g.handleSlot("ln/slot/7", []byte(`{"address":42,"speed":3}`))
	g.handleSlot("ln/slot/2", []byte(`{"slot":2,"address":10}`))
	g.handleSlot("ln/slot/x", []byte(`{}`))
	slots, err := g.ReadSlots()
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 2 || *slots[0].Slot != 2 || *slots[1].Slot != 7 {
		t.Fatalf("slots = %+v", slots)
	}
	g.handleSlot("ln/slot/7", nil)
	slots, _ = g.ReadSlots()
	if len(slots) != 1 {
		t.Errorf("len = %d after clear, want 1", len(slots))
	}
	if err := g.Send(Message{0x00}); err == nil {
		t.Error("expected not-connected error")
	}
}
