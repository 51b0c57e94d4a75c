package slotstate

import (
	"reflect"
	"testing"
)

func TestKeys(t *testing.T) {
	if got := slotKey(12); got != "slotrecycler:slot:12" {
		t.Errorf("slotKey = %q", got)
	}
	if got := reclaimCountKey(1234); got != "slotrecycler:address:1234:reclaims" {
		t.Errorf("reclaimCountKey = %q", got)
	}
}

func TestParseSlotNumbers(t *testing.T) {
	got := parseSlotNumbers([]string{"3", "x", "17", ""})
	if !reflect.DeepEqual(got, []int{3, 17}) {
		t.Errorf("got %v", got)
	}
}

func TestStaleSlots(t *testing.T) {
	views := []*SlotView{{Slot: 1}, {Slot: 4}}
	got := staleSlots([]int{1, 2, 4, 9}, views)
	if !reflect.DeepEqual(got, []int{2, 9}) {
		t.Errorf("stale = %v, want [2 9]", got)
	}
	if got := staleSlots(nil, views); len(got) != 0 {
		t.Errorf("stale = %v, want none", got)
	}
}
