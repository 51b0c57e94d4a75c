package digitrax

import (
	"slotrecycler/bus"
	"slotrecycler/loconet"
)

func mapSlot(sd loconet.SlotData) bus.ResourceRecord {
	rec := bus.ResourceRecord{
		ID:        sd.Slot,
		Address:   sd.Address,
		Owner:     sd.ThrottleID,
		ConsistID: sd.ConsistAddr,
		System:    isSystemSlot(sd),
	}
	if sd.Speed != nil {
		rec.Speed = *sd.Speed
	}
	if sd.Stat1 != nil {
		rec.Status = StatusToken(byte(*sd.Stat1))
	}
	return rec
}

// StatusToken combines the activity and consist bits of STAT1 into the
// comparable status token used for activity detection.
func StatusToken(stat1 byte) string {
	return loconet.StatusName(stat1) + "/" + loconet.ConsistName(stat1)
}

// isSystemSlot reports slot 0 (dispatch) and the 120..127 range, or whatever
// the gateway flags explicitly.
func isSystemSlot(sd loconet.SlotData) bool {
	if sd.System != nil && *sd.System {
		return true
	}
	if sd.Slot == nil {
		return false
	}
	n := *sd.Slot
	return n == 0 || n >= loconet.FirstSysSlot
}
