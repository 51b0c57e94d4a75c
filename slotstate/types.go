package slotstate

import "time"

// SlotView is the externally visible state of one tracked slot.
type SlotView struct {
	Slot        int       `json:"slot"`
	Address     int       `json:"address"`
	Speed       int       `json:"speed"`
	Status      string    `json:"status"`
	Owner       *int      `json:"owner,omitempty"`
	ConsistID   int       `json:"consist_id,omitempty"`
	IdleSeconds int64     `json:"idle_seconds"`
	Reasons     string    `json:"reasons"`
	UpdatedAt   time.Time `json:"updated_at"`
}
