package messaging

import "time"

// Message types published on the events topic.
const (
	TypeSlotReclaimed = "slot.reclaimed"
	TypePassCompleted = "pass.completed"
	TypeRecyclerState = "recycler.state"
)

// Envelope wraps every event with routing and identity metadata.
type Envelope struct {
	MsgType   string    `json:"msg_type"`
	MsgID     string    `json:"msg_id"`
	StationID string    `json:"station_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// SlotReclaimed reports the actions taken on one idle slot.
type SlotReclaimed struct {
	RunID       string `json:"run_id"`
	Slot        int    `json:"slot"`
	Address     int    `json:"address"`
	ConsistID   int    `json:"consist_id,omitempty"`
	Scope       string `json:"scope"`
	Owner       *int   `json:"owner,omitempty"`
	IdleSeconds int64  `json:"idle_seconds"`
	DryRun      bool   `json:"dry_run"`
	Actions     string `json:"actions"`
	OK          bool   `json:"ok"`
}

// PassCompleted summarizes one reclamation pass.
type PassCompleted struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Observed   int       `json:"observed"`
	Tracked    int       `json:"tracked"`
	Consists   int       `json:"consists"`
	Reclaimed  int       `json:"reclaimed"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

// RecyclerState is published when the schedule is started or stopped.
type RecyclerState struct {
	Running bool   `json:"running"`
	Actor   string `json:"actor"`
}
