package loconet

// Gateway is a transport to a LocoNet interface that can report the
// command station's slot table and put messages on the wire.
type Gateway interface {
	ReadSlots() ([]SlotData, error)
	Send(msg Message) error
	Ping() error
	Name() string
}

// SlotData is one slot as reported by a gateway. Any field the gateway could
// not read is omitted from its JSON and left nil here.
type SlotData struct {
	Slot        *int  `json:"slot"`
	Address     *int  `json:"address"`
	Speed       *int  `json:"speed"`
	Stat1       *int  `json:"stat1"`
	ThrottleID  *int  `json:"throttle_id"`
	ConsistAddr *int  `json:"consist_address"`
	System      *bool `json:"system"`
}

// SendRequest is the body of a gateway send call.
type SendRequest struct {
	Hex string `json:"hex"`
}

// Response is the common gateway reply envelope.
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type SlotsResponse struct {
	Response
	Slots []SlotData `json:"slots"`
}
