package bus

import "context"

// Backend is the vendor-neutral capability interface to a command bus.
// Implementations wrap a concrete transport (LocoNet gateway, simulator, etc.)
// and own all per-field decoding of the controller's slot records.
type Backend interface {
	// ListResources returns the slot records currently visible on the bus.
	// Fields the controller did not report are left absent, never guessed.
	ListResources(ctx context.Context) ([]ResourceRecord, error)

	// SendAction transmits a previously built action. A non-nil error means
	// the transport rejected or could not deliver it.
	SendAction(ctx context.Context, action Action) error

	// BuildDispatchAction returns the action that hands the slot back to the
	// command station. ok is false when dispatch is unsupported for the slot.
	BuildDispatchAction(rec ResourceRecord) (action Action, ok bool)

	// BuildReleaseAction returns the action that releases the slot to the
	// common pool. ok is false when release is unsupported for the slot.
	BuildReleaseAction(rec ResourceRecord) (action Action, ok bool)

	// Ping checks connectivity to the underlying transport.
	Ping() error

	// Name returns a human-readable name for this backend (e.g. "Digitrax LocoNet").
	Name() string
}

// ResourceRecord is one slot as seen in a single poll.
type ResourceRecord struct {
	ID        *int   // slot number; nil when the controller did not report one
	Address   *int   // bound locomotive address; nil or <= 0 means unassigned
	Speed     int    // 0 = stopped; best-effort 0 when unreported
	Status    string // opaque comparable token
	Owner     *int   // throttle identity; nil means unknown
	ConsistID *int   // nil or 0 means not in a consist
	System    bool
}

// Action is an opaque, transport-ready command built by a Backend.
type Action struct {
	Kind    string // "dispatch" or "release"
	Slot    int
	Payload []byte
}

const (
	ActionDispatch = "dispatch"
	ActionRelease  = "release"
)

// Int returns a pointer to v, for building records.
func Int(v int) *int { return &v }

// SlotNumber returns the record's slot number and whether it is known.
func (r ResourceRecord) SlotNumber() (int, bool) {
	if r.ID == nil {
		return 0, false
	}
	return *r.ID, true
}

// AddressValue returns the bound address, or 0 when unassigned.
func (r ResourceRecord) AddressValue() int {
	if r.Address == nil {
		return 0
	}
	return *r.Address
}

// Consist returns the consist identity, or 0 when not in a consist.
func (r ResourceRecord) Consist() int {
	if r.ConsistID == nil {
		return 0
	}
	return *r.ConsistID
}
