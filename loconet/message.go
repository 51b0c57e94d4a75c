package loconet

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Opcodes used by the recycler.
const (
	OpcMoveSlots = 0xBA // <src> <dest>; dest 0 = dispatch
	OpcSlotStat1 = 0xB5 // <slot> <stat1>
)

// STAT1 bit layout.
const (
	StatConUp    = 0x40
	StatBusy     = 0x20
	StatActive   = 0x10
	StatConDown  = 0x08
	StatMaskUse  = StatBusy | StatActive
	StatFree     = 0x00
	StatCommon   = StatActive
	StatIdle     = StatBusy
	StatInUse    = StatBusy | StatActive
	MaxSlot      = 0x7F
	FirstSysSlot = 0x78 // 120..127 are reserved/system slots
)

// Message is a complete LocoNet message including the trailing checksum.
type Message []byte

// NewMessage appends the checksum to an opcode and its arguments.
func NewMessage(op byte, args ...byte) Message {
	m := make(Message, 0, len(args)+2)
	m = append(m, op)
	m = append(m, args...)
	return append(m, Checksum(m))
}

// Checksum returns the byte that makes the XOR of the whole message 0xFF.
func Checksum(b []byte) byte {
	var x byte
	for _, c := range b {
		x ^= c
	}
	return 0xFF ^ x
}

// Valid reports whether m carries a correct checksum.
func (m Message) Valid() bool {
	if len(m) < 2 {
		return false
	}
	return Checksum(m[:len(m)-1]) == m[len(m)-1]
}

func (m Message) Hex() string { return hex.EncodeToString(m) }

func (m Message) String() string {
	parts := make([]string, len(m))
	for i, b := range m {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// ParseHex decodes a hex-encoded message and verifies its checksum.
func ParseHex(s string) (Message, error) {
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return nil, fmt.Errorf("loconet: decode hex: %w", err)
	}
	m := Message(b)
	if !m.Valid() {
		return nil, fmt.Errorf("loconet: bad checksum in %s", m)
	}
	return m, nil
}

// DispatchSlot builds OPC_MOVE_SLOTS <slot> 0, which marks the slot as the
// command station's dispatch slot.
func DispatchSlot(slot int) (Message, error) {
	if slot <= 0 || slot >= FirstSysSlot {
		return nil, fmt.Errorf("loconet: slot %d cannot be dispatched", slot)
	}
	return NewMessage(OpcMoveSlots, byte(slot), 0), nil
}

// ReleaseSlot builds OPC_SLOT_STAT1 with the activity bits set to COMMON,
// keeping the remaining STAT1 bits as last reported.
func ReleaseSlot(slot int, stat1 byte) (Message, error) {
	if slot <= 0 || slot > MaxSlot {
		return nil, fmt.Errorf("loconet: slot %d out of range", slot)
	}
	stat := (stat1 &^ StatMaskUse) | StatCommon
	return NewMessage(OpcSlotStat1, byte(slot), stat&0x7F), nil
}

// StatusName returns a readable name for the activity bits of STAT1.
func StatusName(stat1 byte) string {
	switch stat1 & StatMaskUse {
	case StatFree:
		return "free"
	case StatCommon:
		return "common"
	case StatIdle:
		return "idle"
	default:
		return "in_use"
	}
}

// ConsistName returns a readable name for the consist bits of STAT1.
func ConsistName(stat1 byte) string {
	switch {
	case stat1&StatConUp != 0 && stat1&StatConDown != 0:
		return "mid"
	case stat1&StatConUp != 0:
		return "sub"
	case stat1&StatConDown != 0:
		return "top"
	default:
		return "none"
	}
}
