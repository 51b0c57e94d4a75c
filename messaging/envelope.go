package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RawEnvelope is used for two-stage unmarshalling: first the envelope, then
// the payload selected by msg_type.
type RawEnvelope struct {
	MsgType   string          `json:"msg_type"`
	MsgID     string          `json:"msg_id"`
	StationID string          `json:"station_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// DecodeEnvelope unmarshals a raw message into an Envelope with a typed payload.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var raw RawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	env := &Envelope{
		MsgType:   raw.MsgType,
		MsgID:     raw.MsgID,
		StationID: raw.StationID,
		Timestamp: raw.Timestamp,
	}

	var err error
	switch raw.MsgType {
	case TypeSlotReclaimed:
		env.Payload, err = decodePayload[SlotReclaimed](raw.Payload)
	case TypePassCompleted:
		env.Payload, err = decodePayload[PassCompleted](raw.Payload)
	case TypeRecyclerState:
		env.Payload, err = decodePayload[RecyclerState](raw.Payload)
	default:
		return nil, fmt.Errorf("unknown msg_type: %s", raw.MsgType)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", raw.MsgType, err)
	}
	return env, nil
}

func decodePayload[T any](data json.RawMessage) (T, error) {
	var p T
	err := json.Unmarshal(data, &p)
	return p, err
}

// NewEnvelope creates an outbound envelope with a new UUID and timestamp.
func NewEnvelope(msgType, stationID string, payload any) *Envelope {
	return &Envelope{
		MsgType:   msgType,
		MsgID:     uuid.NewString(),
		StationID: stationID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
