package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope is the frame exchanged on a Link. A request that expects an
// acknowledgement carries a non-zero Ack; the answer echoes it in Reply
// and has no Name.
type Envelope struct {
	Name    string          `json:"name,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Ack     uint64          `json:"ack,omitempty"`
	Reply   uint64          `json:"reply,omitempty"`
}

// IsReply reports whether the envelope answers an earlier request.
func (e Envelope) IsReply() bool {
	return e.Reply != 0
}

// Encode marshals an envelope, embedding payload as JSON.
func Encode(name string, payload any, ack, reply uint64) ([]byte, error) {
	env := Envelope{Name: name, Ack: ack, Reply: reply}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %q payload: %w", name, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode parses a frame. Frames with neither a name nor a reply id are
// rejected.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if env.Name == "" && env.Reply == 0 {
		return Envelope{}, fmt.Errorf("%w: missing name", ErrInvalidEnvelope)
	}
	return env, nil
}
