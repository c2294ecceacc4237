package relink

import "encoding/json"

// failureType is the inbound type discriminator that rejects a pending
// request instead of resolving it.
const failureType = "failure"

// probePayload is the fixed heartbeat probe. No response is expected.
var probePayload = []byte(`{"type":"ping"}`)

// outboundEnvelope wraps a request payload with its correlation key.
type outboundEnvelope struct {
	Key     string `json:"key"`
	Payload any    `json:"payload"`
}

// inboundEnvelope is the wire shape of frames from the server. Frames with a
// key are correlated responses; frames without one are server-pushed
// messages.
type inboundEnvelope struct {
	Key     string          `json:"key,omitempty"`
	Type    string          `json:"type,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
