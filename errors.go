package relink

import (
	"encoding/json"
	"errors"
)

// Errors
var (
	ErrNotReady     = errors.New("not connected")
	ErrTimeout      = errors.New("request timeout")
	ErrDisconnected = errors.New("connection lost")
	ErrTransmit     = errors.New("transmit failed")
)

// FailureError is the outcome of a correlated response whose type
// discriminator signals an application-level failure. Payload holds the raw
// failure payload from the server.
type FailureError struct {
	Payload json.RawMessage
}

func (e *FailureError) Error() string {
	if len(e.Payload) == 0 {
		return "server failure response"
	}
	return "server failure response: " + string(e.Payload)
}
