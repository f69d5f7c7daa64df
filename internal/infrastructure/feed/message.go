package feed

import (
	"encoding/json"
	"fmt"
)

// Message types exchanged with the feed server
const (
	MsgTick        = "tick"
	MsgTicks       = "ticks"
	MsgSnapshot    = "snapshot"
	MsgSymbols     = "symbols"
	MsgSubscribe   = "subscribe"
	MsgUnsubscribe = "unsubscribe"
)

// Message is the feed wire envelope
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode builds a wire frame carrying data
func Encode(msgType string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", msgType, err)
	}
	return json.Marshal(Message{Type: msgType, Data: raw})
}
