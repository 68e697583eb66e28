package ws

import "encoding/json"

// Message is the envelope of every inbound frame.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
