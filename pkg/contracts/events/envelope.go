package events

import "encoding/json"

// Envelope é o formato trafegado no Redis Pub/Sub.
// Game e UserID permitem ao gateway rotear sem conhecer o payload.
type Envelope struct {
	Topic   string          `json:"topic"`
	Game    string          `json:"game,omitempty"`
	UserID  int64           `json:"userId,omitempty"`
	Payload json.RawMessage `json:"payload"`
}
