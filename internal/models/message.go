package models

// ChatMessage represents a persisted chat message.
type ChatMessage struct {
	ID        string `json:"id"` // ULID
	Text      string `json:"message"`
	Author    string `json:"username"`
	Room      string `json:"room"`
	Timestamp int64  `json:"timestamp"` // Unix ms
}

// QueuedAction is the envelope carried on the durable queue for a message
// awaiting persistence.
type QueuedAction struct {
	Message   string `json:"message"`
	Username  string `json:"username"`
	Room      string `json:"room"`
	Timestamp int64  `json:"timestamp"` // Unix ms
}
