package gateway

import "encoding/json"

// Event names consumed from attached sessions.
const (
	EventJoin         = "join"
	EventMessage      = "message"
	EventTyping       = "typing"
	EventCallOffer    = "call-offer"
	EventCallAnswer   = "call-answer"
	EventICECandidate = "ice-candidate"
	EventCallEnd      = "call-end"
)

// Event names emitted to attached sessions.
const (
	EventMessageHistory = "message-history"
	EventUsers          = "users"
	EventUserTyping     = "user-typing"
	EventError          = "error"
	EventMessageDeleted = "message-deleted"
	EventChatCleared    = "chat-cleared"
)

// Event is one frame on the bidirectional session channel.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// inboundEvent is the decoded form of a client frame; Data stays raw
// until the dispatcher knows the event type.
type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// JoinPayload binds a session to a username.
type JoinPayload struct {
	Username string `json:"username"`
}

// MessagePayload carries a user-authored chat message.
type MessagePayload struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp,omitempty"` // Unix ms, optional
}

// TypingPayload signals typing-state changes.
type TypingPayload struct {
	IsTyping bool `json:"isTyping"`
}

// UserTypingPayload is the fan-out form of a typing signal.
type UserTypingPayload struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// CallOfferPayload carries an SDP offer toward a named target.
type CallOfferPayload struct {
	Target string          `json:"target"`
	Offer  json.RawMessage `json:"offer"`
}

// CallAnswerPayload carries an SDP answer toward a named target.
type CallAnswerPayload struct {
	Target string          `json:"target"`
	Answer json.RawMessage `json:"answer"`
}

// ICECandidatePayload carries an ICE candidate toward a named target.
type ICECandidatePayload struct {
	Target    string          `json:"target"`
	Candidate json.RawMessage `json:"candidate"`
}

// RelayedOffer is the offer as delivered to the callee.
type RelayedOffer struct {
	From  string          `json:"from"`
	Offer json.RawMessage `json:"offer"`
}

// RelayedAnswer is the answer as delivered to the caller.
type RelayedAnswer struct {
	From   string          `json:"from"`
	Answer json.RawMessage `json:"answer"`
}

// RelayedCandidate is the candidate as delivered to the other party.
type RelayedCandidate struct {
	From      string          `json:"from"`
	Candidate json.RawMessage `json:"candidate"`
}

// CallEndPayload notifies a party that its call ended.
type CallEndPayload struct {
	From string `json:"from"`
}

// ErrorPayload is the only failure shape surfaced to clients.
type ErrorPayload struct {
	Message string `json:"message"`
}

// UsersPayload is the full online-username set.
type UsersPayload struct {
	Users []string `json:"users"`
}

// ChatClearedPayload reports a wiped history.
type ChatClearedPayload struct {
	Count int64 `json:"count"`
}

// MessageDeletedPayload reports a removed message.
type MessageDeletedPayload struct {
	ID string `json:"id"`
}

// Broadcaster delivers events to attached sessions. Sends are
// best-effort; a failure never propagates to the caller.
type Broadcaster interface {
	// Broadcast sends ev to every attached session.
	Broadcast(ev Event)
	// BroadcastExcept sends ev to every attached session but one.
	BroadcastExcept(connID string, ev Event)
	// SendTo sends ev to a single session, reporting whether the
	// session was attached.
	SendTo(connID string, ev Event) bool
}
