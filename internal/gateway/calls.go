package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/metrics"
)

// CallState tracks a call session through its handshake.
type CallState int

const (
	// CallOffered: the offer was relayed to the callee.
	CallOffered CallState = iota
	// CallAnswered: the callee's answer was relayed back.
	CallAnswered
	// CallEnded: the session was torn down.
	CallEnded
)

func (s CallState) String() string {
	switch s {
	case CallOffered:
		return "offered"
	case CallAnswered:
		return "answered"
	case CallEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// CallSession pairs two connections engaged in a WebRTC handshake. The
// gateway only relays; media never touches this process.
type CallSession struct {
	ID         uuid.UUID
	Caller     string
	Callee     string
	CallerConn string
	CalleeConn string
	State      CallState
	StartedAt  time.Time
}

// CallRelay relays WebRTC handshake artifacts between two online
// connections and keeps session bookkeeping consistent with
// disconnects. Relay failures are logged and swallowed; no operation
// here surfaces an error to a session.
type CallRelay struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*CallSession

	registry *Registry
	hub      Broadcaster
	logger   zerolog.Logger
}

// NewCallRelay creates a relay; the registry link is wired by
// NewGateway.
func NewCallRelay(hub Broadcaster, logger zerolog.Logger) *CallRelay {
	return &CallRelay{
		sessions: make(map[uuid.UUID]*CallSession),
		hub:      hub,
		logger:   logger,
	}
}

// Offer creates a call session and relays the offer to target. An
// offline target drops the offer silently: no session, no event to
// anyone, only a log and a metric.
func (c *CallRelay) Offer(connID, target string, offer json.RawMessage) {
	from, ok := c.registry.UsernameOf(connID)
	if !ok {
		c.logger.Debug().Str("conn", connID).Msg("call offer from unjoined connection dropped")
		return
	}

	targetConn, online := c.registry.Resolve(target)
	if !online {
		metrics.CallOffersDropped.Inc()
		c.logger.Info().Str("from", from).Str("target", target).Msg("call offer to offline target dropped")
		return
	}

	sess := &CallSession{
		ID:         uuid.New(),
		Caller:     from,
		Callee:     target,
		CallerConn: connID,
		CalleeConn: targetConn,
		State:      CallOffered,
		StartedAt:  time.Now(),
	}

	c.mu.Lock()
	c.sessions[sess.ID] = sess
	c.mu.Unlock()

	metrics.CallsStarted.Inc()
	c.hub.SendTo(targetConn, Event{Event: EventCallOffer, Data: RelayedOffer{From: from, Offer: offer}})

	c.logger.Info().
		Str("session", sess.ID.String()).
		Str("caller", from).
		Str("callee", target).
		Msg("call offered")
}

// Answer relays an answer to target. The relay is deliberately
// permissive: any connection may answer any target it names. When a
// matching offered session exists it transitions to answered.
func (c *CallRelay) Answer(connID, target string, answer json.RawMessage) {
	from, ok := c.registry.UsernameOf(connID)
	if !ok {
		c.logger.Debug().Str("conn", connID).Msg("call answer from unjoined connection dropped")
		return
	}

	targetConn, online := c.registry.Resolve(target)
	if !online {
		c.logger.Info().Str("from", from).Str("target", target).Msg("call answer to offline target dropped")
		return
	}

	c.mu.Lock()
	for _, sess := range c.sessions {
		if sess.State == CallOffered && sess.CalleeConn == connID && sess.CallerConn == targetConn {
			sess.State = CallAnswered
			break
		}
	}
	c.mu.Unlock()

	c.hub.SendTo(targetConn, Event{Event: EventCallAnswer, Data: RelayedAnswer{From: from, Answer: answer}})
}

// Candidate relays an ICE candidate to its explicit target. The
// candidate payload is opaque; no session lookup is involved.
func (c *CallRelay) Candidate(connID, target string, candidate json.RawMessage) {
	from, ok := c.registry.UsernameOf(connID)
	if !ok {
		return
	}

	targetConn, online := c.registry.Resolve(target)
	if !online {
		c.logger.Debug().Str("from", from).Str("target", target).Msg("candidate to offline target dropped")
		return
	}

	c.hub.SendTo(targetConn, Event{Event: EventICECandidate, Data: RelayedCandidate{From: from, Candidate: candidate}})
}

// End tears down the session owned by connID after an explicit
// call-end message.
func (c *CallRelay) End(connID string) {
	c.teardown(connID)
}

// TeardownConn tears down any session owned by connID after a
// transport-level disconnect. Idempotent against an explicit call-end
// racing with it: only the first to find the session performs teardown.
func (c *CallRelay) TeardownConn(connID string) {
	c.teardown(connID)
}

func (c *CallRelay) teardown(connID string) {
	c.mu.Lock()
	var sess *CallSession
	for id, s := range c.sessions {
		if s.CallerConn == connID || s.CalleeConn == connID {
			sess = s
			delete(c.sessions, id)
			break
		}
	}
	c.mu.Unlock()

	if sess == nil {
		return // no session, or the other path got there first
	}
	sess.State = CallEnded

	from := sess.Caller
	peerConn := sess.CalleeConn
	if sess.CalleeConn == connID {
		from = sess.Callee
		peerConn = sess.CallerConn
	}

	c.hub.SendTo(peerConn, Event{Event: EventCallEnd, Data: CallEndPayload{From: from}})

	duration := time.Since(sess.StartedAt)
	metrics.CallsCompleted.Inc()
	metrics.CallDuration.Observe(duration.Seconds())

	c.logger.Info().
		Str("session", sess.ID.String()).
		Str("caller", sess.Caller).
		Str("callee", sess.Callee).
		Dur("duration", duration).
		Msg("call ended")
}

// ActiveCalls returns the number of live call sessions.
func (c *CallRelay) ActiveCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}
