package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, restrict to configured origins.
		return true
	},
}

// ServeWS upgrades an HTTP request to a session channel and runs its
// pumps. The connection id is assigned here and stays opaque to the
// client.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &Client{
		ID:   uuid.NewString(),
		hub:  g.hub,
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
	g.hub.register(c)

	g.logger.Debug().Str("conn", c.ID).Str("remote", r.RemoteAddr).Msg("session attached")

	go c.writePump()
	go func() {
		// readPump unregisters the session on exit, so the departing
		// session receives none of its own farewell events.
		c.readPump(g)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		g.registry.Disconnect(ctx, c.ID)
		g.logger.Debug().Str("conn", c.ID).Msg("session detached")
	}()
}

// dispatch routes one inbound frame to the owning component. Unknown
// events are dropped with a log line; malformed frames additionally get
// an error event back.
func (g *Gateway) dispatch(connID string, raw []byte) {
	var ev inboundEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		g.logger.Debug().Err(err).Str("conn", connID).Msg("malformed frame")
		g.hub.SendTo(connID, Event{Event: EventError, Data: ErrorPayload{Message: "malformed event"}})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch ev.Event {
	case EventJoin:
		var p JoinPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return
		}
		g.registry.Join(ctx, connID, p.Username)

	case EventMessage:
		var p MessagePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			g.hub.SendTo(connID, Event{Event: EventError, Data: ErrorPayload{Message: "malformed message"}})
			return
		}
		var ts time.Time
		if p.Timestamp > 0 {
			ts = time.UnixMilli(p.Timestamp)
		}
		if err := g.pipeline.Submit(ctx, p.Message, p.Username, ts); err != nil {
			// Validation is the only failure a session ever sees.
			g.hub.SendTo(connID, Event{Event: EventError, Data: ErrorPayload{Message: err.Error()}})
		}

	case EventTyping:
		var p TypingPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return
		}
		username, ok := g.registry.UsernameOf(connID)
		if !ok {
			return
		}
		g.hub.BroadcastExcept(connID, Event{
			Event: EventUserTyping,
			Data:  UserTypingPayload{Username: username, IsTyping: p.IsTyping},
		})

	case EventCallOffer:
		var p CallOfferPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return
		}
		g.calls.Offer(connID, p.Target, p.Offer)

	case EventCallAnswer:
		var p CallAnswerPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return
		}
		g.calls.Answer(connID, p.Target, p.Answer)

	case EventICECandidate:
		var p ICECandidatePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return
		}
		g.calls.Candidate(connID, p.Target, p.Candidate)

	case EventCallEnd:
		g.calls.End(connID)

	default:
		g.logger.Debug().Str("conn", connID).Str("event", ev.Event).Msg("unknown event dropped")
	}
}
