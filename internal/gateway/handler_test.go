package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/queue"
	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/store"
)

// wsClient is a websocket test client speaking the event protocol.
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func newLiveGateway(t *testing.T) (*Gateway, *httptest.Server) {
	t.Helper()

	st := store.NewMemoryStore()
	transport := queue.NewMemoryTransport()
	gw := NewGateway(st, nil, transport, Options{
		Room:         "general",
		HistoryLimit: 50,
		MaxAttempts:  3,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = gw.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(gw.ServeWS))
	t.Cleanup(srv.Close)
	return gw, srv
}

func dialWS(t *testing.T, srv *httptest.Server) *wsClient {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) emit(event string, data interface{}) {
	c.t.Helper()
	if err := c.conn.WriteJSON(Event{Event: event, Data: data}); err != nil {
		c.t.Fatalf("emit %s: %v", event, err)
	}
}

// waitForEvent reads frames until one matches name, returning its raw
// data. Other events are discarded.
func (c *wsClient) waitForEvent(name string) json.RawMessage {
	c.t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_ = c.conn.SetReadDeadline(deadline)
		var ev inboundEvent
		if err := c.conn.ReadJSON(&ev); err != nil {
			c.t.Fatalf("waiting for %s: %v", name, err)
		}
		if ev.Event == name {
			return ev.Data
		}
	}
	c.t.Fatalf("no %s event before deadline", name)
	return nil
}

func TestGateway_JoinAndMessageFlow(t *testing.T) {
	_, srv := newLiveGateway(t)
	alice := dialWS(t, srv)

	alice.emit(EventJoin, JoinPayload{Username: "alice"})

	var users UsersPayload
	if err := json.Unmarshal(alice.waitForEvent(EventUsers), &users); err != nil {
		t.Fatal(err)
	}
	if len(users.Users) != 1 || users.Users[0] != "alice" {
		t.Errorf("online set = %v, want [alice]", users.Users)
	}

	alice.emit(EventMessage, MessagePayload{Username: "alice", Message: "hi"})

	// The join announcement is also a message event; skip to alice's own.
	var msg struct {
		ID     string `json:"id"`
		Text   string `json:"message"`
		Author string `json:"username"`
	}
	for msg.Author != "alice" {
		if err := json.Unmarshal(alice.waitForEvent(EventMessage), &msg); err != nil {
			t.Fatal(err)
		}
	}
	if msg.Text != "hi" || msg.ID == "" {
		t.Errorf("broadcast = %+v, want persisted hi from alice", msg)
	}
}

func TestGateway_InvalidMessageGetsErrorEvent(t *testing.T) {
	_, srv := newLiveGateway(t)
	alice := dialWS(t, srv)

	alice.emit(EventJoin, JoinPayload{Username: "alice"})
	alice.waitForEvent(EventUsers)

	alice.emit(EventMessage, MessagePayload{Username: "al", Message: "hi"})

	var errPayload ErrorPayload
	if err := json.Unmarshal(alice.waitForEvent(EventError), &errPayload); err != nil {
		t.Fatal(err)
	}
	if errPayload.Message == "" {
		t.Error("error event carries no message")
	}
}

func TestGateway_CallOfferAndDisconnectTeardown(t *testing.T) {
	gw, srv := newLiveGateway(t)
	alice := dialWS(t, srv)
	bob := dialWS(t, srv)

	alice.emit(EventJoin, JoinPayload{Username: "alice"})
	alice.waitForEvent(EventUsers)
	bob.emit(EventJoin, JoinPayload{Username: "bob"})
	bob.waitForEvent(EventUsers)

	// Wait until alice sees bob online before offering.
	waitFor(t, func() bool { return len(gw.registry.Online()) == 2 })

	alice.emit(EventCallOffer, CallOfferPayload{
		Target: "bob",
		Offer:  json.RawMessage(`{"type":"offer","sdp":"v=0"}`),
	})

	var offer RelayedOffer
	if err := json.Unmarshal(bob.waitForEvent(EventCallOffer), &offer); err != nil {
		t.Fatal(err)
	}
	if offer.From != "alice" {
		t.Errorf("offer from = %q, want alice", offer.From)
	}
	waitFor(t, func() bool { return gw.calls.ActiveCalls() == 1 })

	// Bob vanishes at the transport level; alice learns the call died.
	bob.conn.Close()

	var end CallEndPayload
	if err := json.Unmarshal(alice.waitForEvent(EventCallEnd), &end); err != nil {
		t.Fatal(err)
	}
	if end.From != "bob" {
		t.Errorf("call-end from = %q, want bob", end.From)
	}
	waitFor(t, func() bool { return gw.calls.ActiveCalls() == 0 })
}

func TestGateway_TypingFanOutSkipsSender(t *testing.T) {
	gw, srv := newLiveGateway(t)
	alice := dialWS(t, srv)
	bob := dialWS(t, srv)

	alice.emit(EventJoin, JoinPayload{Username: "alice"})
	bob.emit(EventJoin, JoinPayload{Username: "bob"})
	waitFor(t, func() bool { return len(gw.registry.Online()) == 2 })

	alice.emit(EventTyping, TypingPayload{IsTyping: true})

	var typing UserTypingPayload
	if err := json.Unmarshal(bob.waitForEvent(EventUserTyping), &typing); err != nil {
		t.Fatal(err)
	}
	if typing.Username != "alice" || !typing.IsTyping {
		t.Errorf("user-typing = %+v, want alice typing", typing)
	}
}
