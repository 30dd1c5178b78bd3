package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/gateway"
	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/queue"
	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()

	st := store.NewMemoryStore()
	transport := queue.NewMemoryTransport()
	gw := gateway.NewGateway(st, nil, transport, gateway.Options{
		Room:         "general",
		HistoryLimit: 50,
		MaxAttempts:  3,
	}, zerolog.Nop())

	router := NewRouter(zerolog.Nop(), st, nil, gw, "general")
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, st
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatal(err)
		}
	}
	return resp
}

func TestRouter_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	var body struct {
		Status string `json:"status"`
	}
	resp := getJSON(t, srv.URL+"/health", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", resp.StatusCode)
	}
	if body.Status != "healthy" {
		t.Errorf("health status = %q, want healthy", body.Status)
	}
}

func TestRouter_ListMessages(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		if _, err := st.SaveMessage(ctx, text, "alice", "general", time.Now()); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}

	var body struct {
		Messages []struct {
			Text string `json:"message"`
		} `json:"messages"`
		Total int `json:"total"`
	}
	resp := getJSON(t, srv.URL+"/api/messages?limit=2", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/messages status = %d, want 200", resp.StatusCode)
	}
	if body.Total != 3 {
		t.Errorf("total = %d, want 3", body.Total)
	}
	if len(body.Messages) != 2 || body.Messages[0].Text != "three" {
		t.Errorf("first page starts with %q, want newest message", body.Messages[0].Text)
	}
}

func TestRouter_DeleteMessage(t *testing.T) {
	srv, st := newTestServer(t)

	msg, err := st.SaveMessage(context.Background(), "doomed", "alice", "general", time.Now())
	if err != nil {
		t.Fatal(err)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/messages/"+msg.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("DELETE status = %d, want 200", resp.StatusCode)
	}

	// Deleting again is a 404.
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want 404", resp.StatusCode)
	}
}

func TestRouter_Stats(t *testing.T) {
	srv, st := newTestServer(t)

	if _, err := st.SaveMessage(context.Background(), "hi", "alice", "general", time.Now()); err != nil {
		t.Fatal(err)
	}

	var body struct {
		TotalMessages int      `json:"total_messages"`
		OnlineUsers   []string `json:"online_users"`
		ActiveCalls   int      `json:"active_calls"`
	}
	resp := getJSON(t, srv.URL+"/api/stats", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/stats status = %d, want 200", resp.StatusCode)
	}
	if body.TotalMessages != 1 {
		t.Errorf("total_messages = %d, want 1", body.TotalMessages)
	}
	if len(body.OnlineUsers) != 0 || body.ActiveCalls != 0 {
		t.Errorf("expected no online users or calls on a fresh gateway")
	}
}

func TestRouter_SuspiciousPathRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/messages?offset=<script>")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("suspicious query status = %d, want 400", resp.StatusCode)
	}
}
