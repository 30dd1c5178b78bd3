package gateway

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/store"
)

// Registry tracks which connections are online and under which
// username. All maps live behind one mutex; they are never handed out.
type Registry struct {
	mu      sync.Mutex
	byUser  map[string]string   // username -> connID
	byConn  map[string]string   // connID -> username
	tearing map[string]struct{} // connIDs mid-teardown (duplicate guard)

	store        store.MessageStore
	cache        *store.RedisStore // optional
	hub          Broadcaster
	pipeline     *Pipeline
	calls        *CallRelay
	historyLimit int
	logger       zerolog.Logger
}

// NewRegistry creates a registry; the pipeline and call-relay links are
// wired by NewGateway.
func NewRegistry(st store.MessageStore, cache *store.RedisStore, hub Broadcaster, historyLimit int, logger zerolog.Logger) *Registry {
	return &Registry{
		byUser:       make(map[string]string),
		byConn:       make(map[string]string),
		tearing:      make(map[string]struct{}),
		store:        st,
		cache:        cache,
		hub:          hub,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// Join binds connID to username and announces the new presence. An
// empty username is a no-op. A later join under the same username
// silently replaces the earlier mapping without revoking the earlier
// connection.
func (r *Registry) Join(ctx context.Context, connID, username string) {
	username = strings.TrimSpace(username)
	if username == "" {
		return
	}

	r.mu.Lock()
	r.byConn[connID] = username
	r.byUser[username] = connID
	r.mu.Unlock()

	// Presence is best-effort: a store failure is logged, never
	// surfaced to the joining session.
	if err := r.store.UpsertPresence(ctx, username, true, time.Now()); err != nil {
		r.logger.Warn().Err(err).Str("username", username).Msg("presence update failed")
	}

	r.hub.Broadcast(Event{Event: EventUsers, Data: UsersPayload{Users: r.Online()}})

	go r.deliverHistory(connID)

	r.pipeline.SubmitSystem(ctx, "User joined: "+username)

	r.logger.Info().Str("conn", connID).Str("username", username).Msg("user joined")
}

// deliverHistory sends the most recent persisted messages to one
// session, oldest first. The cache is tried before the store.
func (r *Registry) deliverHistory(connID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if r.cache != nil {
		if msgs, err := r.cache.Recent(ctx, r.pipeline.room, r.historyLimit); err == nil && len(msgs) > 0 {
			r.hub.SendTo(connID, Event{Event: EventMessageHistory, Data: msgs})
			return
		}
	}

	msgs, err := r.store.RecentMessages(ctx, r.historyLimit)
	if err != nil {
		r.logger.Warn().Err(err).Str("conn", connID).Msg("history fetch failed")
		return
	}
	r.hub.SendTo(connID, Event{Event: EventMessageHistory, Data: msgs})
}

// Disconnect tears down connID's presence. Safe against duplicate
// transport-level disconnect signals and against connections that never
// joined.
func (r *Registry) Disconnect(ctx context.Context, connID string) {
	r.mu.Lock()
	if _, busy := r.tearing[connID]; busy {
		r.mu.Unlock()
		return // duplicate signal
	}
	username, joined := r.byConn[connID]
	if !joined {
		r.mu.Unlock()
		return // never joined
	}
	r.tearing[connID] = struct{}{}
	delete(r.byConn, connID)
	// A rejoin may have remapped the username to a newer connection;
	// only remove the mapping this connection still owns.
	if r.byUser[username] == connID {
		delete(r.byUser, username)
	}
	r.mu.Unlock()

	// The guard must be released on every exit path.
	defer func() {
		r.mu.Lock()
		delete(r.tearing, connID)
		r.mu.Unlock()
	}()

	if err := r.store.UpsertPresence(ctx, username, false, time.Now()); err != nil {
		r.logger.Warn().Err(err).Str("username", username).Msg("presence update failed")
	}

	r.calls.TeardownConn(connID)

	r.hub.Broadcast(Event{Event: EventUsers, Data: UsersPayload{Users: r.Online()}})

	r.pipeline.SubmitSystem(ctx, "User left: "+username)

	r.logger.Info().Str("conn", connID).Str("username", username).Msg("user disconnected")
}

// Online returns the sorted set of online usernames.
func (r *Registry) Online() []string {
	r.mu.Lock()
	users := make([]string, 0, len(r.byUser))
	for u := range r.byUser {
		users = append(users, u)
	}
	r.mu.Unlock()

	sort.Strings(users)
	return users
}

// Resolve maps a username to its connection, if online.
func (r *Registry) Resolve(username string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	connID, ok := r.byUser[username]
	return connID, ok
}

// UsernameOf maps a connection to its joined username.
func (r *Registry) UsernameOf(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	username, ok := r.byConn[connID]
	return username, ok
}
