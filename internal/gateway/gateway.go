// Package gateway implements the realtime core of the chat service:
// session registry, durable message pipeline and call-signaling relay.
package gateway

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/queue"
	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/store"
)

// Options configures a Gateway.
type Options struct {
	Room         string
	HistoryLimit int
	MaxAttempts  int
}

// Gateway ties the hub, registry, pipeline and call relay together and
// dispatches inbound session events to them.
type Gateway struct {
	hub      *Hub
	registry *Registry
	pipeline *Pipeline
	calls    *CallRelay
	logger   zerolog.Logger
}

// NewGateway wires up the realtime core. cache may be nil.
func NewGateway(st store.MessageStore, cache *store.RedisStore, transport queue.Transport, opts Options, logger zerolog.Logger) *Gateway {
	hub := NewHub(logger)
	pipeline := NewPipeline(st, cache, transport, hub, opts.Room, opts.MaxAttempts, logger)
	registry := NewRegistry(st, cache, hub, opts.HistoryLimit, logger)
	calls := NewCallRelay(hub, logger)

	registry.pipeline = pipeline
	registry.calls = calls
	calls.registry = registry

	return &Gateway{
		hub:      hub,
		registry: registry,
		pipeline: pipeline,
		calls:    calls,
		logger:   logger,
	}
}

// Run drives the pipeline's consumer loop until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	return g.pipeline.Run(ctx)
}

// Registry exposes presence lookups for the HTTP layer.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// Calls exposes call-session bookkeeping for the HTTP layer.
func (g *Gateway) Calls() *CallRelay {
	return g.calls
}

// Hub exposes the broadcast fan-out for the HTTP layer.
func (g *Gateway) Hub() *Hub {
	return g.hub
}
