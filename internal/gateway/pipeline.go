package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/metrics"
	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/models"
	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/queue"
	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/store"
)

const (
	maxMessageLen  = 1000
	minUsernameLen = 3
	maxUsernameLen = 20

	// systemAuthor is the author of synthetic join/leave/clear notices.
	systemAuthor = "System"

	// clearCommand wipes the whole history instead of posting.
	clearCommand = "/clearchat"
)

// ErrValidation marks rejected submissions. It is the only error class
// surfaced to a session.
var ErrValidation = errors.New("validation failed")

// Pipeline delivers chat text durably and in order: producers enqueue,
// a single sequential consumer persists and broadcasts.
type Pipeline struct {
	store       store.MessageStore
	cache       *store.RedisStore // optional
	transport   queue.Transport
	hub         Broadcaster
	room        string
	maxAttempts int
	logger      zerolog.Logger
}

// NewPipeline creates a pipeline publishing to transport and persisting
// through st.
func NewPipeline(st store.MessageStore, cache *store.RedisStore, transport queue.Transport, hub Broadcaster, room string, maxAttempts int, logger zerolog.Logger) *Pipeline {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Pipeline{
		store:       st,
		cache:       cache,
		transport:   transport,
		hub:         hub,
		room:        room,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Submit validates and accepts a message for durable delivery. A nil
// return confirms acceptance only, not persistence. When the broker is
// unreachable the message is persisted and broadcast synchronously
// instead.
func (p *Pipeline) Submit(ctx context.Context, text, author string, ts time.Time) error {
	text = strings.TrimSpace(text)
	// Limits count characters, not bytes.
	if text == "" || utf8.RuneCountInString(text) > maxMessageLen {
		metrics.ValidationFailures.WithLabelValues("message").Inc()
		return fmt.Errorf("%w: message must be 1-%d characters", ErrValidation, maxMessageLen)
	}

	author = strings.TrimSpace(author)
	if n := utf8.RuneCountInString(author); n < minUsernameLen || n > maxUsernameLen {
		metrics.ValidationFailures.WithLabelValues("username").Inc()
		return fmt.Errorf("%w: username must be %d-%d characters", ErrValidation, minUsernameLen, maxUsernameLen)
	}

	if text == clearCommand {
		return p.clearChat(ctx, author)
	}

	if ts.IsZero() {
		ts = time.Now()
	}

	action := models.QueuedAction{
		Message:   text,
		Username:  author,
		Room:      p.room,
		Timestamp: ts.UnixMilli(),
	}

	payload, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}

	if err := p.transport.Publish(ctx, payload); err != nil {
		// Broker down: best-effort synchronous persistence keeps the
		// chat surface available.
		p.logger.Warn().Err(err).Msg("publish failed, using synchronous fallback")
		metrics.MessagesSubmitted.WithLabelValues("fallback").Inc()
		if _, err := p.persistAndBroadcast(ctx, action); err != nil {
			p.logger.Error().Err(err).Msg("synchronous fallback persist failed")
		}
		return nil
	}

	metrics.MessagesSubmitted.WithLabelValues("queued").Inc()
	return nil
}

// SubmitSystem pushes a synthetic system message through the pipeline so
// it persists and broadcasts like any other message. Failures are
// logged, never surfaced.
func (p *Pipeline) SubmitSystem(ctx context.Context, text string) {
	if err := p.Submit(ctx, text, systemAuthor, time.Now()); err != nil {
		p.logger.Warn().Err(err).Msg("system message dropped")
	}
}

// clearChat wipes the persisted history synchronously and announces the
// result. Clear requests never enter the queue.
func (p *Pipeline) clearChat(ctx context.Context, requestedBy string) error {
	count, err := p.store.DeleteAllMessages(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("clear chat failed")
		return nil // not surfaced; the chat surface stays up
	}

	if p.cache != nil {
		if err := p.cache.ClearRecent(ctx, p.room); err != nil {
			p.logger.Warn().Err(err).Msg("recent cache clear failed")
		}
	}

	p.hub.Broadcast(Event{Event: EventChatCleared, Data: ChatClearedPayload{Count: count}})
	p.SubmitSystem(ctx, fmt.Sprintf("Chat cleared by %s (%d messages deleted)", requestedBy, count))

	p.logger.Info().Str("username", requestedBy).Int64("count", count).Msg("chat cleared")
	return nil
}

// Run consumes queued actions until ctx is cancelled. The transport
// delivers one task at a time, so persistence order matches queue order.
func (p *Pipeline) Run(ctx context.Context) error {
	return p.transport.Consume(ctx, p.handleDelivery)
}

func (p *Pipeline) handleDelivery(ctx context.Context, d queue.Delivery) {
	var action models.QueuedAction
	if err := json.Unmarshal(d.Payload(), &action); err != nil {
		p.retryOrPark(ctx, d, fmt.Errorf("malformed payload: %w", err))
		return
	}

	if _, err := p.persistAndBroadcast(ctx, action); err != nil {
		p.retryOrPark(ctx, d, err)
		return
	}

	if err := d.Ack(); err != nil {
		// The broker will redeliver; the duplicate broadcast is within
		// the at-least-once contract.
		p.logger.Warn().Err(err).Msg("ack failed")
	}
}

// retryOrPark requeues a failed task, or parks it on the dead-letter
// queue once its attempts are exhausted so it cannot block the tasks
// behind it.
func (p *Pipeline) retryOrPark(ctx context.Context, d queue.Delivery, cause error) {
	if d.Attempt() >= p.maxAttempts {
		metrics.MessagesDeadLettered.Inc()
		p.logger.Error().Err(cause).Int("attempts", d.Attempt()).Msg("task exhausted retries, parking")
		if err := p.transport.PublishDeadLetter(ctx, d.Payload(), cause.Error()); err != nil {
			p.logger.Error().Err(err).Msg("dead-letter publish failed")
		}
		if err := d.Term(); err != nil {
			p.logger.Warn().Err(err).Msg("term failed")
		}
		return
	}

	metrics.MessageRetries.Inc()
	p.logger.Warn().Err(cause).Int("attempt", d.Attempt()).Msg("persist failed, requeueing")
	if err := d.Nak(); err != nil {
		p.logger.Warn().Err(err).Msg("nak failed")
	}
}

// persistAndBroadcast writes one action to the store and fans the
// persisted message out to every attached session.
func (p *Pipeline) persistAndBroadcast(ctx context.Context, action models.QueuedAction) (*models.ChatMessage, error) {
	start := time.Now()
	msg, err := p.store.SaveMessage(ctx, action.Message, action.Username, action.Room, time.UnixMilli(action.Timestamp))
	if err != nil {
		return nil, err
	}
	metrics.StoreLatency.Observe(time.Since(start).Seconds())
	metrics.MessagesPersisted.Inc()

	if p.cache != nil {
		if err := p.cache.AddRecent(ctx, msg); err != nil {
			p.logger.Warn().Err(err).Msg("recent cache write failed")
		}
	}

	p.hub.Broadcast(Event{Event: EventMessage, Data: msg})
	return msg, nil
}
