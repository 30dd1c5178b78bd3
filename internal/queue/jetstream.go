package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	// StreamName is the JetStream stream carrying chat actions.
	StreamName = "CHAT_ACTIONS"
	// SubjectActions is the subject for pending chat actions.
	SubjectActions = "actions.chat"
	// SubjectDeadLetter is the subject for parked poison tasks.
	SubjectDeadLetter = "actions.dead"
	// ConsumerName is the durable consumer for the pipeline worker.
	ConsumerName = "chat-pipeline"
)

// JetStreamConfig holds broker connection settings.
type JetStreamConfig struct {
	URL           string
	MaxDeliver    int
	AckWait       time.Duration
	ReconnectWait time.Duration
}

// JetStreamTransport implements Transport on NATS JetStream. A work-queue
// stream plus a durable consumer with MaxAckPending=1 gives the durable
// FIFO / prefetch-1 contract.
type JetStreamTransport struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	logger   zerolog.Logger
}

// NewJetStreamTransport connects to NATS and provisions the stream and
// durable consumer. The client keeps reconnecting in the background at
// cfg.ReconnectWait intervals; while disconnected Publish returns
// ErrUnavailable.
func NewJetStreamTransport(ctx context.Context, cfg JetStreamConfig, logger zerolog.Logger) (*JetStreamTransport, error) {
	if cfg.AckWait == 0 {
		cfg.AckWait = 30 * time.Second
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 5 * time.Second
	}

	nc, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("broker disconnected, falling back to synchronous persistence")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("broker reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectActions, SubjectDeadLetter},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create stream: %w", err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          ConsumerName,
		Durable:       ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: 1, // prefetch 1: strict sequential consumption
		FilterSubject: SubjectActions,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	logger.Info().
		Str("url", cfg.URL).
		Str("stream", StreamName).
		Msg("connected to NATS")

	return &JetStreamTransport{
		nc:       nc,
		js:       js,
		consumer: consumer,
		logger:   logger,
	}, nil
}

// Publish enqueues a task on the actions subject.
func (t *JetStreamTransport) Publish(ctx context.Context, payload []byte) error {
	if t.nc.Status() != nats.CONNECTED {
		return ErrUnavailable
	}
	if _, err := t.js.Publish(ctx, SubjectActions, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// PublishDeadLetter parks a poisoned task on the dead-letter subject.
func (t *JetStreamTransport) PublishDeadLetter(ctx context.Context, payload []byte, reason string) error {
	if t.nc.Status() != nats.CONNECTED {
		return ErrUnavailable
	}
	msg := nats.NewMsg(SubjectDeadLetter)
	msg.Data = payload
	msg.Header.Set("Dead-Letter-Reason", reason)
	if _, err := t.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("publish dead letter: %w", err)
	}
	t.logger.Warn().Str("reason", reason).Msg("task parked on dead-letter queue")
	return nil
}

// Consume pulls tasks one at a time and hands them to h until ctx is
// cancelled.
func (t *JetStreamTransport) Consume(ctx context.Context, h Handler) error {
	iter, err := t.consumer.Messages(jetstream.PullMaxMessages(1))
	if err != nil {
		return fmt.Errorf("create message iterator: %w", err)
	}

	go func() {
		<-ctx.Done()
		iter.Stop()
	}()

	for {
		msg, err := iter.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}
		h(ctx, &jsDelivery{msg: msg})
	}
}

// Close drains the connection.
func (t *JetStreamTransport) Close() {
	_ = t.nc.Drain()
}

type jsDelivery struct {
	msg jetstream.Msg
}

func (d *jsDelivery) Payload() []byte { return d.msg.Data() }

func (d *jsDelivery) Attempt() int {
	meta, err := d.msg.Metadata()
	if err != nil {
		return 1
	}
	return int(meta.NumDelivered)
}

func (d *jsDelivery) Ack() error  { return d.msg.Ack() }
func (d *jsDelivery) Nak() error  { return d.msg.Nak() }
func (d *jsDelivery) Term() error { return d.msg.Term() }
