package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/core"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/observability"
)

// Publisher pushes committed events to NATS JetStream for downstream
// consumers. Publish failures are non-fatal: the event log in Postgres
// is the source of truth and consumers can always catch up from it.
//
// Subjects follow the pattern: {prefix}.{event_subject}.{market_id},
// with the market segment omitted for global events.
type Publisher struct {
	js            jetstream.JetStream
	inputChan     <-chan core.Output
	subjectPrefix string
	metrics       *observability.Metrics
	log           zerolog.Logger
}

// OutboundEvent is the wire format published to the stream.
type OutboundEvent struct {
	Sequence       int64           `json:"sequence"`
	EventType      string          `json:"event_type"`
	IdempotencyKey string          `json:"idempotency_key"`
	MarketID       *uint64         `json:"market_id,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	StateHash      []byte          `json:"state_hash"`
	Timestamp      time.Time       `json:"timestamp"`
}

func NewPublisher(
	js jetstream.JetStream,
	inputChan <-chan core.Output,
	subjectPrefix string,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Publisher {
	return &Publisher{
		js:            js,
		inputChan:     inputChan,
		subjectPrefix: subjectPrefix,
		metrics:       metrics,
		log:           logger,
	}
}

// Run publishes until ctx is cancelled or the input channel closes.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-p.inputChan:
			if !ok {
				return nil
			}

			if err := p.publish(ctx, output); err != nil {
				if p.metrics != nil {
					p.metrics.PublishErrors.Inc()
				}
				p.log.Warn().
					Err(err).
					Int64("sequence", output.Envelope.Sequence).
					Msg("outbound publish failed")
				continue
			}

			if p.metrics != nil {
				p.metrics.PublishedEvents.WithLabelValues(output.Envelope.EventType.String()).Inc()
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, output core.Output) error {
	env := output.Envelope

	evt := OutboundEvent{
		Sequence:       env.Sequence,
		EventType:      env.EventType.String(),
		IdempotencyKey: env.IdempotencyKey,
		MarketID:       env.MarketID,
		Payload:        env.Payload,
		StateHash:      env.StateHash[:],
		Timestamp:      env.Timestamp,
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", p.subjectPrefix, env.EventType.Subject())
	if env.MarketID != nil {
		subject = fmt.Sprintf("%s.%d", subject, *env.MarketID)
	}

	// MsgId gives JetStream server-side dedup on redelivery.
	_, err = p.js.Publish(ctx, subject, data, jetstream.WithMsgID(env.IdempotencyKey))
	return err
}

// Connect dials NATS with unbounded reconnects and opens JetStream.
func Connect(url string, logger zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}

// EnsureStream creates or updates the outbound events stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream, name, subjectPrefix string) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      name,
		Subjects:  []string{subjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}
