package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	domainevents "github.com/GaseousIce/wallpaper-scraper/internal/domain/events"
)

const ackTimeout = 5 * time.Second

// Publisher writes envelopes to the event stream and waits for the ack
type Publisher struct {
	js     jetstream.JetStream
	logger *zap.Logger
}

var _ domainevents.Publisher = (*Publisher)(nil)

// NewPublisher publishes through client's JetStream handle
func NewPublisher(client *Client, logger *zap.Logger) *Publisher {
	return &Publisher{js: client.JetStream(), logger: logger.Named("nats")}
}

// Publish sends event to SubjectFor(event). The event id is the JetStream
// message id, so a repeated publish within the duplicate window is dropped
// by the server.
func (p *Publisher) Publish(ctx context.Context, event domainevents.Event) error {
	body, err := json.Marshal(domainevents.NewEnvelope(event))
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.EventType(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, ackTimeout)
	defer cancel()

	subject := SubjectFor(event)
	ack, err := p.js.Publish(ctx, subject, body, jetstream.WithMsgID(event.ID().String()))
	if err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	if ack.Duplicate {
		p.logger.Debug("duplicate event ignored", zap.Stringer("event_id", event.ID()))
		return nil
	}

	p.logger.Debug("event published",
		zap.String("subject", subject),
		zap.Stringer("event_id", event.ID()),
		zap.Uint64("seq", ack.Sequence),
	)
	return nil
}

// Close does nothing: the Client cleanup drains the connection.
func (p *Publisher) Close() error { return nil }

// SubjectFor maps an event to wallpaper.<aggregate>.<action>. TaskSucceeded
// on a Task becomes wallpaper.task.succeeded.
func SubjectFor(event domainevents.Event) string {
	aggregate := event.AggregateType()
	action, ok := strings.CutPrefix(event.EventType(), aggregate)
	if !ok || action == "" {
		action = event.EventType()
	}
	return strings.ToLower(strings.Join([]string{SubjectRoot, aggregate, action}, "."))
}
