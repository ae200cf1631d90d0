// Package eventbus fans journal events out to an out-of-process NATS
// JetStream subject, with retry/backoff around the publish call.
package eventbus

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"

	"github.com/replikv/replikv/internal/journal"
)

// jetStreamPublisher is the narrow slice of nats.JetStreamContext this
// package needs, kept separate so tests can substitute a fake without
// implementing the full JetStreamContext interface.
type jetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher publishes journal events to JetStream under
// "<subjectPrefix>.<mapName>.<eventType>".
type Publisher struct {
	js            jetStreamPublisher
	subjectPrefix string
	maxElapsed    time.Duration
}

// NewPublisher creates a publisher over an already-connected JetStream
// context. subjectPrefix is prepended to every published subject.
func NewPublisher(js nats.JetStreamContext, subjectPrefix string) *Publisher {
	if subjectPrefix == "" {
		subjectPrefix = "replikv.journal"
	}
	return &Publisher{js: js, subjectPrefix: subjectPrefix, maxElapsed: 10 * time.Second}
}

// Subject returns the JetStream subject an event of this shape would be
// published to.
func (p *Publisher) Subject(mapName string, eventType journal.EventType) string {
	return fmt.Sprintf("%s.%s.%s", p.subjectPrefix, mapName, eventType)
}

// PublishEvent marshals event and publishes it with exponential backoff
// retry, satisfying journal.ExternalPublisher.
func (p *Publisher) PublishEvent(event journal.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("eventbus: marshal event: %w", err)
	}

	subject := p.Subject(event.MapName, event.Type)
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = p.maxElapsed

	operation := func() error {
		_, err := p.js.Publish(subject, data)
		return err
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("eventbus: publish to %s: %w", subject, err)
	}
	return nil
}

// PublishEventLogged is a convenience wrapper for callers that want the
// teacher's fire-and-forget style: failures are logged, never returned.
func (p *Publisher) PublishEventLogged(event journal.Event) {
	if err := p.PublishEvent(event); err != nil {
		log.Printf("eventbus: %v", err)
	}
}
