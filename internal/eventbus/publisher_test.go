package eventbus

import (
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replikv/replikv/internal/journal"
)

type fakeJetStream struct {
	published   []string
	failUntil   int
	attempts    int
}

func (f *fakeJetStream) Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	f.attempts++
	if f.attempts <= f.failUntil {
		return nil, errors.New("simulated publish failure")
	}
	f.published = append(f.published, subj)
	return &nats.PubAck{Stream: "JOURNAL", Sequence: uint64(f.attempts)}, nil
}

func newPublisherWithFake(fake *fakeJetStream) *Publisher {
	p := &Publisher{js: fake, subjectPrefix: "replikv.journal", maxElapsed: time.Second}
	return p
}

func TestSubjectIncludesMapNameAndEventType(t *testing.T) {
	p := newPublisherWithFake(&fakeJetStream{})
	subject := p.Subject("orders", journal.EventPut)
	assert.Equal(t, "replikv.journal.orders.PUT", subject)
}

func TestPublishEventSucceedsOnFirstAttempt(t *testing.T) {
	fake := &fakeJetStream{}
	p := newPublisherWithFake(fake)

	err := p.PublishEvent(journal.Event{Sequence: 1, Type: journal.EventPut, MapName: "orders", Key: "a"})
	require.NoError(t, err)
	require.Len(t, fake.published, 1)
	assert.Equal(t, "replikv.journal.orders.PUT", fake.published[0])
}

func TestPublishEventRetriesOnTransientFailure(t *testing.T) {
	fake := &fakeJetStream{failUntil: 2}
	p := newPublisherWithFake(fake)

	err := p.PublishEvent(journal.Event{Sequence: 1, Type: journal.EventUpdate, MapName: "orders", Key: "a"})
	require.NoError(t, err)
	assert.Equal(t, 3, fake.attempts)
}

func TestPublishEventGivesUpAfterMaxElapsed(t *testing.T) {
	fake := &fakeJetStream{failUntil: 1000}
	p := newPublisherWithFake(fake)
	p.maxElapsed = 50 * time.Millisecond

	err := p.PublishEvent(journal.Event{Sequence: 1, Type: journal.EventDelete, MapName: "orders", Key: "a"})
	assert.Error(t, err)
}

func TestPublishEventLoggedNeverReturnsError(t *testing.T) {
	fake := &fakeJetStream{failUntil: 1000}
	p := newPublisherWithFake(fake)
	p.maxElapsed = 20 * time.Millisecond

	assert.NotPanics(t, func() {
		p.PublishEventLogged(journal.Event{Sequence: 1, Type: journal.EventPut, MapName: "orders", Key: "a"})
	})
}
