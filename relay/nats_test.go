package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earnings/events"
	"earnings/models"
)

type message struct {
	subject string
	data    []byte
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []message
	err      error
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message{subject: subject, data: data})
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

var october = models.PeriodFor(time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC))

func TestSubjectFor(t *testing.T) {
	tests := []struct {
		event events.Event
		want  string
	}{
		{events.PlatformsFrozenEvent{}, "earnings.period.platforms_frozen"},
		{events.PlatformsUnfrozenEvent{}, "earnings.period.platforms_unfrozen"},
		{events.PeriodClosedEvent{}, "earnings.period.closed"},
		{events.RateActivatedEvent{}, "earnings.rates.activated"},
		{events.PayoutConfigUpdatedEvent{}, "earnings.config.updated"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SubjectFor("earnings", tt.event))
	}
}

func TestRelayPublishesEnvelope(t *testing.T) {
	pub := &recordingPublisher{}
	r := newRelay("studio", pub)
	fixed := time.Date(2024, 10, 16, 0, 5, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	r.handle(context.Background(), events.PeriodClosedEvent{
		Period:   october,
		Status:   models.ClosureStateCompleted,
		Models:   3,
		Archived: 27,
	})

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "studio.period.closed", pub.messages[0].subject)

	var env Envelope
	require.NoError(t, json.Unmarshal(pub.messages[0].data, &env))
	assert.Equal(t, string(events.EventTypePeriodClosed), env.EventType)
	assert.Equal(t, "earnings", env.SourceService)
	assert.True(t, fixed.Equal(env.Timestamp))
	_, err := uuid.Parse(env.EventID)
	assert.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.EqualValues(t, 27, payload["Archived"])
	assert.EqualValues(t, 3, payload["Models"])
}

func TestRelayDefaultsPrefix(t *testing.T) {
	r := newRelay("", &recordingPublisher{})
	assert.Equal(t, "earnings", r.prefix)
}

func TestRelayPublishError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats: connection closed")}
	r := newRelay("earnings", pub)

	err := r.publish("earnings.rates.activated", events.RateActivatedEvent{ActorID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "earnings.rates.activated")

	// handle logs and swallows the failure
	assert.NotPanics(t, func() {
		r.handle(context.Background(), events.RateActivatedEvent{})
	})
}

func TestRelaySubscribe(t *testing.T) {
	pub := &recordingPublisher{}
	r := newRelay("earnings", pub)
	bus := events.NewBus()
	r.Subscribe(bus)

	bus.Emit(context.Background(), events.PlatformsFrozenEvent{Period: october, Rule: "early-freeze"})
	bus.Emit(context.Background(), events.PayoutConfigUpdatedEvent{ModelID: uuid.New(), ConfigID: 4})

	assert.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 10*time.Millisecond)
}
