package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"earnings/events"
)

const sourceService = "earnings"

// Envelope wraps every relayed event
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// publisher is the part of a NATS connection the relay needs
type publisher interface {
	Publish(subject string, data []byte) error
}

// Config holds relay configuration
type Config struct {
	URL           string
	SubjectPrefix string
}

// Relay forwards committed domain events to NATS for other services
type Relay struct {
	prefix string
	conn   *nats.Conn
	pub    publisher
	now    func() time.Time
}

// Connect dials NATS and subscribes the relay to the bus
func Connect(config Config, eventBus *events.Bus) (*Relay, error) {
	opts := []nats.Option{
		nats.Name(sourceService),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Error("NATS disconnected with error")
			} else {
				log.Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	r := newRelay(config.SubjectPrefix, nc)
	r.conn = nc
	r.Subscribe(eventBus)

	log.WithFields(log.Fields{
		"servers": config.URL,
		"prefix":  r.prefix,
	}).Info("NATS event relay connected")
	return r, nil
}

func newRelay(prefix string, pub publisher) *Relay {
	if prefix == "" {
		prefix = sourceService
	}
	return &Relay{
		prefix: prefix,
		pub:    pub,
		now:    time.Now,
	}
}

// Subscribe registers the relay on the bus
func (r *Relay) Subscribe(eventBus *events.Bus) {
	for _, eventType := range relayedTypes {
		eventBus.Subscribe(eventType, r.handle)
	}
}

func (r *Relay) handle(ctx context.Context, event events.Event) {
	subject := SubjectFor(r.prefix, event)
	if err := r.publish(subject, event); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"subject":   subject,
			"error":     err,
		}).Error("Failed to relay event to NATS")
	}
}

func (r *Relay) publish(subject string, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	data, err := json.Marshal(Envelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     r.now().UTC(),
		SourceService: sourceService,
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	if err := r.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish message to subject %s: %w", subject, err)
	}

	log.WithFields(log.Fields{
		"subject": subject,
		"size":    len(data),
	}).Debug("Published event to NATS")
	return nil
}

// Close drains pending messages and closes the connection
func (r *Relay) Close() error {
	if r.conn == nil {
		return nil
	}
	if err := r.conn.Drain(); err != nil {
		r.conn.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	log.Info("NATS connection closed")
	return nil
}
