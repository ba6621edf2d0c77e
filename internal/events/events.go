// Package events publishes domain events to the configured message broker.
// Publishing is best-effort: a broker failure is logged and never fails the
// request that produced the event.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/taskhive/apiserver/internal/mq"
)

// Event types emitted by the resource services.
const (
	TaskCreated    = "task.created"
	TaskUpdated    = "task.updated"
	TaskDeleted    = "task.deleted"
	UserRegistered = "user.registered"
	UserBlocked    = "user.blocked"
	UserUnblocked  = "user.unblocked"
	UserDeleted    = "user.deleted"
)

// Event is the JSON payload published for every domain event.
type Event struct {
	// Type is one of the event type constants above.
	Type string `json:"type"`

	// ActorID is the account that triggered the event, 0 for
	// unauthenticated actions such as registration.
	ActorID int `json:"actor_id,omitempty"`

	// SubjectID is the id of the affected resource (task or user).
	SubjectID int `json:"subject_id"`

	// At is the time the event was emitted.
	At time.Time `json:"at"`
}

// Publisher emits events on a single configured channel. A nil Publisher
// is valid and drops everything, so callers never need to branch on
// whether the broker is configured.
type Publisher struct {
	mq      *mq.MQ
	channel string
	log     *logrus.Logger
}

// NewPublisher constructs a Publisher over the given broker.
func NewPublisher(broker *mq.MQ, channel string, log *logrus.Logger) *Publisher {
	return &Publisher{mq: broker, channel: channel, log: log}
}

// Publish emits a single event. Failures are logged, never returned.
func (p *Publisher) Publish(ctx context.Context, eventType string, actorID, subjectID int) {
	if p == nil || p.mq == nil {
		return
	}

	event := Event{
		Type:      eventType,
		ActorID:   actorID,
		SubjectID: subjectID,
		At:        time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.log.WithError(err).WithField("type", eventType).Warn("failed to encode event")
		return
	}

	attrs := map[string]string{"type": eventType}
	if _, err := p.mq.Publish(ctx, p.channel, data, attrs); err != nil {
		p.log.WithError(err).WithField("type", eventType).Warn("failed to publish event")
	}
}

// Close closes the underlying broker connection.
func (p *Publisher) Close() error {
	if p == nil || p.mq == nil {
		return nil
	}
	return p.mq.Close()
}
