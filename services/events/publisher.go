package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/upb/manual-share/config"
	"github.com/upb/manual-share/models"
	"go.uber.org/zap"
)

// Event is the JSON document published for every audited domain action
type Event struct {
	ID           uuid.UUID       `json:"id"`
	Type         string          `json:"type"`
	OrgID        uuid.UUID       `json:"org_id"`
	UserID       *uuid.UUID      `json:"user_id,omitempty"`
	ResourceType string          `json:"resource_type"`
	ResourceID   *uuid.UUID      `json:"resource_id,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	RequestID    string          `json:"request_id,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// FromAuditLog converts an audit entry into an event
func FromAuditLog(log *models.AuditLog) *Event {
	return &Event{
		ID:           log.ID,
		Type:         string(log.Action),
		OrgID:        log.OrgID,
		UserID:       log.UserID,
		ResourceType: log.ResourceType,
		ResourceID:   log.ResourceID,
		Details:      log.Details,
		RequestID:    log.RequestID,
		OccurredAt:   log.Timestamp.UTC(),
	}
}

// Publisher delivers events to a broker
type Publisher interface {
	// Publish sends one event
	Publish(ctx context.Context, event *Event) error

	// Close releases the broker connection
	Close() error
}

// NoopPublisher drops every event
type NoopPublisher struct{}

// Publish implements Publisher
func (NoopPublisher) Publish(context.Context, *Event) error { return nil }

// Close implements Publisher
func (NoopPublisher) Close() error { return nil }

// NewPublisher connects the broker selected by cfg.Broker
func NewPublisher(cfg config.EventsConfig, logger *zap.Logger) (Publisher, error) {
	switch cfg.Broker {
	case "", "none":
		logger.Info("domain event publishing disabled")
		return NoopPublisher{}, nil
	case "amqp":
		return DialAMQP(cfg.AMQPURL, cfg.SubjectPrefix, logger)
	case "nats":
		return ConnectNATS(cfg.NATSURL, cfg.SubjectPrefix, logger)
	default:
		return nil, fmt.Errorf("unknown event broker %q", cfg.Broker)
	}
}

// routingKey names the queue or subject of an event, e.g. manualshare.manual_created
func routingKey(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}
