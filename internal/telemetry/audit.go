package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Audit levels.
const (
	LevelInfo  = "INFO"
	LevelError = "ERROR"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// AuditEvent is one moderation or operational action worth recording.
type AuditEvent struct {
	Level     string
	Text      string
	RequestID string
	UserID    string
	GroupID   string
	MessageID string
}

// AuditEmitter publishes audit_log envelopes for chat actions.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	now         func() time.Time
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level     string `json:"level"`
	Text      string `json:"text"`
	GroupID   string `json:"group_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		now:         time.Now,
	}
}

// Emit publishes ev. Publish failures are logged, never returned.
func (e *AuditEmitter) Emit(ctx context.Context, ev AuditEvent) {
	if e == nil || e.publisher == nil {
		return
	}

	log.Debug().Str("level", ev.Level).Str("request_id", ev.RequestID).Str("text", ev.Text).Msg("audit emit")
	if err := e.publisher.Publish(ctx, e.routingKey, e.envelope(ev), map[string]string{"x-request-id": ev.RequestID}); err != nil {
		log.Warn().Err(err).Str("text", ev.Text).Msg("audit publish failed")
	}
}

func (e *AuditEmitter) envelope(ev AuditEvent) AuditEnvelope {
	env := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     ev.RequestID,
		Payload: AuditPayload{
			Level:     ev.Level,
			Text:      ev.Text,
			GroupID:   ev.GroupID,
			MessageID: ev.MessageID,
		},
	}
	if ev.UserID != "" {
		userID := ev.UserID
		env.UserID = &userID
	}
	return env
}
