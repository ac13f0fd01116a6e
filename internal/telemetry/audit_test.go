package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	keys    []string
	events  []any
	headers []map[string]string
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, event any, headers map[string]string) error {
	p.keys = append(p.keys, routingKey)
	p.events = append(p.events, event)
	p.headers = append(p.headers, headers)
	return p.err
}

func TestEmitBuildsEnvelope(t *testing.T) {
	pub := &recordingPublisher{}
	emitter := NewAuditEmitter(pub, "audit.chat", "community-chat", "test")
	emitter.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	emitter.Emit(context.Background(), AuditEvent{
		Level:     LevelInfo,
		Text:      "Message deleted",
		RequestID: "req-1",
		UserID:    "u1",
		GroupID:   "general",
		MessageID: "m1",
	})

	require.Len(t, pub.events, 1)
	assert.Equal(t, "audit.chat", pub.keys[0])
	assert.Equal(t, "req-1", pub.headers[0]["x-request-id"])
	env := pub.events[0].(AuditEnvelope)
	assert.Equal(t, "audit_log", env.EventType)
	assert.Equal(t, "2024-03-01T12:00:00Z", env.OccurredAt)
	require.NotNil(t, env.UserID)
	assert.Equal(t, "u1", *env.UserID)
	assert.Equal(t, AuditPayload{Level: LevelInfo, Text: "Message deleted", GroupID: "general", MessageID: "m1"}, env.Payload)
}

func TestEmitAnonymousLeavesUserOut(t *testing.T) {
	pub := &recordingPublisher{}
	NewAuditEmitter(pub, "audit.chat", "community-chat", "test").Emit(context.Background(), AuditEvent{Level: LevelError, Text: "x"})

	require.Len(t, pub.events, 1)
	assert.Nil(t, pub.events[0].(AuditEnvelope).UserID)
}

func TestEmitSwallowsPublishErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	emitter := NewAuditEmitter(pub, "audit.chat", "community-chat", "test")

	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), AuditEvent{Level: LevelError, Text: "boom", RequestID: "req-2"})
	})
	assert.Len(t, pub.events, 1)
}

func TestNilEmitterIsSafe(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), AuditEvent{Level: LevelInfo, Text: "x"})
	})
}
