package ws

import (
	"context"
	"time"

	"github.com/google/uuid"

	"community-chat/internal/observability"
)

const (
	wsKind       = "chat_view"
	wsRoutingKey = "ws_events.chat_views"
)

func newConnID() string {
	return uuid.NewString()
}

// publishWSEvent emits a connection lifecycle event for info.
func publishWSEvent(ctx context.Context, info ConnInfo, groupID, event, reason string) {
	duration := int64(0)
	if event != "ws_connect" {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}
	envelope := observability.NewConnEnvelope(observability.ConnEvent{
		Kind:       wsKind,
		GroupID:    groupID,
		Event:      event,
		ConnID:     info.ConnID,
		DurationMS: duration,
		Reason:     reason,
	}, info.identity())
	_ = observability.PublishEvent(ctx, wsRoutingKey, envelope, observability.BuildHeaders(info.RequestID, info.TraceID))
	observability.IncWSEvent(wsKind, event)
}
