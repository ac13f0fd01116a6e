package observability

// EventEnvelope wraps every operational event sent to the broker.
type EventEnvelope struct {
	EventType string `json:"event_type"`
	EventName string `json:"event_name"`
	Payload   any    `json:"payload"`
}

// ConnEvent is a chat view connection lifecycle change.
type ConnEvent struct {
	Kind       string `json:"kind"`
	GroupID    string `json:"group_id,omitempty"`
	Event      string `json:"event"`
	ConnID     string `json:"conn_id"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason,omitempty"`
}

// ConnIdentity is who held the connection.
type ConnIdentity struct {
	UserID   string `json:"user_id,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
	IP       string `json:"ip,omitempty"`
}

// NewConnEnvelope builds the "ws_events" envelope for ev.
func NewConnEnvelope(ev ConnEvent, who ConnIdentity) EventEnvelope {
	return EventEnvelope{
		EventType: "ws_events",
		EventName: ev.Event,
		Payload: map[string]any{
			"ws":       ev,
			"identity": who,
		},
	}
}

// BuildHeaders returns broker headers for the request and trace ids, skipping
// empty ones.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := make(map[string]string, 2)
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
