package ws

import (
	"time"

	"community-chat/internal/observability"
)

// ConnInfo is what the hub knows about one chat view connection. UserID is
// empty for anonymous viewers.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func (i ConnInfo) identity() observability.ConnIdentity {
	return observability.ConnIdentity{UserID: i.UserID, DeviceID: i.DeviceID, IP: i.IP}
}
