package models

// StreamMode says where a group's messages are read from and written to.
type StreamMode string

const (
	// ModeLocal serves the in-memory fallback feed. Every group starts here.
	ModeLocal StreamMode = "LOCAL"
	// ModeSynced serves the live feed. A group never leaves it during a session.
	ModeSynced StreamMode = "SYNCED"
)
