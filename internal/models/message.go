package models

import "time"

// TextDirection is the rendering direction of a message body.
type TextDirection string

const (
	DirectionLTR TextDirection = "ltr"
	DirectionRTL TextDirection = "rtl"
)

// MessageKind is informational only and never enforced.
type MessageKind string

const (
	KindText          MessageKind = "text"
	KindEmoji         MessageKind = "emoji"
	KindIslamicPhrase MessageKind = "islamic_phrase"
)

// ReplyRef is a snapshot of the replied-to message taken at send time.
type ReplyRef struct {
	MessageID   string `json:"message_id"`
	DisplayName string `json:"display_name"`
	Preview     string `json:"preview"`
}

// Message represents a chat message in a group.
type Message struct {
	ID            string        `db:"id" json:"id"`
	GroupID       string        `db:"group_id" json:"group_id"`
	UserID        string        `db:"user_id" json:"user_id"`
	DisplayName   string        `db:"display_name" json:"display_name"`
	Body          string        `db:"body" json:"body"`
	TextDirection TextDirection `db:"text_direction" json:"text_direction"`
	Kind          MessageKind   `db:"kind" json:"kind"`
	IsDeleted     bool          `db:"is_deleted" json:"is_deleted"`
	DeletedBy     string        `db:"deleted_by" json:"deleted_by,omitempty"`
	ReplyTo       *ReplyRef     `db:"-" json:"reply_to,omitempty"`
	Mentions      []string      `db:"-" json:"mentions"`
	Reactions     Reactions     `db:"-" json:"reactions"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// Redacted returns a copy safe to hand to renderers: soft-deleted bodies are blanked.
func (m Message) Redacted() Message {
	if !m.IsDeleted {
		return m
	}
	m.Body = ""
	m.ReplyTo = nil
	m.Mentions = []string{}
	return m
}

// Clone copies the message including its nested collections.
func (m Message) Clone() Message {
	out := m
	if m.ReplyTo != nil {
		ref := *m.ReplyTo
		out.ReplyTo = &ref
	}
	out.Mentions = append([]string{}, m.Mentions...)
	out.Reactions = m.Reactions.Clone()
	return out
}
