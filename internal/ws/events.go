package ws

import (
	"community-chat/internal/chat"
	"community-chat/internal/models"
)

// Client command types.
const (
	CommandSelectGroup = "select_group"
	CommandSend        = "send"
	CommandReact       = "react"
)

// Server event types.
const (
	EventView  = "view"
	EventToast = "toast"
)

// Command is a message from the client.
type Command struct {
	Type      string             `json:"type"`
	GroupID   string             `json:"group_id,omitempty"`
	Text      string             `json:"text,omitempty"`
	ReplyTo   string             `json:"reply_to,omitempty"`
	Kind      models.MessageKind `json:"kind,omitempty"`
	MessageID string             `json:"message_id,omitempty"`
	Emoji     string             `json:"emoji,omitempty"`
}

// Event is a message to the client.
type Event struct {
	Type  string       `json:"type"`
	View  *ViewPayload `json:"view,omitempty"`
	Toast *Toast       `json:"toast,omitempty"`
}

// Toast is a user-facing notification.
type Toast struct {
	Level chat.ToastLevel `json:"level"`
	Text  string          `json:"text"`
}

// MessagePayload is a message with its body split for mention highlighting.
type MessagePayload struct {
	models.Message
	Segments []chat.Segment `json:"segments"`
}

// ViewPayload is the wire form of chat.View.
type ViewPayload struct {
	Version  uint64            `json:"version"`
	GroupID  string            `json:"group_id"`
	Mode     models.StreamMode `json:"mode"`
	Loading  bool              `json:"loading"`
	SignedIn bool              `json:"signed_in"`
	Messages []MessagePayload  `json:"messages"`
	Groups   []models.Group    `json:"groups"`
	Members  []models.Member   `json:"members"`
}

func newViewPayload(v chat.View) *ViewPayload {
	roster := chat.NewDirectory()
	roster.Replace(v.Members)

	msgs := make([]MessagePayload, 0, len(v.Messages))
	for _, m := range v.Messages {
		segments := []chat.Segment{}
		if !m.IsDeleted {
			segments = chat.HighlightMentions(m.Body, roster)
		}
		msgs = append(msgs, MessagePayload{Message: m, Segments: segments})
	}
	return &ViewPayload{
		Version:  v.Version,
		GroupID:  v.GroupID,
		Mode:     v.Mode,
		Loading:  v.Loading,
		SignedIn: v.SignedIn,
		Messages: msgs,
		Groups:   v.Groups,
		Members:  v.Members,
	}
}
