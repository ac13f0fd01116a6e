// Package seed provides the built-in groups and demo conversation used while a
// group has no live data.
package seed

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"community-chat/internal/models"
)

//go:embed seed.yaml
var defaultDocument []byte

type seedMessage struct {
	ID          string           `yaml:"id"`
	UserID      string           `yaml:"user_id"`
	DisplayName string           `yaml:"display_name"`
	Body        string           `yaml:"body"`
	Kind        string           `yaml:"kind"`
	MinutesAgo  int              `yaml:"minutes_ago"`
	Reactions   models.Reactions `yaml:"reactions"`
	Mentions    []string         `yaml:"mentions"`
	ReplyTo     *struct {
		MessageID   string `yaml:"message_id"`
		DisplayName string `yaml:"display_name"`
		Preview     string `yaml:"preview"`
	} `yaml:"reply_to"`
}

type document struct {
	DefaultGroup string         `yaml:"default_group"`
	Groups       []models.Group `yaml:"groups"`
	Conversation []seedMessage  `yaml:"conversation"`
}

// Data is the static demo data set.
type Data struct {
	defaultGroup string
	groups       []models.Group
	conversation []seedMessage
	loadedAt     time.Time
}

// Default parses the embedded seed document.
func Default() (*Data, error) {
	return Parse(defaultDocument)
}

// MustDefault is Default for process start-up.
func MustDefault() *Data {
	d, err := Default()
	if err != nil {
		panic(err)
	}
	return d
}

// Parse builds a data set from a YAML document.
func Parse(raw []byte) (*Data, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if doc.DefaultGroup == "" {
		return nil, fmt.Errorf("parse seed: default_group is required")
	}
	found := false
	for i := range doc.Groups {
		if doc.Groups[i].ID == doc.DefaultGroup {
			doc.Groups[i].IsDefault = true
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("parse seed: default group %q not in groups", doc.DefaultGroup)
	}
	return &Data{
		defaultGroup: doc.DefaultGroup,
		groups:       doc.Groups,
		conversation: doc.Conversation,
		loadedAt:     time.Now(),
	}, nil
}

// DefaultGroupID is the id of the group that always exists.
func (d *Data) DefaultGroupID() string {
	return d.defaultGroup
}

// Groups returns a copy of the built-in group list.
func (d *Data) Groups() []models.Group {
	out := make([]models.Group, len(d.groups))
	copy(out, d.groups)
	for i := range out {
		if out[i].CreatedAt.IsZero() {
			out[i].CreatedAt = d.loadedAt
		}
	}
	return out
}

// Conversation returns the seed messages for groupID. Only the default group
// has a seed conversation.
func (d *Data) Conversation(groupID string) []models.Message {
	if groupID != d.defaultGroup {
		return []models.Message{}
	}
	out := make([]models.Message, 0, len(d.conversation))
	for _, s := range d.conversation {
		msg := models.Message{
			ID:            s.ID,
			GroupID:       groupID,
			UserID:        s.UserID,
			DisplayName:   s.DisplayName,
			Body:          s.Body,
			TextDirection: models.DetectDirection(s.Body),
			Kind:          models.MessageKind(s.Kind),
			Mentions:      append([]string{}, s.Mentions...),
			Reactions:     s.Reactions.Clone(),
			CreatedAt:     d.loadedAt.Add(-time.Duration(s.MinutesAgo) * time.Minute),
		}
		if msg.Kind == "" {
			msg.Kind = models.KindText
		}
		if s.ReplyTo != nil {
			msg.ReplyTo = &models.ReplyRef{
				MessageID:   s.ReplyTo.MessageID,
				DisplayName: s.ReplyTo.DisplayName,
				Preview:     s.ReplyTo.Preview,
			}
		}
		out = append(out, msg)
	}
	return out
}
