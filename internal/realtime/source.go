// Package realtime is the live data source boundary: ordered push
// subscriptions with an error channel, inserts stamped by the store, and
// whole-field patches.
package realtime

import (
	"context"
	"errors"

	"community-chat/internal/models"
	"community-chat/internal/repositories"
)

// DefaultMessageLimit bounds a message subscription to the newest N messages.
const DefaultMessageLimit = 100

var (
	// ErrFeedDisconnected is delivered to subscribers when the push channel drops.
	ErrFeedDisconnected = errors.New("live feed disconnected")
	// ErrUnavailable is returned by a source that has no backend at all.
	ErrUnavailable = errors.New("live source unavailable")
	// ErrMessageNotFound is returned when a write targets an unknown message.
	ErrMessageNotFound = repositories.ErrMessageNotFound
)

// MessageQuery selects one group's feed.
type MessageQuery struct {
	GroupID string
	Limit   int
}

// Handlers receive snapshots or an error. A source never calls both
// concurrently for one subscription, and an error ends the subscription.
type (
	MessagesHandler func([]models.Message)
	GroupsHandler   func([]models.Group)
	MembersHandler  func([]models.Member)
	ErrorHandler    func(error)
)

// Subscription is an open feed. Cancel is idempotent.
type Subscription interface {
	Cancel()
}

// Source is the live data source the chat engine depends on.
type Source interface {
	SubscribeMessages(q MessageQuery, onSnapshot MessagesHandler, onError ErrorHandler) Subscription
	SubscribeGroups(onSnapshot GroupsHandler, onError ErrorHandler) Subscription
	SubscribeMembers(onSnapshot MembersHandler, onError ErrorHandler) Subscription
	InsertMessage(ctx context.Context, msg models.Message) (models.Message, error)
	ReplaceReactions(ctx context.Context, messageID string, reactions models.Reactions) error
	SoftDeleteMessage(ctx context.Context, messageID, moderatorID string) error
}

// limit returns the effective bound of the query.
func (q MessageQuery) limit() int {
	if q.Limit <= 0 {
		return DefaultMessageLimit
	}
	return q.Limit
}

// recent keeps the newest n messages of an ascending list.
func recent(msgs []models.Message, n int) []models.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
