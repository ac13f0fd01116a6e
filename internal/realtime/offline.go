package realtime

import (
	"context"

	"community-chat/internal/models"
)

// OfflineSource stands in when no database is reachable. Every subscription
// fails immediately, which puts sessions into local mode.
type OfflineSource struct{}

type noopSub struct{}

func (noopSub) Cancel() {}

func (OfflineSource) SubscribeMessages(_ MessageQuery, _ MessagesHandler, onError ErrorHandler) Subscription {
	return failNow(onError)
}

func (OfflineSource) SubscribeGroups(_ GroupsHandler, onError ErrorHandler) Subscription {
	return failNow(onError)
}

func (OfflineSource) SubscribeMembers(_ MembersHandler, onError ErrorHandler) Subscription {
	return failNow(onError)
}

func (OfflineSource) InsertMessage(context.Context, models.Message) (models.Message, error) {
	return models.Message{}, ErrUnavailable
}

func (OfflineSource) ReplaceReactions(context.Context, string, models.Reactions) error {
	return ErrUnavailable
}

func (OfflineSource) SoftDeleteMessage(context.Context, string, string) error {
	return ErrUnavailable
}

func failNow(onError ErrorHandler) Subscription {
	if onError != nil {
		onError(ErrUnavailable)
	}
	return noopSub{}
}
