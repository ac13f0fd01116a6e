package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-chat/internal/models"
	"community-chat/internal/realtime"
)

// captureSource keeps the handlers of every message subscription so tests can
// deliver late.
type captureSource struct {
	realtime.OfflineSource

	mu        sync.Mutex
	snapshots []realtime.MessagesHandler
	errors    []realtime.ErrorHandler
	queries   []realtime.MessageQuery
	cancelled int
}

type captureSub struct{ src *captureSource }

func (c captureSub) Cancel() {
	c.src.mu.Lock()
	c.src.cancelled++
	c.src.mu.Unlock()
}

func (c *captureSource) SubscribeMessages(q realtime.MessageQuery, onSnapshot realtime.MessagesHandler, onError realtime.ErrorHandler) realtime.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, q)
	c.snapshots = append(c.snapshots, onSnapshot)
	c.errors = append(c.errors, onError)
	return captureSub{src: c}
}

type streamEvent struct {
	groupID string
	count   int
	err     error
}

func newTestStream(src realtime.Source) (*Stream, *[]streamEvent) {
	var events []streamEvent
	s := NewStream(src, 25,
		func(groupID string, msgs []models.Message) {
			events = append(events, streamEvent{groupID: groupID, count: len(msgs)})
		},
		func(groupID string, err error) {
			events = append(events, streamEvent{groupID: groupID, err: err})
		},
	)
	return s, &events
}

func TestStreamSubscribeReplacesPrevious(t *testing.T) {
	src := &captureSource{}
	s, events := newTestStream(src)

	s.Subscribe("general")
	s.Subscribe("events")

	assert.Equal(t, 1, src.cancelled)
	assert.Equal(t, "events", s.GroupID())
	require.Len(t, src.queries, 2)
	assert.Equal(t, realtime.MessageQuery{GroupID: "events", Limit: 25}, src.queries[1])

	src.snapshots[0]([]models.Message{{ID: "late"}})
	src.errors[0](errors.New("late failure"))
	assert.Empty(t, *events, "cancelled subscription must not deliver")

	src.snapshots[1]([]models.Message{{ID: "a"}, {ID: "b"}})
	assert.Equal(t, []streamEvent{{groupID: "events", count: 2}}, *events)
}

func TestStreamCancel(t *testing.T) {
	src := &captureSource{}
	s, events := newTestStream(src)

	s.Subscribe("general")
	s.Cancel()
	s.Cancel()

	assert.Equal(t, 1, src.cancelled)
	assert.Equal(t, "", s.GroupID())
	src.snapshots[0]([]models.Message{{ID: "late"}})
	assert.Empty(t, *events)
}

func TestStreamForwardsErrors(t *testing.T) {
	s, events := newTestStream(realtime.OfflineSource{})

	s.Subscribe("general")

	require.Len(t, *events, 1)
	assert.ErrorIs(t, (*events)[0].err, realtime.ErrUnavailable)
	assert.Equal(t, "general", (*events)[0].groupID)
}

func TestStreamWithMemorySource(t *testing.T) {
	src := realtime.NewMemorySource()
	s, events := newTestStream(src)

	s.Subscribe("general")
	_, err := src.InsertMessage(context.Background(), models.Message{GroupID: "general", Body: "hi"})
	require.NoError(t, err)

	assert.Equal(t, []streamEvent{{groupID: "general", count: 0}, {groupID: "general", count: 1}}, *events)
	assert.Equal(t, 1, src.ActiveSubscriptions("general"))

	s.Cancel()
	assert.Equal(t, 0, src.ActiveSubscriptions("general"))
}
