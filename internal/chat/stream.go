package chat

import (
	"sync"

	"github.com/rs/zerolog/log"

	"community-chat/internal/models"
	"community-chat/internal/observability"
	"community-chat/internal/realtime"
)

// Stream holds at most one message subscription at a time.
type Stream struct {
	source     realtime.Source
	limit      int
	onSnapshot func(groupID string, msgs []models.Message)
	onError    func(groupID string, err error)

	opMu    sync.Mutex
	mu      sync.Mutex
	gen     uint64
	groupID string
	sub     realtime.Subscription
}

// NewStream wires a stream to a source. limit <= 0 means the source default.
func NewStream(source realtime.Source, limit int, onSnapshot func(string, []models.Message), onError func(string, error)) *Stream {
	return &Stream{source: source, limit: limit, onSnapshot: onSnapshot, onError: onError}
}

// Subscribe cancels the current subscription and opens one for groupID.
// Deliveries from the cancelled subscription are dropped, even ones already
// in flight.
func (s *Stream) Subscribe(groupID string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	gen := s.retire(groupID)

	q := realtime.MessageQuery{GroupID: groupID, Limit: s.limit}
	sub := s.source.SubscribeMessages(q,
		func(msgs []models.Message) {
			s.deliver(gen, func() { s.onSnapshot(groupID, msgs) })
		},
		func(err error) {
			log.Warn().Err(err).Str("group_id", groupID).Msg("message subscription failed")
			observability.IncSubscriptionError("messages")
			s.deliver(gen, func() { s.onError(groupID, err) })
		},
	)

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
}

// Cancel releases the current subscription, if any.
func (s *Stream) Cancel() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.retire("")
}

// GroupID is the group of the current subscription.
func (s *Stream) GroupID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupID
}

// retire invalidates the current generation and cancels its subscription.
func (s *Stream) retire(next string) uint64 {
	s.mu.Lock()
	prev := s.sub
	s.sub = nil
	s.gen++
	gen := s.gen
	s.groupID = next
	s.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}
	return gen
}

func (s *Stream) deliver(gen uint64, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	fn()
}
