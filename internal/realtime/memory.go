package realtime

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"community-chat/internal/models"
)

// MemorySource is an in-process live source. Deliveries run synchronously on
// the goroutine that caused them.
type MemorySource struct {
	mu       sync.Mutex
	now      func() time.Time
	messages map[string]models.Message
	groups   map[string]models.Group
	members  map[string]models.Member
	subs     map[*memorySub]struct{}
	failNext error
}

type feedKind int

const (
	feedMessages feedKind = iota
	feedGroups
	feedMembers
)

type memorySub struct {
	src       *MemorySource
	kind      feedKind
	query     MessageQuery
	onMsgs    MessagesHandler
	onGroups  GroupsHandler
	onMembers MembersHandler
	onError   ErrorHandler

	deliverMu sync.Mutex
	once      sync.Once
	done      bool
}

// NewMemorySource creates an empty source.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		now:      time.Now,
		messages: make(map[string]models.Message),
		groups:   make(map[string]models.Group),
		members:  make(map[string]models.Member),
		subs:     make(map[*memorySub]struct{}),
	}
}

// SetClock replaces the server clock.
func (s *MemorySource) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailWrites makes the next write return err.
func (s *MemorySource) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// PutGroup upserts a group and notifies group subscribers.
func (s *MemorySource) PutGroup(g models.Group) {
	s.mu.Lock()
	s.groups[g.ID] = g
	s.mu.Unlock()
	s.publish(feedGroups, "")
}

// PutMember upserts a member and notifies member subscribers.
func (s *MemorySource) PutMember(m models.Member) {
	s.mu.Lock()
	s.members[m.ID] = m
	s.mu.Unlock()
	s.publish(feedMembers, "")
}

// Disconnect fails every open subscription with ErrFeedDisconnected.
func (s *MemorySource) Disconnect() {
	s.mu.Lock()
	subs := make([]*memorySub, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()
	for _, sub := range subs {
		sub.fail(ErrFeedDisconnected)
	}
}

// ActiveSubscriptions counts open message subscriptions for groupID.
func (s *MemorySource) ActiveSubscriptions(groupID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for sub := range s.subs {
		if sub.kind == feedMessages && sub.query.GroupID == groupID {
			n++
		}
	}
	return n
}

// TotalSubscriptions counts every open subscription.
func (s *MemorySource) TotalSubscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *MemorySource) SubscribeMessages(q MessageQuery, onSnapshot MessagesHandler, onError ErrorHandler) Subscription {
	return s.subscribe(&memorySub{kind: feedMessages, query: q, onMsgs: onSnapshot, onError: onError})
}

func (s *MemorySource) SubscribeGroups(onSnapshot GroupsHandler, onError ErrorHandler) Subscription {
	return s.subscribe(&memorySub{kind: feedGroups, onGroups: onSnapshot, onError: onError})
}

func (s *MemorySource) SubscribeMembers(onSnapshot MembersHandler, onError ErrorHandler) Subscription {
	return s.subscribe(&memorySub{kind: feedMembers, onMembers: onSnapshot, onError: onError})
}

func (s *MemorySource) subscribe(sub *memorySub) Subscription {
	sub.src = s
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	sub.deliver()
	return sub
}

func (s *MemorySource) InsertMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, err
	}
	s.mu.Lock()
	if err := s.takeFailure(); err != nil {
		s.mu.Unlock()
		return models.Message{}, err
	}
	msg = msg.Clone()
	msg.ID = uuid.NewString()
	msg.CreatedAt = s.now()
	s.messages[msg.ID] = msg
	s.mu.Unlock()

	s.publish(feedMessages, msg.GroupID)
	return msg.Clone(), nil
}

func (s *MemorySource) ReplaceReactions(ctx context.Context, messageID string, reactions models.Reactions) error {
	return s.update(ctx, messageID, func(m *models.Message) {
		m.Reactions = reactions.Clone()
	})
}

func (s *MemorySource) SoftDeleteMessage(ctx context.Context, messageID, moderatorID string) error {
	return s.update(ctx, messageID, func(m *models.Message) {
		m.IsDeleted = true
		m.DeletedBy = moderatorID
	})
}

func (s *MemorySource) update(ctx context.Context, messageID string, apply func(*models.Message)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if err := s.takeFailure(); err != nil {
		s.mu.Unlock()
		return err
	}
	msg, ok := s.messages[messageID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("update %s: %w", messageID, ErrMessageNotFound)
	}
	apply(&msg)
	s.messages[messageID] = msg
	s.mu.Unlock()

	s.publish(feedMessages, msg.GroupID)
	return nil
}

func (s *MemorySource) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

func (s *MemorySource) publish(kind feedKind, groupID string) {
	s.mu.Lock()
	targets := make([]*memorySub, 0, len(s.subs))
	for sub := range s.subs {
		if sub.kind != kind {
			continue
		}
		if kind == feedMessages && sub.query.GroupID != groupID {
			continue
		}
		targets = append(targets, sub)
	}
	s.mu.Unlock()
	for _, sub := range targets {
		sub.deliver()
	}
}

func (s *MemorySource) messagesFor(q MessageQuery) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, 0)
	for _, m := range s.messages {
		if m.GroupID == q.GroupID {
			out = append(out, m.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return recent(out, q.limit())
}

func (s *MemorySource) groupList() []models.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name.EN < out[j].Name.EN })
	return out
}

func (s *MemorySource) activeMembers() []models.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Member, 0, len(s.members))
	for _, m := range s.members {
		if m.IsActive {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out
}

func (sub *memorySub) deliver() {
	sub.deliverMu.Lock()
	defer sub.deliverMu.Unlock()
	if sub.done {
		return
	}
	switch sub.kind {
	case feedMessages:
		sub.onMsgs(sub.src.messagesFor(sub.query))
	case feedGroups:
		sub.onGroups(sub.src.groupList())
	case feedMembers:
		sub.onMembers(sub.src.activeMembers())
	}
}

func (sub *memorySub) fail(err error) {
	sub.deliverMu.Lock()
	if sub.done {
		sub.deliverMu.Unlock()
		return
	}
	sub.done = true
	sub.deliverMu.Unlock()
	sub.remove()
	if sub.onError != nil {
		sub.onError(err)
	}
}

func (sub *memorySub) Cancel() {
	sub.deliverMu.Lock()
	sub.done = true
	sub.deliverMu.Unlock()
	sub.remove()
}

func (sub *memorySub) remove() {
	sub.once.Do(func() {
		sub.src.mu.Lock()
		delete(sub.src.subs, sub)
		sub.src.mu.Unlock()
	})
}
