package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"community-chat/internal/models"
	"community-chat/internal/repositories"
)

// Notification channel base names; the namespace prefix is added by PGSource.
const (
	ChannelMessages = "chat_messages"
	ChannelGroups   = "chat_groups"
	ChannelMembers  = "chat_members"
)

const queryTimeout = 5 * time.Second

// Listener is the subset of *pq.Listener used by PGSource.
type Listener interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Close() error
}

// PGSource turns postgres LISTEN/NOTIFY into push subscriptions. Every
// notification re-runs the subscription query and delivers the full result.
type PGSource struct {
	groups   repositories.GroupRepository
	members  repositories.MemberRepository
	messages repositories.GroupMessageRepository
	listener Listener
	prefix   string

	mu   sync.Mutex
	subs map[*pgSub]struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// PGConfig wires a PGSource.
type PGConfig struct {
	Groups   repositories.GroupRepository
	Members  repositories.MemberRepository
	Messages repositories.GroupMessageRepository
	Listener Listener
	Prefix   string
}

// NewPGSource starts listening on the three chat channels.
func NewPGSource(cfg PGConfig) (*PGSource, error) {
	s := &PGSource{
		groups:   cfg.Groups,
		members:  cfg.Members,
		messages: cfg.Messages,
		listener: cfg.Listener,
		prefix:   cfg.Prefix,
		subs:     make(map[*pgSub]struct{}),
		done:     make(chan struct{}),
	}
	for _, ch := range []string{ChannelMessages, ChannelGroups, ChannelMembers} {
		if err := s.listener.Listen(s.prefix + ch); err != nil {
			return nil, err
		}
	}
	s.wg.Add(1)
	go s.dispatchLoop()
	return s, nil
}

// NewListener builds a pq listener. Pass PGSource.OnListenerEvent (through a
// closure, since the source is created after the listener) as onEvent.
func NewListener(dsn string, onEvent func(pq.ListenerEventType, error)) *pq.Listener {
	return pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if onEvent != nil {
			onEvent(ev, err)
		}
	})
}

// OnListenerEvent fails every open subscription when the listener loses its
// connection. Notifications sent while disconnected are lost, so a snapshot
// could be stale; views resubscribe explicitly.
func (s *PGSource) OnListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventDisconnected, pq.ListenerEventConnectionAttemptFailed:
		log.Warn().Err(err).Msg("live feed listener disconnected")
		s.failAll(ErrFeedDisconnected)
	case pq.ListenerEventReconnected:
		log.Info().Msg("live feed listener reconnected")
	}
}

// Close stops dispatching and cancels all subscriptions.
func (s *PGSource) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)
	s.mu.Lock()
	subs := make([]*pgSub, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()
	for _, sub := range subs {
		sub.Cancel()
	}
	err := s.listener.Close()
	s.wg.Wait()
	return err
}

func (s *PGSource) dispatchLoop() {
	defer s.wg.Done()
	notifications := s.listener.NotificationChannel()
	for {
		select {
		case <-s.done:
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			if n == nil {
				// pq sends nil after a reconnect; every feed may have missed updates.
				s.markAll()
				continue
			}
			s.Dispatch(n.Channel, n.Extra)
		}
	}
}

// Dispatch wakes the subscriptions interested in a notification.
func (s *PGSource) Dispatch(channel, payload string) {
	var kind feedKind
	switch channel {
	case s.prefix + ChannelMessages:
		kind = feedMessages
	case s.prefix + ChannelGroups:
		kind = feedGroups
	case s.prefix + ChannelMembers:
		kind = feedMembers
	default:
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		if sub.kind != kind {
			continue
		}
		if kind == feedMessages && sub.query.GroupID != payload {
			continue
		}
		sub.mark()
	}
}

func (s *PGSource) markAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		sub.mark()
	}
}

func (s *PGSource) failAll(err error) {
	s.mu.Lock()
	subs := make([]*pgSub, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()
	for _, sub := range subs {
		sub.fail(err)
	}
}

func (s *PGSource) SubscribeMessages(q MessageQuery, onSnapshot MessagesHandler, onError ErrorHandler) Subscription {
	return s.start(&pgSub{kind: feedMessages, query: q, onMsgs: onSnapshot, onError: onError})
}

func (s *PGSource) SubscribeGroups(onSnapshot GroupsHandler, onError ErrorHandler) Subscription {
	return s.start(&pgSub{kind: feedGroups, onGroups: onSnapshot, onError: onError})
}

func (s *PGSource) SubscribeMembers(onSnapshot MembersHandler, onError ErrorHandler) Subscription {
	return s.start(&pgSub{kind: feedMembers, onMembers: onSnapshot, onError: onError})
}

func (s *PGSource) start(sub *pgSub) Subscription {
	sub.src = s
	sub.ctx, sub.cancel = context.WithCancel(context.Background())
	sub.dirty = make(chan struct{}, 1)
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	sub.mark()
	go sub.run()
	return sub
}

func (s *PGSource) remove(sub *pgSub) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

func (s *PGSource) InsertMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	ctx, span := startWrite(ctx, "messages.insert", attribute.String("chat.group_id", msg.GroupID))
	defer span.End()

	saved, err := s.messages.CreateGroupMessage(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return models.Message{}, err
	}
	return saved, nil
}

func (s *PGSource) ReplaceReactions(ctx context.Context, messageID string, reactions models.Reactions) error {
	ctx, span := startWrite(ctx, "messages.replace_reactions", attribute.String("chat.message_id", messageID))
	defer span.End()

	if err := s.messages.ReplaceReactions(ctx, messageID, reactions); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	return nil
}

func (s *PGSource) SoftDeleteMessage(ctx context.Context, messageID, moderatorID string) error {
	ctx, span := startWrite(ctx, "messages.soft_delete", attribute.String("chat.message_id", messageID))
	defer span.End()

	if err := s.messages.SoftDelete(ctx, messageID, moderatorID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "soft delete failed")
		return err
	}
	return nil
}

func startWrite(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("community-chat/realtime").Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(attrs, attribute.String("db.system", "postgresql"))...),
	)
}

type pgSub struct {
	src       *PGSource
	kind      feedKind
	query     MessageQuery
	onMsgs    MessagesHandler
	onGroups  GroupsHandler
	onMembers MembersHandler
	onError   ErrorHandler

	ctx    context.Context
	cancel context.CancelFunc
	dirty  chan struct{}

	deliverMu sync.Mutex
	done      bool
}

func (sub *pgSub) mark() {
	select {
	case sub.dirty <- struct{}{}:
	default:
	}
}

func (sub *pgSub) run() {
	for {
		select {
		case <-sub.ctx.Done():
			return
		case <-sub.dirty:
			if err := sub.refresh(); err != nil {
				if sub.ctx.Err() != nil {
					return
				}
				sub.fail(err)
				return
			}
		}
	}
}

// refresh runs the query and delivers the snapshot unless cancelled meanwhile.
func (sub *pgSub) refresh() error {
	ctx, cancel := context.WithTimeout(sub.ctx, queryTimeout)
	defer cancel()

	var deliver func()
	switch sub.kind {
	case feedMessages:
		msgs, err := sub.src.messages.ListRecentGroupMessages(ctx, sub.query.GroupID, sub.query.limit())
		if err != nil {
			return err
		}
		deliver = func() { sub.onMsgs(msgs) }
	case feedGroups:
		groups, err := sub.src.groups.ListGroups(ctx)
		if err != nil {
			return err
		}
		deliver = func() { sub.onGroups(groups) }
	case feedMembers:
		members, err := sub.src.members.ListActiveMembers(ctx)
		if err != nil {
			return err
		}
		deliver = func() { sub.onMembers(members) }
	}

	sub.deliverMu.Lock()
	defer sub.deliverMu.Unlock()
	if sub.done {
		return nil
	}
	deliver()
	return nil
}

func (sub *pgSub) fail(err error) {
	sub.deliverMu.Lock()
	if sub.done {
		sub.deliverMu.Unlock()
		return
	}
	sub.done = true
	sub.deliverMu.Unlock()
	sub.cancel()
	sub.src.remove(sub)
	if sub.onError != nil {
		sub.onError(err)
	}
}

func (sub *pgSub) Cancel() {
	sub.deliverMu.Lock()
	sub.done = true
	sub.deliverMu.Unlock()
	sub.cancel()
	sub.src.remove(sub)
}
