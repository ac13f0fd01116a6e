// Package chat is the group chat engine: one Session per open chat view,
// keeping a group's messages in step with the live source and falling back to
// a local feed while the source has nothing for the group.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"community-chat/internal/models"
	"community-chat/internal/observability"
	"community-chat/internal/realtime"
)

var (
	ErrNotSignedIn     = errors.New("sign in to chat")
	ErrGroupNotFound   = errors.New("group not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNoGroupSelected = errors.New("no group selected")
	ErrEmptyReaction   = errors.New("reaction cannot be empty")
	ErrSessionClosed   = errors.New("chat session closed")
)

// Identity is the signed-in user. The zero value is an anonymous viewer.
type Identity struct {
	UserID      string
	DisplayName string
	Role        string
}

// SignedIn reports whether the identity may send and react.
func (i Identity) SignedIn() bool {
	return i.UserID != ""
}

// ToastLevel classifies a user-facing notification.
type ToastLevel string

const (
	ToastInfo  ToastLevel = "info"
	ToastError ToastLevel = "error"
)

// Notifier shows fire-and-forget notifications to the user.
type Notifier interface {
	Toast(ctx context.Context, level ToastLevel, text string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, level ToastLevel, text string)

func (f NotifierFunc) Toast(ctx context.Context, level ToastLevel, text string) {
	f(ctx, level, text)
}

// View is a complete render of the chat screen.
type View struct {
	Version  uint64            `json:"version"`
	GroupID  string            `json:"group_id"`
	Mode     models.StreamMode `json:"mode"`
	Loading  bool              `json:"loading"`
	SignedIn bool              `json:"signed_in"`
	Messages []models.Message  `json:"messages"`
	Groups   []models.Group    `json:"groups"`
	Members  []models.Member   `json:"members"`
}

// Config wires a Session.
type Config struct {
	Source       realtime.Source
	Groups       GroupSeed
	Conversation SeedConversation
	Identity     Identity
	Render       func(View)
	Notifier     Notifier
	MessageLimit int
	Now          func() time.Time
}

// Session owns the member, group and message subscriptions of one chat view.
// Feed callbacks and commands are serialized on mu, and no source call is
// made while mu is held.
type Session struct {
	source   realtime.Source
	identity Identity
	render   func(View)
	notifier Notifier
	now      func() time.Time
	ids      *localIDs

	directory *Directory
	registry  *Registry
	stream    *Stream

	lifeMu sync.Mutex
	closed bool

	mu       sync.Mutex
	fallback *Fallback
	groupID  string
	loading  bool
	version  uint64

	renderMu sync.Mutex
	rendered uint64
}

// Open starts the member and group feeds. No group is selected yet.
func Open(cfg Config) *Session {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	s := &Session{
		source:    cfg.Source,
		identity:  cfg.Identity,
		render:    cfg.Render,
		notifier:  cfg.Notifier,
		now:       now,
		ids:       newLocalIDs(now),
		directory: NewDirectory(),
		registry:  NewRegistry(cfg.Groups),
		fallback:  NewFallback(cfg.Conversation),
	}
	s.stream = NewStream(cfg.Source, cfg.MessageLimit, s.onSnapshot, s.onStreamError)
	s.directory.Start(cfg.Source, s.refresh)
	s.registry.Start(cfg.Source, s.refresh)
	return s
}

// DefaultGroupID is the group a fresh view should select.
func (s *Session) DefaultGroupID() string {
	return s.registry.DefaultGroupID()
}

// SelectGroup makes groupID the active group, replacing the previous
// message subscription.
func (s *Session) SelectGroup(groupID string) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	// Member and group feeds ended by a source error come back here too.
	s.directory.Revive()
	s.registry.Revive()
	if !s.registry.Has(groupID) {
		return fmt.Errorf("select %q: %w", groupID, ErrGroupNotFound)
	}

	s.mu.Lock()
	s.groupID = groupID
	s.loading = true
	v := s.viewLocked()
	s.mu.Unlock()
	s.emit(v)

	s.stream.Subscribe(groupID)
	return nil
}

// Send composes a message and writes it to the store the group's mode
// selects. Failures are also reported through the notifier.
func (s *Session) Send(ctx context.Context, text, replyToID string, kind models.MessageKind) error {
	if !s.identity.SignedIn() {
		s.toast(ctx, ToastError, "Sign in to send messages")
		return ErrNotSignedIn
	}

	s.mu.Lock()
	groupID := s.groupID
	if groupID == "" {
		s.mu.Unlock()
		return ErrNoGroupSelected
	}
	draft := Draft{Text: text, Kind: kind}
	if replyToID != "" {
		target, ok := s.fallback.Find(groupID, replyToID)
		if !ok {
			s.mu.Unlock()
			s.toast(ctx, ToastError, "The message you replied to is gone")
			return fmt.Errorf("reply to %s: %w", replyToID, ErrMessageNotFound)
		}
		draft.ReplyTo = &target
	}
	msg, err := Compose(draft, s.identity, groupID, s.directory)
	if err != nil {
		s.mu.Unlock()
		s.toast(ctx, ToastError, err.Error())
		return err
	}

	if s.fallback.Mode(groupID) == models.ModeLocal {
		msg.ID = s.ids.Next()
		msg.CreatedAt = s.now()
		s.fallback.AppendLocal(groupID, msg)
		v := s.viewLocked()
		s.mu.Unlock()
		observability.IncChatWrite("send", "local")
		s.emit(v)
		return nil
	}
	s.mu.Unlock()

	if _, err := s.source.InsertMessage(ctx, msg); err != nil {
		log.Error().Err(err).Str("group_id", groupID).Str("user_id", msg.UserID).Msg("send message failed")
		observability.IncChatWrite("send", "error")
		s.toast(ctx, ToastError, "Failed to send message")
		return fmt.Errorf("send message: %w", err)
	}
	observability.IncChatWrite("send", "live")
	return nil
}

// React toggles emoji on a message for the current user.
func (s *Session) React(ctx context.Context, messageID, emoji string) error {
	if !s.identity.SignedIn() {
		s.toast(ctx, ToastError, "Sign in to react")
		return ErrNotSignedIn
	}
	if emoji == "" {
		return ErrEmptyReaction
	}

	s.mu.Lock()
	groupID := s.groupID
	if groupID == "" {
		s.mu.Unlock()
		return ErrNoGroupSelected
	}
	target, ok := s.fallback.Find(groupID, messageID)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("react to %s: %w", messageID, ErrMessageNotFound)
	}
	next := ToggleReaction(target.Reactions, emoji, s.identity.UserID)

	if s.fallback.Mode(groupID) == models.ModeLocal {
		s.fallback.ReplaceLocalReactions(groupID, messageID, next)
		v := s.viewLocked()
		s.mu.Unlock()
		observability.IncChatWrite("react", "local")
		s.emit(v)
		return nil
	}
	s.mu.Unlock()

	// Whole-map replace: a concurrent reactor's write may be overwritten.
	if err := s.source.ReplaceReactions(ctx, messageID, next); err != nil {
		log.Error().Err(err).Str("message_id", messageID).Str("emoji", emoji).Msg("reaction update failed")
		observability.IncChatWrite("react", "error")
		s.toast(ctx, ToastError, "Failed to update reaction")
		return fmt.Errorf("react: %w", err)
	}
	observability.IncChatWrite("react", "live")
	return nil
}

// View returns the current render.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Close cancels every subscription. It is safe to call more than once.
func (s *Session) Close() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	s.mu.Lock()
	s.groupID = ""
	s.mu.Unlock()

	s.stream.Cancel()
	s.directory.Close()
	s.registry.Close()
}

func (s *Session) onSnapshot(groupID string, msgs []models.Message) {
	s.mu.Lock()
	if groupID != s.groupID {
		s.mu.Unlock()
		return
	}
	synced := s.fallback.Snapshot(groupID, msgs)
	s.loading = false
	v := s.viewLocked()
	s.mu.Unlock()

	if synced {
		log.Info().Str("group_id", groupID).Int("messages", len(msgs)).Msg("group switched to live feed")
		observability.IncStreamModeTransition(string(models.ModeSynced))
	}
	s.emit(v)
}

func (s *Session) onStreamError(groupID string, err error) {
	s.mu.Lock()
	if groupID != s.groupID {
		s.mu.Unlock()
		return
	}
	mode := s.fallback.Error(groupID)
	s.loading = false
	v := s.viewLocked()
	s.mu.Unlock()

	if mode == models.ModeSynced {
		log.Warn().Err(err).Str("group_id", groupID).Msg("live feed lost, showing last snapshot")
	} else {
		log.Warn().Err(err).Str("group_id", groupID).Msg("live feed unavailable, using local feed")
	}
	s.emit(v)
}

func (s *Session) refresh() {
	s.mu.Lock()
	if s.groupID == "" {
		s.mu.Unlock()
		return
	}
	v := s.viewLocked()
	s.mu.Unlock()
	s.emit(v)
}

func (s *Session) viewLocked() View {
	s.version++
	msgs := s.fallback.Messages(s.groupID)
	for i := range msgs {
		msgs[i] = msgs[i].Redacted()
	}
	return View{
		Version:  s.version,
		GroupID:  s.groupID,
		Mode:     s.fallback.Mode(s.groupID),
		Loading:  s.loading,
		SignedIn: s.identity.SignedIn(),
		Messages: msgs,
		Groups:   s.registry.Groups(),
		Members:  s.directory.Members(),
	}
}

// emit hands v to the renderer unless a newer view was already rendered.
func (s *Session) emit(v View) {
	if s.render == nil {
		return
	}
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	if v.Version <= s.rendered {
		return
	}
	s.rendered = v.Version
	s.render(v)
}

func (s *Session) toast(ctx context.Context, level ToastLevel, text string) {
	if s.notifier != nil {
		s.notifier.Toast(ctx, level, text)
	}
}
