package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"community-chat/internal/chat"
	"community-chat/internal/middleware"
	"community-chat/internal/observability"
	"community-chat/internal/realtime"
)

// ChatViewConfig wires a ChatViewHandler.
type ChatViewConfig struct {
	Hub          *Hub
	Source       realtime.Source
	Groups       chat.GroupSeed
	Conversation chat.SeedConversation
	Verifier     middleware.TokenVerifier
	MessageLimit int
	DefaultGroup string
}

// ChatViewHandler serves /ws/chat: each connection gets its own chat session.
type ChatViewHandler struct {
	cfg ChatViewConfig
}

// NewChatViewHandler constructs a ChatViewHandler.
func NewChatViewHandler(cfg ChatViewConfig) *ChatViewHandler {
	if cfg.DefaultGroup == "" && cfg.Groups != nil {
		cfg.DefaultGroup = cfg.Groups.DefaultGroupID()
	}
	return &ChatViewHandler{cfg: cfg}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and opens a chat session. Connections
// without a token are read-only.
func (h *ChatViewHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("community-chat/ws").Start(c.Request.Context(), "ws.handshake", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	identity, err := h.identify(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	span.SetAttributes(attribute.Bool("chat.signed_in", identity.SignedIn()))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	meta := observability.RequestMetaFrom(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      identity.UserID,
		DeviceID:    meta.DeviceID,
		IP:          meta.IP,
		RequestID:   meta.RequestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	client := newClient(h.cfg.Hub, conn, info)
	client.session = chat.Open(chat.Config{
		Source:       h.cfg.Source,
		Groups:       h.cfg.Groups,
		Conversation: h.cfg.Conversation,
		Identity:     identity,
		Render:       client.Render,
		Notifier:     client,
		MessageLimit: h.cfg.MessageLimit,
	})
	h.cfg.Hub.Add(client, info)
	observability.IncWSActive(wsKind)
	publishWSEvent(ctx, info, "", "ws_connect", "")
	log.Info().Str("conn_id", info.ConnID).Str("user_id", info.UserID).Msg("chat view connected")

	go client.writePump()

	initial := c.Query("group_id")
	if initial == "" {
		initial = h.cfg.DefaultGroup
	}
	if err := client.session.SelectGroup(initial); err != nil {
		if errors.Is(err, chat.ErrGroupNotFound) {
			client.Toast(ctx, chat.ToastError, selectError(err))
		}
		_ = client.session.SelectGroup(client.session.DefaultGroupID())
	}

	// The request context ends when Handle returns; commands outlive it.
	connCtx := context.WithoutCancel(ctx)
	go func() {
		reason := client.readPump(connCtx)
		client.session.Close()
		h.cfg.Hub.Remove(client)
		client.Close()
		observability.DecWSActive(wsKind)
		publishWSEvent(connCtx, info, client.GroupID(), "ws_disconnect", reason)
		log.Info().Str("conn_id", info.ConnID).Str("reason", reason).Msg("chat view disconnected")
	}()
}

func (h *ChatViewHandler) identify(c *gin.Context) (chat.Identity, error) {
	token := ""
	if header := c.GetHeader("Authorization"); header != "" {
		t, ok := middleware.BearerToken(header)
		if !ok {
			return chat.Identity{}, errors.New("invalid authorization header")
		}
		token = t
	} else {
		token = c.Query("token")
	}
	if token == "" {
		return chat.Identity{}, nil
	}

	claims, err := h.cfg.Verifier.Verify(token)
	if err != nil {
		return chat.Identity{}, err
	}
	return chat.Identity{UserID: claims.UserID, DisplayName: claims.DisplayName, Role: claims.Role}, nil
}
