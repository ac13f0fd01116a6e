package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"community-chat/internal/chat"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
	maxCommand = 16 * 1024
)

// Client is one websocket connection bound to a chat session.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	session *chat.Session
	info    ConnInfo

	mu      sync.Mutex
	send    chan []byte
	closed  bool
	groupID string
}

func newClient(hub *Hub, conn *websocket.Conn, info ConnInfo) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		info: info,
		send: make(chan []byte, sendBuffer),
	}
}

// GroupID is the group the client is viewing.
func (c *Client) GroupID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.groupID
}

// Render sends a view snapshot.
func (c *Client) Render(v chat.View) {
	c.mu.Lock()
	c.groupID = v.GroupID
	c.mu.Unlock()
	c.enqueue(Event{Type: EventView, View: newViewPayload(v)})
}

// Toast sends a notification.
func (c *Client) Toast(_ context.Context, level chat.ToastLevel, text string) {
	c.enqueue(Event{Type: EventToast, Toast: &Toast{Level: level, Text: text}})
}

// Close stops the writer, which closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) enqueue(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("conn_id", c.info.ConnID).Msg("encode websocket event")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		log.Warn().Str("conn_id", c.info.ConnID).Msg("websocket client too slow, disconnecting")
		c.closeLocked()
	}
}

// readPump runs commands until the connection fails.
func (c *Client) readPump(ctx context.Context) string {
	c.conn.SetReadLimit(maxCommand)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.publishWSError(c, err)
			}
			return err.Error()
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.Toast(ctx, chat.ToastError, "Malformed command")
			continue
		}
		c.handle(ctx, cmd)
	}
}

func (c *Client) handle(ctx context.Context, cmd Command) {
	log.Debug().Str("conn_id", c.info.ConnID).Str("command", cmd.Type).Msg("websocket command")

	switch cmd.Type {
	case CommandSelectGroup:
		if err := c.session.SelectGroup(cmd.GroupID); err != nil {
			c.Toast(ctx, chat.ToastError, selectError(err))
		}
	case CommandSend:
		// Session.Send reports its own failures.
		_ = c.session.Send(ctx, cmd.Text, cmd.ReplyTo, cmd.Kind)
	case CommandReact:
		// Write failures and missing sign-in are reported by the session.
		err := c.session.React(ctx, cmd.MessageID, cmd.Emoji)
		if errors.Is(err, chat.ErrMessageNotFound) || errors.Is(err, chat.ErrEmptyReaction) {
			c.Toast(ctx, chat.ToastError, "Could not react to that message")
		}
	default:
		c.Toast(ctx, chat.ToastError, "Unknown command")
	}
}

func selectError(err error) string {
	if errors.Is(err, chat.ErrGroupNotFound) {
		return "Group not found"
	}
	return "Could not open group"
}

// writePump drains the send queue and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Warn().Err(err).Str("conn_id", c.info.ConnID).Msg("websocket write error")
				c.hub.publishWSError(c, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
