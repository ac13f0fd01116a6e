package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-chat/internal/auth"
	"community-chat/internal/chat"
	"community-chat/internal/models"
	"community-chat/internal/realtime"
	"community-chat/internal/seed"
)

type wsFixture struct {
	hub      *Hub
	source   *realtime.MemorySource
	verifier *auth.Verifier
	server   *httptest.Server
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	data := seed.MustDefault()
	verifier, err := auth.NewVerifier("secret")
	require.NoError(t, err)

	f := &wsFixture{hub: NewHub(), source: realtime.NewMemorySource(), verifier: verifier}
	handler := NewChatViewHandler(ChatViewConfig{
		Hub:          f.hub,
		Source:       f.source,
		Groups:       data,
		Conversation: data.Conversation,
		Verifier:     verifier,
	})
	r := gin.New()
	r.GET("/ws/chat", handler.Handle)
	f.server = httptest.NewServer(r)
	t.Cleanup(func() {
		f.hub.CloseAll()
		f.server.Close()
	})
	return f
}

func (f *wsFixture) dial(t *testing.T, token, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/chat" + query
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (f *wsFixture) token(t *testing.T, userID, name string) string {
	t.Helper()
	token, err := f.verifier.Issue(userID, name, models.RoleMember, time.Hour)
	require.NoError(t, err)
	return token
}

// readUntil returns the first event matching match.
func readUntil(t *testing.T, conn *websocket.Conn, match func(Event) bool) Event {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var ev Event
		require.NoError(t, conn.ReadJSON(&ev))
		if match(ev) {
			return ev
		}
	}
}

func isView(ev Event) bool { return ev.Type == EventView && ev.View != nil && !ev.View.Loading }

func TestChatViewAnonymousSeesSeedConversation(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "", "")

	ev := readUntil(t, conn, isView)

	assert.Equal(t, "general", ev.View.GroupID)
	assert.Equal(t, models.ModeLocal, ev.View.Mode)
	assert.False(t, ev.View.SignedIn)
	assert.NotEmpty(t, ev.View.Messages)
	assert.NotEmpty(t, ev.View.Groups)
}

func TestChatViewAnonymousCannotSend(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "", "")
	readUntil(t, conn, isView)

	require.NoError(t, conn.WriteJSON(Command{Type: CommandSend, Text: "hello"}))
	ev := readUntil(t, conn, func(ev Event) bool { return ev.Type == EventToast })

	assert.Equal(t, chat.ToastError, ev.Toast.Level)
}

func TestChatViewSendLocal(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, f.token(t, "u1", "Omar"), "")
	first := readUntil(t, conn, isView)
	seeded := len(first.View.Messages)

	require.NoError(t, conn.WriteJSON(Command{Type: CommandSend, Text: "  Assalamu Alaikum  "}))
	ev := readUntil(t, conn, func(ev Event) bool { return isView(ev) && len(ev.View.Messages) == seeded+1 })

	last := ev.View.Messages[seeded]
	assert.Equal(t, "Assalamu Alaikum", last.Body)
	assert.True(t, strings.HasPrefix(last.ID, "local-"))
	assert.Equal(t, models.ModeLocal, ev.View.Mode)
}

func TestChatViewSendLiveAfterSync(t *testing.T) {
	f := newWSFixture(t)
	_, err := f.source.InsertMessage(context.Background(), models.Message{GroupID: "events", UserID: "u2", DisplayName: "Aisha", Body: "Jumuah at 1pm"})
	require.NoError(t, err)

	conn := f.dial(t, f.token(t, "u1", "Omar"), "?group_id=events")
	ev := readUntil(t, conn, isView)
	require.Equal(t, models.ModeSynced, ev.View.Mode)
	require.Len(t, ev.View.Messages, 1)

	require.NoError(t, conn.WriteJSON(Command{Type: CommandSend, Text: "See you there"}))
	ev = readUntil(t, conn, func(ev Event) bool { return isView(ev) && len(ev.View.Messages) == 2 })
	assert.Equal(t, "See you there", ev.View.Messages[1].Body)
	assert.False(t, strings.HasPrefix(ev.View.Messages[1].ID, "local-"))
}

func TestChatViewReactAndSegments(t *testing.T) {
	f := newWSFixture(t)
	f.source.PutMember(models.Member{ID: "u3", DisplayName: "Fatima Ahmed", IsActive: true})
	saved, err := f.source.InsertMessage(context.Background(), models.Message{GroupID: "events", UserID: "u2", DisplayName: "Aisha", Body: "@Fatima Ahmed can you check this"})
	require.NoError(t, err)

	conn := f.dial(t, f.token(t, "u1", "Omar"), "?group_id=events")
	ev := readUntil(t, conn, isView)
	require.Len(t, ev.View.Messages, 1)
	segments := ev.View.Messages[0].Segments
	require.NotEmpty(t, segments)
	assert.Equal(t, "@Fatima Ahmed", segments[0].Text)
	assert.Equal(t, "u3", segments[0].MemberID)

	require.NoError(t, conn.WriteJSON(Command{Type: CommandReact, MessageID: saved.ID, Emoji: "👍"}))
	ev = readUntil(t, conn, func(ev Event) bool {
		return isView(ev) && len(ev.View.Messages) == 1 && len(ev.View.Messages[0].Reactions["👍"]) == 1
	})
	assert.Equal(t, []string{"u1"}, ev.View.Messages[0].Reactions["👍"])
}

func TestChatViewSelectUnknownGroup(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "", "")
	readUntil(t, conn, isView)

	require.NoError(t, conn.WriteJSON(Command{Type: CommandSelectGroup, GroupID: "nowhere"}))
	ev := readUntil(t, conn, func(ev Event) bool { return ev.Type == EventToast })

	assert.Equal(t, "Group not found", ev.Toast.Text)
}

func TestChatViewRejectsBadToken(t *testing.T) {
	f := newWSFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/chat?token=garbage"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChatViewDisconnectReleasesSubscriptions(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "", "")
	readUntil(t, conn, isView)
	require.Equal(t, 1, f.hub.Count())
	require.Equal(t, 1, f.source.ActiveSubscriptions("general"))

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = conn.Close()

	require.Eventually(t, func() bool {
		return f.hub.Count() == 0 && f.source.TotalSubscriptions() == 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestHubCountByGroup(t *testing.T) {
	f := newWSFixture(t)
	a := f.dial(t, "", "")
	readUntil(t, a, isView)
	b := f.dial(t, "", "?group_id=events")
	readUntil(t, b, func(ev Event) bool { return isView(ev) && ev.View.GroupID == "events" })

	counts := f.hub.CountByGroup()
	assert.Equal(t, 1, counts["general"])
	assert.Equal(t, 1, counts["events"])
}
