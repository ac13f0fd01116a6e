package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"community-chat/internal/middleware"
	"community-chat/internal/mocks"
	"community-chat/internal/models"
	"community-chat/internal/repositories"
	"community-chat/internal/seed"
	"community-chat/internal/telemetry"
)

type groupFixture struct {
	groups    *mocks.GroupRepositoryMock
	members   *mocks.MemberRepositoryMock
	messages  *mocks.GroupMessageRepositoryMock
	moderator *mocks.MessageModeratorMock
	router    *gin.Engine
}

func setupGroupRouter(t *testing.T, role string) *groupFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &groupFixture{
		groups:    new(mocks.GroupRepositoryMock),
		members:   new(mocks.MemberRepositoryMock),
		messages:  new(mocks.GroupMessageRepositoryMock),
		moderator: new(mocks.MessageModeratorMock),
	}
	handler := NewGroupHandler(f.groups, f.members, f.messages, f.moderator, seed.MustDefault(), 100, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, "mod-1")
		c.Set(middleware.RoleKey, role)
		c.Next()
	})
	r.GET("/groups", handler.ListGroups)
	r.GET("/members", handler.ListMembers)
	r.GET("/groups/:group_id/messages", handler.GetGroupMessages)
	r.DELETE("/groups/:group_id/messages/:message_id", handler.DeleteGroupMessage)
	f.router = r
	return f
}

func (f *groupFixture) do(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeGroups(t *testing.T, rec *httptest.ResponseRecorder) []groupResponse {
	t.Helper()
	var body struct {
		Groups []groupResponse `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Groups
}

func TestListGroupsFromStore(t *testing.T) {
	f := setupGroupRouter(t, models.RoleMember)
	f.groups.On("ListGroups", mock.Anything).Return([]models.Group{
		{ID: "general", Name: models.LocalizedText{EN: "General", AR: "عام"}},
		{ID: "sisters", Name: models.LocalizedText{EN: "Sisters Circle"}},
	}, nil).Once()

	rec := f.do(http.MethodGet, "/groups?lang=ar")

	require.Equal(t, http.StatusOK, rec.Code)
	groups := decodeGroups(t, rec)
	require.Len(t, groups, 2)
	assert.Equal(t, "general", groups[0].ID)
	assert.Equal(t, "عام", groups[0].DisplayName)
	assert.True(t, groups[0].IsDefault)
	assert.Equal(t, "Sisters Circle", groups[1].DisplayName)
	f.groups.AssertExpectations(t)
}

func TestListGroupsFallsBackToBuiltIn(t *testing.T) {
	f := setupGroupRouter(t, models.RoleMember)
	f.groups.On("ListGroups", mock.Anything).Return(nil, errors.New("db down")).Once()

	rec := f.do(http.MethodGet, "/groups")

	require.Equal(t, http.StatusOK, rec.Code)
	groups := decodeGroups(t, rec)
	assert.Len(t, groups, len(seed.MustDefault().Groups()))
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	assert.Contains(t, ids, "general")
}

func TestListMembers(t *testing.T) {
	f := setupGroupRouter(t, models.RoleMember)
	f.members.On("ListActiveMembers", mock.Anything).Return([]models.Member{{ID: "u1", DisplayName: "Fatima Ahmed", IsActive: true}}, nil).Once()

	rec := f.do(http.MethodGet, "/members")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Fatima Ahmed")
}

func TestGetGroupMessagesRedactsDeleted(t *testing.T) {
	f := setupGroupRouter(t, models.RoleMember)
	f.groups.On("GetGroup", mock.Anything, "events").Return(models.Group{ID: "events"}, nil).Once()
	f.messages.On("ListRecentGroupMessages", mock.Anything, "events", 100).Return([]models.Message{
		{ID: "m1", GroupID: "events", Body: "hello"},
		{ID: "m2", GroupID: "events", Body: "spam", IsDeleted: true, DeletedBy: "mod-1"},
	}, nil).Once()

	rec := f.do(http.MethodGet, "/groups/events/messages")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "hello", body.Messages[0].Body)
	assert.Empty(t, body.Messages[1].Body)
	assert.True(t, body.Messages[1].IsDeleted)
	f.messages.AssertExpectations(t)
}

func TestGetGroupMessagesDefaultGroupSkipsLookup(t *testing.T) {
	f := setupGroupRouter(t, models.RoleMember)
	f.messages.On("ListRecentGroupMessages", mock.Anything, "general", 10).Return([]models.Message{}, nil).Once()

	rec := f.do(http.MethodGet, "/groups/general/messages?limit=10")

	require.Equal(t, http.StatusOK, rec.Code)
	f.groups.AssertNotCalled(t, "GetGroup", mock.Anything, mock.Anything)
}

func TestGetGroupMessagesUnknownGroup(t *testing.T) {
	f := setupGroupRouter(t, models.RoleMember)
	f.groups.On("GetGroup", mock.Anything, "nope").Return(models.Group{}, repositories.ErrGroupNotFound).Once()

	rec := f.do(http.MethodGet, "/groups/nope/messages")

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetGroupMessagesInvalidLimit(t *testing.T) {
	f := setupGroupRouter(t, models.RoleMember)

	rec := f.do(http.MethodGet, "/groups/general/messages?limit=abc")

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteGroupMessageByModerator(t *testing.T) {
	f := setupGroupRouter(t, models.RoleModerator)
	f.messages.On("GetGroupMessage", mock.Anything, "m1").Return(models.Message{ID: "m1", GroupID: "general"}, nil).Once()
	f.moderator.On("SoftDeleteMessage", mock.Anything, "m1", "mod-1").Return(nil).Once()

	rec := f.do(http.MethodDelete, "/groups/general/messages/m1")

	require.Equal(t, http.StatusNoContent, rec.Code)
	f.moderator.AssertExpectations(t)
}

func TestDeleteGroupMessageRequiresModerator(t *testing.T) {
	f := setupGroupRouter(t, models.RoleMember)

	rec := f.do(http.MethodDelete, "/groups/general/messages/m1")

	require.Equal(t, http.StatusForbidden, rec.Code)
	f.moderator.AssertNotCalled(t, "SoftDeleteMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteGroupMessageNotFound(t *testing.T) {
	f := setupGroupRouter(t, models.RoleAdmin)
	f.messages.On("GetGroupMessage", mock.Anything, "m9").Return(models.Message{}, repositories.ErrMessageNotFound).Once()

	rec := f.do(http.MethodDelete, "/groups/general/messages/m9")

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteGroupMessageWrongGroup(t *testing.T) {
	f := setupGroupRouter(t, models.RoleAdmin)
	f.messages.On("GetGroupMessage", mock.Anything, "m1").Return(models.Message{ID: "m1", GroupID: "events"}, nil).Once()

	rec := f.do(http.MethodDelete, "/groups/general/messages/m1")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	f.moderator.AssertNotCalled(t, "SoftDeleteMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteGroupMessageEmitsAudit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	messages := new(mocks.GroupMessageRepositoryMock)
	moderator := new(mocks.MessageModeratorMock)
	pub := new(mocks.PublisherMock)
	messages.On("GetGroupMessage", mock.Anything, "m1").Return(models.Message{ID: "m1", GroupID: "general"}, nil).Once()
	moderator.On("SoftDeleteMessage", mock.Anything, "m1", "mod-1").Return(nil).Once()
	pub.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(env telemetry.AuditEnvelope) bool {
		return env.Payload.Level == telemetry.LevelInfo &&
			env.Payload.GroupID == "general" &&
			env.Payload.MessageID == "m1" &&
			env.UserID != nil && *env.UserID == "mod-1"
	}), mock.Anything).Return(nil).Once()

	audit := telemetry.NewAuditEmitter(pub, "audit.chat", "community-chat", "test")
	handler := NewGroupHandler(new(mocks.GroupRepositoryMock), new(mocks.MemberRepositoryMock), messages, moderator, seed.MustDefault(), 100, audit)
	r := gin.New()
	r.DELETE("/groups/:group_id/messages/:message_id", func(c *gin.Context) {
		c.Set(middleware.UserIDKey, "mod-1")
		c.Set(middleware.RoleKey, models.RoleAdmin)
		handler.DeleteGroupMessage(c)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/groups/general/messages/m1", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	pub.AssertExpectations(t)
}
