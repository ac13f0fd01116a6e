package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"community-chat/internal/chat"
	"community-chat/internal/middleware"
	"community-chat/internal/models"
	"community-chat/internal/realtime"
	"community-chat/internal/repositories"
	"community-chat/internal/telemetry"
)

// messageModerator performs moderator writes against the live store.
type messageModerator interface {
	SoftDeleteMessage(ctx context.Context, messageID, moderatorID string) error
}

// GroupHandler serves the read-only group, member and message endpoints and
// moderator deletion.
type GroupHandler struct {
	groupRepo   repositories.GroupRepository
	memberRepo  repositories.MemberRepository
	messageRepo repositories.GroupMessageRepository
	moderator   messageModerator
	seed        chat.GroupSeed
	limit       int
	audit       *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler. limit bounds message listings.
func NewGroupHandler(groupRepo repositories.GroupRepository, memberRepo repositories.MemberRepository, messageRepo repositories.GroupMessageRepository, moderator messageModerator, seed chat.GroupSeed, limit int, audit *telemetry.AuditEmitter) *GroupHandler {
	if limit <= 0 {
		limit = realtime.DefaultMessageLimit
	}
	return &GroupHandler{
		groupRepo:   groupRepo,
		memberRepo:  memberRepo,
		messageRepo: messageRepo,
		moderator:   moderator,
		seed:        seed,
		limit:       limit,
		audit:       audit,
	}
}

type groupResponse struct {
	models.Group
	DisplayName string `json:"display_name"`
}

// ListGroups handles GET /groups. The built-in groups are served when the
// store has none or cannot be read.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	registry := chat.NewRegistry(h.seed)
	groups, err := h.groupRepo.ListGroups(c.Request.Context())
	if err != nil {
		log.Warn().Err(err).Msg("list groups failed, serving built-in groups")
	} else {
		registry.Replace(groups)
	}

	lang := c.DefaultQuery("lang", models.LangEnglish)
	resp := make([]groupResponse, 0)
	for _, g := range registry.Groups() {
		resp = append(resp, groupResponse{Group: g, DisplayName: g.Name.In(lang)})
	}
	c.JSON(http.StatusOK, gin.H{"groups": resp})
}

// ListMembers handles GET /members.
func (h *GroupHandler) ListMembers(c *gin.Context) {
	members, err := h.memberRepo.ListActiveMembers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load members"})
		return
	}
	if members == nil {
		members = []models.Member{}
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// GetGroupMessages handles GET /groups/:group_id/messages.
func (h *GroupHandler) GetGroupMessages(c *gin.Context) {
	groupID, ok := h.requireGroup(c)
	if !ok {
		return
	}

	limit := h.limit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		if n < limit {
			limit = n
		}
	}

	msgs, err := h.messageRepo.ListRecentGroupMessages(c.Request.Context(), groupID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	resp := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, m.Redacted())
	}
	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// DeleteGroupMessage soft-deletes a message. Only moderators and admins may.
func (h *GroupHandler) DeleteGroupMessage(c *gin.Context) {
	groupID := c.Param("group_id")
	messageID := c.Param("message_id")
	userID := c.GetString(middleware.UserIDKey)

	if !models.CanModerate(c.GetString(middleware.RoleKey)) {
		h.emitAudit(c, telemetry.LevelError, "not allowed to delete message")
		c.JSON(http.StatusForbidden, gin.H{"error": "moderator role required"})
		return
	}

	msg, err := h.messageRepo.GetGroupMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		if status == http.StatusNotFound {
			h.emitAudit(c, telemetry.LevelError, "message not found")
		} else {
			h.emitAudit(c, telemetry.LevelError, "internal error")
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}
	if msg.GroupID != groupID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message does not belong to group"})
		return
	}
	if msg.IsDeleted {
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.moderator.SoftDeleteMessage(c.Request.Context(), messageID, userID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		h.emitAudit(c, telemetry.LevelError, "could not delete message")
		c.JSON(status, gin.H{"error": "could not delete"})
		return
	}

	h.emitAudit(c, telemetry.LevelInfo, "Group message deleted by moderator")
	c.Status(http.StatusNoContent)
}

// requireGroup resolves :group_id, accepting the built-in default group even
// when the store does not have it.
func (h *GroupHandler) requireGroup(c *gin.Context) (string, bool) {
	groupID := c.Param("group_id")
	if groupID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return "", false
	}
	if groupID == h.seed.DefaultGroupID() {
		return groupID, true
	}
	if _, err := h.groupRepo.GetGroup(c.Request.Context(), groupID); err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return "", false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
		return "", false
	}
	return groupID, true
}

// emitAudit records a moderation outcome for the message named in the path.
func (h *GroupHandler) emitAudit(c *gin.Context, level, text string) {
	h.audit.Emit(c.Request.Context(), telemetry.AuditEvent{
		Level:     level,
		Text:      text,
		RequestID: requestIDFromContext(c),
		UserID:    userIDFromContext(c),
		GroupID:   c.Param("group_id"),
		MessageID: c.Param("message_id"),
	})
}
