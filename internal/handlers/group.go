package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studygroups-service/internal/broker"
	"studygroups-service/internal/models"
	"studygroups-service/internal/registry"
	"studygroups-service/internal/store"
	"studygroups-service/internal/telemetry"
)

// GroupHandler manages group-related endpoints.
type GroupHandler struct {
	registry *registry.Registry
	store    store.Store
	hub      *broker.Hub
	audit    *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(reg *registry.Registry, st store.Store, hub *broker.Hub, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{registry: reg, store: st, hub: hub, audit: audit}
}

// CreateGroup handles POST /api/groups.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID := userIDFromContext(c)

	var req struct {
		Name string `json:"name" binding:"required"`
		Type string `json:"type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type == "" {
		req.Type = models.GroupTypeClass
	}

	group, err := h.registry.CreateGroup(c.Request.Context(), req.Name, req.Type, userID)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
		return
	}

	h.emitAudit(c, "INFO", "Group created")
	c.JSON(http.StatusCreated, group)
}

// ListGroups handles GET /api/groups and returns every known group for
// bootstrapping the caller's membership view.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.registry.ListGroups(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}

	list := make([]models.Group, 0, len(groups))
	for _, g := range groups {
		list = append(list, g)
	}
	c.JSON(http.StatusOK, gin.H{"groups": list})
}

// JoinGroup handles POST /api/groups/join with an invite code.
func (h *GroupHandler) JoinGroup(c *gin.Context) {
	userID := userIDFromContext(c)

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.registry.JoinByInviteCode(c.Request.Context(), req.Code, userID)
	if errors.Is(err, registry.ErrInvalidInviteCode) {
		h.emitAudit(c, "ERROR", "invalid invite code")
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid invite code"})
		return
	}
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not join group"})
		return
	}

	h.emitAudit(c, "INFO", "Group joined")
	c.JSON(http.StatusOK, group)
}

// LeaveGroup handles POST /api/groups/:group_id/leave.
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	groupID := c.Param("group_id")
	userID := userIDFromContext(c)

	err := h.registry.Leave(c.Request.Context(), groupID, userID)
	if errors.Is(err, store.ErrGroupNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not leave group"})
		return
	}

	h.emitAudit(c, "INFO", "Group left")
	c.Status(http.StatusNoContent)
}

// DeleteGroup handles DELETE /api/groups/:group_id. Only the creator may
// delete; the room is evicted and the history dropped.
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	groupID := c.Param("group_id")
	userID := userIDFromContext(c)

	err := h.registry.Delete(c.Request.Context(), groupID, userID)
	switch {
	case errors.Is(err, store.ErrGroupNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	case errors.Is(err, registry.ErrForbidden):
		h.emitAudit(c, "ERROR", "not allowed to delete group")
		c.JSON(http.StatusForbidden, gin.H{"error": "only the creator may delete"})
		return
	case err != nil:
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete group"})
		return
	}

	h.emitAudit(c, "INFO", "Group deleted")
	c.Status(http.StatusNoContent)
}

// GetGroupMessages handles GET /api/groups/:group_id/messages.
func (h *GroupHandler) GetGroupMessages(c *gin.Context) {
	groupID := c.Param("group_id")
	userID := userIDFromContext(c)

	member, err := h.registry.IsMember(c.Request.Context(), groupID, userID)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return
	}
	if !member {
		h.emitAudit(c, "ERROR", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}

	msgs, err := h.store.GetMessages(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// TogglePin handles POST /api/groups/:group_id/messages/:message_id/pin.
// Pinning is the only legal mutation besides poll votes; the updated message
// is broadcast so every client reflects the pin bar.
func (h *GroupHandler) TogglePin(c *gin.Context) {
	groupID := c.Param("group_id")
	messageID := c.Param("message_id")
	userID := userIDFromContext(c)

	member, err := h.registry.IsMember(c.Request.Context(), groupID, userID)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return
	}
	if !member {
		h.emitAudit(c, "ERROR", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}

	// The flip is a whole-document read-modify-write, so it runs under the
	// room's publish lock like poll votes do.
	var updated models.Message
	err = h.hub.Mutate(groupID, func() (models.RoomEvent, error) {
		msg, err := h.store.GetMessage(c.Request.Context(), groupID, messageID)
		if err != nil {
			return models.RoomEvent{}, err
		}
		msg.IsPinned = !msg.IsPinned
		if err := h.store.UpdateMessage(c.Request.Context(), groupID, messageID, msg); err != nil {
			return models.RoomEvent{}, err
		}
		updated = msg
		return models.RoomEvent{Type: models.EventMessageUpdated, GroupID: groupID, Message: &msg}, nil
	})
	if errors.Is(err, store.ErrMessageNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update message"})
		return
	}

	h.emitAudit(c, "INFO", "Message pin toggled")
	c.JSON(http.StatusOK, updated)
}

func (h *GroupHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
