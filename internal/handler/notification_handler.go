package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AdvitDeepak/local-recall/internal/bus"
	"github.com/AdvitDeepak/local-recall/internal/model"
	"github.com/AdvitDeepak/local-recall/internal/pkg/errcode"
	"github.com/AdvitDeepak/local-recall/internal/pkg/response"
)

type NotificationHandler struct {
	bus *bus.Bus
}

func NewNotificationHandler(bus *bus.Bus) *NotificationHandler {
	return &NotificationHandler{bus: bus}
}

func (h *NotificationHandler) List(c *gin.Context) {
	sinceID, _ := strconv.ParseInt(c.DefaultQuery("since_id", "0"), 10, 64)
	unreadOnly := c.DefaultQuery("unread_only", "false") == "true"
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	items, err := h.bus.List(c.Request.Context(), sinceID, unreadOnly, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	if items == nil {
		items = []model.Notification{}
	}
	response.Success(c, gin.H{"notifications": items})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid id")
		return
	}
	if err := h.bus.MarkRead(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.bus.MarkAllRead(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
