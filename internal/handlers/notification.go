package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gulfquotes/internal/services"
)

type NotificationHandler struct {
	notifications *services.NotificationService
	log           logrus.FieldLogger
}

func NewNotificationHandler(notifications *services.NotificationService, log logrus.FieldLogger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, log: log}
}

func (h *NotificationHandler) List(c *gin.Context) {
	list, err := h.notifications.List(
		c.Request.Context(),
		me(c).ID,
		page(c, services.DefaultPageSize),
		services.ParseReadFilter(c.Query("filter")),
	)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, list)
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.notifications.UnreadCount(c.Request.Context(), me(c).ID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"count": count})
}

func (h *NotificationHandler) Read(c *gin.Context) {
	n, err := h.notifications.MarkAsRead(c.Request.Context(), c.Param("id"), me(c).ID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, n)
}

func (h *NotificationHandler) ReadAll(c *gin.Context) {
	count, err := h.notifications.MarkAllAsRead(c.Request.Context(), me(c).ID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"count": count})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	if err := h.notifications.Delete(c.Request.Context(), c.Param("id"), me(c).ID); err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"success": true})
}
