package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gulfquotes/internal/services"
)

type UserHandler struct {
	users     *services.UserService
	bookmarks *services.BookmarkService
	log       logrus.FieldLogger
}

func NewUserHandler(users *services.UserService, bookmarks *services.BookmarkService, log logrus.FieldLogger) *UserHandler {
	return &UserHandler{users: users, bookmarks: bookmarks, log: log}
}

func (h *UserHandler) Me(c *gin.Context) {
	respond(c, http.StatusOK, me(c))
}

func (h *UserHandler) Settings(c *gin.Context) {
	settings, err := h.users.Settings(c.Request.Context(), me(c).ID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, settings)
}

func (h *UserHandler) UpdateSettings(c *gin.Context) {
	var req services.UpdateSettingsInput
	if !bind(c, &req) {
		return
	}
	settings, err := h.users.UpdateSettings(c.Request.Context(), me(c).ID, req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, settings)
}

// Bookmarks 我的收藏
func (h *UserHandler) Bookmarks(c *gin.Context) {
	list, err := h.bookmarks.List(c.Request.Context(), me(c).ID, page(c, services.DefaultPageSize))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, list)
}
