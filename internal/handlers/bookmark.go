package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gulfquotes/internal/services"
)

type BookmarkHandler struct {
	bookmarks *services.BookmarkService
	log       logrus.FieldLogger
}

func NewBookmarkHandler(bookmarks *services.BookmarkService, log logrus.FieldLogger) *BookmarkHandler {
	return &BookmarkHandler{bookmarks: bookmarks, log: log}
}

// Toggle 切换收藏状态 - 收藏/取消收藏
func (h *BookmarkHandler) Toggle(c *gin.Context) {
	res, err := h.bookmarks.Toggle(c.Request.Context(), me(c).ID, c.Param("slug"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, res)
}
