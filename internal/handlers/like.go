package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gulfquotes/internal/services"
)

// LikeHandler 点赞：名言、评论、回复
type LikeHandler struct {
	quotes   *services.QuoteService
	comments *services.CommentService
	replies  *services.ReplyService
	log      logrus.FieldLogger
}

func NewLikeHandler(quotes *services.QuoteService, comments *services.CommentService, replies *services.ReplyService, log logrus.FieldLogger) *LikeHandler {
	return &LikeHandler{quotes: quotes, comments: comments, replies: replies, log: log}
}

func (h *LikeHandler) reply(c *gin.Context, res *services.LikeResult, err error) {
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, res)
}

func (h *LikeHandler) ToggleQuote(c *gin.Context) {
	res, err := h.quotes.ToggleLike(c.Request.Context(), me(c), c.Param("slug"))
	h.reply(c, res, err)
}

func (h *LikeHandler) QuoteStatus(c *gin.Context) {
	res, err := h.quotes.LikeStatus(c.Request.Context(), me(c), c.Param("slug"))
	h.reply(c, res, err)
}

func (h *LikeHandler) ToggleComment(c *gin.Context) {
	res, err := h.comments.ToggleLike(c.Request.Context(), me(c), c.Param("id"))
	h.reply(c, res, err)
}

func (h *LikeHandler) ToggleReply(c *gin.Context) {
	res, err := h.replies.ToggleLike(c.Request.Context(), me(c), c.Param("id"))
	h.reply(c, res, err)
}
