package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gulfquotes/internal/services"
)

type CommentHandler struct {
	comments *services.CommentService
	replies  *services.ReplyService
	log      logrus.FieldLogger
}

func NewCommentHandler(comments *services.CommentService, replies *services.ReplyService, log logrus.FieldLogger) *CommentHandler {
	return &CommentHandler{comments: comments, replies: replies, log: log}
}

// contentRequest 长度在 service 里按去掉标签后的文本校验
type contentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *CommentHandler) List(c *gin.Context) {
	list, err := h.comments.List(c.Request.Context(), services.CommentListParams{
		QuoteSlug: c.Param("slug"),
		Page:      page(c, services.DefaultPageSize),
		SortBy:    c.DefaultQuery("sortBy", "recent"),
		ViewerID:  viewerID(c),
	})
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, list)
}

func (h *CommentHandler) Create(c *gin.Context) {
	var req contentRequest
	if !bind(c, &req) {
		return
	}
	comment, err := h.comments.Create(c.Request.Context(), me(c), c.Param("slug"), req.Content)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, comment)
}

func (h *CommentHandler) Update(c *gin.Context) {
	var req contentRequest
	if !bind(c, &req) {
		return
	}
	comment, err := h.comments.Update(c.Request.Context(), me(c), c.Param("id"), req.Content)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, comment)
}

func (h *CommentHandler) Delete(c *gin.Context) {
	if err := h.comments.Delete(c.Request.Context(), me(c), c.Param("id")); err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"success": true})
}

func (h *CommentHandler) ListReplies(c *gin.Context) {
	list, err := h.replies.List(
		c.Request.Context(),
		c.Param("slug"),
		c.Param("commentId"),
		page(c, services.DefaultPageSize),
		viewerID(c),
	)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, list)
}

func (h *CommentHandler) CreateReply(c *gin.Context) {
	var req contentRequest
	if !bind(c, &req) {
		return
	}
	reply, err := h.replies.Create(c.Request.Context(), me(c), c.Param("slug"), c.Param("commentId"), req.Content)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, reply)
}

func (h *CommentHandler) UpdateReply(c *gin.Context) {
	var req contentRequest
	if !bind(c, &req) {
		return
	}
	reply, err := h.replies.Update(c.Request.Context(), me(c), c.Param("id"), req.Content)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, reply)
}

func (h *CommentHandler) DeleteReply(c *gin.Context) {
	if err := h.replies.Delete(c.Request.Context(), me(c), c.Param("id")); err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"success": true})
}
