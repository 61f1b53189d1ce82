package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gulfquotes/internal/apperr"
	"gulfquotes/internal/services"
)

type QuoteHandler struct {
	quotes *services.QuoteService
	search *services.SearchService
	log    logrus.FieldLogger
}

func NewQuoteHandler(quotes *services.QuoteService, search *services.SearchService, log logrus.FieldLogger) *QuoteHandler {
	return &QuoteHandler{quotes: quotes, search: search, log: log}
}

func (h *QuoteHandler) List(c *gin.Context) {
	params := services.QuoteListParams{
		Page:            page(c, services.DefaultPageSize),
		Search:          strings.TrimSpace(c.Query("search")),
		AuthorID:        c.Query("authorId"),
		CategoryID:      c.Query("categoryId"),
		AuthorProfileID: c.Query("authorProfileId"),
		TagSlug:         c.Query("tag"),
		Featured:        c.Query("featured") == "true",
		ViewerID:        viewerID(c),
	}
	if params.AuthorID == "me" {
		if params.ViewerID == "" {
			fail(c, h.log, apperr.Unauthorized("Authentication required"))
			return
		}
		params.AuthorID = params.ViewerID
	}

	list, err := h.quotes.List(c.Request.Context(), params)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	// 只统计第一页的搜索，翻页不重复计数
	if params.Search != "" && params.Page.Page == 1 {
		if err := h.search.Record(c.Request.Context(), params.Search); err != nil {
			h.log.WithError(err).Warn("record search failed")
		}
	}
	respond(c, http.StatusOK, list)
}

func (h *QuoteHandler) Get(c *gin.Context) {
	q, err := h.quotes.GetBySlug(c.Request.Context(), c.Param("slug"), viewerID(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, q)
}

func (h *QuoteHandler) Create(c *gin.Context) {
	var req services.CreateQuoteInput
	if !bind(c, &req) {
		return
	}
	q, err := h.quotes.Create(c.Request.Context(), me(c), req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, q)
}

func (h *QuoteHandler) Update(c *gin.Context) {
	var req services.UpdateQuoteInput
	if !bind(c, &req) {
		return
	}
	q, err := h.quotes.Update(c.Request.Context(), me(c), c.Param("slug"), req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, q)
}

func (h *QuoteHandler) Delete(c *gin.Context) {
	if err := h.quotes.Delete(c.Request.Context(), me(c), c.Param("slug")); err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"success": true})
}

type addImagesRequest struct {
	Images []services.QuoteImageInput `json:"images" binding:"required,min=1,dive"`
}

func (h *QuoteHandler) AddImages(c *gin.Context) {
	var req addImagesRequest
	if !bind(c, &req) {
		return
	}
	images, err := h.quotes.AddImages(c.Request.Context(), me(c), c.Param("slug"), req.Images)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, images)
}

// RemoveImage takes the gallery public id from ?publicId=.
func (h *QuoteHandler) RemoveImage(c *gin.Context) {
	publicID := c.Query("publicId")
	if publicID == "" {
		fail(c, h.log, apperr.Validation("Invalid input data", map[string]string{"publicId": "This field is required"}))
		return
	}
	images, err := h.quotes.RemoveImage(c.Request.Context(), me(c), c.Param("slug"), publicID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, images)
}

func (h *QuoteHandler) Download(c *gin.Context) {
	count, err := h.quotes.RecordDownload(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"downloadCount": count})
}
