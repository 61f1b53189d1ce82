package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gulfquotes/internal/services"
	"gulfquotes/internal/utils"
)

// CatalogHandler serves the browsing endpoints: authors, tags, categories,
// gallery and search suggestions.
type CatalogHandler struct {
	authors    *services.AuthorService
	tags       *services.TagService
	categories *services.CategoryService
	gallery    *services.GalleryService
	search     *services.SearchService
	log        logrus.FieldLogger
}

func NewCatalogHandler(
	authors *services.AuthorService,
	tags *services.TagService,
	categories *services.CategoryService,
	gallery *services.GalleryService,
	search *services.SearchService,
	log logrus.FieldLogger,
) *CatalogHandler {
	return &CatalogHandler{authors: authors, tags: tags, categories: categories, gallery: gallery, search: search, log: log}
}

func (h *CatalogHandler) ListAuthors(c *gin.Context) {
	list, err := h.authors.List(c.Request.Context(), services.AuthorListParams{
		Page:   page(c, services.DefaultPageSize),
		Search: c.Query("search"),
		Letter: c.Query("letter"),
	})
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, list)
}

func (h *CatalogHandler) GetAuthor(c *gin.Context) {
	a, err := h.authors.GetBySlug(c.Request.Context(), c.Param("slug"), viewerID(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, a)
}

func (h *CatalogHandler) ToggleFollow(c *gin.Context) {
	res, err := h.authors.ToggleFollow(c.Request.Context(), me(c).ID, c.Param("slug"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, res)
}

func (h *CatalogHandler) ListTags(c *gin.Context) {
	list, err := h.tags.List(c.Request.Context(), services.TagListParams{
		Page:   page(c, services.DefaultPageSize),
		Search: c.Query("search"),
		SortBy: c.DefaultQuery("sortBy", "popular"),
		Order:  c.Query("order"),
	})
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, list)
}

func (h *CatalogHandler) GetTag(c *gin.Context) {
	tag, err := h.tags.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, tag)
}

func (h *CatalogHandler) ListCategories(c *gin.Context) {
	cats, err := h.categories.List(c.Request.Context())
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, cats)
}

func (h *CatalogHandler) ListGallery(c *gin.Context) {
	params := services.GalleryListParams{
		Page:      page(c, services.DefaultGalleryPageSize),
		Search:    c.Query("search"),
		Formats:   utils.SplitCSV(c.Query("formats")),
		SortField: c.DefaultQuery("sortField", "createdAt"),
		Direction: c.DefaultQuery("sortDirection", "desc"),
	}
	if v, err := strconv.ParseBool(c.Query("isGlobal")); err == nil {
		params.IsGlobal = &v
	}
	list, err := h.gallery.List(c.Request.Context(), params)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, list)
}

func (h *CatalogHandler) CreateGallery(c *gin.Context) {
	var req services.CreateGalleryInput
	if !bind(c, &req) {
		return
	}
	g, err := h.gallery.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, g)
}

type suggestionsResponse struct {
	Suggestions []services.Suggestion `json:"suggestions"`
	Popular     []services.Suggestion `json:"popular,omitempty"`
}

// Suggestions: empty q returns trending searches unless includeTrending=false.
func (h *CatalogHandler) Suggestions(c *gin.Context) {
	ctx := c.Request.Context()
	q := strings.TrimSpace(c.Query("q"))
	limit := services.SuggestionLimit(utils.StringToInt(c.Query("limit")))
	includeTrending := c.Query("includeTrending") != "false"

	out := suggestionsResponse{Suggestions: []services.Suggestion{}}
	switch {
	case q != "":
		s, err := h.search.Suggestions(ctx, q, limit)
		if err != nil {
			fail(c, h.log, err)
			return
		}
		out.Suggestions = s
	case includeTrending:
		p, err := h.search.Popular(ctx, limit)
		if err != nil {
			fail(c, h.log, err)
			return
		}
		out.Popular = p
	}
	respond(c, http.StatusOK, out)
}
