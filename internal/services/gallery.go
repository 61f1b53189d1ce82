package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"gulfquotes/internal/apperr"
	"gulfquotes/internal/models"
	"gulfquotes/internal/utils"
)

const (
	DefaultGalleryPageSize = 20
)

var galleryFormats = map[string]bool{"jpg": true, "jpeg": true, "png": true, "webp": true, "gif": true}

var gallerySortFields = map[string]string{
	"createdAt":  "created_at",
	"title":      "title",
	"usageCount": "usage_count",
}

type GalleryListParams struct {
	Page      Page
	Search    string
	IsGlobal  *bool
	Formats   []string
	SortField string // createdAt | title | usageCount
	Direction string // asc | desc
}

type CreateGalleryInput struct {
	URL         string `json:"url" binding:"required,url"`
	PublicID    string `json:"publicId" binding:"required,max=255"`
	Title       string `json:"title" binding:"max=200"`
	AltText     string `json:"altText" binding:"max=200"`
	Description string `json:"description" binding:"max=1000"`
	Format      string `json:"format" binding:"required"`
	Width       int    `json:"width" binding:"gte=0"`
	Height      int    `json:"height" binding:"gte=0"`
	Bytes       int64  `json:"bytes" binding:"gte=0"`
	IsGlobal    bool   `json:"isGlobal"`
}

type GalleryService struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewGalleryService(db *gorm.DB, log logrus.FieldLogger) *GalleryService {
	return &GalleryService{db: db, log: log}
}

func (s *GalleryService) List(ctx context.Context, p GalleryListParams) (*List[models.Gallery], error) {
	q := s.db.WithContext(ctx).Model(&models.Gallery{})
	if search := strings.TrimSpace(p.Search); search != "" {
		like := utils.ContainsPattern(strings.ToLower(search))
		q = q.Where(`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(alt_text) LIKE ? ESCAPE '\'`, like, like)
	}
	if p.IsGlobal != nil {
		q = q.Where("is_global = ?", *p.IsGlobal)
	}
	var formats []string
	for _, f := range p.Formats {
		if f = strings.ToLower(strings.TrimSpace(f)); galleryFormats[f] {
			formats = append(formats, f)
		}
	}
	if len(formats) > 0 {
		q = q.Where("format IN ?", formats)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, apperr.FromDB(err, "Error counting gallery items", s.log)
	}

	column, ok := gallerySortFields[p.SortField]
	if !ok {
		column = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(p.Direction, "asc") {
		dir = "ASC"
	}
	var items []models.Gallery
	err := q.Session(&gorm.Session{}).
		Order(column + " " + dir + ", id " + dir).
		Scopes(p.Page.scope).
		Find(&items).Error
	if err != nil {
		return nil, apperr.FromDB(err, "Error listing gallery items", s.log)
	}
	list := NewList(items, total, p.Page)
	return &list, nil
}

func (s *GalleryService) Create(ctx context.Context, in CreateGalleryInput) (*models.Gallery, error) {
	format := strings.ToLower(strings.TrimSpace(in.Format))
	if !galleryFormats[format] {
		return nil, apperr.Validation("Invalid input data", map[string]string{"format": "Unsupported image format"})
	}
	g := &models.Gallery{
		URL:         in.URL,
		PublicID:    strings.TrimSpace(in.PublicID),
		Title:       strings.TrimSpace(in.Title),
		AltText:     strings.TrimSpace(in.AltText),
		Description: strings.TrimSpace(in.Description),
		Format:      format,
		Width:       in.Width,
		Height:      in.Height,
		Bytes:       in.Bytes,
		IsGlobal:    in.IsGlobal,
	}
	if err := s.db.WithContext(ctx).Create(g).Error; err != nil {
		return nil, apperr.FromDB(err, "Error creating gallery item", s.log)
	}
	return g, nil
}
