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

type TagListParams struct {
	Page   Page
	Search string
	SortBy string // popular | name | recent
	Order  string // asc | desc
}

type TagService struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewTagService(db *gorm.DB, log logrus.FieldLogger) *TagService {
	return &TagService{db: db, log: log}
}

func tagCounts(db *gorm.DB) *gorm.DB {
	return db.Select("tags.*, (SELECT COUNT(*) FROM quote_tags WHERE quote_tags.tag_id = tags.id) AS quote_count")
}

// tagOrder 默认: popular 降序，name 升序，recent 降序
func tagOrder(sortBy, order string) string {
	dir := strings.ToUpper(order)
	switch sortBy {
	case "name":
		if dir != "DESC" {
			dir = "ASC"
		}
		return "tags.name " + dir
	case "recent":
		if dir != "ASC" {
			dir = "DESC"
		}
		return "tags.created_at " + dir + ", tags.id " + dir
	default:
		if dir != "ASC" {
			dir = "DESC"
		}
		return "quote_count " + dir + ", tags.name ASC"
	}
}

func (s *TagService) List(ctx context.Context, p TagListParams) (*List[models.Tag], error) {
	q := s.db.WithContext(ctx).Model(&models.Tag{})
	if search := strings.TrimSpace(p.Search); search != "" {
		q = q.Where(`LOWER(tags.name) LIKE ? ESCAPE '\'`, utils.ContainsPattern(strings.ToLower(search)))
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, apperr.FromDB(err, "Error counting tags", s.log)
	}
	var items []models.Tag
	err := q.Session(&gorm.Session{}).
		Scopes(tagCounts, p.Page.scope).
		Order(tagOrder(p.SortBy, p.Order)).
		Find(&items).Error
	if err != nil {
		return nil, apperr.FromDB(err, "Error listing tags", s.log)
	}
	list := NewList(items, total, p.Page)
	return &list, nil
}

func (s *TagService) GetBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	var t models.Tag
	err := s.db.WithContext(ctx).Model(&models.Tag{}).Scopes(tagCounts).Where("tags.slug = ?", slug).Take(&t).Error
	if isNotFound(err) {
		return nil, apperr.NotFound("Tag not found")
	}
	if err != nil {
		return nil, apperr.FromDB(err, "Error getting tag", s.log)
	}
	return &t, nil
}

// Popular returns the limit tags used by the most quotes.
func (s *TagService) Popular(ctx context.Context, limit int) ([]models.Tag, error) {
	limit = NewPage(1, limit, 10, MaxPageSize).Limit
	var items []models.Tag
	err := s.db.WithContext(ctx).Model(&models.Tag{}).
		Scopes(tagCounts).
		Order(tagOrder("popular", "desc")).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, apperr.FromDB(err, "Error getting popular tags", s.log)
	}
	if items == nil {
		items = []models.Tag{}
	}
	return items, nil
}

type CategoryService struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewCategoryService(db *gorm.DB, log logrus.FieldLogger) *CategoryService {
	return &CategoryService{db: db, log: log}
}

// List returns every category by name with its quote count.
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	var items []models.Category
	err := s.db.WithContext(ctx).Model(&models.Category{}).
		Select("categories.*, (SELECT COUNT(*) FROM quotes WHERE quotes.category_id = categories.id) AS quote_count").
		Order("categories.name ASC").
		Find(&items).Error
	if err != nil {
		return nil, apperr.FromDB(err, "Error listing categories", s.log)
	}
	if items == nil {
		items = []models.Category{}
	}
	return items, nil
}
