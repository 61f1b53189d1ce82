package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"gulfquotes/internal/apperr"
	"gulfquotes/internal/models"
	"gulfquotes/internal/utils"
)

const MaxQuoteLength = 1500

var (
	errDuplicateSlug    = apperr.New(apperr.CodeDuplicateSlug, http.StatusBadRequest, "Quote with similar content already exists")
	errCategoryNotFound = apperr.New(apperr.CodeCategoryNotFound, http.StatusNotFound, "Category not found")
	errInvalidReference = apperr.New(apperr.CodeInvalidReference, http.StatusBadRequest, "Invalid category or author reference")
	errConcurrentDelete = apperr.New(apperr.CodeConcurrentDelete, http.StatusConflict, "Quote was deleted")
	errConcurrentModify = apperr.New(apperr.CodeConcurrentModification, http.StatusConflict, "Quote was modified by another user")
)

type QuoteImageInput struct {
	GalleryID    string `json:"galleryId" binding:"required"`
	IsActive     bool   `json:"isActive"`
	IsBackground bool   `json:"isBackground"`
}

type CreateQuoteInput struct {
	Content         string            `json:"content" binding:"required,max=1500"`
	Slug            string            `json:"slug"`
	CategoryID      string            `json:"categoryId" binding:"required"`
	AuthorProfileID string            `json:"authorProfileId" binding:"required"`
	Featured        bool              `json:"featured"`
	TagIDs          []string          `json:"tagIds"`
	Images          []QuoteImageInput `json:"images" binding:"dive"`
}

// UpdateQuoteInput uses pointers so absent fields stay untouched.
// Version, when set, is the version the client last saw.
type UpdateQuoteInput struct {
	Content         *string   `json:"content" binding:"omitempty,min=1,max=1500"`
	Slug            *string   `json:"slug"`
	CategoryID      *string   `json:"categoryId" binding:"omitempty,min=1"`
	AuthorProfileID *string   `json:"authorProfileId" binding:"omitempty,min=1"`
	Featured        *bool     `json:"featured"`
	TagIDs          *[]string `json:"tagIds"`
	Version         int       `json:"version"`
}

type QuoteListParams struct {
	Page            Page
	Search          string
	AuthorID        string
	CategoryID      string
	AuthorProfileID string
	TagSlug         string
	Featured        bool
	ViewerID        string
}

type QuoteService struct {
	db       *gorm.DB
	log      logrus.FieldLogger
	likes    *LikeService
	notifier *NotificationService
}

func NewQuoteService(db *gorm.DB, log logrus.FieldLogger, likes *LikeService, notifier *NotificationService) *QuoteService {
	return &QuoteService{db: db, log: log, likes: likes, notifier: notifier}
}

// slugFor picks the caller's slug when given, else derives one from content.
func slugFor(requested, content string) (string, error) {
	if s := strings.TrimSpace(requested); s != "" {
		if !utils.ValidSlug(s) {
			return "", apperr.Validation("Invalid input data", map[string]string{"slug": "Invalid slug format"})
		}
		return s, nil
	}
	s := utils.Slugify(utils.Truncate(content, 50))
	if s == "" {
		return "", apperr.Validation("Invalid input data", map[string]string{"slug": "Slug could not be generated from content"})
	}
	return s, nil
}

func (s *QuoteService) validateSlug(tx *gorm.DB, slug, excludeID string) error {
	q := tx.Model(&models.Quote{}).Where("slug = ?", slug)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return errDuplicateSlug
	}
	return nil
}

func (s *QuoteService) validateCategory(tx *gorm.DB, id string) error {
	var n int64
	if err := tx.Model(&models.Category{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return errCategoryNotFound
	}
	return nil
}

func (s *QuoteService) authorProfile(tx *gorm.DB, id string) (*models.AuthorProfile, error) {
	var p models.AuthorProfile
	err := tx.Select("id", "name", "slug").First(&p, "id = ?", id).Error
	if isNotFound(err) {
		return nil, errInvalidReference
	}
	return &p, err
}

func (s *QuoteService) tags(tx *gorm.DB, ids []string) ([]models.Tag, error) {
	if len(ids) == 0 {
		return []models.Tag{}, nil
	}
	var tags []models.Tag
	if err := tx.Where("id IN ?", ids).Find(&tags).Error; err != nil {
		return nil, err
	}
	if len(tags) != len(uniqueStrings(ids)) {
		return nil, errInvalidReference
	}
	return tags, nil
}

// mapDBError translates persistence failures the way quote callers expect.
func (s *QuoteService) mapDBError(err error, where string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		s.log.WithError(err).Error(where)
		return errDuplicateSlug
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		s.log.WithError(err).Error(where)
		return errInvalidReference
	}
	return apperr.FromDB(err, where, s.log)
}

// checkAccess: ADMIN edits anything, AUTHOR only their own quotes.
func checkAccess(user *models.User, q *models.Quote) error {
	if user == nil {
		return apperr.Unauthorized("Unauthorized")
	}
	switch user.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleAuthor:
		if q.AuthorID == user.ID {
			return nil
		}
		return apperr.Forbidden("You don't have permission to modify this quote")
	}
	return apperr.Forbidden("Permission denied")
}

func (s *QuoteService) Create(ctx context.Context, user *models.User, in CreateQuoteInput) (*models.Quote, error) {
	if user == nil || !user.CanPublish() {
		return nil, apperr.Forbidden("Only authors and admins can create quotes")
	}
	if utf8.RuneCountInString(in.Content) > MaxQuoteLength {
		return nil, apperr.New(apperr.CodeContentTooLong, http.StatusBadRequest, "Quote content exceeds 1500 characters")
	}
	content := utils.SanitizeQuoteContent(in.Content)
	if content == "" {
		return nil, apperr.Validation("Invalid input data", map[string]string{"content": "Quote content is required"})
	}
	slug, err := slugFor(in.Slug, content)
	if err != nil {
		return nil, err
	}

	var (
		quote   models.Quote
		profile *models.AuthorProfile
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.validateSlug(tx, slug, ""); err != nil {
			return err
		}
		if err := s.validateCategory(tx, in.CategoryID); err != nil {
			return err
		}
		var err error
		if profile, err = s.authorProfile(tx, in.AuthorProfileID); err != nil {
			return err
		}
		tags, err := s.tags(tx, in.TagIDs)
		if err != nil {
			return err
		}

		quote = models.Quote{
			Content:         content,
			Slug:            slug,
			AuthorID:        user.ID,
			CategoryID:      in.CategoryID,
			AuthorProfileID: profile.ID,
			Featured:        in.Featured,
			Version:         1,
		}
		if err := tx.Omit("Tags", "Images").Create(&quote).Error; err != nil {
			return err
		}
		if len(tags) > 0 {
			if err := tx.Model(&quote).Association("Tags").Append(tags); err != nil {
				return err
			}
		}
		return attachImages(tx, quote.ID, in.Images)
	})
	if err != nil {
		return nil, s.mapDBError(err, "Error creating quote")
	}

	// 站内通知同步写入，邮件交给队列
	if err := s.notifier.FanOutNewQuote(ctx, profile.ID, quote.ID, user.ID, profile.Name); err != nil {
		s.log.WithError(err).WithField("quote", quote.ID).Error("follower fan-out failed")
	}

	return s.GetBySlug(ctx, quote.Slug, user.ID)
}

// attachImages links gallery items to a quote. Already linked items are
// updated in place; at most one link ends up as the background.
func attachImages(tx *gorm.DB, quoteID string, images []QuoteImageInput) error {
	for _, img := range images {
		var n int64
		if err := tx.Model(&models.Gallery{}).Where("id = ?", img.GalleryID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return errInvalidReference
		}

		if img.IsBackground {
			if err := tx.Model(&models.QuoteImage{}).Where("quote_id = ?", quoteID).
				UpdateColumn("is_background", false).Error; err != nil {
				return err
			}
		}

		var existing models.QuoteImage
		err := tx.Where("quote_id = ? AND gallery_id = ?", quoteID, img.GalleryID).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&existing).Updates(map[string]any{
				"is_active":     img.IsActive,
				"is_background": img.IsBackground,
			}).Error; err != nil {
				return err
			}
		case isNotFound(err):
			link := models.QuoteImage{
				QuoteID:      quoteID,
				GalleryID:    img.GalleryID,
				IsActive:     img.IsActive,
				IsBackground: img.IsBackground,
			}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Gallery{}).Where("id = ?", img.GalleryID).
				UpdateColumn("usage_count", gorm.Expr("usage_count + ?", 1)).Error; err != nil {
				return err
			}
		default:
			return err
		}
	}
	return nil
}

func (s *QuoteService) GetBySlug(ctx context.Context, slug, viewerID string) (*models.Quote, error) {
	var q models.Quote
	err := s.db.WithContext(ctx).
		Preload("Author", publicUser).
		Preload("Category").
		Preload("AuthorProfile").
		Preload("Tags").
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Images.Gallery").
		First(&q, "slug = ?", slug).Error
	if isNotFound(err) {
		return nil, apperr.NotFound("Quote not found")
	}
	if err != nil {
		return nil, apperr.FromDB(err, "Error getting quote", s.log)
	}
	items := []models.Quote{q}
	if err := s.decorate(ctx, items, viewerID); err != nil {
		return nil, err
	}
	return &items[0], nil
}

func (s *QuoteService) decorate(ctx context.Context, items []models.Quote, viewerID string) error {
	if viewerID == "" || len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	liked, err := s.likes.UserLikes(ctx, QuoteLikes, viewerID, ids)
	if err != nil {
		return err
	}
	var bookmarked []string
	if err := s.db.WithContext(ctx).Model(&models.Bookmark{}).
		Where("user_id = ? AND quote_id IN ?", viewerID, ids).
		Pluck("quote_id", &bookmarked).Error; err != nil {
		return apperr.FromDB(err, "Error loading bookmarks", s.log)
	}
	marks := make(map[string]bool, len(bookmarked))
	for _, id := range bookmarked {
		marks[id] = true
	}
	for i := range items {
		items[i].IsLiked = liked[items[i].ID]
		items[i].IsBookmarked = marks[items[i].ID]
	}
	return nil
}

func (s *QuoteService) List(ctx context.Context, p QuoteListParams) (*List[models.Quote], error) {
	q := s.db.WithContext(ctx).Model(&models.Quote{})
	if p.Search != "" {
		q = q.Where(`LOWER(quotes.content) LIKE ? ESCAPE '\'`, utils.ContainsPattern(strings.ToLower(p.Search)))
	}
	if p.AuthorID != "" {
		q = q.Where("quotes.author_id = ?", p.AuthorID)
	}
	if p.CategoryID != "" {
		q = q.Where("quotes.category_id = ?", p.CategoryID)
	}
	if p.AuthorProfileID != "" {
		q = q.Where("quotes.author_profile_id = ?", p.AuthorProfileID)
	}
	if p.Featured {
		q = q.Where("quotes.featured = ?", true)
	}
	if p.TagSlug != "" {
		q = q.Where("quotes.id IN (?)", s.db.Table("quote_tags").
			Select("quote_tags.quote_id").
			Joins("JOIN tags ON tags.id = quote_tags.tag_id").
			Where("tags.slug = ?", p.TagSlug))
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, apperr.FromDB(err, "Error counting quotes", s.log)
	}
	var items []models.Quote
	err := q.Session(&gorm.Session{}).
		Preload("Category").
		Preload("AuthorProfile").
		Preload("Tags").
		Order("quotes.created_at DESC, quotes.id DESC").
		Scopes(p.Page.scope).
		Find(&items).Error
	if err != nil {
		return nil, apperr.FromDB(err, "Error listing quotes", s.log)
	}
	if err := s.decorate(ctx, items, p.ViewerID); err != nil {
		return nil, err
	}
	list := NewList(items, total, p.Page)
	return &list, nil
}

func (s *QuoteService) load(ctx context.Context, slug string) (*models.Quote, error) {
	var q models.Quote
	err := s.db.WithContext(ctx).First(&q, "slug = ?", slug).Error
	if isNotFound(err) {
		return nil, apperr.NotFound("Quote not found")
	}
	if err != nil {
		return nil, apperr.FromDB(err, "Error loading quote", s.log)
	}
	return &q, nil
}

// Update applies in under an optimistic lock on the version column. A row that
// vanished reports CONCURRENT_DELETE; a version that moved reports
// CONCURRENT_MODIFICATION.
func (s *QuoteService) Update(ctx context.Context, user *models.User, slug string, in UpdateQuoteInput) (*models.Quote, error) {
	existing, err := s.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(user, existing); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Content != nil || in.Slug != nil {
		content := existing.Content
		if in.Content != nil {
			if utf8.RuneCountInString(*in.Content) > MaxQuoteLength {
				return nil, apperr.New(apperr.CodeContentTooLong, http.StatusBadRequest, "Quote content exceeds 1500 characters")
			}
			content = utils.SanitizeQuoteContent(*in.Content)
			if content == "" {
				return nil, apperr.Validation("Invalid input data", map[string]string{"content": "Quote content is required"})
			}
			updates["content"] = content
		}
		requested := ""
		if in.Slug != nil {
			requested = *in.Slug
		}
		newSlug, err := slugFor(requested, content)
		if err != nil {
			return nil, err
		}
		updates["slug"] = newSlug
	}
	if in.Featured != nil {
		updates["featured"] = *in.Featured
	}
	if in.CategoryID != nil {
		updates["category_id"] = *in.CategoryID
	}
	if in.AuthorProfileID != nil {
		updates["author_profile_id"] = *in.AuthorProfileID
	}

	expected := existing.Version
	if in.Version > 0 {
		expected = in.Version
	}
	updates["version"] = gorm.Expr("version + ?", 1)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if newSlug, ok := updates["slug"].(string); ok {
			if err := s.validateSlug(tx, newSlug, existing.ID); err != nil {
				return err
			}
		}
		if in.CategoryID != nil {
			if err := s.validateCategory(tx, *in.CategoryID); err != nil {
				return err
			}
		}
		if in.AuthorProfileID != nil {
			if _, err := s.authorProfile(tx, *in.AuthorProfileID); err != nil {
				return err
			}
		}

		res := tx.Model(&models.Quote{}).
			Where("id = ? AND version = ?", existing.ID, expected).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.Quote{}).Where("id = ?", existing.ID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return errConcurrentDelete
			}
			return errConcurrentModify
		}

		if in.TagIDs != nil {
			tags, err := s.tags(tx, *in.TagIDs)
			if err != nil {
				return err
			}
			if err := tx.Model(&models.Quote{ID: existing.ID}).Association("Tags").Replace(tags); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.mapDBError(err, "Error updating quote")
	}

	finalSlug := existing.Slug
	if newSlug, ok := updates["slug"].(string); ok {
		finalSlug = newSlug
	}
	return s.GetBySlug(ctx, finalSlug, user.ID)
}

func (s *QuoteService) Delete(ctx context.Context, user *models.User, slug string) error {
	existing, err := s.load(ctx, slug)
	if err != nil {
		return err
	}
	if err := checkAccess(user, existing); err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(existing).Association("Tags").Clear(); err != nil {
			return err
		}
		// 释放图库引用计数
		var galleryIDs []string
		if err := tx.Model(&models.QuoteImage{}).Where("quote_id = ?", existing.ID).Pluck("gallery_id", &galleryIDs).Error; err != nil {
			return err
		}
		if len(galleryIDs) > 0 {
			if err := tx.Model(&models.Gallery{}).
				Where("id IN ? AND usage_count > 0", galleryIDs).
				UpdateColumn("usage_count", gorm.Expr("usage_count - ?", 1)).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Quote{}, "id = ?", existing.ID).Error
	})
	if err != nil {
		return apperr.FromDB(err, "Error deleting quote", s.log)
	}
	return nil
}

func (s *QuoteService) AddImages(ctx context.Context, user *models.User, slug string, images []QuoteImageInput) ([]models.QuoteImage, error) {
	existing, err := s.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(user, existing); err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, apperr.Validation("Invalid input data", map[string]string{"images": "At least one image is required"})
	}
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return attachImages(tx, existing.ID, images)
	}); err != nil {
		return nil, s.mapDBError(err, "Error adding quote images")
	}
	return s.images(ctx, existing.ID)
}

// RemoveImage unlinks the gallery item identified by its public id.
func (s *QuoteService) RemoveImage(ctx context.Context, user *models.User, slug, publicID string) ([]models.QuoteImage, error) {
	existing, err := s.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(user, existing); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var g models.Gallery
		if err := tx.Select("id").First(&g, "public_id = ?", publicID).Error; err != nil {
			return err
		}
		res := tx.Where("quote_id = ? AND gallery_id = ?", existing.ID, g.ID).Delete(&models.QuoteImage{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.Gallery{}).
			Where("id = ? AND usage_count > 0", g.ID).
			UpdateColumn("usage_count", gorm.Expr("usage_count - ?", 1)).Error
	})
	if isNotFound(err) {
		return nil, apperr.NotFound("Image not found on this quote")
	}
	if err != nil {
		return nil, apperr.FromDB(err, "Error removing quote image", s.log)
	}
	return s.images(ctx, existing.ID)
}

func (s *QuoteService) images(ctx context.Context, quoteID string) ([]models.QuoteImage, error) {
	var images []models.QuoteImage
	err := s.db.WithContext(ctx).Preload("Gallery").
		Where("quote_id = ?", quoteID).
		Order("created_at ASC").
		Find(&images).Error
	if err != nil {
		return nil, apperr.FromDB(err, "Error loading quote images", s.log)
	}
	if images == nil {
		images = []models.QuoteImage{}
	}
	return images, nil
}

// RecordDownload counts one download of the quote card and returns the new total.
func (s *QuoteService) RecordDownload(ctx context.Context, slug string) (int, error) {
	var count int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Quote{}).Where("slug = ?", slug).
			UpdateColumn("download_count", gorm.Expr("download_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.Quote{}).Select("download_count").Where("slug = ?", slug).Scan(&count).Error
	})
	if isNotFound(err) {
		return 0, apperr.NotFound("Quote not found")
	}
	if err != nil {
		return 0, apperr.FromDB(err, "Error recording download", s.log)
	}
	return count, nil
}

// ToggleLike flips the viewer's like on the quote identified by slug.
func (s *QuoteService) ToggleLike(ctx context.Context, user *models.User, slug string) (*LikeResult, error) {
	q, err := s.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.likes.Toggle(ctx, QuoteLikes, q.ID, user.ID)
}

func (s *QuoteService) LikeStatus(ctx context.Context, user *models.User, slug string) (*LikeResult, error) {
	q, err := s.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.likes.Status(ctx, QuoteLikes, q.ID, user.ID)
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
