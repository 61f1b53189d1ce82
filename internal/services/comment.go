package services

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"gulfquotes/internal/apperr"
	"gulfquotes/internal/models"
	"gulfquotes/internal/utils"
)

const MaxCommentLength = 1000

// cleanContent strips markup and enforces the 1..1000 character rule.
func cleanContent(raw string) (string, error) {
	content := utils.StripHTML(raw)
	n := utf8.RuneCountInString(content)
	if n == 0 {
		return "", apperr.Validation("Invalid input data", map[string]string{"content": "Content is required"})
	}
	if n > MaxCommentLength {
		return "", apperr.Validation("Invalid input data", map[string]string{
			"content": fmt.Sprintf("Content must not exceed %d characters", MaxCommentLength),
		})
	}
	return content, nil
}

// canModify: owner, AUTHOR or ADMIN.
func canModify(user *models.User, ownerID string) bool {
	return user != nil && (user.ID == ownerID || user.CanModerate())
}

type CommentService struct {
	db       *gorm.DB
	log      logrus.FieldLogger
	likes    *LikeService
	notifier *NotificationService
}

func NewCommentService(db *gorm.DB, log logrus.FieldLogger, likes *LikeService, notifier *NotificationService) *CommentService {
	return &CommentService{db: db, log: log, likes: likes, notifier: notifier}
}

func (s *CommentService) quoteBySlug(ctx context.Context, slug string) (*models.Quote, error) {
	var q models.Quote
	err := s.db.WithContext(ctx).Select("id", "slug", "author_id", "content").First(&q, "slug = ?", slug).Error
	if isNotFound(err) {
		return nil, apperr.NotFound("Quote not found")
	}
	if err != nil {
		return nil, apperr.FromDB(err, "Error loading quote", s.log)
	}
	return &q, nil
}

func (s *CommentService) Create(ctx context.Context, user *models.User, quoteSlug, raw string) (*models.Comment, error) {
	content, err := cleanContent(raw)
	if err != nil {
		return nil, err
	}
	quote, err := s.quoteBySlug(ctx, quoteSlug)
	if err != nil {
		return nil, err
	}

	c := &models.Comment{Content: content, UserID: user.ID, QuoteID: quote.ID}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, apperr.FromDB(err, "Error creating comment", s.log)
	}

	err = s.notifier.NotifyActivity(ctx, CreateNotificationInput{
		Type:    models.NotificationTypeComment,
		Title:   "New Comment",
		Message: fmt.Sprintf("%s commented on your quote", user.Name),
		UserID:  quote.AuthorID,
		QuoteID: quote.ID,
		ActorID: user.ID,
	}, "/quotes/"+quote.Slug, content)
	if err != nil {
		s.log.WithError(err).Warn("comment notification failed")
	}

	return s.Get(ctx, c.ID, user.ID)
}

// Get loads one comment with its author and the viewer's like flag.
func (s *CommentService) Get(ctx context.Context, id, viewerID string) (*models.Comment, error) {
	var c models.Comment
	err := s.db.WithContext(ctx).Preload("User", publicUser).First(&c, "id = ?", id).Error
	if isNotFound(err) {
		return nil, apperr.NotFound("Comment not found")
	}
	if err != nil {
		return nil, apperr.FromDB(err, "Error getting comment", s.log)
	}
	items := []models.Comment{c}
	if err := s.decorate(ctx, items, viewerID); err != nil {
		return nil, err
	}
	return &items[0], nil
}

type CommentListParams struct {
	QuoteSlug string
	Page      Page
	SortBy    string // recent | popular
	ViewerID  string
}

func (s *CommentService) List(ctx context.Context, p CommentListParams) (*List[models.Comment], error) {
	quote, err := s.quoteBySlug(ctx, p.QuoteSlug)
	if err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Model(&models.Comment{}).Where("quote_id = ?", quote.ID)
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, apperr.FromDB(err, "Error counting comments", s.log)
	}

	order := "created_at DESC, id DESC"
	if p.SortBy == "popular" {
		order = "likes DESC, created_at DESC, id DESC"
	}
	var items []models.Comment
	err = q.Session(&gorm.Session{}).
		Preload("User", publicUser).
		Order(order).
		Scopes(p.Page.scope).
		Find(&items).Error
	if err != nil {
		return nil, apperr.FromDB(err, "Error listing comments", s.log)
	}
	if err := s.decorate(ctx, items, p.ViewerID); err != nil {
		return nil, err
	}
	list := NewList(items, total, p.Page)
	return &list, nil
}

func (s *CommentService) decorate(ctx context.Context, items []models.Comment, viewerID string) error {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
		items[i].ContentHTML = utils.RenderMarkdown(items[i].Content)
		items[i].Count.Replies = items[i].RepliesCount
	}
	liked, err := s.likes.UserLikes(ctx, CommentLikes, viewerID, ids)
	if err != nil {
		return err
	}
	for i := range items {
		items[i].IsLiked = liked[items[i].ID]
	}
	return nil
}

func (s *CommentService) load(ctx context.Context, id string) (*models.Comment, error) {
	var c models.Comment
	err := s.db.WithContext(ctx).Select("id", "user_id", "quote_id").First(&c, "id = ?", id).Error
	if isNotFound(err) {
		return nil, apperr.NotFound("Comment not found")
	}
	if err != nil {
		return nil, apperr.FromDB(err, "Error loading comment", s.log)
	}
	return &c, nil
}

func (s *CommentService) Update(ctx context.Context, user *models.User, id, raw string) (*models.Comment, error) {
	content, err := cleanContent(raw)
	if err != nil {
		return nil, err
	}
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canModify(user, c.UserID) {
		return nil, apperr.Forbidden("You don't have permission to update this comment")
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Updates(map[string]any{
		"content":   content,
		"is_edited": true,
		"edited_at": now,
	}).Error
	if err != nil {
		return nil, apperr.FromDB(err, "Error updating comment", s.log)
	}
	return s.Get(ctx, id, user.ID)
}

// Delete removes the comment; its replies and likes go with it.
func (s *CommentService) Delete(ctx context.Context, user *models.User, id string) error {
	c, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !canModify(user, c.UserID) {
		return apperr.Forbidden("You don't have permission to delete this comment")
	}
	if err := s.db.WithContext(ctx).Delete(&models.Comment{}, "id = ?", id).Error; err != nil {
		return apperr.FromDB(err, "Error deleting comment", s.log)
	}
	return nil
}

func (s *CommentService) ToggleLike(ctx context.Context, user *models.User, id string) (*LikeResult, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.likes.Toggle(ctx, CommentLikes, c.ID, user.ID)
	if err != nil {
		return nil, err
	}
	if res.Liked {
		s.notifyLike(ctx, user, c.UserID, c.QuoteID, "comment")
	}
	return res, nil
}

func (s *CommentService) notifyLike(ctx context.Context, actor *models.User, ownerID, quoteID, what string) {
	var slug string
	if err := s.db.WithContext(ctx).Model(&models.Quote{}).Select("slug").Where("id = ?", quoteID).Scan(&slug).Error; err != nil {
		s.log.WithError(err).WithField("quote_id", quoteID).Warn("like notification: slug lookup failed")
	}
	err := s.notifier.NotifyActivity(ctx, CreateNotificationInput{
		Type:    models.NotificationTypeLike,
		Title:   "New Like",
		Message: fmt.Sprintf("%s liked your %s", actor.Name, what),
		UserID:  ownerID,
		QuoteID: quoteID,
		ActorID: actor.ID,
	}, "/quotes/"+slug, "")
	if err != nil {
		s.log.WithError(err).Warn("like notification failed")
	}
}
