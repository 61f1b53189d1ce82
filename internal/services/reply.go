package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"gulfquotes/internal/apperr"
	"gulfquotes/internal/models"
	"gulfquotes/internal/utils"
)

type ReplyService struct {
	db       *gorm.DB
	log      logrus.FieldLogger
	likes    *LikeService
	comments *CommentService
	notifier *NotificationService
}

func NewReplyService(db *gorm.DB, log logrus.FieldLogger, likes *LikeService, comments *CommentService, notifier *NotificationService) *ReplyService {
	return &ReplyService{db: db, log: log, likes: likes, comments: comments, notifier: notifier}
}

// parent loads the comment a reply hangs off. When quoteSlug is set the
// comment must belong to that quote.
func (s *ReplyService) parent(ctx context.Context, commentID, quoteSlug string) (*models.Comment, string, error) {
	var row struct {
		ID        string
		UserID    string
		QuoteID   string
		QuoteSlug string
	}
	err := s.db.WithContext(ctx).Table("comments").
		Select("comments.id, comments.user_id, comments.quote_id, quotes.slug AS quote_slug").
		Joins("JOIN quotes ON quotes.id = comments.quote_id").
		Where("comments.id = ?", commentID).
		Take(&row).Error
	if isNotFound(err) || (err == nil && quoteSlug != "" && row.QuoteSlug != quoteSlug) {
		return nil, "", apperr.NotFound("Comment not found")
	}
	if err != nil {
		return nil, "", apperr.FromDB(err, "Error loading comment", s.log)
	}
	return &models.Comment{ID: row.ID, UserID: row.UserID, QuoteID: row.QuoteID}, row.QuoteSlug, nil
}

// Create adds a reply and bumps the parent's reply counter in the same transaction.
func (s *ReplyService) Create(ctx context.Context, user *models.User, quoteSlug, commentID, raw string) (*models.Reply, error) {
	content, err := cleanContent(raw)
	if err != nil {
		return nil, err
	}
	comment, slug, err := s.parent(ctx, commentID, quoteSlug)
	if err != nil {
		return nil, err
	}

	r := &models.Reply{Content: content, CommentID: comment.ID, UserID: user.ID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(r).Error; err != nil {
			return err
		}
		return tx.Model(&models.Comment{}).Where("id = ?", comment.ID).
			UpdateColumn("replies_count", gorm.Expr("replies_count + ?", 1)).Error
	})
	if err != nil {
		return nil, apperr.FromDB(err, "Error creating reply", s.log)
	}

	err = s.notifier.NotifyActivity(ctx, CreateNotificationInput{
		Type:    models.NotificationTypeReply,
		Title:   "New Reply",
		Message: fmt.Sprintf("%s replied to your comment", user.Name),
		UserID:  comment.UserID,
		QuoteID: comment.QuoteID,
		ActorID: user.ID,
	}, "/quotes/"+slug, content)
	if err != nil {
		s.log.WithError(err).Warn("reply notification failed")
	}

	return s.Get(ctx, r.ID, user.ID)
}

func (s *ReplyService) Get(ctx context.Context, id, viewerID string) (*models.Reply, error) {
	var r models.Reply
	err := s.db.WithContext(ctx).Preload("User", publicUser).First(&r, "id = ?", id).Error
	if isNotFound(err) {
		return nil, apperr.NotFound("Reply not found")
	}
	if err != nil {
		return nil, apperr.FromDB(err, "Error getting reply", s.log)
	}
	items := []models.Reply{r}
	if err := s.decorate(ctx, items, viewerID); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// List returns the replies of one comment, oldest first.
func (s *ReplyService) List(ctx context.Context, quoteSlug, commentID string, p Page, viewerID string) (*List[models.Reply], error) {
	if _, _, err := s.parent(ctx, commentID, quoteSlug); err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Model(&models.Reply{}).Where("comment_id = ?", commentID)
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, apperr.Wrap(err, "Error listing replies", "Failed to list replies", s.log)
	}
	var items []models.Reply
	err := q.Session(&gorm.Session{}).
		Preload("User", publicUser).
		Order("created_at ASC, id ASC").
		Scopes(p.scope).
		Find(&items).Error
	if err != nil {
		return nil, apperr.Wrap(err, "Error listing replies", "Failed to list replies", s.log)
	}
	if err := s.decorate(ctx, items, viewerID); err != nil {
		return nil, err
	}
	list := NewList(items, total, p)
	return &list, nil
}

func (s *ReplyService) decorate(ctx context.Context, items []models.Reply, viewerID string) error {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
		items[i].ContentHTML = utils.RenderMarkdown(items[i].Content)
	}
	liked, err := s.likes.UserLikes(ctx, ReplyLikes, viewerID, ids)
	if err != nil {
		return err
	}
	for i := range items {
		items[i].IsLiked = liked[items[i].ID]
	}
	return nil
}

func (s *ReplyService) load(ctx context.Context, id string) (*models.Reply, error) {
	var r models.Reply
	err := s.db.WithContext(ctx).Select("id", "user_id", "comment_id").First(&r, "id = ?", id).Error
	if isNotFound(err) {
		return nil, apperr.NotFound("Reply not found")
	}
	if err != nil {
		return nil, apperr.FromDB(err, "Error loading reply", s.log)
	}
	return &r, nil
}

func (s *ReplyService) Update(ctx context.Context, user *models.User, id, raw string) (*models.Reply, error) {
	content, err := cleanContent(raw)
	if err != nil {
		return nil, err
	}
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canModify(user, r.UserID) {
		return nil, apperr.Forbidden("You don't have permission to update this reply")
	}

	err = s.db.WithContext(ctx).Model(&models.Reply{}).Where("id = ?", id).Updates(map[string]any{
		"content":   content,
		"is_edited": true,
		"edited_at": time.Now(),
	}).Error
	if err != nil {
		return nil, apperr.FromDB(err, "Error updating reply", s.log)
	}
	return s.Get(ctx, id, user.ID)
}

// Delete removes the reply and decrements the parent's counter, floored at zero.
func (s *ReplyService) Delete(ctx context.Context, user *models.User, id string) error {
	r, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !canModify(user, r.UserID) {
		return apperr.Forbidden("You don't have permission to delete this reply")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Reply{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&models.Comment{}).
			Where("id = ? AND replies_count > 0", r.CommentID).
			UpdateColumn("replies_count", gorm.Expr("replies_count - ?", 1)).Error
	})
	if err != nil {
		return apperr.FromDB(err, "Error deleting reply", s.log)
	}
	return nil
}

func (s *ReplyService) ToggleLike(ctx context.Context, user *models.User, id string) (*LikeResult, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.likes.Toggle(ctx, ReplyLikes, r.ID, user.ID)
	if err != nil {
		return nil, err
	}
	if res.Liked {
		var quoteID string
		if err := s.db.WithContext(ctx).Model(&models.Comment{}).Select("quote_id").Where("id = ?", r.CommentID).Scan(&quoteID).Error; err != nil {
			s.log.WithError(err).WithField("comment_id", r.CommentID).Warn("reply like: quote lookup failed")
		}
		s.comments.notifyLike(ctx, user, r.UserID, quoteID, "reply")
	}
	return res, nil
}
