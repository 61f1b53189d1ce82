package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"gulfquotes/internal/apperr"
	"gulfquotes/internal/metrics"
	"gulfquotes/internal/models"
	"gulfquotes/internal/utils"
)

type CreateNotificationInput struct {
	Type            models.NotificationType
	Title           string
	Message         string
	UserID          string
	QuoteID         string
	AuthorProfileID string
	ActorID         string
}

type ReadFilter string

const (
	FilterAll    ReadFilter = "all"
	FilterUnread ReadFilter = "unread"
	FilterRead   ReadFilter = "read"
)

// ParseReadFilter maps a query value to a filter; anything unknown means all.
func ParseReadFilter(s string) ReadFilter {
	switch ReadFilter(s) {
	case FilterUnread, FilterRead:
		return ReadFilter(s)
	}
	return FilterAll
}

type NotificationList struct {
	List[models.Notification]
	UnreadCount int64 `json:"unreadCount"`
}

type NotificationService struct {
	db      *gorm.DB
	log     logrus.FieldLogger
	queue   EmailQueue
	metrics *metrics.Metrics
	siteURL string
}

func NewNotificationService(db *gorm.DB, log logrus.FieldLogger, queue EmailQueue, m *metrics.Metrics, siteURL string) *NotificationService {
	return &NotificationService{db: db, log: log, queue: queue, metrics: m, siteURL: siteURL}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *NotificationService) Create(ctx context.Context, in CreateNotificationInput) (*models.Notification, error) {
	n := &models.Notification{
		Type:            in.Type,
		Title:           in.Title,
		Message:         in.Message,
		UserID:          in.UserID,
		QuoteID:         optional(in.QuoteID),
		AuthorProfileID: optional(in.AuthorProfileID),
		ActorID:         optional(in.ActorID),
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, apperr.Wrap(err, "Error creating notification", "Failed to create notification", s.log)
	}
	s.countCreated(in.Type, 1)
	return n, nil
}

// NotifyActivity records a COMMENT/REPLY/LIKE style notification and, when the
// recipient opted in, queues an email. Acting on your own content notifies nobody.
func (s *NotificationService) NotifyActivity(ctx context.Context, in CreateNotificationInput, link, excerpt string) error {
	if in.UserID == "" || in.UserID == in.ActorID {
		return nil
	}
	if _, err := s.Create(ctx, in); err != nil {
		return err
	}

	var recipient models.User
	err := s.db.WithContext(ctx).
		Select("id", "name", "email", "email_notifications", "email_notification_types").
		First(&recipient, "id = ?", in.UserID).Error
	if err != nil {
		s.log.WithError(err).Warn("load notification recipient")
		return nil
	}
	if !recipient.WantsEmail(in.Type) {
		return nil
	}
	s.enqueue(ctx, EmailJob{
		To:       recipient.Email,
		Name:     recipient.Name,
		Subject:  in.Title,
		Template: "activity",
		Data: map[string]string{
			"UserName":    recipient.Name,
			"Message":     in.Message,
			"Excerpt":     utils.Truncate(excerpt, 200),
			"Link":        s.siteURL + link,
			"SettingsURL": s.siteURL + "/settings",
		},
		Tags: map[string]string{"type": string(in.Type)},
	})
	return nil
}

// FanOutNewQuote writes one NEW_QUOTE notification per follower of the author
// profile and returns once they are stored. Emails are handed to the queue and
// their outcome is never reported back to the caller.
func (s *NotificationService) FanOutNewQuote(ctx context.Context, authorProfileID, quoteID, actorID, authorName string) error {
	var follows []models.AuthorFollow
	err := s.db.WithContext(ctx).
		Preload("User", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "email", "email_notifications", "email_notification_types")
		}).
		Where("author_profile_id = ?", authorProfileID).
		Find(&follows).Error
	if err != nil {
		return apperr.Wrap(err, "Error creating follower notifications", "Failed to create follower notifications", s.log)
	}
	if len(follows) == 0 {
		return nil
	}

	rows := make([]models.Notification, 0, len(follows))
	for _, f := range follows {
		rows = append(rows, models.Notification{
			Type:            models.NotificationTypeNewQuote,
			Title:           "New Quote Posted",
			Message:         fmt.Sprintf("%s has posted a new quote", authorName),
			UserID:          f.UserID,
			QuoteID:         optional(quoteID),
			AuthorProfileID: optional(authorProfileID),
			ActorID:         optional(actorID),
		})
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&rows, 100).Error; err != nil {
		return apperr.Wrap(err, "Error creating follower notifications", "Failed to create follower notifications", s.log)
	}
	s.countCreated(models.NotificationTypeNewQuote, len(rows))

	s.queueNewQuoteEmails(ctx, follows, quoteID, authorProfileID, authorName)
	return nil
}

func (s *NotificationService) queueNewQuoteEmails(ctx context.Context, follows []models.AuthorFollow, quoteID, authorProfileID, authorName string) {
	var target struct {
		QuoteSlug  string
		AuthorSlug string
		Content    string
	}
	err := s.db.WithContext(ctx).
		Table("quotes").
		Select("quotes.slug AS quote_slug, author_profiles.slug AS author_slug, quotes.content AS content").
		Joins("JOIN author_profiles ON author_profiles.id = quotes.author_profile_id").
		Where("quotes.id = ? AND author_profiles.id = ?", quoteID, authorProfileID).
		Take(&target).Error
	if err != nil {
		s.log.WithError(err).Warn("skip new quote emails: quote lookup failed")
		return
	}

	// 邮件服务的 tag 只接受字母数字和 -_
	tag := utils.SanitizeTag(authorName)
	sent, skipped := 0, 0
	for _, f := range follows {
		if f.User == nil || !f.User.WantsEmail(models.NotificationTypeNewQuote) {
			skipped++
			continue
		}
		s.enqueue(ctx, EmailJob{
			To:       f.User.Email,
			Name:     f.User.Name,
			Subject:  fmt.Sprintf("New quote from %s", authorName),
			Template: "new_quote",
			Data: map[string]string{
				"UserName":     f.User.Name,
				"AuthorName":   authorName,
				"QuoteContent": utils.Truncate(target.Content, 300),
				"QuoteURL":     s.siteURL + "/quotes/" + target.QuoteSlug,
				"AuthorURL":    s.siteURL + "/authors/" + target.AuthorSlug,
				"SettingsURL":  s.siteURL + "/settings",
			},
			Tags: map[string]string{"type": "new_quote", "author": tag},
		})
		sent++
	}
	if s.metrics != nil {
		s.metrics.EmailsSkipped.Add(float64(skipped))
	}
	s.log.WithFields(logrus.Fields{"queued": sent, "skipped": skipped}).Info("new quote emails handed off")
}

func (s *NotificationService) enqueue(ctx context.Context, job EmailJob) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.log.WithError(err).WithField("to", job.To).Warn("failed to queue email")
	}
}

func (s *NotificationService) countCreated(t models.NotificationType, n int) {
	if s.metrics != nil {
		s.metrics.NotificationsCreated.WithLabelValues(string(t)).Add(float64(n))
	}
}

// List returns the user's notifications newest first.
func (s *NotificationService) List(ctx context.Context, userID string, p Page, filter ReadFilter) (*NotificationList, error) {
	q := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	switch filter {
	case FilterUnread:
		q = q.Where("read = ?", false)
	case FilterRead:
		q = q.Where("read = ?", true)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, apperr.Wrap(err, "Error getting user notifications", "Failed to get user notifications", s.log)
	}

	var items []models.Notification
	err := q.Session(&gorm.Session{}).
		Preload("Actor", publicUser).
		Preload("Quote", func(db *gorm.DB) *gorm.DB { return db.Select("id", "slug", "content") }).
		Preload("AuthorProfile", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name", "slug") }).
		Order("created_at DESC").
		Scopes(p.scope).
		Find(&items).Error
	if err != nil {
		return nil, apperr.Wrap(err, "Error getting user notifications", "Failed to get user notifications", s.log)
	}

	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &NotificationList{List: NewList(items, total, p), UnreadCount: unread}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, apperr.Wrap(err, "Error getting unread notification count", "Failed to get unread notification count", s.log)
	}
	return count, nil
}

// owned loads a notification and checks it belongs to userID.
func (s *NotificationService) owned(ctx context.Context, id, userID, action string) (*models.Notification, error) {
	var n models.Notification
	err := s.db.WithContext(ctx).First(&n, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Notification not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err, "Error loading notification", "Failed to "+action+" notification", s.log)
	}
	if n.UserID != userID {
		return nil, apperr.Forbidden("You don't have permission to " + action + " this notification")
	}
	return &n, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID string) (*models.Notification, error) {
	n, err := s.owned(ctx, id, userID, "update")
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(n).
		Where("user_id = ?", userID).
		UpdateColumn("read", true).Error
	if err != nil {
		return nil, apperr.Wrap(err, "Error marking notification as read", "Failed to mark notification as read", s.log)
	}
	n.Read = true
	return n, nil
}

// MarkAllAsRead flips every unread notification of the user and returns how many changed.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		UpdateColumn("read", true)
	if res.Error != nil {
		return 0, apperr.Wrap(res.Error, "Error marking all notifications as read", "Failed to mark all notifications as read", s.log)
	}
	return res.RowsAffected, nil
}

func (s *NotificationService) Delete(ctx context.Context, id, userID string) error {
	n, err := s.owned(ctx, id, userID, "delete")
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", n.ID, userID).Delete(&models.Notification{})
	if res.Error != nil {
		return apperr.Wrap(res.Error, "Error deleting notification", "Failed to delete notification", s.log)
	}
	return nil
}
