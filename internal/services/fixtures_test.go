package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gulfquotes/internal/db/dbtest"
	"gulfquotes/internal/logger"
	"gulfquotes/internal/metrics"
	"gulfquotes/internal/models"
)

// env wires every service against one fresh database.
type env struct {
	db            *gorm.DB
	metrics       *metrics.Metrics
	notifications *NotificationService
	likes         *LikeService
	comments      *CommentService
	replies       *ReplyService
	quotes        *QuoteService
	bookmarks     *BookmarkService
	authors       *AuthorService
	tags          *TagService
	categories    *CategoryService
	gallery       *GalleryService
	users         *UserService
}

func newEnv(t *testing.T, queue EmailQueue) *env {
	t.Helper()
	conn := dbtest.Open(t)
	log := logger.Discard()
	m := metrics.New()

	e := &env{db: conn, metrics: m}
	e.notifications = NewNotificationService(conn, log, queue, m, "https://gulfquotes.test")
	e.likes = NewLikeService(conn, log)
	e.comments = NewCommentService(conn, log, e.likes, e.notifications)
	e.replies = NewReplyService(conn, log, e.likes, e.comments, e.notifications)
	e.quotes = NewQuoteService(conn, log, e.likes, e.notifications)
	e.bookmarks = NewBookmarkService(conn, log)
	e.authors = NewAuthorService(conn, log)
	e.tags = NewTagService(conn, log)
	e.categories = NewCategoryService(conn, log)
	e.gallery = NewGalleryService(conn, log)
	e.users = NewUserService(conn, log)
	return e
}

func (e *env) user(t *testing.T, name string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		Name:     name,
		Email:    name + "@example.com",
		Password: "x",
		Role:     role,
	}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

// subscriber is a user who wants every email type.
func (e *env) subscriber(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{
		Name:                   name,
		Email:                  name + "@example.com",
		Password:               "x",
		Role:                   models.RoleUser,
		EmailNotifications:     true,
		EmailNotificationTypes: []models.NotificationType{models.NotificationTypeNewQuote, models.NotificationTypeComment, models.NotificationTypeReply},
	}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *env) category(t *testing.T, name string) *models.Category {
	t.Helper()
	c := &models.Category{Name: name, Slug: "cat-" + name}
	require.NoError(t, e.db.Create(c).Error)
	return c
}

func (e *env) authorProfile(t *testing.T, name, slug string) *models.AuthorProfile {
	t.Helper()
	a := &models.AuthorProfile{Name: name, Slug: slug}
	require.NoError(t, e.db.Create(a).Error)
	return a
}

func (e *env) tag(t *testing.T, name string) *models.Tag {
	t.Helper()
	tag := &models.Tag{Name: name, Slug: name}
	require.NoError(t, e.db.Create(tag).Error)
	return tag
}

// quote inserts a quote directly, skipping the service and its fan-out.
func (e *env) quote(t *testing.T, owner *models.User, slug string) *models.Quote {
	t.Helper()
	var cat models.Category
	if err := e.db.Order("created_at ASC").Take(&cat).Error; err != nil {
		cat = *e.category(t, "general")
	}
	var profile models.AuthorProfile
	if err := e.db.Order("created_at ASC").Take(&profile).Error; err != nil {
		profile = *e.authorProfile(t, "Rumi", "rumi")
	}
	q := &models.Quote{
		Content:         "Quote " + slug,
		Slug:            slug,
		AuthorID:        owner.ID,
		CategoryID:      cat.ID,
		AuthorProfileID: profile.ID,
		Version:         1,
	}
	require.NoError(t, e.db.Create(q).Error)
	return q
}

func (e *env) follow(t *testing.T, u *models.User, a *models.AuthorProfile) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.AuthorFollow{UserID: u.ID, AuthorProfileID: a.ID}).Error)
}

func (e *env) notification(t *testing.T, userID string, read bool) *models.Notification {
	t.Helper()
	n := &models.Notification{
		Type:    models.NotificationTypeSystem,
		Title:   "Hello",
		Message: fmt.Sprintf("for %s", userID),
		UserID:  userID,
		Read:    read,
	}
	require.NoError(t, e.db.Create(n).Error)
	return n
}
