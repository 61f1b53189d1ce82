package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gulfquotes/internal/apperr"
	"gulfquotes/internal/models"
)

func ptr[T any](v T) *T { return &v }

type quoteFixture struct {
	*env
	author   *models.User
	category *models.Category
	profile  *models.AuthorProfile
}

func newQuoteFixture(t *testing.T) *quoteFixture {
	e := newEnv(t, nil)
	return &quoteFixture{
		env:      e,
		author:   e.user(t, "writer", models.RoleAuthor),
		category: e.category(t, "wisdom"),
		profile:  e.authorProfile(t, "Rumi", "rumi"),
	}
}

func (f *quoteFixture) input(content string) CreateQuoteInput {
	return CreateQuoteInput{Content: content, CategoryID: f.category.ID, AuthorProfileID: f.profile.ID}
}

func TestCreateQuote(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()
	follower := f.user(t, "follower", models.RoleUser)
	f.follow(t, follower, f.profile)
	tag := f.tag(t, "love")

	in := f.input("  What you seek   is seeking you <3 ")
	in.TagIDs = []string{tag.ID}
	q, err := f.quotes.Create(ctx, f.author, in)
	require.NoError(t, err)

	assert.Equal(t, "What you seek is seeking you 3", q.Content)
	assert.Equal(t, "what-you-seek-is-seeking-you-3", q.Slug)
	assert.Equal(t, 1, q.Version)
	require.Len(t, q.Tags, 1)
	assert.Equal(t, "love", q.Tags[0].Slug)
	require.NotNil(t, q.Category)
	assert.Equal(t, "wisdom", q.Category.Name)

	var n int64
	f.db.Model(&models.Notification{}).Where("user_id = ? AND type = ?", follower.ID, models.NotificationTypeNewQuote).Count(&n)
	assert.EqualValues(t, 1, n)
}

func TestCreateQuoteErrors(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	_, err := f.quotes.Create(ctx, f.author, f.input("Know thyself"))
	require.NoError(t, err)

	_, err = f.quotes.Create(ctx, f.author, f.input("Know   thyself"))
	assert.True(t, apperr.Is(err, apperr.CodeDuplicateSlug))

	in := f.input("Another one")
	in.CategoryID = "missing"
	_, err = f.quotes.Create(ctx, f.author, in)
	assert.True(t, apperr.Is(err, apperr.CodeCategoryNotFound))

	in = f.input("Another one")
	in.AuthorProfileID = "missing"
	_, err = f.quotes.Create(ctx, f.author, in)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidReference))

	in = f.input("Another one")
	in.Slug = "Not A Slug"
	_, err = f.quotes.Create(ctx, f.author, in)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = f.quotes.Create(ctx, f.author, f.input(strings.Repeat("a", MaxQuoteLength+1)))
	assert.True(t, apperr.Is(err, apperr.CodeContentTooLong))

	reader := f.user(t, "reader", models.RoleUser)
	_, err = f.quotes.Create(ctx, reader, f.input("Readers cannot publish"))
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))
}

func TestUpdateQuoteOptimisticLock(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()
	q, err := f.quotes.Create(ctx, f.author, f.input("Silence is an answer"))
	require.NoError(t, err)

	updated, err := f.quotes.Update(ctx, f.author, q.Slug, UpdateQuoteInput{
		Content: ptr("Silence is also an answer"),
		Version: q.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "silence-is-also-an-answer", updated.Slug)

	// stale version from the first read
	_, err = f.quotes.Update(ctx, f.author, updated.Slug, UpdateQuoteInput{Featured: ptr(true), Version: q.Version})
	assert.True(t, apperr.Is(err, apperr.CodeConcurrentModification))

	_, err = f.quotes.Update(ctx, f.author, updated.Slug, UpdateQuoteInput{Slug: ptr("Bad Slug!")})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	other := f.user(t, "other-author", models.RoleAuthor)
	_, err = f.quotes.Update(ctx, other, updated.Slug, UpdateQuoteInput{Featured: ptr(true)})
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))

	admin := f.user(t, "admin", models.RoleAdmin)
	got, err := f.quotes.Update(ctx, admin, updated.Slug, UpdateQuoteInput{Featured: ptr(true)})
	require.NoError(t, err)
	assert.True(t, got.Featured)
	assert.Equal(t, 3, got.Version)
}

func TestUpdateQuoteTagsAndDuplicateSlug(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()
	a, err := f.quotes.Create(ctx, f.author, f.input("First light"))
	require.NoError(t, err)
	_, err = f.quotes.Create(ctx, f.author, f.input("Second light"))
	require.NoError(t, err)
	t1, t2 := f.tag(t, "hope"), f.tag(t, "dawn")

	got, err := f.quotes.Update(ctx, f.author, a.Slug, UpdateQuoteInput{TagIDs: &[]string{t1.ID, t2.ID}})
	require.NoError(t, err)
	assert.Len(t, got.Tags, 2)

	got, err = f.quotes.Update(ctx, f.author, a.Slug, UpdateQuoteInput{TagIDs: &[]string{t2.ID}})
	require.NoError(t, err)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "dawn", got.Tags[0].Slug)

	_, err = f.quotes.Update(ctx, f.author, a.Slug, UpdateQuoteInput{Slug: ptr("second-light")})
	assert.True(t, apperr.Is(err, apperr.CodeDuplicateSlug))

	_, err = f.quotes.Update(ctx, f.author, a.Slug, UpdateQuoteInput{CategoryID: ptr("missing")})
	assert.True(t, apperr.Is(err, apperr.CodeCategoryNotFound))
}

func TestUpdateQuoteConcurrentDelete(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()
	q, err := f.quotes.Create(ctx, f.author, f.input("Here today"))
	require.NoError(t, err)

	// another writer removes the row between the read and the versioned update
	var once sync.Once
	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("test:vanish", func(tx *gorm.DB) {
		if tx.Statement.Table != "quotes" {
			return
		}
		once.Do(func() {
			tx.Session(&gorm.Session{NewDB: true}).Exec("DELETE FROM quotes WHERE id = ?", q.ID)
		})
	}))

	_, err = f.quotes.Update(ctx, f.author, q.Slug, UpdateQuoteInput{Featured: ptr(true)})
	assert.True(t, apperr.Is(err, apperr.CodeConcurrentDelete))

	// the delete ran inside the rolled back transaction, so the row is untouched
	var stored models.Quote
	require.NoError(t, f.db.First(&stored, "id = ?", q.ID).Error)
	assert.False(t, stored.Featured)
	assert.Equal(t, q.Version, stored.Version)
}

func TestListQuotes(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()
	tag := f.tag(t, "courage")
	viewer := f.user(t, "viewer", models.RoleUser)

	for _, c := range []string{"Fortune favours the bold", "The brave may not live forever", "Quiet waters run deep"} {
		in := f.input(c)
		if !strings.HasPrefix(c, "Quiet") {
			in.TagIDs = []string{tag.ID}
		}
		_, err := f.quotes.Create(ctx, f.author, in)
		require.NoError(t, err)
	}
	_, err := f.quotes.ToggleLike(ctx, viewer, "quiet-waters-run-deep")
	require.NoError(t, err)
	_, err = f.bookmarks.Toggle(ctx, viewer.ID, "quiet-waters-run-deep")
	require.NoError(t, err)

	page := NewPage(1, 2, DefaultPageSize, MaxPageSize)
	list, err := f.quotes.List(ctx, QuoteListParams{Page: page, ViewerID: viewer.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 3, list.Total)
	assert.Len(t, list.Items, 2)
	assert.True(t, list.HasMore)

	byTag, err := f.quotes.List(ctx, QuoteListParams{Page: NewPage(1, 10, 10, 50), TagSlug: "courage"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, byTag.Total)

	search, err := f.quotes.List(ctx, QuoteListParams{Page: NewPage(1, 10, 10, 50), Search: "WATERS", ViewerID: viewer.ID})
	require.NoError(t, err)
	require.Len(t, search.Items, 1)
	assert.True(t, search.Items[0].IsLiked)
	assert.True(t, search.Items[0].IsBookmarked)
	assert.Equal(t, 1, search.Items[0].Likes)

	// LIKE wildcards in the search box are matched literally
	for _, wild := range []string{"%", "_", "w_ters"} {
		none, err := f.quotes.List(ctx, QuoteListParams{Page: NewPage(1, 10, 10, 50), Search: wild})
		require.NoError(t, err)
		assert.Zero(t, none.Total, wild)
	}

	mine, err := f.quotes.List(ctx, QuoteListParams{Page: NewPage(1, 10, 10, 50), AuthorID: viewer.ID})
	require.NoError(t, err)
	assert.Zero(t, mine.Total)
	assert.NotNil(t, mine.Items)
}

func TestQuoteImagesAndDelete(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()
	g1, err := f.gallery.Create(ctx, CreateGalleryInput{URL: "https://img.test/1.png", PublicID: "bg/1", Format: "png"})
	require.NoError(t, err)
	g2, err := f.gallery.Create(ctx, CreateGalleryInput{URL: "https://img.test/2.jpg", PublicID: "bg/2", Format: "jpg"})
	require.NoError(t, err)

	in := f.input("Light the lamp")
	in.Images = []QuoteImageInput{{GalleryID: g1.ID, IsActive: true, IsBackground: true}}
	in.TagIDs = []string{f.tag(t, "light").ID}
	q, err := f.quotes.Create(ctx, f.author, in)
	require.NoError(t, err)
	require.Len(t, q.Images, 1)

	images, err := f.quotes.AddImages(ctx, f.author, q.Slug, []QuoteImageInput{{GalleryID: g2.ID, IsBackground: true}})
	require.NoError(t, err)
	require.Len(t, images, 2)
	backgrounds := 0
	for _, img := range images {
		if img.IsBackground {
			backgrounds++
			assert.Equal(t, g2.ID, img.GalleryID)
		}
	}
	assert.Equal(t, 1, backgrounds)

	_, err = f.quotes.AddImages(ctx, f.author, q.Slug, []QuoteImageInput{{GalleryID: "missing"}})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidReference))

	images, err = f.quotes.RemoveImage(ctx, f.author, q.Slug, "bg/1")
	require.NoError(t, err)
	assert.Len(t, images, 1)
	_, err = f.quotes.RemoveImage(ctx, f.author, q.Slug, "bg/1")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	var g models.Gallery
	require.NoError(t, f.db.First(&g, "id = ?", g1.ID).Error)
	assert.Zero(t, g.UsageCount)

	reader := f.user(t, "reader", models.RoleUser)
	err = f.quotes.Delete(ctx, reader, q.Slug)
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))

	require.NoError(t, f.quotes.Delete(ctx, f.author, q.Slug))
	_, err = f.quotes.GetBySlug(ctx, q.Slug, "")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	var links int64
	f.db.Table("quote_tags").Count(&links)
	assert.Zero(t, links)
	var kept models.Gallery
	require.NoError(t, f.db.First(&kept, "id = ?", g2.ID).Error)
	assert.Zero(t, kept.UsageCount)
}

func TestRecordDownload(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()
	q, err := f.quotes.Create(ctx, f.author, f.input("Carry it home"))
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		n, err := f.quotes.RecordDownload(ctx, q.Slug)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	_, err = f.quotes.RecordDownload(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}
