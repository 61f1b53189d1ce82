package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gulfquotes/internal/apperr"
	"gulfquotes/internal/cache"
	"gulfquotes/internal/logger"
	"gulfquotes/internal/models"
)

func TestPaginationIdentity(t *testing.T) {
	cases := []struct {
		total, page, limit int
	}{
		{0, 1, 10}, {5, 1, 10}, {10, 1, 10}, {11, 1, 10}, {11, 2, 10}, {23, 3, 7}, {23, 4, 7},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d/%d/%d", tc.total, tc.page, tc.limit), func(t *testing.T) {
			p := NewPage(tc.page, tc.limit, DefaultPageSize, MaxPageSize)
			n := tc.total - p.Skip()
			if n < 0 {
				n = 0
			}
			if n > p.Limit {
				n = p.Limit
			}
			list := NewList(make([]int, n), int64(tc.total), p)
			assert.Equal(t, int64(tc.total) > int64(p.Skip()+n), list.HasMore)
			assert.Equal(t, tc.total > tc.page*tc.limit, list.HasMore)
		})
	}
}

func TestNewPageClamps(t *testing.T) {
	assert.Equal(t, Page{Page: 1, Limit: 10}, NewPage(0, 0, 10, 50))
	assert.Equal(t, Page{Page: 3, Limit: 50}, NewPage(3, 500, 10, 50))
	assert.Equal(t, Page{Page: 1, Limit: 20}, NewPage(-4, -1, 20, 50))
	assert.Equal(t, 40, NewPage(3, 20, 10, 50).Skip())
	assert.NotNil(t, NewList[string](nil, 0, NewPage(1, 1, 1, 1)).Items)
}

func TestBookmarkToggle(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	owner := e.user(t, "owner", models.RoleAuthor)
	reader := e.user(t, "reader", models.RoleUser)
	q := e.quote(t, owner, "keep-me")

	res, err := e.bookmarks.Toggle(ctx, reader.ID, q.Slug)
	require.NoError(t, err)
	assert.Equal(t, BookmarkResult{Bookmarked: true, Bookmarks: 1}, *res)

	list, err := e.bookmarks.List(ctx, reader.ID, NewPage(1, 10, 10, 50))
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, q.ID, list.Items[0].ID)
	assert.True(t, list.Items[0].IsBookmarked)

	res, err = e.bookmarks.Toggle(ctx, reader.ID, q.Slug)
	require.NoError(t, err)
	assert.Equal(t, BookmarkResult{Bookmarked: false, Bookmarks: 0}, *res)

	_, err = e.bookmarks.Toggle(ctx, reader.ID, "missing")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestAuthorsListAndFollow(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	reader := e.user(t, "reader", models.RoleUser)
	owner := e.user(t, "owner", models.RoleAuthor)
	rumi := e.authorProfile(t, "Rumi", "rumi")
	e.authorProfile(t, "Hafez", "hafez")
	e.authorProfile(t, "Rabindranath Tagore", "tagore")
	e.quote(t, owner, "one") // attached to the first profile, rumi

	list, err := e.authors.List(ctx, AuthorListParams{Page: NewPage(1, 10, 10, 50), Letter: "r"})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "Rabindranath Tagore", list.Items[0].Name)
	assert.Equal(t, "Rumi", list.Items[1].Name)
	assert.EqualValues(t, 1, list.Items[1].QuoteCount)

	list, err = e.authors.List(ctx, AuthorListParams{Page: NewPage(1, 10, 10, 50), Search: "haf"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.Total)

	res, err := e.authors.ToggleFollow(ctx, reader.ID, "rumi")
	require.NoError(t, err)
	assert.Equal(t, FollowResult{Following: true, FollowersCount: 1}, *res)

	got, err := e.authors.GetBySlug(ctx, "rumi", reader.ID)
	require.NoError(t, err)
	assert.Equal(t, rumi.ID, got.ID)
	assert.True(t, got.IsFollowing)
	assert.EqualValues(t, 1, got.FollowersCount)

	res, err = e.authors.ToggleFollow(ctx, reader.ID, "rumi")
	require.NoError(t, err)
	assert.False(t, res.Following)
	assert.Zero(t, res.FollowersCount)

	_, err = e.authors.GetBySlug(ctx, "nobody", "")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestTagsSorting(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	owner := e.user(t, "owner", models.RoleAuthor)
	hope, wisdom := e.tag(t, "hope"), e.tag(t, "wisdom")
	e.tag(t, "anger")
	for _, slug := range []string{"a", "b"} {
		q := e.quote(t, owner, slug)
		require.NoError(t, e.db.Model(q).Association("Tags").Append(wisdom))
	}
	q := e.quote(t, owner, "c")
	require.NoError(t, e.db.Model(q).Association("Tags").Append(hope))

	popular, err := e.tags.Popular(ctx, 2)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, "wisdom", popular[0].Name)
	assert.EqualValues(t, 2, popular[0].QuoteCount)
	assert.Equal(t, "hope", popular[1].Name)

	byName, err := e.tags.List(ctx, TagListParams{Page: NewPage(1, 10, 10, 50), SortBy: "name"})
	require.NoError(t, err)
	require.Len(t, byName.Items, 3)
	assert.Equal(t, "anger", byName.Items[0].Name)

	desc, err := e.tags.List(ctx, TagListParams{Page: NewPage(1, 10, 10, 50), SortBy: "name", Order: "desc"})
	require.NoError(t, err)
	assert.Equal(t, "wisdom", desc.Items[0].Name)

	got, err := e.tags.GetBySlug(ctx, "hope")
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.QuoteCount)
	_, err = e.tags.GetBySlug(ctx, "nope")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestCategoriesList(t *testing.T) {
	e := newEnv(t, nil)
	owner := e.user(t, "owner", models.RoleAuthor)
	e.category(t, "Wisdom")
	e.quote(t, owner, "x")
	e.category(t, "Love")

	cats, err := e.categories.List(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Love", cats[0].Name)
	assert.Zero(t, cats[0].QuoteCount)
	assert.EqualValues(t, 1, cats[1].QuoteCount)
}

func TestGalleryList(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	items := []CreateGalleryInput{
		{URL: "https://img.test/1.png", PublicID: "p1", Format: "PNG", Title: "Sunrise", IsGlobal: true},
		{URL: "https://img.test/2.jpg", PublicID: "p2", Format: "jpg", Title: "Mountains", AltText: "sunrise peaks"},
		{URL: "https://img.test/3.webp", PublicID: "p3", Format: "webp", Title: "Sea"},
	}
	for _, in := range items {
		_, err := e.gallery.Create(ctx, in)
		require.NoError(t, err)
	}

	_, err := e.gallery.Create(ctx, CreateGalleryInput{URL: "https://img.test/4.bmp", PublicID: "p4", Format: "bmp"})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
	_, err = e.gallery.Create(ctx, CreateGalleryInput{URL: "https://img.test/5.png", PublicID: "p1", Format: "png"})
	assert.True(t, apperr.Is(err, apperr.CodeDuplicateSlug))

	page := NewPage(1, 0, DefaultGalleryPageSize, MaxPageSize)
	assert.Equal(t, DefaultGalleryPageSize, page.Limit)

	found, err := e.gallery.List(ctx, GalleryListParams{Page: page, Search: "sunrise", SortField: "title", Direction: "asc"})
	require.NoError(t, err)
	require.Len(t, found.Items, 2)
	assert.Equal(t, "Mountains", found.Items[0].Title)

	global := true
	found, err = e.gallery.List(ctx, GalleryListParams{Page: page, IsGlobal: &global})
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "png", found.Items[0].Format)

	found, err = e.gallery.List(ctx, GalleryListParams{Page: page, Formats: []string{"webp", "jpg", "exe"}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, found.Total)
}

func TestSearchSuggestions(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	lru, err := cache.NewLRU(10)
	require.NoError(t, err)
	search := NewSearchService(e.db, logger.Discard(), lru)

	record := func(q string, n int) {
		for i := 0; i < n; i++ {
			require.NoError(t, search.Record(ctx, q))
		}
	}
	record("love", 4)
	record("Love   poems", 2)
	record("self love", 2)
	record("courage", 1)
	require.NoError(t, search.Record(ctx, "   "))

	got, err := search.Suggestions(ctx, "LOVE", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, Suggestion{Query: "love", Score: 1}, got[0])
	assert.Equal(t, Suggestion{Query: "self love", Score: 0.5}, got[1]) // shorter wins the tie
	assert.Equal(t, "love poems", got[2].Query)

	got, err = search.Suggestions(ctx, "love", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = search.Suggestions(ctx, "%", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	popular, err := search.Popular(ctx, 2)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, Suggestion{Query: "love", Score: 1}, popular[0])
	assert.Equal(t, 0.5, popular[1].Score)

	// cached for a minute: new searches do not show up yet
	record("courage", 10)
	cached, err := search.Popular(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, popular, cached)

	assert.Equal(t, 5, SuggestionLimit(0))
	assert.Equal(t, 10, SuggestionLimit(99))
	assert.Equal(t, 1, SuggestionLimit(-3))
}

func TestUserRegisterAndSettings(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	u, err := e.users.Register(ctx, RegisterInput{Name: "Amal", Email: " Amal@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "amal@example.com", u.Email)
	assert.True(t, u.WantsEmail(models.NotificationTypeNewQuote))

	_, err = e.users.Register(ctx, RegisterInput{Name: "Again", Email: "amal@example.com", Password: "secret1"})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = e.users.Authenticate(ctx, "amal@example.com", "wrong")
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
	_, err = e.users.Authenticate(ctx, "nobody@example.com", "secret1")
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
	got, err := e.users.Authenticate(ctx, "AMAL@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	off := false
	settings, err := e.users.UpdateSettings(ctx, u.ID, UpdateSettingsInput{
		EmailNotifications:     &off,
		EmailNotificationTypes: &[]models.NotificationType{"LIKE", "LIKE"},
	})
	require.NoError(t, err)
	assert.False(t, settings.EmailNotifications)
	assert.Equal(t, []models.NotificationType{models.NotificationTypeLike}, settings.EmailNotificationTypes)

	settings, err = e.users.Settings(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, settings.EmailNotifications)
	assert.Len(t, settings.EmailNotificationTypes, 1)

	_, err = e.users.UpdateSettings(ctx, u.ID, UpdateSettingsInput{EmailNotificationTypes: &[]models.NotificationType{"SPAM"}})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}
