package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gulfquotes/internal/apperr"
	"gulfquotes/internal/models"
)

func TestLikeToggleIsSymmetric(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	owner := e.user(t, "owner", models.RoleAuthor)
	fan := e.user(t, "fan", models.RoleUser)
	q := e.quote(t, owner, "be-kind")

	res, err := e.likes.Toggle(ctx, QuoteLikes, q.ID, fan.ID)
	require.NoError(t, err)
	assert.Equal(t, LikeResult{Liked: true, Likes: 1}, *res)

	status, err := e.likes.Status(ctx, QuoteLikes, q.ID, fan.ID)
	require.NoError(t, err)
	assert.True(t, status.Liked)

	res, err = e.likes.Toggle(ctx, QuoteLikes, q.ID, fan.ID)
	require.NoError(t, err)
	assert.Equal(t, LikeResult{Liked: false, Likes: 0}, *res)

	_, err = e.likes.Toggle(ctx, QuoteLikes, "missing", fan.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestLikeCounterNeverNegative(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	owner := e.user(t, "owner", models.RoleAuthor)
	fan := e.user(t, "fan", models.RoleUser)
	q := e.quote(t, owner, "floor")

	// membership exists but the counter drifted to zero
	require.NoError(t, e.db.Create(&models.QuoteLike{UserID: fan.ID, QuoteID: q.ID}).Error)

	res, err := e.likes.Toggle(ctx, QuoteLikes, q.ID, fan.ID)
	require.NoError(t, err)
	assert.False(t, res.Liked)
	assert.Zero(t, res.Likes)
}

func TestCommentCreateAndList(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	owner := e.user(t, "owner", models.RoleAuthor)
	alice := e.user(t, "alice", models.RoleUser)
	bob := e.user(t, "bob", models.RoleUser)
	e.quote(t, owner, "patience")

	first, err := e.comments.Create(ctx, alice, "patience", "  <b>Lovely</b> words  ")
	require.NoError(t, err)
	assert.Equal(t, "Lovely words", first.Content)
	assert.Equal(t, alice.ID, first.User.ID)
	assert.Empty(t, first.User.Email)

	second, err := e.comments.Create(ctx, bob, "patience", "Agreed, see https://example.com")
	require.NoError(t, err)
	assert.Contains(t, second.ContentHTML, `rel="nofollow noopener noreferrer"`)

	_, err = e.comments.ToggleLike(ctx, bob, first.ID)
	require.NoError(t, err)

	popular, err := e.comments.List(ctx, CommentListParams{
		QuoteSlug: "patience",
		Page:      NewPage(1, 10, DefaultPageSize, MaxPageSize),
		SortBy:    "popular",
		ViewerID:  bob.ID,
	})
	require.NoError(t, err)
	require.Len(t, popular.Items, 2)
	assert.Equal(t, first.ID, popular.Items[0].ID)
	assert.True(t, popular.Items[0].IsLiked)
	assert.False(t, popular.Items[1].IsLiked)
	assert.EqualValues(t, 2, popular.Total)

	// quote owner got a COMMENT notification per comment and one LIKE went to alice
	var n int64
	e.db.Model(&models.Notification{}).Where("user_id = ? AND type = ?", owner.ID, models.NotificationTypeComment).Count(&n)
	assert.EqualValues(t, 2, n)
	e.db.Model(&models.Notification{}).Where("user_id = ? AND type = ?", alice.ID, models.NotificationTypeLike).Count(&n)
	assert.EqualValues(t, 1, n)

	_, err = e.comments.List(ctx, CommentListParams{QuoteSlug: "nope", Page: NewPage(1, 10, 10, 50)})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestCommentContentValidation(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	owner := e.user(t, "owner", models.RoleAuthor)
	e.quote(t, owner, "q")

	_, err := e.comments.Create(ctx, owner, "q", "   ")
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = e.comments.Create(ctx, owner, "q", strings.Repeat("a", MaxCommentLength+1))
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = e.comments.Create(ctx, owner, "q", strings.Repeat("a", MaxCommentLength))
	assert.NoError(t, err)
}

func TestDeleteOthersCommentForbidden(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	owner := e.user(t, "owner", models.RoleAuthor)
	alice := e.user(t, "alice", models.RoleUser)
	bob := e.user(t, "bob", models.RoleUser)
	admin := e.user(t, "admin", models.RoleAdmin)
	e.quote(t, owner, "q")

	c, err := e.comments.Create(ctx, alice, "q", "mine")
	require.NoError(t, err)

	err = e.comments.Delete(ctx, bob, c.ID)
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))
	_, err = e.comments.Get(ctx, c.ID, "")
	require.NoError(t, err)

	_, err = e.comments.Update(ctx, bob, c.ID, "hijacked")
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))

	updated, err := e.comments.Update(ctx, alice, c.ID, "edited")
	require.NoError(t, err)
	assert.True(t, updated.IsEdited)
	assert.NotNil(t, updated.EditedAt)

	require.NoError(t, e.comments.Delete(ctx, admin, c.ID))
	_, err = e.comments.Get(ctx, c.ID, "")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestReplyCounterFloor(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	owner := e.user(t, "owner", models.RoleAuthor)
	alice := e.user(t, "alice", models.RoleUser)
	bob := e.user(t, "bob", models.RoleUser)
	e.quote(t, owner, "q")

	c, err := e.comments.Create(ctx, alice, "q", "root")
	require.NoError(t, err)

	r1, err := e.replies.Create(ctx, bob, "q", c.ID, "first")
	require.NoError(t, err)
	_, err = e.replies.Create(ctx, alice, "q", c.ID, "second")
	require.NoError(t, err)

	got, err := e.comments.Get(ctx, c.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Count.Replies)

	list, err := e.replies.List(ctx, "q", c.ID, NewPage(1, 10, 10, 50), "")
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	assert.Equal(t, r1.ID, list.Items[0].ID)

	// counter drifted below the real number of replies
	require.NoError(t, e.db.Model(&models.Comment{}).Where("id = ?", c.ID).UpdateColumn("replies_count", 0).Error)
	require.NoError(t, e.replies.Delete(ctx, bob, r1.ID))

	got, err = e.comments.Get(ctx, c.ID, "")
	require.NoError(t, err)
	assert.Zero(t, got.Count.Replies)

	// only alice notified about bob's reply; her own reply notifies nobody
	var n int64
	e.db.Model(&models.Notification{}).Where("type = ?", models.NotificationTypeReply).Count(&n)
	assert.EqualValues(t, 1, n)
}

func TestReplyRequiresMatchingComment(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	owner := e.user(t, "owner", models.RoleAuthor)
	e.quote(t, owner, "a")
	e.quote(t, owner, "b")
	c, err := e.comments.Create(ctx, owner, "a", "root")
	require.NoError(t, err)

	_, err = e.replies.Create(ctx, owner, "b", c.ID, "wrong quote")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	_, err = e.replies.Create(ctx, owner, "a", "missing", "no parent")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestDeletingCommentRemovesReplies(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	owner := e.user(t, "owner", models.RoleAuthor)
	e.quote(t, owner, "q")
	c, err := e.comments.Create(ctx, owner, "q", "root")
	require.NoError(t, err)
	r, err := e.replies.Create(ctx, owner, "q", c.ID, "child")
	require.NoError(t, err)
	_, err = e.replies.ToggleLike(ctx, owner, r.ID)
	require.NoError(t, err)

	require.NoError(t, e.comments.Delete(ctx, owner, c.ID))

	var n int64
	e.db.Model(&models.Reply{}).Count(&n)
	assert.Zero(t, n)
	e.db.Model(&models.ReplyLike{}).Count(&n)
	assert.Zero(t, n)
}
