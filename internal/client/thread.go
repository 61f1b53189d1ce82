package client

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const DefaultPageSize = 10

// replies are fetched in pages of this size until the server reports no more
const replyPageSize = 50

var (
	ErrLoginRequired = errors.New("login required")
	ErrEmptyContent  = errors.New("content cannot be empty")
	ErrNotLoaded     = errors.New("item is not in the thread")
	ErrCanceled      = errors.New("canceled by user")
	ErrClosed        = errors.New("thread closed")
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// UI is whatever renders the thread: toasts, a confirm dialog and a login prompt.
type UI interface {
	Notify(level Level, msg string)
	Confirm(msg string) bool
	PromptLogin()
}

type Session interface {
	Authenticated() bool
}

type commentRecord struct {
	comment  Comment
	replyIDs []string
}

// Thread holds the comments of one quote with their replies. Comments are
// indexed by id and keep their reply ids in display order; replies are
// indexed by id with a back reference to their comment.
type Thread struct {
	api     API
	ui      UI
	session Session
	log     logrus.FieldLogger
	slug    string
	limit   int

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	gen      uint64 // bumped by LoadInitial, stale LoadMore results are dropped
	sort     SortOrder
	page     int
	hasMore  bool
	order    []string
	comments map[string]*commentRecord
	replies  map[string]*Reply
	parent   map[string]string
}

func NewThread(api API, ui UI, session Session, log logrus.FieldLogger, slug string, limit int) *Thread {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Thread{
		api:      api,
		ui:       ui,
		session:  session,
		log:      log.WithField("quote", slug),
		slug:     slug,
		limit:    limit,
		ctx:      ctx,
		cancel:   cancel,
		sort:     SortRecent,
		comments: make(map[string]*commentRecord),
		replies:  make(map[string]*Reply),
		parent:   make(map[string]string),
	}
}

// Close cancels in-flight requests. Responses that arrive afterwards are ignored.
func (t *Thread) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.cancel()
}

// call derives a context that ends with either the caller's ctx or the thread.
func (t *Thread) call(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(t.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// failed reports err to the UI unless the thread is already gone.
func (t *Thread) failed(err error, msg string) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrClosed
	}
	t.log.WithError(err).Error(msg)
	t.ui.Notify(LevelError, msg)
	return err
}

func (t *Thread) requireLogin() error {
	if t.session == nil || !t.session.Authenticated() {
		t.ui.PromptLogin()
		return ErrLoginRequired
	}
	return nil
}

// reset replaces the whole thread with the first page. Caller holds mu.
func (t *Thread) reset(items []Comment) {
	t.order = make([]string, 0, len(items))
	t.comments = make(map[string]*commentRecord, len(items))
	t.replies = make(map[string]*Reply)
	t.parent = make(map[string]string)
	t.appendComments(items)
}

// appendComments adds items at the end, skipping ids already shown. Caller holds mu.
func (t *Thread) appendComments(items []Comment) {
	for _, c := range items {
		if _, ok := t.comments[c.ID]; ok {
			continue
		}
		t.comments[c.ID] = &commentRecord{comment: c}
		t.order = append(t.order, c.ID)
	}
}

// LoadInitial fetches page 1 in the given order and replaces local state.
// On failure the current state is kept.
func (t *Thread) LoadInitial(ctx context.Context, sort SortOrder) error {
	if sort != SortPopular {
		sort = SortRecent
	}
	ctx, done := t.call(ctx)
	defer done()

	page, err := t.api.ListComments(ctx, t.slug, 1, t.limit, sort)
	if err != nil {
		return t.failed(err, "Failed to load comments")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	t.gen++
	t.sort = sort
	t.page = 1
	t.hasMore = page.HasMore
	t.reset(page.Items)
	return nil
}

// LoadMore appends the next page after the comments already shown.
func (t *Thread) LoadMore(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if !t.hasMore {
		t.mu.Unlock()
		return nil
	}
	gen, sort, next := t.gen, t.sort, t.page+1
	t.mu.Unlock()

	ctx, done := t.call(ctx)
	defer done()

	page, err := t.api.ListComments(ctx, t.slug, next, t.limit, sort)
	if err != nil {
		return t.failed(err, "Failed to load more comments")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if gen != t.gen {
		return nil
	}
	t.appendComments(page.Items)
	t.page = next
	t.hasMore = page.HasMore
	return nil
}

// AddComment puts a comment the server already created at the top.
func (t *Thread) AddComment(c Comment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if _, ok := t.comments[c.ID]; ok {
		return
	}
	t.comments[c.ID] = &commentRecord{comment: c}
	t.order = append([]string{c.ID}, t.order...)
}

// PostComment creates a comment and shows it on top.
func (t *Thread) PostComment(ctx context.Context, content string) (*Comment, error) {
	if err := t.requireLogin(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		t.ui.Notify(LevelError, "Comment content cannot be empty")
		return nil, ErrEmptyContent
	}
	ctx, done := t.call(ctx)
	defer done()

	c, err := t.api.CreateComment(ctx, t.slug, content)
	if err != nil {
		return nil, t.failed(err, "Failed to post comment")
	}
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	t.AddComment(*c)
	t.ui.Notify(LevelSuccess, "Comment posted successfully")
	return c, nil
}

// DeleteComment asks for confirmation and removes the comment only after the
// server accepted the delete.
func (t *Thread) DeleteComment(ctx context.Context, id string) error {
	if !t.ui.Confirm("Are you sure you want to delete this comment?") {
		return ErrCanceled
	}
	ctx, done := t.call(ctx)
	defer done()

	if err := t.api.DeleteComment(ctx, id); err != nil {
		return t.failed(err, "Failed to delete comment")
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if rec, ok := t.comments[id]; ok {
		for _, rid := range rec.replyIDs {
			delete(t.replies, rid)
			delete(t.parent, rid)
		}
		delete(t.comments, id)
		t.order = removeID(t.order, id)
	}
	t.mu.Unlock()

	t.ui.Notify(LevelSuccess, "Comment deleted successfully")
	return nil
}

// UpdateComment saves new content and merges the server's copy into the
// local comment. Like state and reply count stay local.
func (t *Thread) UpdateComment(ctx context.Context, id, content string) error {
	ctx, done := t.call(ctx)
	defer done()

	c, err := t.api.UpdateComment(ctx, id, content)
	if err != nil {
		return t.failed(err, "Failed to update comment")
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if rec, ok := t.comments[id]; ok {
		local := &rec.comment
		local.Content = c.Content
		local.ContentHTML = c.ContentHTML
		local.IsEdited = c.IsEdited
		local.EditedAt = c.EditedAt
		local.UpdatedAt = c.UpdatedAt
	}
	t.mu.Unlock()

	t.ui.Notify(LevelSuccess, "Comment updated successfully")
	return nil
}

// PostReply appends a new reply to commentID and bumps its reply count.
func (t *Thread) PostReply(ctx context.Context, commentID, content string) (*Reply, error) {
	if err := t.requireLogin(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		t.ui.Notify(LevelError, "Reply content cannot be empty")
		return nil, ErrEmptyContent
	}
	ctx, done := t.call(ctx)
	defer done()

	r, err := t.api.CreateReply(ctx, t.slug, commentID, content)
	if err != nil {
		return nil, t.failed(err, "Failed to post reply")
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	// LoadReplies may have brought it in already, together with the count
	_, seen := t.replies[r.ID]
	if rec, ok := t.comments[commentID]; ok && !seen {
		reply := *r
		t.replies[reply.ID] = &reply
		t.parent[reply.ID] = commentID
		rec.replyIDs = append(rec.replyIDs, reply.ID)
		rec.comment.Count.Replies++
	}
	t.mu.Unlock()

	t.ui.Notify(LevelSuccess, "Reply posted successfully")
	return r, nil
}

// LoadReplies replaces the replies of commentID with the full server list.
func (t *Thread) LoadReplies(ctx context.Context, commentID string) error {
	ctx, done := t.call(ctx)
	defer done()

	var (
		all   []Reply
		total int64
	)
	for page := 1; ; page++ {
		p, err := t.api.ListReplies(ctx, t.slug, commentID, page, replyPageSize)
		if err != nil {
			return t.failed(err, "Failed to load replies")
		}
		all = append(all, p.Items...)
		total = p.Total
		if !p.HasMore || len(p.Items) == 0 {
			break
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	rec, ok := t.comments[commentID]
	if !ok {
		return nil
	}
	for _, rid := range rec.replyIDs {
		delete(t.replies, rid)
		delete(t.parent, rid)
	}
	rec.replyIDs = make([]string, 0, len(all))
	for i := range all {
		reply := all[i]
		if _, dup := t.replies[reply.ID]; dup {
			continue
		}
		t.replies[reply.ID] = &reply
		t.parent[reply.ID] = commentID
		rec.replyIDs = append(rec.replyIDs, reply.ID)
	}
	rec.comment.Count.Replies = int(total)
	return nil
}

// UpdateReply replaces the local reply with the server's copy, keeping the
// local like state.
func (t *Thread) UpdateReply(ctx context.Context, replyID, content string) error {
	ctx, done := t.call(ctx)
	defer done()

	r, err := t.api.UpdateReply(ctx, replyID, content)
	if err != nil {
		return t.failed(err, "Failed to update reply")
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if local, ok := t.replies[replyID]; ok {
		updated := *r
		updated.Likes = local.Likes
		updated.IsLiked = local.IsLiked
		updated.CommentID = t.parent[replyID]
		*local = updated
	}
	t.mu.Unlock()

	t.ui.Notify(LevelSuccess, "Reply updated successfully")
	return nil
}

// DeleteReply removes the reply and lowers its comment's count, never below 0.
func (t *Thread) DeleteReply(ctx context.Context, replyID string) error {
	ctx, done := t.call(ctx)
	defer done()

	if err := t.api.DeleteReply(ctx, replyID); err != nil {
		return t.failed(err, "Failed to delete reply")
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if cid, ok := t.parent[replyID]; ok {
		delete(t.replies, replyID)
		delete(t.parent, replyID)
		if rec, ok := t.comments[cid]; ok {
			rec.replyIDs = removeID(rec.replyIDs, replyID)
			if rec.comment.Count.Replies > 0 {
				rec.comment.Count.Replies--
			}
		}
	}
	t.mu.Unlock()

	t.ui.Notify(LevelSuccess, "Reply deleted successfully")
	return nil
}

// ToggleLike flips the liked flag of a comment or reply locally and moves
// its counter by one. Nothing is sent to the server.
func (t *Thread) ToggleLike(id string) (liked bool, likes int, err error) {
	if err := t.requireLogin(); err != nil {
		return false, 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.comments[id]; ok {
		liked, likes = flip(&rec.comment.IsLiked, &rec.comment.Likes)
		return liked, likes, nil
	}
	if r, ok := t.replies[id]; ok {
		liked, likes = flip(&r.IsLiked, &r.Likes)
		return liked, likes, nil
	}
	return false, 0, ErrNotLoaded
}

func flip(liked *bool, likes *int) (bool, int) {
	*liked = !*liked
	if *liked {
		*likes++
	} else if *likes > 0 {
		*likes--
	}
	return *liked, *likes
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

// CommentView is one comment with its loaded replies.
type CommentView struct {
	Comment
	Replies []Reply `json:"replies"`
}

// State is a copy of the thread; callers may keep or mutate it freely.
type State struct {
	Sort     SortOrder     `json:"sort"`
	Page     int           `json:"page"`
	HasMore  bool          `json:"hasMore"`
	Comments []CommentView `json:"comments"`
}

func (t *Thread) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := State{
		Sort:     t.sort,
		Page:     t.page,
		HasMore:  t.hasMore,
		Comments: make([]CommentView, 0, len(t.order)),
	}
	for _, id := range t.order {
		rec := t.comments[id]
		view := CommentView{Comment: rec.comment, Replies: make([]Reply, 0, len(rec.replyIDs))}
		for _, rid := range rec.replyIDs {
			if r, ok := t.replies[rid]; ok {
				view.Replies = append(view.Replies, *r)
			}
		}
		s.Comments = append(s.Comments, view)
	}
	return s
}
