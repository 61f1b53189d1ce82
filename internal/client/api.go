// Package client keeps the comment/reply thread of one quote in memory and
// syncs it with the JSON API.
package client

import (
	"context"
	"fmt"
	"time"
)

// User is the public author of a comment or reply.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

type CommentCount struct {
	Replies int `json:"replies"`
}

type Comment struct {
	ID          string       `json:"id"`
	Content     string       `json:"content"`
	ContentHTML string       `json:"contentHtml,omitempty"`
	UserID      string       `json:"userId"`
	User        User         `json:"user"`
	QuoteID     string       `json:"quoteId"`
	Likes       int          `json:"likes"`
	IsLiked     bool         `json:"isLiked"`
	IsEdited    bool         `json:"isEdited"`
	EditedAt    time.Time    `json:"editedAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Count       CommentCount `json:"_count"`
}

type Reply struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	ContentHTML string    `json:"contentHtml,omitempty"`
	UserID      string    `json:"userId"`
	User        User      `json:"user"`
	CommentID   string    `json:"commentId"`
	Likes       int       `json:"likes"`
	IsLiked     bool      `json:"isLiked"`
	IsEdited    bool      `json:"isEdited"`
	EditedAt    time.Time `json:"editedAt,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Page is one page of a paginated list endpoint.
type Page[T any] struct {
	Items   []T   `json:"items"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"hasMore"`
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
}

type SortOrder string

const (
	SortRecent  SortOrder = "recent"
	SortPopular SortOrder = "popular"
)

// API is the subset of the server the thread talks to.
type API interface {
	ListComments(ctx context.Context, slug string, page, limit int, sort SortOrder) (*Page[Comment], error)
	CreateComment(ctx context.Context, slug, content string) (*Comment, error)
	UpdateComment(ctx context.Context, id, content string) (*Comment, error)
	DeleteComment(ctx context.Context, id string) error

	ListReplies(ctx context.Context, slug, commentID string, page, limit int) (*Page[Reply], error)
	CreateReply(ctx context.Context, slug, commentID, content string) (*Reply, error)
	UpdateReply(ctx context.Context, id, content string) (*Reply, error)
	DeleteReply(ctx context.Context, id string) error
}

// APIError is a decoded error envelope.
type APIError struct {
	Status  int               `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}
