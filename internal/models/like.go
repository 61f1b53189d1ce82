package models

import (
	"time"

	"gorm.io/gorm"
)

// One row per (user, target). The unique index is what makes a toggle idempotent.

type QuoteLike struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;not null;index;uniqueIndex:idx_quote_user_like" json:"userId"`
	QuoteID   string    `gorm:"size:36;not null;index;uniqueIndex:idx_quote_user_like" json:"quoteId"`
	Quote     *Quote    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

func (l *QuoteLike) BeforeCreate(tx *gorm.DB) error {
	l.ID = ensureID(l.ID)
	return nil
}

type CommentLike struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;not null;index;uniqueIndex:idx_comment_user_like" json:"userId"`
	CommentID string    `gorm:"size:36;not null;index;uniqueIndex:idx_comment_user_like" json:"commentId"`
	Comment   *Comment  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

func (l *CommentLike) BeforeCreate(tx *gorm.DB) error {
	l.ID = ensureID(l.ID)
	return nil
}

type ReplyLike struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;not null;index;uniqueIndex:idx_reply_user_like" json:"userId"`
	ReplyID   string    `gorm:"size:36;not null;index;uniqueIndex:idx_reply_user_like" json:"replyId"`
	Reply     *Reply    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

func (l *ReplyLike) BeforeCreate(tx *gorm.DB) error {
	l.ID = ensureID(l.ID)
	return nil
}
