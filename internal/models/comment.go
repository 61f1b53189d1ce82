package models

import (
	"time"

	"gorm.io/gorm"
)

// CommentCount mirrors the `_count` object clients expect.
type CommentCount struct {
	Replies int `json:"replies"`
}

type Comment struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Content      string     `gorm:"type:text;not null" json:"content"`
	UserID       string     `gorm:"size:36;not null;index" json:"userId"`
	User         *User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user,omitempty"`
	QuoteID      string     `gorm:"size:36;not null;index" json:"quoteId"`
	Quote        *Quote     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Likes        int        `gorm:"not null;default:0" json:"likes"`
	RepliesCount int        `gorm:"not null;default:0" json:"-"`
	IsEdited     bool       `json:"isEdited"`
	EditedAt     *time.Time `json:"editedAt,omitempty"`
	CreatedAt    time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`

	ContentHTML string       `gorm:"-" json:"contentHtml,omitempty"`
	IsLiked     bool         `gorm:"-" json:"isLiked"`
	Count       CommentCount `gorm:"-" json:"_count"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	c.ID = ensureID(c.ID)
	return nil
}

func (c *Comment) AfterFind(tx *gorm.DB) error {
	c.Count.Replies = c.RepliesCount
	return nil
}

// Reply belongs to exactly one comment; replies are not nested further.
type Reply struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	UserID    string     `gorm:"size:36;not null;index" json:"userId"`
	User      *User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user,omitempty"`
	CommentID string     `gorm:"size:36;not null;index" json:"commentId"`
	Comment   *Comment   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Likes     int        `gorm:"not null;default:0" json:"likes"`
	IsEdited  bool       `json:"isEdited"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`

	ContentHTML string `gorm:"-" json:"contentHtml,omitempty"`
	IsLiked     bool   `gorm:"-" json:"isLiked"`
}

func (r *Reply) BeforeCreate(tx *gorm.DB) error {
	r.ID = ensureID(r.ID)
	return nil
}
