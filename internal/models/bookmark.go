package models

import (
	"time"

	"gorm.io/gorm"
)

// Bookmark 收藏模型 - 用户收藏名言
type Bookmark struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;not null;index;uniqueIndex:idx_user_quote" json:"userId"`
	QuoteID   string    `gorm:"size:36;not null;index;uniqueIndex:idx_user_quote" json:"quoteId"`
	Quote     *Quote    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"quote,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (b *Bookmark) BeforeCreate(tx *gorm.DB) error {
	b.ID = ensureID(b.ID)
	return nil
}
