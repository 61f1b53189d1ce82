package models

import (
	"time"

	"gorm.io/gorm"
)

// AuthorProfile is the public page of a quoted author. It is not a login account.
type AuthorProfile struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Name       string    `gorm:"not null;index" json:"name"`
	Slug       string    `gorm:"not null;uniqueIndex" json:"slug"`
	Bio        string    `gorm:"type:text" json:"bio,omitempty"`
	Born       string    `json:"born,omitempty"`
	Died       string    `json:"died,omitempty"`
	Influences string    `json:"influences,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	QuoteCount     int64 `gorm:"->;-:migration" json:"quoteCount"`
	FollowersCount int64 `gorm:"->;-:migration" json:"followersCount"`
}

func (a *AuthorProfile) BeforeCreate(tx *gorm.DB) error {
	a.ID = ensureID(a.ID)
	return nil
}

// AuthorFollow 用户关注作者
type AuthorFollow struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	UserID          string         `gorm:"size:36;not null;index;uniqueIndex:idx_user_author" json:"userId"`
	User            *User          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user,omitempty"`
	AuthorProfileID string         `gorm:"size:36;not null;index;uniqueIndex:idx_user_author" json:"authorProfileId"`
	AuthorProfile   *AuthorProfile `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"authorProfile,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

func (f *AuthorFollow) BeforeCreate(tx *gorm.DB) error {
	f.ID = ensureID(f.ID)
	return nil
}
