package models

import (
	"time"

	"gorm.io/gorm"
)

type Category struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"not null;unique" json:"name"`
	Slug        string    `gorm:"not null;uniqueIndex" json:"slug"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	QuoteCount int64 `gorm:"->;-:migration" json:"quoteCount"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	c.ID = ensureID(c.ID)
	return nil
}

type Tag struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"not null;unique" json:"name"`
	Slug        string    `gorm:"not null;uniqueIndex" json:"slug"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Quotes     []Quote `gorm:"many2many:quote_tags;" json:"-"`
	QuoteCount int64   `gorm:"->;-:migration" json:"quoteCount"`
}

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	t.ID = ensureID(t.ID)
	return nil
}
