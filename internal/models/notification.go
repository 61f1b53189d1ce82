package models

import (
	"time"

	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationTypeNewQuote NotificationType = "NEW_QUOTE"
	NotificationTypeComment  NotificationType = "COMMENT"
	NotificationTypeReply    NotificationType = "REPLY"
	NotificationTypeLike     NotificationType = "LIKE"
	NotificationTypeFollow   NotificationType = "FOLLOW"
	NotificationTypeSystem   NotificationType = "SYSTEM"
)

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeNewQuote, NotificationTypeComment, NotificationTypeReply,
		NotificationTypeLike, NotificationTypeFollow, NotificationTypeSystem:
		return true
	}
	return false
}

type Notification struct {
	ID              string           `gorm:"primaryKey;size:36" json:"id"`
	Type            NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	Title           string           `json:"title,omitempty"`
	Message         string           `gorm:"type:text;not null" json:"message"`
	UserID          string           `gorm:"size:36;not null;index" json:"userId"` // Receiver
	User            *User            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	QuoteID         *string          `gorm:"size:36;index" json:"quoteId,omitempty"`
	Quote           *Quote           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"quote,omitempty"`
	AuthorProfileID *string          `gorm:"size:36;index" json:"authorProfileId,omitempty"`
	AuthorProfile   *AuthorProfile   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"authorProfile,omitempty"`
	ActorID         *string          `gorm:"size:36;index" json:"actorId,omitempty"` // Sender
	Actor           *User            `gorm:"foreignKey:ActorID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"actor,omitempty"`
	Read            bool             `gorm:"not null;default:false;index" json:"read"`
	CreatedAt       time.Time        `gorm:"index" json:"createdAt"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	n.ID = ensureID(n.ID)
	return nil
}

// SearchQuery counts how often a normalised search string was submitted.
type SearchQuery struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Query          string    `gorm:"size:200;not null;uniqueIndex" json:"query"`
	Count          int64     `gorm:"not null;default:0" json:"count"`
	LastSearchedAt time.Time `gorm:"index" json:"lastSearchedAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (s *SearchQuery) BeforeCreate(tx *gorm.DB) error {
	s.ID = ensureID(s.ID)
	return nil
}
