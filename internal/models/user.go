package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleUser   Role = "USER"
	RoleAuthor Role = "AUTHOR"
	RoleAdmin  Role = "ADMIN"
)

type User struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	Name     string `gorm:"size:100" json:"name"`
	Email    string `gorm:"uniqueIndex;not null" json:"email,omitempty"`
	Password string `gorm:"not null" json:"-"` // bcrypt hash
	Image    string `json:"image,omitempty"`
	Role     Role   `gorm:"size:20;default:'USER';not null" json:"role,omitempty"`

	// 邮件通知偏好
	EmailNotifications     bool               `json:"emailNotifications,omitempty"`
	EmailNotificationTypes []NotificationType `gorm:"serializer:json" json:"emailNotificationTypes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.ID = ensureID(u.ID)
	return nil
}

// CanModerate reports whether the user may edit or delete content owned by others.
func (u *User) CanModerate() bool {
	return u.Role == RoleAuthor || u.Role == RoleAdmin
}

// CanPublish reports whether the user may create quotes.
func (u *User) CanPublish() bool {
	return u.Role == RoleAuthor || u.Role == RoleAdmin
}

// WantsEmail reports whether an email of type t may be sent to the user.
func (u *User) WantsEmail(t NotificationType) bool {
	if !u.EmailNotifications || u.Email == "" {
		return false
	}
	for _, allowed := range u.EmailNotificationTypes {
		if allowed == t {
			return true
		}
	}
	return false
}
