package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"gulfquotes/internal/apperr"
	"gulfquotes/internal/models"
)

var errBadCredentials = apperr.New(apperr.CodeUnauthorized, http.StatusUnauthorized, "Invalid email or password")

type RegisterInput struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// Settings is the email preference block a user can read and change.
type Settings struct {
	EmailNotifications     bool                      `json:"emailNotifications"`
	EmailNotificationTypes []models.NotificationType `json:"emailNotificationTypes"`
}

type UpdateSettingsInput struct {
	EmailNotifications     *bool                      `json:"emailNotifications"`
	EmailNotificationTypes *[]models.NotificationType `json:"emailNotificationTypes"`
}

// 新用户默认接收的邮件类型
var defaultEmailTypes = []models.NotificationType{
	models.NotificationTypeNewQuote,
	models.NotificationTypeComment,
	models.NotificationTypeReply,
}

type UserService struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewUserService(db *gorm.DB, log logrus.FieldLogger) *UserService {
	return &UserService{db: db, log: log}
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, apperr.Wrap(err, "Error hashing password", "Failed to register", s.log)
	}
	u := &models.User{
		Name:                   strings.TrimSpace(in.Name),
		Email:                  strings.ToLower(strings.TrimSpace(in.Email)),
		Password:               hash,
		Role:                   models.RoleUser,
		EmailNotifications:     true,
		EmailNotificationTypes: defaultEmailTypes,
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Validation("Invalid input data", map[string]string{"email": "Email is already registered"})
		}
		return nil, apperr.FromDB(err, "Error registering user", s.log)
	}
	return u, nil
}

// Authenticate checks email and password. Unknown email and wrong password
// produce the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if isNotFound(err) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, apperr.FromDB(err, "Error loading user", s.log)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, errBadCredentials
	}
	return &u, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if isNotFound(err) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.FromDB(err, "Error loading user", s.log)
	}
	return &u, nil
}

func settingsOf(u *models.User) *Settings {
	types := u.EmailNotificationTypes
	if types == nil {
		types = []models.NotificationType{}
	}
	return &Settings{EmailNotifications: u.EmailNotifications, EmailNotificationTypes: types}
}

func (s *UserService) Settings(ctx context.Context, userID string) (*Settings, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return settingsOf(u), nil
}

func (s *UserService) UpdateSettings(ctx context.Context, userID string, in UpdateSettingsInput) (*Settings, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.EmailNotifications != nil {
		u.EmailNotifications = *in.EmailNotifications
	}
	if in.EmailNotificationTypes != nil {
		types := make([]models.NotificationType, 0, len(*in.EmailNotificationTypes))
		seen := map[models.NotificationType]bool{}
		for _, t := range *in.EmailNotificationTypes {
			if !t.Valid() {
				return nil, apperr.Validation("Invalid input data", map[string]string{
					"emailNotificationTypes": "Unknown notification type " + string(t),
				})
			}
			if !seen[t] {
				seen[t] = true
				types = append(types, t)
			}
		}
		u.EmailNotificationTypes = types
	}
	err = s.db.WithContext(ctx).Model(u).Select("email_notifications", "email_notification_types").Updates(u).Error
	if err != nil {
		return nil, apperr.FromDB(err, "Error updating settings", s.log)
	}
	return settingsOf(u), nil
}
