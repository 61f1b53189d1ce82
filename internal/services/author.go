package services

import (
	"context"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gulfquotes/internal/apperr"
	"gulfquotes/internal/models"
	"gulfquotes/internal/utils"
)

type AuthorListParams struct {
	Page   Page
	Search string
	Letter string // A-Z, first letter of the name
}

type FollowResult struct {
	Following      bool  `json:"following"`
	FollowersCount int64 `json:"followersCount"`
}

type AuthorProfile struct {
	models.AuthorProfile
	IsFollowing bool `json:"isFollowing"`
}

type AuthorService struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewAuthorService(db *gorm.DB, log logrus.FieldLogger) *AuthorService {
	return &AuthorService{db: db, log: log}
}

// withCounts selects author profiles together with their quote and follower counts.
func withCounts(db *gorm.DB) *gorm.DB {
	return db.Select(`author_profiles.*,
		(SELECT COUNT(*) FROM quotes WHERE quotes.author_profile_id = author_profiles.id) AS quote_count,
		(SELECT COUNT(*) FROM author_follows WHERE author_follows.author_profile_id = author_profiles.id) AS followers_count`)
}

func (s *AuthorService) List(ctx context.Context, p AuthorListParams) (*List[models.AuthorProfile], error) {
	q := s.db.WithContext(ctx).Model(&models.AuthorProfile{})
	if search := strings.TrimSpace(p.Search); search != "" {
		q = q.Where(`LOWER(author_profiles.name) LIKE ? ESCAPE '\'`, utils.ContainsPattern(strings.ToLower(search)))
	}
	if l := []rune(strings.TrimSpace(p.Letter)); len(l) == 1 && unicode.IsLetter(l[0]) {
		q = q.Where("UPPER(author_profiles.name) LIKE ?", string(unicode.ToUpper(l[0]))+"%")
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, apperr.FromDB(err, "Error counting authors", s.log)
	}
	var items []models.AuthorProfile
	err := q.Session(&gorm.Session{}).
		Scopes(withCounts, p.Page.scope).
		Order("author_profiles.name ASC, author_profiles.id ASC").
		Find(&items).Error
	if err != nil {
		return nil, apperr.FromDB(err, "Error listing authors", s.log)
	}
	list := NewList(items, total, p.Page)
	return &list, nil
}

func (s *AuthorService) GetBySlug(ctx context.Context, slug, viewerID string) (*AuthorProfile, error) {
	var a models.AuthorProfile
	err := s.db.WithContext(ctx).Model(&models.AuthorProfile{}).
		Scopes(withCounts).
		Where("author_profiles.slug = ?", slug).
		Take(&a).Error
	if isNotFound(err) {
		return nil, apperr.NotFound("Author not found")
	}
	if err != nil {
		return nil, apperr.FromDB(err, "Error getting author", s.log)
	}
	out := &AuthorProfile{AuthorProfile: a}
	if viewerID != "" {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.AuthorFollow{}).
			Where("user_id = ? AND author_profile_id = ?", viewerID, a.ID).
			Count(&n).Error; err != nil {
			return nil, apperr.FromDB(err, "Error getting follow status", s.log)
		}
		out.IsFollowing = n > 0
	}
	return out, nil
}

// ToggleFollow follows or unfollows the author profile.
func (s *AuthorService) ToggleFollow(ctx context.Context, userID, slug string) (*FollowResult, error) {
	var result FollowResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.AuthorProfile
		if err := tx.Select("id").First(&a, "slug = ?", slug).Error; err != nil {
			return err
		}
		del := tx.Where("user_id = ? AND author_profile_id = ?", userID, a.ID).Delete(&models.AuthorFollow{})
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected == 0 {
			result.Following = true
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.AuthorFollow{UserID: userID, AuthorProfileID: a.ID}).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.AuthorFollow{}).Where("author_profile_id = ?", a.ID).Count(&result.FollowersCount).Error
	})
	if isNotFound(err) {
		return nil, apperr.NotFound("Author not found")
	}
	if err != nil {
		return nil, apperr.FromDB(err, "Error toggling follow", s.log)
	}
	return &result, nil
}
