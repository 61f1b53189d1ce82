package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gulfquotes/internal/apperr"
	"gulfquotes/internal/models"
)

type BookmarkResult struct {
	Bookmarked bool `json:"bookmarked"`
	Bookmarks  int  `json:"bookmarks"`
}

type BookmarkService struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewBookmarkService(db *gorm.DB, log logrus.FieldLogger) *BookmarkService {
	return &BookmarkService{db: db, log: log}
}

// Toggle 收藏/取消收藏，计数与收藏记录在同一事务内变更
func (s *BookmarkService) Toggle(ctx context.Context, userID, quoteSlug string) (*BookmarkResult, error) {
	var result BookmarkResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q models.Quote
		if err := tx.Select("id").First(&q, "slug = ?", quoteSlug).Error; err != nil {
			return err
		}

		del := tx.Where("user_id = ? AND quote_id = ?", userID, q.ID).Delete(&models.Bookmark{})
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected > 0 {
			if err := tx.Model(&models.Quote{}).Where("id = ? AND bookmarks > 0", q.ID).
				UpdateColumn("bookmarks", gorm.Expr("bookmarks - ?", 1)).Error; err != nil {
				return err
			}
		} else {
			result.Bookmarked = true
			ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Bookmark{UserID: userID, QuoteID: q.ID})
			if ins.Error != nil {
				return ins.Error
			}
			if ins.RowsAffected > 0 {
				if err := tx.Model(&models.Quote{}).Where("id = ?", q.ID).
					UpdateColumn("bookmarks", gorm.Expr("bookmarks + ?", 1)).Error; err != nil {
					return err
				}
			}
		}
		return tx.Model(&models.Quote{}).Select("bookmarks").Where("id = ?", q.ID).Scan(&result.Bookmarks).Error
	})
	if isNotFound(err) {
		return nil, apperr.NotFound("Quote not found")
	}
	if err != nil {
		return nil, apperr.FromDB(err, "Error toggling bookmark", s.log)
	}
	return &result, nil
}

// List returns the user's bookmarked quotes, most recently saved first.
func (s *BookmarkService) List(ctx context.Context, userID string, p Page) (*List[models.Quote], error) {
	q := s.db.WithContext(ctx).Model(&models.Bookmark{}).Where("user_id = ?", userID)
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, apperr.FromDB(err, "Error counting bookmarks", s.log)
	}
	var marks []models.Bookmark
	err := q.Session(&gorm.Session{}).
		Preload("Quote").
		Preload("Quote.Category").
		Preload("Quote.AuthorProfile").
		Order("created_at DESC, id DESC").
		Scopes(p.scope).
		Find(&marks).Error
	if err != nil {
		return nil, apperr.FromDB(err, "Error listing bookmarks", s.log)
	}
	items := make([]models.Quote, 0, len(marks))
	for _, m := range marks {
		if m.Quote == nil {
			continue
		}
		quote := *m.Quote
		quote.IsBookmarked = true
		items = append(items, quote)
	}
	list := NewList(items, total, p)
	return &list, nil
}
