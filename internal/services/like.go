package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gulfquotes/internal/apperr"
	"gulfquotes/internal/models"
)

// LikeTarget describes one likeable table and its membership table.
type LikeTarget struct {
	Name        string // quote, comment, reply
	Table       string // table holding the likes counter
	MemberTable string
	ForeignKey  string // column in MemberTable
	newMember   func(userID, targetID string) any
}

var (
	QuoteLikes = LikeTarget{
		Name: "quote", Table: "quotes", MemberTable: "quote_likes", ForeignKey: "quote_id",
		newMember: func(u, t string) any { return &models.QuoteLike{UserID: u, QuoteID: t} },
	}
	CommentLikes = LikeTarget{
		Name: "comment", Table: "comments", MemberTable: "comment_likes", ForeignKey: "comment_id",
		newMember: func(u, t string) any { return &models.CommentLike{UserID: u, CommentID: t} },
	}
	ReplyLikes = LikeTarget{
		Name: "reply", Table: "replies", MemberTable: "reply_likes", ForeignKey: "reply_id",
		newMember: func(u, t string) any { return &models.ReplyLike{UserID: u, ReplyID: t} },
	}
)

type LikeResult struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

type LikeService struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewLikeService(db *gorm.DB, log logrus.FieldLogger) *LikeService {
	return &LikeService{db: db, log: log}
}

// Toggle flips the user's like on targetID. Membership and counter change in
// one transaction; the counter moves with an atomic expression and never
// drops below zero. A concurrent duplicate insert is ignored by the unique index.
func (s *LikeService) Toggle(ctx context.Context, t LikeTarget, targetID, userID string) (*LikeResult, error) {
	var result LikeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, t.Table, targetID); err != nil {
			return err
		}

		del := tx.Table(t.MemberTable).
			Where("user_id = ? AND "+t.ForeignKey+" = ?", userID, targetID).
			Delete(t.newMember("", ""))
		if del.Error != nil {
			return del.Error
		}

		if del.RowsAffected > 0 {
			result.Liked = false
			if err := tx.Table(t.Table).
				Where("id = ? AND likes > 0", targetID).
				UpdateColumn("likes", gorm.Expr("likes - ?", 1)).Error; err != nil {
				return err
			}
		} else {
			result.Liked = true
			ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(t.newMember(userID, targetID))
			if ins.Error != nil {
				return ins.Error
			}
			if ins.RowsAffected > 0 {
				if err := tx.Table(t.Table).
					Where("id = ?", targetID).
					UpdateColumn("likes", gorm.Expr("likes + ?", 1)).Error; err != nil {
					return err
				}
			}
		}

		return tx.Table(t.Table).Select("likes").Where("id = ?", targetID).Scan(&result.Likes).Error
	})
	if err != nil {
		return nil, apperr.FromDB(err, "Error toggling "+t.Name+" like", s.log)
	}
	return &result, nil
}

// Status reports whether userID likes targetID plus the current count.
func (s *LikeService) Status(ctx context.Context, t LikeTarget, targetID, userID string) (*LikeResult, error) {
	db := s.db.WithContext(ctx)
	if err := ensureExists(db, t.Table, targetID); err != nil {
		return nil, apperr.FromDB(err, "Error getting "+t.Name+" like status", s.log)
	}

	liked, err := s.UserLikes(ctx, t, userID, []string{targetID})
	if err != nil {
		return nil, err
	}
	var likes int
	if err := db.Table(t.Table).Select("likes").Where("id = ?", targetID).Scan(&likes).Error; err != nil {
		return nil, apperr.FromDB(err, "Error getting "+t.Name+" like count", s.log)
	}
	return &LikeResult{Liked: liked[targetID], Likes: likes}, nil
}

// UserLikes returns the subset of ids that userID has liked.
func (s *LikeService) UserLikes(ctx context.Context, t LikeTarget, userID string, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	if userID == "" || len(ids) == 0 {
		return out, nil
	}
	var liked []string
	err := s.db.WithContext(ctx).Table(t.MemberTable).
		Where("user_id = ? AND "+t.ForeignKey+" IN ?", userID, ids).
		Pluck(t.ForeignKey, &liked).Error
	if err != nil {
		return nil, apperr.FromDB(err, "Error getting user "+t.Name+" likes", s.log)
	}
	for _, id := range liked {
		out[id] = true
	}
	return out, nil
}

func ensureExists(tx *gorm.DB, table, id string) error {
	var n int64
	if err := tx.Table(table).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
