package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gulfquotes/internal/apperr"
	"gulfquotes/internal/cache"
	"gulfquotes/internal/models"
	"gulfquotes/internal/utils"
)

const (
	DefaultSuggestionLimit = 5
	MaxSuggestionLimit     = 10
	popularCacheTTL        = time.Minute
	maxQueryLength         = 200
)

type Suggestion struct {
	Query string  `json:"query"`
	Score float64 `json:"score"`
}

type SearchService struct {
	db    *gorm.DB
	log   logrus.FieldLogger
	cache cache.Cache
	now   func() time.Time
}

func NewSearchService(db *gorm.DB, log logrus.FieldLogger, c cache.Cache) *SearchService {
	return &SearchService{db: db, log: log, cache: c, now: time.Now}
}

// SuggestionLimit clamps limit to 1..10, zero meaning the default of 5.
func SuggestionLimit(limit int) int {
	if limit == 0 {
		return DefaultSuggestionLimit
	}
	return utils.Clamp(limit, 1, MaxSuggestionLimit)
}

func normalizeQuery(q string) string {
	q = strings.ToLower(strings.Join(strings.Fields(q), " "))
	return utils.Truncate(q, maxQueryLength)
}

// Record counts one submission of query.
func (s *SearchService) Record(ctx context.Context, query string) error {
	q := normalizeQuery(query)
	if q == "" {
		return nil
	}
	now := s.now()
	row := models.SearchQuery{Query: q, Count: 1, LastSearchedAt: now}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "query"}},
		DoUpdates: clause.Assignments(map[string]any{
			"count":            gorm.Expr("search_queries.count + ?", 1),
			"last_searched_at": now,
		}),
	}).Create(&row).Error
	if err != nil {
		return apperr.FromDB(err, "Error recording search", s.log)
	}
	return nil
}

// Suggestions returns recorded queries containing q, most searched first and
// shorter first on ties. Score is count relative to the best match.
func (s *SearchService) Suggestions(ctx context.Context, q string, limit int) ([]Suggestion, error) {
	q = normalizeQuery(q)
	out := []Suggestion{}
	if q == "" {
		return out, nil
	}
	var rows []models.SearchQuery
	err := s.db.WithContext(ctx).
		Where(`query LIKE ? ESCAPE '\'`, utils.ContainsPattern(q)).
		Order("count DESC, LENGTH(query) ASC, query ASC").
		Limit(SuggestionLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, apperr.FromDB(err, "Error getting search suggestions", s.log)
	}
	if len(rows) == 0 {
		return out, nil
	}
	top := rows[0].Count
	for _, r := range rows {
		score := 0.0
		if top > 0 {
			score = float64(r.Count) / float64(top)
		}
		out = append(out, Suggestion{Query: r.Query, Score: score})
	}
	return out, nil
}

// Popular returns the most searched queries, scored by rank. Results are
// cached for a minute.
func (s *SearchService) Popular(ctx context.Context, limit int) ([]Suggestion, error) {
	limit = SuggestionLimit(limit)
	key := "search:popular:" + strconv.Itoa(limit)

	var out []Suggestion
	if s.cache != nil {
		if ok, err := s.cache.Get(ctx, key, &out); err != nil {
			s.log.WithError(err).Warn("popular searches cache read failed")
		} else if ok {
			return out, nil
		}
	}

	var rows []models.SearchQuery
	err := s.db.WithContext(ctx).
		Order("count DESC, last_searched_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, apperr.FromDB(err, "Error getting popular searches", s.log)
	}
	out = make([]Suggestion, 0, len(rows))
	for i, r := range rows {
		out = append(out, Suggestion{Query: r.Query, Score: 1 - float64(i)/float64(len(rows))})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, out, popularCacheTTL); err != nil {
			s.log.WithError(err).Warn("popular searches cache write failed")
		}
	}
	return out, nil
}
