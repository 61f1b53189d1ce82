package db

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gulfquotes/internal/models"
	"gulfquotes/internal/utils"
)

// Open connects to Postgres. The caller owns the returned handle.
func Open(dsn string, log *logrus.Logger) (*gorm.DB, error) {
	return OpenDialector(postgres.Open(dsn), log)
}

// OpenDialector is Open for any gorm dialector; tests pass sqlite here.
func OpenDialector(d gorm.Dialector, log *logrus.Logger) (*gorm.DB, error) {
	conn, err := gorm.Open(d, &gorm.Config{
		// ErrDuplicatedKey / ErrForeignKeyViolated instead of driver-specific errors
		TranslateError: true,
		Logger: gormlogger.New(log, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLevel(log.GetLevel()),
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established")
	return conn, nil
}

func gormLevel(l logrus.Level) gormlogger.LogLevel {
	switch {
	case l >= logrus.DebugLevel:
		return gormlogger.Info
	case l >= logrus.WarnLevel:
		return gormlogger.Warn
	default:
		return gormlogger.Error
	}
}

// Migrate creates or updates every table.
func Migrate(conn *gorm.DB) error {
	err := conn.AutoMigrate(
		&models.User{},
		&models.AuthorProfile{},
		&models.AuthorFollow{},
		&models.Category{},
		&models.Tag{},
		&models.Gallery{},
		&models.Quote{},
		&models.QuoteImage{},
		&models.Comment{},
		&models.Reply{},
		&models.QuoteLike{},
		&models.CommentLike{},
		&models.ReplyLike{},
		&models.Bookmark{},
		&models.Notification{},
		&models.SearchQuery{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// SeedCategories inserts the default categories on an empty table.
func SeedCategories(conn *gorm.DB, log logrus.FieldLogger) error {
	// 检查是否已有分类数据
	var count int64
	if err := conn.Model(&models.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Debug("Categories already seeded, skipping")
		return nil
	}

	categories := []models.Category{
		{Name: "Inspiration", Description: "Quotes that lift you up"},
		{Name: "Wisdom", Description: "Lessons from those who came before"},
		{Name: "Love", Description: "On love and friendship"},
		{Name: "Life", Description: "Everyday life and its meaning"},
		{Name: "Success", Description: "Work, ambition and perseverance"},
	}
	for i := range categories {
		categories[i].Slug = utils.Slugify(categories[i].Name)
		if err := conn.Create(&categories[i]).Error; err != nil {
			log.WithError(err).Warnf("Failed to create category %s", categories[i].Name)
		}
	}
	log.Info("Initial categories created successfully")
	return nil
}
