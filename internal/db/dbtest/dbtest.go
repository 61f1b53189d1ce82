// Package dbtest opens a migrated in-memory SQLite database for tests.
package dbtest

import (
	"fmt"
	"regexp"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"gulfquotes/internal/db"
	"gulfquotes/internal/logger"
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Open returns a fresh database private to t. Foreign keys are enforced.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := unsafeName.ReplaceAllString(t.Name(), "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)

	conn, err := db.OpenDialector(sqlite.Open(dsn), logger.Discard())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// 同一个内存库只能挂在一个连接上
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}
