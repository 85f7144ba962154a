// Package repotest opens a migrated sqlite database for repository and service tests.
package repotest

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/db"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
)

// Open returns a file-backed sqlite database with every model migrated. The
// pool is pinned to one connection so concurrent tests serialize the way a
// postgres row lock would.
func Open(tb testing.TB) *db.Client {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "test.db")
	conn, err := gorm.Open(sqlite.Open("file:"+path+"?_foreign_keys=on&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		tb.Fatalf("automigrate: %v", err)
	}
	return db.FromConn(conn)
}
