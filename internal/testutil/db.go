package testutil

import (
	"testing"

	"github.com/bluesky-social/mptt/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB opens a private in-memory sqlite database with the nodes table
// migrated. The pool is pinned to one connection so every statement sees
// the same database.
func TestDB(t testing.TB) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqldb, err := db.DB()
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqldb.Close() })

	require.NoError(t, db.AutoMigrate(&models.Node{}))
	return db
}

// LoadForest inserts the standard two-tree fixture.
func LoadForest(t testing.TB, db *gorm.DB, baseLevel int64) []models.Node {
	rows := Forest(baseLevel)
	require.NoError(t, db.Create(&rows).Error)
	return rows
}
