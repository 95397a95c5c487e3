// Package testutil provides in-memory databases and fixtures for tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"booknest/internal/db"
	"booknest/internal/model"
)

var dbSeq atomic.Int64

// NewDB returns a migrated in-memory SQLite database private to the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:booknest_test_%d?mode=memory&cache=shared&_foreign_keys=1", dbSeq.Add(1))
	gormDB, err := db.NewSQLite(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gormDB
}

// CreateUser inserts a user with a placeholder password digest.
func CreateUser(t testing.TB, gormDB *gorm.DB, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         model.RoleUser,
	}
	require.NoError(t, gormDB.Create(user).Error)
	return user
}

// CreateBook inserts a book with the given stock.
func CreateBook(t testing.TB, gormDB *gorm.DB, title, author string, stock int) *model.Book {
	t.Helper()
	book := &model.Book{
		Title:       title,
		Author:      author,
		Description: title + " by " + author,
		Stock:       stock,
	}
	require.NoError(t, gormDB.Create(book).Error)
	return book
}

// Stock reads the current stock of a book straight from the table.
func Stock(t testing.TB, gormDB *gorm.DB, bookID uint) int {
	t.Helper()
	var book model.Book
	require.NoError(t, gormDB.First(&book, bookID).Error)
	return book.Stock
}
