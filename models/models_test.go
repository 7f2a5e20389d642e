package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&User{}, &Post{}, &Like{}))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *User {
	t.Helper()
	user := &User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestPost(t *testing.T, db *gorm.DB, authorID uint, content string) *Post {
	t.Helper()
	post := &Post{
		UserID:   authorID,
		Content:  content,
		IsActive: true,
	}
	require.NoError(t, db.Create(post).Error)
	return post
}

func seedPosts(t *testing.T, db *gorm.DB, authorID uint, n int) []Post {
	t.Helper()
	posts := make([]Post, 0, n)
	for i := 0; i < n; i++ {
		posts = append(posts, *createTestPost(t, db, authorID, fmt.Sprintf("post %d", i)))
	}
	return posts
}
