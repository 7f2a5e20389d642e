package models

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func likeRowCount(t *testing.T, db *gorm.DB, postID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&Like{}).Where("post_id = ?", postID).Count(&n).Error)
	return n
}

func storedLikeCount(t *testing.T, db *gorm.DB, postID uint) int {
	t.Helper()
	var post Post
	require.NoError(t, db.First(&post, postID).Error)
	return post.LikeCount
}

func TestToggleLikeRoundTrip(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "author")
	viewer := createTestUser(t, db, "viewer")
	post := createTestPost(t, db, author.ID, "hello")

	res, err := ToggleLike(db, viewer.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "liked", res.Action)
	assert.True(t, res.Liked)
	assert.Equal(t, 1, res.LikeCount)

	liked, err := HasLiked(db, viewer.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, 1, storedLikeCount(t, db, post.ID))

	res, err = ToggleLike(db, viewer.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "unliked", res.Action)
	assert.False(t, res.Liked)
	assert.Equal(t, 0, res.LikeCount)

	liked, err = HasLiked(db, viewer.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, 0, storedLikeCount(t, db, post.ID))
	assert.Equal(t, int64(0), likeRowCount(t, db, post.ID))
}

func TestToggleLikeCounterMatchesMembership(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "author")
	post := createTestPost(t, db, author.ID, "popular")

	users := make([]*User, 5)
	for i := range users {
		users[i] = createTestUser(t, db, fmt.Sprintf("fan%d", i))
		_, err := ToggleLike(db, users[i].ID, post.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, storedLikeCount(t, db, post.ID))
	assert.Equal(t, int64(5), likeRowCount(t, db, post.ID))

	// Two of them change their mind.
	for _, u := range users[:2] {
		_, err := ToggleLike(db, u.ID, post.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, storedLikeCount(t, db, post.ID))
	assert.Equal(t, int64(3), likeRowCount(t, db, post.ID))
}

func TestToggleLikeMissingPost(t *testing.T) {
	db := newTestDB(t)
	viewer := createTestUser(t, db, "viewer")

	_, err := ToggleLike(db, viewer.ID, 9999)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestToggleLikeInactivePost(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "author")
	viewer := createTestUser(t, db, "viewer")
	post := createTestPost(t, db, author.ID, "soon gone")

	require.NoError(t, db.Model(post).Update("is_active", false).Error)

	_, err := ToggleLike(db, viewer.ID, post.ID)
	assert.ErrorIs(t, err, ErrPostNotFound)
	assert.Equal(t, int64(0), likeRowCount(t, db, post.ID))
}

func TestCreateLikeDuplicate(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "author")
	viewer := createTestUser(t, db, "viewer")
	post := createTestPost(t, db, author.ID, "hello")

	require.NoError(t, createLike(db, viewer.ID, post.ID))

	// The second insert for the same pair must surface as the domain
	// conflict, the way a lost race between concurrent toggles would.
	err := createLike(db, viewer.ID, post.ID)
	assert.ErrorIs(t, err, ErrAlreadyLiked)
	assert.Equal(t, int64(1), likeRowCount(t, db, post.ID))
}

func TestCreateLikeConcurrentPair(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "author")
	viewer := createTestUser(t, db, "viewer")
	post := createTestPost(t, db, author.ID, "hello")

	// Both inserts race for the same (user, post) slot. Whatever the
	// interleaving, the unique index lets exactly one through and the
	// loser must come back as the domain conflict.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- createLike(db, viewer.ID, post.ID)
		}()
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrAlreadyLiked):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)
	assert.Equal(t, int64(1), likeRowCount(t, db, post.ID))
}

func TestUnlikeNeverGoesNegative(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "author")
	viewer := createTestUser(t, db, "viewer")
	post := createTestPost(t, db, author.ID, "hello")

	// Simulate drift: a membership row exists but the counter reads zero.
	require.NoError(t, createLike(db, viewer.ID, post.ID))
	require.NoError(t, db.Model(post).UpdateColumn("like_count", 0).Error)

	res, err := ToggleLike(db, viewer.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "unliked", res.Action)
	assert.Equal(t, 0, res.LikeCount)
	assert.Equal(t, 0, storedLikeCount(t, db, post.ID))
}

func TestRecountLikeCounts(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "author")
	a := createTestUser(t, db, "a")
	b := createTestUser(t, db, "b")
	post := createTestPost(t, db, author.ID, "hello")
	other := createTestPost(t, db, author.ID, "other")

	for _, u := range []*User{a, b} {
		_, err := ToggleLike(db, u.ID, post.ID)
		require.NoError(t, err)
	}

	// Corrupt both counters.
	require.NoError(t, db.Model(post).UpdateColumn("like_count", 40).Error)
	require.NoError(t, db.Model(other).UpdateColumn("like_count", 7).Error)

	_, err := RecountLikeCounts(db)
	require.NoError(t, err)

	assert.Equal(t, 2, storedLikeCount(t, db, post.ID))
	assert.Equal(t, 0, storedLikeCount(t, db, other.ID))
}

func TestListPostLikersOrder(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "author")
	post := createTestPost(t, db, author.ID, "hello")

	first := createTestUser(t, db, "first")
	second := createTestUser(t, db, "second")

	require.NoError(t, db.Create(&Like{UserID: first.ID, PostID: post.ID, CreatedAt: time.Now().Add(-time.Hour)}).Error)
	require.NoError(t, db.Create(&Like{UserID: second.ID, PostID: post.ID, CreatedAt: time.Now()}).Error)

	likes, total, err := ListPostLikers(db, post.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, likes, 2)
	assert.Equal(t, "second", likes[0].Liker.Username)
	assert.Equal(t, "first", likes[1].Liker.Username)
}

func TestListLikedPostsSkipsInactive(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "author")
	viewer := createTestUser(t, db, "viewer")

	kept := createTestPost(t, db, author.ID, "kept")
	removed := createTestPost(t, db, author.ID, "removed")

	for _, p := range []*Post{kept, removed} {
		_, err := ToggleLike(db, viewer.ID, p.ID)
		require.NoError(t, err)
	}
	require.NoError(t, db.Model(removed).Update("is_active", false).Error)

	posts, total, err := ListLikedPosts(db, viewer.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, posts, 1)
	assert.Equal(t, kept.ID, posts[0].ID)
	assert.True(t, posts[0].HasLiked)
	assert.Equal(t, "author", posts[0].Author.Username)
}

func TestGetLikeStats(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "author")
	a := createTestUser(t, db, "a")
	b := createTestUser(t, db, "b")
	p1 := createTestPost(t, db, author.ID, "one")
	p2 := createTestPost(t, db, author.ID, "two")

	for _, pair := range []struct {
		userID uint
		postID uint
	}{
		{a.ID, p1.ID},
		{b.ID, p1.ID},
		{a.ID, p2.ID},
	} {
		_, err := ToggleLike(db, pair.userID, pair.postID)
		require.NoError(t, err)
	}

	stats, err := GetLikeStats(db)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalLikes)
	assert.Equal(t, int64(2), stats.UniqueUsers)
	assert.Equal(t, int64(2), stats.UniquePosts)
	assert.InDelta(t, 1.5, stats.AvgLikesPerPost, 0.001)
}
