package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"minisocial/models"
)

type postJSON struct {
	ID        uint   `json:"id"`
	Content   string `json:"content"`
	LikeCount int    `json:"like_count"`
	HasLiked  bool   `json:"has_liked"`
	Author    struct {
		ID       uint   `json:"id"`
		Username string `json:"username"`
	} `json:"author"`
}

type pageJSON struct {
	Posts      []postJSON `json:"posts"`
	Pagination struct {
		CurrentPage int   `json:"current_page"`
		TotalPages  int   `json:"total_pages"`
		TotalPosts  int64 `json:"total_posts"`
		HasNextPage bool  `json:"has_next_page"`
		HasPrevPage bool  `json:"has_prev_page"`
	} `json:"pagination"`
}

func TestCreatePostValidation(t *testing.T) {
	r, _ := newTestEnv(t)
	token, _ := registerUser(t, r, "carol")

	t.Run("requires auth", func(t *testing.T) {
		w, _ := do(t, r, http.MethodPost, "/api/posts", "", gin.H{"content": "hi"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("empty content", func(t *testing.T) {
		w, _ := do(t, r, http.MethodPost, "/api/posts", token, gin.H{"content": "   "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("content too long", func(t *testing.T) {
		w, _ := do(t, r, http.MethodPost, "/api/posts", token, gin.H{"content": strings.Repeat("x", 501)})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("boundary lengths accepted", func(t *testing.T) {
		w, _ := do(t, r, http.MethodPost, "/api/posts", token, gin.H{"content": "x"})
		assert.Equal(t, http.StatusCreated, w.Code)
		w, _ = do(t, r, http.MethodPost, "/api/posts", token, gin.H{"content": strings.Repeat("y", 500)})
		assert.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestTimelinePagination(t *testing.T) {
	r, _ := newTestEnv(t)
	token, _ := registerUser(t, r, "carol")

	for i := 0; i < 25; i++ {
		createPostAPI(t, r, token, fmt.Sprintf("post %d", i))
	}

	w, resp := do(t, r, http.MethodGet, "/api/posts?page=1&limit=10", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page pageJSON
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	assert.Len(t, page.Posts, 10)
	assert.Equal(t, "post 24", page.Posts[0].Content)
	assert.Equal(t, int64(25), page.Pagination.TotalPosts)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.True(t, page.Pagination.HasNextPage)
	assert.False(t, page.Pagination.HasPrevPage)

	w, resp = do(t, r, http.MethodGet, "/api/posts?page=3&limit=10", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = pageJSON{}
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	assert.Len(t, page.Posts, 5)
	assert.False(t, page.Pagination.HasNextPage)
	assert.True(t, page.Pagination.HasPrevPage)

	t.Run("invalid parameters", func(t *testing.T) {
		for _, q := range []string{"page=0", "page=-2", "limit=0", "limit=51", "page=abc"} {
			w, _ := do(t, r, http.MethodGet, "/api/posts?"+q, "", nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, "query %q", q)
		}
	})
}

func TestLikeLifecycle(t *testing.T) {
	r, _ := newTestEnv(t)
	authorToken, _ := registerUser(t, r, "author")
	fanToken, _ := registerUser(t, r, "fan")

	postID := createPostAPI(t, r, authorToken, "like me")
	likePath := fmt.Sprintf("/api/posts/%d/like", postID)

	type likeResp struct {
		Action string `json:"action"`
		Liked  bool   `json:"liked"`
		Post   struct {
			ID        uint `json:"id"`
			LikeCount int  `json:"like_count"`
			HasLiked  bool `json:"has_liked"`
		} `json:"post"`
	}

	w, resp := do(t, r, http.MethodPost, likePath, fanToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var lr likeResp
	require.NoError(t, json.Unmarshal(resp.Data, &lr))
	assert.Equal(t, "liked", lr.Action)
	assert.True(t, lr.Liked)
	assert.Equal(t, 1, lr.Post.LikeCount)
	assert.True(t, lr.Post.HasLiked)

	// The fan sees has_liked on the single post read, the author does not.
	w, resp = do(t, r, http.MethodGet, fmt.Sprintf("/api/posts/%d", postID), fanToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var single struct {
		Post postJSON `json:"post"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &single))
	assert.True(t, single.Post.HasLiked)
	assert.Equal(t, 1, single.Post.LikeCount)

	w, resp = do(t, r, http.MethodGet, fmt.Sprintf("/api/posts/%d", postID), authorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	single = struct {
		Post postJSON `json:"post"`
	}{}
	require.NoError(t, json.Unmarshal(resp.Data, &single))
	assert.False(t, single.Post.HasLiked)

	// Likers listing names the fan.
	w, resp = do(t, r, http.MethodGet, fmt.Sprintf("/api/posts/%d/likes", postID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var likers struct {
		Likes []struct {
			User struct {
				Username string `json:"username"`
			} `json:"user"`
		} `json:"likes"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &likers))
	require.Len(t, likers.Likes, 1)
	assert.Equal(t, "fan", likers.Likes[0].User.Username)

	// Second toggle removes the like.
	w, resp = do(t, r, http.MethodPost, likePath, fanToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	lr = likeResp{}
	require.NoError(t, json.Unmarshal(resp.Data, &lr))
	assert.Equal(t, "unliked", lr.Action)
	assert.False(t, lr.Liked)
	assert.Equal(t, 0, lr.Post.LikeCount)

	t.Run("missing post", func(t *testing.T) {
		w, _ := do(t, r, http.MethodPost, "/api/posts/9999/like", fanToken, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("requires auth", func(t *testing.T) {
		w, _ := do(t, r, http.MethodPost, likePath, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestToggleLikeLostRaceReturnsConflict(t *testing.T) {
	r, db := newTestEnv(t)
	authorToken, _ := registerUser(t, r, "author")
	fanToken, _ := registerUser(t, r, "fan")
	postID := createPostAPI(t, r, authorToken, "contested")

	// Replay the lost race: the membership row lands after the toggle's
	// read but before its own insert, so the insert hits the unique index.
	err := db.Callback().Create().Before("gorm:create").Register("sneak_like", func(tx *gorm.DB) {
		if tx.Statement.Schema == nil || tx.Statement.Schema.Table != "likes" {
			return
		}
		like, ok := tx.Statement.Dest.(*models.Like)
		if !ok {
			return
		}
		tx.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO likes (user_id, post_id, created_at) VALUES (?, ?, ?)",
			like.UserID, like.PostID, time.Now(),
		)
	})
	require.NoError(t, err)

	w, resp := do(t, r, http.MethodPost, fmt.Sprintf("/api/posts/%d/like", postID), fanToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 40902, resp.Code)
	require.NoError(t, db.Callback().Create().Remove("sneak_like"))

	// The losing toggle rolled back without touching the counter.
	w, resp = do(t, r, http.MethodGet, fmt.Sprintf("/api/posts/%d", postID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var single struct {
		Post postJSON `json:"post"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &single))
	assert.Equal(t, 0, single.Post.LikeCount)
}

func TestDeletePost(t *testing.T) {
	r, _ := newTestEnv(t)
	authorToken, _ := registerUser(t, r, "author")
	otherToken, _ := registerUser(t, r, "other")

	postID := createPostAPI(t, r, authorToken, "short lived")
	path := fmt.Sprintf("/api/posts/%d", postID)

	t.Run("non-author forbidden", func(t *testing.T) {
		w, _ := do(t, r, http.MethodDelete, path, otherToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	w, _ := do(t, r, http.MethodDelete, path, authorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Soft-deleted: gone from reads, likes and the timeline.
	w, _ = do(t, r, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, r, http.MethodPost, path+"/like", otherToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp := do(t, r, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page pageJSON
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	assert.Empty(t, page.Posts)

	t.Run("delete twice", func(t *testing.T) {
		w, _ := do(t, r, http.MethodDelete, path, authorToken, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListUserPosts(t *testing.T) {
	r, _ := newTestEnv(t)
	aliceToken, aliceID := registerUser(t, r, "alice")
	bobToken, _ := registerUser(t, r, "bob")

	for i := 0; i < 3; i++ {
		createPostAPI(t, r, aliceToken, fmt.Sprintf("alice %d", i))
	}
	createPostAPI(t, r, bobToken, "bob 0")

	w, resp := do(t, r, http.MethodGet, fmt.Sprintf("/api/users/%d/posts", aliceID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page pageJSON
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	require.Len(t, page.Posts, 3)
	for _, p := range page.Posts {
		assert.Equal(t, "alice", p.Author.Username)
	}

	// The listing carries the profile it belongs to.
	var owner struct {
		User struct {
			ID       uint   `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &owner))
	assert.Equal(t, aliceID, owner.User.ID)
	assert.Equal(t, "alice", owner.User.Username)

	t.Run("unknown user", func(t *testing.T) {
		w, _ := do(t, r, http.MethodGet, "/api/users/9999/posts", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListLikedPosts(t *testing.T) {
	r, _ := newTestEnv(t)
	authorToken, _ := registerUser(t, r, "author")
	fanToken, fanID := registerUser(t, r, "fan")

	first := createPostAPI(t, r, authorToken, "first")
	second := createPostAPI(t, r, authorToken, "second")
	createPostAPI(t, r, authorToken, "ignored")

	for _, id := range []uint{first, second} {
		w, _ := do(t, r, http.MethodPost, fmt.Sprintf("/api/posts/%d/like", id), fanToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, resp := do(t, r, http.MethodGet, fmt.Sprintf("/api/users/%d/likes", fanID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page pageJSON
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	require.Len(t, page.Posts, 2)
	for _, p := range page.Posts {
		assert.True(t, p.HasLiked)
	}
	// Most recent like first.
	assert.Equal(t, second, page.Posts[0].ID)
	assert.Equal(t, first, page.Posts[1].ID)
}

func TestStatsEndpoint(t *testing.T) {
	r, _ := newTestEnv(t)
	authorToken, _ := registerUser(t, r, "author")
	fanToken, _ := registerUser(t, r, "fan")

	postID := createPostAPI(t, r, authorToken, "stat me")
	w, _ := do(t, r, http.MethodPost, fmt.Sprintf("/api/posts/%d/like", postID), fanToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := do(t, r, http.MethodGet, "/api/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats struct {
		UserCount int64 `json:"user_count"`
		PostCount int64 `json:"post_count"`
		Likes     struct {
			TotalLikes int64 `json:"total_likes"`
		} `json:"likes"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, int64(2), stats.UserCount)
	assert.Equal(t, int64(1), stats.PostCount)
	assert.Equal(t, int64(1), stats.Likes.TotalLikes)
}
