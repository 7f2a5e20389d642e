package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"minisocial/middleware"
	"minisocial/models"
	"minisocial/utils"
)

// PostController manages posts, the timeline and like toggling.
type PostController struct {
	db *gorm.DB
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{db: db}
}

// CreatePost allows authenticated users to publish a new post.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	content := strings.TrimSpace(utils.SanitizeText(req.Content))
	if l := len([]rune(content)); l < 1 || l > 500 {
		utils.Error(ctx, http.StatusBadRequest, 40021, "content must be 1-500 characters")
		return
	}

	userID := middleware.CurrentUserID(ctx)
	post := models.Post{
		UserID:   userID,
		Content:  content,
		IsActive: true,
	}
	if err := p.db.Create(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create post")
		return
	}

	if err := p.db.Preload("User").First(&post, post.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to load post")
		return
	}
	post.Author = post.User.Public()

	utils.InvalidateByPrefix("posts:")

	utils.Created(ctx, gin.H{"post": post})
}

// ListTimeline returns the paginated global feed, newest first.
func (p *PostController) ListTimeline(ctx *gin.Context) {
	page, limit, err := utils.ParsePageLimit(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, err.Error())
		return
	}

	viewerID := middleware.CurrentUserID(ctx)

	// Anonymous pages are identical for everyone, cache those only.
	cacheKey := ""
	if viewerID == 0 {
		cacheKey = utils.TimelineCacheKey(page, limit)
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	posts, total, err := models.ListTimeline(p.db, page, limit)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to list posts")
		return
	}
	if err := models.AttachLikeState(p.db, posts, viewerID); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to load like state")
		return
	}

	payload := gin.H{
		"posts":      posts,
		"pagination": utils.NewPagination(page, limit, total),
	}
	if cacheKey != "" {
		wrapper := envelope{Code: 0, Message: "success", Data: payload}
		utils.CacheSetJSON(cacheKey, wrapper, utils.TimelineTTL)
	}
	utils.Success(ctx, payload)
}

// GetPost returns a single active post with the viewer's like state.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID, ok := parseID(ctx, "postId")
	if !ok {
		return
	}

	viewerID := middleware.CurrentUserID(ctx)
	cacheKey := ""
	if viewerID == 0 {
		cacheKey = utils.PostCacheKey(postID)
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	post, err := models.FindActivePost(p.db, postID)
	if err != nil {
		if errors.Is(err, models.ErrPostNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return
	}

	if viewerID != 0 {
		liked, err := models.HasLiked(p.db, viewerID, post.ID)
		if err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load like state")
			return
		}
		post.HasLiked = liked
	}

	payload := gin.H{"post": post}
	if cacheKey != "" {
		wrapper := envelope{Code: 0, Message: "success", Data: payload}
		utils.CacheSetJSON(cacheKey, wrapper, utils.PostTTL)
	}
	utils.Success(ctx, payload)
}

// DeletePost soft-deletes a post. Only the author or an admin may do this.
func (p *PostController) DeletePost(ctx *gin.Context) {
	postID, ok := parseID(ctx, "postId")
	if !ok {
		return
	}

	post, err := models.FindActivePost(p.db, postID)
	if err != nil {
		if errors.Is(err, models.ErrPostNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40404, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to load post")
		return
	}

	userID := middleware.CurrentUserID(ctx)
	if post.UserID != userID && !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40302, "you can only delete your own posts")
		return
	}

	if err := p.db.Model(post).Update("is_active", false).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to delete post")
		return
	}

	utils.InvalidateByPrefix("posts:")

	utils.Success(ctx, gin.H{"message": "post deleted"})
}

// ToggleLike likes the post when the caller has not liked it yet and
// unlikes it otherwise. The response carries the refreshed counter.
func (p *PostController) ToggleLike(ctx *gin.Context) {
	postID, ok := parseID(ctx, "postId")
	if !ok {
		return
	}

	userID := middleware.CurrentUserID(ctx)
	result, err := models.ToggleLike(p.db, userID, postID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrPostNotFound):
			utils.Error(ctx, http.StatusNotFound, 40405, "post not found")
		case errors.Is(err, models.ErrAlreadyLiked):
			utils.Error(ctx, http.StatusConflict, 40902, "post already liked")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to toggle like")
		}
		return
	}

	utils.InvalidateByPrefix("posts:")

	utils.Success(ctx, gin.H{
		"action": result.Action,
		"liked":  result.Liked,
		"post": gin.H{
			"id":         postID,
			"like_count": result.LikeCount,
			"has_liked":  result.Liked,
		},
	})
}

// ListPostLikers returns the users who liked a post, newest like first.
func (p *PostController) ListPostLikers(ctx *gin.Context) {
	postID, ok := parseID(ctx, "postId")
	if !ok {
		return
	}
	page, limit, err := utils.ParsePageLimit(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, err.Error())
		return
	}

	if _, err := models.FindActivePost(p.db, postID); err != nil {
		if errors.Is(err, models.ErrPostNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40406, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to load post")
		return
	}

	likes, total, err := models.ListPostLikers(p.db, postID, page, limit)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to list likers")
		return
	}

	utils.Success(ctx, gin.H{
		"likes":      likes,
		"pagination": utils.NewPagination(page, limit, total),
	})
}

// ListUserPosts returns active posts authored by a specific user.
func (p *PostController) ListUserPosts(ctx *gin.Context) {
	userID, ok := parseID(ctx, "userId")
	if !ok {
		return
	}
	page, limit, err := utils.ParsePageLimit(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, err.Error())
		return
	}

	user, ok := p.findActiveUser(ctx, userID)
	if !ok {
		return
	}

	viewerID := middleware.CurrentUserID(ctx)
	cacheKey := ""
	if viewerID == 0 {
		cacheKey = utils.UserPostsCacheKey(userID, page, limit)
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	posts, total, err := models.ListByAuthor(p.db, userID, page, limit)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to list user posts")
		return
	}
	if err := models.AttachLikeState(p.db, posts, viewerID); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to load like state")
		return
	}

	payload := gin.H{
		"posts":      posts,
		"user":       user.Public(),
		"pagination": utils.NewPagination(page, limit, total),
	}
	if cacheKey != "" {
		wrapper := envelope{Code: 0, Message: "success", Data: payload}
		utils.CacheSetJSON(cacheKey, wrapper, utils.TimelineTTL)
	}
	utils.Success(ctx, payload)
}

// ListLikedPosts returns the posts a user has liked, most recent like first.
func (p *PostController) ListLikedPosts(ctx *gin.Context) {
	userID, ok := parseID(ctx, "userId")
	if !ok {
		return
	}
	page, limit, err := utils.ParsePageLimit(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, err.Error())
		return
	}

	if _, ok := p.findActiveUser(ctx, userID); !ok {
		return
	}

	posts, total, err := models.ListLikedPosts(p.db, userID, page, limit)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50062, "failed to list liked posts")
		return
	}

	utils.Success(ctx, gin.H{
		"posts":      posts,
		"pagination": utils.NewPagination(page, limit, total),
	})
}

// envelope mirrors the standard response shape for whole-response caching.
type envelope struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func (p *PostController) findActiveUser(ctx *gin.Context, userID uint) (*models.User, bool) {
	var user models.User
	if err := p.db.Where("is_active = ?", true).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to load user")
		return nil, false
	}
	return &user, true
}

func parseID(ctx *gin.Context, param string) (uint, bool) {
	raw := strings.TrimSpace(ctx.Param(param))
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func isAdmin(ctx *gin.Context) bool {
	unameVal, exists := ctx.Get(middleware.ContextUsernameKey)
	if !exists {
		return false
	}
	uname, _ := unameVal.(string)
	return isAdminUsername(uname)
}
