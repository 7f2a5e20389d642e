package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"minisocial/models"
	"minisocial/utils"
)

// StatsController exposes aggregate counters for the network.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// GetStats returns user, post and like totals plus like distribution.
func (s *StatsController) GetStats(ctx *gin.Context) {
	if b, ok := utils.CacheGetBytes(utils.StatsCacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var userCount int64
	var postCount int64

	if err := s.db.Model(&models.User{}).Where("is_active = ?", true).Count(&userCount).Error; err != nil {
		// Fallback to 0 instead of failing the whole endpoint
		userCount = 0
	}
	if err := models.ActivePosts(s.db.Model(&models.Post{})).Count(&postCount).Error; err != nil {
		postCount = 0
	}

	likeStats, err := models.GetLikeStats(s.db)
	if err != nil {
		likeStats = &models.LikeStats{}
	}

	payload := gin.H{
		"user_count": userCount,
		"post_count": postCount,
		"likes":      likeStats,
	}
	wrapper := envelope{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(utils.StatsCacheKey, wrapper, utils.StatsTTL)
	utils.Success(ctx, payload)
}
