package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/cppla/socialfeed/models"
	"github.com/cppla/socialfeed/utils"
)

const statsCacheKey = "cache:stats"

// StatsController provides aggregate counts and the health probe.
type StatsController struct {
	db *gorm.DB
	rc *redis.Client
}

// NewStatsController creates a new StatsController instance. rc may be nil.
func NewStatsController(db *gorm.DB, rc *redis.Client) *StatsController {
	return &StatsController{db: db, rc: rc}
}

// GetStats returns row counts for every table.
func (s *StatsController) GetStats(ctx *gin.Context) {
	if b, ok := utils.CacheGetBytes(s.rc, statsCacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	counts := gin.H{}
	tables := []struct {
		name  string
		model interface{}
	}{
		{"user_count", &models.User{}},
		{"post_count", &models.Post{}},
		{"comment_count", &models.Comment{}},
		{"like_count", &models.Like{}},
		{"follow_count", &models.Follow{}},
	}
	for _, t := range tables {
		var n int64
		if err := s.db.WithContext(ctx.Request.Context()).Model(t.model).Count(&n).Error; err != nil {
			// Fallback to 0 instead of failing the whole endpoint
			n = 0
		}
		counts[t.name] = n
	}

	utils.CacheSetJSON(s.rc, statsCacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: counts}, 30*time.Second)
	utils.Success(ctx, counts)
}

// Health reports whether the database answers.
func (s *StatsController) Health(ctx *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx.Request.Context())
	}
	if err != nil {
		utils.Error(ctx, http.StatusServiceUnavailable, 50300, "database unavailable")
		return
	}
	utils.Success(ctx, gin.H{"status": "ok"})
}
