package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/cppla/socialfeed/config"
	"github.com/cppla/socialfeed/controllers"
	"github.com/cppla/socialfeed/graph"
	"github.com/cppla/socialfeed/middleware"
	"github.com/cppla/socialfeed/services"
	"github.com/cppla/socialfeed/utils"
)

// SetupRouter wires routes, middlewares, and controllers. rc may be nil.
func SetupRouter(cfg config.AppConfig, svc *services.Services, rc *redis.Client) (*gin.Engine, error) {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	schema, err := graph.NewSchema(svc)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	// Access logs go to their own rolling file when configured
	accessLogger := utils.Logger
	if cfg.GinPath != "" {
		if gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress); err == nil {
			accessLogger = gl
		} else {
			utils.Sugar.Warnf("gin access log disabled: %v", err)
		}
	}
	r.Use(utils.Ginzap(accessLogger, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(accessLogger, false))
	r.Use(middleware.Metrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	authn := middleware.NewAuthenticator(svc.Tokens, svc.Blacklist, svc.User)
	graphqlController := controllers.NewGraphQLController(schema)
	authController := controllers.NewAuthController(cfg, svc.User, svc.Tokens, svc.Blacklist, utils.NewStateStore(rc))
	postController := controllers.NewPostController(svc)
	statsController := controllers.NewStatsController(svc.DB(), rc)

	r.GET("/health", statsController.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	gql := r.Group("/graphql")
	gql.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute), authn.OptionalAuth())
	gql.POST("", graphqlController.Post)
	gql.GET("", graphqlController.Get)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)
	authGroup.POST("/logout", authn.AuthRequired(), authController.Logout)

	public := api.Group("")
	public.Use(authn.OptionalAuth())
	public.GET("/stats", statsController.GetStats)
	public.GET("/feed", postController.GetFeed)
	public.GET("/posts/:id", postController.GetPost)
	public.GET("/users/:id/feed", postController.GetFriendsFeed)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r, nil
}
