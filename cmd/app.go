package cmd

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/cppla/socialfeed/config"
	"github.com/cppla/socialfeed/services"
	"github.com/cppla/socialfeed/utils"
)

// app bundles the long-lived handles every subcommand needs.
type app struct {
	db  *gorm.DB
	rc  *redis.Client
	svc *services.Services
}

func newApp(cfg config.AppConfig, bootstrapFriends int) (*app, error) {
	db, err := config.OpenDatabase(cfg)
	if err != nil {
		return nil, err
	}
	rc := utils.NewRedis(cfg)
	svc, err := buildServices(cfg, db, rc, bootstrapFriends)
	if err != nil {
		_ = config.CloseDatabase(db)
		if rc != nil {
			_ = rc.Close()
		}
		return nil, err
	}
	return &app{db: db, rc: rc, svc: svc}, nil
}

func buildServices(cfg config.AppConfig, db *gorm.DB, rc *redis.Client, bootstrapFriends int) (*services.Services, error) {
	return services.NewServices(db,
		services.WithRedis(rc, cfg.AdjacencyTTL),
		services.WithAuth(utils.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL), utils.NewTokenBlacklist(rc)),
		services.WithFollow(bootstrapFriends),
		services.WithUser(),
		services.WithPost(),
		services.WithInteraction(),
		services.WithFeed(cfg.FeedDefaultLimit, cfg.FeedMaxLimit),
	)
}

func (a *app) Close() error {
	var errRedis error
	if a.rc != nil {
		errRedis = a.rc.Close()
	}
	return errors.Join(config.CloseDatabase(a.db), errRedis)
}
