package services

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/cppla/socialfeed/utils"
)

// ServicesConfig wraps the construction of one service so the container can be
// assembled with functional options.
type ServicesConfig func(*Services) error

// Services holds every domain service. They all share one database handle and
// an optional Redis client.
type Services struct {
	db *gorm.DB
	rc *redis.Client

	User         *UserService
	Follow       *FollowService
	Post         *PostService
	Interaction  *InteractionService
	Feed         *FeedService
	Tokens       *utils.TokenManager
	Blacklist    *utils.TokenBlacklist
	adjacencyTTL time.Duration
}

// NewServices returns a container holding the services the passed options create.
func NewServices(db *gorm.DB, cfgs ...ServicesConfig) (*Services, error) {
	if db == nil {
		return nil, errors.New("services: nil database handle")
	}
	s := Services{db: db}
	for _, cfg := range cfgs {
		if err := cfg(&s); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// DB exposes the shared handle for read-only reporting endpoints.
func (s *Services) DB() *gorm.DB {
	return s.db
}

// WithRedis attaches the adjacency cache backend. It must precede WithFollow.
// A nil client leaves the follow graph reading edges directly.
func WithRedis(rc *redis.Client, adjacencyTTL time.Duration) ServicesConfig {
	return func(s *Services) error {
		s.rc = rc
		s.adjacencyTTL = adjacencyTTL
		return nil
	}
}

// WithAuth wires token issuance and revocation.
func WithAuth(tokens *utils.TokenManager, blacklist *utils.TokenBlacklist) ServicesConfig {
	return func(s *Services) error {
		s.Tokens = tokens
		s.Blacklist = blacklist
		return nil
	}
}

// WithFollow wraps NewFollowService.
func WithFollow(bootstrapFriends int) ServicesConfig {
	return func(s *Services) error {
		s.Follow = NewFollowService(s.db, s.rc, s.adjacencyTTL, bootstrapFriends)
		return nil
	}
}

// WithUser wraps NewUserService. Needs WithFollow for the auto-friend bootstrap
// and WithAuth for register and login.
func WithUser() ServicesConfig {
	return func(s *Services) error {
		if s.Follow == nil {
			return errors.New("services: WithFollow must be applied before WithUser")
		}
		s.User = NewUserService(s.db, s.Follow, s.Tokens)
		return nil
	}
}

// WithPost wraps NewPostService.
func WithPost() ServicesConfig {
	return func(s *Services) error {
		s.Post = NewPostService(s.db)
		return nil
	}
}

// WithInteraction wraps NewInteractionService.
func WithInteraction() ServicesConfig {
	return func(s *Services) error {
		s.Interaction = NewInteractionService(s.db)
		return nil
	}
}

// WithFeed wraps NewFeedService. Needs WithFollow.
func WithFeed(defaultLimit, maxLimit int) ServicesConfig {
	return func(s *Services) error {
		if s.Follow == nil {
			return errors.New("services: WithFollow must be applied before WithFeed")
		}
		s.Feed = NewFeedService(s.db, s.Follow, defaultLimit, maxLimit)
		return nil
	}
}
