package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/cppla/socialfeed/errs"
	"github.com/cppla/socialfeed/models"
	"github.com/cppla/socialfeed/utils"
)

const (
	DefaultFeedLimit = 10
	MaxFeedLimit     = 100
)

// FeedService composes paginated, reverse-chronological post windows. It never
// writes; the same inputs over an unchanged store yield the same page.
type FeedService struct {
	db           *gorm.DB
	follow       *FollowService
	defaultLimit int
	maxLimit     int
}

func NewFeedService(db *gorm.DB, follow *FollowService, defaultLimit, maxLimit int) *FeedService {
	if maxLimit <= 0 {
		maxLimit = MaxFeedLimit
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultFeedLimit
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &FeedService{db: db, follow: follow, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// Window clamps a requested page: a non-positive limit becomes the default,
// a limit above the maximum becomes the maximum and a negative offset becomes 0.
func (fs *FeedService) Window(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = fs.defaultLimit
	}
	if limit > fs.maxLimit {
		limit = fs.maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// GlobalFeed returns posts from every author.
func (fs *FeedService) GlobalFeed(ctx context.Context, limit, offset int) (posts []models.Post, err error) {
	limit, offset = fs.Window(limit, offset)
	ctx, span := tracer.Start(ctx, "FeedService.GlobalFeed", trace.WithAttributes(
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	))
	defer observeFeed("global", time.Now())
	defer func() { endSpan(span, err) }()

	posts = []models.Post{}
	err = fs.db.WithContext(ctx).Order(newestFirst).Limit(limit).Offset(offset).Find(&posts).Error
	if err != nil {
		return nil, errs.Internal("failed to load feed", err)
	}
	return posts, nil
}

// FriendsFeed returns posts written by viewerID or by anyone viewerID follows.
func (fs *FeedService) FriendsFeed(ctx context.Context, viewerID uint, limit, offset int) (posts []models.Post, err error) {
	limit, offset = fs.Window(limit, offset)
	ctx, span := tracer.Start(ctx, "FeedService.FriendsFeed", trace.WithAttributes(
		attribute.Int64("viewer_id", int64(viewerID)),
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	))
	defer observeFeed("friends", time.Now())
	defer func() { endSpan(span, err) }()

	following, err := fs.follow.FollowingIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	authors := utils.Unique(append([]uint{viewerID}, following...))
	span.SetAttributes(attribute.Int("authors", len(authors)))

	posts = []models.Post{}
	err = fs.db.WithContext(ctx).
		Where("author_id IN ?", authors).
		Order(newestFirst).
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, errs.Internal("failed to load feed", err)
	}
	return posts, nil
}

func observeFeed(kind string, start time.Time) {
	feedDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
