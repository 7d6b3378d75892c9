package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/socialfeed/errs"
	"github.com/cppla/socialfeed/models"
	"github.com/cppla/socialfeed/utils"
)

const (
	defaultAdjacencyTTL = 10 * time.Minute
	rebuildTimeout      = 5 * time.Second
	// members of an adjacency set are user ids, which start at 1; "0" marks a
	// set that was built from edges and happens to be empty.
	adjacencySentinel = "0"
)

// FollowService maintains the directed follow edges. The follows table is the
// only source of truth; the Redis adjacency sets are a read cache that is
// dropped after every committed write and rebuilt from edges on demand.
type FollowService struct {
	followValidator
}

type followValidator struct {
	followGorm
}

type followGorm struct {
	db        *gorm.DB
	rc        *redis.Client
	ttl       time.Duration
	bootstrap int
	group     singleflight.Group
}

// NewFollowService creates a FollowService. rc may be nil, in which case
// adjacency reads go straight to the edges table. bootstrapFriends caps the
// number of mutual edges created for a new user; zero disables the bootstrap.
func NewFollowService(db *gorm.DB, rc *redis.Client, adjacencyTTL time.Duration, bootstrapFriends int) *FollowService {
	if adjacencyTTL <= 0 {
		adjacencyTTL = defaultAdjacencyTTL
	}
	if bootstrapFriends < 0 {
		bootstrapFriends = 0
	}
	return &FollowService{
		followValidator{
			followGorm{
				db:        db,
				rc:        rc,
				ttl:       adjacencyTTL,
				bootstrap: bootstrapFriends,
			},
		},
	}
}

// Follow creates the edge follower -> following.
func (fv *followValidator) Follow(ctx context.Context, followerID, followingID uint) (follow *models.Follow, err error) {
	ctx, span := tracer.Start(ctx, "FollowService.Follow", trace.WithAttributes(
		attribute.Int64("follower_id", int64(followerID)),
		attribute.Int64("following_id", int64(followingID)),
	))
	defer func() {
		followOpsTotal.WithLabelValues("follow", outcome(err)).Inc()
		endSpan(span, err)
	}()

	edge := &models.Follow{FollowerID: followerID, FollowingID: followingID}
	err = runFollowValFns(ctx, edge,
		fv.followedIsNotFollower,
		fv.followedUserExists,
		fv.notAlreadyFollowed)
	if err != nil {
		return nil, err
	}
	if err = fv.followGorm.create(ctx, edge); err != nil {
		return nil, err
	}
	return edge, nil
}

// Unfollow removes the edge follower -> following.
func (fv *followValidator) Unfollow(ctx context.Context, followerID, followingID uint) (err error) {
	ctx, span := tracer.Start(ctx, "FollowService.Unfollow", trace.WithAttributes(
		attribute.Int64("follower_id", int64(followerID)),
		attribute.Int64("following_id", int64(followingID)),
	))
	defer func() {
		followOpsTotal.WithLabelValues("unfollow", outcome(err)).Inc()
		endSpan(span, err)
	}()
	return fv.followGorm.delete(ctx, followerID, followingID)
}

func runFollowValFns(ctx context.Context, follow *models.Follow, fns ...followValFn) error {
	for _, fn := range fns {
		if err := fn(ctx, follow); err != nil {
			return err
		}
	}
	return nil
}

type followValFn func(ctx context.Context, follow *models.Follow) error

func (fv *followValidator) followedIsNotFollower(_ context.Context, follow *models.Follow) error {
	if follow.FollowerID == follow.FollowingID {
		return errs.ErrSelfFollow
	}
	return nil
}

func (fv *followValidator) followedUserExists(ctx context.Context, follow *models.Follow) error {
	var count int64
	err := fv.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", follow.FollowingID).Count(&count).Error
	if err != nil {
		return errs.Internal("failed to look up user", err)
	}
	if count == 0 {
		return errs.NotFound("user")
	}
	return nil
}

func (fv *followValidator) notAlreadyFollowed(ctx context.Context, follow *models.Follow) error {
	ok, err := fv.IsFollowing(ctx, follow.FollowerID, follow.FollowingID)
	if err != nil {
		return err
	}
	if ok {
		return errs.ErrAlreadyFollowing
	}
	return nil
}

func (fg *followGorm) create(ctx context.Context, edge *models.Follow) error {
	err := fg.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(edge).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.ErrAlreadyFollowing
		}
		return errs.Internal("failed to follow user", err)
	}
	fg.invalidate(ctx, edge.FollowerID, edge.FollowingID)
	return nil
}

func (fg *followGorm) delete(ctx context.Context, followerID, followingID uint) error {
	err := fg.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).Delete(&models.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.ErrNotFollowing
		}
		return nil
	})
	if err != nil {
		if errs.KindOf(err) == errs.KindNotFollowing {
			return err
		}
		return errs.Internal("failed to unfollow user", err)
	}
	fg.invalidate(ctx, followerID, followingID)
	return nil
}

// IsFollowing reports whether the edge follower -> following exists.
func (fg *followGorm) IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error) {
	var count int64
	err := fg.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	if err != nil {
		return false, errs.Internal("failed to look up follow", err)
	}
	return count > 0, nil
}

// ByPair returns the edge follower -> following.
func (fg *followGorm) ByPair(ctx context.Context, followerID, followingID uint) (*models.Follow, error) {
	var edge models.Follow
	err := fg.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		First(&edge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFollowing
		}
		return nil, errs.Internal("failed to look up follow", err)
	}
	return &edge, nil
}

// FollowerCount counts edges pointing at userID.
func (fg *followGorm) FollowerCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := fg.db.WithContext(ctx).Model(&models.Follow{}).Where("following_id = ?", userID).Count(&count).Error; err != nil {
		return 0, errs.Internal("failed to count followers", err)
	}
	return count, nil
}

// FollowingCount counts edges leaving userID.
func (fg *followGorm) FollowingCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := fg.db.WithContext(ctx).Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&count).Error; err != nil {
		return 0, errs.Internal("failed to count following", err)
	}
	return count, nil
}

// FollowingIDs returns the ids userID follows, ascending.
func (fg *followGorm) FollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	return fg.adjacency(ctx, followingKey(userID), "follower_id", "following_id", userID)
}

// FollowerIDs returns the ids following userID, ascending.
func (fg *followGorm) FollowerIDs(ctx context.Context, userID uint) ([]uint, error) {
	return fg.adjacency(ctx, followersKey(userID), "following_id", "follower_id", userID)
}

// Following lists the users userID follows.
func (fg *followGorm) Following(ctx context.Context, userID uint) ([]models.User, error) {
	ids, err := fg.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return fg.usersByIDs(ctx, ids)
}

// Followers lists the users following userID.
func (fg *followGorm) Followers(ctx context.Context, userID uint) ([]models.User, error) {
	ids, err := fg.FollowerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return fg.usersByIDs(ctx, ids)
}

func (fg *followGorm) usersByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	if err := fg.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&users).Error; err != nil {
		return nil, errs.Internal("failed to load users", err)
	}
	return users, nil
}

// BootstrapNewUser creates mutual edges between newUserID and up to the
// configured number of other users, ordered by id. It returns the number of
// directed edges inserted. Callers treat failure as non-fatal.
func (fg *followGorm) BootstrapNewUser(ctx context.Context, newUserID uint) (created int, err error) {
	ctx, span := tracer.Start(ctx, "FollowService.BootstrapNewUser", trace.WithAttributes(
		attribute.Int64("user_id", int64(newUserID)),
	))
	defer func() {
		followOpsTotal.WithLabelValues("bootstrap", outcome(err)).Inc()
		span.SetAttributes(attribute.Int("edges_created", created))
		endSpan(span, err)
	}()

	if fg.bootstrap == 0 {
		return 0, nil
	}

	var others []uint
	err = fg.db.WithContext(ctx).Model(&models.User{}).
		Where("id <> ?", newUserID).
		Order("id").
		Limit(fg.bootstrap).
		Pluck("id", &others).Error
	if err != nil {
		return 0, errs.Internal("failed to select bootstrap friends", err)
	}
	if len(others) == 0 {
		return 0, nil
	}

	edges := make([]models.Follow, 0, 2*len(others))
	for _, id := range others {
		edges = append(edges,
			models.Follow{FollowerID: newUserID, FollowingID: id},
			models.Follow{FollowerID: id, FollowingID: newUserID},
		)
	}

	err = fg.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edges)
		if res.Error != nil {
			return res.Error
		}
		created = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, errs.Internal("failed to create bootstrap follows", err)
	}

	bootstrapEdgesTotal.Add(float64(created))
	for _, id := range others {
		fg.invalidate(ctx, newUserID, id)
		fg.invalidate(ctx, id, newUserID)
	}
	return created, nil
}

// Rebuild recomputes both adjacency sets of userID from edges.
func (fg *followGorm) Rebuild(ctx context.Context, userID uint) error {
	if fg.rc == nil {
		return nil
	}
	if _, err := fg.rebuild(ctx, followingKey(userID), "follower_id", "following_id", userID); err != nil {
		return err
	}
	_, err := fg.rebuild(ctx, followersKey(userID), "following_id", "follower_id", userID)
	return err
}

// RebuildAll recomputes the adjacency sets of every user and returns how many
// users were processed.
func (fg *followGorm) RebuildAll(ctx context.Context) (int, error) {
	if fg.rc == nil {
		return 0, nil
	}
	var users []models.User
	processed := 0
	res := fg.db.WithContext(ctx).Select("id").FindInBatches(&users, 200, func(tx *gorm.DB, batch int) error {
		for _, u := range users {
			if err := fg.Rebuild(ctx, u.ID); err != nil {
				return err
			}
			processed++
		}
		return nil
	})
	if res.Error != nil {
		return processed, res.Error
	}
	return processed, nil
}

// adjacency reads one adjacency set, from Redis when configured.
func (fg *followGorm) adjacency(ctx context.Context, key, matchCol, valueCol string, userID uint) ([]uint, error) {
	if fg.rc == nil {
		return fg.edgeIDs(ctx, matchCol, valueCol, userID)
	}

	members, err := fg.rc.SMembers(ctx, key).Result()
	if err != nil {
		adjacencyCacheTotal.WithLabelValues("error").Inc()
		utils.Logger.Warn("adjacency cache read failed", zap.String("key", key), zap.Error(err))
		return fg.edgeIDs(ctx, matchCol, valueCol, userID)
	}
	if len(members) > 0 {
		adjacencyCacheTotal.WithLabelValues("hit").Inc()
		return parseMembers(members), nil
	}

	adjacencyCacheTotal.WithLabelValues("miss").Inc()
	v, err, _ := fg.group.Do(key, func() (interface{}, error) {
		// shared by every waiter, so one caller going away must not fail the rest
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rebuildTimeout)
		defer cancel()
		return fg.rebuild(fillCtx, key, matchCol, valueCol, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]uint), nil
}

// rebuild replaces one cached set with the ids currently stored as edges.
// The fill watches the set's generation counter, so a write that commits and
// invalidates while the edges are being read makes the fill a no-op.
func (fg *followGorm) rebuild(ctx context.Context, key, matchCol, valueCol string, userID uint) ([]uint, error) {
	var (
		ids     []uint
		readErr error
		loaded  bool
	)
	err := fg.rc.Watch(ctx, func(tx *redis.Tx) error {
		ids, readErr = fg.edgeIDs(ctx, matchCol, valueCol, userID)
		if readErr != nil {
			return readErr
		}
		loaded = true
		members := make([]interface{}, 0, len(ids)+1)
		members = append(members, adjacencySentinel)
		for _, id := range ids {
			members = append(members, strconv.FormatUint(uint64(id), 10))
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SAdd(ctx, key, members...)
			pipe.Expire(ctx, key, fg.ttl)
			return nil
		})
		return err
	}, generationKey(key))

	switch {
	case err == nil:
	case readErr != nil:
		return nil, readErr
	case errors.Is(err, redis.TxFailedErr):
		adjacencyCacheTotal.WithLabelValues("discarded").Inc()
	case !loaded:
		utils.Logger.Warn("adjacency cache watch failed", zap.String("key", key), zap.Error(err))
		return fg.edgeIDs(ctx, matchCol, valueCol, userID)
	default:
		// the edges are already loaded, so serve them and let the next read retry
		utils.Logger.Warn("adjacency cache rebuild failed", zap.String("key", key), zap.Error(err))
	}
	return ids, nil
}

func (fg *followGorm) edgeIDs(ctx context.Context, matchCol, valueCol string, userID uint) ([]uint, error) {
	ids := []uint{}
	err := fg.db.WithContext(ctx).Model(&models.Follow{}).
		Where(matchCol+" = ?", userID).
		Order(valueCol).
		Pluck(valueCol, &ids).Error
	if err != nil {
		return nil, errs.Internal("failed to load follow edges", err)
	}
	return ids, nil
}

// invalidate drops the two sets touched by the edge follower -> following and
// bumps their generation counters, aborting any fill that read the edges
// before this write committed.
func (fg *followGorm) invalidate(ctx context.Context, followerID, followingID uint) {
	if fg.rc == nil {
		return
	}
	keys := []string{followingKey(followerID), followersKey(followingID)}
	_, err := fg.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Incr(ctx, generationKey(key))
			pipe.Expire(ctx, generationKey(key), fg.ttl)
		}
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		utils.Logger.Warn("adjacency cache invalidation failed",
			zap.Uint("follower_id", followerID),
			zap.Uint("following_id", followingID),
			zap.Error(err))
	}
}

func followingKey(userID uint) string {
	return fmt.Sprintf("following:%d", userID)
}

func followersKey(userID uint) string {
	return fmt.Sprintf("followers:%d", userID)
}

func generationKey(key string) string {
	return "adjgen:" + key
}

func parseMembers(members []string) []uint {
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		if m == adjacencySentinel {
			continue
		}
		n, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(n))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
