package services

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/socialfeed/errs"
	"github.com/cppla/socialfeed/models"
)

func TestFollowUpdatesAdjacencyAndCounts(t *testing.T) {
	for name, withRedis := range map[string]bool{"edges only": false, "redis cache": true} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var rc *redis.Client
			if withRedis {
				_, rc = newTestRedis(t)
			}
			s := newTestServices(t, rc, 0)
			a := createUser(t, s, "alice")
			b := createUser(t, s, "bob")

			// prime the cache so the write has something to invalidate
			ids, err := s.Follow.FollowingIDs(ctx, a.ID)
			require.NoError(t, err)
			assert.Empty(t, ids)

			before, err := s.Follow.FollowerCount(ctx, b.ID)
			require.NoError(t, err)

			edge, err := s.Follow.Follow(ctx, a.ID, b.ID)
			require.NoError(t, err)
			assert.Equal(t, a.ID, edge.FollowerID)
			assert.Equal(t, b.ID, edge.FollowingID)

			following, err := s.Follow.FollowingIDs(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, []uint{b.ID}, following)

			followers, err := s.Follow.FollowerIDs(ctx, b.ID)
			require.NoError(t, err)
			assert.Equal(t, []uint{a.ID}, followers)

			after, err := s.Follow.FollowerCount(ctx, b.ID)
			require.NoError(t, err)
			assert.Equal(t, before+1, after)

			n, err := s.Follow.FollowingCount(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		})
	}
}

func TestFollowTwiceFails(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t, nil, 0)
	a := createUser(t, s, "alice")
	b := createUser(t, s, "bob")

	_, err := s.Follow.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)

	_, err = s.Follow.Follow(ctx, a.ID, b.ID)
	require.ErrorIs(t, err, errs.ErrAlreadyFollowing)
	assert.Equal(t, errs.KindAlreadyFollowing, errs.KindOf(err))

	var rows int64
	require.NoError(t, s.DB().Model(&models.Follow{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)

	n, err := s.Follow.FollowerCount(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestFollowSelfFails(t *testing.T) {
	s := newTestServices(t, nil, 0)
	a := createUser(t, s, "alice")

	_, err := s.Follow.Follow(context.Background(), a.ID, a.ID)
	require.ErrorIs(t, err, errs.ErrSelfFollow)
}

func TestFollowMissingUser(t *testing.T) {
	s := newTestServices(t, nil, 0)
	a := createUser(t, s, "alice")

	_, err := s.Follow.Follow(context.Background(), a.ID, 9999)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestUnfollow(t *testing.T) {
	ctx := context.Background()
	_, rc := newTestRedis(t)
	s := newTestServices(t, rc, 0)
	a := createUser(t, s, "alice")
	b := createUser(t, s, "bob")

	err := s.Follow.Unfollow(ctx, a.ID, b.ID)
	require.ErrorIs(t, err, errs.ErrNotFollowing)

	_, err = s.Follow.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	followers, err := s.Follow.FollowerIDs(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, []uint{a.ID}, followers)

	require.NoError(t, s.Follow.Unfollow(ctx, a.ID, b.ID))

	following, err := s.Follow.FollowingIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, following)
	followers, err = s.Follow.FollowerIDs(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, followers)

	_, err = s.Follow.ByPair(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, errs.ErrNotFollowing)
}

func TestAdjacencyCacheIsRebuiltFromEdges(t *testing.T) {
	ctx := context.Background()
	mr, rc := newTestRedis(t)
	s := newTestServices(t, rc, 0)
	a := createUser(t, s, "alice")
	b := createUser(t, s, "bob")
	c := createUser(t, s, "carol")

	_, err := s.Follow.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = s.Follow.FollowingIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(followingKey(a.ID)))

	// an edge written behind the service's back is picked up by a rebuild
	require.NoError(t, s.DB().Create(&models.Follow{FollowerID: a.ID, FollowingID: c.ID}).Error)
	stale, err := s.Follow.FollowingIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{b.ID}, stale)

	require.NoError(t, s.Follow.Rebuild(ctx, a.ID))
	fresh, err := s.Follow.FollowingIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{b.ID, c.ID}, fresh)

	processed, err := s.Follow.RebuildAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, processed)
}

func TestAdjacencyFallsBackWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	mr, rc := newTestRedis(t)
	s := newTestServices(t, rc, 0)
	a := createUser(t, s, "alice")
	b := createUser(t, s, "bob")
	_, err := s.Follow.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)

	mr.SetError("ERR server unavailable")
	ids, err := s.Follow.FollowingIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{b.ID}, ids)
}

func TestAdjacencyMatchesEdges(t *testing.T) {
	ctx := context.Background()
	_, rc := newTestRedis(t)
	s := newTestServices(t, rc, 0)
	users := []*models.User{
		createUser(t, s, "alice"),
		createUser(t, s, "bob"),
		createUser(t, s, "carol"),
		createUser(t, s, "dave"),
	}
	pairs := [][2]int{{0, 1}, {0, 2}, {1, 0}, {2, 3}, {3, 0}, {1, 3}}
	for _, p := range pairs {
		_, err := s.Follow.Follow(ctx, users[p[0]].ID, users[p[1]].ID)
		require.NoError(t, err)
	}
	require.NoError(t, s.Follow.Unfollow(ctx, users[0].ID, users[2].ID))

	for _, u := range users {
		following, err := s.Follow.FollowingIDs(ctx, u.ID)
		require.NoError(t, err)
		for _, id := range following {
			ok, err := s.Follow.IsFollowing(ctx, u.ID, id)
			require.NoError(t, err)
			assert.True(t, ok, "%d -> %d cached without edge", u.ID, id)
		}
		count, err := s.Follow.FollowingCount(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, count, int64(len(following)))

		followers, err := s.Follow.FollowerIDs(ctx, u.ID)
		require.NoError(t, err)
		for _, id := range followers {
			ok, err := s.Follow.IsFollowing(ctx, id, u.ID)
			require.NoError(t, err)
			assert.True(t, ok, "%d -> %d cached without edge", id, u.ID)
		}
		count, err = s.Follow.FollowerCount(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, count, int64(len(followers)))
	}
}

func TestBootstrapNewUser(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t, nil, 0)
	a := createUser(t, s, "alice")
	b := createUser(t, s, "bob")
	c := createUser(t, s, "carol")
	d := createUser(t, s, "dave")

	bootstrap := NewFollowService(s.DB(), nil, 0, 8)
	created, err := bootstrap.BootstrapNewUser(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, created)

	var rows int64
	require.NoError(t, s.DB().Model(&models.Follow{}).Count(&rows).Error)
	assert.Equal(t, int64(6), rows)

	following, err := bootstrap.FollowingCount(ctx, d.ID)
	require.NoError(t, err)
	followers, err := bootstrap.FollowerCount(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), following)
	assert.Equal(t, int64(3), followers)

	ids, err := bootstrap.FollowingIDs(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID, b.ID, c.ID}, ids)

	// running again does not duplicate edges
	created, err = bootstrap.BootstrapNewUser(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}

func TestBootstrapCapsFriends(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t, nil, 0)
	for _, name := range []string{"user01", "user02", "user03", "user04", "user05"} {
		createUser(t, s, name)
	}
	newcomer := createUser(t, s, "newcomer")

	created, err := NewFollowService(s.DB(), nil, 0, 2).BootstrapNewUser(ctx, newcomer.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, created)
}

func TestFollowingAndFollowersUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t, nil, 0)
	a := createUser(t, s, "alice")
	b := createUser(t, s, "bob")
	c := createUser(t, s, "carol")
	_, err := s.Follow.Follow(ctx, a.ID, c.ID)
	require.NoError(t, err)
	_, err = s.Follow.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)

	following, err := s.Follow.Following(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, following, 2)
	assert.Equal(t, "bob", following[0].Username)
	assert.Equal(t, "carol", following[1].Username)

	followers, err := s.Follow.Followers(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "alice", followers[0].Username)

	none, err := s.Follow.Followers(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

// interleaveHook runs onFill once, just before the first pipeline that writes
// an adjacency set reaches Redis. onWatch runs before the first WATCH.
type interleaveHook struct {
	onFill  func()
	onWatch func()
	fill    sync.Once
	watch   sync.Once
}

func (h *interleaveHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *interleaveHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "watch" && h.onWatch != nil {
			h.watch.Do(h.onWatch)
		}
		return next(ctx, cmd)
	}
}

func (h *interleaveHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if h.onFill != nil {
			for _, cmd := range cmds {
				if cmd.Name() == "sadd" {
					h.fill.Do(h.onFill)
					break
				}
			}
		}
		return next(ctx, cmds)
	}
}

func TestAdjacencyFillLosesToConcurrentUnfollow(t *testing.T) {
	ctx := context.Background()
	mr, rc := newTestRedis(t)
	s := newTestServices(t, rc, 0)
	a := createUser(t, s, "alice")
	b := createUser(t, s, "bob")
	createPost(t, s, b.ID, "from bob")
	_, err := s.Follow.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)

	// the unfollow commits after the fill read the edges but before it writes
	rc.AddHook(&interleaveHook{onFill: func() {
		require.NoError(t, s.Follow.Unfollow(ctx, a.ID, b.ID))
	}})

	ids, err := s.Follow.FollowingIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{b.ID}, ids, "the read itself raced the write")
	assert.False(t, mr.Exists(followingKey(a.ID)), "stale fill must be discarded")

	ok, err := s.Follow.IsFollowing(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err = s.Follow.FollowingIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.True(t, mr.Exists(followingKey(a.ID)))

	feed, err := s.Feed.FriendsFeed(ctx, a.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, feed)
}

func TestAdjacencyFillSurvivesCallerCancellation(t *testing.T) {
	mr, rc := newTestRedis(t)
	s := newTestServices(t, rc, 0)
	a := createUser(t, s, "alice")
	b := createUser(t, s, "bob")
	_, err := s.Follow.Follow(context.Background(), a.ID, b.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rc.AddHook(&interleaveHook{onWatch: cancel})

	ids, err := s.Follow.FollowingIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{b.ID}, ids)
	assert.True(t, mr.Exists(followingKey(a.ID)))
}
