package services

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowClamping(t *testing.T) {
	fs := NewFeedService(nil, nil, 10, 100)
	cases := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{10, 0, 10, 0},
		{0, 0, 10, 0},
		{-5, 3, 10, 3},
		{500, 0, 100, 0},
		{20, -1, 20, 0},
	}
	for _, c := range cases {
		l, o := fs.Window(c.limit, c.offset)
		assert.Equal(t, c.wantLimit, l, "limit for %d", c.limit)
		assert.Equal(t, c.wantOffset, o, "offset for %d", c.offset)
	}
}

func TestGlobalFeedPagination(t *testing.T) {
	s := newTestServices(t, nil, 0)
	ctx := context.Background()
	a := createUser(t, s, "alice")
	b := createUser(t, s, "bob")
	for i, title := range []string{"p1", "p2", "p3", "p4"} {
		author := a.ID
		if i%2 == 1 {
			author = b.ID
		}
		createPost(t, s, author, title)
	}

	first, err := s.Feed.GlobalFeed(ctx, 2, 0)
	require.NoError(t, err)
	second, err := s.Feed.GlobalFeed(ctx, 2, 2)
	require.NoError(t, err)
	all, err := s.Feed.GlobalFeed(ctx, 4, 0)
	require.NoError(t, err)

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.NotContains(t, postIDs(second), postIDs(first)[0])
	assert.NotContains(t, postIDs(second), postIDs(first)[1])
	assert.Equal(t, postIDs(all), append(postIDs(first), postIDs(second)...))
	assert.Equal(t, "p4", all[0].Title)

	again, err := s.Feed.GlobalFeed(ctx, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, postIDs(all), postIDs(again))

	past, err := s.Feed.GlobalFeed(ctx, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestFriendsFeedScenario(t *testing.T) {
	for name, withRedis := range map[string]bool{"edges only": false, "redis cache": true} {
		t.Run(name, func(t *testing.T) {
			var rc *redis.Client
			if withRedis {
				_, rc = newTestRedis(t)
			}
			s := newTestServices(t, rc, 0)
			ctx := context.Background()
			a := createUser(t, s, "alice")
			b := createUser(t, s, "bob")
			createUser(t, s, "carol")
			p1 := createPost(t, s, a.ID, "P1")
			p2 := createPost(t, s, b.ID, "P2")

			feed, err := s.Feed.FriendsFeed(ctx, a.ID, 10, 0)
			require.NoError(t, err)
			assert.Equal(t, []uint{p1.ID}, postIDs(feed))

			_, err = s.Follow.Follow(ctx, a.ID, b.ID)
			require.NoError(t, err)

			feed, err = s.Feed.FriendsFeed(ctx, a.ID, 10, 0)
			require.NoError(t, err)
			assert.Equal(t, []uint{p2.ID, p1.ID}, postIDs(feed))

			require.NoError(t, s.Follow.Unfollow(ctx, a.ID, b.ID))
			feed, err = s.Feed.FriendsFeed(ctx, a.ID, 10, 0)
			require.NoError(t, err)
			assert.Equal(t, []uint{p1.ID}, postIDs(feed))
		})
	}
}

func TestFriendsFeedOnlyContainsViewerAndFollowed(t *testing.T) {
	s := newTestServices(t, nil, 0)
	ctx := context.Background()
	v := createUser(t, s, "viewer")
	f := createUser(t, s, "friend")
	o := createUser(t, s, "other")
	for _, id := range []uint{v.ID, f.ID, o.ID, o.ID, f.ID} {
		createPost(t, s, id, "post")
	}
	_, err := s.Follow.Follow(ctx, v.ID, f.ID)
	require.NoError(t, err)
	// the reverse edge must not leak other's posts
	_, err = s.Follow.Follow(ctx, o.ID, v.ID)
	require.NoError(t, err)

	feed, err := s.Feed.FriendsFeed(ctx, v.ID, 100, 0)
	require.NoError(t, err)
	require.Len(t, feed, 3)
	for _, p := range feed {
		assert.Contains(t, []uint{v.ID, f.ID}, p.AuthorID)
	}
}
