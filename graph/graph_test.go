package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/socialfeed/auth"
	"github.com/cppla/socialfeed/models"
	"github.com/cppla/socialfeed/services"
	"github.com/cppla/socialfeed/utils"
)

type fixture struct {
	schema *graphql.Schema
	svc    *services.Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:graph_%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	svc, err := services.NewServices(db,
		services.WithAuth(utils.NewTokenManager("graph-secret", time.Hour), utils.NewTokenBlacklist(nil)),
		services.WithFollow(0),
		services.WithUser(),
		services.WithPost(),
		services.WithInteraction(),
		services.WithFeed(10, 100),
	)
	require.NoError(t, err)
	schema, err := NewSchema(svc)
	require.NoError(t, err)
	return &fixture{schema: schema, svc: svc}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := f.svc.User.Create(context.Background(), services.NewUser{
		Username: name, Email: name + "@example.com", DisplayName: name,
	})
	require.NoError(t, err)
	return u
}

// exec runs query as viewer (nil for anonymous) and decodes data into out.
func (f *fixture) exec(t *testing.T, viewer *models.User, query string, vars map[string]interface{}, out interface{}) []string {
	t.Helper()
	ctx := context.Background()
	if viewer != nil {
		ctx = auth.SetUser(ctx, viewer)
	}
	resp := f.schema.Exec(ctx, query, "", vars)
	var codes []string
	for _, e := range resp.Errors {
		code, _ := e.Extensions["code"].(string)
		codes = append(codes, code)
	}
	if out != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, out))
	}
	return codes
}

func id(u uint) string { return fmt.Sprint(u) }

func TestSchemaParses(t *testing.T) {
	assert.NotPanics(t, func() { MustNewSchema(newFixture(t).svc) })
}

func TestProtectedMutationsRequireViewer(t *testing.T) {
	f := newFixture(t)
	bob := f.user(t, "bob")

	codes := f.exec(t, nil, `mutation($id: ID!) { followUser(userId: $id) { _id } }`,
		map[string]interface{}{"id": id(bob.ID)}, nil)
	assert.Equal(t, []string{"UNAUTHENTICATED"}, codes)

	codes = f.exec(t, nil, `mutation { createPost(input: {title: "t", content: "c"}) { _id } }`, nil, nil)
	assert.Equal(t, []string{"UNAUTHENTICATED"}, codes)

	codes = f.exec(t, nil, `{ friendsFeed { _id } }`, nil, nil)
	assert.Equal(t, []string{"UNAUTHENTICATED"}, codes)

	var me struct{ Me *struct{ ID string `json:"_id"` } }
	assert.Empty(t, f.exec(t, nil, `{ me { _id } }`, nil, &me))
	assert.Nil(t, me.Me)
}

func TestFollowErrorsCarryCodes(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	follow := `mutation($id: ID!) { followUser(userId: $id) { followerId followingId follower { username } following { username } } }`

	var out struct {
		FollowUser struct {
			FollowerID  string `json:"followerId"`
			FollowingID string `json:"followingId"`
			Follower    struct{ Username string }
			Following   struct{ Username string }
		} `json:"followUser"`
	}
	require.Empty(t, f.exec(t, alice, follow, map[string]interface{}{"id": id(bob.ID)}, &out))
	assert.Equal(t, id(alice.ID), out.FollowUser.FollowerID)
	assert.Equal(t, "bob", out.FollowUser.Following.Username)

	assert.Equal(t, []string{"ALREADY_FOLLOWING"}, f.exec(t, alice, follow, map[string]interface{}{"id": id(bob.ID)}, nil))
	assert.Equal(t, []string{"SELF_FOLLOW"}, f.exec(t, alice, follow, map[string]interface{}{"id": id(alice.ID)}, nil))
	assert.Equal(t, []string{"NOT_FOUND"}, f.exec(t, alice, follow, map[string]interface{}{"id": "999"}, nil))
	assert.Equal(t, []string{"BAD_USER_INPUT"}, f.exec(t, alice, follow, map[string]interface{}{"id": "abc"}, nil))

	unfollow := `mutation($id: ID!) { unfollowUser(userId: $id) }`
	var un struct{ UnfollowUser bool }
	require.Empty(t, f.exec(t, alice, unfollow, map[string]interface{}{"id": id(bob.ID)}, &un))
	assert.True(t, un.UnfollowUser)
	assert.Equal(t, []string{"NOT_FOLLOWING"}, f.exec(t, alice, unfollow, map[string]interface{}{"id": id(bob.ID)}, nil))
}

func TestUserCountsAndLists(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	ctx := context.Background()
	_, err := f.svc.Follow.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = f.svc.Follow.Follow(ctx, carol.ID, bob.ID)
	require.NoError(t, err)

	var out struct {
		User struct {
			FollowerCount  int32 `json:"followerCount"`
			FollowingCount int32 `json:"followingCount"`
			Followers      []struct{ Username string }
		}
	}
	require.Empty(t, f.exec(t, nil, `query($id: ID!) { user(_id: $id) { followerCount followingCount followers { username } } }`,
		map[string]interface{}{"id": id(bob.ID)}, &out))
	assert.Equal(t, int32(2), out.User.FollowerCount)
	assert.Equal(t, int32(0), out.User.FollowingCount)
	require.Len(t, out.User.Followers, 2)
	assert.Equal(t, "alice", out.User.Followers[0].Username)
	assert.Equal(t, "carol", out.User.Followers[1].Username)

	var missing struct{ User *struct{ Username string } }
	require.Empty(t, f.exec(t, nil, `{ user(_id: "404") { username } }`, nil, &missing))
	assert.Nil(t, missing.User)
}

func TestFeedAnnotationsAndWindow(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.svc.Post.Create(ctx, bob.ID, services.NewPost{Title: fmt.Sprintf("post %d", i), Content: "body"})
		require.NoError(t, err)
	}
	posts, err := f.svc.Post.List(ctx)
	require.NoError(t, err)
	newest := posts[0]
	_, err = f.svc.Interaction.Like(ctx, alice.ID, newest.ID)
	require.NoError(t, err)
	_, err = f.svc.Interaction.AddComment(ctx, alice.ID, services.NewComment{PostID: newest.ID, Content: "nice"})
	require.NoError(t, err)

	type feedPost struct {
		Title        string
		LikeCount    int32 `json:"likeCount"`
		CommentCount int32 `json:"commentCount"`
		IsLikedByMe  bool  `json:"isLikedByMe"`
	}
	var out struct{ Feed []feedPost }
	require.Empty(t, f.exec(t, alice, `{ feed(limit: 2) { title likeCount commentCount isLikedByMe } }`, nil, &out))
	require.Len(t, out.Feed, 2)
	assert.Equal(t, "post 2", out.Feed[0].Title)
	assert.Equal(t, int32(1), out.Feed[0].LikeCount)
	assert.Equal(t, int32(1), out.Feed[0].CommentCount)
	assert.True(t, out.Feed[0].IsLikedByMe)
	assert.False(t, out.Feed[1].IsLikedByMe)

	var anon struct{ Feed []feedPost }
	require.Empty(t, f.exec(t, nil, `{ feed(limit: 1) { title isLikedByMe } }`, nil, &anon))
	require.Len(t, anon.Feed, 1)
	assert.False(t, anon.Feed[0].IsLikedByMe)

	var page struct{ Feed []feedPost }
	require.Empty(t, f.exec(t, nil, `{ feed(limit: 2, offset: 2) { title } }`, nil, &page))
	require.Len(t, page.Feed, 1)
	assert.Equal(t, "post 0", page.Feed[0].Title)
}

func TestFriendsFeedForExplicitUser(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	ctx := context.Background()
	_, err := f.svc.Follow.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	for _, u := range []*models.User{alice, bob, carol} {
		_, err := f.svc.Post.Create(ctx, u.ID, services.NewPost{Title: "by " + u.Username, Content: "body"})
		require.NoError(t, err)
	}

	var out struct {
		FriendsFeed []struct {
			Author struct{ Username string }
		} `json:"friendsFeed"`
	}
	require.Empty(t, f.exec(t, nil, `query($id: ID) { friendsFeed(userId: $id) { author { username } } }`,
		map[string]interface{}{"id": id(alice.ID)}, &out))
	var authors []string
	for _, p := range out.FriendsFeed {
		authors = append(authors, p.Author.Username)
	}
	assert.Equal(t, []string{"bob", "alice"}, authors)

	assert.Equal(t, []string{"NOT_FOUND"}, f.exec(t, nil, `{ friendsFeed(userId: "999") { _id } }`, nil, nil))
}

func TestPostOwnershipErrors(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	p, err := f.svc.Post.Create(context.Background(), alice.ID, services.NewPost{Title: "mine", Content: "body"})
	require.NoError(t, err)

	vars := map[string]interface{}{"id": id(p.ID)}
	assert.Equal(t, []string{"FORBIDDEN"}, f.exec(t, bob, `mutation($id: ID!) { deletePost(_id: $id) }`, vars, nil))
	assert.Equal(t, []string{"FORBIDDEN"}, f.exec(t, bob, `mutation($id: ID!) { updatePost(_id: $id, input: {title: "x"}) { _id } }`, vars, nil))

	var del struct{ DeletePost bool `json:"deletePost"` }
	require.Empty(t, f.exec(t, alice, `mutation($id: ID!) { deletePost(_id: $id) }`, vars, &del))
	assert.True(t, del.DeletePost)

	var gone struct{ Post *struct{ Title string } }
	require.Empty(t, f.exec(t, nil, `query($id: ID!) { post(_id: $id) { title } }`, vars, &gone))
	assert.Nil(t, gone.Post)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	codes := f.exec(t, nil, `mutation { register(input: {username: "x", email: "bad", password: "123"}) { token } }`, nil, nil)
	assert.Equal(t, []string{"BAD_USER_INPUT"}, codes)

	var out struct {
		Register struct {
			Token string
			User  struct{ Username, Email string }
		}
	}
	require.Empty(t, f.exec(t, nil, `mutation { register(input: {username: "dana", email: "Dana@Example.com", password: "secret1"}) { token user { username email } } }`, nil, &out))
	assert.NotEmpty(t, out.Register.Token)
	assert.Equal(t, "dana@example.com", out.Register.User.Email)

	assert.Equal(t, []string{"UNAUTHENTICATED"},
		f.exec(t, nil, `mutation { login(email: "dana@example.com", password: "wrong-pass") { token } }`, nil, nil))
}
