package graph

import (
	"context"
	"time"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/cppla/socialfeed/auth"
	"github.com/cppla/socialfeed/models"
	"github.com/cppla/socialfeed/services"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// UserResolver resolves the User type.
type UserResolver struct {
	u   *models.User
	svc *services.Services
}

func (r *UserResolver) root() *Resolver { return &Resolver{svc: r.svc} }

func (r *UserResolver) ID() graphql.ID { return toID(r.u.ID) }
func (r *UserResolver) Username() string { return r.u.Username }
func (r *UserResolver) Email() string { return r.u.Email }
func (r *UserResolver) DisplayName() string { return r.u.DisplayName }
func (r *UserResolver) Bio() *string { return r.u.Bio }
func (r *UserResolver) Avatar() *string { return r.u.Avatar }
func (r *UserResolver) CreatedAt() string { return formatTime(r.u.CreatedAt) }
func (r *UserResolver) UpdatedAt() string { return formatTime(r.u.UpdatedAt) }

func (r *UserResolver) Posts(ctx context.Context) ([]*PostResolver, error) {
	posts, err := r.svc.Post.ByAuthor(ctx, r.u.ID)
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return r.root().posts(posts), nil
}

func (r *UserResolver) Comments(ctx context.Context) ([]*CommentResolver, error) {
	comments, err := r.svc.Interaction.CommentsByUser(ctx, r.u.ID)
	if err != nil {
		return nil, publicError(ctx, err)
	}
	out := make([]*CommentResolver, len(comments))
	for i := range comments {
		out[i] = &CommentResolver{c: &comments[i], root: r.root()}
	}
	return out, nil
}

func (r *UserResolver) Likes(ctx context.Context) ([]*LikeResolver, error) {
	likes, err := r.svc.Interaction.LikesByUser(ctx, r.u.ID)
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return likeResolvers(likes, r.root()), nil
}

func (r *UserResolver) Following(ctx context.Context) ([]*UserResolver, error) {
	users, err := r.svc.Follow.Following(ctx, r.u.ID)
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return r.root().users(users), nil
}

func (r *UserResolver) Followers(ctx context.Context) ([]*UserResolver, error) {
	users, err := r.svc.Follow.Followers(ctx, r.u.ID)
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return r.root().users(users), nil
}

func (r *UserResolver) PostCount(ctx context.Context) (int32, error) {
	n, err := r.svc.User.PostCount(ctx, r.u.ID)
	return int32(n), publicError(ctx, err)
}

func (r *UserResolver) FollowerCount(ctx context.Context) (int32, error) {
	n, err := r.svc.Follow.FollowerCount(ctx, r.u.ID)
	return int32(n), publicError(ctx, err)
}

func (r *UserResolver) FollowingCount(ctx context.Context) (int32, error) {
	n, err := r.svc.Follow.FollowingCount(ctx, r.u.ID)
	return int32(n), publicError(ctx, err)
}

// PostResolver resolves the Post type, including the per-viewer fields.
type PostResolver struct {
	p   *models.Post
	svc *services.Services
}

func (r *PostResolver) root() *Resolver { return &Resolver{svc: r.svc} }

func (r *PostResolver) ID() graphql.ID { return toID(r.p.ID) }
func (r *PostResolver) Title() string { return r.p.Title }
func (r *PostResolver) Content() string { return r.p.Content }
func (r *PostResolver) ImageURL() *string { return r.p.ImageURL }
func (r *PostResolver) AuthorID() graphql.ID { return toID(r.p.AuthorID) }
func (r *PostResolver) CreatedAt() string { return formatTime(r.p.CreatedAt) }
func (r *PostResolver) UpdatedAt() string { return formatTime(r.p.UpdatedAt) }

func (r *PostResolver) Author(ctx context.Context) (*UserResolver, error) {
	return resolveUser(ctx, r.svc, r.p.AuthorID)
}

func (r *PostResolver) Comments(ctx context.Context) ([]*CommentResolver, error) {
	comments, err := r.svc.Interaction.CommentsByPost(ctx, r.p.ID)
	if err != nil {
		return nil, publicError(ctx, err)
	}
	out := make([]*CommentResolver, len(comments))
	for i := range comments {
		out[i] = &CommentResolver{c: &comments[i], root: r.root()}
	}
	return out, nil
}

func (r *PostResolver) Likes(ctx context.Context) ([]*LikeResolver, error) {
	likes, err := r.svc.Interaction.LikesByPost(ctx, r.p.ID)
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return likeResolvers(likes, r.root()), nil
}

func (r *PostResolver) LikeCount(ctx context.Context) (int32, error) {
	n, err := r.svc.Interaction.LikeCount(ctx, r.p.ID)
	return int32(n), publicError(ctx, err)
}

func (r *PostResolver) CommentCount(ctx context.Context) (int32, error) {
	n, err := r.svc.Interaction.CommentCount(ctx, r.p.ID)
	return int32(n), publicError(ctx, err)
}

// IsLikedByMe is false for anonymous callers.
func (r *PostResolver) IsLikedByMe(ctx context.Context) (bool, error) {
	viewerID, ok := auth.UserID(ctx)
	if !ok {
		return false, nil
	}
	liked, err := r.svc.Interaction.IsLikedBy(ctx, viewerID, r.p.ID)
	return liked, publicError(ctx, err)
}

type CommentResolver struct {
	c    *models.Comment
	root *Resolver
}

func (r *CommentResolver) ID() graphql.ID { return toID(r.c.ID) }
func (r *CommentResolver) Content() string { return r.c.Content }
func (r *CommentResolver) AuthorID() graphql.ID { return toID(r.c.AuthorID) }
func (r *CommentResolver) PostID() graphql.ID { return toID(r.c.PostID) }
func (r *CommentResolver) CreatedAt() string { return formatTime(r.c.CreatedAt) }
func (r *CommentResolver) UpdatedAt() string { return formatTime(r.c.UpdatedAt) }

func (r *CommentResolver) Author(ctx context.Context) (*UserResolver, error) {
	return resolveUser(ctx, r.root.svc, r.c.AuthorID)
}

func (r *CommentResolver) Post(ctx context.Context) (*PostResolver, error) {
	return resolvePost(ctx, r.root.svc, r.c.PostID)
}

type LikeResolver struct {
	l    *models.Like
	root *Resolver
}

func (r *LikeResolver) ID() graphql.ID { return toID(r.l.ID) }
func (r *LikeResolver) UserID() graphql.ID { return toID(r.l.UserID) }
func (r *LikeResolver) PostID() graphql.ID { return toID(r.l.PostID) }
func (r *LikeResolver) CreatedAt() string { return formatTime(r.l.CreatedAt) }

func (r *LikeResolver) User(ctx context.Context) (*UserResolver, error) {
	return resolveUser(ctx, r.root.svc, r.l.UserID)
}

func (r *LikeResolver) Post(ctx context.Context) (*PostResolver, error) {
	return resolvePost(ctx, r.root.svc, r.l.PostID)
}

func likeResolvers(likes []models.Like, root *Resolver) []*LikeResolver {
	out := make([]*LikeResolver, len(likes))
	for i := range likes {
		out[i] = &LikeResolver{l: &likes[i], root: root}
	}
	return out
}

type FollowResolver struct {
	f    *models.Follow
	root *Resolver
}

func (r *FollowResolver) ID() graphql.ID { return toID(r.f.ID) }
func (r *FollowResolver) FollowerID() graphql.ID { return toID(r.f.FollowerID) }
func (r *FollowResolver) FollowingID() graphql.ID { return toID(r.f.FollowingID) }
func (r *FollowResolver) CreatedAt() string { return formatTime(r.f.CreatedAt) }

func (r *FollowResolver) Follower(ctx context.Context) (*UserResolver, error) {
	return resolveUser(ctx, r.root.svc, r.f.FollowerID)
}

func (r *FollowResolver) Following(ctx context.Context) (*UserResolver, error) {
	return resolveUser(ctx, r.root.svc, r.f.FollowingID)
}

type AuthPayloadResolver struct {
	p    *services.AuthPayload
	root *Resolver
}

func (r *AuthPayloadResolver) Token() string { return r.p.Token }

func (r *AuthPayloadResolver) User() *UserResolver { return r.root.user(r.p.User) }

func resolveUser(ctx context.Context, svc *services.Services, id uint) (*UserResolver, error) {
	u, err := svc.User.ByID(ctx, id)
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return &UserResolver{u: u, svc: svc}, nil
}

func resolvePost(ctx context.Context, svc *services.Services, id uint) (*PostResolver, error) {
	p, err := svc.Post.ByID(ctx, id)
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return &PostResolver{p: p, svc: svc}, nil
}
