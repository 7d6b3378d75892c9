package graph

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/cppla/socialfeed/auth"
	"github.com/cppla/socialfeed/errs"
	"github.com/cppla/socialfeed/models"
	"github.com/cppla/socialfeed/services"
)

// Resolver is the root resolver for both Query and Mutation.
type Resolver struct {
	svc *services.Services
}

func (r *Resolver) Me(ctx context.Context) (*UserResolver, error) {
	viewer := auth.GetUser(ctx)
	if viewer == nil {
		return nil, nil
	}
	u, err := r.svc.User.ByID(ctx, viewer.ID)
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return r.user(u), nil
}

func (r *Resolver) User(ctx context.Context, args struct{ ID graphql.ID }) (*UserResolver, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	u, err := r.svc.User.ByID(ctx, id)
	if errs.KindOf(err) == errs.KindNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return r.user(u), nil
}

func (r *Resolver) Users(ctx context.Context) ([]*UserResolver, error) {
	users, err := r.svc.User.List(ctx)
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return r.users(users), nil
}

func (r *Resolver) Post(ctx context.Context, args struct{ ID graphql.ID }) (*PostResolver, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	p, err := r.svc.Post.ByID(ctx, id)
	if errs.KindOf(err) == errs.KindNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return r.post(p), nil
}

func (r *Resolver) Posts(ctx context.Context) ([]*PostResolver, error) {
	posts, err := r.svc.Post.List(ctx)
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return r.posts(posts), nil
}

func (r *Resolver) UserPosts(ctx context.Context, args struct{ UserID graphql.ID }) ([]*PostResolver, error) {
	id, err := parseID(args.UserID)
	if err != nil {
		return nil, err
	}
	posts, err := r.svc.Post.ByAuthor(ctx, id)
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return r.posts(posts), nil
}

type feedArgs struct {
	Limit  *int32
	Offset *int32
}

func (r *Resolver) Feed(ctx context.Context, args feedArgs) ([]*PostResolver, error) {
	posts, err := r.svc.Feed.GlobalFeed(ctx, intArg(args.Limit, 0), intArg(args.Offset, 0))
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return r.posts(posts), nil
}

func (r *Resolver) FriendsFeed(ctx context.Context, args struct {
	UserID *graphql.ID
	Limit  *int32
	Offset *int32
}) ([]*PostResolver, error) {
	var viewerID uint
	if args.UserID != nil {
		id, err := parseID(*args.UserID)
		if err != nil {
			return nil, err
		}
		ok, err := r.svc.User.Exists(ctx, id)
		if err != nil {
			return nil, publicError(ctx, err)
		}
		if !ok {
			return nil, errs.NotFound("user")
		}
		viewerID = id
	} else {
		viewer, err := requireViewer(ctx)
		if err != nil {
			return nil, err
		}
		viewerID = viewer.ID
	}
	posts, err := r.svc.Feed.FriendsFeed(ctx, viewerID, intArg(args.Limit, 0), intArg(args.Offset, 0))
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return r.posts(posts), nil
}

func (r *Resolver) user(u *models.User) *UserResolver {
	return &UserResolver{u: u, svc: r.svc}
}

func (r *Resolver) users(list []models.User) []*UserResolver {
	out := make([]*UserResolver, len(list))
	for i := range list {
		out[i] = r.user(&list[i])
	}
	return out
}

func (r *Resolver) post(p *models.Post) *PostResolver {
	return &PostResolver{p: p, svc: r.svc}
}

func (r *Resolver) posts(list []models.Post) []*PostResolver {
	out := make([]*PostResolver, len(list))
	for i := range list {
		out[i] = r.post(&list[i])
	}
	return out
}
