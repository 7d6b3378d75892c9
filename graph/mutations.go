package graph

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/cppla/socialfeed/services"
)

type createUserInput struct {
	Username    string
	Email       string
	DisplayName string
	Bio         *string
	Avatar      *string
}

type updateUserInput struct {
	ID          *graphql.ID
	DisplayName *string
	Bio         *string
	Avatar      *string
}

type registerInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName *string
	Bio         *string
	Avatar      *string
}

type createPostInput struct {
	Title    string
	Content  string
	ImageURL *string
}

type updatePostInput struct {
	Title    *string
	Content  *string
	ImageURL *string
}

type createCommentInput struct {
	PostID  graphql.ID
	Content string
}

func (r *Resolver) CreateUser(ctx context.Context, args struct{ Input createUserInput }) (*UserResolver, error) {
	u, err := r.svc.User.Create(ctx, services.NewUser{
		Username:    args.Input.Username,
		Email:       args.Input.Email,
		DisplayName: args.Input.DisplayName,
		Bio:         args.Input.Bio,
		Avatar:      args.Input.Avatar,
	})
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return r.user(u), nil
}

func (r *Resolver) UpdateUser(ctx context.Context, args struct{ Input updateUserInput }) (*UserResolver, error) {
	viewer, err := requireViewer(ctx)
	if err != nil {
		return nil, err
	}
	in := services.UpdateUser{
		DisplayName: args.Input.DisplayName,
		Bio:         args.Input.Bio,
		Avatar:      args.Input.Avatar,
	}
	if args.Input.ID != nil {
		if in.ID, err = parseID(*args.Input.ID); err != nil {
			return nil, err
		}
	}
	u, err := r.svc.User.Update(ctx, viewer.ID, in)
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return r.user(u), nil
}

func (r *Resolver) Register(ctx context.Context, args struct{ Input registerInput }) (*AuthPayloadResolver, error) {
	in := services.RegisterInput{
		Username: args.Input.Username,
		Email:    args.Input.Email,
		Password: args.Input.Password,
		Bio:      args.Input.Bio,
		Avatar:   args.Input.Avatar,
	}
	if args.Input.DisplayName != nil {
		in.DisplayName = *args.Input.DisplayName
	}
	payload, err := r.svc.User.Register(ctx, in)
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return &AuthPayloadResolver{p: payload, root: r}, nil
}

func (r *Resolver) Login(ctx context.Context, args struct {
	Email    string
	Password string
}) (*AuthPayloadResolver, error) {
	payload, err := r.svc.User.Login(ctx, args.Email, args.Password)
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return &AuthPayloadResolver{p: payload, root: r}, nil
}

func (r *Resolver) CreatePost(ctx context.Context, args struct{ Input createPostInput }) (*PostResolver, error) {
	viewer, err := requireViewer(ctx)
	if err != nil {
		return nil, err
	}
	p, err := r.svc.Post.Create(ctx, viewer.ID, services.NewPost{
		Title:    args.Input.Title,
		Content:  args.Input.Content,
		ImageURL: args.Input.ImageURL,
	})
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return r.post(p), nil
}

func (r *Resolver) UpdatePost(ctx context.Context, args struct {
	ID    graphql.ID
	Input updatePostInput
}) (*PostResolver, error) {
	viewer, err := requireViewer(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	p, err := r.svc.Post.Update(ctx, viewer.ID, id, services.UpdatePost{
		Title:    args.Input.Title,
		Content:  args.Input.Content,
		ImageURL: args.Input.ImageURL,
	})
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return r.post(p), nil
}

func (r *Resolver) DeletePost(ctx context.Context, args struct{ ID graphql.ID }) (bool, error) {
	viewer, err := requireViewer(ctx)
	if err != nil {
		return false, err
	}
	id, err := parseID(args.ID)
	if err != nil {
		return false, err
	}
	ok, err := r.svc.Post.Delete(ctx, viewer.ID, id)
	if err != nil {
		return false, publicError(ctx, err)
	}
	return ok, nil
}

func (r *Resolver) LikePost(ctx context.Context, args struct{ PostID graphql.ID }) (*LikeResolver, error) {
	viewer, err := requireViewer(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(args.PostID)
	if err != nil {
		return nil, err
	}
	like, err := r.svc.Interaction.Like(ctx, viewer.ID, id)
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return &LikeResolver{l: like, root: r}, nil
}

func (r *Resolver) UnlikePost(ctx context.Context, args struct{ PostID graphql.ID }) (bool, error) {
	viewer, err := requireViewer(ctx)
	if err != nil {
		return false, err
	}
	id, err := parseID(args.PostID)
	if err != nil {
		return false, err
	}
	ok, err := r.svc.Interaction.Unlike(ctx, viewer.ID, id)
	if err != nil {
		return false, publicError(ctx, err)
	}
	return ok, nil
}

func (r *Resolver) AddComment(ctx context.Context, args struct{ Input createCommentInput }) (*CommentResolver, error) {
	viewer, err := requireViewer(ctx)
	if err != nil {
		return nil, err
	}
	postID, err := parseID(args.Input.PostID)
	if err != nil {
		return nil, err
	}
	c, err := r.svc.Interaction.AddComment(ctx, viewer.ID, services.NewComment{PostID: postID, Content: args.Input.Content})
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return &CommentResolver{c: c, root: r}, nil
}

func (r *Resolver) DeleteComment(ctx context.Context, args struct{ ID graphql.ID }) (bool, error) {
	viewer, err := requireViewer(ctx)
	if err != nil {
		return false, err
	}
	id, err := parseID(args.ID)
	if err != nil {
		return false, err
	}
	ok, err := r.svc.Interaction.DeleteComment(ctx, viewer.ID, id)
	if err != nil {
		return false, publicError(ctx, err)
	}
	return ok, nil
}

func (r *Resolver) FollowUser(ctx context.Context, args struct{ UserID graphql.ID }) (*FollowResolver, error) {
	viewer, err := requireViewer(ctx)
	if err != nil {
		return nil, err
	}
	target, err := parseID(args.UserID)
	if err != nil {
		return nil, err
	}
	edge, err := r.svc.Follow.Follow(ctx, viewer.ID, target)
	if err != nil {
		return nil, publicError(ctx, err)
	}
	return &FollowResolver{f: edge, root: r}, nil
}

func (r *Resolver) UnfollowUser(ctx context.Context, args struct{ UserID graphql.ID }) (bool, error) {
	viewer, err := requireViewer(ctx)
	if err != nil {
		return false, err
	}
	target, err := parseID(args.UserID)
	if err != nil {
		return false, err
	}
	if err := r.svc.Follow.Unfollow(ctx, viewer.ID, target); err != nil {
		return false, publicError(ctx, err)
	}
	return true, nil
}
