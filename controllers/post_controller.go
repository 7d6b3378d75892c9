package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/socialfeed/middleware"
	"github.com/cppla/socialfeed/models"
	"github.com/cppla/socialfeed/services"
	"github.com/cppla/socialfeed/utils"
)

// PostController serves read-only JSON views of posts and feeds for clients
// that do not speak GraphQL.
type PostController struct {
	svc *services.Services
}

// NewPostController creates a new PostController instance.
func NewPostController(svc *services.Services) *PostController {
	return &PostController{svc: svc}
}

// GetFeed returns a window of the global feed.
func (p *PostController) GetFeed(ctx *gin.Context) {
	limit, offset := p.svc.Feed.Window(queryInt(ctx, "limit", 0), queryInt(ctx, "offset", 0))
	posts, err := p.svc.Feed.GlobalFeed(ctx.Request.Context(), limit, offset)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	p.respondPosts(ctx, posts, limit, offset)
}

// GetFriendsFeed returns a window of the friends feed of the user in the path.
func (p *PostController) GetFriendsFeed(ctx *gin.Context) {
	userID, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}
	if _, err := p.svc.User.ByID(ctx.Request.Context(), userID); err != nil {
		respondServiceError(ctx, err)
		return
	}
	limit, offset := p.svc.Feed.Window(queryInt(ctx, "limit", 0), queryInt(ctx, "offset", 0))
	posts, err := p.svc.Feed.FriendsFeed(ctx.Request.Context(), userID, limit, offset)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	p.respondPosts(ctx, posts, limit, offset)
}

// GetPost returns a single post with its counters.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}
	post, err := p.svc.Post.ByID(ctx.Request.Context(), postID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	item, err := p.annotate(ctx, *post)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	utils.Success(ctx, item)
}

func (p *PostController) respondPosts(ctx *gin.Context, posts []models.Post, limit, offset int) {
	items := make([]gin.H, 0, len(posts))
	for _, post := range posts {
		item, err := p.annotate(ctx, post)
		if err != nil {
			respondServiceError(ctx, err)
			return
		}
		items = append(items, item)
	}
	utils.Page(ctx, items, limit, offset)
}

func (p *PostController) annotate(ctx *gin.Context, post models.Post) (gin.H, error) {
	reqCtx := ctx.Request.Context()
	likes, err := p.svc.Interaction.LikeCount(reqCtx, post.ID)
	if err != nil {
		return nil, err
	}
	comments, err := p.svc.Interaction.CommentCount(reqCtx, post.ID)
	if err != nil {
		return nil, err
	}
	liked := false
	if viewerID, ok := getUserID(ctx); ok {
		if liked, err = p.svc.Interaction.IsLikedBy(reqCtx, viewerID, post.ID); err != nil {
			return nil, err
		}
	}
	return gin.H{
		"id":             post.ID,
		"author_id":      post.AuthorID,
		"title":          post.Title,
		"content":        post.Content,
		"image_url":      post.ImageURL,
		"created_at":     post.CreatedAt,
		"updated_at":     post.UpdatedAt,
		"like_count":     likes,
		"comment_count":  comments,
		"is_liked_by_me": liked,
	}, nil
}

func getUserID(ctx *gin.Context) (uint, bool) {
	v, ok := ctx.Get(middleware.ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
