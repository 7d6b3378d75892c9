package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/cppla/socialfeed/errs"
	"github.com/cppla/socialfeed/models"
	"github.com/cppla/socialfeed/utils"
)

// NewPost is the input for createPost.
type NewPost struct {
	Title    string  `validate:"required,min=1,max=100"`
	Content  string  `validate:"required,min=1,max=2000"`
	ImageURL *string `validate:"omitempty,url,max=1024"`
}

// UpdatePost carries the editable post fields; nil leaves a field unchanged.
type UpdatePost struct {
	Title    *string `validate:"omitempty,min=1,max=100"`
	Content  *string `validate:"omitempty,min=1,max=2000"`
	ImageURL *string `validate:"omitempty,url,max=1024"`
}

// PostService manages posts.
type PostService struct {
	db *gorm.DB
}

func NewPostService(db *gorm.DB) *PostService {
	return &PostService{db: db}
}

// Create inserts a post authored by authorID.
func (ps *PostService) Create(ctx context.Context, authorID uint, in NewPost) (*models.Post, error) {
	in.Title = utils.SanitizeText(in.Title)
	in.Content = strings.TrimSpace(utils.Sanitize(in.Content))
	in.ImageURL = emptyToNil(trimOptional(in.ImageURL))
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var count int64
	if err := ps.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", authorID).Count(&count).Error; err != nil {
		return nil, errs.Internal("failed to look up author", err)
	}
	if count == 0 {
		return nil, errs.NotFound("user")
	}

	post := models.Post{
		AuthorID: authorID,
		Title:    in.Title,
		Content:  in.Content,
		ImageURL: in.ImageURL,
	}
	if err := ps.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, errs.Internal("failed to create post", err)
	}
	return &post, nil
}

// ByID returns the post with the given id.
func (ps *PostService) ByID(ctx context.Context, id uint) (*models.Post, error) {
	return findPost(ps.db.WithContext(ctx), id)
}

// List returns every post, newest first.
func (ps *PostService) List(ctx context.Context) ([]models.Post, error) {
	posts := []models.Post{}
	if err := ps.db.WithContext(ctx).Order(newestFirst).Find(&posts).Error; err != nil {
		return nil, errs.Internal("failed to list posts", err)
	}
	return posts, nil
}

// ByAuthor returns the posts of authorID, newest first.
func (ps *PostService) ByAuthor(ctx context.Context, authorID uint) ([]models.Post, error) {
	posts := []models.Post{}
	if err := ps.db.WithContext(ctx).Where("author_id = ?", authorID).Order(newestFirst).Find(&posts).Error; err != nil {
		return nil, errs.Internal("failed to list posts", err)
	}
	return posts, nil
}

// Update edits a post. Only its author may do so.
func (ps *PostService) Update(ctx context.Context, viewerID, postID uint, in UpdatePost) (*models.Post, error) {
	if in.Title != nil {
		v := utils.SanitizeText(*in.Title)
		in.Title = &v
	}
	if in.Content != nil {
		v := strings.TrimSpace(utils.Sanitize(*in.Content))
		in.Content = &v
	}
	updates := map[string]interface{}{}
	if in.ImageURL = trimOptional(in.ImageURL); in.ImageURL != nil && *in.ImageURL == "" {
		updates["image_url"] = nil
		in.ImageURL = nil
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	post, err := ps.ByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != viewerID {
		return nil, errs.Forbidden("you can only edit your own posts")
	}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.Content != nil {
		updates["content"] = *in.Content
	}
	if in.ImageURL != nil {
		updates["image_url"] = *in.ImageURL
	}
	if len(updates) == 0 {
		return post, nil
	}
	if err := ps.db.WithContext(ctx).Model(post).Updates(updates).Error; err != nil {
		return nil, errs.Internal("failed to update post", err)
	}
	return ps.ByID(ctx, postID)
}

// Delete removes a post with its comments and likes in one transaction.
// Only its author may do so.
func (ps *PostService) Delete(ctx context.Context, viewerID, postID uint) (bool, error) {
	err := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := findPost(tx, postID)
		if err != nil {
			return err
		}
		if post.AuthorID != viewerID {
			return errs.Forbidden("you can only delete your own posts")
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
			return errs.Internal("failed to delete comments", err)
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Like{}).Error; err != nil {
			return errs.Internal("failed to delete likes", err)
		}
		if err := tx.Delete(post).Error; err != nil {
			return errs.Internal("failed to delete post", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

const newestFirst = "created_at DESC, id DESC"

func findPost(db *gorm.DB, id uint) (*models.Post, error) {
	var post models.Post
	if err := db.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("post")
		}
		return nil, errs.Internal("failed to get post", err)
	}
	return &post, nil
}
