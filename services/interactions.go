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

// NewComment is the input for addComment.
type NewComment struct {
	PostID  uint   `validate:"required"`
	Content string `validate:"required,min=1,max=500"`
}

// InteractionService manages likes and comments.
type InteractionService struct {
	db *gorm.DB
}

func NewInteractionService(db *gorm.DB) *InteractionService {
	return &InteractionService{db: db}
}

// Like records that userID likes postID. Liking twice returns the existing row.
func (is *InteractionService) Like(ctx context.Context, userID, postID uint) (*models.Like, error) {
	db := is.db.WithContext(ctx)
	if _, err := findPost(db, postID); err != nil {
		return nil, err
	}

	if like, err := is.findLike(db, userID, postID); err == nil {
		return like, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.Internal("failed to look up like", err)
	}

	like := models.Like{UserID: userID, PostID: postID}
	if err := db.Create(&like).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost a race with a concurrent like of the same pair
			existing, ferr := is.findLike(db, userID, postID)
			if ferr != nil {
				return nil, errs.Internal("failed to look up like", ferr)
			}
			return existing, nil
		}
		return nil, errs.Internal("failed to like post", err)
	}
	return &like, nil
}

// Unlike removes the like of userID on postID and reports whether one existed.
func (is *InteractionService) Unlike(ctx context.Context, userID, postID uint) (bool, error) {
	res := is.db.WithContext(ctx).Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
	if res.Error != nil {
		return false, errs.Internal("failed to unlike post", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (is *InteractionService) findLike(db *gorm.DB, userID, postID uint) (*models.Like, error) {
	var like models.Like
	if err := db.Where("user_id = ? AND post_id = ?", userID, postID).First(&like).Error; err != nil {
		return nil, err
	}
	return &like, nil
}

func (is *InteractionService) LikeCount(ctx context.Context, postID uint) (int64, error) {
	var count int64
	if err := is.db.WithContext(ctx).Model(&models.Like{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
		return 0, errs.Internal("failed to count likes", err)
	}
	return count, nil
}

func (is *InteractionService) IsLikedBy(ctx context.Context, userID, postID uint) (bool, error) {
	var count int64
	err := is.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error
	if err != nil {
		return false, errs.Internal("failed to look up like", err)
	}
	return count > 0, nil
}

func (is *InteractionService) LikesByPost(ctx context.Context, postID uint) ([]models.Like, error) {
	likes := []models.Like{}
	if err := is.db.WithContext(ctx).Where("post_id = ?", postID).Order("id").Find(&likes).Error; err != nil {
		return nil, errs.Internal("failed to list likes", err)
	}
	return likes, nil
}

func (is *InteractionService) LikesByUser(ctx context.Context, userID uint) ([]models.Like, error) {
	likes := []models.Like{}
	if err := is.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Find(&likes).Error; err != nil {
		return nil, errs.Internal("failed to list likes", err)
	}
	return likes, nil
}

// AddComment adds a comment by authorID.
func (is *InteractionService) AddComment(ctx context.Context, authorID uint, in NewComment) (*models.Comment, error) {
	in.Content = strings.TrimSpace(utils.Sanitize(in.Content))
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	db := is.db.WithContext(ctx)
	if _, err := findPost(db, in.PostID); err != nil {
		return nil, err
	}
	comment := models.Comment{PostID: in.PostID, AuthorID: authorID, Content: in.Content}
	if err := db.Create(&comment).Error; err != nil {
		return nil, errs.Internal("failed to add comment", err)
	}
	return &comment, nil
}

// DeleteComment removes a comment. The comment's author and the post's author may do so.
func (is *InteractionService) DeleteComment(ctx context.Context, viewerID, commentID uint) (bool, error) {
	err := is.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		comment, err := findComment(tx, commentID)
		if err != nil {
			return err
		}
		if comment.AuthorID != viewerID {
			post, err := findPost(tx, comment.PostID)
			if err != nil && errs.KindOf(err) != errs.KindNotFound {
				return err
			}
			if post == nil || post.AuthorID != viewerID {
				return errs.Forbidden("you can only delete your own comments")
			}
		}
		if err := tx.Delete(comment).Error; err != nil {
			return errs.Internal("failed to delete comment", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (is *InteractionService) CommentByID(ctx context.Context, id uint) (*models.Comment, error) {
	return findComment(is.db.WithContext(ctx), id)
}

func (is *InteractionService) CommentCount(ctx context.Context, postID uint) (int64, error) {
	var count int64
	if err := is.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
		return 0, errs.Internal("failed to count comments", err)
	}
	return count, nil
}

// CommentsByPost returns a post's comments, oldest first.
func (is *InteractionService) CommentsByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	comments := []models.Comment{}
	if err := is.db.WithContext(ctx).Where("post_id = ?", postID).Order("created_at ASC, id ASC").Find(&comments).Error; err != nil {
		return nil, errs.Internal("failed to list comments", err)
	}
	return comments, nil
}

// CommentsByUser returns a user's comments, newest first.
func (is *InteractionService) CommentsByUser(ctx context.Context, userID uint) ([]models.Comment, error) {
	comments := []models.Comment{}
	if err := is.db.WithContext(ctx).Where("author_id = ?", userID).Order(newestFirst).Find(&comments).Error; err != nil {
		return nil, errs.Internal("failed to list comments", err)
	}
	return comments, nil
}

func findComment(db *gorm.DB, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := db.First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("comment")
		}
		return nil, errs.Internal("failed to get comment", err)
	}
	return &comment, nil
}
