package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/snapfolio/api/internal/models"
)

type CommentRepo struct {
	db *gorm.DB
}

func NewCommentRepo(db *gorm.DB) *CommentRepo {
	return &CommentRepo{db: db}
}

// Create adds a comment or a reply. Replies are one level deep: a
// parent that is itself a reply is rejected, and a reply always hangs
// off its parent's image regardless of what the caller passed.
func (r *CommentRepo) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if comment.ParentID != nil {
			var parent models.Comment
			if err := tx.Where("id = ?", *comment.ParentID).First(&parent).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return err
			}
			if parent.ParentID != nil {
				return ErrReplyDepth
			}
			comment.ImageID = parent.ImageID
		} else {
			var count int64
			if err := tx.Model(&models.Image{}).Where("id = ?", comment.ImageID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
		}
		return tx.Create(comment).Error
	})
}

// Update edits a comment body, author only.
func (r *CommentRepo) Update(ctx context.Context, id, authorID uuid.UUID, body string) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if comment.AuthorID != authorID {
		return nil, ErrNotOwner
	}

	comment.Body = body
	comment.UpdatedAt = time.Now().UTC()
	if err := r.db.WithContext(ctx).Save(&comment).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// Delete removes a comment and its replies.
func (r *CommentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Comment{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Delete(&models.Comment{}, "parent_id = ?", id).Error
	})
}

// ListByImage returns the image's thread: newest top-level comments
// first, each followed by its replies oldest first.
func (r *CommentRepo) ListByImage(ctx context.Context, imageID uuid.UUID) ([]models.Comment, error) {
	var all []models.Comment
	err := r.db.WithContext(ctx).
		Where("image_id = ?", imageID).
		Order("created_at ASC").
		Find(&all).Error
	if err != nil {
		return nil, err
	}

	replies := make(map[uuid.UUID][]models.Comment)
	var top []models.Comment
	for _, c := range all {
		if c.ParentID != nil {
			replies[*c.ParentID] = append(replies[*c.ParentID], c)
		} else {
			top = append(top, c)
		}
	}

	ordered := make([]models.Comment, 0, len(all))
	for i := len(top) - 1; i >= 0; i-- {
		ordered = append(ordered, top[i])
		ordered = append(ordered, replies[top[i].ID]...)
	}
	return ordered, nil
}
