package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/snapfolio/api/internal/models"
)

type TagRepo struct {
	db *gorm.DB
}

func NewTagRepo(db *gorm.DB) *TagRepo {
	return &TagRepo{db: db}
}

// Search lists tags whose title contains q, all tags when q is empty.
func (r *TagRepo) Search(ctx context.Context, q string, limit int) ([]models.Tag, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Model(&models.Tag{}).Order("title ASC").Limit(limit)
	if q != "" {
		query = query.Where("title LIKE ?", "%"+q+"%")
	}

	var tags []models.Tag
	if err := query.Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// ImagesByTag lists images carrying the tag, newest first.
func (r *TagRepo) ImagesByTag(ctx context.Context, title string, offset, limit int) ([]models.Image, error) {
	var images []models.Image
	err := r.db.WithContext(ctx).
		Preload("Tags").
		Joins("JOIN image_tags ON image_tags.image_id = images.id").
		Joins("JOIN tags ON tags.id = image_tags.tag_id").
		Where("tags.title = ?", title).
		Order("images.created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&images).Error
	if err != nil {
		return nil, err
	}
	return images, nil
}
