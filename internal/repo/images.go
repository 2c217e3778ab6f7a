// Package repo holds the GORM repositories for the photo domain:
// images, tags, comments and rates. Ownership and role checks live in
// the handlers; repositories enforce only the invariants the schema
// itself carries (uniqueness, reply depth, rating bounds).
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/snapfolio/api/internal/models"
)

const maxTagsPerImage = 5

type ImageRepo struct {
	db *gorm.DB
}

func NewImageRepo(db *gorm.DB) *ImageRepo {
	return &ImageRepo{db: db}
}

// Create stores an image with its tags resolved get-or-create. Tag
// titles are normalized to lowercase so "Sunset" and "sunset" are one
// tag.
func (r *ImageRepo) Create(ctx context.Context, image *models.Image, tagTitles []string) error {
	if len(tagTitles) > maxTagsPerImage {
		return ErrTooManyTags
	}
	if image.ID == uuid.Nil {
		image.ID = uuid.New()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := getOrCreateTags(tx, tagTitles)
		if err != nil {
			return err
		}
		image.Tags = tags
		return tx.Create(image).Error
	})
}

func (r *ImageRepo) Get(ctx context.Context, id uuid.UUID) (*models.Image, error) {
	var image models.Image
	err := r.db.WithContext(ctx).Preload("Tags").Where("id = ?", id).First(&image).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &image, nil
}

func (r *ImageRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) (int64, []models.Image, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&models.Image{}).Where("owner_id = ?", ownerID)
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Image
	err := r.db.WithContext(ctx).
		Preload("Tags").
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

func (r *ImageRepo) UpdateDescription(ctx context.Context, id uuid.UUID, description string) (*models.Image, error) {
	res := r.db.WithContext(ctx).Model(&models.Image{}).
		Where("id = ?", id).
		Updates(map[string]any{"description": description, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *ImageRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Image{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Delete(&models.Comment{}, "image_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Rate{}, "image_id = ?", id).Error
	})
}

func getOrCreateTags(tx *gorm.DB, titles []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(titles))
	seen := make(map[string]bool, len(titles))
	for _, title := range titles {
		title = strings.ToLower(strings.TrimSpace(title))
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true

		var tag models.Tag
		if err := tx.Where("title = ?", title).FirstOrCreate(&tag, models.Tag{Title: title}).Error; err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}
