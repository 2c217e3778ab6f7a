package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/snapfolio/api/internal/models"
)

type RateRepo struct {
	db *gorm.DB
}

func NewRateRepo(db *gorm.DB) *RateRepo {
	return &RateRepo{db: db}
}

// Create records a star rating. The image's owner cannot rate it, and
// the composite unique index turns a second rate from the same user
// into ErrAlreadyRated.
func (r *RateRepo) Create(ctx context.Context, imageID, userID uuid.UUID, stars int) (*models.Rate, error) {
	if stars < 1 || stars > 5 {
		return nil, ErrStarsRange
	}

	var image models.Image
	if err := r.db.WithContext(ctx).Where("id = ?", imageID).First(&image).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if image.OwnerID == userID {
		return nil, ErrSelfRating
	}

	rate := models.Rate{ImageID: imageID, UserID: userID, Stars: stars}
	if err := r.db.WithContext(ctx).Create(&rate).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "duplicate key value") {
			return nil, ErrAlreadyRated
		}
		return nil, err
	}
	return &rate, nil
}

// Average returns the mean stars for an image, 0 when unrated.
func (r *RateRepo) Average(ctx context.Context, imageID uuid.UUID) (float64, error) {
	var avg *float64
	err := r.db.WithContext(ctx).
		Model(&models.Rate{}).
		Select("AVG(stars)").
		Where("image_id = ?", imageID).
		Scan(&avg).Error
	if err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

func (r *RateRepo) ListByImage(ctx context.Context, imageID uuid.UUID) ([]models.Rate, error) {
	var rates []models.Rate
	err := r.db.WithContext(ctx).
		Where("image_id = ?", imageID).
		Order("created_at ASC").
		Find(&rates).Error
	if err != nil {
		return nil, err
	}
	return rates, nil
}

func (r *RateRepo) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Rate{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
