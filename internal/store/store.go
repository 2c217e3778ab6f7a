// Package store is the GORM persistence layer. It adapts the users
// table to the credential interface the auth core consumes and owns
// database bootstrap.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/snapfolio/api/internal/auth"
	"github.com/snapfolio/api/internal/models"
)

// Open connects to Postgres and migrates the schema.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// CredentialStore implements auth.CredentialStore on the users table.
type CredentialStore struct {
	db *gorm.DB
}

func NewCredentialStore(db *gorm.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

func toIdentity(u *models.User) *auth.Identity {
	return &auth.Identity{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         auth.Role(u.Role),
		Verified:     u.Verified,
		Banned:       u.Banned,
		CreatedAt:    u.CreatedAt,
	}
}

// mapErr translates GORM failures into the auth package's sentinels so
// the core never imports gorm.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return auth.ErrIdentityNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(err.Error(), "UNIQUE constraint failed"),
		strings.Contains(err.Error(), "duplicate key value"):
		return auth.ErrDuplicateIdentity
	default:
		return fmt.Errorf("%w: %v", auth.ErrStoreUnavailable, err)
	}
}

func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, mapErr(err)
	}
	return toIdentity(&user), nil
}

func (s *CredentialStore) FindByID(ctx context.Context, id uuid.UUID) (*auth.Identity, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, mapErr(err)
	}
	return toIdentity(&user), nil
}

func (s *CredentialStore) Create(ctx context.Context, identity *auth.Identity) error {
	user := models.User{
		ID:           identity.ID,
		Email:        identity.Email,
		PasswordHash: identity.PasswordHash,
		Role:         string(identity.Role),
		Verified:     identity.Verified,
		Banned:       identity.Banned,
	}
	return mapErr(s.db.WithContext(ctx).Create(&user).Error)
}

func (s *CredentialStore) updateColumn(ctx context.Context, id uuid.UUID, column string, value any) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return auth.ErrIdentityNotFound
	}
	return nil
}

func (s *CredentialStore) UpdateRole(ctx context.Context, id uuid.UUID, role auth.Role) error {
	return s.updateColumn(ctx, id, "role", string(role))
}

func (s *CredentialStore) UpdateBanned(ctx context.Context, id uuid.UUID, banned bool) error {
	return s.updateColumn(ctx, id, "banned", banned)
}

func (s *CredentialStore) MarkVerified(ctx context.Context, id uuid.UUID) error {
	return s.updateColumn(ctx, id, "verified", true)
}

// SetAvatarURL records the derived avatar URL after a successful upload.
func (s *CredentialStore) SetAvatarURL(ctx context.Context, id uuid.UUID, url string) error {
	return s.updateColumn(ctx, id, "avatar_url", url)
}
