// Package models declares the persisted schema. GORM tags are the
// single source of truth for constraints; repositories rely on the
// unique indexes here to surface conflicts.
package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"       json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"       json:"email"`
	PasswordHash string    `gorm:"not null"                   json:"-"`
	Role         string    `gorm:"not null;default:user"      json:"role"`
	Verified     bool      `gorm:"not null;default:false"     json:"verified"`
	Banned       bool      `gorm:"not null;default:false"     json:"banned"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}

type Image struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"   json:"id"`
	OwnerID     uuid.UUID `gorm:"type:uuid;index;not null" json:"owner_id"`
	PublicID    string    `gorm:"not null"               json:"-"`
	URL         string    `gorm:"not null"               json:"url"`
	Description string    `json:"description"`
	Tags        []Tag     `gorm:"many2many:image_tags"   json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Tag struct {
	ID    uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Title string `gorm:"uniqueIndex;not null"     json:"title"`
}

type Comment struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"     json:"id"`
	ImageID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"image_id"`
	AuthorID  uuid.UUID  `gorm:"type:uuid;index;not null" json:"author_id"`
	ParentID  *uuid.UUID `gorm:"type:uuid;index"          json:"parent_id,omitempty"`
	Body      string     `gorm:"not null"                 json:"body"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Rate is one user's star rating of one image. The composite unique
// index enforces one rate per user per image at the schema level.
type Rate struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"                        json:"id"`
	ImageID   uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_rate_once;not null"    json:"image_id"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_rate_once;not null"    json:"user_id"`
	Stars     int       `gorm:"not null;check:stars >= 1 AND stars <= 5"        json:"stars"`
	CreatedAt time.Time `json:"created_at"`
}

// All lists every model for migration.
func All() []any {
	return []any{&User{}, &Image{}, &Tag{}, &Comment{}, &Rate{}}
}
