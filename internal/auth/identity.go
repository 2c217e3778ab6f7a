package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role is the ordered permission tier attached to an identity.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "administrator"
)

func (r Role) level() int {
	switch r {
	case RoleUser:
		return 1
	case RoleModerator:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// Valid reports whether r is one of the known tiers.
func (r Role) Valid() bool {
	return r.level() > 0
}

// AtLeast implements the total order user < moderator < administrator.
// Every role comparison in the codebase goes through this method.
func (r Role) AtLeast(min Role) bool {
	return r.level() >= min.level()
}

// Identity is the stored account record. Rows are never physically
// deleted; bans and verification are soft state.
type Identity struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Role         Role
	Verified     bool
	Banned       bool
	CreatedAt    time.Time
}

// Principal is the resolved identity attached to a request after the
// guard admits it. It is threaded through context explicitly, never
// stored in ambient state.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

// CredentialStore is the narrow persistence interface the core depends
// on. Implementations map their backend failures to ErrStoreUnavailable
// and missing rows to ErrIdentityNotFound.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Identity, error)
	Create(ctx context.Context, identity *Identity) error
	UpdateRole(ctx context.Context, id uuid.UUID, role Role) error
	UpdateBanned(ctx context.Context, id uuid.UUID, banned bool) error
	MarkVerified(ctx context.Context, id uuid.UUID) error
}

// Mailer delivers the account verification token. Delivery failures are
// logged and never abort the operation that triggered the email.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
}
