package domain

import (
	"context"
	"errors"
	"time"

	"github.com/npclabs/storefront/pkg/db"
)

// Cafe is a tenant record in the partner product's database. Password is
// stored plaintext there by partner protocol; that constraint is documented,
// not ours to fix, and this package is the only place allowed to touch it.
type Cafe struct {
	ID                  string    `json:"id" gorm:"primaryKey;type:uuid"`
	OwnerID             string    `json:"owner_id" gorm:"type:uuid;not null"`
	Name                string    `json:"name" gorm:"not null"`
	Slug                string    `json:"slug" gorm:"uniqueIndex;not null"`
	Username            string    `json:"username" gorm:"uniqueIndex;not null"`
	Password            string    `json:"-" gorm:"not null"`
	SubscriptionEndDate time.Time `json:"subscription_end_date" gorm:"not null"`
	IsActive            bool      `json:"is_active" gorm:"default:true"`
	CreatedAt           time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt           time.Time `json:"updated_at" gorm:"not null"`
}

func (Cafe) TableName() string { return "cafes" }

// Profile mirrors the partner's user-profile table, keyed by the partner
// auth user id. It is the fast path for resolving a partner identity by
// email before falling back to the directory scan.
type Profile struct {
	ID    string `json:"id" gorm:"primaryKey;type:uuid"`
	Email string `json:"email" gorm:"index"`
}

func (Profile) TableName() string { return "profiles" }

var (
	ErrCafeNotFound    = errors.New("cafe_not_found")
	ErrUserNotFound    = errors.New("partner_user_not_found")
	ErrEmailRegistered = errors.New("partner_email_registered")
	ErrScanExhausted   = errors.New("partner_directory_scan_exhausted")
	ErrUnavailable     = errors.New("partner_unavailable")
)

type CafeRepository interface {
	Insert(ctx context.Context, pdb db.Partner, cafe *Cafe) error
	FindByUsername(ctx context.Context, pdb db.Partner, username string) (*Cafe, error)
	SlugExists(ctx context.Context, pdb db.Partner, slug string) (bool, error)
	UpdateSubscriptionEnd(ctx context.Context, pdb db.Partner, username string, endDate time.Time) error
	DeactivateExpired(ctx context.Context, pdb db.Partner, now time.Time) (int64, error)
}

type ProfileRepository interface {
	FindByEmail(ctx context.Context, pdb db.Partner, email string) (*Profile, error)
}

type DirectoryUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Directory is the partner product's auth admin API. The directory has no
// email index, so FindUserByEmail is a capped paginated scan.
type Directory interface {
	CreateUser(ctx context.Context, email, password string) (*DirectoryUser, error)
	FindUserByEmail(ctx context.Context, email string) (*DirectoryUser, error)
	UpdatePassword(ctx context.Context, userID, password string) error
}
