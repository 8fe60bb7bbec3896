package domain

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Account is the credential/profile artifact shown in "my subscriptions".
// Its existence for a user+product pair is what distinguishes a renewal from
// first-time setup. PasswordEncrypted holds the vault-sealed mirror of the
// partner credential; plaintext lives only in the partner datastore.
type Account struct {
	ID                string            `json:"id" gorm:"primaryKey;type:uuid"`
	SubscriptionID    string            `json:"subscription_id" gorm:"type:uuid;not null"`
	UserID            string            `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:uniq_account_user_product"`
	ProductID         string            `json:"product_id" gorm:"type:uuid;not null;uniqueIndex:uniq_account_user_product"`
	OrderID           string            `json:"order_id" gorm:"type:uuid;not null;uniqueIndex"`
	Username          string            `json:"username" gorm:"not null"`
	PasswordEncrypted string            `json:"-" gorm:"not null"`
	AdditionalInfo    datatypes.JSONMap `json:"additional_info"`
	CreatedAt         time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time         `json:"updated_at" gorm:"not null"`
}

func (Account) TableName() string { return "user_product_accounts" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByUserProduct(ctx context.Context, db *gorm.DB, userID, productID string) (*Account, error)
	FindByUser(ctx context.Context, db *gorm.DB, userID string) ([]Account, error)
	// CountByOrder backs idempotent recovery: a completed order with zero
	// account rows did not actually finish provisioning.
	CountByOrder(ctx context.Context, db *gorm.DB, orderID string) (int64, error)
	Update(ctx context.Context, db *gorm.DB, account *Account) error
}
