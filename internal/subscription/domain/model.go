package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type SubscriptionStatus string

const (
	StatusActive  SubscriptionStatus = "active"
	StatusExpired SubscriptionStatus = "expired"
)

// Subscription is the user's current standing for a product. Renewals extend
// EndDate on the same row; historical periods are not modeled.
type Subscription struct {
	ID        string             `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    string             `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:uniq_sub_user_product"`
	ProductID string             `json:"product_id" gorm:"type:uuid;not null;uniqueIndex:uniq_sub_user_product"`
	OrderID   string             `json:"order_id" gorm:"type:uuid;not null"`
	StartDate time.Time          `json:"start_date" gorm:"not null"`
	EndDate   time.Time          `json:"end_date" gorm:"not null"`
	Status    SubscriptionStatus `json:"status" gorm:"not null;default:active"`
	CreatedAt time.Time          `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time          `json:"updated_at" gorm:"not null"`
}

func (Subscription) TableName() string { return "subscriptions" }

var ErrNotFound = errors.New("subscription_not_found")

// NextEnd computes the expiry after consuming months of purchased time.
// Anchoring on max(current, now) keeps extension monotonic: renewing before
// expiry stacks on the remaining time, renewing after expiry starts from now.
func NextEnd(current, now time.Time, months int) time.Time {
	anchor := current
	if now.After(anchor) {
		anchor = now
	}
	return anchor.AddDate(0, months, 0)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Subscription, error)
	FindByUserProduct(ctx context.Context, db *gorm.DB, userID, productID string) (*Subscription, error)
	FindByUser(ctx context.Context, db *gorm.DB, userID string) ([]Subscription, error)
	UpdatePeriod(ctx context.Context, db *gorm.DB, id string, endDate time.Time, orderID string) error
	ExpireDue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}
