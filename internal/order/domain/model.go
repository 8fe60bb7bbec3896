package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// Order is created pending by checkout, becomes paid via the payment
// callback, and is completed exactly once by the onboarding flow.
type Order struct {
	ID             string      `json:"id" gorm:"primaryKey;type:uuid"`
	ShopierOrderID *string     `json:"shopier_order_id" gorm:"uniqueIndex"`
	UserID         string      `json:"user_id" gorm:"type:uuid;not null;index"`
	ProductID      string      `json:"product_id" gorm:"type:uuid;not null"`
	PackageID      *string     `json:"package_id" gorm:"type:uuid"`
	Status         OrderStatus `json:"status" gorm:"not null;default:pending"`
	Amount         int64       `json:"amount" gorm:"not null;default:0"`
	CreatedAt      time.Time   `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time   `json:"updated_at" gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

var (
	ErrNotFound     = errors.New("order_not_found")
	ErrNotOwner     = errors.New("order_not_owned_by_caller")
	ErrInvalidState = errors.New("order_invalid_state")
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Order, error)
	FindByShopierID(ctx context.Context, db *gorm.DB, shopierOrderID string) (*Order, error)
	FindByUser(ctx context.Context, db *gorm.DB, userID string) ([]Order, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id string, status OrderStatus) error
}
