package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Product struct {
	ID          string            `json:"id" gorm:"primaryKey;type:uuid"`
	Code        string            `json:"code" gorm:"uniqueIndex;not null"`
	Name        string            `json:"name" gorm:"not null"`
	Description *string           `json:"description"`
	Active      bool              `json:"active" gorm:"default:true"`
	Metadata    datatypes.JSONMap `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// Package is a purchasable duration of a product. DurationMonths determines
// how much time a successful order grants.
type Package struct {
	ID             string    `json:"id" gorm:"primaryKey;type:uuid"`
	ProductID      string    `json:"product_id" gorm:"type:uuid;not null;index"`
	Name           string    `json:"name" gorm:"not null"`
	DurationMonths int       `json:"duration_months" gorm:"not null;default:1"`
	Price          int64     `json:"price" gorm:"not null;default:0"`
	Active         bool      `json:"active" gorm:"default:true"`
	CreatedAt      time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"not null"`
}

func (Package) TableName() string { return "packages" }
