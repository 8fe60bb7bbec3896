package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, product *Product) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Product, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Product, error)
	FindAll(ctx context.Context, db *gorm.DB) ([]Product, error)
	Update(ctx context.Context, db *gorm.DB, product *Product) error

	CreatePackage(ctx context.Context, db *gorm.DB, pkg *Package) error
	FindPackageByID(ctx context.Context, db *gorm.DB, id string) (*Package, error)
	FindPackagesByProduct(ctx context.Context, db *gorm.DB, productID string) ([]Package, error)
	UpdatePackage(ctx context.Context, db *gorm.DB, pkg *Package) error
}
