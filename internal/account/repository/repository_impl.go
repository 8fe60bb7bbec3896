package repository

import (
	"context"
	"errors"
	"time"

	"github.com/npclabs/storefront/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Create(account).Error
}

func (r *repo) FindByUserProduct(ctx context.Context, db *gorm.DB, userID, productID string) (*domain.Account, error) {
	var a domain.Account
	err := db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repo) FindByUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Account, error) {
	var items []domain.Account
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CountByOrder(ctx context.Context, db *gorm.DB, orderID string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	return count, err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	if account == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE user_product_accounts
		 SET subscription_id = ?, order_id = ?, username = ?, password_encrypted = ?, additional_info = ?, updated_at = ?
		 WHERE id = ?`,
		account.SubscriptionID,
		account.OrderID,
		account.Username,
		account.PasswordEncrypted,
		account.AdditionalInfo,
		time.Now().UTC(),
		account.ID,
	).Error
}
