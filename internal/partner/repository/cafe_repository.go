package repository

import (
	"context"
	"errors"
	"time"

	"github.com/npclabs/storefront/internal/partner/domain"
	"github.com/npclabs/storefront/pkg/db"
	"gorm.io/gorm"
)

type cafeRepo struct{}

func ProvideCafeRepository() domain.CafeRepository {
	return &cafeRepo{}
}

func (r *cafeRepo) Insert(ctx context.Context, pdb db.Partner, cafe *domain.Cafe) error {
	return pdb.WithContext(ctx).Create(cafe).Error
}

func (r *cafeRepo) FindByUsername(ctx context.Context, pdb db.Partner, username string) (*domain.Cafe, error) {
	var c domain.Cafe
	err := pdb.WithContext(ctx).Where("username = ?", username).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *cafeRepo) SlugExists(ctx context.Context, pdb db.Partner, slug string) (bool, error) {
	var count int64
	err := pdb.WithContext(ctx).
		Model(&domain.Cafe{}).
		Where("slug = ?", slug).
		Count(&count).Error
	return count > 0, err
}

func (r *cafeRepo) UpdateSubscriptionEnd(ctx context.Context, pdb db.Partner, username string, endDate time.Time) error {
	res := pdb.WithContext(ctx).Exec(
		`UPDATE cafes SET subscription_end_date = ?, is_active = ?, updated_at = ? WHERE username = ?`,
		endDate,
		true,
		time.Now().UTC(),
		username,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrCafeNotFound
	}
	return nil
}

func (r *cafeRepo) DeactivateExpired(ctx context.Context, pdb db.Partner, now time.Time) (int64, error) {
	res := pdb.WithContext(ctx).Exec(
		`UPDATE cafes SET is_active = ?, updated_at = ? WHERE is_active = ? AND subscription_end_date < ?`,
		false,
		now,
		true,
		now,
	)
	return res.RowsAffected, res.Error
}
