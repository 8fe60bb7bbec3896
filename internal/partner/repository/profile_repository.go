package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/npclabs/storefront/internal/partner/domain"
	"github.com/npclabs/storefront/pkg/db"
	"gorm.io/gorm"
)

type profileRepo struct{}

func ProvideProfileRepository() domain.ProfileRepository {
	return &profileRepo{}
}

func (r *profileRepo) FindByEmail(ctx context.Context, pdb db.Partner, email string) (*domain.Profile, error) {
	var p domain.Profile
	err := pdb.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
