package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/npclabs/storefront/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("order.service"),
		repo: p.Repo,
	}
}

func (s *Service) ResolveRef(ctx context.Context, ref string) (*domain.Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.ErrNotFound
	}

	var (
		o   *domain.Order
		err error
	)
	if uuid.Validate(ref) == nil {
		o, err = s.repo.FindByID(ctx, s.db, ref)
	} else {
		o, err = s.repo.FindByShopierID(ctx, s.db, ref)
	}
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

func (s *Service) ResolveOwned(ctx context.Context, ref, callerID string) (*domain.Order, error) {
	o, err := s.ResolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if o.UserID != callerID {
		s.log.Warn("order ownership check failed",
			zap.String("order_id", o.ID),
			zap.String("caller_id", callerID))
		return nil, domain.ErrNotOwner
	}
	return o, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.repo.FindByUser(ctx, s.db, userID)
}
