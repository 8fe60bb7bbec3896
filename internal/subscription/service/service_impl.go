package service

import (
	"context"

	accountdomain "github.com/npclabs/storefront/internal/account/domain"
	"github.com/npclabs/storefront/internal/identity"
	productdomain "github.com/npclabs/storefront/internal/product/domain"
	"github.com/npclabs/storefront/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const passwordMask = "********"

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger

	Repo        domain.Repository
	AccountRepo accountdomain.Repository
	ProductRepo productdomain.Repository
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	repo        domain.Repository
	accountRepo accountdomain.Repository
	productRepo productdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("subscription.service"),
		repo:        p.Repo,
		accountRepo: p.AccountRepo,
		productRepo: p.ProductRepo,
	}
}

func (s *Service) ListMine(ctx context.Context, caller identity.Caller) ([]domain.View, error) {
	subs, err := s.repo.FindByUser(ctx, s.db, caller.ID)
	if err != nil {
		return nil, err
	}

	accounts, err := s.accountRepo.FindByUser(ctx, s.db, caller.ID)
	if err != nil {
		return nil, err
	}
	bySub := make(map[string]*accountdomain.Account, len(accounts))
	for i := range accounts {
		bySub[accounts[i].SubscriptionID] = &accounts[i]
	}

	views := make([]domain.View, 0, len(subs))
	for _, sub := range subs {
		v := domain.View{
			ID:        sub.ID,
			ProductID: sub.ProductID,
			StartDate: sub.StartDate,
			EndDate:   sub.EndDate,
			Status:    sub.Status,
		}
		if p, err := s.productRepo.FindByID(ctx, s.db, sub.ProductID); err == nil && p != nil {
			v.ProductName = p.Name
		}
		if acct, ok := bySub[sub.ID]; ok {
			v.Account = &domain.AccountView{
				Username:       acct.Username,
				PasswordMasked: passwordMask,
			}
		}
		views = append(views, v)
	}
	return views, nil
}
