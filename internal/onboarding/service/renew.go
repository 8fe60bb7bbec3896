package service

import (
	"context"
	"fmt"
	"time"

	accountdomain "github.com/npclabs/storefront/internal/account/domain"
	"github.com/npclabs/storefront/internal/identity"
	"github.com/npclabs/storefront/internal/onboarding/domain"
	orderdomain "github.com/npclabs/storefront/internal/order/domain"
	subscriptiondomain "github.com/npclabs/storefront/internal/subscription/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// renew consumes the order as a pure extension of the caller's existing
// tenant and subscription. No tenant or account row is created: a user has
// exactly one live tenant per product.
func (s *Service) renew(ctx context.Context, caller identity.Caller, o *orderdomain.Order, acct *accountdomain.Account) (*domain.Outcome, error) {
	now := s.clock.Now(ctx)
	months := s.durationMonths(ctx, o)

	sub, err := s.subRepo.FindByID(ctx, s.db, acct.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		sub, err = s.subRepo.FindByUserProduct(ctx, s.db, caller.ID, o.ProductID)
		if err != nil {
			return nil, err
		}
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrNotFound
	}

	newEnd := subscriptiondomain.NextEnd(sub.EndDate, now, months)

	// Partner side first: it is the side effect we cannot roll back, so it
	// is also the one we refuse to proceed without.
	if err := s.cafeRepo.UpdateSubscriptionEnd(ctx, s.partner, acct.Username, newEnd); err != nil {
		return nil, err
	}

	if err := s.finishRenewal(ctx, o, sub, acct, newEnd); err != nil {
		s.recordPartialFailure(ctx, caller, o, "renewal_bookkeeping", err)
	}

	s.log.Info("renewed subscription",
		zap.String("order_id", o.ID),
		zap.String("subscription_id", sub.ID),
		zap.Int("months", months),
		zap.Time("new_end", newEnd))

	return &domain.Outcome{
		Status:     domain.OutcomeRenewed,
		RedirectTo: s.cfg.RedirectTo,
		Message:    fmt.Sprintf("Your subscription now runs until %s.", newEnd.Format("2 January 2006")),
	}, nil
}

// finishRenewal records the extension on the storefront side and re-keys the
// account row to the order that paid for it, so the order stops looking
// consumable. The writes commit together: a crash mid-renewal leaves the
// order paid and the subscription unextended, so the retry recomputes the
// same absolute end date instead of stacking the order's duration twice.
func (s *Service) finishRenewal(ctx context.Context, o *orderdomain.Order, sub *subscriptiondomain.Subscription, acct *accountdomain.Account, newEnd time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.subRepo.UpdatePeriod(ctx, tx, sub.ID, newEnd, o.ID); err != nil {
			return fmt.Errorf("extend subscription: %w", err)
		}
		acct.OrderID = o.ID
		if err := s.accountRepo.Update(ctx, tx, acct); err != nil {
			return fmt.Errorf("re-key account: %w", err)
		}
		if err := s.orderRepo.UpdateStatus(ctx, tx, o.ID, orderdomain.StatusCompleted); err != nil {
			return fmt.Errorf("complete order: %w", err)
		}
		return nil
	})
}
