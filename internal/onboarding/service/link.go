package service

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/npclabs/storefront/internal/identity"
	"github.com/npclabs/storefront/internal/onboarding/domain"
	subscriptiondomain "github.com/npclabs/storefront/internal/subscription/domain"
	"go.uber.org/zap"
)

func (s *Service) Link(ctx context.Context, caller identity.Caller, req domain.LinkRequest) (*domain.Outcome, error) {
	release, err := s.acquireGuard(ctx, req.OrderRef)
	if err != nil {
		return nil, err
	}
	defer release()

	o, err := s.resolvePartnerOrder(ctx, caller, req.OrderRef)
	if err != nil {
		return nil, err
	}
	if err := s.checkEligible(ctx, o); err != nil {
		return nil, err
	}

	username := strings.TrimSpace(req.Username)
	cafe, err := s.cafeRepo.FindByUsername(ctx, s.partner, username)
	if err != nil {
		return nil, err
	}
	// One error for both unknown username and wrong password; which of the
	// two failed must not leak.
	if cafe == nil {
		return nil, domain.ErrInvalidTenantCredentials
	}
	if subtle.ConstantTimeCompare([]byte(cafe.Password), []byte(req.Password)) != 1 {
		return nil, domain.ErrInvalidTenantCredentials
	}

	now := s.clock.Now(ctx)
	months := s.durationMonths(ctx, o)
	newEnd := subscriptiondomain.NextEnd(cafe.SubscriptionEndDate, now, months)

	// The tenant keeps its partner-side owner: re-homing it could orphan
	// the original identity's access. Only the expiry moves.
	if err := s.cafeRepo.UpdateSubscriptionEnd(ctx, s.partner, username, newEnd); err != nil {
		return nil, err
	}

	s.log.Info("linked existing tenant",
		zap.String("order_id", o.ID),
		zap.String("cafe_id", cafe.ID))

	if err := s.finishBookkeeping(ctx, o, cafe.Username, req.Password, newEnd, now); err != nil {
		s.recordPartialFailure(ctx, caller, o, "link_bookkeeping", err)
		return &domain.Outcome{
			Status:     domain.OutcomeLinked,
			RedirectTo: s.cfg.RedirectTo,
			Message:    "Your cafe is linked. Account details will appear in your subscriptions shortly.",
		}, nil
	}

	return &domain.Outcome{
		Status:     domain.OutcomeLinked,
		RedirectTo: s.cfg.RedirectTo,
	}, nil
}
