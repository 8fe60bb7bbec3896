package service

import (
	"context"

	"github.com/npclabs/storefront/internal/onboarding/domain"
	"go.uber.org/zap"
)

// acquireGuard takes the single-flight lock for an order reference. With no
// redis configured the guard degrades to a no-op and the unique constraints
// on the account table remain the hard line against double provisioning.
func (s *Service) acquireGuard(ctx context.Context, orderRef string) (func(), error) {
	if s.redis == nil {
		return func() {}, nil
	}

	key := "onboarding:order:" + orderRef
	ok, err := s.redis.SetNX(ctx, key, "1", s.cfg.GuardTTL).Result()
	if err != nil {
		s.log.Warn("onboarding guard unavailable, proceeding without it",
			zap.String("order_ref", orderRef),
			zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, domain.ErrInProgress
	}

	return func() {
		if err := s.redis.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
			s.log.Warn("failed to release onboarding guard",
				zap.String("order_ref", orderRef),
				zap.Error(err))
		}
	}, nil
}
