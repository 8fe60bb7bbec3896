package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/npclabs/storefront/internal/identity"
	"github.com/npclabs/storefront/internal/onboarding/domain"
	orderdomain "github.com/npclabs/storefront/internal/order/domain"
	partnerdomain "github.com/npclabs/storefront/internal/partner/domain"
	"github.com/npclabs/storefront/internal/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newID() string { return uuid.NewString() }

func (s *Service) Provision(ctx context.Context, caller identity.Caller, req domain.ProvisionRequest) (*domain.Outcome, error) {
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

	now := s.clock.Now(ctx)
	months := s.durationMonths(ctx, o)
	username := strings.TrimSpace(req.Username)

	ownerID, err := s.resolvePartnerIdentity(ctx, caller.Email, req.Password)
	if err != nil {
		return nil, err
	}

	existing, err := s.cafeRepo.FindByUsername(ctx, s.partner, username)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.OwnerID != ownerID {
		return nil, domain.ErrUsernameTaken
	}

	endDate := now.AddDate(0, months, 0)
	var cafe *partnerdomain.Cafe
	if existing != nil {
		// The tenant already belongs to this identity: a prior attempt
		// crashed after creating it. Reuse it and finish the bookkeeping.
		cafe = existing
		if existing.SubscriptionEndDate.Before(endDate) {
			if err := s.cafeRepo.UpdateSubscriptionEnd(ctx, s.partner, username, endDate); err != nil {
				return nil, err
			}
			cafe.SubscriptionEndDate = endDate
		} else {
			endDate = existing.SubscriptionEndDate
		}
		s.log.Info("reusing tenant from a prior provisioning attempt",
			zap.String("order_id", o.ID),
			zap.String("cafe_id", cafe.ID))
	} else {
		cafeSlug, err := slug.Unique(ctx, req.CafeName, s.cfg.SlugRetryLimit, func(ctx context.Context, candidate string) (bool, error) {
			return s.cafeRepo.SlugExists(ctx, s.partner, candidate)
		})
		if err != nil {
			return nil, err
		}

		cafe = &partnerdomain.Cafe{
			ID:      newID(),
			OwnerID: ownerID,
			Name:    strings.TrimSpace(req.CafeName),
			Slug:    cafeSlug,
			Username: username,
			// Plaintext by partner protocol; the partner product reads it.
			Password:            req.Password,
			SubscriptionEndDate: endDate,
			IsActive:            true,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.cafeRepo.Insert(ctx, s.partner, cafe); err != nil {
			return nil, err
		}
	}

	// The tenant exists from here on; storefront bookkeeping failures are
	// recorded for operators, not surfaced as failure to the caller.
	if err := s.finishBookkeeping(ctx, o, cafe.Username, req.Password, endDate, now); err != nil {
		s.recordPartialFailure(ctx, caller, o, "storefront_bookkeeping", err)
		return &domain.Outcome{
			Status:     domain.OutcomeProvisioned,
			RedirectTo: s.cfg.RedirectTo,
			Message:    "Your cafe is ready. Account details will appear in your subscriptions shortly.",
		}, nil
	}

	return &domain.Outcome{
		Status:     domain.OutcomeProvisioned,
		RedirectTo: s.cfg.RedirectTo,
	}, nil
}

// finishBookkeeping runs the storefront side after the tenant side effect:
// complete the order, then create or refresh the subscription and the
// account mirror. All three writes commit together, so a crash mid-sequence
// leaves the order consumable and a retry grants the duration exactly once.
func (s *Service) finishBookkeeping(ctx context.Context, o *orderdomain.Order, username, password string, endDate, now time.Time) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.UpdateStatus(ctx, tx, o.ID, orderdomain.StatusCompleted); err != nil {
			return fmt.Errorf("complete order: %w", err)
		}
		sub, err := s.ensureSubscription(ctx, tx, o.UserID, o.ProductID, o.ID, endDate, now)
		if err != nil {
			return fmt.Errorf("write subscription: %w", err)
		}
		if err := s.writeAccount(ctx, tx, sub, o, username, password, now); err != nil {
			return fmt.Errorf("write account: %w", err)
		}
		return nil
	})
	if err == nil {
		return nil
	}

	// The account table's unique constraints fail the transaction when a
	// concurrent request already finished the same bookkeeping. Account
	// existence decides, independent of how the dialect reports the
	// constraint violation.
	if count, cerr := s.accountRepo.CountByOrder(ctx, s.db, o.ID); cerr == nil && count > 0 {
		s.log.Info("bookkeeping already written by a concurrent request",
			zap.String("order_id", o.ID))
		return nil
	}
	return err
}

// resolvePartnerIdentity finds or creates the partner-side identity for the
// caller's email. The profile table is the fast path; creation races fall
// back to the capped directory scan, and the freshly supplied password is
// written over the found identity so the credentials shown stay valid.
func (s *Service) resolvePartnerIdentity(ctx context.Context, email, password string) (string, error) {
	profile, err := s.profileRepo.FindByEmail(ctx, s.partner, email)
	if err != nil {
		return "", err
	}
	if profile != nil {
		return profile.ID, nil
	}

	user, err := s.directory.CreateUser(ctx, email, password)
	if err == nil {
		return user.ID, nil
	}
	if !errors.Is(err, partnerdomain.ErrEmailRegistered) {
		return "", err
	}

	found, err := s.directory.FindUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if err := s.directory.UpdatePassword(ctx, found.ID, password); err != nil {
		return "", err
	}
	return found.ID, nil
}
