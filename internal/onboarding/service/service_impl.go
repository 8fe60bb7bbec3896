package service

import (
	"context"
	"time"

	accountdomain "github.com/npclabs/storefront/internal/account/domain"
	auditdomain "github.com/npclabs/storefront/internal/audit/domain"
	"github.com/npclabs/storefront/internal/clock"
	"github.com/npclabs/storefront/internal/config"
	"github.com/npclabs/storefront/internal/identity"
	"github.com/npclabs/storefront/internal/onboarding/domain"
	orderdomain "github.com/npclabs/storefront/internal/order/domain"
	partnerdomain "github.com/npclabs/storefront/internal/partner/domain"
	productdomain "github.com/npclabs/storefront/internal/product/domain"
	"github.com/npclabs/storefront/internal/security/vault"
	subscriptiondomain "github.com/npclabs/storefront/internal/subscription/domain"
	"github.com/npclabs/storefront/pkg/db"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Partner db.Partner
	Log     *zap.Logger
	Clock   clock.Clock
	Cfg     config.Config
	Vault   vault.Provider
	Redis   *goredis.Client `optional:"true"`

	OrderSvc    orderdomain.Service
	OrderRepo   orderdomain.Repository
	ProductRepo productdomain.Repository
	SubRepo     subscriptiondomain.Repository
	AccountRepo accountdomain.Repository
	CafeRepo    partnerdomain.CafeRepository
	ProfileRepo partnerdomain.ProfileRepository
	Directory   partnerdomain.Directory
	AuditSvc    auditdomain.Service
}

type Service struct {
	db      *gorm.DB
	partner db.Partner
	log     *zap.Logger
	clock   clock.Clock
	cfg     config.OnboardingConfig
	vault   vault.Provider
	redis   *goredis.Client

	orderSvc    orderdomain.Service
	orderRepo   orderdomain.Repository
	productRepo productdomain.Repository
	subRepo     subscriptiondomain.Repository
	accountRepo accountdomain.Repository
	cafeRepo    partnerdomain.CafeRepository
	profileRepo partnerdomain.ProfileRepository
	directory   partnerdomain.Directory
	auditSvc    auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		partner: p.Partner,
		log:     p.Log.Named("onboarding.service"),
		clock:   p.Clock,
		cfg:     p.Cfg.Onboarding,
		vault:   p.Vault,
		redis:   p.Redis,

		orderSvc:    p.OrderSvc,
		orderRepo:   p.OrderRepo,
		productRepo: p.ProductRepo,
		subRepo:     p.SubRepo,
		accountRepo: p.AccountRepo,
		cafeRepo:    p.CafeRepo,
		profileRepo: p.ProfileRepo,
		directory:   p.Directory,
		auditSvc:    p.AuditSvc,
	}
}

func (s *Service) Complete(ctx context.Context, caller identity.Caller, orderRef string) (*domain.Outcome, error) {
	release, err := s.acquireGuard(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	defer release()

	o, err := s.resolvePartnerOrder(ctx, caller, orderRef)
	if err != nil {
		return nil, err
	}

	acct, err := s.accountRepo.FindByUserProduct(ctx, s.db, caller.ID, o.ProductID)
	if err != nil {
		return nil, err
	}

	switch o.Status {
	case orderdomain.StatusCompleted:
		// The status flag is advisory here: account existence is the real
		// record of whether provisioning finished.
		count, err := s.accountRepo.CountByOrder(ctx, s.db, o.ID)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return &domain.Outcome{
				Status:     domain.OutcomeAlreadyCompleted,
				RedirectTo: s.cfg.RedirectTo,
				Message:    "This order has already been set up.",
			}, nil
		}
		if acct == nil {
			return &domain.Outcome{Status: domain.OutcomeSetupRequired}, nil
		}
		// A renewal crashed between extending and re-keying the account;
		// finish it.
		return s.renew(ctx, caller, o, acct)
	case orderdomain.StatusPaid:
		if acct == nil {
			return &domain.Outcome{Status: domain.OutcomeSetupRequired}, nil
		}
		return s.renew(ctx, caller, o, acct)
	default:
		return nil, domain.ErrOrderNotPayable
	}
}

// resolvePartnerOrder resolves the reference, enforces ownership, and
// enforces that the order is for the partner-integration product.
func (s *Service) resolvePartnerOrder(ctx context.Context, caller identity.Caller, orderRef string) (*orderdomain.Order, error) {
	o, err := s.orderSvc.ResolveOwned(ctx, orderRef, caller.ID)
	if err != nil {
		return nil, err
	}

	partnerProduct, err := s.productRepo.FindByCode(ctx, s.db, s.cfg.PartnerProductCode)
	if err != nil {
		return nil, err
	}
	if partnerProduct == nil {
		s.log.Error("partner product is not configured",
			zap.String("code", s.cfg.PartnerProductCode))
		return nil, domain.ErrPartnerNotConfigured
	}
	if o.ProductID != partnerProduct.ID {
		return nil, domain.ErrProductMismatch
	}
	return o, nil
}

// checkEligible rejects orders that cannot be consumed. A completed order
// with no account row is a crashed prior attempt and stays eligible.
func (s *Service) checkEligible(ctx context.Context, o *orderdomain.Order) error {
	switch o.Status {
	case orderdomain.StatusPaid:
		return nil
	case orderdomain.StatusCompleted:
		count, err := s.accountRepo.CountByOrder(ctx, s.db, o.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrAlreadyProvisioned
		}
		s.log.Info("re-provisioning completed order with no account row",
			zap.String("order_id", o.ID))
		return nil
	default:
		return domain.ErrOrderNotPayable
	}
}

// durationMonths reads the purchased duration off the order's package. An
// unlinked package is a data-quality problem, defaulted to one month and
// logged so it does not pass silently.
func (s *Service) durationMonths(ctx context.Context, o *orderdomain.Order) int {
	if o.PackageID == nil {
		s.log.Warn("order has no package link, defaulting duration to 1 month",
			zap.String("order_id", o.ID))
		return 1
	}
	pkg, err := s.productRepo.FindPackageByID(ctx, s.db, *o.PackageID)
	if err != nil || pkg == nil {
		s.log.Warn("order package lookup failed, defaulting duration to 1 month",
			zap.String("order_id", o.ID),
			zap.Error(err))
		return 1
	}
	if pkg.DurationMonths <= 0 {
		return 1
	}
	return pkg.DurationMonths
}

// ensureSubscription creates or refreshes the single current-period row for
// the user+product pair.
func (s *Service) ensureSubscription(ctx context.Context, tx *gorm.DB, userID, productID, orderID string, endDate, now time.Time) (*subscriptiondomain.Subscription, error) {
	sub, err := s.subRepo.FindByUserProduct(ctx, tx, userID, productID)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		if err := s.subRepo.UpdatePeriod(ctx, tx, sub.ID, endDate, orderID); err != nil {
			return nil, err
		}
		sub.EndDate = endDate
		sub.OrderID = orderID
		sub.Status = subscriptiondomain.StatusActive
		return sub, nil
	}

	sub = &subscriptiondomain.Subscription{
		ID:        newID(),
		UserID:    userID,
		ProductID: productID,
		OrderID:   orderID,
		StartDate: now,
		EndDate:   endDate,
		Status:    subscriptiondomain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.subRepo.Insert(ctx, tx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// writeAccount seals the credential mirror and inserts or refreshes the
// account row inside the bookkeeping transaction. A constraint violation
// here fails the transaction; finishBookkeeping decides whether a concurrent
// request already did the work.
func (s *Service) writeAccount(ctx context.Context, tx *gorm.DB, sub *subscriptiondomain.Subscription, o *orderdomain.Order, username, password string, now time.Time) error {
	sealed, err := s.vault.Encrypt([]byte(password))
	if err != nil {
		return err
	}

	existing, err := s.accountRepo.FindByUserProduct(ctx, tx, o.UserID, o.ProductID)
	if err != nil {
		return err
	}
	if existing != nil {
		existing.SubscriptionID = sub.ID
		existing.OrderID = o.ID
		existing.Username = username
		existing.PasswordEncrypted = string(sealed)
		return s.accountRepo.Update(ctx, tx, existing)
	}

	acct := &accountdomain.Account{
		ID:                newID(),
		SubscriptionID:    sub.ID,
		UserID:            o.UserID,
		ProductID:         o.ProductID,
		OrderID:           o.ID,
		Username:          username,
		PasswordEncrypted: string(sealed),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return s.accountRepo.Insert(ctx, tx, acct)
}

// recordPartialFailure logs a bookkeeping failure after the partner-side
// effect already happened. There is no automatic rollback: the partner
// datastore has no transactional coupling with ours, so operators finish
// the remaining steps by hand from this record.
func (s *Service) recordPartialFailure(ctx context.Context, caller identity.Caller, o *orderdomain.Order, step string, cause error) {
	s.log.Error("onboarding bookkeeping failed after partner side effect",
		zap.String("order_id", o.ID),
		zap.String("step", step),
		zap.Error(cause))
	actor := caller.ID
	target := o.ID
	s.auditSvc.Record(ctx, &actor, "onboarding.partial_failure", "order", &target, map[string]any{
		"step":  step,
		"error": cause.Error(),
	})
}
