package scheduler

import (
	"context"
	"time"

	"github.com/npclabs/storefront/internal/clock"
	"github.com/npclabs/storefront/internal/config"
	partnerdomain "github.com/npclabs/storefront/internal/partner/domain"
	subscriptiondomain "github.com/npclabs/storefront/internal/subscription/domain"
	"github.com/npclabs/storefront/pkg/db"
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

	SubRepo  subscriptiondomain.Repository
	CafeRepo partnerdomain.CafeRepository
}

// Scheduler runs the expiry sweep: subscriptions past their end date flip to
// expired, and partner tenants past theirs are deactivated. Both updates are
// idempotent, so overlapping runs are harmless.
type Scheduler struct {
	db      *gorm.DB
	partner db.Partner
	log     *zap.Logger
	clock   clock.Clock
	cfg     config.SchedulerConfig

	subRepo  subscriptiondomain.Repository
	cafeRepo partnerdomain.CafeRepository
}

func New(p Params) *Scheduler {
	return &Scheduler{
		db:       p.DB,
		partner:  p.Partner,
		log:      p.Log.Named("scheduler"),
		clock:    p.Clock,
		cfg:      p.Cfg.Scheduler,
		subRepo:  p.SubRepo,
		cafeRepo: p.CafeRepo,
	}
}

func (s *Scheduler) RunForever(ctx context.Context) {
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	s.log.Info("scheduler started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.SweepExpired(ctx); err != nil {
			s.log.Error("expiry sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) SweepExpired(ctx context.Context) error {
	now := s.clock.Now(ctx)

	expired, err := s.subRepo.ExpireDue(ctx, s.db, now)
	if err != nil {
		return err
	}

	deactivated, err := s.cafeRepo.DeactivateExpired(ctx, s.partner, now)
	if err != nil {
		return err
	}

	if expired > 0 || deactivated > 0 {
		s.log.Info("expiry sweep completed",
			zap.Int64("subscriptions_expired", expired),
			zap.Int64("cafes_deactivated", deactivated))
	}
	return nil
}
