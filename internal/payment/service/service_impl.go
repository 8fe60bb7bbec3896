package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/npclabs/storefront/internal/clock"
	"github.com/npclabs/storefront/internal/config"
	orderdomain "github.com/npclabs/storefront/internal/order/domain"
	"github.com/npclabs/storefront/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const providerShopier = "shopier"

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Cfg   config.Config
	GenID *snowflake.Node

	Repo      domain.Repository
	OrderRepo orderdomain.Repository
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	secret []byte
	genID  *snowflake.Node

	repo      domain.Repository
	orderRepo orderdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("payment.service"),
		clock:     p.Clock,
		secret:    []byte(p.Cfg.Shopier.APISecret),
		genID:     p.GenID,
		repo:      p.Repo,
		orderRepo: p.OrderRepo,
	}
}

func (s *Service) HandleShopierCallback(ctx context.Context, cb domain.ShopierCallback) error {
	if !s.verifySignature(cb) {
		s.log.Warn("rejected shopier callback with bad signature",
			zap.String("platform_order_id", cb.PlatformOrderID))
		return domain.ErrInvalidSignature
	}

	now := s.clock.Now(ctx)
	o, err := s.orderRepo.FindByShopierID(ctx, s.db, cb.PlatformOrderID)
	if err != nil {
		return err
	}

	event := &domain.Event{
		ID:              s.genID.Generate().Int64(),
		Provider:        providerShopier,
		ProviderEventID: cb.PlatformOrderID + ":" + cb.RandomNr,
		EventType:       eventType(cb.Status),
		ReceivedAt:      now,
	}
	if cb.Payload != nil {
		event.Payload = datatypes.JSONMap(cb.Payload)
	}
	if o != nil {
		event.OrderID = &o.ID
	}

	if err := s.repo.Insert(ctx, s.db, event); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Redelivery of an event we already processed.
			s.log.Info("ignoring redelivered shopier event",
				zap.String("provider_event_id", event.ProviderEventID))
			return nil
		}
		return err
	}

	if o == nil {
		s.log.Error("shopier callback references no known order",
			zap.String("platform_order_id", cb.PlatformOrderID))
		return domain.ErrUnknownOrder
	}

	if event.EventType == eventPaymentSucceeded && o.Status == orderdomain.StatusPending {
		if err := s.orderRepo.UpdateStatus(ctx, s.db, o.ID, orderdomain.StatusPaid); err != nil {
			return err
		}
		s.log.Info("order marked paid",
			zap.String("order_id", o.ID),
			zap.String("platform_order_id", cb.PlatformOrderID))
	}

	processed := now
	event.ProcessedAt = &processed
	return s.db.WithContext(ctx).
		Model(&domain.Event{}).
		Where("id = ?", event.ID).
		Update("processed_at", processed).Error
}

const (
	eventPaymentSucceeded = "payment.succeeded"
	eventPaymentFailed    = "payment.failed"
)

func eventType(status string) string {
	if status == "success" {
		return eventPaymentSucceeded
	}
	return eventPaymentFailed
}

// verifySignature checks the provider's HMAC over random_nr + platform
// order id, base64 encoded.
func (s *Service) verifySignature(cb domain.ShopierCallback) bool {
	if len(s.secret) == 0 || cb.Signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(cb.RandomNr + cb.PlatformOrderID))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(cb.Signature))
}
