package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event is one received payment-provider notification. The unique pair
// (provider, provider_event_id) makes webhook delivery retries harmless.
type Event struct {
	ID              int64             `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Provider        string            `json:"provider" gorm:"not null;uniqueIndex:uniq_payment_provider_event"`
	ProviderEventID string            `json:"provider_event_id" gorm:"not null;uniqueIndex:uniq_payment_provider_event"`
	OrderID         *string           `json:"order_id" gorm:"type:uuid;index"`
	EventType       string            `json:"event_type" gorm:"not null"`
	Payload         datatypes.JSONMap `json:"payload"`
	ReceivedAt      time.Time         `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time        `json:"processed_at"`
}

func (Event) TableName() string { return "payment_events" }

var (
	ErrInvalidSignature = errors.New("invalid_payment_signature")
	ErrUnknownOrder     = errors.New("payment_order_unknown")
)

// ShopierCallback is the provider's server-to-server notification, already
// bound from the form body. Signature covers RandomNr + PlatformOrderID.
type ShopierCallback struct {
	PlatformOrderID string
	Status          string
	RandomNr        string
	Signature       string
	Payload         map[string]any
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *Event) error
}

type Service interface {
	// HandleShopierCallback verifies the signature, records the event and
	// moves the referenced order from pending to paid. Redelivered events
	// are acknowledged without side effects.
	HandleShopierCallback(ctx context.Context, cb ShopierCallback) error
}
