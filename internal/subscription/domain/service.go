package domain

import (
	"context"
	"time"

	"github.com/npclabs/storefront/internal/identity"
)

// AccountView is the masked credential mirror shown on the subscriptions
// page. Plaintext only flows during provisioning; the stored mirror is never
// decrypted for display.
type AccountView struct {
	Username       string `json:"username"`
	PasswordMasked string `json:"password_masked"`
}

type View struct {
	ID          string             `json:"id"`
	ProductID   string             `json:"product_id"`
	ProductName string             `json:"product_name"`
	StartDate   time.Time          `json:"start_date"`
	EndDate     time.Time          `json:"end_date"`
	Status      SubscriptionStatus `json:"status"`
	Account     *AccountView       `json:"account,omitempty"`
}

type Service interface {
	ListMine(ctx context.Context, caller identity.Caller) ([]View, error)
}
