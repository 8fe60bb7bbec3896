package domain

import (
	"context"
	"errors"

	"github.com/npclabs/storefront/internal/identity"
)

type OutcomeStatus string

const (
	OutcomeProvisioned      OutcomeStatus = "provisioned"
	OutcomeLinked           OutcomeStatus = "linked"
	OutcomeRenewed          OutcomeStatus = "renewed"
	OutcomeSetupRequired    OutcomeStatus = "setup_required"
	OutcomeAlreadyCompleted OutcomeStatus = "already_completed"
)

// Outcome is the tagged result returned to the caller. There is no
// partial-success shape: bookkeeping failures after the tenant side effect
// are logged for operators, not surfaced here.
type Outcome struct {
	Status     OutcomeStatus `json:"status"`
	RedirectTo string        `json:"redirect_to,omitempty"`
	Message    string        `json:"message,omitempty"`
}

type ProvisionRequest struct {
	OrderRef string
	CafeName string
	Username string
	Password string
}

type LinkRequest struct {
	OrderRef string
	Username string
	Password string
}

var (
	// ErrProductMismatch means a provisioning entry point received an order
	// for the wrong product. That is an upstream routing bug, not a skip.
	ErrProductMismatch = errors.New("product_mismatch")
	// ErrOrderNotPayable covers pending and cancelled orders.
	ErrOrderNotPayable = errors.New("order_not_payable")
	// ErrAlreadyProvisioned is the idempotency conflict: the order completed
	// and its account row exists.
	ErrAlreadyProvisioned = errors.New("order_already_provisioned")
	// ErrUsernameTaken means the username belongs to a different partner
	// identity. Never auto-resolved.
	ErrUsernameTaken = errors.New("username_taken")
	// ErrInvalidTenantCredentials deliberately does not say whether the
	// username or the password was wrong.
	ErrInvalidTenantCredentials = errors.New("invalid_tenant_credentials")
	// ErrInProgress means another request already holds the single-flight
	// guard for this order.
	ErrInProgress = errors.New("onboarding_in_progress")
	// ErrPartnerNotConfigured is an upstream configuration failure,
	// surfaced generically.
	ErrPartnerNotConfigured = errors.New("partner_not_configured")
)

type Service interface {
	// Complete decides between silent renewal and first-time setup for the
	// referenced order, based purely on whether the caller already has an
	// account for the order's product.
	Complete(ctx context.Context, caller identity.Caller, orderRef string) (*Outcome, error)

	// Provision creates a new partner tenant for the order and links the
	// storefront subscription and account records to it.
	Provision(ctx context.Context, caller identity.Caller, req ProvisionRequest) (*Outcome, error)

	// Link attaches an existing partner tenant, verified by its own
	// credentials, without changing the tenant's partner-side owner.
	Link(ctx context.Context, caller identity.Caller, req LinkRequest) (*Outcome, error)
}
