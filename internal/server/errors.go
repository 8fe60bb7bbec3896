package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/npclabs/storefront/internal/identity"
	onboardingdomain "github.com/npclabs/storefront/internal/onboarding/domain"
	orderdomain "github.com/npclabs/storefront/internal/order/domain"
	partnerdomain "github.com/npclabs/storefront/internal/partner/domain"
	paymentdomain "github.com/npclabs/storefront/internal/payment/domain"
	productdomain "github.com/npclabs/storefront/internal/product/domain"
	subscriptiondomain "github.com/npclabs/storefront/internal/subscription/domain"
)

type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return e.Code }

func newAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

func invalidRequestError() *APIError {
	return newAPIError(http.StatusBadRequest, "invalid_request", "request body could not be parsed")
}

func newValidationError(field, code, message string) *APIError {
	return newAPIError(http.StatusBadRequest, code, field+": "+message)
}

// AbortWithError converts domain errors into the stable wire taxonomy. Every
// unmapped error becomes a generic 500 so internals never leak to callers.
func AbortWithError(c *gin.Context, err error) {
	apiErr := toAPIError(err)
	c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
}

func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, identity.ErrMissingToken), errors.Is(err, identity.ErrInvalidToken):
		return newAPIError(http.StatusUnauthorized, "unauthorized", "a valid access token is required")

	// An order the caller does not own is indistinguishable from an order
	// that does not exist.
	case errors.Is(err, orderdomain.ErrNotFound), errors.Is(err, orderdomain.ErrNotOwner):
		return newAPIError(http.StatusNotFound, "order_not_found", "order not found")
	case errors.Is(err, productdomain.ErrNotFound):
		return newAPIError(http.StatusNotFound, "product_not_found", "product not found")
	case errors.Is(err, subscriptiondomain.ErrNotFound):
		return newAPIError(http.StatusNotFound, "subscription_not_found", "subscription not found")

	case errors.Is(err, onboardingdomain.ErrProductMismatch):
		return newAPIError(http.StatusConflict, "product_mismatch", "this order is not for the partner product")
	case errors.Is(err, onboardingdomain.ErrOrderNotPayable):
		return newAPIError(http.StatusConflict, "order_not_payable", "this order cannot be set up in its current state")
	case errors.Is(err, onboardingdomain.ErrAlreadyProvisioned):
		return newAPIError(http.StatusConflict, "already_provisioned", "this order has already been set up")
	case errors.Is(err, onboardingdomain.ErrUsernameTaken):
		return newAPIError(http.StatusConflict, "username_taken", "this username is already in use")
	case errors.Is(err, onboardingdomain.ErrInProgress):
		return newAPIError(http.StatusConflict, "in_progress", "this order is already being processed")
	case errors.Is(err, onboardingdomain.ErrInvalidTenantCredentials):
		return newAPIError(http.StatusBadRequest, "invalid_tenant_credentials", "cafe credentials are incorrect")

	case errors.Is(err, partnerdomain.ErrScanExhausted), errors.Is(err, partnerdomain.ErrUnavailable):
		return newAPIError(http.StatusBadGateway, "partner_unavailable", "the partner service is temporarily unavailable")

	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return newAPIError(http.StatusUnauthorized, "invalid_signature", "callback signature is invalid")
	case errors.Is(err, paymentdomain.ErrUnknownOrder):
		return newAPIError(http.StatusNotFound, "order_not_found", "order not found")

	case errors.Is(err, productdomain.ErrInvalidCode):
		return newValidationError("code", "invalid_code", "code is required")
	case errors.Is(err, productdomain.ErrInvalidName):
		return newValidationError("name", "invalid_name", "name is required")
	case errors.Is(err, productdomain.ErrInvalidDuration):
		return newValidationError("duration_months", "invalid_duration", "duration must be positive")
	case errors.Is(err, productdomain.ErrInvalidID):
		return newValidationError("id", "invalid_id", "id is invalid")
	}

	return newAPIError(http.StatusInternalServerError, "internal_error", "something went wrong")
}
