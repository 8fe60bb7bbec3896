package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	onboardingdomain "github.com/npclabs/storefront/internal/onboarding/domain"
)

type completeOnboardingRequest struct {
	OrderRef string `json:"order_ref"`
}

type setupTenantRequest struct {
	OrderRef string `json:"order_ref"`
	CafeName string `json:"cafe_name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type linkTenantRequest struct {
	OrderRef string `json:"order_ref"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) CompleteOnboarding(c *gin.Context) {
	caller, ok := callerFromRequest(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req completeOnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.OrderRef) == "" {
		AbortWithError(c, newValidationError("order_ref", "required", "order_ref is required"))
		return
	}

	outcome, err := s.onboardingSvc.Complete(c.Request.Context(), caller, strings.TrimSpace(req.OrderRef))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, outcome)
}

func (s *Server) SetupTenant(c *gin.Context) {
	caller, ok := callerFromRequest(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req setupTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if field, bad := firstMissing(map[string]string{
		"order_ref": req.OrderRef,
		"cafe_name": req.CafeName,
		"username":  req.Username,
		"password":  req.Password,
	}); bad {
		AbortWithError(c, newValidationError(field, "required", field+" is required"))
		return
	}

	outcome, err := s.onboardingSvc.Provision(c.Request.Context(), caller, onboardingdomain.ProvisionRequest{
		OrderRef: strings.TrimSpace(req.OrderRef),
		CafeName: req.CafeName,
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, outcome)
}

func (s *Server) LinkTenant(c *gin.Context) {
	caller, ok := callerFromRequest(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req linkTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if field, bad := firstMissing(map[string]string{
		"order_ref": req.OrderRef,
		"username":  req.Username,
		"password":  req.Password,
	}); bad {
		AbortWithError(c, newValidationError(field, "required", field+" is required"))
		return
	}

	outcome, err := s.onboardingSvc.Link(c.Request.Context(), caller, onboardingdomain.LinkRequest{
		OrderRef: strings.TrimSpace(req.OrderRef),
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, outcome)
}

func firstMissing(fields map[string]string) (string, bool) {
	// Deterministic order so validation messages are stable.
	for _, name := range []string{"order_ref", "cafe_name", "username", "password"} {
		if v, ok := fields[name]; ok && strings.TrimSpace(v) == "" {
			return name, true
		}
	}
	return "", false
}
