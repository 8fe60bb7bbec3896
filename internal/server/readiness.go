package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz reports connectivity to both datastores. The partner DB being down
// makes onboarding impossible, so it is a readiness failure, not a warning.
func (s *Server) Readyz(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{}
	ready := true

	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["storefront_db"] = "down"
		ready = false
	} else {
		checks["storefront_db"] = "up"
	}

	if sqlDB, err := s.partner.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["partner_db"] = "down"
		ready = false
	} else {
		checks["partner_db"] = "up"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": checks})
}
