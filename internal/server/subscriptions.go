package server

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) ListMySubscriptions(c *gin.Context) {
	caller, ok := callerFromRequest(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	views, err := s.subscriptionSvc.ListMine(c.Request.Context(), caller)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, views)
}
