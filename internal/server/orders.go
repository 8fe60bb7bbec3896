package server

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) ListMyOrders(c *gin.Context) {
	caller, ok := callerFromRequest(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	orders, err := s.orderSvc.ListByUser(c.Request.Context(), caller.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, orders)
}

func (s *Server) GetMyOrder(c *gin.Context) {
	caller, ok := callerFromRequest(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	o, err := s.orderSvc.ResolveOwned(c.Request.Context(), c.Param("ref"), caller.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, o)
}
