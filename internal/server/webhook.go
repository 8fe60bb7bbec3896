package server

import (
	"github.com/gin-gonic/gin"
	paymentdomain "github.com/npclabs/storefront/internal/payment/domain"
)

// ShopierCallback is the provider's server-to-server form post. The response
// body is what the provider displays, so it stays minimal.
func (s *Server) ShopierCallback(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	payload := make(map[string]any, len(c.Request.PostForm))
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			payload[key] = values[0]
		}
	}

	cb := paymentdomain.ShopierCallback{
		PlatformOrderID: c.PostForm("platform_order_id"),
		Status:          c.PostForm("status"),
		RandomNr:        c.PostForm("random_nr"),
		Signature:       c.PostForm("signature"),
		Payload:         payload,
	}

	if err := s.paymentSvc.HandleShopierCallback(c.Request.Context(), cb); err != nil {
		AbortWithError(c, err)
		return
	}
	c.String(200, "success")
}
