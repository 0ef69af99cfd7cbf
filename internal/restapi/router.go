package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRouter wires the API routes onto a router prepared by the caller
// (middleware, CORS and operational endpoints are attached in main).
func SetupRouter(router *gin.Engine, handler *PortfolioHandler) {
	router.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/portfolio/:wallet/positions", handler.GetPositionsHandler)
		v1.GET("/portfolio/:wallet/positions/all", handler.GetAllPositionsHandler)
		v1.GET("/wallet/:wallet/balances", handler.GetBalancesHandler)
		v1.POST("/tokens/:network/:address/recheck", handler.RecheckTokenHandler)
	}
}
