package routes

import (
	"github.com/arrxxhh/Payment-gateway/controllers"
	"github.com/gin-gonic/gin"
)

// RegisterLedgerRoutes mounts transaction routes under /api. Ownership rules
// for mutations are enforced by the ledger service.
func RegisterLedgerRoutes(api *gin.RouterGroup, tc *controllers.TransactionController) {
	api.POST("/checkout", tc.Checkout)
	api.GET("/transactions", tc.List)
	api.GET("/transactions/export", tc.Export)
	api.GET("/transactions/:txnId", tc.Get)
	api.POST("/settle/:txnId", tc.Settle)
	api.POST("/payout", tc.Payout)
	api.POST("/refund/:txnId", tc.Refund)
}

func RegisterAnalyticsRoutes(api *gin.RouterGroup, ac *controllers.AnalyticsController) {
	analytics := api.Group("/analytics")
	analytics.GET("", ac.Summary)
	analytics.GET("/methods", ac.Methods)
	analytics.GET("/settlement", ac.Settlement)
}
