package controllers

import (
	"net/http"

	"github.com/arrxxhh/Payment-gateway/services"
	"github.com/gin-gonic/gin"
)

type AnalyticsController struct {
	analytics services.AnalyticsService
}

func NewAnalyticsController(analytics services.AnalyticsService) *AnalyticsController {
	return &AnalyticsController{analytics: analytics}
}

// Summary handles GET /api/analytics.
func (ac *AnalyticsController) Summary(ctx *gin.Context) {
	summary, svcErr := ac.analytics.GetSummary(ctx.Request.Context())
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, summary)
}

// Methods handles GET /api/analytics/methods.
func (ac *AnalyticsController) Methods(ctx *gin.Context) {
	stats, svcErr := ac.analytics.GetByMethod(ctx.Request.Context())
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, stats)
}

// Settlement handles GET /api/analytics/settlement.
func (ac *AnalyticsController) Settlement(ctx *gin.Context) {
	ratio, svcErr := ac.analytics.GetSettlementRatio(ctx.Request.Context())
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, ratio)
}
