package controllers

import (
	"net/http"

	"github.com/arrxxhh/Payment-gateway/middleware"
	"github.com/arrxxhh/Payment-gateway/models"
	"github.com/arrxxhh/Payment-gateway/services"
	"github.com/gin-gonic/gin"
)

// TransactionController handles checkout, listing and settlement requests.
type TransactionController struct {
	ledger services.LedgerService
	export services.ExportService
}

func NewTransactionController(ledger services.LedgerService, export services.ExportService) *TransactionController {
	return &TransactionController{ledger: ledger, export: export}
}

// Checkout handles POST /api/checkout.
func (tc *TransactionController) Checkout(ctx *gin.Context) {
	var req models.CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	result, svcErr := tc.ledger.CreateTransaction(ctx.Request.Context(), middleware.GetCaller(ctx), &req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// List handles GET /api/transactions.
func (tc *TransactionController) List(ctx *gin.Context) {
	var q models.ListTransactionsQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	views, svcErr := tc.ledger.ListTransactions(ctx.Request.Context(), middleware.GetCaller(ctx), &q)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	if views == nil {
		views = []models.TransactionView{}
	}
	ctx.JSON(http.StatusOK, views)
}

// Get handles GET /api/transactions/:txnId.
func (tc *TransactionController) Get(ctx *gin.Context) {
	view, svcErr := tc.ledger.GetTransaction(ctx.Request.Context(), middleware.GetCaller(ctx), ctx.Param("txnId"))
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, view)
}

// Export handles GET /api/transactions/export. It takes the same filters as List.
func (tc *TransactionController) Export(ctx *gin.Context) {
	var q models.ListTransactionsQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	result, svcErr := tc.export.ExportCSV(ctx.Request.Context(), middleware.GetCaller(ctx), &q)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// Settle handles POST /api/settle/:txnId.
func (tc *TransactionController) Settle(ctx *gin.Context) {
	view, svcErr := tc.ledger.Settle(ctx.Request.Context(), middleware.GetCaller(ctx), ctx.Param("txnId"))
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, view)
}

// Payout handles POST /api/payout.
func (tc *TransactionController) Payout(ctx *gin.Context) {
	var req models.PayoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	result, svcErr := tc.ledger.BatchSettle(ctx.Request.Context(), middleware.GetCaller(ctx), req.TxnIDs)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// Refund handles POST /api/refund/:txnId.
func (tc *TransactionController) Refund(ctx *gin.Context) {
	view, svcErr := tc.ledger.Refund(ctx.Request.Context(), middleware.GetCaller(ctx), ctx.Param("txnId"))
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, view)
}
