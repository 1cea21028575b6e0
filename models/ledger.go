package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleMerchant Role = "Merchant"
	RoleAuditor  Role = "Auditor"
)

// ParseRole maps a role claim to a Role. Anything unrecognised is treated as
// a merchant.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin, RoleAuditor:
		return Role(s)
	}
	switch s {
	case "admin", "ADMIN":
		return RoleAdmin
	case "auditor", "AUDITOR":
		return RoleAuditor
	}
	return RoleMerchant
}

// Privileged roles see every record; merchants only their own.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleAuditor
}

// Caller is the verified identity behind a request.
type Caller struct {
	UserID string
	Role   Role
}

// CheckoutRequest is the payload of POST /api/checkout and of queued checkout messages.
type CheckoutRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Method  PaymentMethod   `json:"method" validate:"required,oneof=UPI Card"`
	Sandbox bool            `json:"sandbox"`
}

type CheckoutResult struct {
	TxnID       string            `json:"txnId"`
	Status      TransactionStatus `json:"status"`
	PaymentLink string            `json:"paymentLink"`
}

// TransactionView is a decrypted record as returned to callers.
type TransactionView struct {
	TxnID          string            `json:"txnId"`
	Amount         decimal.Decimal   `json:"amount"`
	UserID         string            `json:"userId"`
	Method         PaymentMethod     `json:"method"`
	Status         TransactionStatus `json:"status"`
	Timestamp      time.Time         `json:"timestamp"`
	SettlementDate *time.Time        `json:"settlementDate"`
	Sandbox        bool              `json:"sandbox"`
	RiskFlag       bool              `json:"riskFlag"`
	PaymentLink    string            `json:"paymentLink"`
}

type ListTransactionsQuery struct {
	Status   string `form:"status"`
	Method   string `form:"method"`
	UserID   string `form:"userId"`
	DateFrom string `form:"dateFrom"`
	DateTo   string `form:"dateTo"`
}

type PayoutRequest struct {
	TxnIDs []string `json:"txnIds"`
}

type BatchSettleResult struct {
	Updated      int               `json:"updated"`
	Transactions []TransactionView `json:"transactions"`
}

type TrendPoint struct {
	Date    string          `json:"date"`
	Total   int             `json:"total"`
	Revenue decimal.Decimal `json:"revenue"`
}

type Summary struct {
	Total    int             `json:"total"`
	Success  int             `json:"success"`
	Failed   int             `json:"failed"`
	Pending  int             `json:"pending"`
	Settled  int             `json:"settled"`
	Refunded int             `json:"refunded"`
	Revenue  decimal.Decimal `json:"revenue"`
	Trends   []TrendPoint    `json:"trends"`
}

type MethodStats struct {
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

type SettlementRatio struct {
	Total   int64   `json:"total"`
	Settled int64   `json:"settled"`
	Ratio   float64 `json:"ratio"`
}

type ExportResult struct {
	Key   string `json:"key"`
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// LedgerEvent is published after every state change. It carries hashes only.
type LedgerEvent struct {
	Type       string            `json:"type"`
	TxnIDHash  string            `json:"txnIdHash"`
	UserIDHash string            `json:"userIdHash"`
	Method     PaymentMethod     `json:"method"`
	Status     TransactionStatus `json:"status"`
	RiskFlag   bool              `json:"riskFlag"`
	Sandbox    bool              `json:"sandbox"`
	Timestamp  time.Time         `json:"timestamp"`
}

const (
	EventTransactionCreated  = "transaction_created"
	EventTransactionSettled  = "transaction_settled"
	EventTransactionRefunded = "transaction_refunded"
)

// CheckoutMessage is a checkout request delivered through the queue.
type CheckoutMessage struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	CheckoutRequest
}
