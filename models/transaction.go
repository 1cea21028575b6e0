package models

import (
	"time"
)

type PaymentMethod string

const (
	MethodUPI  PaymentMethod = "UPI"
	MethodCard PaymentMethod = "Card"
)

// Valid reports whether m is an accepted payment method.
func (m PaymentMethod) Valid() bool {
	return m == MethodUPI || m == MethodCard
}

type TransactionStatus string

const (
	StatusPending  TransactionStatus = "PENDING"
	StatusSuccess  TransactionStatus = "SUCCESS"
	StatusFailed   TransactionStatus = "FAILED"
	StatusRefunded TransactionStatus = "REFUNDED"

	// StatusSettled is never written. It appears on older rows and as the
	// display status of a successful record that has a settlement date.
	StatusSettled TransactionStatus = "SETTLED"
)

// Transaction is one ledger record. Identifiers and the amount are stored
// only as ciphertext; TxnIDHash and UserIDHash are the lookup keys.
type Transaction struct {
	TxnIDHash      string            `gorm:"type:char(64);primaryKey" bson:"txn_id_hash" json:"-"`
	TxnIDEnc       string            `gorm:"type:text;not null" bson:"txn_id_enc" json:"-"`
	AmountEnc      string            `gorm:"type:text;not null" bson:"amount_enc" json:"-"`
	UserIDEnc      string            `gorm:"type:text;not null" bson:"user_id_enc" json:"-"`
	UserIDHash     string            `gorm:"type:char(64);index;not null" bson:"user_id_hash" json:"-"`
	Method         PaymentMethod     `gorm:"type:varchar(10);index;not null" bson:"method" json:"method"`
	Status         TransactionStatus `gorm:"type:varchar(20);index;not null" bson:"status" json:"status"`
	Timestamp      time.Time         `gorm:"index;not null" bson:"timestamp" json:"timestamp"`
	SettlementDate *time.Time        `bson:"settlement_date,omitempty" json:"settlementDate"`
	Sandbox        bool              `gorm:"not null" bson:"sandbox" json:"sandbox"`
	RiskFlag       bool              `gorm:"not null" bson:"risk_flag" json:"riskFlag"`
	PaymentLink    string            `gorm:"type:varchar(1024)" bson:"payment_link" json:"paymentLink"`
	Version        int64             `gorm:"not null" bson:"version" json:"-"`
	UpdatedAt      time.Time         `bson:"updated_at" json:"-"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// IsSettled reports whether a settlement date is recorded.
func (t *Transaction) IsSettled() bool {
	return t.SettlementDate != nil
}

// IsSuccessful reports whether the record counts as a completed payment,
// including rows stored with the legacy SETTLED status.
func (t *Transaction) IsSuccessful() bool {
	return t.Status == StatusSuccess || t.Status == StatusSettled
}

// DisplayStatus folds the settlement date into the status shown to callers.
func (t *Transaction) DisplayStatus() TransactionStatus {
	if t.IsSuccessful() && t.IsSettled() {
		return StatusSettled
	}
	return t.Status
}
