package model

import (
	"time"

	"github.com/google/uuid"
)

type TransactionKind string

const (
	TransactionPurchase TransactionKind = "purchase"
	TransactionDeposit  TransactionKind = "deposit"
)

// Transaction is an append-only ledger row recording a reconciled payment.
// Rows are never updated once written.
type Transaction struct {
	ID        uuid.UUID       `json:"id"         db:"id"         gorm:"primaryKey;column:id;type:uuid"`
	UserID    *uuid.UUID      `json:"user_id"    db:"user_id"    gorm:"column:user_id;type:uuid;index"`
	Amount    int64           `json:"amount"     db:"amount"     gorm:"column:amount;not null"`
	Kind      TransactionKind `json:"kind"       db:"kind"       gorm:"column:kind;not null"`
	Ref       string          `json:"ref"        db:"ref"        gorm:"column:ref;not null;index"`
	Status    string          `json:"status"     db:"status"     gorm:"column:status;not null"` // always "confirmed"
	CreatedAt time.Time       `json:"created_at" db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Transaction) TableName() string { return "transactions" }
