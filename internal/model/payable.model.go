package model

import (
	"time"

	"github.com/google/uuid"
)

// PayableKind identifies the concrete payable entity a receipt resolved to.
type PayableKind string

const (
	PayableTicketOrder    PayableKind = "ticket_order"
	PayableShopOrder      PayableKind = "shop_order"
	PayableInsuranceQuote PayableKind = "insurance_quote"
	PayableSaccoDeposit   PayableKind = "sacco_deposit"
)

// Payable is the capability set shared by all payable entities. The
// reconciliation engine only ever sees candidates through this interface.
type Payable interface {
	PayableID() uuid.UUID
	PayableKind() PayableKind
	AmountOwed() int64
	Owner() *uuid.UUID
}

type TicketOrderStatus string

const (
	TicketOrderPending   TicketOrderStatus = "pending"
	TicketOrderPaid      TicketOrderStatus = "paid"
	TicketOrderCancelled TicketOrderStatus = "cancelled"
)

type TicketOrder struct {
	ID        uuid.UUID         `json:"id"         db:"id"         gorm:"primaryKey;column:id;type:uuid"`
	UserID    *uuid.UUID        `json:"user_id"    db:"user_id"    gorm:"column:user_id;type:uuid;index"`
	Total     int64             `json:"total"      db:"total"      gorm:"column:total;not null"`
	Status    TicketOrderStatus `json:"status"     db:"status"     gorm:"column:status;not null;index"`
	SmsRef    string            `json:"sms_ref"    db:"sms_ref"    gorm:"column:sms_ref"`
	CreatedAt time.Time         `json:"created_at" db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (TicketOrder) TableName() string { return "ticket_orders" }

func (o *TicketOrder) PayableID() uuid.UUID     { return o.ID }
func (o *TicketOrder) PayableKind() PayableKind { return PayableTicketOrder }
func (o *TicketOrder) AmountOwed() int64        { return o.Total }
func (o *TicketOrder) Owner() *uuid.UUID        { return o.UserID }

type ShopOrderStatus string

const (
	ShopOrderPending ShopOrderStatus = "pending"
	ShopOrderPaid    ShopOrderStatus = "paid"
)

type ShopOrder struct {
	ID        uuid.UUID       `json:"id"         db:"id"         gorm:"primaryKey;column:id;type:uuid"`
	UserID    *uuid.UUID      `json:"user_id"    db:"user_id"    gorm:"column:user_id;type:uuid;index"`
	Total     int64           `json:"total"      db:"total"      gorm:"column:total;not null"`
	Status    ShopOrderStatus `json:"status"     db:"status"     gorm:"column:status;not null;index"`
	SmsRef    string          `json:"sms_ref"    db:"sms_ref"    gorm:"column:sms_ref"`
	CreatedAt time.Time       `json:"created_at" db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (ShopOrder) TableName() string { return "shop_orders" }

func (o *ShopOrder) PayableID() uuid.UUID     { return o.ID }
func (o *ShopOrder) PayableKind() PayableKind { return PayableShopOrder }
func (o *ShopOrder) AmountOwed() int64        { return o.Total }
func (o *ShopOrder) Owner() *uuid.UUID        { return o.UserID }

type InsuranceQuoteStatus string

const (
	InsuranceQuoteQuoted  InsuranceQuoteStatus = "quoted"
	InsuranceQuotePaid    InsuranceQuoteStatus = "paid"
	InsuranceQuoteExpired InsuranceQuoteStatus = "expired"
)

type InsuranceQuote struct {
	ID        uuid.UUID            `json:"id"         db:"id"         gorm:"primaryKey;column:id;type:uuid"`
	UserID    *uuid.UUID           `json:"user_id"    db:"user_id"    gorm:"column:user_id;type:uuid;index"`
	Premium   int64                `json:"premium"    db:"premium"    gorm:"column:premium;not null"`
	Status    InsuranceQuoteStatus `json:"status"     db:"status"     gorm:"column:status;not null;index"`
	SmsRef    string               `json:"sms_ref"    db:"sms_ref"    gorm:"column:sms_ref"`
	CreatedAt time.Time            `json:"created_at" db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (InsuranceQuote) TableName() string { return "insurance_quotes" }

func (q *InsuranceQuote) PayableID() uuid.UUID     { return q.ID }
func (q *InsuranceQuote) PayableKind() PayableKind { return PayableInsuranceQuote }
func (q *InsuranceQuote) AmountOwed() int64        { return q.Premium }
func (q *InsuranceQuote) Owner() *uuid.UUID        { return q.UserID }

type SaccoDepositStatus string

const (
	SaccoDepositPending   SaccoDepositStatus = "pending"
	SaccoDepositConfirmed SaccoDepositStatus = "confirmed"
)

type SaccoDeposit struct {
	ID        uuid.UUID          `json:"id"         db:"id"         gorm:"primaryKey;column:id;type:uuid"`
	UserID    *uuid.UUID         `json:"user_id"    db:"user_id"    gorm:"column:user_id;type:uuid;index"`
	Amount    int64              `json:"amount"     db:"amount"     gorm:"column:amount;not null"`
	Status    SaccoDepositStatus `json:"status"     db:"status"     gorm:"column:status;not null;index"`
	SmsRef    string             `json:"sms_ref"    db:"sms_ref"    gorm:"column:sms_ref"`
	CreatedAt time.Time          `json:"created_at" db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (SaccoDeposit) TableName() string { return "sacco_deposits" }

func (d *SaccoDeposit) PayableID() uuid.UUID     { return d.ID }
func (d *SaccoDeposit) PayableKind() PayableKind { return PayableSaccoDeposit }
func (d *SaccoDeposit) AmountOwed() int64        { return d.Amount }
func (d *SaccoDeposit) Owner() *uuid.UUID        { return d.UserID }

// TicketPass is the stadium entry pass issued once a ticket order is paid.
type TicketPass struct {
	ID          uuid.UUID `json:"id"            db:"id"            gorm:"primaryKey;column:id;type:uuid"`
	OrderID     uuid.UUID `json:"order_id"      db:"order_id"      gorm:"column:order_id;type:uuid;index;not null"`
	Zone        string    `json:"zone"          db:"zone"          gorm:"column:zone;not null"`
	Gate        string    `json:"gate"          db:"gate"          gorm:"column:gate;not null"`
	QRTokenHash string    `json:"qr_token_hash" db:"qr_token_hash" gorm:"column:qr_token_hash;not null"`
	CreatedAt   time.Time `json:"created_at"    db:"created_at"    gorm:"column:created_at;autoCreateTime"`
}

func (TicketPass) TableName() string { return "ticket_passes" }
