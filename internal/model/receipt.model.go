package model

import (
	"time"

	"github.com/google/uuid"
)

// RefUnknown is the sentinel stored when the SMS carries no reference token.
const RefUnknown = "UNKNOWN"

// ParsedReceipt is the structured payment receipt extracted from a raw SMS.
// At most one exists per raw message (upsert keyed by SmsID).
type ParsedReceipt struct {
	ID            uuid.UUID `json:"id"             db:"id"             gorm:"primaryKey;column:id;type:uuid"`
	SmsID         uuid.UUID `json:"sms_id"         db:"sms_id"         gorm:"column:sms_id;type:uuid;uniqueIndex;not null"`
	Amount        int64     `json:"amount"         db:"amount"         gorm:"column:amount;not null"` // minor currency units
	Currency      string    `json:"currency"       db:"currency"       gorm:"column:currency;not null"`
	PayerMask     string    `json:"payer_mask"     db:"payer_mask"     gorm:"column:payer_mask"`
	Ref           string    `json:"ref"            db:"ref"            gorm:"column:ref;not null"`
	Timestamp     time.Time `json:"timestamp"      db:"timestamp"      gorm:"column:timestamp;not null"`
	Confidence    float64   `json:"confidence"     db:"confidence"     gorm:"column:confidence;not null"`
	ParserVersion string    `json:"parser_version" db:"parser_version" gorm:"column:parser_version;not null"`
	MatchedEntity string    `json:"matched_entity" db:"matched_entity" gorm:"column:matched_entity"` // e.g. "ticket_order:<id>", set once on match
	CreatedAt     time.Time `json:"created_at"     db:"created_at"     gorm:"column:created_at;autoCreateTime"`
}

func (ParsedReceipt) TableName() string { return "sms_parsed" }
