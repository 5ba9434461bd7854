package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// IngestStatus is the lifecycle state of an inbound SMS.
type IngestStatus string

const (
	IngestStatusReceived     IngestStatus = "received"
	IngestStatusParsed       IngestStatus = "parsed"
	IngestStatusManualReview IngestStatus = "manual_review"
	IngestStatusError        IngestStatus = "error"
)

// RawMessage is an inbound SMS exactly as received from the webhook or
// device relay. Text is immutable; only Status changes after creation.
type RawMessage struct {
	ID         uuid.UUID    `json:"id"          db:"id"           gorm:"primaryKey;column:id;type:uuid"`
	Text       string       `json:"text"        db:"text"         gorm:"column:text;not null"`
	FromMsisdn string       `json:"from_msisdn" db:"from_msisdn"  gorm:"column:from_msisdn"`
	ToMsisdn   string       `json:"to_msisdn"   db:"to_msisdn"    gorm:"column:to_msisdn"`
	ReceivedAt time.Time    `json:"received_at" db:"received_at"  gorm:"column:received_at;not null"`
	Status     IngestStatus `json:"status"      db:"status"       gorm:"column:status;not null;index"`
	CreatedAt  time.Time    `json:"created_at"  db:"created_at"   gorm:"column:created_at;autoCreateTime"`
}

func (RawMessage) TableName() string { return "sms_raw" }

// SmsIngestRequest is the input for ingesting an inbound SMS.
// Content is untrusted and deliberately not validated beyond being present.
type SmsIngestRequest struct {
	Text       string
	FromMsisdn string
	ToMsisdn   string
	ReceivedAt time.Time
}

func (p SmsIngestRequest) Validate() error {
	if p.Text == "" {
		return errors.New("text is required")
	}
	return nil
}

// SmsFilter controls List queries over raw messages.
type SmsFilter struct {
	Statuses []IngestStatus // IN (...)
	From     *time.Time
	To       *time.Time
	Limit    int // default 50
	Offset   int
	Desc     bool // order by received_at
}
