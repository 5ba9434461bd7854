package repository

import (
	"time"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/google/uuid"
)

type SmsParsedEntity struct {
	ID            uuid.UUID `db:"id"             gorm:"primaryKey;column:id;type:uuid"`
	SmsID         uuid.UUID `db:"sms_id"         gorm:"column:sms_id;type:uuid;uniqueIndex;not null"`
	Amount        int64     `db:"amount"         gorm:"column:amount;not null"`
	Currency      string    `db:"currency"       gorm:"column:currency;not null"`
	PayerMask     string    `db:"payer_mask"     gorm:"column:payer_mask"`
	Ref           string    `db:"ref"            gorm:"column:ref;not null"`
	Timestamp     time.Time `db:"timestamp"      gorm:"column:timestamp;not null"`
	Confidence    float64   `db:"confidence"     gorm:"column:confidence;not null"`
	ParserVersion string    `db:"parser_version" gorm:"column:parser_version;not null"`
	MatchedEntity string    `db:"matched_entity" gorm:"column:matched_entity"`
	CreatedAt     time.Time `db:"created_at"     gorm:"column:created_at;autoCreateTime"`
}

func (SmsParsedEntity) TableName() string {
	return "sms_parsed"
}

func toSmsParsedEntity(m *model.ParsedReceipt) *SmsParsedEntity {
	if m == nil {
		return nil
	}
	return &SmsParsedEntity{
		ID:            m.ID,
		SmsID:         m.SmsID,
		Amount:        m.Amount,
		Currency:      m.Currency,
		PayerMask:     m.PayerMask,
		Ref:           m.Ref,
		Timestamp:     m.Timestamp,
		Confidence:    m.Confidence,
		ParserVersion: m.ParserVersion,
		MatchedEntity: m.MatchedEntity,
		CreatedAt:     m.CreatedAt,
	}
}

func toSmsParsedModel(e *SmsParsedEntity) *model.ParsedReceipt {
	if e == nil {
		return nil
	}
	return &model.ParsedReceipt{
		ID:            e.ID,
		SmsID:         e.SmsID,
		Amount:        e.Amount,
		Currency:      e.Currency,
		PayerMask:     e.PayerMask,
		Ref:           e.Ref,
		Timestamp:     e.Timestamp,
		Confidence:    e.Confidence,
		ParserVersion: e.ParserVersion,
		MatchedEntity: e.MatchedEntity,
		CreatedAt:     e.CreatedAt,
	}
}
