package repository

import (
	"time"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/google/uuid"
)

type SmsRawEntity struct {
	ID         uuid.UUID `db:"id"          gorm:"primaryKey;column:id;type:uuid"`
	Text       string    `db:"text"        gorm:"column:text;not null"`
	FromMsisdn string    `db:"from_msisdn" gorm:"column:from_msisdn"`
	ToMsisdn   string    `db:"to_msisdn"   gorm:"column:to_msisdn"`
	ReceivedAt time.Time `db:"received_at" gorm:"column:received_at;not null"`
	Status     string    `db:"status"      gorm:"column:status;not null;index"`
	CreatedAt  time.Time `db:"created_at"  gorm:"column:created_at;autoCreateTime"`
}

func (SmsRawEntity) TableName() string {
	return "sms_raw"
}

func toSmsRawEntity(m *model.RawMessage) *SmsRawEntity {
	if m == nil {
		return nil
	}
	return &SmsRawEntity{
		ID:         m.ID,
		Text:       m.Text,
		FromMsisdn: m.FromMsisdn,
		ToMsisdn:   m.ToMsisdn,
		ReceivedAt: m.ReceivedAt,
		Status:     string(m.Status),
		CreatedAt:  m.CreatedAt,
	}
}

func toSmsRawModel(e *SmsRawEntity) *model.RawMessage {
	if e == nil {
		return nil
	}
	return &model.RawMessage{
		ID:         e.ID,
		Text:       e.Text,
		FromMsisdn: e.FromMsisdn,
		ToMsisdn:   e.ToMsisdn,
		ReceivedAt: e.ReceivedAt,
		Status:     model.IngestStatus(e.Status),
		CreatedAt:  e.CreatedAt,
	}
}

func toSmsRawModels(entities []*SmsRawEntity) []*model.RawMessage {
	if entities == nil {
		return nil
	}
	models := make([]*model.RawMessage, len(entities))
	for i, e := range entities {
		models[i] = toSmsRawModel(e)
	}
	return models
}
