package repository

import (
	"time"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/google/uuid"
)

type TicketOrderEntity struct {
	ID        uuid.UUID  `db:"id"         gorm:"primaryKey;column:id;type:uuid"`
	UserID    *uuid.UUID `db:"user_id"    gorm:"column:user_id;type:uuid;index"`
	Total     int64      `db:"total"      gorm:"column:total;not null"`
	Status    string     `db:"status"     gorm:"column:status;not null;index"`
	SmsRef    string     `db:"sms_ref"    gorm:"column:sms_ref"`
	CreatedAt time.Time  `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (TicketOrderEntity) TableName() string {
	return "ticket_orders"
}

type TicketPassEntity struct {
	ID          uuid.UUID `db:"id"            gorm:"primaryKey;column:id;type:uuid"`
	OrderID     uuid.UUID `db:"order_id"      gorm:"column:order_id;type:uuid;index;not null"`
	Zone        string    `db:"zone"          gorm:"column:zone;not null"`
	Gate        string    `db:"gate"          gorm:"column:gate;not null"`
	QRTokenHash string    `db:"qr_token_hash" gorm:"column:qr_token_hash;not null"`
	CreatedAt   time.Time `db:"created_at"    gorm:"column:created_at;autoCreateTime"`
}

func (TicketPassEntity) TableName() string {
	return "ticket_passes"
}

func toTicketOrderEntity(m *model.TicketOrder) *TicketOrderEntity {
	if m == nil {
		return nil
	}
	return &TicketOrderEntity{
		ID:        m.ID,
		UserID:    m.UserID,
		Total:     m.Total,
		Status:    string(m.Status),
		SmsRef:    m.SmsRef,
		CreatedAt: m.CreatedAt,
	}
}

func toTicketOrderModel(e *TicketOrderEntity) *model.TicketOrder {
	if e == nil {
		return nil
	}
	return &model.TicketOrder{
		ID:        e.ID,
		UserID:    e.UserID,
		Total:     e.Total,
		Status:    model.TicketOrderStatus(e.Status),
		SmsRef:    e.SmsRef,
		CreatedAt: e.CreatedAt,
	}
}

func toTicketOrderModels(entities []*TicketOrderEntity) []*model.TicketOrder {
	if entities == nil {
		return nil
	}
	models := make([]*model.TicketOrder, len(entities))
	for i, e := range entities {
		models[i] = toTicketOrderModel(e)
	}
	return models
}

func toTicketPassModel(e *TicketPassEntity) *model.TicketPass {
	if e == nil {
		return nil
	}
	return &model.TicketPass{
		ID:          e.ID,
		OrderID:     e.OrderID,
		Zone:        e.Zone,
		Gate:        e.Gate,
		QRTokenHash: e.QRTokenHash,
		CreatedAt:   e.CreatedAt,
	}
}
