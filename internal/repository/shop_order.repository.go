package repository

import (
	"context"
	"errors"
	"time"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/gikundiro/momo-gateway/pkg/pg"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ShopOrderEntity struct {
	ID        uuid.UUID  `db:"id"         gorm:"primaryKey;column:id;type:uuid"`
	UserID    *uuid.UUID `db:"user_id"    gorm:"column:user_id;type:uuid;index"`
	Total     int64      `db:"total"      gorm:"column:total;not null"`
	Status    string     `db:"status"     gorm:"column:status;not null;index"`
	SmsRef    string     `db:"sms_ref"    gorm:"column:sms_ref"`
	CreatedAt time.Time  `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (ShopOrderEntity) TableName() string {
	return "shop_orders"
}

func toShopOrderEntity(m *model.ShopOrder) *ShopOrderEntity {
	if m == nil {
		return nil
	}
	return &ShopOrderEntity{
		ID:        m.ID,
		UserID:    m.UserID,
		Total:     m.Total,
		Status:    string(m.Status),
		SmsRef:    m.SmsRef,
		CreatedAt: m.CreatedAt,
	}
}

func toShopOrderModel(e *ShopOrderEntity) *model.ShopOrder {
	if e == nil {
		return nil
	}
	return &model.ShopOrder{
		ID:        e.ID,
		UserID:    e.UserID,
		Total:     e.Total,
		Status:    model.ShopOrderStatus(e.Status),
		SmsRef:    e.SmsRef,
		CreatedAt: e.CreatedAt,
	}
}

type ShopOrderRepository struct {
	*pg.DB
}

func NewShopOrderRepository(db *pg.DB) *ShopOrderRepository {
	return &ShopOrderRepository{
		db,
	}
}

func (r *ShopOrderRepository) Create(ctx context.Context, order *model.ShopOrder) (*model.ShopOrder, error) {
	entity := toShopOrderEntity(order)
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	if entity.Status == "" {
		entity.Status = string(model.ShopOrderPending)
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toShopOrderModel(entity), nil
}

func (r *ShopOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ShopOrder, error) {
	var entity ShopOrderEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toShopOrderModel(&entity), nil
}

func (r *ShopOrderRepository) ListPendingOldest(ctx context.Context, since time.Time, limit int) ([]*model.ShopOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	var entities []*ShopOrderEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND created_at >= ?", string(model.ShopOrderPending), since).
		Order("created_at ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	models := make([]*model.ShopOrder, len(entities))
	for i, e := range entities {
		models[i] = toShopOrderModel(e)
	}
	return models, nil
}

func (r *ShopOrderRepository) MarkPaid(ctx context.Context, id uuid.UUID, ref string) (bool, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ShopOrderEntity{}).
		Where("id = ? AND status = ?", id, string(model.ShopOrderPending)).
		Updates(map[string]interface{}{
			"status":  string(model.ShopOrderPaid),
			"sms_ref": ref,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
