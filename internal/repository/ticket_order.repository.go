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

const defaultPassZone = "BLUE"
const defaultPassGate = "G3"

type TicketOrderRepository struct {
	*pg.DB
}

func NewTicketOrderRepository(db *pg.DB) *TicketOrderRepository {
	return &TicketOrderRepository{
		db,
	}
}

func (r *TicketOrderRepository) Create(ctx context.Context, order *model.TicketOrder) (*model.TicketOrder, error) {
	entity := toTicketOrderEntity(order)
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	if entity.Status == "" {
		entity.Status = string(model.TicketOrderPending)
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toTicketOrderModel(entity), nil
}

func (r *TicketOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TicketOrder, error) {
	var entity TicketOrderEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toTicketOrderModel(&entity), nil
}

// ListPendingOldest returns pending orders created since the given time,
// oldest-first, bounded by limit. The ordering is load-bearing:
// reconciliation matches the longest-waiting order when amounts collide.
func (r *TicketOrderRepository) ListPendingOldest(ctx context.Context, since time.Time, limit int) ([]*model.TicketOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	var entities []*TicketOrderEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND created_at >= ?", string(model.TicketOrderPending), since).
		Order("created_at ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toTicketOrderModels(entities), nil
}

// MarkPaid transitions a pending order to paid and stamps the SMS reference.
// The WHERE clause on the current status is the optimistic-concurrency guard:
// when two workers race over the same order exactly one sees RowsAffected==1.
func (r *TicketOrderRepository) MarkPaid(ctx context.Context, id uuid.UUID, ref string) (bool, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&TicketOrderEntity{}).
		Where("id = ? AND status = ?", id, string(model.TicketOrderPending)).
		Updates(map[string]interface{}{
			"status":  string(model.TicketOrderPaid),
			"sms_ref": ref,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// EnsurePass issues a ticket pass for a paid order if none exists yet.
// Safe to call repeatedly; replays are a no-op.
func (r *TicketOrderRepository) EnsurePass(ctx context.Context, orderID uuid.UUID) (*model.TicketPass, error) {
	var existing TicketPassEntity
	err := r.Write(ctx).WithContext(ctx).Where("order_id = ?", orderID).First(&existing).Error
	if err == nil {
		return toTicketPassModel(&existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	pass := &TicketPassEntity{
		ID:          uuid.New(),
		OrderID:     orderID,
		Zone:        defaultPassZone,
		Gate:        defaultPassGate,
		QRTokenHash: uuid.NewString(),
	}
	if err := r.Write(ctx).WithContext(ctx).Create(pass).Error; err != nil {
		return nil, err
	}
	return toTicketPassModel(pass), nil
}

func (r *TicketOrderRepository) CountPasses(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&TicketPassEntity{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	return count, err
}
