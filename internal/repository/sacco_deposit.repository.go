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

type SaccoDepositEntity struct {
	ID        uuid.UUID  `db:"id"         gorm:"primaryKey;column:id;type:uuid"`
	UserID    *uuid.UUID `db:"user_id"    gorm:"column:user_id;type:uuid;index"`
	Amount    int64      `db:"amount"     gorm:"column:amount;not null"`
	Status    string     `db:"status"     gorm:"column:status;not null;index"`
	SmsRef    string     `db:"sms_ref"    gorm:"column:sms_ref"`
	CreatedAt time.Time  `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (SaccoDepositEntity) TableName() string {
	return "sacco_deposits"
}

func toSaccoDepositEntity(m *model.SaccoDeposit) *SaccoDepositEntity {
	if m == nil {
		return nil
	}
	return &SaccoDepositEntity{
		ID:        m.ID,
		UserID:    m.UserID,
		Amount:    m.Amount,
		Status:    string(m.Status),
		SmsRef:    m.SmsRef,
		CreatedAt: m.CreatedAt,
	}
}

func toSaccoDepositModel(e *SaccoDepositEntity) *model.SaccoDeposit {
	if e == nil {
		return nil
	}
	return &model.SaccoDeposit{
		ID:        e.ID,
		UserID:    e.UserID,
		Amount:    e.Amount,
		Status:    model.SaccoDepositStatus(e.Status),
		SmsRef:    e.SmsRef,
		CreatedAt: e.CreatedAt,
	}
}

type SaccoDepositRepository struct {
	*pg.DB
}

func NewSaccoDepositRepository(db *pg.DB) *SaccoDepositRepository {
	return &SaccoDepositRepository{
		db,
	}
}

func (r *SaccoDepositRepository) Create(ctx context.Context, deposit *model.SaccoDeposit) (*model.SaccoDeposit, error) {
	entity := toSaccoDepositEntity(deposit)
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	if entity.Status == "" {
		entity.Status = string(model.SaccoDepositPending)
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toSaccoDepositModel(entity), nil
}

func (r *SaccoDepositRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.SaccoDeposit, error) {
	var entity SaccoDepositEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toSaccoDepositModel(&entity), nil
}

func (r *SaccoDepositRepository) ListPendingOldest(ctx context.Context, since time.Time, limit int) ([]*model.SaccoDeposit, error) {
	if limit <= 0 {
		limit = 100
	}
	var entities []*SaccoDepositEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND created_at >= ?", string(model.SaccoDepositPending), since).
		Order("created_at ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	models := make([]*model.SaccoDeposit, len(entities))
	for i, e := range entities {
		models[i] = toSaccoDepositModel(e)
	}
	return models, nil
}

// MarkPaid confirms a pending deposit. Deposits land in "confirmed" rather
// than "paid"; the name is kept uniform across payable repositories.
func (r *SaccoDepositRepository) MarkPaid(ctx context.Context, id uuid.UUID, ref string) (bool, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&SaccoDepositEntity{}).
		Where("id = ? AND status = ?", id, string(model.SaccoDepositPending)).
		Updates(map[string]interface{}{
			"status":  string(model.SaccoDepositConfirmed),
			"sms_ref": ref,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
