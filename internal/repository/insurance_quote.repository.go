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

type InsuranceQuoteEntity struct {
	ID        uuid.UUID  `db:"id"         gorm:"primaryKey;column:id;type:uuid"`
	UserID    *uuid.UUID `db:"user_id"    gorm:"column:user_id;type:uuid;index"`
	Premium   int64      `db:"premium"    gorm:"column:premium;not null"`
	Status    string     `db:"status"     gorm:"column:status;not null;index"`
	SmsRef    string     `db:"sms_ref"    gorm:"column:sms_ref"`
	CreatedAt time.Time  `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (InsuranceQuoteEntity) TableName() string {
	return "insurance_quotes"
}

func toInsuranceQuoteEntity(m *model.InsuranceQuote) *InsuranceQuoteEntity {
	if m == nil {
		return nil
	}
	return &InsuranceQuoteEntity{
		ID:        m.ID,
		UserID:    m.UserID,
		Premium:   m.Premium,
		Status:    string(m.Status),
		SmsRef:    m.SmsRef,
		CreatedAt: m.CreatedAt,
	}
}

func toInsuranceQuoteModel(e *InsuranceQuoteEntity) *model.InsuranceQuote {
	if e == nil {
		return nil
	}
	return &model.InsuranceQuote{
		ID:        e.ID,
		UserID:    e.UserID,
		Premium:   e.Premium,
		Status:    model.InsuranceQuoteStatus(e.Status),
		SmsRef:    e.SmsRef,
		CreatedAt: e.CreatedAt,
	}
}

type InsuranceQuoteRepository struct {
	*pg.DB
}

func NewInsuranceQuoteRepository(db *pg.DB) *InsuranceQuoteRepository {
	return &InsuranceQuoteRepository{
		db,
	}
}

func (r *InsuranceQuoteRepository) Create(ctx context.Context, quote *model.InsuranceQuote) (*model.InsuranceQuote, error) {
	entity := toInsuranceQuoteEntity(quote)
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	if entity.Status == "" {
		entity.Status = string(model.InsuranceQuoteQuoted)
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toInsuranceQuoteModel(entity), nil
}

func (r *InsuranceQuoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.InsuranceQuote, error) {
	var entity InsuranceQuoteEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toInsuranceQuoteModel(&entity), nil
}

// ListPendingOldest returns quotes still in the quoted state, oldest-first.
func (r *InsuranceQuoteRepository) ListPendingOldest(ctx context.Context, since time.Time, limit int) ([]*model.InsuranceQuote, error) {
	if limit <= 0 {
		limit = 100
	}
	var entities []*InsuranceQuoteEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND created_at >= ?", string(model.InsuranceQuoteQuoted), since).
		Order("created_at ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	models := make([]*model.InsuranceQuote, len(entities))
	for i, e := range entities {
		models[i] = toInsuranceQuoteModel(e)
	}
	return models, nil
}

func (r *InsuranceQuoteRepository) MarkPaid(ctx context.Context, id uuid.UUID, ref string) (bool, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&InsuranceQuoteEntity{}).
		Where("id = ? AND status = ?", id, string(model.InsuranceQuoteQuoted)).
		Updates(map[string]interface{}{
			"status":  string(model.InsuranceQuotePaid),
			"sms_ref": ref,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
