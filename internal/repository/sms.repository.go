package repository

import (
	"context"
	"errors"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/gikundiro/momo-gateway/pkg/pg"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
)

type SmsRepository struct {
	*pg.DB
}

func NewSmsRepository(db *pg.DB) *SmsRepository {
	return &SmsRepository{
		db,
	}
}

func (r *SmsRepository) Create(ctx context.Context, msg *model.RawMessage) (*model.RawMessage, error) {
	entity := toSmsRawEntity(msg)
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toSmsRawModel(entity), nil
}

func (r *SmsRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.RawMessage, error) {
	var entity SmsRawEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toSmsRawModel(&entity), nil
}

// UpdateStatus moves a raw message to a new ingest status. The text itself
// is immutable and never touched here.
func (r *SmsRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.IngestStatus) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&SmsRawEntity{}).
		Where("id = ?", id).
		Update("status", string(status))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SmsRepository) List(ctx context.Context, f model.SmsFilter) ([]*model.RawMessage, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&SmsRawEntity{})

	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.From != nil {
		q = q.Where("received_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("received_at < ?", *f.To)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "received_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*SmsRawEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toSmsRawModels(entities), total, nil
}
