package repository

import (
	"context"
	"errors"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/gikundiro/momo-gateway/pkg/pg"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReceiptRepository struct {
	*pg.DB
}

func NewReceiptRepository(db *pg.DB) *ReceiptRepository {
	return &ReceiptRepository{
		db,
	}
}

// Upsert writes the parsed receipt for a raw message, replacing any earlier
// parse of the same message. Keyed by sms_id so job replays stay idempotent.
func (r *ReceiptRepository) Upsert(ctx context.Context, receipt *model.ParsedReceipt) (*model.ParsedReceipt, error) {
	entity := toSmsParsedEntity(receipt)
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "sms_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"amount", "currency", "payer_mask", "ref", "timestamp", "confidence", "parser_version",
			}),
		}).
		Create(entity).Error
	if err != nil {
		return nil, err
	}

	// Re-read so replays return the row that actually won the conflict.
	var stored SmsParsedEntity
	if err := r.Write(ctx).WithContext(ctx).Where("sms_id = ?", entity.SmsID).First(&stored).Error; err != nil {
		return nil, err
	}

	return toSmsParsedModel(&stored), nil
}

func (r *ReceiptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ParsedReceipt, error) {
	var entity SmsParsedEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toSmsParsedModel(&entity), nil
}

func (r *ReceiptRepository) GetBySmsID(ctx context.Context, smsID uuid.UUID) (*model.ParsedReceipt, error) {
	var entity SmsParsedEntity
	err := r.Read(ctx).WithContext(ctx).Where("sms_id = ?", smsID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toSmsParsedModel(&entity), nil
}

// StampMatchedEntity records which payable entity the receipt resolved to.
// The stamp is written at most once; a receipt that already carries one is
// left alone and false is returned.
func (r *ReceiptRepository) StampMatchedEntity(ctx context.Context, id uuid.UUID, matched string) (bool, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&SmsParsedEntity{}).
		Where("id = ? AND (matched_entity IS NULL OR matched_entity = '')", id).
		Update("matched_entity", matched)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
