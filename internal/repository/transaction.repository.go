package repository

import (
	"context"
	"time"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/gikundiro/momo-gateway/pkg/pg"
	"github.com/google/uuid"
)

type TransactionEntity struct {
	ID        uuid.UUID  `db:"id"         gorm:"primaryKey;column:id;type:uuid"`
	UserID    *uuid.UUID `db:"user_id"    gorm:"column:user_id;type:uuid;index"`
	Amount    int64      `db:"amount"     gorm:"column:amount;not null"`
	Kind      string     `db:"kind"       gorm:"column:kind;not null"`
	Ref       string     `db:"ref"        gorm:"column:ref;not null;index"`
	Status    string     `db:"status"     gorm:"column:status;not null"`
	CreatedAt time.Time  `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	return &TransactionEntity{
		ID:        m.ID,
		UserID:    m.UserID,
		Amount:    m.Amount,
		Kind:      string(m.Kind),
		Ref:       m.Ref,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:        e.ID,
		UserID:    e.UserID,
		Amount:    e.Amount,
		Kind:      model.TransactionKind(e.Kind),
		Ref:       e.Ref,
		Status:    e.Status,
		CreatedAt: e.CreatedAt,
	}
}

// TransactionRepository is the append-only audit ledger. Rows are inserted
// once and never updated or deleted.
type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	if entity.Status == "" {
		entity.Status = "confirmed"
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toTransactionModel(entity), nil
}

func (r *TransactionRepository) CountByRef(ctx context.Context, ref string) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("ref = ?", ref).
		Count(&count).Error
	return count, err
}
