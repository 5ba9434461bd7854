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

var (
	ErrMemberNotFound = errors.New("member not found")
)

type MemberEntity struct {
	ID        uuid.UUID `db:"id"         gorm:"primaryKey;column:id;type:uuid"`
	Msisdn    string    `db:"msisdn"     gorm:"column:msisdn"`
	Points    int64     `db:"points"     gorm:"column:points;not null;default:0"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (MemberEntity) TableName() string {
	return "members"
}

func toMemberModel(e *MemberEntity) *model.Member {
	if e == nil {
		return nil
	}
	return &model.Member{
		ID:        e.ID,
		Msisdn:    e.Msisdn,
		Points:    e.Points,
		CreatedAt: e.CreatedAt,
	}
}

type MemberRepository struct {
	*pg.DB
}

func NewMemberRepository(db *pg.DB) *MemberRepository {
	return &MemberRepository{
		db,
	}
}

func (r *MemberRepository) Create(ctx context.Context, member *model.Member) (*model.Member, error) {
	entity := &MemberEntity{
		ID:     member.ID,
		Msisdn: member.Msisdn,
		Points: member.Points,
	}
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toMemberModel(entity), nil
}

func (r *MemberRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Member, error) {
	var entity MemberEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return toMemberModel(&entity), nil
}

// IncrementPoints credits loyalty points atomically in the database so
// concurrent reconciliations never lose an increment.
func (r *MemberRepository) IncrementPoints(ctx context.Context, memberID uuid.UUID, delta int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&MemberEntity{}).
		Where("id = ?", memberID).
		Update("points", gorm.Expr("points + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}
