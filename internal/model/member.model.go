package model

import (
	"time"

	"github.com/google/uuid"
)

// Member is the app user a payable entity belongs to. Only the loyalty
// points balance is touched by this service.
type Member struct {
	ID        uuid.UUID `json:"id"         db:"id"         gorm:"primaryKey;column:id;type:uuid"`
	Msisdn    string    `json:"msisdn"     db:"msisdn"     gorm:"column:msisdn"`
	Points    int64     `json:"points"     db:"points"     gorm:"column:points;not null;default:0"`
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Member) TableName() string { return "members" }
