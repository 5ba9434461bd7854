package repository

import (
	"testing"

	"github.com/gikundiro/momo-gateway/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

func setupTestDB(t *testing.T) *testDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// A second pooled connection to :memory: would see an empty database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&SmsRawEntity{},
		&SmsParsedEntity{},
		&TicketOrderEntity{},
		&TicketPassEntity{},
		&ShopOrderEntity{},
		&InsuranceQuoteEntity{},
		&SaccoDepositEntity{},
		&TransactionEntity{},
		&MemberEntity{},
	)
	require.NoError(t, err)

	return &testDB{
		DB:    pg.NewFromGorm(db, db),
		rawDB: db,
	}
}
