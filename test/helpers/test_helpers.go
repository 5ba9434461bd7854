package helpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/gikundiro/momo-gateway/internal/repository"
	"github.com/gikundiro/momo-gateway/pkg/pg"
	"github.com/gikundiro/momo-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// One connection only: every pooled sqlite connection to :memory:
	// opens its own empty database, which breaks concurrent consumers.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&repository.SmsRawEntity{},
		&repository.SmsParsedEntity{},
		&repository.TicketOrderEntity{},
		&repository.TicketPassEntity{},
		&repository.ShopOrderEntity{},
		&repository.InsuranceQuoteEntity{},
		&repository.SaccoDepositEntity{},
		&repository.TransactionEntity{},
		&repository.MemberEntity{},
	)
	require.NoError(t, err)

	return pg.NewFromGorm(db, db)
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	adapter, err := redis.NewRedisAdapter(fmt.Sprintf("test-%d", time.Now().UnixNano()), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestSms(t *testing.T, db *pg.DB, msg *model.RawMessage) *model.RawMessage {
	created, err := repository.NewSmsRepository(db).Create(context.Background(), msg)
	require.NoError(t, err)
	return created
}

func CreateTestTicketOrder(t *testing.T, db *pg.DB, order *model.TicketOrder) *model.TicketOrder {
	created, err := repository.NewTicketOrderRepository(db).Create(context.Background(), order)
	require.NoError(t, err)
	return created
}

func CreateTestMember(t *testing.T, db *pg.DB, member *model.Member) *model.Member {
	created, err := repository.NewMemberRepository(db).Create(context.Background(), member)
	require.NoError(t, err)
	return created
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
