package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/gikundiro/momo-gateway/internal/repository"
	"github.com/gikundiro/momo-gateway/pkg/pg"
)

type engineFixture struct {
	engine       *Engine
	receipts     *repository.ReceiptRepository
	tickets      *repository.TicketOrderRepository
	shop         *repository.ShopOrderRepository
	insurance    *repository.InsuranceQuoteRepository
	sacco        *repository.SaccoDepositRepository
	transactions *repository.TransactionRepository
	members      *repository.MemberRepository
}

func setupEngine(t *testing.T) *engineFixture {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// A second pooled connection to :memory: would see an empty database.
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = gdb.AutoMigrate(
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

	db := pg.NewFromGorm(gdb, gdb)
	f := &engineFixture{
		receipts:     repository.NewReceiptRepository(db),
		tickets:      repository.NewTicketOrderRepository(db),
		shop:         repository.NewShopOrderRepository(db),
		insurance:    repository.NewInsuranceQuoteRepository(db),
		sacco:        repository.NewSaccoDepositRepository(db),
		transactions: repository.NewTransactionRepository(db),
		members:      repository.NewMemberRepository(db),
	}
	f.engine = NewEngine(
		db,
		Domains(f.tickets, f.shop, f.insurance, f.sacco),
		f.receipts,
		f.transactions,
		f.members,
		100,
		0,
	)
	return f
}

func (f *engineFixture) addReceipt(t *testing.T, amount int64, ref string) *model.ParsedReceipt {
	receipt, err := f.receipts.Upsert(context.Background(), &model.ParsedReceipt{
		SmsID:         uuid.New(),
		Amount:        amount,
		Currency:      "RWF",
		Ref:           ref,
		Timestamp:     time.Now(),
		Confidence:    0.9,
		ParserVersion: "openai:gpt-4o-mini",
	})
	require.NoError(t, err)
	return receipt
}

func TestReconcileTicketOrder(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()
	memberID := uuid.New()

	_, err := f.members.Create(ctx, &model.Member{ID: memberID, Msisdn: "+250788123456"})
	require.NoError(t, err)

	order, err := f.tickets.Create(ctx, &model.TicketOrder{
		UserID: &memberID,
		Total:  5000,
		Status: model.TicketOrderPending,
	})
	require.NoError(t, err)

	receipt := f.addReceipt(t, 5000, "MP123")

	outcome, err := f.engine.Reconcile(ctx, receipt.SmsID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)

	paid, err := f.tickets.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketOrderPaid, paid.Status)
	assert.Equal(t, "MP123", paid.SmsRef)

	passes, err := f.tickets.CountPasses(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), passes)

	count, err := f.transactions.CountByRef(ctx, "MP123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	member, err := f.members.GetByID(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), member.Points)

	stamped, err := f.receipts.GetBySmsID(ctx, receipt.SmsID)
	require.NoError(t, err)
	assert.Contains(t, stamped.MatchedEntity, "ticket_order:")
}

func TestReconcileRepeatIsIdempotent(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	_, err := f.tickets.Create(ctx, &model.TicketOrder{Total: 5000, Status: model.TicketOrderPending})
	require.NoError(t, err)
	receipt := f.addReceipt(t, 5000, "MP123")

	outcome, err := f.engine.Reconcile(ctx, receipt.SmsID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)

	outcome, err = f.engine.Reconcile(ctx, receipt.SmsID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)

	count, err := f.transactions.CountByRef(ctx, "MP123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestReconcileDomainPriority(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	// Same amount pending in a lower priority domain, created earlier.
	_, err := f.sacco.Create(ctx, &model.SaccoDeposit{
		Amount:    7000,
		Status:    model.SaccoDepositPending,
		CreatedAt: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	order, err := f.tickets.Create(ctx, &model.TicketOrder{Total: 7000, Status: model.TicketOrderPending})
	require.NoError(t, err)

	receipt := f.addReceipt(t, 7000, "MP7")
	outcome, err := f.engine.Reconcile(ctx, receipt.SmsID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)

	paid, err := f.tickets.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketOrderPaid, paid.Status)
}

func TestReconcileOldestCandidateWins(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	older, err := f.shop.Create(ctx, &model.ShopOrder{
		Total:     3000,
		Status:    model.ShopOrderPending,
		CreatedAt: time.Now().Add(-2 * time.Hour),
	})
	require.NoError(t, err)
	newer, err := f.shop.Create(ctx, &model.ShopOrder{
		Total:     3000,
		Status:    model.ShopOrderPending,
		CreatedAt: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	receipt := f.addReceipt(t, 3000, "MP3")
	outcome, err := f.engine.Reconcile(ctx, receipt.SmsID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)

	first, err := f.shop.GetByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ShopOrderPaid, first.Status)

	second, err := f.shop.GetByID(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ShopOrderPending, second.Status)
}

func TestReconcileSaccoDepositKind(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	deposit, err := f.sacco.Create(ctx, &model.SaccoDeposit{Amount: 9000, Status: model.SaccoDepositPending})
	require.NoError(t, err)

	receipt := f.addReceipt(t, 9000, "DEP-1")
	outcome, err := f.engine.Reconcile(ctx, receipt.SmsID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)

	confirmed, err := f.sacco.GetByID(ctx, deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SaccoDepositConfirmed, confirmed.Status)
}

func TestReconcileNoMatchGoesToReview(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	_, err := f.tickets.Create(ctx, &model.TicketOrder{Total: 4000, Status: model.TicketOrderPending})
	require.NoError(t, err)

	receipt := f.addReceipt(t, 4500, "MP-NOPE")
	outcome, err := f.engine.Reconcile(ctx, receipt.SmsID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeManualReview, outcome)

	count, err := f.transactions.CountByRef(ctx, "MP-NOPE")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestReconcileIgnoresCandidatesOutsideWindow(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	stale, err := f.tickets.Create(ctx, &model.TicketOrder{
		Total:     5000,
		Status:    model.TicketOrderPending,
		CreatedAt: time.Now().Add(-10 * 24 * time.Hour),
	})
	require.NoError(t, err)

	receipt := f.addReceipt(t, 5000, "MP-STALE")
	outcome, err := f.engine.Reconcile(ctx, receipt.SmsID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeManualReview, outcome)

	untouched, err := f.tickets.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketOrderPending, untouched.Status)
}

func TestReconcileConcurrentSingleCandidate(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	_, err := f.tickets.Create(ctx, &model.TicketOrder{Total: 6000, Status: model.TicketOrderPending})
	require.NoError(t, err)

	receipts := []*model.ParsedReceipt{
		f.addReceipt(t, 6000, "MP-A"),
		f.addReceipt(t, 6000, "MP-B"),
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	outcomes := make([]Outcome, len(receipts))
	errs := make([]error, len(receipts))
	for i, r := range receipts {
		wg.Add(1)
		go func(i int, smsID uuid.UUID) {
			defer wg.Done()
			<-start
			outcomes[i], errs[i] = f.engine.Reconcile(ctx, smsID)
		}(i, r.SmsID)
	}
	close(start)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.ElementsMatch(t, []Outcome{OutcomeConfirmed, OutcomeManualReview}, outcomes)

	// The single pending order settles exactly once.
	var total int64
	for _, ref := range []string{"MP-A", "MP-B"} {
		n, err := f.transactions.CountByRef(ctx, ref)
		require.NoError(t, err)
		total += n
	}
	assert.Equal(t, int64(1), total)
}

func TestReconcileMissingParsed(t *testing.T) {
	f := setupEngine(t)

	outcome, err := f.engine.Reconcile(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, OutcomeMissingParsed, outcome)
}

func TestReconcileSkipsNonPendingCandidates(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	_, err := f.tickets.Create(ctx, &model.TicketOrder{Total: 2000, Status: model.TicketOrderCancelled})
	require.NoError(t, err)

	receipt := f.addReceipt(t, 2000, "MP2")
	outcome, err := f.engine.Reconcile(ctx, receipt.SmsID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeManualReview, outcome)
}

func TestReconcileNoOwnerSkipsPoints(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	_, err := f.shop.Create(ctx, &model.ShopOrder{Total: 1500, Status: model.ShopOrderPending})
	require.NoError(t, err)

	receipt := f.addReceipt(t, 1500, "MP15")
	outcome, err := f.engine.Reconcile(ctx, receipt.SmsID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)

	count, err := f.transactions.CountByRef(ctx, "MP15")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
