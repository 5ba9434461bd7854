package repository

import (
	"context"
	"testing"
	"time"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReceipt(smsID uuid.UUID, amount int64, ref string) *model.ParsedReceipt {
	return &model.ParsedReceipt{
		SmsID:         smsID,
		Amount:        amount,
		Currency:      "RWF",
		Ref:           ref,
		Timestamp:     time.Now(),
		Confidence:    0.45,
		ParserVersion: "heuristic:v1",
	}
}

func TestReceiptRepository_Upsert(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewReceiptRepository(db)
	ctx := context.Background()

	t.Run("insert", func(t *testing.T) {
		smsID := uuid.New()
		created, err := repo.Upsert(ctx, testReceipt(smsID, 5000, "MP1"))
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.Equal(t, int64(5000), created.Amount)
	})

	t.Run("replay replaces parse fields, keeps row identity", func(t *testing.T) {
		smsID := uuid.New()
		first, err := repo.Upsert(ctx, testReceipt(smsID, 1000, "MP-A"))
		require.NoError(t, err)

		updated := testReceipt(smsID, 1500, "MP-B")
		updated.ParserVersion = "openai:gpt-4o-mini"
		second, err := repo.Upsert(ctx, updated)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, int64(1500), second.Amount)
		assert.Equal(t, "MP-B", second.Ref)
		assert.Equal(t, "openai:gpt-4o-mini", second.ParserVersion)
	})

	t.Run("replay does not clear the match stamp", func(t *testing.T) {
		smsID := uuid.New()
		first, err := repo.Upsert(ctx, testReceipt(smsID, 2000, "MP-C"))
		require.NoError(t, err)

		stamped, err := repo.StampMatchedEntity(ctx, first.ID, "ticket_order:"+uuid.NewString())
		require.NoError(t, err)
		require.True(t, stamped)

		second, err := repo.Upsert(ctx, testReceipt(smsID, 2000, "MP-C"))
		require.NoError(t, err)
		assert.NotEmpty(t, second.MatchedEntity)
	})
}

func TestReceiptRepository_GetBySmsID(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewReceiptRepository(db)
	ctx := context.Background()

	smsID := uuid.New()
	_, err := repo.Upsert(ctx, testReceipt(smsID, 3000, "MP-D"))
	require.NoError(t, err)

	got, err := repo.GetBySmsID(ctx, smsID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), got.Amount)

	_, err = repo.GetBySmsID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReceiptRepository_StampMatchedEntity(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewReceiptRepository(db)
	ctx := context.Background()

	created, err := repo.Upsert(ctx, testReceipt(uuid.New(), 4000, "MP-E"))
	require.NoError(t, err)

	stamped, err := repo.StampMatchedEntity(ctx, created.ID, "shop_order:abc")
	require.NoError(t, err)
	assert.True(t, stamped)

	// Second stamp loses; the first write wins for good.
	again, err := repo.StampMatchedEntity(ctx, created.ID, "sacco_deposit:xyz")
	require.NoError(t, err)
	assert.False(t, again)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "shop_order:abc", got.MatchedEntity)
}
