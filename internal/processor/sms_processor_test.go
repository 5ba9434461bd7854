package processor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/gikundiro/momo-gateway/internal/queue"
	"github.com/gikundiro/momo-gateway/internal/reconcile"
	"github.com/gikundiro/momo-gateway/internal/repository"
)

type MockSmsRepo struct{ mock.Mock }

func (m *MockSmsRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.RawMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RawMessage), args.Error(1)
}

func (m *MockSmsRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.IngestStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

type MockReceiptRepo struct{ mock.Mock }

func (m *MockReceiptRepo) Upsert(ctx context.Context, receipt *model.ParsedReceipt) (*model.ParsedReceipt, error) {
	args := m.Called(ctx, receipt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ParsedReceipt), args.Error(1)
}

type MockParser struct{ mock.Mock }

func (m *MockParser) Parse(sms *model.RawMessage) (*model.ParsedReceipt, error) {
	args := m.Called(sms)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ParsedReceipt), args.Error(1)
}

type MockReconciler struct{ mock.Mock }

func (m *MockReconciler) Reconcile(ctx context.Context, smsID uuid.UUID) (reconcile.Outcome, error) {
	args := m.Called(ctx, smsID)
	return args.Get(0).(reconcile.Outcome), args.Error(1)
}

type MockEvents struct{ mock.Mock }

func (m *MockEvents) SmsParsed(smsID uuid.UUID, status string) { m.Called(smsID, status) }

func (m *MockEvents) SmsReconciled(smsID uuid.UUID, outcome string) { m.Called(smsID, outcome) }

func parseJobFor(t *testing.T, smsID uuid.UUID) *queue.Job {
	data, err := json.Marshal(map[string]string{"sms_id": smsID.String()})
	require.NoError(t, err)
	return &queue.Job{ID: "1-0", JobID: uuid.NewString(), Data: data}
}

func TestSmsParseProcessor(t *testing.T) {
	smsID := uuid.New()
	sms := &model.RawMessage{ID: smsID, Text: "Received 5,000 RWF Ref: MP1", Status: model.IngestStatusReceived}
	receipt := &model.ParsedReceipt{SmsID: smsID, Amount: 5000, Ref: "MP1"}

	t.Run("confirmed outcome marks sms parsed", func(t *testing.T) {
		smsRepo := new(MockSmsRepo)
		receiptRepo := new(MockReceiptRepo)
		parser := new(MockParser)
		reconciler := new(MockReconciler)
		events := new(MockEvents)

		smsRepo.On("GetByID", mock.Anything, smsID).Return(sms, nil)
		parser.On("Parse", sms).Return(receipt, nil)
		receiptRepo.On("Upsert", mock.Anything, receipt).Return(receipt, nil)
		events.On("SmsParsed", smsID, mock.Anything).Return()
		reconciler.On("Reconcile", mock.Anything, smsID).Return(reconcile.OutcomeConfirmed, nil)
		smsRepo.On("UpdateStatus", mock.Anything, smsID, model.IngestStatusParsed).Return(nil)
		events.On("SmsReconciled", smsID, "confirmed").Return()

		p := NewSmsParseProcessor(smsRepo, receiptRepo, parser, reconciler, events)
		err := p.Process(context.Background(), parseJobFor(t, smsID))
		require.NoError(t, err)

		smsRepo.AssertExpectations(t)
		receiptRepo.AssertExpectations(t)
		events.AssertExpectations(t)
	})

	t.Run("manual review outcome", func(t *testing.T) {
		smsRepo := new(MockSmsRepo)
		receiptRepo := new(MockReceiptRepo)
		parser := new(MockParser)
		reconciler := new(MockReconciler)

		smsRepo.On("GetByID", mock.Anything, smsID).Return(sms, nil)
		parser.On("Parse", sms).Return(receipt, nil)
		receiptRepo.On("Upsert", mock.Anything, receipt).Return(receipt, nil)
		reconciler.On("Reconcile", mock.Anything, smsID).Return(reconcile.OutcomeManualReview, nil)
		smsRepo.On("UpdateStatus", mock.Anything, smsID, model.IngestStatusManualReview).Return(nil)

		p := NewSmsParseProcessor(smsRepo, receiptRepo, parser, reconciler, nil)
		require.NoError(t, p.Process(context.Background(), parseJobFor(t, smsID)))
		smsRepo.AssertExpectations(t)
	})

	t.Run("non payment marks sms error without reconcile", func(t *testing.T) {
		smsRepo := new(MockSmsRepo)
		parser := new(MockParser)
		reconciler := new(MockReconciler)

		smsRepo.On("GetByID", mock.Anything, smsID).Return(sms, nil)
		parser.On("Parse", sms).Return(nil, nil)
		smsRepo.On("UpdateStatus", mock.Anything, smsID, model.IngestStatusError).Return(nil)

		p := NewSmsParseProcessor(smsRepo, new(MockReceiptRepo), parser, reconciler, nil)
		require.NoError(t, p.Process(context.Background(), parseJobFor(t, smsID)))

		reconciler.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
	})

	t.Run("missing sms is dropped without error", func(t *testing.T) {
		smsRepo := new(MockSmsRepo)
		smsRepo.On("GetByID", mock.Anything, smsID).Return(nil, repository.ErrNotFound)

		p := NewSmsParseProcessor(smsRepo, new(MockReceiptRepo), new(MockParser), new(MockReconciler), nil)
		require.NoError(t, p.Process(context.Background(), parseJobFor(t, smsID)))
	})

	t.Run("malformed payload is dropped without error", func(t *testing.T) {
		p := NewSmsParseProcessor(new(MockSmsRepo), new(MockReceiptRepo), new(MockParser), new(MockReconciler), nil)
		err := p.Process(context.Background(), &queue.Job{ID: "1-0", Data: []byte("not json")})
		require.NoError(t, err)
	})

	t.Run("parse failure is retried", func(t *testing.T) {
		smsRepo := new(MockSmsRepo)
		parser := new(MockParser)

		smsRepo.On("GetByID", mock.Anything, smsID).Return(sms, nil)
		parser.On("Parse", sms).Return(nil, assert.AnError)

		p := NewSmsParseProcessor(smsRepo, new(MockReceiptRepo), parser, new(MockReconciler), nil)
		err := p.Process(context.Background(), parseJobFor(t, smsID))
		assert.Error(t, err)
	})

	t.Run("reconcile failure is retried", func(t *testing.T) {
		smsRepo := new(MockSmsRepo)
		receiptRepo := new(MockReceiptRepo)
		parser := new(MockParser)
		reconciler := new(MockReconciler)

		smsRepo.On("GetByID", mock.Anything, smsID).Return(sms, nil)
		parser.On("Parse", sms).Return(receipt, nil)
		receiptRepo.On("Upsert", mock.Anything, receipt).Return(receipt, nil)
		reconciler.On("Reconcile", mock.Anything, smsID).Return(reconcile.Outcome(""), assert.AnError)

		p := NewSmsParseProcessor(smsRepo, receiptRepo, parser, reconciler, nil)
		err := p.Process(context.Background(), parseJobFor(t, smsID))
		assert.Error(t, err)
	})

	t.Run("final attempt failure flags sms as error", func(t *testing.T) {
		smsRepo := new(MockSmsRepo)
		parser := new(MockParser)
		events := new(MockEvents)

		smsRepo.On("GetByID", mock.Anything, smsID).Return(sms, nil)
		parser.On("Parse", sms).Return(nil, assert.AnError)
		smsRepo.On("UpdateStatus", mock.Anything, smsID, model.IngestStatusError).Return(nil)
		events.On("SmsParsed", smsID, string(model.IngestStatusError)).Return()

		job := parseJobFor(t, smsID)
		job.Attempts = 2
		job.FinalAttempt = true

		p := NewSmsParseProcessor(smsRepo, new(MockReceiptRepo), parser, new(MockReconciler), events)
		err := p.Process(context.Background(), job)
		assert.Error(t, err)
		smsRepo.AssertCalled(t, "UpdateStatus", mock.Anything, smsID, model.IngestStatusError)
		events.AssertExpectations(t)
	})
}
