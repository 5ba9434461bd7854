package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/gikundiro/momo-gateway/internal/repository"
)

type MockSmsRepository struct {
	mock.Mock
}

func (m *MockSmsRepository) Create(ctx context.Context, msg *model.RawMessage) (*model.RawMessage, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RawMessage), args.Error(1)
}

func (m *MockSmsRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.RawMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RawMessage), args.Error(1)
}

func (m *MockSmsRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.IngestStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockSmsRepository) List(ctx context.Context, f model.SmsFilter) ([]*model.RawMessage, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.RawMessage), args.Get(1).(int64), args.Error(2)
}

type MockReceiptRepository struct {
	mock.Mock
}

func (m *MockReceiptRepository) GetBySmsID(ctx context.Context, smsID uuid.UUID) (*model.ParsedReceipt, error) {
	args := m.Called(ctx, smsID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ParsedReceipt), args.Error(1)
}

type MockParseQueue struct {
	mock.Mock
}

func (m *MockParseQueue) EnqueueJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	args := m.Called(ctx, data, metadata)
	return args.String(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SmsReceived(smsID uuid.UUID) {
	m.Called(smsID)
}

func TestSmsServiceIngest(t *testing.T) {
	t.Run("persists and enqueues", func(t *testing.T) {
		smsRepo := new(MockSmsRepository)
		queue := new(MockParseQueue)
		notifier := new(MockNotifier)
		svc := NewSmsService(smsRepo, nil, queue, notifier)

		created := &model.RawMessage{
			ID:     uuid.New(),
			Text:   "Received 5,000 RWF Ref: MP1",
			Status: model.IngestStatusReceived,
		}
		smsRepo.On("Create", mock.Anything, mock.MatchedBy(func(msg *model.RawMessage) bool {
			return msg.Status == model.IngestStatusReceived && !msg.ReceivedAt.IsZero()
		})).Return(created, nil)
		queue.On("EnqueueJSON", mock.Anything, ParseJob{SmsID: created.ID}, mock.Anything).Return("job-1", nil)
		notifier.On("SmsReceived", created.ID).Return()

		msg, err := svc.Ingest(context.Background(), model.SmsIngestRequest{
			Text:       "Received 5,000 RWF Ref: MP1",
			FromMsisdn: "+250788123456",
		})
		require.NoError(t, err)
		assert.Equal(t, created.ID, msg.ID)

		smsRepo.AssertExpectations(t)
		queue.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("rejects empty text", func(t *testing.T) {
		svc := NewSmsService(new(MockSmsRepository), nil, new(MockParseQueue), nil)

		_, err := svc.Ingest(context.Background(), model.SmsIngestRequest{Text: "   "})
		assert.ErrorIs(t, err, ErrEmptyText)
	})

	t.Run("enqueue failure does not fail ingest", func(t *testing.T) {
		smsRepo := new(MockSmsRepository)
		queue := new(MockParseQueue)
		svc := NewSmsService(smsRepo, nil, queue, nil)

		created := &model.RawMessage{ID: uuid.New(), Status: model.IngestStatusReceived}
		smsRepo.On("Create", mock.Anything, mock.Anything).Return(created, nil)
		queue.On("EnqueueJSON", mock.Anything, mock.Anything, mock.Anything).Return("", assert.AnError)

		msg, err := svc.Ingest(context.Background(), model.SmsIngestRequest{Text: "hello 100 RWF"})
		require.NoError(t, err)
		assert.Equal(t, created.ID, msg.ID)
	})
}

func TestSmsServiceRetry(t *testing.T) {
	t.Run("resets and re-enqueues review item", func(t *testing.T) {
		smsRepo := new(MockSmsRepository)
		queue := new(MockParseQueue)
		svc := NewSmsService(smsRepo, nil, queue, nil)

		id := uuid.New()
		smsRepo.On("GetByID", mock.Anything, id).Return(&model.RawMessage{ID: id, Status: model.IngestStatusManualReview}, nil)
		smsRepo.On("UpdateStatus", mock.Anything, id, model.IngestStatusReceived).Return(nil)
		queue.On("EnqueueJSON", mock.Anything, ParseJob{SmsID: id}, mock.Anything).Return("job-2", nil)

		msg, err := svc.Retry(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, model.IngestStatusReceived, msg.Status)
		smsRepo.AssertExpectations(t)
	})

	t.Run("refuses non reviewable status", func(t *testing.T) {
		smsRepo := new(MockSmsRepository)
		svc := NewSmsService(smsRepo, nil, new(MockParseQueue), nil)

		id := uuid.New()
		smsRepo.On("GetByID", mock.Anything, id).Return(&model.RawMessage{ID: id, Status: model.IngestStatusParsed}, nil)

		_, err := svc.Retry(context.Background(), id)
		assert.ErrorIs(t, err, ErrNotReviewable)
	})

	t.Run("unknown sms", func(t *testing.T) {
		smsRepo := new(MockSmsRepository)
		svc := NewSmsService(smsRepo, nil, new(MockParseQueue), nil)

		id := uuid.New()
		smsRepo.On("GetByID", mock.Anything, id).Return(nil, repository.ErrNotFound)

		_, err := svc.Retry(context.Background(), id)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSmsServiceDismiss(t *testing.T) {
	id := uuid.New()

	cases := []struct {
		name       string
		resolution string
		want       model.IngestStatus
		wantErr    error
	}{
		{"linked elsewhere becomes parsed", ResolutionLinkedElsewhere, model.IngestStatusParsed, nil},
		{"not a payment becomes error", ResolutionNotAPayment, model.IngestStatusError, nil},
		{"empty resolution becomes error", "", model.IngestStatusError, nil},
		{"unknown resolution rejected", "wat", "", ErrUnknownResolution},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			smsRepo := new(MockSmsRepository)
			svc := NewSmsService(smsRepo, nil, new(MockParseQueue), nil)

			smsRepo.On("GetByID", mock.Anything, id).Return(&model.RawMessage{ID: id, Status: model.IngestStatusManualReview}, nil)
			if tc.wantErr == nil {
				smsRepo.On("UpdateStatus", mock.Anything, id, tc.want).Return(nil)
			}

			msg, err := svc.Dismiss(context.Background(), id, tc.resolution)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, msg.Status)
		})
	}
}

func TestSmsServiceListManualReview(t *testing.T) {
	smsRepo := new(MockSmsRepository)
	svc := NewSmsService(smsRepo, nil, new(MockParseQueue), nil)

	smsRepo.On("List", mock.Anything, mock.MatchedBy(func(f model.SmsFilter) bool {
		return len(f.Statuses) == 2 &&
			f.Statuses[0] == model.IngestStatusManualReview &&
			f.Statuses[1] == model.IngestStatusError
	})).Return([]*model.RawMessage{}, int64(0), nil)

	_, _, err := svc.ListManualReview(context.Background(), model.SmsFilter{})
	require.NoError(t, err)
	smsRepo.AssertExpectations(t)
}

func TestSmsServiceIngestSetsReceivedAt(t *testing.T) {
	smsRepo := new(MockSmsRepository)
	queue := new(MockParseQueue)
	svc := NewSmsService(smsRepo, nil, queue, nil)

	explicit := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	smsRepo.On("Create", mock.Anything, mock.MatchedBy(func(msg *model.RawMessage) bool {
		return msg.ReceivedAt.Equal(explicit)
	})).Return(&model.RawMessage{ID: uuid.New()}, nil)
	queue.On("EnqueueJSON", mock.Anything, mock.Anything, mock.Anything).Return("job", nil)

	_, err := svc.Ingest(context.Background(), model.SmsIngestRequest{Text: "x 100 RWF", ReceivedAt: explicit})
	require.NoError(t, err)
	smsRepo.AssertExpectations(t)
}
