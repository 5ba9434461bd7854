package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/gikundiro/momo-gateway/internal/services"
	xhttp "github.com/gikundiro/momo-gateway/pkg/http"
)

type MockSmsService struct {
	mock.Mock
}

func (m *MockSmsService) Ingest(ctx context.Context, p model.SmsIngestRequest) (*model.RawMessage, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RawMessage), args.Error(1)
}

func (m *MockSmsService) Get(ctx context.Context, id uuid.UUID) (*model.RawMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RawMessage), args.Error(1)
}

func (m *MockSmsService) GetReceipt(ctx context.Context, smsID uuid.UUID) (*model.ParsedReceipt, error) {
	args := m.Called(ctx, smsID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ParsedReceipt), args.Error(1)
}

func (m *MockSmsService) List(ctx context.Context, f model.SmsFilter) ([]*model.RawMessage, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.RawMessage), args.Get(1).(int64), args.Error(2)
}

func (m *MockSmsService) ListManualReview(ctx context.Context, f model.SmsFilter) ([]*model.RawMessage, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.RawMessage), args.Get(1).(int64), args.Error(2)
}

func (m *MockSmsService) Retry(ctx context.Context, id uuid.UUID) (*model.RawMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RawMessage), args.Error(1)
}

func (m *MockSmsService) Dismiss(ctx context.Context, id uuid.UUID, resolution string) (*model.RawMessage, error) {
	args := m.Called(ctx, id, resolution)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RawMessage), args.Error(1)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func TestSmsHandler_Webhook(t *testing.T) {
	t.Run("accepts valid sms", func(t *testing.T) {
		svc := new(MockSmsService)
		handler := NewSmsHandler(svc, "")

		created := &model.RawMessage{ID: uuid.New(), Status: model.IngestStatusReceived}
		svc.On("Ingest", mock.Anything, mock.MatchedBy(func(p model.SmsIngestRequest) bool {
			return p.Text == "Received 5,000 RWF Ref: MP1" && p.FromMsisdn == "+250788123456"
		})).Return(created, nil)

		body, _ := json.Marshal(map[string]string{
			"text": "Received 5,000 RWF Ref: MP1",
			"from": "+250788123456",
		})
		ctx := setupTestContext("POST", "/api/v1/sms/webhook", body)
		handler.Webhook(ctx)

		assert.Equal(t, 202, ctx.Response.StatusCode())
		var resp webhookResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		assert.True(t, resp.Ok)
		assert.Equal(t, created.ID, resp.SmsID)
		svc.AssertExpectations(t)
	})

	t.Run("rejects empty text", func(t *testing.T) {
		svc := new(MockSmsService)
		handler := NewSmsHandler(svc, "")
		svc.On("Ingest", mock.Anything, mock.Anything).Return(nil, services.ErrEmptyText)

		body, _ := json.Marshal(map[string]string{"text": ""})
		ctx := setupTestContext("POST", "/api/v1/sms/webhook", body)
		handler.Webhook(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		handler := NewSmsHandler(new(MockSmsService), "")

		ctx := setupTestContext("POST", "/api/v1/sms/webhook", []byte("{not json"))
		handler.Webhook(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("rejects wrong token", func(t *testing.T) {
		handler := NewSmsHandler(new(MockSmsService), "secret")

		body, _ := json.Marshal(map[string]string{"text": "100 RWF"})
		ctx := setupTestContext("POST", "/api/v1/sms/webhook", body)
		ctx.Request.Header.Set("X-Webhook-Token", "wrong")
		handler.Webhook(ctx)

		assert.Equal(t, 401, ctx.Response.StatusCode())
	})

	t.Run("accepts bearer token", func(t *testing.T) {
		svc := new(MockSmsService)
		handler := NewSmsHandler(svc, "secret")
		svc.On("Ingest", mock.Anything, mock.Anything).Return(&model.RawMessage{ID: uuid.New()}, nil)

		body, _ := json.Marshal(map[string]string{"text": "100 RWF"})
		ctx := setupTestContext("POST", "/api/v1/sms/webhook", body)
		ctx.Request.Header.Set("Authorization", "Bearer secret")
		handler.Webhook(ctx)

		assert.Equal(t, 202, ctx.Response.StatusCode())
	})
}

func TestSmsHandler_ListSms(t *testing.T) {
	svc := new(MockSmsService)
	handler := NewSmsHandler(svc, "")

	items := []*model.RawMessage{{ID: uuid.New(), Status: model.IngestStatusParsed}}
	svc.On("List", mock.Anything, mock.MatchedBy(func(f model.SmsFilter) bool {
		return len(f.Statuses) == 1 && f.Statuses[0] == model.IngestStatusParsed && f.Limit == 10 && f.Desc
	})).Return(items, int64(1), nil)

	ctx := setupTestContext("GET", "/api/v1/sms?status=parsed&limit=10&order=desc", nil)
	handler.ListSms(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	var resp smsListResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
	assert.Equal(t, int64(1), resp.Total)
	require.Len(t, resp.Items, 1)
	svc.AssertExpectations(t)
}

func TestSmsHandler_GetSms(t *testing.T) {
	t.Run("returns sms with receipt", func(t *testing.T) {
		svc := new(MockSmsService)
		handler := NewSmsHandler(svc, "")

		id := uuid.New()
		svc.On("Get", mock.Anything, id).Return(&model.RawMessage{ID: id}, nil)
		svc.On("GetReceipt", mock.Anything, id).Return(&model.ParsedReceipt{SmsID: id, Amount: 5000}, nil)

		ctx := setupTestContext("GET", "/api/v1/sms/"+id.String(), nil)
		ctx.SetUserValue("id", id.String())
		handler.GetSms(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		var resp smsDetailResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		require.NotNil(t, resp.Receipt)
		assert.Equal(t, int64(5000), resp.Receipt.Amount)
	})

	t.Run("404 for unknown sms", func(t *testing.T) {
		svc := new(MockSmsService)
		handler := NewSmsHandler(svc, "")

		id := uuid.New()
		svc.On("Get", mock.Anything, id).Return(nil, services.ErrNotFound)

		ctx := setupTestContext("GET", "/api/v1/sms/"+id.String(), nil)
		ctx.SetUserValue("id", id.String())
		handler.GetSms(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("400 for bad id", func(t *testing.T) {
		handler := NewSmsHandler(new(MockSmsService), "")

		ctx := setupTestContext("GET", "/api/v1/sms/nope", nil)
		ctx.SetUserValue("id", "nope")
		handler.GetSms(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestSmsHandler_RetrySms(t *testing.T) {
	t.Run("requeues review item", func(t *testing.T) {
		svc := new(MockSmsService)
		handler := NewSmsHandler(svc, "")

		id := uuid.New()
		svc.On("Retry", mock.Anything, id).Return(&model.RawMessage{ID: id, Status: model.IngestStatusReceived}, nil)

		ctx := setupTestContext("POST", "/api/v1/sms/"+id.String()+"/retry", nil)
		ctx.SetUserValue("id", id.String())
		handler.RetrySms(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
	})

	t.Run("409 when not reviewable", func(t *testing.T) {
		svc := new(MockSmsService)
		handler := NewSmsHandler(svc, "")

		id := uuid.New()
		svc.On("Retry", mock.Anything, id).Return(nil, services.ErrNotReviewable)

		ctx := setupTestContext("POST", "/api/v1/sms/"+id.String()+"/retry", nil)
		ctx.SetUserValue("id", id.String())
		handler.RetrySms(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})
}

func TestSmsHandler_DismissSms(t *testing.T) {
	svc := new(MockSmsService)
	handler := NewSmsHandler(svc, "")

	id := uuid.New()
	svc.On("Dismiss", mock.Anything, id, "linked_elsewhere").
		Return(&model.RawMessage{ID: id, Status: model.IngestStatusParsed}, nil)

	body, _ := json.Marshal(map[string]string{"resolution": "linked_elsewhere"})
	ctx := setupTestContext("POST", "/api/v1/sms/"+id.String()+"/dismiss", body)
	ctx.SetUserValue("id", id.String())
	handler.DismissSms(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	var resp model.RawMessage
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
	assert.Equal(t, model.IngestStatusParsed, resp.Status)
	svc.AssertExpectations(t)
}
