package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/google/uuid"

	xhttp "github.com/gikundiro/momo-gateway/pkg/http"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/gikundiro/momo-gateway/internal/services"
)

type SmsService interface {
	Ingest(ctx context.Context, p model.SmsIngestRequest) (*model.RawMessage, error)
	Get(ctx context.Context, id uuid.UUID) (*model.RawMessage, error)
	GetReceipt(ctx context.Context, smsID uuid.UUID) (*model.ParsedReceipt, error)
	List(ctx context.Context, f model.SmsFilter) ([]*model.RawMessage, int64, error)
	ListManualReview(ctx context.Context, f model.SmsFilter) ([]*model.RawMessage, int64, error)
	Retry(ctx context.Context, id uuid.UUID) (*model.RawMessage, error)
	Dismiss(ctx context.Context, id uuid.UUID, resolution string) (*model.RawMessage, error)
}

type SmsHandler struct {
	svc          SmsService
	webhookToken string
}

func NewSmsHandler(svc SmsService, webhookToken string) *SmsHandler {
	return &SmsHandler{svc: svc, webhookToken: webhookToken}
}

func RegisterSmsRoutes(e *router.Group, h *SmsHandler) {
	e.POST("/sms/webhook", h.Webhook)
	e.GET("/sms", h.ListSms)
	e.GET("/sms/manual-review", h.ListManualReview)
	e.GET("/sms/{id}", h.GetSms)
	e.POST("/sms/{id}/retry", h.RetrySms)
	e.POST("/sms/{id}/dismiss", h.DismissSms)
}

type webhookRequest struct {
	Text       string `json:"text"`
	From       string `json:"from"`
	To         string `json:"to"`
	ReceivedAt string `json:"received_at"`
}

type webhookResponse struct {
	Ok    bool      `json:"ok"`
	SmsID uuid.UUID `json:"sms_id"`
}

type smsListResponse struct {
	Items []*model.RawMessage `json:"items"`
	Total int64               `json:"total"`
}

type smsDetailResponse struct {
	Sms     *model.RawMessage    `json:"sms"`
	Receipt *model.ParsedReceipt `json:"receipt,omitempty"`
}

type dismissRequest struct {
	Resolution string `json:"resolution"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *SmsHandler) Webhook(ctx *xhttp.RequestCtx) {
	if !h.authorized(ctx) {
		writeError(ctx, 401, "invalid webhook token")
		return
	}

	var req webhookRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	p := model.SmsIngestRequest{
		Text:       req.Text,
		FromMsisdn: req.From,
		ToMsisdn:   req.To,
	}
	if req.ReceivedAt != "" {
		if t, err := parseTime(req.ReceivedAt); err == nil {
			p.ReceivedAt = t
		}
	}

	msg, err := h.svc.Ingest(ctx, p)
	if err != nil {
		if errors.Is(err, services.ErrEmptyText) {
			writeError(ctx, 400, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}

	writeJSON(ctx, 202, webhookResponse{Ok: true, SmsID: msg.ID})
}

// authorized compares the shared webhook token in constant time. An
// empty configured token disables the check for local development.
func (h *SmsHandler) authorized(ctx *xhttp.RequestCtx) bool {
	if h.webhookToken == "" {
		return true
	}

	presented := string(ctx.Request.Header.Peek("X-Webhook-Token"))
	if presented == "" {
		auth := string(ctx.Request.Header.Peek("Authorization"))
		presented = strings.TrimPrefix(auth, "Bearer ")
	}

	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.webhookToken)) == 1
}

func (h *SmsHandler) ListSms(ctx *xhttp.RequestCtx) {
	items, total, err := h.svc.List(ctx, smsFilter(ctx))
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, smsListResponse{Items: items, Total: total})
}

func (h *SmsHandler) ListManualReview(ctx *xhttp.RequestCtx) {
	items, total, err := h.svc.ListManualReview(ctx, smsFilter(ctx))
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, smsListResponse{Items: items, Total: total})
}

func (h *SmsHandler) GetSms(ctx *xhttp.RequestCtx) {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid sms id")
		return
	}

	msg, err := h.svc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(ctx, 404, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}

	resp := smsDetailResponse{Sms: msg}
	if receipt, err := h.svc.GetReceipt(ctx, id); err == nil {
		resp.Receipt = receipt
	}
	writeJSON(ctx, 200, resp)
}

func (h *SmsHandler) RetrySms(ctx *xhttp.RequestCtx) {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid sms id")
		return
	}

	msg, err := h.svc.Retry(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, msg)
}

func (h *SmsHandler) DismissSms(ctx *xhttp.RequestCtx) {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid sms id")
		return
	}

	var req dismissRequest
	if len(ctx.PostBody()) > 0 {
		if err := readJSON(ctx, &req); err != nil {
			writeError(ctx, 400, "invalid JSON: "+err.Error())
			return
		}
	}

	msg, err := h.svc.Dismiss(ctx, id, req.Resolution)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, msg)
}

func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeError(ctx, 404, err.Error())
	case errors.Is(err, services.ErrNotReviewable), errors.Is(err, services.ErrUnknownResolution):
		writeError(ctx, 409, err.Error())
	default:
		writeError(ctx, 500, err.Error())
	}
}

/* --------------------------------- Helpers ----------------------------------- */

func smsFilter(ctx *xhttp.RequestCtx) model.SmsFilter {
	var f model.SmsFilter

	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.IngestStatus(parts[i]))
			}
		}
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	return f
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func paramUUID(ctx *xhttp.RequestCtx, name string) (uuid.UUID, error) {
	v, _ := ctx.UserValue(name).(string)
	return uuid.Parse(v)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
