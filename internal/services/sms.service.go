package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/gikundiro/momo-gateway/internal/repository"
	"github.com/gikundiro/momo-gateway/pkg/logger"
)

var (
	ErrEmptyText         = fmt.Errorf("sms text cannot be empty")
	ErrNotFound          = errors.New("sms not found")
	ErrNotReviewable     = errors.New("sms is not awaiting review")
	ErrUnknownResolution = errors.New("unknown dismiss resolution")
)

// Dismiss resolutions accepted by the review API.
const (
	ResolutionLinkedElsewhere = "linked_elsewhere"
	ResolutionNotAPayment     = "not_a_payment"
)

type SmsRepository interface {
	Create(ctx context.Context, msg *model.RawMessage) (*model.RawMessage, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.RawMessage, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.IngestStatus) error
	List(ctx context.Context, f model.SmsFilter) ([]*model.RawMessage, int64, error) // results, totalCount
}

type ReceiptRepository interface {
	GetBySmsID(ctx context.Context, smsID uuid.UUID) (*model.ParsedReceipt, error)
}

type ParseQueue interface {
	EnqueueJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

type Notifier interface {
	SmsReceived(smsID uuid.UUID)
}

// ParseJob is the queue payload linking a job to its raw message.
type ParseJob struct {
	SmsID uuid.UUID `json:"sms_id"`
}

type SmsService struct {
	smsRepo     SmsRepository
	receiptRepo ReceiptRepository
	queue       ParseQueue
	notifier    Notifier
}

func NewSmsService(smsRepo SmsRepository, receiptRepo ReceiptRepository, queue ParseQueue, notifier Notifier) *SmsService {
	return &SmsService{
		smsRepo:     smsRepo,
		receiptRepo: receiptRepo,
		queue:       queue,
		notifier:    notifier,
	}
}

// Ingest persists an inbound SMS and enqueues it for parsing. The text
// is stored verbatim; classification happens in the worker.
func (s *SmsService) Ingest(ctx context.Context, p model.SmsIngestRequest) (*model.RawMessage, error) {
	p.Text = strings.TrimSpace(p.Text)
	if err := p.Validate(); err != nil {
		return nil, ErrEmptyText
	}

	receivedAt := p.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	msg, err := s.smsRepo.Create(ctx, &model.RawMessage{
		Text:       p.Text,
		FromMsisdn: strings.TrimSpace(p.FromMsisdn),
		ToMsisdn:   strings.TrimSpace(p.ToMsisdn),
		ReceivedAt: receivedAt,
		Status:     model.IngestStatusReceived,
	})
	if err != nil {
		return nil, fmt.Errorf("create sms: %w", err)
	}

	if err := s.enqueue(ctx, msg.ID); err != nil {
		// The row is durable; a stuck message surfaces in the review list.
		logger.Error("failed to enqueue parse job", "sms_id", msg.ID, "error", err.Error())
	}

	if s.notifier != nil {
		s.notifier.SmsReceived(msg.ID)
	}

	return msg, nil
}

func (s *SmsService) enqueue(ctx context.Context, smsID uuid.UUID) error {
	_, err := s.queue.EnqueueJSON(ctx, ParseJob{SmsID: smsID}, map[string]string{"type": "parse"})
	return err
}

func (s *SmsService) Get(ctx context.Context, id uuid.UUID) (*model.RawMessage, error) {
	msg, err := s.smsRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return msg, nil
}

func (s *SmsService) List(ctx context.Context, f model.SmsFilter) ([]*model.RawMessage, int64, error) {
	return s.smsRepo.List(ctx, f)
}

// ListManualReview returns messages stuck awaiting an operator decision.
func (s *SmsService) ListManualReview(ctx context.Context, f model.SmsFilter) ([]*model.RawMessage, int64, error) {
	f.Statuses = []model.IngestStatus{model.IngestStatusManualReview, model.IngestStatusError}
	return s.smsRepo.List(ctx, f)
}

// GetReceipt returns the parsed receipt for an SMS, or ErrNotFound when
// parsing has not produced one.
func (s *SmsService) GetReceipt(ctx context.Context, smsID uuid.UUID) (*model.ParsedReceipt, error) {
	receipt, err := s.receiptRepo.GetBySmsID(ctx, smsID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return receipt, nil
}

// Retry resets a reviewed message and runs it through the pipeline again.
func (s *SmsService) Retry(ctx context.Context, id uuid.UUID) (*model.RawMessage, error) {
	msg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if msg.Status != model.IngestStatusManualReview && msg.Status != model.IngestStatusError {
		return nil, ErrNotReviewable
	}

	if err := s.smsRepo.UpdateStatus(ctx, id, model.IngestStatusReceived); err != nil {
		return nil, fmt.Errorf("reset status: %w", err)
	}
	if err := s.enqueue(ctx, id); err != nil {
		return nil, fmt.Errorf("enqueue retry: %w", err)
	}

	msg.Status = model.IngestStatusReceived
	logger.Info("sms requeued by operator", "sms_id", id)
	return msg, nil
}

// Dismiss closes a review item without reprocessing. A payment linked
// manually elsewhere counts as parsed; anything else is marked error.
func (s *SmsService) Dismiss(ctx context.Context, id uuid.UUID, resolution string) (*model.RawMessage, error) {
	msg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if msg.Status != model.IngestStatusManualReview && msg.Status != model.IngestStatusError {
		return nil, ErrNotReviewable
	}

	var status model.IngestStatus
	switch resolution {
	case ResolutionLinkedElsewhere:
		status = model.IngestStatusParsed
	case ResolutionNotAPayment, "":
		status = model.IngestStatusError
	default:
		return nil, ErrUnknownResolution
	}

	if err := s.smsRepo.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("dismiss: %w", err)
	}

	msg.Status = status
	logger.Info("sms dismissed by operator", "sms_id", id, "resolution", resolution, "status", status)
	return msg, nil
}
