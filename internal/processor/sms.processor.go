package processor

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/gikundiro/momo-gateway/internal/queue"
	"github.com/gikundiro/momo-gateway/internal/reconcile"
	"github.com/gikundiro/momo-gateway/internal/repository"
	"github.com/gikundiro/momo-gateway/pkg/logger"
)

type SmsRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.RawMessage, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.IngestStatus) error
}

type ReceiptRepository interface {
	Upsert(ctx context.Context, receipt *model.ParsedReceipt) (*model.ParsedReceipt, error)
}

type Parser interface {
	Parse(sms *model.RawMessage) (*model.ParsedReceipt, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, smsID uuid.UUID) (reconcile.Outcome, error)
}

type Notifier interface {
	SmsParsed(smsID uuid.UUID, status string)
	SmsReconciled(smsID uuid.UUID, outcome string)
}

// SmsParseProcessor runs one queued SMS through parse and reconcile.
type SmsParseProcessor struct {
	smsRepo     SmsRepository
	receiptRepo ReceiptRepository
	parser      Parser
	reconciler  Reconciler
	notifier    Notifier
}

func NewSmsParseProcessor(
	smsRepo SmsRepository,
	receiptRepo ReceiptRepository,
	parser Parser,
	reconciler Reconciler,
	notifier Notifier,
) *SmsParseProcessor {
	return &SmsParseProcessor{
		smsRepo:     smsRepo,
		receiptRepo: receiptRepo,
		parser:      parser,
		reconciler:  reconciler,
		notifier:    notifier,
	}
}

func (p *SmsParseProcessor) GetType() string {
	return "sms-parse"
}

// parseJob mirrors services.ParseJob without importing the service layer.
type parseJob struct {
	SmsID uuid.UUID `json:"sms_id"`
}

// Process implements the pipeline for one delivery. Errors returned here
// trigger the queue's backoff retry; nil acks the job for good.
func (p *SmsParseProcessor) Process(ctx context.Context, job *queue.Job) error {
	var payload parseJob
	if err := json.Unmarshal(job.Data, &payload); err != nil {
		// Malformed payloads never succeed on retry.
		logger.Error("dropping undecodable parse job", "job_id", job.JobID, "error", err.Error())
		return nil
	}

	sms, err := p.smsRepo.GetByID(ctx, payload.SmsID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Error("parse job references missing sms, dropping", "sms_id", payload.SmsID)
			return nil
		}
		return err
	}

	receipt, err := p.parser.Parse(sms)
	if err != nil {
		return p.failed(ctx, job, sms.ID, err)
	}

	if receipt == nil {
		// Not a payment confirmation.
		if err := p.smsRepo.UpdateStatus(ctx, sms.ID, model.IngestStatusError); err != nil {
			return err
		}
		if p.notifier != nil {
			p.notifier.SmsParsed(sms.ID, string(model.IngestStatusError))
		}
		logger.Info("sms is not a payment", "sms_id", sms.ID)
		return nil
	}

	if _, err := p.receiptRepo.Upsert(ctx, receipt); err != nil {
		return p.failed(ctx, job, sms.ID, err)
	}
	if p.notifier != nil {
		p.notifier.SmsParsed(sms.ID, string(model.IngestStatusReceived))
	}

	outcome, err := p.reconciler.Reconcile(ctx, sms.ID)
	if err != nil {
		return p.failed(ctx, job, sms.ID, err)
	}

	status := statusForOutcome(outcome)
	if err := p.smsRepo.UpdateStatus(ctx, sms.ID, status); err != nil {
		return err
	}
	if p.notifier != nil {
		p.notifier.SmsReconciled(sms.ID, string(outcome))
	}

	logger.Info("sms processed",
		"sms_id", sms.ID, "outcome", outcome, "status", status,
		"amount", receipt.Amount, "parser", receipt.ParserVersion)
	return nil
}

// failed propagates a transient error to the queue. Once the job is on
// its last attempt the message is flagged so it surfaces in the review
// views instead of sitting in received forever.
func (p *SmsParseProcessor) failed(ctx context.Context, job *queue.Job, smsID uuid.UUID, cause error) error {
	if job.FinalAttempt {
		if err := p.smsRepo.UpdateStatus(ctx, smsID, model.IngestStatusError); err != nil {
			logger.Error("failed to flag exhausted sms", "sms_id", smsID, "error", err.Error())
		} else if p.notifier != nil {
			p.notifier.SmsParsed(smsID, string(model.IngestStatusError))
		}
	}
	return cause
}

func statusForOutcome(outcome reconcile.Outcome) model.IngestStatus {
	switch outcome {
	case reconcile.OutcomeConfirmed:
		return model.IngestStatusParsed
	case reconcile.OutcomeManualReview:
		return model.IngestStatusManualReview
	default:
		return model.IngestStatusError
	}
}
