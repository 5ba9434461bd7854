// Package reconcile matches parsed mobile-money receipts against unpaid
// records across the business domains and settles the winner atomically.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/gikundiro/momo-gateway/internal/repository"
	"github.com/gikundiro/momo-gateway/pkg/logger"
	"github.com/gikundiro/momo-gateway/pkg/pg"
	"github.com/gikundiro/momo-gateway/pkg/prom"
)

// Outcome is the terminal result of one reconciliation attempt.
type Outcome string

const (
	OutcomeConfirmed     Outcome = "confirmed"
	OutcomeManualReview  Outcome = "manual_review"
	OutcomeMissingParsed Outcome = "missing_parsed"
)

// loyaltyDivisor converts settled minor units into loyalty points.
const loyaltyDivisor = 100

// defaultMatchWindow bounds how far back the candidate scan looks.
// Receipts rarely settle records older than a few days; anything beyond
// the window goes to manual review instead.
const defaultMatchWindow = 3 * 24 * time.Hour

var (
	errCandidateTaken = errors.New("candidate settled by another receipt")
	errAlreadyMatched = errors.New("receipt already matched")
)

type Engine struct {
	db             *pg.DB
	domains        []Domain
	receipts       *repository.ReceiptRepository
	transactions   *repository.TransactionRepository
	members        *repository.MemberRepository
	candidateLimit int
	matchWindow    time.Duration
}

func NewEngine(
	db *pg.DB,
	domains []Domain,
	receipts *repository.ReceiptRepository,
	transactions *repository.TransactionRepository,
	members *repository.MemberRepository,
	candidateLimit int,
	matchWindow time.Duration,
) *Engine {
	if candidateLimit <= 0 {
		candidateLimit = 100
	}
	if matchWindow <= 0 {
		matchWindow = defaultMatchWindow
	}
	return &Engine{
		db:             db,
		domains:        domains,
		receipts:       receipts,
		transactions:   transactions,
		members:        members,
		candidateLimit: candidateLimit,
		matchWindow:    matchWindow,
	}
}

// Reconcile resolves the receipt for the given SMS against the domains
// in priority order. It is safe to call repeatedly for the same SMS:
// an already-matched receipt short-circuits to confirmed.
func (e *Engine) Reconcile(ctx context.Context, smsID uuid.UUID) (Outcome, error) {
	receipt, err := e.receipts.GetBySmsID(ctx, smsID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			prom.IncReconcileOutcome(string(OutcomeMissingParsed), "none")
			return OutcomeMissingParsed, nil
		}
		return "", err
	}

	if receipt.MatchedEntity != "" {
		logger.Debug("receipt already reconciled", "sms_id", smsID, "matched", receipt.MatchedEntity)
		prom.IncReconcileOutcome(string(OutcomeConfirmed), "repeat")
		return OutcomeConfirmed, nil
	}

	for _, domain := range e.domains {
		outcome, matched, err := e.tryDomain(ctx, domain, receipt)
		if err != nil {
			return "", err
		}
		if matched {
			prom.IncReconcileOutcome(string(outcome), string(domain.Kind()))
			return outcome, nil
		}
	}

	prom.IncReconcileOutcome(string(OutcomeManualReview), "none")
	logger.Info("no amount match across domains, flagging for review",
		"sms_id", smsID, "amount", receipt.Amount, "ref", receipt.Ref)
	return OutcomeManualReview, nil
}

// tryDomain walks the domain's pending records oldest first and settles
// the first exact amount match. A candidate lost to a concurrent writer
// is skipped, not retried.
func (e *Engine) tryDomain(ctx context.Context, domain Domain, receipt *model.ParsedReceipt) (Outcome, bool, error) {
	candidates, err := domain.ListPendingOldest(ctx, time.Now().Add(-e.matchWindow), e.candidateLimit)
	if err != nil {
		return "", false, err
	}

	for _, candidate := range candidates {
		if candidate.AmountOwed() != receipt.Amount {
			continue
		}

		err := e.db.WithinTransaction(ctx, func(txCtx context.Context) error {
			return e.settle(txCtx, domain, candidate, receipt)
		})
		switch {
		case err == nil:
			logger.Info("receipt reconciled",
				"sms_id", receipt.SmsID, "domain", domain.Kind(),
				"entity_id", candidate.PayableID(), "amount", receipt.Amount)
			return OutcomeConfirmed, true, nil
		case errors.Is(err, errCandidateTaken):
			continue
		case errors.Is(err, errAlreadyMatched):
			return OutcomeConfirmed, true, nil
		default:
			return "", false, err
		}
	}

	return "", false, nil
}

func (e *Engine) settle(ctx context.Context, domain Domain, candidate model.Payable, receipt *model.ParsedReceipt) error {
	settled, err := domain.Settle(ctx, candidate.PayableID(), receipt.Ref)
	if err != nil {
		return err
	}
	if !settled {
		return errCandidateTaken
	}

	matched := fmt.Sprintf("%s:%s", domain.Kind(), candidate.PayableID())
	stamped, err := e.receipts.StampMatchedEntity(ctx, receipt.ID, matched)
	if err != nil {
		return err
	}
	if !stamped {
		return errAlreadyMatched
	}

	owner := candidate.Owner()
	if _, err := e.transactions.Create(ctx, &model.Transaction{
		UserID: owner,
		Amount: receipt.Amount,
		Kind:   domain.TransactionKind(),
		Ref:    receipt.Ref,
	}); err != nil {
		return err
	}

	if owner != nil {
		points := receipt.Amount / loyaltyDivisor
		if points > 0 {
			if err := e.members.IncrementPoints(ctx, *owner, points); err != nil {
				if errors.Is(err, repository.ErrMemberNotFound) {
					logger.Warn("loyalty points skipped, member missing",
						"member_id", *owner, "sms_id", receipt.SmsID)
					return nil
				}
				return err
			}
		}
	}

	return nil
}
