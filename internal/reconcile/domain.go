package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/gikundiro/momo-gateway/internal/repository"
)

// Domain is one searchable pool of unpaid records. Settle flips a single
// candidate to its paid state and reports false when another writer got
// there first.
type Domain interface {
	Kind() model.PayableKind
	ListPendingOldest(ctx context.Context, since time.Time, limit int) ([]model.Payable, error)
	Settle(ctx context.Context, id uuid.UUID, ref string) (bool, error)
	TransactionKind() model.TransactionKind
}

type ticketDomain struct {
	repo *repository.TicketOrderRepository
}

func (d *ticketDomain) Kind() model.PayableKind { return model.PayableTicketOrder }

func (d *ticketDomain) ListPendingOldest(ctx context.Context, since time.Time, limit int) ([]model.Payable, error) {
	orders, err := d.repo.ListPendingOldest(ctx, since, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.Payable, len(orders))
	for i, o := range orders {
		out[i] = o
	}
	return out, nil
}

func (d *ticketDomain) Settle(ctx context.Context, id uuid.UUID, ref string) (bool, error) {
	paid, err := d.repo.MarkPaid(ctx, id, ref)
	if err != nil || !paid {
		return paid, err
	}
	// Every paid ticket order carries exactly one gate pass.
	if _, err := d.repo.EnsurePass(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

func (d *ticketDomain) TransactionKind() model.TransactionKind { return model.TransactionPurchase }

type shopDomain struct {
	repo *repository.ShopOrderRepository
}

func (d *shopDomain) Kind() model.PayableKind { return model.PayableShopOrder }

func (d *shopDomain) ListPendingOldest(ctx context.Context, since time.Time, limit int) ([]model.Payable, error) {
	orders, err := d.repo.ListPendingOldest(ctx, since, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.Payable, len(orders))
	for i, o := range orders {
		out[i] = o
	}
	return out, nil
}

func (d *shopDomain) Settle(ctx context.Context, id uuid.UUID, ref string) (bool, error) {
	return d.repo.MarkPaid(ctx, id, ref)
}

func (d *shopDomain) TransactionKind() model.TransactionKind { return model.TransactionPurchase }

type insuranceDomain struct {
	repo *repository.InsuranceQuoteRepository
}

func (d *insuranceDomain) Kind() model.PayableKind { return model.PayableInsuranceQuote }

func (d *insuranceDomain) ListPendingOldest(ctx context.Context, since time.Time, limit int) ([]model.Payable, error) {
	quotes, err := d.repo.ListPendingOldest(ctx, since, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.Payable, len(quotes))
	for i, q := range quotes {
		out[i] = q
	}
	return out, nil
}

func (d *insuranceDomain) Settle(ctx context.Context, id uuid.UUID, ref string) (bool, error) {
	return d.repo.MarkPaid(ctx, id, ref)
}

func (d *insuranceDomain) TransactionKind() model.TransactionKind { return model.TransactionPurchase }

type saccoDomain struct {
	repo *repository.SaccoDepositRepository
}

func (d *saccoDomain) Kind() model.PayableKind { return model.PayableSaccoDeposit }

func (d *saccoDomain) ListPendingOldest(ctx context.Context, since time.Time, limit int) ([]model.Payable, error) {
	deposits, err := d.repo.ListPendingOldest(ctx, since, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.Payable, len(deposits))
	for i, dep := range deposits {
		out[i] = dep
	}
	return out, nil
}

func (d *saccoDomain) Settle(ctx context.Context, id uuid.UUID, ref string) (bool, error) {
	return d.repo.MarkPaid(ctx, id, ref)
}

func (d *saccoDomain) TransactionKind() model.TransactionKind { return model.TransactionDeposit }

// Domains returns the search order. Ticket orders are checked first and
// sacco deposits last; the first domain holding an exact amount match wins.
func Domains(
	tickets *repository.TicketOrderRepository,
	shop *repository.ShopOrderRepository,
	insurance *repository.InsuranceQuoteRepository,
	sacco *repository.SaccoDepositRepository,
) []Domain {
	return []Domain{
		&ticketDomain{repo: tickets},
		&shopDomain{repo: shop},
		&insuranceDomain{repo: insurance},
		&saccoDomain{repo: sacco},
	}
}
