package finance

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	appbilling "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/finance"
	"github.com/erp/billing/internal/domain/partner"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory transaction scope. Execute snapshots the state
// and restores it when fn fails, so tests can observe rollbacks.
type memStore struct {
	mu        sync.Mutex
	documents map[uuid.UUID]*billing.Document
	payments  map[uuid.UUID]*finance.Payment
	entries   []finance.LedgerEntry
	locks     []uuid.UUID

	failSaveBalance error
}

func newMemStore() *memStore {
	return &memStore{
		documents: make(map[uuid.UUID]*billing.Document),
		payments:  make(map[uuid.UUID]*finance.Payment),
	}
}

func (s *memStore) Execute(_ context.Context, fn func(repos appbilling.TransactionalRepositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := maps.Clone(s.documents)
	payments := maps.Clone(s.payments)
	entries := slices.Clone(s.entries)
	if err := fn(s); err != nil {
		s.documents, s.payments, s.entries = docs, payments, entries
		return err
	}
	return nil
}

func (s *memStore) Documents() billing.DocumentRepository { return memDocuments{s} }
func (s *memStore) Payments() finance.PaymentRepository   { return memPayments{s} }
func (s *memStore) Ledger() finance.LedgerRepository      { return memLedger{s} }

func (s *memStore) put(doc *billing.Document) {
	s.documents[doc.ID] = cloneDocument(doc)
}

func (s *memStore) document(id uuid.UUID) *billing.Document {
	return s.documents[id]
}

func cloneDocument(d *billing.Document) *billing.Document {
	c := *d
	c.ClearDomainEvents()
	return &c
}

func clonePayment(p *finance.Payment) *finance.Payment {
	c := *p
	c.Allocations = slices.Clone(p.Allocations)
	c.ClearDomainEvents()
	return &c
}

type memDocuments struct{ s *memStore }

func (r memDocuments) FindByID(_ context.Context, tenantID, id uuid.UUID) (*billing.Document, error) {
	d, ok := r.s.documents[id]
	if !ok || d.TenantID != tenantID || d.IsDeleted() {
		return nil, shared.ErrNotFound
	}
	return cloneDocument(d), nil
}

func (r memDocuments) FindByIDForUpdate(_ context.Context, tenantID, id uuid.UUID) (*billing.Document, error) {
	d, ok := r.s.documents[id]
	if !ok || d.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	r.s.locks = append(r.s.locks, id)
	return cloneDocument(d), nil
}

func (r memDocuments) FindAll(context.Context, uuid.UUID, billing.DocumentFilter) ([]billing.Document, int64, error) {
	return nil, 0, errors.New("not used")
}

func (r memDocuments) FindOutstanding(_ context.Context, tenantID, counterpartyID uuid.UUID, docType billing.DocumentType) ([]billing.Document, error) {
	var out []billing.Document
	for _, d := range r.s.documents {
		if d.TenantID == tenantID && d.CounterpartyID == counterpartyID && d.Type == docType &&
			!d.IsDeleted() && d.Balance.IsPositive() {
			out = append(out, *cloneDocument(d))
		}
	}
	return out, nil
}

func (r memDocuments) ExistsByNumber(_ context.Context, tenantID uuid.UUID, docType billing.DocumentType, number string) (bool, error) {
	for _, d := range r.s.documents {
		if d.TenantID == tenantID && d.Type == docType && d.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (r memDocuments) Save(_ context.Context, doc *billing.Document) error {
	r.s.put(doc)
	doc.ClearDomainEvents()
	return nil
}

func (r memDocuments) SaveBalance(_ context.Context, doc *billing.Document) error {
	if r.s.failSaveBalance != nil {
		return r.s.failSaveBalance
	}
	r.s.put(doc)
	doc.ClearDomainEvents()
	return nil
}

type memPayments struct{ s *memStore }

func (r memPayments) FindByID(_ context.Context, tenantID, id uuid.UUID) (*finance.Payment, error) {
	p, ok := r.s.payments[id]
	if !ok || p.TenantID != tenantID || p.IsDeleted() {
		return nil, shared.ErrNotFound
	}
	return clonePayment(p), nil
}

func (r memPayments) FindByIDForUpdate(_ context.Context, tenantID, id uuid.UUID) (*finance.Payment, error) {
	p, ok := r.s.payments[id]
	if !ok || p.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	r.s.locks = append(r.s.locks, id)
	return clonePayment(p), nil
}

func (r memPayments) FindAll(_ context.Context, tenantID uuid.UUID, _ finance.PaymentFilter) ([]finance.Payment, int64, error) {
	var out []finance.Payment
	for _, p := range r.s.payments {
		if p.TenantID == tenantID && !p.IsDeleted() {
			out = append(out, *clonePayment(p))
		}
	}
	return out, int64(len(out)), nil
}

func (r memPayments) ExistsByNumber(_ context.Context, tenantID uuid.UUID, number string) (bool, error) {
	for _, p := range r.s.payments {
		if p.TenantID == tenantID && p.Number == number && !p.IsDeleted() {
			return true, nil
		}
	}
	return false, nil
}

func (r memPayments) Save(_ context.Context, payment *finance.Payment) error {
	r.s.payments[payment.ID] = clonePayment(payment)
	payment.ClearDomainEvents()
	return nil
}

func (r memPayments) CountAllocationsForDocument(_ context.Context, tenantID, documentID uuid.UUID) (int64, error) {
	var n int64
	for _, p := range r.s.payments {
		if p.TenantID != tenantID || p.IsDeleted() {
			continue
		}
		for _, a := range p.Allocations {
			if a.DocumentID == documentID {
				n++
			}
		}
	}
	return n, nil
}

type memLedger struct{ s *memStore }

func (r memLedger) Append(_ context.Context, entries ...*finance.LedgerEntry) error {
	for _, e := range entries {
		r.s.entries = append(r.s.entries, *e)
	}
	return nil
}

func (r memLedger) of(tenantID, counterpartyID uuid.UUID, filter finance.LedgerFilter) []finance.LedgerEntry {
	var out []finance.LedgerEntry
	for _, e := range r.s.entries {
		if e.TenantID != tenantID || e.CounterpartyID != counterpartyID {
			continue
		}
		if filter.From != nil && e.EntryDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.EntryDate.After(*filter.To) {
			continue
		}
		out = append(out, e)
	}
	slices.SortStableFunc(out, finance.CompareEntries)
	return out
}

func (r memLedger) FindByCounterparty(_ context.Context, tenantID, counterpartyID uuid.UUID, filter finance.LedgerFilter) ([]finance.LedgerEntry, int64, error) {
	all := r.of(tenantID, counterpartyID, filter)
	total := int64(len(all))
	start := min(filter.Offset, len(all))
	end := len(all)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(all))
	}
	return all[start:end], total, nil
}

func (r memLedger) OpeningBalance(_ context.Context, tenantID, counterpartyID uuid.UUID, filter finance.LedgerFilter) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range r.of(tenantID, counterpartyID, finance.LedgerFilter{}) {
		if filter.From != nil && e.EntryDate.Before(*filter.From) {
			sum = sum.Add(e.Amount())
		}
	}
	inRange := r.of(tenantID, counterpartyID, finance.LedgerFilter{From: filter.From, To: filter.To})
	for _, e := range inRange[:min(filter.Offset, len(inRange))] {
		sum = sum.Add(e.Amount())
	}
	return sum, nil
}

func (r memLedger) Balance(_ context.Context, tenantID, counterpartyID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range r.of(tenantID, counterpartyID, finance.LedgerFilter{}) {
		sum = sum.Add(e.Amount())
	}
	return sum, nil
}

func (r memLedger) DeleteByReference(_ context.Context, tenantID uuid.UUID, kind finance.LedgerKind, referenceID uuid.UUID) (int64, error) {
	before := len(r.s.entries)
	r.s.entries = slices.DeleteFunc(slices.Clone(r.s.entries), func(e finance.LedgerEntry) bool {
		return e.TenantID == tenantID && e.Kind == kind && e.ReferenceID != nil && *e.ReferenceID == referenceID
	})
	return int64(before - len(r.s.entries)), nil
}

func (r memLedger) DeleteOpeningBalance(_ context.Context, tenantID, counterpartyID uuid.UUID) (int64, error) {
	before := len(r.s.entries)
	r.s.entries = slices.DeleteFunc(slices.Clone(r.s.entries), func(e finance.LedgerEntry) bool {
		return e.TenantID == tenantID && e.CounterpartyID == counterpartyID && e.Kind == finance.LedgerKindOpeningBalance
	})
	return int64(before - len(r.s.entries)), nil
}

// staticParties resolves counterparties from a fixed set
type staticParties map[uuid.UUID]*partner.Counterparty

func (p staticParties) FindCounterparty(_ context.Context, tenantID, id uuid.UUID) (*partner.Counterparty, error) {
	cp, ok := p[id]
	if !ok || cp.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return cp, nil
}

func (p staticParties) FindCompany(context.Context, uuid.UUID) (*partner.Company, error) {
	return nil, shared.ErrNotFound
}
