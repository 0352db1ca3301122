package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	appbilling "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/catalog"
	"github.com/erp/billing/internal/domain/finance"
	"github.com/erp/billing/internal/domain/partner"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/domain/tax"
	"github.com/erp/billing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupBillingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	// one connection so every statement sees the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.BillingDocumentModel{},
		&models.BillingDocumentItemModel{},
		&models.PaymentModel{},
		&models.PaymentAllocationModel{},
		&models.LedgerEntryModel{},
		&models.CounterpartyModel{},
		&models.CompanyModel{},
		&models.CatalogItemModel{},
	))
	return db
}

type billingFixture struct {
	actor  shared.Principal
	client *partner.Counterparty
	item   *catalog.Item
}

func newBillingFixture() billingFixture {
	tenantID := uuid.New()
	return billingFixture{
		actor:  shared.NewPrincipal(tenantID, uuid.New()),
		client: &partner.Counterparty{ID: uuid.New(), TenantID: tenantID, Kind: partner.CounterpartyClient, Name: "Acme", Jurisdiction: "Kerala"},
		item: &catalog.Item{
			ID: uuid.New(), TenantID: tenantID, Code: "SRV", Name: "Consulting", HSNCode: "998311",
			Unit: "HRS", Price: decimal.NewFromInt(100), TaxRate: decimal.NewFromInt(18), Active: true,
		},
	}
}

func (f billingFixture) invoice(t *testing.T, qty int64, due *time.Time) *billing.Document {
	t.Helper()
	doc, err := billing.NewDocument(f.actor,
		billing.Header{Type: billing.DocumentTypeInvoice, IssueDate: utcDay(1), DueDate: due, PlaceOfSupply: "Kerala"},
		billing.Parties{Counterparty: f.client, HomeJurisdiction: "Kerala"},
		[]billing.LineRequest{{ItemID: f.item.ID, Quantity: decimal.NewFromInt(qty)}},
		map[uuid.UUID]*catalog.Item{f.item.ID: f.item},
	)
	require.NoError(t, err)
	return doc
}

func utcDay(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func TestGormDocumentRepository_SaveAndFind(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()
	f := newBillingFixture()

	doc := f.invoice(t, 2, nil)
	require.NoError(t, repo.Save(ctx, doc))

	found, err := repo.FindByID(ctx, f.actor.TenantID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Number, found.Number)
	assert.Equal(t, billing.StatusOpen, found.Status)
	assert.True(t, found.Total.Equal(decimal.RequireFromString("236")), "total %s", found.Total)
	assert.True(t, found.CGST.Equal(decimal.NewFromInt(18)))
	assert.True(t, found.Balance.Equal(found.Total))
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Consulting", found.Items[0].Snapshot.Name)
	assert.Equal(t, "998311", found.Items[0].Snapshot.HSNCode)

	t.Run("other tenant cannot see it", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New(), doc.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("number is unique per type", func(t *testing.T) {
		exists, err := repo.ExistsByNumber(ctx, f.actor.TenantID, billing.DocumentTypeInvoice, doc.Number)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ExistsByNumber(ctx, f.actor.TenantID, billing.DocumentTypeCreditNote, doc.Number)
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestGormDocumentRepository_SoftDeleted(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()
	f := newBillingFixture()

	doc := f.invoice(t, 1, nil)
	require.NoError(t, repo.Save(ctx, doc))
	require.NoError(t, doc.Delete(f.actor, 0))
	require.NoError(t, repo.Save(ctx, doc))

	_, err := repo.FindByID(ctx, f.actor.TenantID, doc.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	locked, err := repo.FindByIDForUpdate(ctx, f.actor.TenantID, doc.ID)
	require.NoError(t, err)
	assert.True(t, locked.IsDeleted())
	assert.Len(t, locked.Items, 1, "items survive a soft delete")

	docs, total, err := repo.FindAll(ctx, f.actor.TenantID, billing.DocumentFilter{Filter: shared.DefaultFilter()})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, docs)
}

func TestGormDocumentRepository_SaveBalance(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()
	f := newBillingFixture()

	doc := f.invoice(t, 1, nil) // 118.00
	require.NoError(t, repo.Save(ctx, doc))

	require.NoError(t, doc.ApplyAllocation(f.actor, decimal.NewFromInt(18)))
	require.NoError(t, repo.SaveBalance(ctx, doc))

	found, err := repo.FindByID(ctx, f.actor.TenantID, doc.ID)
	require.NoError(t, err)
	assert.True(t, found.Balance.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, billing.StatusPartiallyPaid, found.Status)
	assert.Equal(t, doc.Version, found.Version)

	t.Run("unknown document", func(t *testing.T) {
		ghost := f.invoice(t, 1, nil)
		assert.ErrorIs(t, repo.SaveBalance(ctx, ghost), shared.ErrNotFound)
	})
}

func TestGormDocumentRepository_FindOutstanding(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()
	f := newBillingFixture()

	march, jan := utcDay(60), utcDay(20)
	undated := f.invoice(t, 1, nil)
	late := f.invoice(t, 1, &march)
	early := f.invoice(t, 1, &jan)
	paid := f.invoice(t, 1, &jan)
	require.NoError(t, paid.ApplyAllocation(f.actor, paid.Total))
	cancelled := f.invoice(t, 1, &jan)
	require.NoError(t, cancelled.Cancel(f.actor, "duplicate"))

	for _, d := range []*billing.Document{undated, late, early, paid, cancelled} {
		require.NoError(t, repo.Save(ctx, d))
	}

	docs, err := repo.FindOutstanding(ctx, f.actor.TenantID, f.client.ID, billing.DocumentTypeInvoice)
	require.NoError(t, err)
	ids := make([]uuid.UUID, len(docs))
	for i := range docs {
		ids[i] = docs[i].ID
	}
	assert.Equal(t, []uuid.UUID{early.ID, late.ID, undated.ID}, ids)
}

func TestGormPaymentRepository_SaveReplacesAllocations(t *testing.T) {
	db := setupBillingTestDB(t)
	docs := NewGormDocumentRepository(db)
	repo := NewGormPaymentRepository(db)
	ctx := context.Background()
	f := newBillingFixture()

	inv := f.invoice(t, 1, nil)
	require.NoError(t, docs.Save(ctx, inv))

	payment, err := finance.NewPayment(f.actor, finance.PaymentInput{
		CounterpartyID: f.client.ID,
		Direction:      finance.DirectionReceived,
		Method:         finance.PaymentMethodUPI,
		Amount:         decimal.NewFromInt(200),
		PaymentDate:    utcDay(5),
	})
	require.NoError(t, err)

	distribution := finance.NewDistributionService()
	require.NoError(t, distribution.Apply(f.actor, payment,
		[]finance.AllocationRequest{{DocumentID: inv.ID, DocumentType: billing.DocumentTypeInvoice, Value: decimal.NewFromInt(100)}},
		map[uuid.UUID]billing.Settleable{inv.ID: inv}))
	require.NoError(t, repo.Save(ctx, payment))

	found, err := repo.FindByIDForUpdate(ctx, f.actor.TenantID, payment.ID)
	require.NoError(t, err)
	require.Len(t, found.Allocations, 1)
	assert.Equal(t, inv.Number, found.Allocations[0].DocumentNumber)
	assert.True(t, found.AmountInExcess.Equal(decimal.NewFromInt(100)))

	linked, err := repo.CountAllocationsForDocument(ctx, f.actor.TenantID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), linked)

	_, err = distribution.Reverse(f.actor, payment, map[uuid.UUID]billing.Settleable{inv.ID: inv})
	require.NoError(t, err)
	require.NoError(t, payment.Delete(f.actor))
	require.NoError(t, repo.Save(ctx, payment))

	linked, err = repo.CountAllocationsForDocument(ctx, f.actor.TenantID, inv.ID)
	require.NoError(t, err)
	assert.Zero(t, linked)

	_, err = repo.FindByID(ctx, f.actor.TenantID, payment.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	exists, err := repo.ExistsByNumber(ctx, f.actor.TenantID, payment.Number)
	require.NoError(t, err)
	assert.False(t, exists, "a deleted payment frees its number")
}

func TestGormLedgerRepository_Statement(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormLedgerRepository(db)
	ctx := context.Background()
	f := newBillingFixture()

	post := func(kind finance.LedgerKind, date time.Time, debit, credit int64) *finance.LedgerEntry {
		ref := uuid.New()
		e, err := finance.NewLedgerEntry(f.actor, finance.LedgerEntryInput{
			CounterpartyID: f.client.ID, Kind: kind, ReferenceID: &ref, EntryDate: date,
			Debit: decimal.NewFromInt(debit), Credit: decimal.NewFromInt(credit),
		})
		require.NoError(t, err)
		require.NoError(t, repo.Append(ctx, e))
		return e
	}

	opening, err := finance.OpeningBalanceEntry(f.actor, f.client.ID, decimal.NewFromInt(1000), utcDay(1))
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, opening))
	post(finance.LedgerKindInvoice, utcDay(3), 250, 0)
	payment := post(finance.LedgerKindPayment, utcDay(5), 0, 400)
	post(finance.LedgerKindCreditNote, utcDay(5), 0, 50)

	entries, total, err := repo.FindByCounterparty(ctx, f.actor.TenantID, f.client.ID, finance.LedgerFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	statement := finance.BuildStatement(f.client.ID, decimal.Zero, entries)
	balances := make([]string, len(statement.Lines))
	for i, l := range statement.Lines {
		balances[i] = l.RunningBalance.String()
	}
	assert.Equal(t, []string{"1000", "1250", "850", "800"}, balances)

	t.Run("window opening balance", func(t *testing.T) {
		from := utcDay(2)
		filter := finance.LedgerFilter{From: &from, Offset: 1, Limit: 1}
		window, total, err := repo.FindByCounterparty(ctx, f.actor.TenantID, f.client.ID, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, window, 1)
		assert.Equal(t, finance.LedgerKindPayment, window[0].Kind)

		open, err := repo.OpeningBalance(ctx, f.actor.TenantID, f.client.ID, filter)
		require.NoError(t, err)
		assert.True(t, open.Equal(decimal.NewFromInt(1250)), "opening %s", open)
	})

	t.Run("compensating deletes", func(t *testing.T) {
		n, err := repo.DeleteByReference(ctx, f.actor.TenantID, finance.LedgerKindPayment, *payment.ReferenceID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = repo.DeleteOpeningBalance(ctx, f.actor.TenantID, f.client.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		balance, err := repo.Balance(ctx, f.actor.TenantID, f.client.ID)
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(200)), "balance %s", balance)
	})
}

func TestGormReaders(t *testing.T) {
	db := setupBillingTestDB(t)
	ctx := context.Background()
	f := newBillingFixture()
	now := time.Now()

	require.NoError(t, db.Create(&models.CounterpartyModel{
		ID: f.client.ID, TenantID: f.actor.TenantID, Kind: partner.CounterpartyClient,
		Name: "Acme", Jurisdiction: "Kerala", CreatedAt: now, UpdatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&models.CatalogItemModel{
		ID: f.item.ID, TenantID: f.actor.TenantID, Code: "SRV", Name: "Consulting", Unit: "HRS",
		Price: decimal.NewFromInt(100), TaxRate: decimal.NewFromInt(18), Active: true, CreatedAt: now, UpdatedAt: now,
	}).Error)

	parties := NewGormPartyReader(db)
	cp, err := parties.FindCounterparty(ctx, f.actor.TenantID, f.client.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kerala", cp.Jurisdiction)

	_, err = parties.FindCompany(ctx, f.actor.TenantID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	items, err := NewGormItemReader(db).FindByIDs(ctx, f.actor.TenantID, []uuid.UUID{f.item.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "HRS", items[f.item.ID].Unit)
}

func TestGormTransactionScope_RollsBack(t *testing.T) {
	db := setupBillingTestDB(t)
	scope := NewGormTransactionScope(db)
	ctx := context.Background()
	f := newBillingFixture()
	doc := f.invoice(t, 1, nil)

	boom := errors.New("boom")
	err := scope.Execute(ctx, func(repos appbilling.TransactionalRepositories) error {
		if err := repos.Documents().Save(ctx, doc); err != nil {
			return err
		}
		entry, err := finance.DocumentLedgerEntry(f.actor, doc)
		require.NoError(t, err)
		if err := repos.Ledger().Append(ctx, entry); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = NewGormDocumentRepository(db).FindByID(ctx, f.actor.TenantID, doc.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	balance, err := NewGormLedgerRepository(db).Balance(ctx, f.actor.TenantID, f.client.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestGormTransactionScope_CancelledContextAborts(t *testing.T) {
	scope := NewGormTransactionScope(setupBillingTestDB(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := scope.Execute(ctx, func(appbilling.TransactionalRepositories) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, shared.ErrAborted)
	assert.False(t, called)
}

func TestDocumentWithholdingRoundTrip(t *testing.T) {
	model := models.BillingDocumentModelFromDomain(&billing.Document{
		Type:        billing.DocumentTypePurchaseBill,
		Withholding: []tax.Withholding{{Percentage: decimal.NewFromInt(2), Kind: tax.WithholdingTDS, AppliesTo: tax.WithholdingOnTaxable}},
	})
	doc := model.ToDomain()
	require.Len(t, doc.Withholding, 1)
	assert.Equal(t, tax.WithholdingTDS, doc.Withholding[0].Kind)
}
