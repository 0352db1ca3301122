package billing

import (
	"testing"

	"github.com/erp/billing/internal/domain/catalog"
	"github.com/erp/billing/internal/domain/partner"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

type fixture struct {
	actor   shared.Principal
	client  *partner.Counterparty
	vendor  *partner.Counterparty
	widget  *catalog.Item
	items   map[uuid.UUID]*catalog.Item
	parties Parties
}

func newFixture() *fixture {
	tenantID := uuid.New()
	f := &fixture{
		actor: shared.NewPrincipal(tenantID, uuid.New()),
		client: &partner.Counterparty{
			ID: uuid.New(), TenantID: tenantID, Kind: partner.CounterpartyClient,
			Name: "Acme Traders", Jurisdiction: "GJ (24)",
		},
		vendor: &partner.Counterparty{
			ID: uuid.New(), TenantID: tenantID, Kind: partner.CounterpartyVendor,
			Name: "Steel Supplies", Jurisdiction: "Maharashtra",
		},
		widget: &catalog.Item{
			ID: uuid.New(), TenantID: tenantID, Code: "W-1", Name: "Widget",
			HSNCode: "8471", Unit: "NOS", Price: dec("100"), TaxRate: dec("18"), Active: true,
		},
	}
	f.items = map[uuid.UUID]*catalog.Item{f.widget.ID: f.widget}
	f.parties = Parties{Counterparty: f.client, HomeJurisdiction: "Gujarat"}
	return f
}

func (f *fixture) scenarioLines() []LineRequest {
	return []LineRequest{{ItemID: f.widget.ID, Quantity: dec("2"), DiscountPct: decPtr("10")}}
}

func (f *fixture) newInvoice(t *testing.T) *Document {
	t.Helper()
	doc, err := NewDocument(f.actor, Header{Type: DocumentTypeInvoice, Number: "INV-001"}, f.parties, f.scenarioLines(), f.items)
	require.NoError(t, err)
	return doc
}

func TestNewDocument_Invoice(t *testing.T) {
	f := newFixture()
	doc := f.newInvoice(t)

	assert.Equal(t, StatusOpen, doc.Status)
	assert.Equal(t, "GJ (24)", doc.PlaceOfSupply, "place of supply defaults to the counterparty jurisdiction")
	assert.False(t, doc.InterJurisdiction)
	require.Len(t, doc.Items, 1)

	line := doc.Items[0]
	assert.Equal(t, "Widget", line.Snapshot.Name)
	assert.Equal(t, "NOS", line.Snapshot.Unit)
	assert.True(t, dec("16.2").Equal(line.CGST))
	assert.True(t, dec("16.2").Equal(line.SGST))
	assert.True(t, dec("212.4").Equal(line.TotalAmount))

	assert.True(t, dec("212.4").Equal(doc.Total))
	assert.True(t, doc.Total.Equal(doc.Balance))
	assert.Equal(t, f.actor.TenantID, doc.TenantID)
	require.NotNil(t, doc.CreatedBy)
	assert.Equal(t, f.actor.UserID, *doc.CreatedBy)

	events := doc.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeDocumentIssued, events[0].EventType())
}

func TestNewDocument_GeneratesNumber(t *testing.T) {
	f := newFixture()
	doc, err := NewDocument(f.actor, Header{Type: DocumentTypeCreditNote}, f.parties, f.scenarioLines(), f.items)
	require.NoError(t, err)
	assert.Regexp(t, `^CN-[0-9a-z]+$`, doc.Number)
}

func TestNewDocument_SnapshotIsFrozen(t *testing.T) {
	f := newFixture()
	doc := f.newInvoice(t)

	f.widget.Name = "Renamed Widget"
	f.widget.Unit = "BOX"

	assert.Equal(t, "Widget", doc.Items[0].Snapshot.Name)
	assert.Equal(t, "NOS", doc.Items[0].Snapshot.Unit)
}

func TestNewDocument_NonSettleableHasNoBalance(t *testing.T) {
	f := newFixture()
	doc, err := NewDocument(f.actor, Header{Type: DocumentTypePurchaseOrder},
		Parties{Counterparty: f.vendor, HomeJurisdiction: "Gujarat"}, f.scenarioLines(), f.items)
	require.NoError(t, err)

	assert.True(t, doc.InterJurisdiction)
	assert.True(t, dec("32.4").Equal(doc.IGST))
	assert.True(t, doc.Balance.IsZero())
	assert.False(t, doc.IsSettleable())
}

func TestNewDocument_CatalogChecksRunFirst(t *testing.T) {
	f := newFixture()
	noUnit := &catalog.Item{ID: uuid.New(), Code: "S-1", Name: "Service", Price: dec("10"), Active: true}
	inactive := &catalog.Item{ID: uuid.New(), Code: "OLD", Name: "Old", Unit: "NOS", Active: false}
	f.items[noUnit.ID] = noUnit
	f.items[inactive.ID] = inactive

	tests := []struct {
		name  string
		lines []LineRequest
		code  string
	}{
		{"unknown item", []LineRequest{{ItemID: uuid.New(), Quantity: dec("1")}}, shared.CodeItemNotFound},
		{"inactive item", []LineRequest{{ItemID: inactive.ID, Quantity: dec("1")}}, shared.CodeItemNotFound},
		{"missing unit", []LineRequest{{ItemID: noUnit.ID, Quantity: dec("1")}}, shared.CodeMissingUnit},
		{
			"missing item reported even after an invalid quantity",
			[]LineRequest{{ItemID: f.widget.ID, Quantity: dec("0")}, {ItemID: uuid.New(), Quantity: dec("1")}},
			shared.CodeItemNotFound,
		},
		{"bad quantity", []LineRequest{{ItemID: f.widget.ID, Quantity: dec("0")}}, shared.CodeInvalidLineItem},
		{"no lines", nil, shared.CodeInvalidLineItem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDocument(f.actor, Header{Type: DocumentTypeInvoice}, f.parties, tt.lines, f.items)
			assert.Equal(t, tt.code, shared.ErrorCode(err))
		})
	}
}

func TestNewDocument_Withholding(t *testing.T) {
	f := newFixture()
	withholding := []tax.Withholding{{Percentage: dec("2"), Kind: tax.WithholdingTDS, AppliesTo: tax.WithholdingOnTaxable}}

	t.Run("rejected on sales documents", func(t *testing.T) {
		_, err := NewDocument(f.actor, Header{Type: DocumentTypeInvoice, Withholding: withholding}, f.parties, f.scenarioLines(), f.items)
		assert.Equal(t, shared.CodeInvalidWithholding, shared.ErrorCode(err))
	})

	t.Run("applied on purchase bills", func(t *testing.T) {
		doc, err := NewDocument(f.actor, Header{Type: DocumentTypePurchaseBill, Withholding: withholding},
			Parties{Counterparty: f.vendor, HomeJurisdiction: "Gujarat"}, f.scenarioLines(), f.items)
		require.NoError(t, err)
		assert.True(t, dec("3.6").Equal(doc.TDS))
		assert.True(t, dec("208.8").Equal(doc.Total), "TDS is deducted from the payable total")
		assert.True(t, doc.Balance.Equal(doc.Total))
	})
}

func TestNewDocument_ZeroTotalIsSettled(t *testing.T) {
	f := newFixture()
	vendorParties := Parties{Counterparty: f.vendor, HomeJurisdiction: "Gujarat"}

	tests := []struct {
		name    string
		docType DocumentType
		parties Parties
		line    LineRequest
		status  Status
	}{
		{"free invoice", DocumentTypeInvoice, f.parties,
			LineRequest{ItemID: f.widget.ID, Quantity: dec("1"), UnitPrice: decPtr("0")}, StatusPaid},
		{"fully discounted bill", DocumentTypePurchaseBill, vendorParties,
			LineRequest{ItemID: f.widget.ID, Quantity: dec("2"), DiscountPct: decPtr("100")}, StatusPaid},
		{"order carries no balance", DocumentTypePurchaseOrder, vendorParties,
			LineRequest{ItemID: f.widget.ID, Quantity: dec("1"), UnitPrice: decPtr("0")}, StatusOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := NewDocument(f.actor, Header{Type: tt.docType}, tt.parties, []LineRequest{tt.line}, f.items)
			require.NoError(t, err)
			assert.True(t, doc.Total.IsZero())
			assert.True(t, doc.Balance.IsZero())
			assert.Equal(t, tt.status, doc.Status)
			if doc.IsSettleable() {
				assert.Equal(t, SettlementStatus(doc.Balance, doc.Total), doc.Status)
			}
		})
	}
}

func TestNewDocument_CounterpartyKindMustMatch(t *testing.T) {
	f := newFixture()
	_, err := NewDocument(f.actor, Header{Type: DocumentTypePurchaseBill}, f.parties, f.scenarioLines(), f.items)
	assert.Equal(t, "INVALID_COUNTERPARTY", shared.ErrorCode(err))
}

func TestDocument_ApplyAndRevertAllocation(t *testing.T) {
	f := newFixture()
	doc := f.newInvoice(t)
	doc.Total, doc.Balance = dec("1000"), dec("1000")

	require.NoError(t, doc.ApplyAllocation(f.actor, dec("400")))
	assert.True(t, dec("600").Equal(doc.Balance))
	assert.Equal(t, StatusPartiallyPaid, doc.Status)

	require.NoError(t, doc.ApplyAllocation(f.actor, dec("600")))
	assert.True(t, doc.Balance.IsZero())
	assert.Equal(t, StatusPaid, doc.Status)

	require.NoError(t, doc.RevertAllocation(f.actor, dec("600")))
	assert.True(t, dec("600").Equal(doc.Balance))
	assert.Equal(t, StatusPartiallyPaid, doc.Status)

	err := doc.ApplyAllocation(f.actor, dec("600.01"))
	assert.ErrorIs(t, err, shared.ErrOverPayment)
	assert.True(t, dec("600").Equal(doc.Balance), "failed allocation leaves the balance untouched")

	err = doc.RevertAllocation(f.actor, dec("400.01"))
	assert.Error(t, err, "balance may never exceed the total")
}

func TestDocument_CheckAcceptsAllocation(t *testing.T) {
	f := newFixture()

	t.Run("locked", func(t *testing.T) {
		doc := f.newInvoice(t)
		doc.Lock(f.actor)
		assert.ErrorIs(t, doc.CheckAcceptsAllocation(AllocationPolicy{}), shared.ErrDocumentLocked)
	})

	t.Run("paid under lock-settled policy", func(t *testing.T) {
		doc := f.newInvoice(t)
		require.NoError(t, doc.ApplyAllocation(f.actor, doc.Total))
		assert.NoError(t, doc.CheckAcceptsAllocation(AllocationPolicy{}))
		assert.ErrorIs(t, doc.CheckAcceptsAllocation(AllocationPolicy{LockSettled: true}), shared.ErrDocumentLocked)
	})

	t.Run("cancelled", func(t *testing.T) {
		doc := f.newInvoice(t)
		require.NoError(t, doc.Cancel(f.actor, "duplicate"))
		assert.ErrorIs(t, doc.CheckAcceptsAllocation(AllocationPolicy{}), shared.ErrDocumentLocked)
	})

	t.Run("non settleable type", func(t *testing.T) {
		doc, err := NewDocument(f.actor, Header{Type: DocumentTypeCreditNote}, f.parties, f.scenarioLines(), f.items)
		require.NoError(t, err)
		assert.ErrorIs(t, doc.CheckAcceptsAllocation(AllocationPolicy{}), shared.ErrDocumentMismatch)
	})
}

func TestDocument_Revise(t *testing.T) {
	f := newFixture()

	t.Run("keeps applied amount", func(t *testing.T) {
		doc := f.newInvoice(t)
		require.NoError(t, doc.ApplyAllocation(f.actor, dec("100")))

		lines := []LineRequest{{ItemID: f.widget.ID, Quantity: dec("3")}}
		require.NoError(t, doc.Revise(f.actor, Header{}, f.parties, lines, f.items))

		assert.True(t, dec("354").Equal(doc.Total))
		assert.True(t, dec("254").Equal(doc.Balance))
		assert.Equal(t, StatusPartiallyPaid, doc.Status)
		assert.Equal(t, "INV-001", doc.Number)
		assert.Equal(t, 3, doc.Version)
	})

	t.Run("rejects total below paid amount", func(t *testing.T) {
		doc := f.newInvoice(t)
		require.NoError(t, doc.ApplyAllocation(f.actor, dec("200")))

		lines := []LineRequest{{ItemID: f.widget.ID, Quantity: dec("1")}}
		err := doc.Revise(f.actor, Header{}, f.parties, lines, f.items)
		assert.ErrorIs(t, err, shared.ErrOverPayment)
	})

	t.Run("full payment after revision up reopens partially", func(t *testing.T) {
		doc := f.newInvoice(t)
		require.NoError(t, doc.ApplyAllocation(f.actor, doc.Total))
		require.Equal(t, StatusPaid, doc.Status)

		lines := []LineRequest{{ItemID: f.widget.ID, Quantity: dec("5")}}
		require.NoError(t, doc.Revise(f.actor, Header{}, f.parties, lines, f.items))
		assert.Equal(t, StatusPartiallyPaid, doc.Status)
	})

	t.Run("rejected revision leaves the document untouched", func(t *testing.T) {
		doc := f.newInvoice(t)
		require.NoError(t, doc.ApplyAllocation(f.actor, dec("200")))
		before := *doc
		items := append([]LineItem(nil), doc.Items...)

		lines := []LineRequest{{ItemID: f.widget.ID, Quantity: dec("1")}}
		err := doc.Revise(f.actor, Header{Number: "INV-900", PlaceOfSupply: "Maharashtra", Notes: "revised"},
			f.parties, lines, f.items)
		require.ErrorIs(t, err, shared.ErrOverPayment)

		assert.Equal(t, "INV-001", doc.Number)
		assert.Equal(t, before.PlaceOfSupply, doc.PlaceOfSupply)
		assert.Empty(t, doc.Notes)
		assert.Equal(t, before.InterJurisdiction, doc.InterJurisdiction)
		assert.True(t, before.Total.Equal(doc.Total))
		assert.True(t, before.Balance.Equal(doc.Balance))
		assert.Equal(t, before.Status, doc.Status)
		assert.Equal(t, before.Version, doc.Version)
		assert.Equal(t, items, doc.Items)

		missing := []LineRequest{{ItemID: uuid.New(), Quantity: dec("1")}}
		err = doc.Revise(f.actor, Header{Number: "INV-901"}, f.parties, missing, f.items)
		require.Error(t, err)
		assert.Equal(t, "INV-001", doc.Number)
		assert.Equal(t, items, doc.Items)
	})

	t.Run("type is immutable", func(t *testing.T) {
		doc := f.newInvoice(t)
		err := doc.Revise(f.actor, Header{Type: DocumentTypeDebitNote}, f.parties, f.scenarioLines(), f.items)
		assert.Equal(t, "INVALID_DOCUMENT_TYPE", shared.ErrorCode(err))
	})
}

func TestDocument_CancelAndDelete(t *testing.T) {
	f := newFixture()

	t.Run("cancel requires no payments", func(t *testing.T) {
		doc := f.newInvoice(t)
		require.NoError(t, doc.ApplyAllocation(f.actor, dec("10")))
		err := doc.Cancel(f.actor, "")
		assert.Equal(t, "INVALID_STATE", shared.ErrorCode(err))
	})

	t.Run("delete with linked payments", func(t *testing.T) {
		doc := f.newInvoice(t)
		err := doc.Delete(f.actor, 1)
		assert.ErrorIs(t, err, shared.ErrHasLinkedPayments)
		assert.Equal(t, StatusOpen, doc.Status)
	})

	t.Run("delete cancelled document", func(t *testing.T) {
		doc := f.newInvoice(t)
		require.NoError(t, doc.Cancel(f.actor, "typo"))
		require.NoError(t, doc.Delete(f.actor, 0))
		assert.Equal(t, StatusDeleted, doc.Status)
		assert.True(t, doc.IsDeleted())
		assert.NotNil(t, doc.DeletedAt)
	})

	t.Run("deleted documents cannot be revised", func(t *testing.T) {
		doc := f.newInvoice(t)
		require.NoError(t, doc.Delete(f.actor, 0))
		err := doc.Revise(f.actor, Header{}, f.parties, f.scenarioLines(), f.items)
		assert.Equal(t, "INVALID_STATE", shared.ErrorCode(err))
	})
}
