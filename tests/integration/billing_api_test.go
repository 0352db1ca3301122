package integration

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	billingapp "github.com/erp/billing/internal/application/billing"
	eventapp "github.com/erp/billing/internal/application/event"
	financeapp "github.com/erp/billing/internal/application/finance"
	printingapp "github.com/erp/billing/internal/application/printing"
	"github.com/erp/billing/internal/infrastructure/auth"
	"github.com/erp/billing/internal/infrastructure/config"
	"github.com/erp/billing/internal/infrastructure/persistence"
	"github.com/erp/billing/internal/infrastructure/printing"
	"github.com/erp/billing/internal/interfaces/http/handler"
	"github.com/erp/billing/internal/interfaces/http/middleware"
	"github.com/erp/billing/internal/interfaces/http/router"
	"github.com/erp/billing/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const apiPrefix = "/api/v1/billing"

// newBillingAPI mounts the billing routes over s behind bearer authentication
// and returns a client holding a token for s.actor.
func newBillingAPI(t *testing.T, s *billingStack) *testutil.APIClient {
	t.Helper()

	verifier := auth.NewTokenVerifier(config.JWTConfig{Secret: "integration-secret", Issuer: "billing-test"})
	token, err := verifier.Issue(s.actor, "tester", time.Hour)
	require.NoError(t, err)

	printer := printingapp.NewService(
		persistence.NewGormDocumentRepository(s.db.DB),
		persistence.NewGormPartyReader(s.db.DB),
		printing.NewPDFRenderer(),
		zap.NewNop(),
	)

	middleware.SetupValidator()
	engine := gin.New()
	engine.Use(middleware.RequestID())
	router.NewRouter(engine,
		router.WithMiddleware(middleware.Authenticate(middleware.AuthConfig{Verifier: verifier})),
	).Register(router.NewBillingGroup(router.BillingHandlers{
		Documents: handler.NewDocumentHandler(s.documents, printer),
		Payments:  handler.NewPaymentHandler(s.payments),
		Ledger:    handler.NewLedgerHandler(s.ledger),
		Outbox:    handler.NewOutboxHandler(eventapp.NewOutboxService(s.outbox, zap.NewNop())),
	})).Setup()

	return testutil.NewAPIClient(engine, token)
}

func TestBillingAPI_DocumentAndPaymentLifecycle(t *testing.T) {
	s := newBillingStack(t, "Karnataka")
	api := newBillingAPI(t, s)
	client := s.db.CreateCounterparty(s.tenantID, "CLIENT", "Karnataka")
	item := s.db.CreateItem(s.tenantID, "100", "18")

	created := api.Post(t, apiPrefix+"/documents", map[string]any{
		"type":            "INVOICE",
		"counterparty_id": client,
		"place_of_supply": "Karnataka",
		"items": []map[string]any{
			{"item_id": item, "quantity": "2"},
		},
	}, "Idempotency-Key", "api-doc-1").RequireStatus(http.StatusCreated)
	doc := testutil.DataAs[billingapp.DocumentResponse](t, created)
	testutil.AssertMoney(t, "236", doc.Total)
	require.Len(t, doc.Items, 1)

	t.Run("replayed key is rejected", func(t *testing.T) {
		api.Post(t, apiPrefix+"/documents", map[string]any{
			"type":            "INVOICE",
			"counterparty_id": client,
			"place_of_supply": "Karnataka",
			"items":           []map[string]any{{"item_id": item, "quantity": "1"}},
		}, "Idempotency-Key", "api-doc-1").AssertError(http.StatusConflict, "ERR_DUPLICATE_REQUEST")
	})

	paid := api.Post(t, apiPrefix+"/payments", map[string]any{
		"counterparty_id": client,
		"direction":       "RECEIVED",
		"method":          "UPI",
		"amount":          "236",
		"allocations": []map[string]any{
			{"document_id": doc.ID, "value": "236"},
		},
	}).RequireStatus(http.StatusCreated)
	payment := testutil.DataAs[financeapp.PaymentResponse](t, paid)
	testutil.AssertMoney(t, "236", payment.AmountUsedForAllocations)

	got := testutil.DataAs[billingapp.DocumentResponse](t,
		api.Get(t, apiPrefix+"/documents/"+doc.ID.String()).RequireStatus(http.StatusOK))
	assert.Equal(t, "PAID", got.Status)
	testutil.AssertMoney(t, "0", got.Balance)

	statement := testutil.DataAs[financeapp.StatementResponse](t,
		api.Get(t, apiPrefix+"/ledger/"+client.String()+"/statement").RequireStatus(http.StatusOK))
	require.Len(t, statement.Lines, 2)
	testutil.AssertMoney(t, "0", statement.ClosingBalance)
	assert.Equal(t, "SETTLED", statement.Classification)

	t.Run("document with payments cannot be deleted", func(t *testing.T) {
		api.Delete(t, apiPrefix+"/documents/"+doc.ID.String()).
			AssertError(http.StatusConflict, "ERR_HAS_LINKED_PAYMENTS")
	})

	t.Run("overpayment is rejected", func(t *testing.T) {
		api.Post(t, apiPrefix+"/payments", map[string]any{
			"counterparty_id": client,
			"direction":       "RECEIVED",
			"method":          "CASH",
			"amount":          "10",
			"allocations":     []map[string]any{{"document_id": doc.ID, "value": "10"}},
		}).AssertError(http.StatusUnprocessableEntity, "ERR_OVER_PAYMENT")
	})

	t.Run("pdf renders", func(t *testing.T) {
		resp := api.Get(t, apiPrefix+"/documents/"+doc.ID.String()+"/pdf").RequireStatus(http.StatusOK)
		assert.Equal(t, printingapp.ContentTypePDF, resp.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")))
	})
}

func TestBillingAPI_RejectsMissingToken(t *testing.T) {
	s := newBillingStack(t, "Karnataka")
	api := newBillingAPI(t, s)
	api.Token = ""

	api.Get(t, apiPrefix+"/documents").AssertError(http.StatusUnauthorized, "ERR_UNAUTHORIZED")
}

func TestBillingAPI_ValidationErrors(t *testing.T) {
	s := newBillingStack(t, "Karnataka")
	api := newBillingAPI(t, s)

	resp := api.Post(t, apiPrefix+"/payments", map[string]any{
		"direction": "SIDEWAYS",
		"method":    "CASH",
		"amount":    "-5",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	envelope := resp.Envelope()
	assert.False(t, envelope.Success)
	require.NotNil(t, envelope.Error)
	assert.NotEmpty(t, envelope.Error.Details)
}
