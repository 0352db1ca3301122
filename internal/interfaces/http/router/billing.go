package router

import (
	"github.com/erp/billing/internal/interfaces/http/handler"
)

// BillingHandlers are the handlers served under /billing
type BillingHandlers struct {
	Documents *handler.DocumentHandler
	Payments  *handler.PaymentHandler
	Ledger    *handler.LedgerHandler
	Outbox    *handler.OutboxHandler
}

// NewBillingGroup lays out the billing API
func NewBillingGroup(h BillingHandlers) *DomainGroup {
	billing := NewDomainGroup("billing", "/billing")

	billing.Group("documents", "/documents").
		POST("", h.Documents.Create).
		GET("", h.Documents.List).
		GET("/:id", h.Documents.Get).
		PUT("/:id", h.Documents.Update).
		DELETE("/:id", h.Documents.Delete).
		POST("/:id/cancel", h.Documents.Cancel).
		POST("/:id/lock", h.Documents.Lock).
		GET("/:id/pdf", h.Documents.DownloadPDF).
		POST("/:id/archive", h.Documents.ArchivePDF)

	billing.Group("payments", "/payments").
		POST("", h.Payments.Create).
		GET("", h.Payments.List).
		GET("/:id", h.Payments.Get).
		PUT("/:id", h.Payments.Update).
		DELETE("/:id", h.Payments.Delete)

	billing.Group("ledger", "/ledger/:counterparty_id").
		GET("/statement", h.Ledger.Statement).
		GET("/balance", h.Ledger.Balance).
		PUT("/opening-balance", h.Ledger.OpeningBalance)

	billing.Group("outbox", "/outbox").
		GET("/dead", h.Outbox.ListDeadLetters).
		POST("/dead/:id/requeue", h.Outbox.Requeue).
		GET("/stats", h.Outbox.Stats)

	return billing
}
