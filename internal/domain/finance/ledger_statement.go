package finance

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceClass describes which side of the account a balance sits on
type BalanceClass string

const (
	BalanceReceivable BalanceClass = "RECEIVABLE" // client owes money
	BalanceAdvance    BalanceClass = "ADVANCE"    // client holds credit
	BalanceSettled    BalanceClass = "SETTLED"
)

// ClassifyBalance classifies a running balance
func ClassifyBalance(balance decimal.Decimal) BalanceClass {
	switch balance.Sign() {
	case 1:
		return BalanceReceivable
	case -1:
		return BalanceAdvance
	default:
		return BalanceSettled
	}
}

// LedgerFilter selects a window of a counterparty's ledger
type LedgerFilter struct {
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// StatementLine is a ledger entry with the cumulative balance after it
type StatementLine struct {
	Entry          LedgerEntry
	RunningBalance decimal.Decimal
}

// Statement is an ordered window of a ledger with running balances.
// OpeningBalance is everything that precedes the window.
type Statement struct {
	CounterpartyID uuid.UUID
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	Classification BalanceClass
	Lines          []StatementLine
	Total          int64
}

// CompareEntries orders entries by entry date, then insertion sequence
func CompareEntries(a, b LedgerEntry) int {
	if c := a.EntryDate.Compare(b.EntryDate); c != 0 {
		return c
	}
	return cmp.Compare(a.Sequence, b.Sequence)
}

// BuildStatement prefix-sums debit minus credit over the entries, starting
// from opening. The input is not modified.
func BuildStatement(counterpartyID uuid.UUID, opening decimal.Decimal, entries []LedgerEntry) Statement {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, CompareEntries)

	running := opening
	lines := make([]StatementLine, len(sorted))
	for i, e := range sorted {
		running = running.Add(e.Amount())
		lines[i] = StatementLine{Entry: e, RunningBalance: running}
	}
	return Statement{
		CounterpartyID: counterpartyID,
		OpeningBalance: opening,
		ClosingBalance: running,
		Classification: ClassifyBalance(running),
		Lines:          lines,
		Total:          int64(len(lines)),
	}
}
