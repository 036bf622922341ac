// Package balance computes member balances and settling payments for a scope
// (one group, or every group a user belongs to). Both stages are pure
// transformations over their inputs: expenses in, net balances out, and net
// balances in, a small list of debtor-to-creditor payments out.
package balance

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Common errors
var (
	// ErrUnknownMember means an expense references a payer or split member
	// that is not part of the scope. This is a caller/data bug, not a
	// transient condition.
	ErrUnknownMember = errors.New("expense references a member outside the scope")

	// ErrUnbalancedScope means the creditor and debtor totals did not cancel
	// out. The inputs violate the zero-sum invariant, which signals upstream
	// data corruption.
	ErrUnbalancedScope = errors.New("member balances do not sum to zero")
)

// Tolerance is the monetary threshold below which a balance is treated as
// settled and a split-sum mismatch is treated as matching.
var Tolerance = decimal.New(1, -2) // 0.01

// SplitShare is one member's share of an expense.
type SplitShare struct {
	MemberID string
	Share    decimal.Decimal
}

// ExpenseRecord is the minimal view of an expense needed for balance
// calculations. Splits cover the full amount, including the payer's own
// share. Settled marks settlement payments, which are themselves recorded as
// single-split expenses.
type ExpenseRecord struct {
	PayerID string
	Amount  decimal.Decimal
	Splits  []SplitShare
	Settled bool
}

// MemberBalance is one member's standing within the scope.
// Net > 0 means the member is owed money, Net < 0 means they owe.
type MemberBalance struct {
	MemberID  string
	TotalPaid decimal.Decimal
	TotalOwed decimal.Decimal
	Net       decimal.Decimal
}

// SimplifiedDebt is a single settling payment from one member to another.
type SimplifiedDebt struct {
	FromMemberID string
	ToMemberID   string
	Amount       decimal.Decimal
}

// Round2 rounds a monetary value to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// WithinTolerance reports whether two amounts differ by at most Tolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}
