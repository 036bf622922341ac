package balance

import (
	"sort"

	"github.com/shopspring/decimal"
)

// remaining tracks how much of a member's balance is still unmatched.
type remaining struct {
	memberID string
	amount   decimal.Decimal
}

// Simplify turns a set of net balances into a minimal list of payments that
// settles every member. It greedily matches the largest creditor against the
// largest debtor, which minimizes the transaction count in the common case
// (it is a known approximation, not provably optimal for every distribution).
//
// Members within Tolerance of zero produce no payments. An empty result is a
// valid outcome: everyone is settled. If the creditor and debtor totals do
// not exhaust together the zero-sum invariant is broken upstream, and
// Simplify fails with ErrUnbalancedScope instead of emitting a partial plan.
func Simplify(balances []MemberBalance) ([]SimplifiedDebt, error) {
	var creditors, debtors []remaining
	for _, b := range balances {
		switch {
		case b.Net.GreaterThan(Tolerance):
			creditors = append(creditors, remaining{memberID: b.MemberID, amount: b.Net})
		case b.Net.LessThan(Tolerance.Neg()):
			debtors = append(debtors, remaining{memberID: b.MemberID, amount: b.Net.Neg()})
		}
	}

	// Stable sorts keep input order for equal amounts, making the output
	// deterministic.
	sort.SliceStable(creditors, func(i, j int) bool {
		return creditors[i].amount.GreaterThan(creditors[j].amount)
	})
	sort.SliceStable(debtors, func(i, j int) bool {
		return debtors[i].amount.GreaterThan(debtors[j].amount)
	})

	var debts []SimplifiedDebt
	i, j := 0, 0
	for i < len(creditors) && j < len(debtors) {
		amount := decimal.Min(creditors[i].amount, debtors[j].amount)

		if amount.GreaterThan(Tolerance) {
			debts = append(debts, SimplifiedDebt{
				FromMemberID: debtors[j].memberID,
				ToMemberID:   creditors[i].memberID,
				Amount:       Round2(amount),
			})
		}

		creditors[i].amount = creditors[i].amount.Sub(amount)
		debtors[j].amount = debtors[j].amount.Sub(amount)

		if creditors[i].amount.LessThan(Tolerance) {
			i++
		}
		if debtors[j].amount.LessThan(Tolerance) {
			j++
		}
	}

	// Both cursors must run out together; leftovers above tolerance mean the
	// balances never summed to zero.
	for ; i < len(creditors); i++ {
		if creditors[i].amount.GreaterThan(Tolerance) {
			return nil, ErrUnbalancedScope
		}
	}
	for ; j < len(debtors); j++ {
		if debtors[j].amount.GreaterThan(Tolerance) {
			return nil, ErrUnbalancedScope
		}
	}

	return debts, nil
}
