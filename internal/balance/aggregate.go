package balance

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Aggregate folds a scope's expenses into one net balance per member.
//
// memberIDs is the authoritative member set for the scope; every id appears
// in the result even with zero activity. Every payer and split member in
// expenses must be in memberIDs, otherwise Aggregate fails with
// ErrUnknownMember rather than silently dropping the row.
//
// Settlement records (Settled = true) are aggregated like any other expense:
// a settlement is an expense whose single split belongs to the creditor, so
// including it nets the two balances back toward zero. Excluding already
// settled debts is the caller's job, done by not presenting those records.
//
// Intermediate sums are exact; only the final totals are rounded to two
// decimal places.
func Aggregate(expenses []ExpenseRecord, memberIDs []string) (map[string]MemberBalance, error) {
	paid := make(map[string]decimal.Decimal, len(memberIDs))
	owed := make(map[string]decimal.Decimal, len(memberIDs))
	for _, id := range memberIDs {
		paid[id] = decimal.Zero
		owed[id] = decimal.Zero
	}

	for _, exp := range expenses {
		if _, ok := paid[exp.PayerID]; !ok {
			return nil, fmt.Errorf("%w: payer %q", ErrUnknownMember, exp.PayerID)
		}
		paid[exp.PayerID] = paid[exp.PayerID].Add(exp.Amount)

		for _, split := range exp.Splits {
			if _, ok := owed[split.MemberID]; !ok {
				return nil, fmt.Errorf("%w: split member %q", ErrUnknownMember, split.MemberID)
			}
			owed[split.MemberID] = owed[split.MemberID].Add(split.Share)
		}
	}

	balances := make(map[string]MemberBalance, len(paid))
	for id := range paid {
		totalPaid := Round2(paid[id])
		totalOwed := Round2(owed[id])
		balances[id] = MemberBalance{
			MemberID:  id,
			TotalPaid: totalPaid,
			TotalOwed: totalOwed,
			Net:       totalPaid.Sub(totalOwed),
		}
	}

	return balances, nil
}

// ComputeSettlements chains Aggregate and Simplify: raw expenses in, settling
// payments out. Balances are fed to Simplify in memberIDs order so equal
// amounts tie-break deterministically.
func ComputeSettlements(expenses []ExpenseRecord, memberIDs []string) ([]SimplifiedDebt, error) {
	balances, err := Aggregate(expenses, memberIDs)
	if err != nil {
		return nil, err
	}

	ordered := make([]MemberBalance, 0, len(balances))
	seen := make(map[string]bool, len(balances))
	for _, id := range memberIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		ordered = append(ordered, balances[id])
	}

	return Simplify(ordered)
}
