package balance

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func bal(memberID, net string) MemberBalance {
	n := dec(net)
	b := MemberBalance{MemberID: memberID, Net: n}
	if n.IsPositive() {
		b.TotalPaid = n
	} else {
		b.TotalOwed = n.Neg()
	}
	return b
}

func assertDebts(t *testing.T, got, want []SimplifiedDebt) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d debts %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i].FromMemberID != want[i].FromMemberID ||
			got[i].ToMemberID != want[i].ToMemberID ||
			!got[i].Amount.Equal(want[i].Amount) {
			t.Errorf("debt[%d] = %s->%s %s, want %s->%s %s",
				i, got[i].FromMemberID, got[i].ToMemberID, got[i].Amount,
				want[i].FromMemberID, want[i].ToMemberID, want[i].Amount)
		}
	}
}

func TestSimplify(t *testing.T) {
	tests := []struct {
		name     string
		balances []MemberBalance
		want     []SimplifiedDebt
	}{
		{
			name: "two debtors one creditor",
			balances: []MemberBalance{
				bal("alice", "60"), bal("bob", "-30"), bal("carol", "-30"),
			},
			want: []SimplifiedDebt{
				{FromMemberID: "bob", ToMemberID: "alice", Amount: dec("30")},
				{FromMemberID: "carol", ToMemberID: "alice", Amount: dec("30")},
			},
		},
		{
			name:     "all settled yields empty plan",
			balances: []MemberBalance{bal("alice", "0"), bal("bob", "0")},
			want:     nil,
		},
		{
			name: "largest creditor matched against largest debtor first",
			balances: []MemberBalance{
				bal("alice", "50"), bal("bob", "30"), bal("carol", "-40"), bal("dave", "-40"),
			},
			want: []SimplifiedDebt{
				{FromMemberID: "carol", ToMemberID: "alice", Amount: dec("40")},
				{FromMemberID: "dave", ToMemberID: "alice", Amount: dec("10")},
				{FromMemberID: "dave", ToMemberID: "bob", Amount: dec("30")},
			},
		},
		{
			name: "sub-cent balances are treated as settled",
			balances: []MemberBalance{
				bal("alice", "0.01"), bal("bob", "-0.01"), bal("carol", "0"),
			},
			want: nil,
		},
		{
			name: "single debtor creditor pair",
			balances: []MemberBalance{
				bal("alice", "-25"), bal("bob", "25"),
			},
			want: []SimplifiedDebt{
				{FromMemberID: "alice", ToMemberID: "bob", Amount: dec("25")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Simplify(tt.balances)
			if err != nil {
				t.Fatalf("Simplify() error = %v", err)
			}
			assertDebts(t, got, tt.want)
		})
	}
}

func TestSimplifyUnbalancedScope(t *testing.T) {
	tests := []struct {
		name     string
		balances []MemberBalance
	}{
		{
			name:     "creditors with no debtors",
			balances: []MemberBalance{bal("alice", "10")},
		},
		{
			name:     "totals differ beyond tolerance",
			balances: []MemberBalance{bal("alice", "50"), bal("bob", "-30")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Simplify(tt.balances)
			if !errors.Is(err, ErrUnbalancedScope) {
				t.Fatalf("Simplify() error = %v, want %v", err, ErrUnbalancedScope)
			}
		})
	}
}

func TestSimplifyDeterministic(t *testing.T) {
	balances := []MemberBalance{
		bal("alice", "20"), bal("bob", "20"), bal("carol", "-15"),
		bal("dave", "-15"), bal("erin", "-10"),
	}

	first, err := Simplify(balances)
	if err != nil {
		t.Fatalf("Simplify() error = %v", err)
	}
	second, err := Simplify(balances)
	if err != nil {
		t.Fatalf("Simplify() error = %v", err)
	}
	assertDebts(t, second, first)

	// Equal amounts keep input order: alice before bob, carol before dave.
	if first[0].ToMemberID != "alice" {
		t.Errorf("first creditor = %s, want alice", first[0].ToMemberID)
	}
	if first[0].FromMemberID != "carol" {
		t.Errorf("first debtor = %s, want carol", first[0].FromMemberID)
	}
}

func TestSimplifyProperties(t *testing.T) {
	balances := []MemberBalance{
		bal("alice", "120.50"), bal("bob", "-60.25"), bal("carol", "-40"),
		bal("dave", "-20.25"), bal("erin", "0"),
	}

	debts, err := Simplify(balances)
	if err != nil {
		t.Fatalf("Simplify() error = %v", err)
	}

	// No self-debt, positive amounts.
	for _, d := range debts {
		if d.FromMemberID == d.ToMemberID {
			t.Errorf("self-debt emitted for %s", d.FromMemberID)
		}
		if !d.Amount.IsPositive() {
			t.Errorf("non-positive debt amount %s", d.Amount)
		}
	}

	// Transaction count bounded by non-zero members minus one.
	nonZero := 0
	for _, b := range balances {
		if b.Net.Abs().GreaterThan(Tolerance) {
			nonZero++
		}
	}
	if len(debts) > nonZero-1 {
		t.Errorf("emitted %d debts for %d unsettled members", len(debts), nonZero)
	}

	// Applying the plan zeroes every member.
	applied := make(map[string]decimal.Decimal)
	for _, b := range balances {
		applied[b.MemberID] = b.Net
	}
	for _, d := range debts {
		applied[d.FromMemberID] = applied[d.FromMemberID].Add(d.Amount)
		applied[d.ToMemberID] = applied[d.ToMemberID].Sub(d.Amount)
	}
	for id, net := range applied {
		if net.Abs().GreaterThan(Tolerance) {
			t.Errorf("%s left with %s after applying plan", id, net)
		}
	}
}
