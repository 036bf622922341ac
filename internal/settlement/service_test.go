package settlement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/divvyhq/divvy/internal/balance"
	"github.com/divvyhq/divvy/internal/expense"
	"github.com/divvyhq/divvy/internal/notification"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeExpenses struct {
	expenses []*expense.ExpenseWithSplits
	nextID   int
}

func (f *fakeExpenses) add(groupID, payerID, amount string, settled bool, shares map[string]string) *expense.ExpenseWithSplits {
	f.nextID++
	e := &expense.Expense{
		ID:        fmt.Sprintf("e%d", f.nextID),
		GroupID:   groupID,
		PayerID:   payerID,
		Amount:    dec(amount),
		Settled:   settled,
		CreatedAt: time.Date(2026, 1, f.nextID, 0, 0, 0, 0, time.UTC),
	}
	var splits []*expense.Split
	for memberID, share := range shares {
		splits = append(splits, &expense.Split{
			ID:        fmt.Sprintf("s%d-%s", f.nextID, memberID),
			ExpenseID: e.ID,
			MemberID:  memberID,
			Share:     dec(share),
		})
	}
	result := &expense.ExpenseWithSplits{Expense: e, Splits: splits}
	f.expenses = append(f.expenses, result)
	return result
}

func (f *fakeExpenses) ListByGroupsWithSplits(_ context.Context, groupIDs []string) ([]*expense.ExpenseWithSplits, error) {
	inScope := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		inScope[id] = true
	}
	var result []*expense.ExpenseWithSplits
	for _, e := range f.expenses {
		if inScope[e.Expense.GroupID] {
			result = append(result, e)
		}
	}
	return result, nil
}

func (f *fakeExpenses) RecordSettlement(_ context.Context, groupID, debtorID, creditorID string, amount decimal.Decimal, idempotencyKey *string) (*expense.ExpenseWithSplits, bool, error) {
	if idempotencyKey != nil {
		for _, e := range f.expenses {
			if e.Expense.IdempotencyKey != nil && *e.Expense.IdempotencyKey == *idempotencyKey {
				return e, true, nil
			}
		}
	}
	result := f.add(groupID, debtorID, amount.StringFixed(2), true, map[string]string{creditorID: amount.StringFixed(2)})
	result.Expense.IdempotencyKey = idempotencyKey
	return result, false, nil
}

func (f *fakeExpenses) GetExpenseByID(_ context.Context, id string) (*expense.ExpenseWithSplits, error) {
	for _, e := range f.expenses {
		if e.Expense.ID == id {
			return e, nil
		}
	}
	return nil, expense.ErrExpenseNotFound
}

func (f *fakeExpenses) ListSettlements(_ context.Context, groupIDs []string, limit, offset int) ([]*expense.ExpenseWithSplits, int, error) {
	inScope := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		inScope[id] = true
	}
	var settled []*expense.ExpenseWithSplits
	for _, e := range f.expenses {
		if e.Expense.Settled && inScope[e.Expense.GroupID] {
			settled = append(settled, e)
		}
	}
	total := len(settled)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return settled[offset:end], total, nil
}

type fakeGroups struct {
	members map[string][]string // group -> member IDs
}

func (f *fakeGroups) MemberIDs(_ context.Context, groupID string) ([]string, error) {
	return f.members[groupID], nil
}

func (f *fakeGroups) IsMember(_ context.Context, groupID, userID string) (bool, error) {
	for _, id := range f.members[groupID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeGroups) GroupIDsByUserID(_ context.Context, userID string) ([]string, error) {
	var groupIDs []string
	for _, groupID := range []string{"g1", "g2", "g3"} {
		for _, id := range f.members[groupID] {
			if id == userID {
				groupIDs = append(groupIDs, groupID)
			}
		}
	}
	return groupIDs, nil
}

type fakeNotifier struct {
	recipients []string
}

func (f *fakeNotifier) NotifySettlementRecorded(_ context.Context, recipientID, _ string, _ decimal.Decimal, _ string) (*notification.Notification, error) {
	f.recipients = append(f.recipients, recipientID)
	return &notification.Notification{}, nil
}

func TestGroupBalances(t *testing.T) {
	expenses := &fakeExpenses{}
	expenses.add("g1", "alice", "90.00", false, map[string]string{
		"alice": "30.00", "bob": "30.00", "carol": "30.00",
	})
	groups := &fakeGroups{members: map[string][]string{
		"g1": {"alice", "bob", "carol", "dave"},
	}}
	svc := NewService(expenses, groups, nil)

	balances, err := svc.GroupBalances(context.Background(), "g1", "alice")
	if err != nil {
		t.Fatalf("GroupBalances() error = %v", err)
	}
	if len(balances) != 4 {
		t.Fatalf("got %d balances, want 4", len(balances))
	}

	want := map[string]string{"alice": "60", "bob": "-30", "carol": "-30", "dave": "0"}
	for i, memberID := range []string{"alice", "bob", "carol", "dave"} {
		b := balances[i]
		if b.MemberID != memberID {
			t.Errorf("balances[%d].MemberID = %s, want %s", i, b.MemberID, memberID)
		}
		if !b.Net.Equal(dec(want[memberID])) {
			t.Errorf("%s net = %s, want %s", memberID, b.Net, want[memberID])
		}
	}
}

func TestGroupBalancesNotMember(t *testing.T) {
	groups := &fakeGroups{members: map[string][]string{"g1": {"alice"}}}
	svc := NewService(&fakeExpenses{}, groups, nil)

	if _, err := svc.GroupBalances(context.Background(), "g1", "mallory"); !errors.Is(err, ErrNotGroupMember) {
		t.Errorf("GroupBalances() error = %v, want ErrNotGroupMember", err)
	}
}

func TestGroupSuggested(t *testing.T) {
	expenses := &fakeExpenses{}
	expenses.add("g1", "alice", "90.00", false, map[string]string{
		"alice": "30.00", "bob": "30.00", "carol": "30.00",
	})
	groups := &fakeGroups{members: map[string][]string{
		"g1": {"alice", "bob", "carol"},
	}}
	svc := NewService(expenses, groups, nil)

	debts, err := svc.GroupSuggested(context.Background(), "g1", "bob")
	if err != nil {
		t.Fatalf("GroupSuggested() error = %v", err)
	}
	if len(debts) != 2 {
		t.Fatalf("got %d payments, want 2", len(debts))
	}
	for i, from := range []string{"bob", "carol"} {
		if debts[i].FromMemberID != from || debts[i].ToMemberID != "alice" {
			t.Errorf("payment[%d] = %s->%s, want %s->alice", i, debts[i].FromMemberID, debts[i].ToMemberID, from)
		}
		if !debts[i].Amount.Equal(dec("30")) {
			t.Errorf("payment[%d] amount = %s, want 30", i, debts[i].Amount)
		}
	}
}

func TestGroupSuggestedUnknownMember(t *testing.T) {
	expenses := &fakeExpenses{}
	expenses.add("g1", "alice", "10.00", false, map[string]string{
		"alice": "5.00", "ghost": "5.00",
	})
	groups := &fakeGroups{members: map[string][]string{
		"g1": {"alice", "bob"},
	}}
	svc := NewService(expenses, groups, nil)

	if _, err := svc.GroupSuggested(context.Background(), "g1", "alice"); !errors.Is(err, balance.ErrUnknownMember) {
		t.Errorf("GroupSuggested() error = %v, want ErrUnknownMember", err)
	}
}

func TestUserBalancesAcrossGroups(t *testing.T) {
	expenses := &fakeExpenses{}
	expenses.add("g1", "alice", "40.00", false, map[string]string{
		"alice": "20.00", "bob": "20.00",
	})
	expenses.add("g2", "carol", "10.00", false, map[string]string{
		"carol": "5.00", "alice": "5.00",
	})
	groups := &fakeGroups{members: map[string][]string{
		"g1": {"alice", "bob"},
		"g2": {"alice", "carol"},
	}}
	svc := NewService(expenses, groups, nil)

	balances, err := svc.UserBalances(context.Background(), "alice")
	if err != nil {
		t.Fatalf("UserBalances() error = %v", err)
	}

	want := map[string]string{"alice": "15", "bob": "-20", "carol": "5"}
	if len(balances) != len(want) {
		t.Fatalf("got %d balances, want %d", len(balances), len(want))
	}
	if balances[0].MemberID != "alice" {
		t.Errorf("balances[0].MemberID = %s, want the requesting user first", balances[0].MemberID)
	}
	for _, b := range balances {
		if !b.Net.Equal(dec(want[b.MemberID])) {
			t.Errorf("%s net = %s, want %s", b.MemberID, b.Net, want[b.MemberID])
		}
	}
}

func TestUserBalancesNoGroups(t *testing.T) {
	svc := NewService(&fakeExpenses{}, &fakeGroups{members: map[string][]string{}}, nil)

	balances, err := svc.UserBalances(context.Background(), "alice")
	if err != nil {
		t.Fatalf("UserBalances() error = %v", err)
	}
	if len(balances) != 1 || balances[0].MemberID != "alice" || !balances[0].Net.IsZero() {
		t.Errorf("UserBalances() = %+v, want a single zero balance for the user", balances)
	}
}

func TestRecordNotifiesCreditor(t *testing.T) {
	expenses := &fakeExpenses{}
	groups := &fakeGroups{members: map[string][]string{"g1": {"alice", "bob"}}}
	notifier := &fakeNotifier{}
	svc := NewService(expenses, groups, notifier)

	result, replayed, err := svc.Record(context.Background(), "bob", &RecordSettlementRequest{
		GroupID:    "g1",
		CreditorID: "alice",
		Amount:     dec("30.00"),
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if replayed {
		t.Error("Record() replayed = true on first call")
	}
	if result.DebtorID != "bob" || result.CreditorID != "alice" || !result.Amount.Equal(dec("30")) {
		t.Errorf("Record() = %+v", result)
	}
	if len(notifier.recipients) != 1 || notifier.recipients[0] != "alice" {
		t.Errorf("notified %v, want [alice]", notifier.recipients)
	}
}

func TestRecordIdempotentReplay(t *testing.T) {
	expenses := &fakeExpenses{}
	groups := &fakeGroups{members: map[string][]string{"g1": {"alice", "bob"}}}
	notifier := &fakeNotifier{}
	svc := NewService(expenses, groups, notifier)

	key := "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	req := &RecordSettlementRequest{
		GroupID:        "g1",
		CreditorID:     "alice",
		Amount:         dec("30.00"),
		IdempotencyKey: &key,
	}

	first, _, err := svc.Record(context.Background(), "bob", req)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	second, replayed, err := svc.Record(context.Background(), "bob", req)
	if err != nil {
		t.Fatalf("Record() retry error = %v", err)
	}
	if !replayed {
		t.Error("Record() retry replayed = false, want true")
	}
	if second.ID != first.ID {
		t.Errorf("retry returned settlement %s, want original %s", second.ID, first.ID)
	}
	if len(notifier.recipients) != 1 {
		t.Errorf("notified %d times, want once", len(notifier.recipients))
	}

	// The replayed record must not move balances a second time.
	balances, err := svc.GroupBalances(context.Background(), "g1", "alice")
	if err != nil {
		t.Fatalf("GroupBalances() error = %v", err)
	}
	for _, b := range balances {
		want := map[string]string{"alice": "-30", "bob": "30"}[b.MemberID]
		if !b.Net.Equal(dec(want)) {
			t.Errorf("%s net = %s, want %s", b.MemberID, b.Net, want)
		}
	}
}

func TestRecordRejectsMalformedKey(t *testing.T) {
	groups := &fakeGroups{members: map[string][]string{"g1": {"alice", "bob"}}}
	svc := NewService(&fakeExpenses{}, groups, nil)

	key := "retry-abc"
	_, _, err := svc.Record(context.Background(), "bob", &RecordSettlementRequest{
		GroupID:        "g1",
		CreditorID:     "alice",
		Amount:         dec("30.00"),
		IdempotencyKey: &key,
	})
	if !errors.Is(err, ErrInvalidIdempotencyKey) {
		t.Errorf("Record() error = %v, want ErrInvalidIdempotencyKey", err)
	}
}

func TestGetByID(t *testing.T) {
	expenses := &fakeExpenses{}
	regular := expenses.add("g1", "alice", "90.00", false, map[string]string{
		"alice": "45.00", "bob": "45.00",
	})
	settled := expenses.add("g1", "bob", "45.00", true, map[string]string{"alice": "45.00"})
	groups := &fakeGroups{members: map[string][]string{"g1": {"alice", "bob"}}}
	svc := NewService(expenses, groups, nil)

	result, err := svc.GetByID(context.Background(), settled.Expense.ID, "alice")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if result.DebtorID != "bob" || result.CreditorID != "alice" {
		t.Errorf("GetByID() = %+v", result)
	}

	if _, err := svc.GetByID(context.Background(), regular.Expense.ID, "alice"); !errors.Is(err, ErrSettlementNotFound) {
		t.Errorf("GetByID(regular expense) error = %v, want ErrSettlementNotFound", err)
	}
	if _, err := svc.GetByID(context.Background(), "nope", "alice"); !errors.Is(err, ErrSettlementNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrSettlementNotFound", err)
	}
	if _, err := svc.GetByID(context.Background(), settled.Expense.ID, "mallory"); !errors.Is(err, ErrNotGroupMember) {
		t.Errorf("GetByID(outsider) error = %v, want ErrNotGroupMember", err)
	}
}

func TestListSettlements(t *testing.T) {
	expenses := &fakeExpenses{}
	expenses.add("g1", "alice", "90.00", false, map[string]string{
		"alice": "45.00", "bob": "45.00",
	})
	expenses.add("g1", "bob", "45.00", true, map[string]string{"alice": "45.00"})
	expenses.add("g2", "carol", "10.00", true, map[string]string{"dave": "10.00"})
	groups := &fakeGroups{members: map[string][]string{
		"g1": {"alice", "bob"},
		"g2": {"carol", "dave"},
	}}
	svc := NewService(expenses, groups, nil)

	// alice only sees g1's settlement, not g2's.
	settlements, total, err := svc.List(context.Background(), "alice", 1, 20)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 || len(settlements) != 1 {
		t.Fatalf("List() total = %d, len = %d, want 1 and 1", total, len(settlements))
	}
	if settlements[0].DebtorID != "bob" || settlements[0].CreditorID != "alice" {
		t.Errorf("List()[0] = %+v", settlements[0])
	}
}
