package expense

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/divvyhq/divvy/internal/expense/split"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

type fakeMembers map[string][]string

func (f fakeMembers) MemberIDs(_ context.Context, groupID string) ([]string, error) {
	return f[groupID], nil
}

// newValidationService builds a service that never reaches the repository:
// every case below fails validation first.
func newValidationService() *Service {
	members := fakeMembers{"g1": {"alice", "bob", "carol"}}
	return NewService(nil, split.NewSplitStrategyFactory(), members, nil)
}

func TestCreateExpenseValidation(t *testing.T) {
	tests := []struct {
		name    string
		payerID string
		req     *CreateExpenseRequest
		wantErr error
	}{
		{
			name:    "unknown split type",
			payerID: "alice",
			req: &CreateExpenseRequest{
				GroupID:      "g1",
				Description:  "dinner",
				Amount:       dec("30"),
				SplitType:    "RANDOM",
				Participants: []*SplitParticipant{{MemberID: "alice"}},
			},
			wantErr: split.ErrUnknownSplitType,
		},
		{
			name:    "payer outside the group",
			payerID: "mallory",
			req: &CreateExpenseRequest{
				GroupID:      "g1",
				Description:  "dinner",
				Amount:       dec("30"),
				SplitType:    "EVEN",
				Participants: []*SplitParticipant{{MemberID: "alice"}},
			},
			wantErr: ErrNotAGroupMember,
		},
		{
			name:    "participant outside the group",
			payerID: "alice",
			req: &CreateExpenseRequest{
				GroupID:     "g1",
				Description: "dinner",
				Amount:      dec("30"),
				SplitType:   "EVEN",
				Participants: []*SplitParticipant{
					{MemberID: "alice"}, {MemberID: "mallory"},
				},
			},
			wantErr: ErrNotAGroupMember,
		},
		{
			name:    "non-positive amount",
			payerID: "alice",
			req: &CreateExpenseRequest{
				GroupID:      "g1",
				Description:  "dinner",
				Amount:       dec("0"),
				SplitType:    "EVEN",
				Participants: []*SplitParticipant{{MemberID: "alice"}},
			},
			wantErr: split.ErrNonPositiveAmount,
		},
		{
			name:    "exact shares one cent short",
			payerID: "alice",
			req: &CreateExpenseRequest{
				GroupID:     "g1",
				Description: "groceries",
				Amount:      dec("100.00"),
				SplitType:   "EXACT",
				Participants: []*SplitParticipant{
					{MemberID: "alice", Amount: decPtr("50.00")},
					{MemberID: "bob", Amount: decPtr("49.99")},
				},
			},
			wantErr: split.ErrInvalidExactAmounts,
		},
		{
			name:    "empty participants",
			payerID: "alice",
			req: &CreateExpenseRequest{
				GroupID:     "g1",
				Description: "dinner",
				Amount:      dec("30"),
				SplitType:   "EVEN",
			},
			wantErr: split.ErrNoParticipants,
		},
	}

	svc := newValidationService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateExpense(context.Background(), tt.payerID, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateExpense() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecordSettlementValidation(t *testing.T) {
	tests := []struct {
		name       string
		debtorID   string
		creditorID string
		amount     string
		wantErr    error
	}{
		{"zero amount", "bob", "alice", "0", ErrInvalidAmount},
		{"negative amount", "bob", "alice", "-5", ErrInvalidAmount},
		{"self settlement", "bob", "bob", "10", ErrSelfSettlement},
		{"debtor outside the group", "mallory", "alice", "10", ErrNotAGroupMember},
		{"creditor outside the group", "bob", "mallory", "10", ErrNotAGroupMember},
	}

	svc := newValidationService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.RecordSettlement(context.Background(), "g1", tt.debtorID, tt.creditorID, dec(tt.amount), nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RecordSettlement() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
