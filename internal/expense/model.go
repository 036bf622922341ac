package expense

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/divvyhq/divvy/internal/expense/split"
)

// Expense represents an expense in the system. A settlement payment is stored
// as a regular expense with Settled set, so every balance calculation sees it
// through the same query path.
type Expense struct {
	ID             string          `json:"id"`
	GroupID        string          `json:"group_id"`
	PayerID        string          `json:"payer_id"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	SplitType      string          `json:"split_type"` // EVEN, PERCENTAGE, EXACT
	Settled        bool            `json:"settled"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`

	// Populated via JOIN
	PayerUsername string `json:"payer_username,omitempty"`
}

// Split represents one member's share of an expense. The payer gets a share
// like everyone else, so the shares of an expense sum to its amount.
type Split struct {
	ID        string          `json:"id"`
	ExpenseID string          `json:"expense_id"`
	MemberID  string          `json:"member_id"`
	Share     decimal.Decimal `json:"share"`

	// Populated via JOIN
	MemberUsername string `json:"member_username,omitempty"`
}

// ExpenseWithSplits combines an expense with its calculated splits
type ExpenseWithSplits struct {
	Expense *Expense
	Splits  []*Split
}

// SplitParticipant is used when creating an expense with splits
type SplitParticipant struct {
	MemberID   string           `json:"member_id"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"` // For PERCENTAGE split
	Amount     *decimal.Decimal `json:"amount,omitempty"`     // For EXACT split
}

// ToSplitInput converts to the split package's input type
func (p *SplitParticipant) ToSplitInput() split.SplitInput {
	return split.SplitInput{
		MemberID:   p.MemberID,
		Percentage: p.Percentage,
		Amount:     p.Amount,
	}
}
