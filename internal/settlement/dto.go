package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/divvyhq/divvy/internal/expense"
)

// RecordSettlementRequest represents the request to record a settlement
// payment. The debtor is the authenticated user.
type RecordSettlementRequest struct {
	GroupID        string          `json:"group_id" validate:"required"`
	CreditorID     string          `json:"creditor_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
}

// SettlementResponse represents a recorded settlement payment
type SettlementResponse struct {
	ID             string          `json:"id"`
	GroupID        string          `json:"group_id"`
	DebtorID       string          `json:"debtor_id"`
	DebtorUsername string          `json:"debtor_username,omitempty"`
	CreditorID     string          `json:"creditor_id"`
	Amount         decimal.Decimal `json:"amount"`
	RecordedAt     string          `json:"recorded_at"`
}

// MemberBalanceResponse represents one member's position in a balance scope
type MemberBalanceResponse struct {
	MemberID  string          `json:"member_id"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	TotalOwed decimal.Decimal `json:"total_owed"`
	Net       decimal.Decimal `json:"net"`
}

// SuggestedPaymentResponse represents one payment in a simplified debt plan
type SuggestedPaymentResponse struct {
	FromMemberID string          `json:"from_member_id"`
	ToMemberID   string          `json:"to_member_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// toSettlementResponse maps a settled expense back to the settlement shape:
// the payer is the debtor and the single split holds the creditor.
func toSettlementResponse(e *expense.Expense, splits []*expense.Split) *SettlementResponse {
	resp := &SettlementResponse{
		ID:             e.ID,
		GroupID:        e.GroupID,
		DebtorID:       e.PayerID,
		DebtorUsername: e.PayerUsername,
		Amount:         e.Amount,
		RecordedAt:     e.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if len(splits) > 0 {
		resp.CreditorID = splits[0].MemberID
	}
	return resp
}
