package settlement

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/divvyhq/divvy/internal/balance"
	"github.com/divvyhq/divvy/internal/expense"
	"github.com/divvyhq/divvy/internal/metrics"
	"github.com/divvyhq/divvy/internal/notification"
)

// Common errors
var (
	ErrSettlementNotFound    = errors.New("settlement not found")
	ErrNotGroupMember        = errors.New("not a member of this group")
	ErrInvalidIdempotencyKey = errors.New("idempotency key must be a valid UUID")
)

// ExpenseSource provides the expense history and settlement recording. The
// expense feature implements it.
type ExpenseSource interface {
	ListByGroupsWithSplits(ctx context.Context, groupIDs []string) ([]*expense.ExpenseWithSplits, error)
	RecordSettlement(ctx context.Context, groupID, debtorID, creditorID string, amount decimal.Decimal, idempotencyKey *string) (*expense.ExpenseWithSplits, bool, error)
	GetExpenseByID(ctx context.Context, id string) (*expense.ExpenseWithSplits, error)
	ListSettlements(ctx context.Context, groupIDs []string, limit, offset int) ([]*expense.ExpenseWithSplits, int, error)
}

// GroupSource provides group membership. The group feature implements it.
type GroupSource interface {
	MemberIDs(ctx context.Context, groupID string) ([]string, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	GroupIDsByUserID(ctx context.Context, userID string) ([]string, error)
}

// Notifier delivers settlement notifications. May be nil.
type Notifier interface {
	NotifySettlementRecorded(ctx context.Context, recipientID, debtorName string, amount decimal.Decimal, settlementID string) (*notification.Notification, error)
}

// Service computes balances and simplified debt plans and records settlement
// payments
type Service struct {
	expenses ExpenseSource
	groups   GroupSource
	notifier Notifier
}

// NewService creates a new settlement service
func NewService(expenses ExpenseSource, groups GroupSource, notifier Notifier) *Service {
	return &Service{
		expenses: expenses,
		groups:   groups,
		notifier: notifier,
	}
}

// GroupBalances returns every group member's position, zero balances
// included. The requester must be a member.
func (s *Service) GroupBalances(ctx context.Context, groupID, userID string) ([]*MemberBalanceResponse, error) {
	memberIDs, err := s.groupScope(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}

	records, err := s.expenseRecords(ctx, []string{groupID})
	if err != nil {
		return nil, err
	}

	balances, err := balance.Aggregate(records, memberIDs)
	if err != nil {
		return nil, s.alarm(err, groupID)
	}

	responses := make([]*MemberBalanceResponse, 0, len(memberIDs))
	for _, id := range memberIDs {
		b := balances[id]
		responses = append(responses, &MemberBalanceResponse{
			MemberID:  b.MemberID,
			TotalPaid: b.TotalPaid,
			TotalOwed: b.TotalOwed,
			Net:       b.Net,
		})
	}

	return responses, nil
}

// GroupSuggested returns the simplified debt plan for a group
func (s *Service) GroupSuggested(ctx context.Context, groupID, userID string) ([]*SuggestedPaymentResponse, error) {
	memberIDs, err := s.groupScope(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}

	records, err := s.expenseRecords(ctx, []string{groupID})
	if err != nil {
		return nil, err
	}

	debts, err := balance.ComputeSettlements(records, memberIDs)
	if err != nil {
		return nil, s.alarm(err, groupID)
	}

	return toSuggestedResponses(debts), nil
}

// UserBalances returns the user's position across every group they belong
// to, together with everyone they share a group with
func (s *Service) UserBalances(ctx context.Context, userID string) ([]*MemberBalanceResponse, error) {
	groupIDs, memberIDs, err := s.userScope(ctx, userID)
	if err != nil {
		return nil, err
	}

	records, err := s.expenseRecords(ctx, groupIDs)
	if err != nil {
		return nil, err
	}

	balances, err := balance.Aggregate(records, memberIDs)
	if err != nil {
		return nil, s.alarm(err, "")
	}

	responses := make([]*MemberBalanceResponse, 0, len(memberIDs))
	for _, id := range memberIDs {
		b := balances[id]
		responses = append(responses, &MemberBalanceResponse{
			MemberID:  b.MemberID,
			TotalPaid: b.TotalPaid,
			TotalOwed: b.TotalOwed,
			Net:       b.Net,
		})
	}

	return responses, nil
}

// UserSuggested returns the simplified debt plan across every group the user
// belongs to
func (s *Service) UserSuggested(ctx context.Context, userID string) ([]*SuggestedPaymentResponse, error) {
	groupIDs, memberIDs, err := s.userScope(ctx, userID)
	if err != nil {
		return nil, err
	}

	records, err := s.expenseRecords(ctx, groupIDs)
	if err != nil {
		return nil, err
	}

	debts, err := balance.ComputeSettlements(records, memberIDs)
	if err != nil {
		return nil, s.alarm(err, "")
	}

	return toSuggestedResponses(debts), nil
}

// Record stores a settlement payment from the debtor to the creditor. The
// returned bool reports whether an earlier record was replayed via the
// idempotency key.
func (s *Service) Record(ctx context.Context, debtorID string, req *RecordSettlementRequest) (*SettlementResponse, bool, error) {
	if req.IdempotencyKey != nil {
		if _, err := uuid.Parse(*req.IdempotencyKey); err != nil {
			return nil, false, ErrInvalidIdempotencyKey
		}
	}

	result, replayed, err := s.expenses.RecordSettlement(ctx, req.GroupID, debtorID, req.CreditorID, req.Amount, req.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}

	resp := toSettlementResponse(result.Expense, result.Splits)
	if replayed {
		return resp, true, nil
	}

	metrics.SettlementsRecorded.Inc()

	if s.notifier != nil {
		// Re-read for the payer username; the fresh insert doesn't carry it.
		full, err := s.expenses.GetExpenseByID(ctx, resp.ID)
		debtorName := debtorID
		if err == nil {
			debtorName = full.Expense.PayerUsername
		}
		if _, err := s.notifier.NotifySettlementRecorded(ctx, resp.CreditorID, debtorName, resp.Amount, resp.ID); err != nil {
			slog.Warn("failed to notify settlement", "settlement_id", resp.ID, "error", err)
		}
	}

	return resp, false, nil
}

// List retrieves the settlement history across every group the user belongs
// to
func (s *Service) List(ctx context.Context, userID string, page, perPage int) ([]*SettlementResponse, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	groupIDs, err := s.groups.GroupIDsByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	settlements, total, err := s.expenses.ListSettlements(ctx, groupIDs, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]*SettlementResponse, len(settlements))
	for i, e := range settlements {
		responses[i] = toSettlementResponse(e.Expense, e.Splits)
	}

	return responses, total, nil
}

// GetByID retrieves a single settlement. The requester must be a member of
// the settlement's group.
func (s *Service) GetByID(ctx context.Context, id, userID string) (*SettlementResponse, error) {
	result, err := s.expenses.GetExpenseByID(ctx, id)
	if err != nil {
		if errors.Is(err, expense.ErrExpenseNotFound) {
			return nil, ErrSettlementNotFound
		}
		return nil, err
	}
	if !result.Expense.Settled {
		return nil, ErrSettlementNotFound
	}

	isMember, err := s.groups.IsMember(ctx, result.Expense.GroupID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotGroupMember
	}

	return toSettlementResponse(result.Expense, result.Splits), nil
}

// groupScope verifies membership and returns the group's member set
func (s *Service) groupScope(ctx context.Context, groupID, userID string) ([]string, error) {
	isMember, err := s.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotGroupMember
	}

	return s.groups.MemberIDs(ctx, groupID)
}

// userScope returns the user's groups and everyone in them. The user is
// always part of the scope, even with no groups at all.
func (s *Service) userScope(ctx context.Context, userID string) ([]string, []string, error) {
	groupIDs, err := s.groups.GroupIDsByUserID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	memberIDs := []string{userID}
	seen := map[string]bool{userID: true}
	for _, groupID := range groupIDs {
		ids, err := s.groups.MemberIDs(ctx, groupID)
		if err != nil {
			return nil, nil, err
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				memberIDs = append(memberIDs, id)
			}
		}
	}

	return groupIDs, memberIDs, nil
}

// expenseRecords loads the expense history of the given groups and flattens
// it into balance records
func (s *Service) expenseRecords(ctx context.Context, groupIDs []string) ([]balance.ExpenseRecord, error) {
	expenses, err := s.expenses.ListByGroupsWithSplits(ctx, groupIDs)
	if err != nil {
		return nil, err
	}

	records := make([]balance.ExpenseRecord, len(expenses))
	for i, e := range expenses {
		splits := make([]balance.SplitShare, len(e.Splits))
		for j, sp := range e.Splits {
			splits[j] = balance.SplitShare{MemberID: sp.MemberID, Share: sp.Share}
		}
		records[i] = balance.ExpenseRecord{
			PayerID: e.Expense.PayerID,
			Amount:  e.Expense.Amount,
			Splits:  splits,
			Settled: e.Expense.Settled,
		}
	}

	return records, nil
}

// alarm counts data integrity failures before passing the error on. These
// mean stored data violates an invariant, so they page rather than 4xx.
func (s *Service) alarm(err error, groupID string) error {
	switch {
	case errors.Is(err, balance.ErrUnknownMember):
		metrics.DataIntegrityAlarms.WithLabelValues("unknown_member").Inc()
		slog.Error("balance scope references unknown member", "group_id", groupID, "error", err)
	case errors.Is(err, balance.ErrUnbalancedScope):
		metrics.DataIntegrityAlarms.WithLabelValues("unbalanced_scope").Inc()
		slog.Error("balance scope does not sum to zero", "group_id", groupID, "error", err)
	}
	return err
}

func toSuggestedResponses(debts []balance.SimplifiedDebt) []*SuggestedPaymentResponse {
	responses := make([]*SuggestedPaymentResponse, len(debts))
	for i, d := range debts {
		responses[i] = &SuggestedPaymentResponse{
			FromMemberID: d.FromMemberID,
			ToMemberID:   d.ToMemberID,
			Amount:       d.Amount,
		}
	}
	return responses
}
