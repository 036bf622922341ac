package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/divvyhq/divvy/internal/expense/split"
	"github.com/divvyhq/divvy/internal/notification"
)

// Common errors
var (
	ErrExpenseNotFound  = errors.New("expense not found")
	ErrNotPayer         = errors.New("only the payer can modify this expense")
	ErrExpenseImmutable = errors.New("settlement records cannot be modified")
	ErrNotAGroupMember  = errors.New("participant is not a member of the group")
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrSelfSettlement   = errors.New("cannot settle a debt with yourself")
)

// MemberSource provides the member set of a group. The group feature
// implements it.
type MemberSource interface {
	MemberIDs(ctx context.Context, groupID string) ([]string, error)
}

// Notifier delivers expense notifications. May be nil.
type Notifier interface {
	NotifyExpenseAdded(ctx context.Context, recipientID, payerName string, share decimal.Decimal, expenseID string) (*notification.Notification, error)
}

// Service handles expense business logic
type Service struct {
	repo         *Repository
	splitFactory *split.Factory
	members      MemberSource
	notifier     Notifier
}

// NewService creates a new expense service with dependencies injected
func NewService(repo *Repository, splitFactory *split.Factory, members MemberSource, notifier Notifier) *Service {
	return &Service{
		repo:         repo,
		splitFactory: splitFactory,
		members:      members,
		notifier:     notifier,
	}
}

// CreateExpense creates a new expense and calculates splits using the
// requested strategy. Every participant, the payer included, must be a
// member of the group.
func (s *Service) CreateExpense(ctx context.Context, payerID string, req *CreateExpenseRequest) (*ExpenseWithSplits, error) {
	strategy, err := s.splitFactory.CreateFromString(req.SplitType)
	if err != nil {
		return nil, err
	}

	memberSet, err := s.groupMemberSet(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	if !memberSet[payerID] {
		return nil, fmt.Errorf("%w: %s", ErrNotAGroupMember, payerID)
	}
	for _, p := range req.Participants {
		if !memberSet[p.MemberID] {
			return nil, fmt.Errorf("%w: %s", ErrNotAGroupMember, p.MemberID)
		}
	}

	inputs := make([]split.SplitInput, len(req.Participants))
	for i, p := range req.Participants {
		inputs[i] = p.ToSplitInput()
	}

	outputs, err := strategy.Calculate(req.Amount, inputs)
	if err != nil {
		return nil, err
	}

	expense := &Expense{
		GroupID:     req.GroupID,
		PayerID:     payerID,
		Description: req.Description,
		Amount:      req.Amount,
		SplitType:   string(strategy.Type()),
	}
	splits := make([]*Split, len(outputs))
	for i, out := range outputs {
		splits[i] = &Split{MemberID: out.MemberID, Share: out.Share}
	}

	if err := s.repo.CreateExpense(ctx, expense, splits); err != nil {
		return nil, err
	}

	s.notifyParticipants(ctx, expense, splits)

	return &ExpenseWithSplits{Expense: expense, Splits: splits}, nil
}

// notifyParticipants tells everyone with a share, payer excluded, that the
// expense exists. Failures are logged, never surfaced: the expense is
// already stored.
func (s *Service) notifyParticipants(ctx context.Context, e *Expense, splits []*Split) {
	if s.notifier == nil {
		return
	}

	payerName := e.PayerID
	if full, err := s.repo.GetExpenseByID(ctx, e.ID); err == nil && full != nil {
		payerName = full.PayerUsername
	}

	for _, sp := range splits {
		if sp.MemberID == e.PayerID {
			continue
		}
		if _, err := s.notifier.NotifyExpenseAdded(ctx, sp.MemberID, payerName, sp.Share, e.ID); err != nil {
			slog.Warn("failed to notify participant", "expense_id", e.ID, "member_id", sp.MemberID, "error", err)
		}
	}
}

// RecordSettlement stores a settlement payment as a settled expense: the
// debtor pays the full amount and the creditor holds the only split, so the
// pair's balances move toward zero without any special casing downstream.
// The returned bool reports whether an earlier record was replayed via the
// idempotency key.
func (s *Service) RecordSettlement(ctx context.Context, groupID, debtorID, creditorID string, amount decimal.Decimal, idempotencyKey *string) (*ExpenseWithSplits, bool, error) {
	if !amount.IsPositive() {
		return nil, false, ErrInvalidAmount
	}
	if debtorID == creditorID {
		return nil, false, ErrSelfSettlement
	}

	memberSet, err := s.groupMemberSet(ctx, groupID)
	if err != nil {
		return nil, false, err
	}
	if !memberSet[debtorID] {
		return nil, false, fmt.Errorf("%w: %s", ErrNotAGroupMember, debtorID)
	}
	if !memberSet[creditorID] {
		return nil, false, fmt.Errorf("%w: %s", ErrNotAGroupMember, creditorID)
	}

	expense := &Expense{
		GroupID:        groupID,
		PayerID:        debtorID,
		Description:    "Settlement",
		Amount:         amount.Round(2),
		SplitType:      string(split.SplitTypeExact),
		Settled:        true,
		IdempotencyKey: idempotencyKey,
	}
	splits := []*Split{{MemberID: creditorID, Share: expense.Amount}}

	err = s.repo.CreateExpense(ctx, expense, splits)
	if err == nil {
		return &ExpenseWithSplits{Expense: expense, Splits: splits}, false, nil
	}
	if !errors.Is(err, ErrDuplicateKey) || idempotencyKey == nil {
		return nil, false, err
	}

	// Replay: hand back what the first request recorded.
	existing, err := s.repo.GetByIdempotencyKey(ctx, *idempotencyKey)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, ErrDuplicateKey
	}
	existingSplits, err := s.repo.GetSplitsByExpenseID(ctx, existing.ID)
	if err != nil {
		return nil, false, err
	}

	return &ExpenseWithSplits{Expense: existing, Splits: existingSplits}, true, nil
}

// GetExpenseByID retrieves an expense with its splits
func (s *Service) GetExpenseByID(ctx context.Context, id string) (*ExpenseWithSplits, error) {
	expense, err := s.repo.GetExpenseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, ErrExpenseNotFound
	}

	splits, err := s.repo.GetSplitsByExpenseID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ExpenseWithSplits{Expense: expense, Splits: splits}, nil
}

// ListExpensesByGroupID retrieves expenses for a group
func (s *Service) ListExpensesByGroupID(ctx context.Context, groupID string, page, perPage int) ([]*Expense, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListExpensesByGroupID(ctx, groupID, perPage, offset)
}

// ListByGroupsWithSplits loads the full expense history of the given groups,
// settled records included
func (s *Service) ListByGroupsWithSplits(ctx context.Context, groupIDs []string) ([]*ExpenseWithSplits, error) {
	return s.repo.ListByGroupsWithSplits(ctx, groupIDs)
}

// ListSettlements retrieves settled expenses across the given groups with
// their splits
func (s *Service) ListSettlements(ctx context.Context, groupIDs []string, limit, offset int) ([]*ExpenseWithSplits, int, error) {
	return s.repo.ListSettlements(ctx, groupIDs, limit, offset)
}

// UpdateExpense updates an expense's description. Settlement records are
// immutable.
func (s *Service) UpdateExpense(ctx context.Context, id, userID string, req *UpdateExpenseRequest) (*Expense, error) {
	expense, err := s.repo.GetExpenseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, ErrExpenseNotFound
	}
	if expense.PayerID != userID {
		return nil, ErrNotPayer
	}
	if expense.Settled {
		return nil, ErrExpenseImmutable
	}

	updated, err := s.repo.UpdateExpense(ctx, id, req)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrExpenseNotFound
	}

	return updated, nil
}

// DeleteExpense deletes an expense. Only the payer can delete, and
// settlement records are immutable.
func (s *Service) DeleteExpense(ctx context.Context, id, userID string) error {
	expense, err := s.repo.GetExpenseByID(ctx, id)
	if err != nil {
		return err
	}
	if expense == nil {
		return ErrExpenseNotFound
	}
	if expense.PayerID != userID {
		return ErrNotPayer
	}
	if expense.Settled {
		return ErrExpenseImmutable
	}

	return s.repo.DeleteExpense(ctx, id)
}

func (s *Service) groupMemberSet(ctx context.Context, groupID string) (map[string]bool, error) {
	memberIDs, err := s.members.MemberIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		set[id] = true
	}
	return set, nil
}
