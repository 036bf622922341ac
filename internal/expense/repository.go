package expense

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrDuplicateKey is returned when an insert collides with an existing
// idempotency key. Callers treat this as a replay, not a failure.
var ErrDuplicateKey = errors.New("idempotency key already used")

// Repository handles expense and split data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new expense repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateExpense inserts an expense and its splits in a single transaction.
// IDs and CreatedAt are filled in on the passed models.
func (r *Repository) CreateExpense(ctx context.Context, expense *Expense, splits []*Split) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	expense.ID = uuid.NewString()

	query := `
		INSERT INTO expenses (id, group_id, payer_id, description, amount, split_type, settled, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err = tx.QueryRowContext(ctx, query,
		expense.ID,
		expense.GroupID,
		expense.PayerID,
		expense.Description,
		expense.Amount,
		expense.SplitType,
		expense.Settled,
		expense.IdempotencyKey,
	).Scan(&expense.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to create expense: %w", err)
	}

	splitQuery := `
		INSERT INTO expense_splits (id, expense_id, member_id, share)
		VALUES ($1, $2, $3, $4)
	`
	for _, s := range splits {
		s.ID = uuid.NewString()
		s.ExpenseID = expense.ID
		if _, err := tx.ExecContext(ctx, splitQuery, s.ID, s.ExpenseID, s.MemberID, s.Share); err != nil {
			return fmt.Errorf("failed to create split: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit expense: %w", err)
	}

	return nil
}

// GetExpenseByID retrieves an expense by its ID
func (r *Repository) GetExpenseByID(ctx context.Context, id string) (*Expense, error) {
	query := `
		SELECT e.id, e.group_id, e.payer_id, e.description, e.amount, e.split_type, e.settled, e.idempotency_key, e.created_at, u.username
		FROM expenses e
		JOIN users u ON e.payer_id = u.id
		WHERE e.id = $1
	`

	expense := &Expense{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&expense.ID,
		&expense.GroupID,
		&expense.PayerID,
		&expense.Description,
		&expense.Amount,
		&expense.SplitType,
		&expense.Settled,
		&expense.IdempotencyKey,
		&expense.CreatedAt,
		&expense.PayerUsername,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	return expense, nil
}

// GetByIdempotencyKey retrieves the expense previously recorded under a key
func (r *Repository) GetByIdempotencyKey(ctx context.Context, key string) (*Expense, error) {
	query := `
		SELECT e.id, e.group_id, e.payer_id, e.description, e.amount, e.split_type, e.settled, e.idempotency_key, e.created_at, u.username
		FROM expenses e
		JOIN users u ON e.payer_id = u.id
		WHERE e.idempotency_key = $1
	`

	expense := &Expense{}
	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&expense.ID,
		&expense.GroupID,
		&expense.PayerID,
		&expense.Description,
		&expense.Amount,
		&expense.SplitType,
		&expense.Settled,
		&expense.IdempotencyKey,
		&expense.CreatedAt,
		&expense.PayerUsername,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get expense by idempotency key: %w", err)
	}

	return expense, nil
}

// GetSplitsByExpenseID retrieves all splits for an expense
func (r *Repository) GetSplitsByExpenseID(ctx context.Context, expenseID string) ([]*Split, error) {
	query := `
		SELECT s.id, s.expense_id, s.member_id, s.share, u.username
		FROM expense_splits s
		JOIN users u ON s.member_id = u.id
		WHERE s.expense_id = $1
		ORDER BY s.share DESC, s.member_id
	`

	rows, err := r.db.QueryContext(ctx, query, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	var splits []*Split
	for rows.Next() {
		split := &Split{}
		if err := rows.Scan(
			&split.ID,
			&split.ExpenseID,
			&split.MemberID,
			&split.Share,
			&split.MemberUsername,
		); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits = append(splits, split)
	}

	return splits, rows.Err()
}

// ListExpensesByGroupID retrieves expenses for a group, newest first
func (r *Repository) ListExpensesByGroupID(ctx context.Context, groupID string, limit, offset int) ([]*Expense, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM expenses WHERE group_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, groupID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count expenses: %w", err)
	}

	query := `
		SELECT e.id, e.group_id, e.payer_id, e.description, e.amount, e.split_type, e.settled, e.idempotency_key, e.created_at, u.username
		FROM expenses e
		JOIN users u ON e.payer_id = u.id
		WHERE e.group_id = $1
		ORDER BY e.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, groupID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	expenses, err := scanExpenses(rows)
	if err != nil {
		return nil, 0, err
	}

	return expenses, total, nil
}

// ListByGroupsWithSplits loads every expense of the given groups, settled ones
// included, together with their splits. This is the input set for balance
// calculations, so nothing is filtered out.
func (r *Repository) ListByGroupsWithSplits(ctx context.Context, groupIDs []string) ([]*ExpenseWithSplits, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT e.id, e.group_id, e.payer_id, e.description, e.amount, e.split_type, e.settled, e.idempotency_key, e.created_at, u.username
		FROM expenses e
		JOIN users u ON e.payer_id = u.id
		WHERE e.group_id = ANY($1)
		ORDER BY e.created_at
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(groupIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	expenses, err := scanExpenses(rows)
	if err != nil {
		return nil, err
	}

	splitQuery := `
		SELECT s.id, s.expense_id, s.member_id, s.share
		FROM expense_splits s
		JOIN expenses e ON s.expense_id = e.id
		WHERE e.group_id = ANY($1)
		ORDER BY s.expense_id, s.member_id
	`

	splitRows, err := r.db.QueryContext(ctx, splitQuery, pq.Array(groupIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	defer splitRows.Close()

	splitsByExpense := make(map[string][]*Split)
	for splitRows.Next() {
		split := &Split{}
		if err := splitRows.Scan(&split.ID, &split.ExpenseID, &split.MemberID, &split.Share); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splitsByExpense[split.ExpenseID] = append(splitsByExpense[split.ExpenseID], split)
	}
	if err := splitRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read splits: %w", err)
	}

	result := make([]*ExpenseWithSplits, len(expenses))
	for i, e := range expenses {
		result[i] = &ExpenseWithSplits{
			Expense: e,
			Splits:  splitsByExpense[e.ID],
		}
	}

	return result, nil
}

// ListSettlements retrieves settled expenses across the given groups with
// their splits. The splits for the whole page are loaded in one query.
func (r *Repository) ListSettlements(ctx context.Context, groupIDs []string, limit, offset int) ([]*ExpenseWithSplits, int, error) {
	if len(groupIDs) == 0 {
		return nil, 0, nil
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM expenses WHERE settled = TRUE AND group_id = ANY($1)`
	if err := r.db.QueryRowContext(ctx, countQuery, pq.Array(groupIDs)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count settlements: %w", err)
	}

	query := `
		SELECT e.id, e.group_id, e.payer_id, e.description, e.amount, e.split_type, e.settled, e.idempotency_key, e.created_at, u.username
		FROM expenses e
		JOIN users u ON e.payer_id = u.id
		WHERE e.settled = TRUE AND e.group_id = ANY($1)
		ORDER BY e.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(groupIDs), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	expenses, err := scanExpenses(rows)
	if err != nil {
		return nil, 0, err
	}
	if len(expenses) == 0 {
		return nil, total, nil
	}

	expenseIDs := make([]string, len(expenses))
	for i, e := range expenses {
		expenseIDs[i] = e.ID
	}

	splitQuery := `
		SELECT s.id, s.expense_id, s.member_id, s.share, u.username
		FROM expense_splits s
		JOIN users u ON s.member_id = u.id
		WHERE s.expense_id = ANY($1)
		ORDER BY s.expense_id, s.member_id
	`

	splitRows, err := r.db.QueryContext(ctx, splitQuery, pq.Array(expenseIDs))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list settlement splits: %w", err)
	}
	defer splitRows.Close()

	splitsByExpense := make(map[string][]*Split)
	for splitRows.Next() {
		split := &Split{}
		if err := splitRows.Scan(&split.ID, &split.ExpenseID, &split.MemberID, &split.Share, &split.MemberUsername); err != nil {
			return nil, 0, fmt.Errorf("failed to scan split: %w", err)
		}
		splitsByExpense[split.ExpenseID] = append(splitsByExpense[split.ExpenseID], split)
	}
	if err := splitRows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read splits: %w", err)
	}

	result := make([]*ExpenseWithSplits, len(expenses))
	for i, e := range expenses {
		result[i] = &ExpenseWithSplits{
			Expense: e,
			Splits:  splitsByExpense[e.ID],
		}
	}

	return result, total, nil
}

// HasGroupActivity reports whether the member paid for or holds a share in
// any of the group's expenses, settlements included
func (r *Repository) HasGroupActivity(ctx context.Context, groupID, memberID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM expenses e
			LEFT JOIN expense_splits s ON s.expense_id = e.id
			WHERE e.group_id = $1 AND (e.payer_id = $2 OR s.member_id = $2)
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, groupID, memberID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check member activity: %w", err)
	}

	return exists, nil
}

// UpdateExpense updates mutable fields of an expense
func (r *Repository) UpdateExpense(ctx context.Context, id string, req *UpdateExpenseRequest) (*Expense, error) {
	query := `
		UPDATE expenses
		SET description = COALESCE($2, description)
		WHERE id = $1
		RETURNING id, group_id, payer_id, description, amount, split_type, settled, idempotency_key, created_at
	`

	expense := &Expense{}
	err := r.db.QueryRowContext(ctx, query, id, req.Description).Scan(
		&expense.ID,
		&expense.GroupID,
		&expense.PayerID,
		&expense.Description,
		&expense.Amount,
		&expense.SplitType,
		&expense.Settled,
		&expense.IdempotencyKey,
		&expense.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update expense: %w", err)
	}

	return expense, nil
}

// DeleteExpense deletes an expense and its splits
func (r *Repository) DeleteExpense(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM expense_splits WHERE expense_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete splits: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrExpenseNotFound
	}

	return tx.Commit()
}

func scanExpenses(rows *sql.Rows) ([]*Expense, error) {
	var expenses []*Expense
	for rows.Next() {
		expense := &Expense{}
		if err := rows.Scan(
			&expense.ID,
			&expense.GroupID,
			&expense.PayerID,
			&expense.Description,
			&expense.Amount,
			&expense.SplitType,
			&expense.Settled,
			&expense.IdempotencyKey,
			&expense.CreatedAt,
			&expense.PayerUsername,
		); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	return expenses, rows.Err()
}
