package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrTransactionNotFound = errors.New("escrow: transaction not found")
	ErrMilestoneNotFound   = errors.New("escrow: milestone not found")
	ErrMilestoneNotPending = errors.New("escrow: milestone is not pending")
	ErrNoAssignedTeam      = errors.New("escrow: project has no assigned team")
)

// Repository defines the data access the escrow service needs. All mutating
// methods take the caller's transaction so milestone transitions, transaction
// promotion and event writes commit as one unit.
type Repository interface {
	InsertTransaction(ctx context.Context, tx pgx.Tx, txn Transaction) (Transaction, error)
	InsertMilestone(ctx context.Context, tx pgx.Tx, m Milestone) (Milestone, error)
	GetLatestForProjectLocked(ctx context.Context, tx pgx.Tx, projectID string) (Transaction, error)
	GetMilestoneLocked(ctx context.Context, tx pgx.Tx, transactionID, teamMemberID string) (Milestone, error)
	MarkMilestoneConfirmed(ctx context.Context, tx pgx.Tx, milestoneID string, at time.Time) error
	MarkMilestonePaid(ctx context.Context, tx pgx.Tx, milestoneID string, at time.Time, reference string) error
	CountUnpaidMilestones(ctx context.Context, tx pgx.Tx, transactionID string) (int, error)
	MarkTransactionCompleted(ctx context.Context, tx pgx.Tx, transactionID string) error
	ListByProject(ctx context.Context, projectID string) ([]Transaction, error)
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const transactionColumns = `id, project_id, amount, status, payment_reference, payer_contact, created_at, updated_at`
const milestoneColumns = `id, transaction_id, team_member_id, amount, status, position, confirmed_at, paid_at, payment_reference`

func (r *PGRepository) InsertTransaction(ctx context.Context, tx pgx.Tx, txn Transaction) (Transaction, error) {
	const query = `
		INSERT INTO escrow_transactions (id, project_id, amount, status, payment_reference, payer_contact)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6)
		RETURNING ` + transactionColumns

	row := tx.QueryRow(ctx, query,
		txn.ID,
		txn.ProjectID,
		txn.Amount,
		txn.Status,
		txn.PaymentReference,
		txn.PayerContact,
	)
	out, err := scanTransaction(row)
	if err != nil {
		return Transaction{}, fmt.Errorf("escrow: insert transaction: %w", err)
	}
	return out, nil
}

func (r *PGRepository) InsertMilestone(ctx context.Context, tx pgx.Tx, m Milestone) (Milestone, error) {
	const query = `
		INSERT INTO milestones (id, transaction_id, team_member_id, amount, status, position)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6)
		RETURNING ` + milestoneColumns

	row := tx.QueryRow(ctx, query,
		m.ID,
		m.TransactionID,
		m.TeamMemberID,
		m.Amount,
		m.Status,
		m.Position,
	)
	out, err := scanMilestone(row)
	if err != nil {
		return Milestone{}, fmt.Errorf("escrow: insert milestone: %w", err)
	}
	return out, nil
}

// GetLatestForProjectLocked returns the most recent transaction for the
// project and takes a row lock on it, serialising concurrent milestone
// confirmations against the same transaction.
func (r *PGRepository) GetLatestForProjectLocked(ctx context.Context, tx pgx.Tx, projectID string) (Transaction, error) {
	const query = `
		SELECT ` + transactionColumns + `
		FROM escrow_transactions
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`

	txn, err := scanTransaction(tx.QueryRow(ctx, query, projectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, fmt.Errorf("escrow: lock transaction: %w", err)
	}
	return txn, nil
}

func (r *PGRepository) GetMilestoneLocked(ctx context.Context, tx pgx.Tx, transactionID, teamMemberID string) (Milestone, error) {
	const query = `
		SELECT ` + milestoneColumns + `
		FROM milestones
		WHERE transaction_id = $1 AND team_member_id = $2
		FOR UPDATE
	`

	m, err := scanMilestone(tx.QueryRow(ctx, query, transactionID, teamMemberID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Milestone{}, ErrMilestoneNotFound
		}
		return Milestone{}, fmt.Errorf("escrow: lock milestone: %w", err)
	}
	return m, nil
}

func (r *PGRepository) MarkMilestoneConfirmed(ctx context.Context, tx pgx.Tx, milestoneID string, at time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE milestones
		SET status = 'confirmed',
		    confirmed_at = $2
		WHERE id = $1 AND status = 'pending'
	`, milestoneID, at)
	if err != nil {
		return fmt.Errorf("escrow: mark confirmed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMilestoneNotPending
	}
	return nil
}

func (r *PGRepository) MarkMilestonePaid(ctx context.Context, tx pgx.Tx, milestoneID string, at time.Time, reference string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE milestones
		SET status = 'paid',
		    paid_at = $2,
		    payment_reference = $3
		WHERE id = $1 AND status = 'confirmed'
	`, milestoneID, at, reference)
	if err != nil {
		return fmt.Errorf("escrow: mark paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMilestoneNotPending
	}
	return nil
}

func (r *PGRepository) CountUnpaidMilestones(ctx context.Context, tx pgx.Tx, transactionID string) (int, error) {
	var unpaid int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM milestones
		WHERE transaction_id = $1 AND status <> 'paid'
	`, transactionID).Scan(&unpaid)
	if err != nil {
		return 0, fmt.Errorf("escrow: count unpaid: %w", err)
	}
	return unpaid, nil
}

func (r *PGRepository) MarkTransactionCompleted(ctx context.Context, tx pgx.Tx, transactionID string) error {
	if _, err := tx.Exec(ctx, `
		UPDATE escrow_transactions
		SET status = 'completed',
		    updated_at = now()
		WHERE id = $1
	`, transactionID); err != nil {
		return fmt.Errorf("escrow: mark completed: %w", err)
	}
	return nil
}

// ListByProject returns all transactions for a project, milestones attached
// in split order. Projects without transactions yield an empty slice.
func (r *PGRepository) ListByProject(ctx context.Context, projectID string) ([]Transaction, error) {
	const query = `
		SELECT ` + transactionColumns + `
		FROM escrow_transactions
		WHERE project_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("escrow: list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("escrow: scan transaction: %w", err)
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("escrow: iterate transactions: %w", err)
	}

	for i := range transactions {
		milestones, err := r.milestonesFor(ctx, transactions[i].ID)
		if err != nil {
			return nil, err
		}
		transactions[i].Milestones = milestones
	}

	return transactions, nil
}

func (r *PGRepository) milestonesFor(ctx context.Context, transactionID string) ([]Milestone, error) {
	const query = `
		SELECT ` + milestoneColumns + `
		FROM milestones
		WHERE transaction_id = $1
		ORDER BY position ASC
	`

	rows, err := r.pool.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("escrow: list milestones: %w", err)
	}
	defer rows.Close()

	milestones := []Milestone{}
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("escrow: scan milestone: %w", err)
		}
		milestones = append(milestones, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("escrow: iterate milestones: %w", err)
	}
	return milestones, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var txn Transaction
	return txn, row.Scan(
		&txn.ID,
		&txn.ProjectID,
		&txn.Amount,
		&txn.Status,
		&txn.PaymentReference,
		&txn.PayerContact,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
}

func scanMilestone(row pgx.Row) (Milestone, error) {
	var m Milestone
	return m, row.Scan(
		&m.ID,
		&m.TransactionID,
		&m.TeamMemberID,
		&m.Amount,
		&m.Status,
		&m.Position,
		&m.ConfirmedAt,
		&m.PaidAt,
		&m.PaymentReference,
	)
}
