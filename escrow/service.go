package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"herbid/payments"
	"herbid/project"
)

var (
	ErrInvalidAmount  = errors.New("escrow: amount must be positive")
	ErrMissingContact = errors.New("escrow: payer contact required")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// projectStore is the slice of the project repository the tracker touches.
type projectStore interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (project.Project, error)
	MarkFundsSecured(ctx context.Context, tx pgx.Tx, id string) error
}

// Service drives escrow transactions and the milestone state machine. Every
// write runs inside a single pgx transaction with row locks on the affected
// transaction and milestone, so concurrent confirmations against the same
// transaction serialise instead of racing.
type Service struct {
	pool     TxBeginner
	repo     Repository
	projects projectStore
	provider payments.Provider
	log      *zap.Logger
	idGen    func() string
	now      func() time.Time
}

func NewService(pool TxBeginner, repo Repository, projects projectStore, provider payments.Provider, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		pool:     pool,
		repo:     repo,
		projects: projects,
		provider: provider,
		log:      log,
		idGen:    func() string { return uuid.NewString() },
		now:      time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SecureFunds holds the payer's money and creates one escrow transaction for
// the project, split evenly across the assigned team as pending milestones.
// Each member receives floor(amount/teamSize); the division remainder stays
// on the transaction. The project's funds status flips to secured in the
// same transaction.
//
// Projects without an assigned team are rejected: milestone lists are fixed
// at creation, so funds accepted before assignment could never be disbursed.
func (s *Service) SecureFunds(ctx context.Context, params SecureFundsParams) (SecureFundsResult, error) {
	if params.ProjectID == "" {
		return SecureFundsResult{}, fmt.Errorf("escrow: missing project id")
	}
	if params.Amount <= 0 {
		return SecureFundsResult{}, ErrInvalidAmount
	}
	if params.PayerContact == "" {
		return SecureFundsResult{}, ErrMissingContact
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return SecureFundsResult{}, fmt.Errorf("escrow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	proj, err := s.projects.GetForUpdate(ctx, tx, params.ProjectID)
	if err != nil {
		return SecureFundsResult{}, err
	}
	if len(proj.AssignedTeam) == 0 {
		return SecureFundsResult{}, ErrNoAssignedTeam
	}

	reference, err := s.provider.RequestHold(ctx, params.PayerContact, params.Amount)
	if err != nil {
		return SecureFundsResult{}, fmt.Errorf("escrow: request hold: %w", err)
	}

	txn, err := s.repo.InsertTransaction(ctx, tx, Transaction{
		ID:               s.idGen(),
		ProjectID:        proj.ID,
		Amount:           params.Amount,
		Status:           StatusSecured,
		PaymentReference: reference,
		PayerContact:     params.PayerContact,
	})
	if err != nil {
		return SecureFundsResult{}, err
	}

	share := params.Amount / int64(len(proj.AssignedTeam))
	for i, memberID := range proj.AssignedTeam {
		if _, err := s.repo.InsertMilestone(ctx, tx, Milestone{
			ID:            s.idGen(),
			TransactionID: txn.ID,
			TeamMemberID:  memberID,
			Amount:        share,
			Status:        MilestonePending,
			Position:      i,
		}); err != nil {
			return SecureFundsResult{}, err
		}
	}

	if err := s.projects.MarkFundsSecured(ctx, tx, proj.ID); err != nil {
		return SecureFundsResult{}, err
	}

	if err := insertTimelineEvent(ctx, tx, proj.ID, EventFundsSecured, map[string]any{
		"transaction_id": txn.ID,
		"amount":         params.Amount,
		"team_size":      len(proj.AssignedTeam),
		"reference":      reference,
	}); err != nil {
		return SecureFundsResult{}, err
	}
	if err := enqueueOutbox(ctx, tx, TopicFundsSecured, map[string]any{
		"transaction_id": txn.ID,
		"project_id":     proj.ID,
		"amount":         params.Amount,
	}); err != nil {
		return SecureFundsResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return SecureFundsResult{}, fmt.Errorf("escrow: commit secure funds: %w", err)
	}

	s.log.Info("funds secured",
		zap.String("project_id", proj.ID),
		zap.String("transaction_id", txn.ID),
		zap.Int64("amount", params.Amount),
		zap.Int("milestones", len(proj.AssignedTeam)),
	)

	return SecureFundsResult{
		TransactionID: txn.ID,
		Reference:     reference,
		Message:       fmt.Sprintf("Funds secured for project %s", proj.ID),
	}, nil
}

// ConfirmMilestone transitions the member's milestone pending -> confirmed,
// disburses the payout, and records confirmed -> paid. Both transitions
// persist together: a disbursement failure rolls the confirmation back and
// the milestone stays pending. A milestone already confirmed or paid fails
// with ErrMilestoneNotPending, so a member can never be paid twice. When the
// last milestone is paid the owning transaction is promoted to completed.
func (s *Service) ConfirmMilestone(ctx context.Context, projectID, teamMemberID string) (ConfirmResult, error) {
	if projectID == "" || teamMemberID == "" {
		return ConfirmResult{}, fmt.Errorf("escrow: project id and team member id required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("escrow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	txn, err := s.repo.GetLatestForProjectLocked(ctx, tx, projectID)
	if err != nil {
		return ConfirmResult{}, err
	}

	milestone, err := s.repo.GetMilestoneLocked(ctx, tx, txn.ID, teamMemberID)
	if err != nil {
		return ConfirmResult{}, err
	}
	if milestone.Status != MilestonePending {
		return ConfirmResult{}, ErrMilestoneNotPending
	}

	confirmedAt := s.now()
	if err := s.repo.MarkMilestoneConfirmed(ctx, tx, milestone.ID, confirmedAt); err != nil {
		return ConfirmResult{}, err
	}

	reference, err := s.provider.Disburse(ctx, teamMemberID, milestone.Amount)
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("escrow: disburse milestone: %w", err)
	}

	if err := s.repo.MarkMilestonePaid(ctx, tx, milestone.ID, s.now(), reference); err != nil {
		return ConfirmResult{}, err
	}

	unpaid, err := s.repo.CountUnpaidMilestones(ctx, tx, txn.ID)
	if err != nil {
		return ConfirmResult{}, err
	}
	if unpaid == 0 {
		if err := s.repo.MarkTransactionCompleted(ctx, tx, txn.ID); err != nil {
			return ConfirmResult{}, err
		}
		if err := enqueueOutbox(ctx, tx, TopicTransactionClosed, map[string]any{
			"transaction_id": txn.ID,
			"project_id":     projectID,
		}); err != nil {
			return ConfirmResult{}, err
		}
	}

	if err := insertTimelineEvent(ctx, tx, projectID, EventMilestonePaid, map[string]any{
		"transaction_id": txn.ID,
		"milestone_id":   milestone.ID,
		"team_member_id": teamMemberID,
		"amount":         milestone.Amount,
		"reference":      reference,
	}); err != nil {
		return ConfirmResult{}, err
	}
	if err := enqueueOutbox(ctx, tx, TopicMilestonePaid, map[string]any{
		"transaction_id": txn.ID,
		"team_member_id": teamMemberID,
		"amount":         milestone.Amount,
	}); err != nil {
		return ConfirmResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ConfirmResult{}, fmt.Errorf("escrow: commit confirmation: %w", err)
	}

	s.log.Info("milestone paid",
		zap.String("project_id", projectID),
		zap.String("team_member_id", teamMemberID),
		zap.Int64("amount", milestone.Amount),
		zap.String("reference", reference),
	)

	return ConfirmResult{
		PaymentAmount:    milestone.Amount,
		PaymentReference: reference,
		Message:          fmt.Sprintf("Milestone paid to %s", teamMemberID),
	}, nil
}

// ListByProject returns all escrow transactions recorded for a project.
func (s *Service) ListByProject(ctx context.Context, projectID string) ([]Transaction, error) {
	return s.repo.ListByProject(ctx, projectID)
}
