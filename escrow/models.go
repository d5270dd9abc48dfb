package escrow

import "time"

// TransactionStatus is the lifecycle of an escrow transaction. Transactions
// are created directly in StatusSecured once the payment hold succeeds and
// move to StatusCompleted when their last milestone is paid.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusSecured   TransactionStatus = "secured"
	StatusReleased  TransactionStatus = "released"
	StatusCompleted TransactionStatus = "completed"
)

// MilestoneStatus tracks a per-member payout. Transitions are one-way:
// pending -> confirmed -> paid.
type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "pending"
	MilestoneConfirmed MilestoneStatus = "confirmed"
	MilestonePaid      MilestoneStatus = "paid"
)

// Transaction records funds secured for a project. Amount and the milestone
// list are fixed at creation.
type Transaction struct {
	ID               string
	ProjectID        string
	Amount           int64
	Status           TransactionStatus
	PaymentReference string
	PayerContact     string
	Milestones       []Milestone
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Milestone is one team member's share of an escrowed payment. Amount is
// floor(transaction.Amount / teamSize); the division remainder stays on the
// transaction.
type Milestone struct {
	ID               string
	TransactionID    string
	TeamMemberID     string
	Amount           int64
	Status           MilestoneStatus
	Position         int
	ConfirmedAt      *time.Time
	PaidAt           *time.Time
	PaymentReference *string
}

// SecureFundsParams enumerates the inputs to SecureFunds.
type SecureFundsParams struct {
	ProjectID    string
	Amount       int64
	PayerContact string
}

// SecureFundsResult is returned for client display after funds are held.
type SecureFundsResult struct {
	TransactionID string
	Reference     string
	Message       string
}

// ConfirmResult reports the disbursement made for a confirmed milestone.
type ConfirmResult struct {
	PaymentAmount    int64
	PaymentReference string
	Message          string
}
