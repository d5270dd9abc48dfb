package escrow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"herbid/payments"
	"herbid/project"
)

func TestEscrowLifecycleAgainstPostgres(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	requiredTables := []string{
		"businesses",
		"projects",
		"escrow_transactions",
		"milestones",
		"timeline_events",
		"outbox",
	}
	for _, tbl := range requiredTables {
		if !tableExists(ctx, pool, tbl) {
			t.Skipf("table %s does not exist; ensure migrations are applied", tbl)
		}
	}

	mustInsert := func(query string, args ...any) string {
		var id string
		if err := pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
			t.Fatalf("seed statement failed: %v", err)
		}
		return id
	}

	suffix := time.Now().UnixNano()
	memberA := mustInsert(`INSERT INTO businesses (name, skills, location, reputation) VALUES ($1, ARRAY['Marketing'], 'Nairobi', 0.8) RETURNING id`,
		fmt.Sprintf("Amani Marketing %d", suffix))
	memberB := mustInsert(`INSERT INTO businesses (name, skills, location, reputation) VALUES ($1, ARRAY['Dev'], 'Nairobi', 0.7) RETURNING id`,
		fmt.Sprintf("Binti Dev %d", suffix))
	memberC := mustInsert(`INSERT INTO businesses (name, skills) VALUES ($1, ARRAY['Finance']) RETURNING id`,
		fmt.Sprintf("Chui Finance %d", suffix))

	projectID := mustInsert(`
		INSERT INTO projects (title, required_skills, location, budget, assigned_team, funds_status)
		VALUES ($1, ARRAY['Marketing','Dev','Finance'], 'Nairobi', 200000, ARRAY[$2,$3,$4]::uuid[], 'pending')
		RETURNING id
	`, fmt.Sprintf("County Tender %d", suffix), memberA, memberB, memberC)

	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM outbox WHERE payload->>'project_id' = $1`, projectID)
		pool.Exec(ctx2, `DELETE FROM timeline_events WHERE project_id = $1`, projectID)
		pool.Exec(ctx2, `DELETE FROM milestones WHERE transaction_id IN (SELECT id FROM escrow_transactions WHERE project_id = $1)`, projectID)
		pool.Exec(ctx2, `DELETE FROM escrow_transactions WHERE project_id = $1`, projectID)
		pool.Exec(ctx2, `DELETE FROM projects WHERE id = $1`, projectID)
		pool.Exec(ctx2, `DELETE FROM businesses WHERE id IN ($1, $2, $3)`, memberA, memberB, memberC)
	})

	svc := NewService(pool, NewRepository(pool), project.NewRepository(pool), payments.NewSimulated(0), nil)

	secured, err := svc.SecureFunds(ctx, SecureFundsParams{
		ProjectID:    projectID,
		Amount:       150000,
		PayerContact: "+254700000001",
	})
	if err != nil {
		t.Fatalf("secure funds: %v", err)
	}
	if secured.TransactionID == "" || secured.Reference == "" {
		t.Fatalf("incomplete result: %+v", secured)
	}

	// Round-trip: the reloaded transaction matches what was created.
	listed, err := svc.ListByProject(ctx, projectID)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected one transaction, got %d", len(listed))
	}
	txn := listed[0]
	if txn.ID != secured.TransactionID || txn.Amount != 150000 || txn.Status != StatusSecured {
		t.Fatalf("round-trip mismatch: %+v", txn)
	}
	if len(txn.Milestones) != 3 {
		t.Fatalf("expected 3 milestones, got %d", len(txn.Milestones))
	}
	for i, m := range txn.Milestones {
		if m.Amount != 50000 || m.Status != MilestonePending {
			t.Fatalf("milestone %d: %+v", i, m)
		}
	}

	var fundsStatus string
	if err := pool.QueryRow(ctx, `SELECT funds_status FROM projects WHERE id = $1`, projectID).Scan(&fundsStatus); err != nil {
		t.Fatalf("inspect project: %v", err)
	}
	if fundsStatus != "secured" {
		t.Fatalf("expected project funds secured, got %s", fundsStatus)
	}

	paid, err := svc.ConfirmMilestone(ctx, projectID, memberA)
	if err != nil {
		t.Fatalf("confirm milestone: %v", err)
	}
	if paid.PaymentAmount != 50000 || paid.PaymentReference == "" {
		t.Fatalf("unexpected confirmation result: %+v", paid)
	}

	// Double confirmation must fail and change nothing.
	if _, err := svc.ConfirmMilestone(ctx, projectID, memberA); !errors.Is(err, ErrMilestoneNotPending) {
		t.Fatalf("expected ErrMilestoneNotPending, got %v", err)
	}

	// Unknown member fails with NotFound and leaves milestones untouched.
	if _, err := svc.ConfirmMilestone(ctx, projectID, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrMilestoneNotFound) {
		t.Fatalf("expected ErrMilestoneNotFound, got %v", err)
	}

	listed, err = svc.ListByProject(ctx, projectID)
	if err != nil {
		t.Fatalf("relist transactions: %v", err)
	}
	var paidCount int
	for _, m := range listed[0].Milestones {
		if m.Status == MilestonePaid {
			paidCount++
			if m.PaidAt == nil || m.ConfirmedAt == nil || m.PaymentReference == nil {
				t.Fatalf("paid milestone missing stamps: %+v", m)
			}
		}
	}
	if paidCount != 1 {
		t.Fatalf("expected exactly one paid milestone, got %d", paidCount)
	}

	// Pay out the rest; the transaction must complete.
	if _, err := svc.ConfirmMilestone(ctx, projectID, memberB); err != nil {
		t.Fatalf("confirm second milestone: %v", err)
	}
	if _, err := svc.ConfirmMilestone(ctx, projectID, memberC); err != nil {
		t.Fatalf("confirm third milestone: %v", err)
	}

	var status string
	if err := pool.QueryRow(ctx, `SELECT status FROM escrow_transactions WHERE id = $1`, secured.TransactionID).Scan(&status); err != nil {
		t.Fatalf("inspect transaction: %v", err)
	}
	if status != "completed" {
		t.Fatalf("expected completed transaction, got %s", status)
	}
}

func tableExists(ctx context.Context, pool *pgxpool.Pool, name string) bool {
	var exists bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`, name).Scan(&exists); err != nil {
		return false
	}
	return exists
}
