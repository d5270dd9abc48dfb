package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"herbid/escrow"
)

// Confirmer hammers ConfirmMilestone for random team members. Under
// contention most calls lose the race with ErrMilestoneNotPending; that and
// transient database failures injected by chaos are expected, the invariant
// checks live in the oracles.
func Confirmer(ctx context.Context, svc *escrow.Service, projectID string, team []string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		member := team[rand.Intn(len(team))]
		_, err := svc.ConfirmMilestone(ctx, projectID, member)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Funder periodically secures a fresh round of funds for the project,
// creating a new transaction with pending milestones for the confirmers to
// fight over.
func Funder(ctx context.Context, svc *escrow.Service, projectID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		amount := int64(30000 + rand.Intn(120000))
		_, err := svc.SecureFunds(ctx, escrow.SecureFundsParams{
			ProjectID:    projectID,
			Amount:       amount,
			PayerContact: fmt.Sprintf("+2547%08d", rand.Intn(100000000)),
		})
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		time.Sleep(time.Duration(400+rand.Intn(600)) * time.Millisecond)
	}
}

// Reader continuously loads the project's transactions, the way the list
// endpoint does. The one check it owns is purely in-memory: milestone totals
// must never exceed the transaction they belong to.
func Reader(ctx context.Context, svc *escrow.Service, projectID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		txns, err := svc.ListByProject(ctx, projectID)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		for _, txn := range txns {
			var sum int64
			for _, m := range txn.Milestones {
				sum += m.Amount
			}
			if sum > txn.Amount {
				return fmt.Errorf("reader: milestone sum %d exceeds transaction amount %d", sum, txn.Amount)
			}
		}
		time.Sleep(time.Duration(25+rand.Intn(50)) * time.Millisecond)
	}
}

// OutboxWorker drains pending outbox messages with SKIP LOCKED, randomly
// failing some to exercise the retry counter.
func OutboxWorker(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}
		rows, err := tx.Query(ctx, `SELECT id FROM outbox WHERE status='pending' ORDER BY created_at FOR UPDATE SKIP LOCKED LIMIT 10`)
		if err != nil {
			_ = tx.Rollback(ctx)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		ids := make([]string, 0, 10)
		for rows.Next() {
			var id string
			_ = rows.Scan(&id)
			ids = append(ids, id)
		}
		rows.Close()
		for _, id := range ids {
			if rand.Intn(10) == 0 {
				_, _ = tx.Exec(ctx, `UPDATE outbox SET attempts=attempts+1 WHERE id=$1`, id)
				continue
			}
			_, _ = tx.Exec(ctx, `UPDATE outbox SET status='processed' WHERE id=$1`, id)
		}
		_ = tx.Commit(ctx)
		time.Sleep(100 * time.Millisecond)
	}
}
