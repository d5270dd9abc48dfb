package escrow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Timeline event types and outbox topics emitted by the tracker.
const (
	EventFundsSecured      = "FUNDS_SECURED"
	EventMilestonePaid     = "MILESTONE_PAID"
	TopicFundsSecured      = "escrow.funds_secured"
	TopicMilestonePaid     = "escrow.milestone_paid"
	TopicTransactionClosed = "escrow.transaction_completed"
)

func insertTimelineEvent(ctx context.Context, tx pgx.Tx, projectID string, eventType string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("escrow: marshal timeline payload: %w", err)
	}
	const q = `
		INSERT INTO timeline_events (project_id, type, payload)
		VALUES ($1, $2, $3::jsonb)
	`
	if _, err := tx.Exec(ctx, q, projectID, eventType, body); err != nil {
		return fmt.Errorf("escrow: insert timeline event: %w", err)
	}
	return nil
}

func enqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("escrow: marshal outbox payload: %w", err)
	}
	const q = `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`
	if _, err := tx.Exec(ctx, q, topic, body); err != nil {
		return fmt.Errorf("escrow: enqueue outbox: %w", err)
	}
	return nil
}
