package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_no_overcommitted_transaction",
			SQL: `SELECT t.id, t.amount, SUM(m.amount) FROM escrow_transactions t
                  JOIN milestones m ON m.transaction_id = t.id
                  GROUP BY t.id, t.amount HAVING SUM(m.amount) > t.amount`,
		},
		{
			Name: "O2_paid_milestone_has_stamps",
			SQL: `SELECT id FROM milestones
                  WHERE status = 'paid'
                    AND (paid_at IS NULL OR confirmed_at IS NULL OR payment_reference IS NULL)`,
		},
		{
			Name: "O3_paid_never_precedes_confirmed",
			SQL: `SELECT id FROM milestones
                  WHERE paid_at IS NOT NULL AND confirmed_at IS NOT NULL
                    AND paid_at < confirmed_at`,
		},
		{
			Name: "O4_completed_means_all_paid",
			SQL: `SELECT t.id FROM escrow_transactions t
                  JOIN milestones m ON m.transaction_id = t.id
                  WHERE t.status = 'completed' AND m.status <> 'paid'`,
		},
		{
			Name: "O5_one_milestone_per_member",
			SQL: `SELECT transaction_id, team_member_id, COUNT(*) FROM milestones
                  GROUP BY transaction_id, team_member_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O6_secured_project_has_transaction",
			SQL: `SELECT p.id FROM projects p
                  WHERE p.funds_status = 'secured'
                    AND NOT EXISTS (SELECT 1 FROM escrow_transactions t WHERE t.project_id = p.id)`,
		},
		{
			Name: "O7_outbox_not_stuck",
			SQL: `SELECT id FROM outbox
                  WHERE status = 'pending' AND now() - created_at > interval '5 minutes'`,
		},
	}
}

// Run executes all oracles against the pool and returns the first failure
// (oracle name plus a sample row) or an empty name when every check passes.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
