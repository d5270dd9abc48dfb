package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"herbid/escrow"
	"herbid/payments"
	"herbid/project"
	"herbid/test/actors"
	"herbid/test/chaos"
	"herbid/test/infra"
	"herbid/test/oracles"
)

var (
	flDuration    = flag.Duration("duration", 90*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 8, "number of concurrent confirmers")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

func TestEscrowConcurrency(t *testing.T) {
	flag.Parse()
	seed := *flSeed
	rand.Seed(seed)

	var (
		pgC        *infra.PGContainer
		dsn        string
		err        error
		usedShared bool
	)
	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	switch {
	case *flDSN != "":
		dsn = *flDSN
		usedShared = true
		pgC = &infra.PGContainer{}
	case os.Getenv("STRESS_TEST_PG_DSN") != "":
		dsn = os.Getenv("STRESS_TEST_PG_DSN")
		usedShared = true
		pgC = &infra.PGContainer{}
	default:
		if dockerAvailable(ctx) {
			pgC, dsn, err = infra.StartPostgres16(ctx, "")
			if err != nil {
				t.Fatalf("start postgres: %v", err)
			}
		} else {
			dsn, err = infra.InitLocalDatabase(ctx)
			if err != nil {
				t.Fatalf("init local database: %v", err)
			}
			pgC = &infra.PGContainer{}
		}
	}
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, usedShared)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	seedData := mustSeed(t, ctx, pool)

	svc := escrow.NewService(pool, escrow.NewRepository(pool), project.NewRepository(pool), payments.NewSimulated(0), nil)

	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	// confirmers racing to pay the same milestones
	for i := 0; i < *flConcurrency; i++ {
		g.Go(func() error {
			return actors.Confirmer(ctx2, svc, seedData.projectID, seedData.team, stop)
		})
	}

	g.Go(func() error { return actors.Funder(ctx2, svc, seedData.projectID, stop) })
	g.Go(func() error { return actors.Reader(ctx2, svc, seedData.projectID, stop) })
	g.Go(func() error { return actors.OutboxWorker(ctx2, pool, stop) })
	go chaos.TerminateRandomBackend(ctx2, pool, stop)

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var failed bool
loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			name, row, err := oracles.Run(ctx2, pool)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break loop
				}
				t.Logf("oracle transient error: %v", err)
				continue
			}
			if name != "" {
				failed = true
				dumpRecent(t, ctx2, pool)
				t.Fatalf("Oracle %s failed. First row: %s (seed=%d)", name, row, seed)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !failed {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("actors errored: %v", err)
		}
	}
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

type seedIDs struct {
	projectID string
	team      []string
}

func mustSeed(t *testing.T, ctx context.Context, pool *pgxpool.Pool) seedIDs {
	t.Helper()
	var s seedIDs

	skills := []string{"Marketing", "Dev", "Finance"}
	for _, skill := range skills {
		var id string
		if err := pool.QueryRow(ctx, `INSERT INTO businesses (name, skills, location, reputation) VALUES ($1, ARRAY[$2], 'Nairobi', 0.8) RETURNING id`,
			fmt.Sprintf("%s Collective %d", skill, rand.Int63()), skill).Scan(&id); err != nil {
			t.Fatalf("seed business: %v", err)
		}
		s.team = append(s.team, id)
	}

	if err := pool.QueryRow(ctx, `
		INSERT INTO projects (title, required_skills, location, budget, assigned_team, funds_status)
		VALUES ($1, $2, 'Nairobi', 500000, $3::uuid[], 'pending')
		RETURNING id
	`, fmt.Sprintf("Stress Tender %d", rand.Int63()), skills, s.team).Scan(&s.projectID); err != nil {
		t.Fatalf("seed project: %v", err)
	}

	return s
}

func dumpRecent(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	type dump struct {
		name string
		sql  string
	}
	dumps := []dump{
		{"escrow_transactions", `SELECT id, project_id, amount, status, created_at FROM escrow_transactions ORDER BY created_at DESC LIMIT 50`},
		{"milestones", `SELECT id, transaction_id, team_member_id, amount, status, confirmed_at, paid_at FROM milestones ORDER BY id DESC LIMIT 50`},
		{"timeline_events", `SELECT id, project_id, type, created_at FROM timeline_events ORDER BY id DESC LIMIT 50`},
		{"outbox", `SELECT id, topic, status, attempts, created_at FROM outbox ORDER BY created_at DESC LIMIT 50`},
	}
	for _, d := range dumps {
		rows, err := pool.Query(ctx, d.sql)
		if err != nil {
			t.Logf("dump %s error: %v", d.name, err)
			continue
		}
		cols := rows.FieldDescriptions()
		t.Logf("-- %s --", d.name)
		for rows.Next() {
			vals, _ := rows.Values()
			buf := make([]any, 0, len(vals))
			for i := range vals {
				buf = append(buf, fmt.Sprintf("%s=%v", string(cols[i].Name), vals[i]))
			}
			t.Logf("%s", buf)
		}
		rows.Close()
	}
}
