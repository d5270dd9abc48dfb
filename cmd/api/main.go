package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"herbid/business"
	"herbid/db"
	"herbid/escrow"
	"herbid/matchmaker"
	"herbid/payments"
	"herbid/project"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal("bootstrap database pool", zap.Error(err))
	}
	defer pool.Close()

	provider := payments.NewSimulated(paymentDelay())

	businessRepo := business.NewRepository(pool)
	projectRepo := project.NewRepository(pool)
	escrowRepo := escrow.NewRepository(pool)

	businessSvc := business.NewService(businessRepo)
	projectSvc := project.NewService(projectRepo)
	matchSvc := matchmaker.NewService(businessSvc, projectSvc)
	escrowSvc := escrow.NewService(pool, escrowRepo, projectRepo, provider, log)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	server := NewServer(businessSvc, projectSvc, matchSvc, escrowSvc, log)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
	log.Info("shutdown complete")
}

func paymentDelay() time.Duration {
	raw := os.Getenv("PAYMENT_DELAY_MS")
	if raw == "" {
		return 500 * time.Millisecond
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}
