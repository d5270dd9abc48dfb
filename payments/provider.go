package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Provider is the seam towards an external mobile-money processor. RequestHold
// charges the payer and parks the funds; Disburse pays a team member out of
// the held amount. A production implementation is expected to be idempotent
// per reference; the escrow service treats references as opaque.
type Provider interface {
	RequestHold(ctx context.Context, payerContact string, amount int64) (string, error)
	Disburse(ctx context.Context, memberID string, amount int64) (string, error)
}

// Simulated stands in for the real processor. It sleeps for a fixed delay to
// mimic processing latency, honouring context cancellation, and fabricates
// unique references.
type Simulated struct {
	Delay time.Duration
}

func NewSimulated(delay time.Duration) *Simulated {
	return &Simulated{Delay: delay}
}

func (s *Simulated) RequestHold(ctx context.Context, payerContact string, amount int64) (string, error) {
	if payerContact == "" {
		return "", fmt.Errorf("payments: payer contact required")
	}
	if amount <= 0 {
		return "", fmt.Errorf("payments: invalid hold amount %d", amount)
	}
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	return "HOLD-" + shortRef(), nil
}

func (s *Simulated) Disburse(ctx context.Context, memberID string, amount int64) (string, error) {
	if memberID == "" {
		return "", fmt.Errorf("payments: member id required")
	}
	if amount <= 0 {
		return "", fmt.Errorf("payments: invalid disbursement amount %d", amount)
	}
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	return "PAY-" + shortRef(), nil
}

func (s *Simulated) wait(ctx context.Context) error {
	if s.Delay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("payments: processing interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func shortRef() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}
