package payments

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSimulatedRequestHold(t *testing.T) {
	provider := NewSimulated(0)

	ref, err := provider.RequestHold(context.Background(), "+254700000001", 150000)
	if err != nil {
		t.Fatalf("request hold: %v", err)
	}
	if !strings.HasPrefix(ref, "HOLD-") {
		t.Fatalf("unexpected reference %q", ref)
	}

	other, err := provider.RequestHold(context.Background(), "+254700000001", 150000)
	if err != nil {
		t.Fatalf("second hold: %v", err)
	}
	if other == ref {
		t.Fatalf("expected unique references, got %q twice", ref)
	}
}

func TestSimulatedRejectsBadInput(t *testing.T) {
	provider := NewSimulated(0)

	if _, err := provider.RequestHold(context.Background(), "", 100); err == nil {
		t.Fatalf("expected error for empty contact")
	}
	if _, err := provider.RequestHold(context.Background(), "+254700000001", 0); err == nil {
		t.Fatalf("expected error for zero amount")
	}
	if _, err := provider.Disburse(context.Background(), "", 100); err == nil {
		t.Fatalf("expected error for empty member id")
	}
	if _, err := provider.Disburse(context.Background(), "m1", -5); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

func TestSimulatedHonoursCancellation(t *testing.T) {
	provider := NewSimulated(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := provider.Disburse(ctx, "m1", 100); err == nil {
		t.Fatalf("expected cancellation error")
	}
}
