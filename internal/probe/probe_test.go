package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kernelbox/kernelbox/pkg/errdefs"
)

func TestRun_SucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := Run(context.Background(), Config{Retries: 5, Interval: time.Millisecond}, "svc", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("not ready")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRun_ExhaustionIsConnectionError(t *testing.T) {
	err := Run(context.Background(), Config{Retries: 3, Interval: time.Millisecond}, "svc:1234", func(context.Context) error {
		return errors.New("still down")
	})
	if !errors.Is(err, errdefs.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	var ce *errdefs.ConnectionError
	if !errors.As(err, &ce) {
		t.Fatal("expected *errdefs.ConnectionError")
	}
	if ce.Attempts != 3 {
		t.Errorf("expected 3 attempts recorded, got %d", ce.Attempts)
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, Config{Retries: 10, Interval: time.Minute}, "svc", func(context.Context) error {
		return errors.New("not ready")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
