package resilience

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

var errTest = errors.New("service unavailable")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBreaker(now *time.Time) *Breaker {
	return NewBreaker(Settings{
		Window:                time.Minute,
		MinVolume:             4,
		ErrorThresholdPercent: 50,
		ResetTimeout:          30 * time.Second,
		Now:                   func() time.Time { return *now },
	})
}

func TestClosedStateAllowsCalls(t *testing.T) {
	now := time.Now()
	b := newTestBreaker(&now)

	called := false
	_, err := Execute(context.Background(), b, func(ctx context.Context) (string, error) {
		called = true
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !called {
		t.Fatal("expected fn to be called")
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed, got %s", b.State())
	}
}

func TestOpensAtErrorRateThreshold(t *testing.T) {
	now := time.Now()
	b := newTestBreaker(&now)

	// 2 successes + 2 failures = 50% error rate over 4 calls.
	for i := 0; i < 2; i++ {
		_, _ = Execute(context.Background(), b, func(ctx context.Context) (int, error) { return 0, nil })
	}
	for i := 0; i < 2; i++ {
		_, _ = Execute(context.Background(), b, func(ctx context.Context) (int, error) { return 0, errTest })
	}

	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	called := false
	_, err := Execute(context.Background(), b, func(ctx context.Context) (int, error) {
		called = true
		return 0, nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Fatal("expected fn not to be called while open")
	}
}

func TestStaysClosedBelowMinVolume(t *testing.T) {
	now := time.Now()
	b := newTestBreaker(&now)

	// 3 straight failures, but MinVolume is 4.
	for i := 0; i < 3; i++ {
		_, _ = Execute(context.Background(), b, func(ctx context.Context) (int, error) { return 0, errTest })
	}

	if b.State() != StateClosed {
		t.Fatalf("expected closed below min volume, got %s", b.State())
	}
}

func TestOldOutcomesFallOutOfWindow(t *testing.T) {
	now := time.Now()
	b := newTestBreaker(&now)

	for i := 0; i < 3; i++ {
		_, _ = Execute(context.Background(), b, func(ctx context.Context) (int, error) { return 0, errTest })
	}
	now = now.Add(2 * time.Minute)

	// One more failure is the only call left in the window; no trip.
	_, _ = Execute(context.Background(), b, func(ctx context.Context) (int, error) { return 0, errTest })
	if b.State() != StateClosed {
		t.Fatalf("expected closed after window rolled, got %s", b.State())
	}
}

func tripBreaker(b *Breaker) {
	for i := 0; i < 4; i++ {
		_, _ = Execute(context.Background(), b, func(ctx context.Context) (int, error) { return 0, errTest })
	}
}

func TestHalfOpenProbeClosesOnSuccess(t *testing.T) {
	now := time.Now()
	b := newTestBreaker(&now)
	tripBreaker(b)

	// Still open before the reset timeout.
	if _, err := Execute(context.Background(), b, func(ctx context.Context) (int, error) { return 0, nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}

	now = now.Add(time.Minute)

	called := false
	_, err := Execute(context.Background(), b, func(ctx context.Context) (int, error) {
		called = true
		return 42, nil
	})
	if err != nil {
		t.Fatalf("expected no error in half-open, got %v", err)
	}
	if !called {
		t.Fatal("expected probe to run")
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %s", b.State())
	}
}

func TestHalfOpenProbeReopensOnFailure(t *testing.T) {
	now := time.Now()
	b := newTestBreaker(&now)
	tripBreaker(b)

	now = now.Add(time.Minute)

	_, err := Execute(context.Background(), b, func(ctx context.Context) (int, error) { return 0, errTest })
	if !errors.Is(err, errTest) {
		t.Fatalf("expected probe error, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected reopened after failed probe, got %s", b.State())
	}

	// Back to failing fast.
	if _, err := Execute(context.Background(), b, func(ctx context.Context) (int, error) { return 0, nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen after reopen, got %v", err)
	}
}

func TestHalfOpenAdmitsSingleProbe(t *testing.T) {
	now := time.Now()
	b := newTestBreaker(&now)
	tripBreaker(b)

	now = now.Add(time.Minute)

	if !b.Allow() {
		t.Fatal("expected first probe to be admitted")
	}
	if b.Allow() {
		t.Fatal("expected second probe to be rejected while first is in flight")
	}
	b.Record(false)
	if b.State() != StateClosed {
		t.Fatalf("expected closed after probe success, got %s", b.State())
	}
}

func TestCallTimeoutCountsAsFailure(t *testing.T) {
	b := NewBreaker(Settings{
		Window:                time.Minute,
		MinVolume:             1,
		ErrorThresholdPercent: 100,
		ResetTimeout:          30 * time.Second,
		CallTimeout:           10 * time.Millisecond,
	})

	_, err := Execute(context.Background(), b, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open after timed-out call, got %s", b.State())
	}
}

func TestCallerCancellationLeavesWindowUntouched(t *testing.T) {
	b := NewBreaker(Settings{
		Window:                time.Minute,
		MinVolume:             1,
		ErrorThresholdPercent: 100,
		ResetTimeout:          30 * time.Second,
		CallTimeout:           time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	_, err := Execute(ctx, b, func(ctx context.Context) (int, error) {
		cancel()
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("abandoned call recorded as failure, state %s", b.State())
	}

	// A genuine failure afterwards must still count.
	_, err = Execute(context.Background(), b, func(ctx context.Context) (int, error) {
		return 0, errTest
	})
	if !errors.Is(err, errTest) {
		t.Fatalf("expected errTest, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open after real failure, got %s", b.State())
	}
}

func TestExecuteWithFallback(t *testing.T) {
	now := time.Now()
	b := newTestBreaker(&now)
	tripBreaker(b)

	got := ExecuteWithFallback(context.Background(), b, testLogger(), "fetch tags",
		func(ctx context.Context) ([]string, error) { return nil, errTest },
		[]string{"fallback"},
	)
	if len(got) != 1 || got[0] != "fallback" {
		t.Fatalf("expected fallback value, got %v", got)
	}
}
