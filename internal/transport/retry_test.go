package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicy_Delay_Exponential(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, ExponentialBackoff: true}

	cases := map[int]time.Duration{
		0: 100 * time.Millisecond,
		1: 200 * time.Millisecond,
		2: 400 * time.Millisecond,
		3: 800 * time.Millisecond,
		4: time.Second, // capped
	}
	for attempt, want := range cases {
		if got := p.delay(attempt); got != want {
			t.Errorf("delay(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestRetryPolicy_Delay_Flat(t *testing.T) {
	p := RetryPolicy{BaseDelay: 50 * time.Millisecond, ExponentialBackoff: false}
	for attempt := 0; attempt < 5; attempt++ {
		if got := p.delay(attempt); got != 50*time.Millisecond {
			t.Fatalf("delay(%d) = %v, want flat 50ms", attempt, got)
		}
	}
}

func TestRetry_SucceedsWithoutRetrying(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryPolicy{MaxRetries: 3}, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestRetry_ExhaustsRetriesAndReturnsLastError(t *testing.T) {
	calls := 0
	wantErr := errors.New("boom")
	err := Retry(context.Background(), RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected last error to propagate, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 1 initial + 2 retries = 3 calls, got %d", calls)
	}
}

func TestRetry_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := RetryPolicy{MaxRetries: 5, BaseDelay: 50 * time.Millisecond}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, policy, func(ctx context.Context) error {
		calls++
		return errors.New("always fails")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls > 2 {
		t.Fatalf("expected cancellation to cut retries short, got %d calls", calls)
	}
}

func TestRetry_OnRetryCalledWithAttemptNumber(t *testing.T) {
	var attempts []int
	policy := RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		OnRetry:    func(err error, attempt int) { attempts = append(attempts, attempt) },
	}
	Retry(context.Background(), policy, func(ctx context.Context) error {
		return errors.New("fail")
	})
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("expected OnRetry calls for attempts [1,2], got %v", attempts)
	}
}
