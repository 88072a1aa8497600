package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		return nil
	}, fastRetryConfig(), nil)

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, fastRetryConfig(), IsRetryableTranscriptionError)

	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	wantErr := errors.New("timeout")
	err := Retry(context.Background(), func() error {
		calls++
		return wantErr
	}, fastRetryConfig(), IsRetryableTranscriptionError)

	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the last error back, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	wantErr := errors.New("401 unauthorized")
	err := Retry(context.Background(), func() error {
		calls++
		return wantErr
	}, fastRetryConfig(), IsRetryableTranscriptionError)

	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the error back, got %v", err)
	}
	if calls != 1 {
		t.Errorf("non-retryable error must not be retried, got %d calls", calls)
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, func() error {
		calls++
		cancel()
		return errors.New("timeout")
	}, fastRetryConfig(), IsRetryableTranscriptionError)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestRetryNilConfigUsesDefaults(t *testing.T) {
	err := Retry(context.Background(), func() error { return nil }, nil, nil)
	if err != nil {
		t.Errorf("expected success with default config, got %v", err)
	}
}

func TestIsRetryableTranscriptionError(t *testing.T) {
	cases := []struct {
		err       error
		retryable bool
	}{
		{nil, false},
		{errors.New("connection refused"), true},
		{errors.New("read tcp: connection reset by peer"), true},
		{errors.New("context deadline exceeded (timeout)"), true},
		{fmt.Errorf("upstream returned 503"), true},
		{fmt.Errorf("upstream returned 429"), true},
		{errors.New("401 unauthorized"), false},
		{errors.New("invalid audio payload"), false},
	}

	for _, tc := range cases {
		if got := IsRetryableTranscriptionError(tc.err); got != tc.retryable {
			t.Errorf("IsRetryableTranscriptionError(%v) = %v, want %v", tc.err, got, tc.retryable)
		}
	}
}
