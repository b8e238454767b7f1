package util

import (
	"context"
	"errors"
	"testing"
)

func TestRetryWithContext(t *testing.T) {
	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		got, err := RetryWithContext(context.Background(), 3, func(ctx context.Context) (int, error) {
			calls++
			return 42, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 42 || calls != 1 {
			t.Errorf("got %d after %d calls, want 42 after 1", got, calls)
		}
	})

	t.Run("retries ordinary errors", func(t *testing.T) {
		calls := 0
		got, err := RetryWithContext(context.Background(), 3, func(ctx context.Context) (int, error) {
			calls++
			if calls < 2 {
				return 0, errors.New("transient")
			}
			return 7, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 7 || calls != 2 {
			t.Errorf("got %d after %d calls, want 7 after 2", got, calls)
		}
	})

	t.Run("exhausts retries", func(t *testing.T) {
		wantErr := errors.New("permanent")
		calls := 0
		_, err := RetryWithContext(context.Background(), 3, func(ctx context.Context) (int, error) {
			calls++
			return 0, wantErr
		})
		if !errors.Is(err, wantErr) {
			t.Errorf("expected %v, got %v", wantErr, err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("non-positive tries defaults to one", func(t *testing.T) {
		calls := 0
		_, _ = RetryWithContext(context.Background(), 0, func(ctx context.Context) (int, error) {
			calls++
			return 0, errors.New("fail")
		})
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("canceled context stops immediately", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		_, err := RetryWithContext(ctx, 3, func(ctx context.Context) (int, error) {
			calls++
			return 0, errors.New("should not run")
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if calls != 0 {
			t.Errorf("expected 0 calls, got %d", calls)
		}
	})

	t.Run("does not retry context errors", func(t *testing.T) {
		calls := 0
		_, err := RetryWithContext(context.Background(), 3, func(ctx context.Context) (int, error) {
			calls++
			return 0, context.DeadlineExceeded
		})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected DeadlineExceeded, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})
}
