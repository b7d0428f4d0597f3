package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var errNetwork = errors.New("network error")

func TestRetry(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		failures  int
		retryable bool
		wantCalls int
		wantErr   bool
	}{
		{"success first try", 0, true, 1, false},
		{"retryable then success", 2, true, 3, false},
		{"non-retryable stops", 5, false, 1, true},
		{"retryable exhausts attempts", 5, true, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(ctx, Backoff{Attempts: 3, Delay: time.Millisecond}, func(attempt int) error {
				if attempt != calls {
					t.Errorf("attempt = %d, want %d", attempt, calls)
				}
				calls++
				if calls <= tt.failures {
					if tt.retryable {
						return &RetryableError{Err: errNetwork}
					}
					return errNetwork
				}
				return nil
			})
			if (err != nil) != tt.wantErr || calls != tt.wantCalls {
				t.Errorf("err=%v calls=%d; want err=%v calls=%d", err, calls, tt.wantErr, tt.wantCalls)
			}
			if err != nil && err != errNetwork {
				t.Errorf("Retry = %v, want the unwrapped cause", err)
			}
		})
	}
}

func TestRetryContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, Backoff{Attempts: 3, Delay: time.Millisecond}, func(int) error {
		return &RetryableError{Err: errNetwork}
	})
	if err != context.Canceled {
		t.Errorf("Retry = %v, want context.Canceled", err)
	}
}

func TestBackoffNext(t *testing.T) {
	b := Backoff{MaxDelay: time.Second}
	tests := []struct {
		name  string
		delay time.Duration
		err   error
		want  time.Duration
	}{
		{"plain", 100 * time.Millisecond, &RetryableError{Err: errNetwork}, 100 * time.Millisecond},
		{"retry-after", 100 * time.Millisecond, &RetryableError{Err: errNetwork, After: 500 * time.Millisecond}, 500 * time.Millisecond},
		{"capped", 4 * time.Second, &RetryableError{Err: errNetwork}, time.Second},
		{"capped retry-after", time.Millisecond, &RetryableError{Err: errNetwork, After: time.Minute}, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.next(tt.delay, tt.err); got != tt.want {
				t.Errorf("next = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryAfter(t *testing.T) {
	h := http.Header{}
	if RetryAfter(h) != 0 {
		t.Error("missing header")
	}
	h.Set("Retry-After", "3")
	if got := RetryAfter(h); got != 3*time.Second {
		t.Errorf("RetryAfter = %v", got)
	}
	h.Set("Retry-After", "Wed, 21 Oct 2015 07:28:00 GMT")
	if RetryAfter(h) != 0 {
		t.Error("HTTP dates are not supported")
	}
}

func TestNewClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	resp, err := NewClient(0).Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if IsRetryableStatus(http.StatusTeapot) || !IsRetryableStatus(http.StatusBadGateway) {
		t.Error("IsRetryableStatus")
	}
}
