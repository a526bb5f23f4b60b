package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string   { return "status error" }
func (e statusErr) StatusCode() int { return int(e) }

func TestRetryPolicy_Attempts(t *testing.T) {
	tests := []struct {
		name   string
		policy RetryPolicy
		want   int
	}{
		{"zero value", RetryPolicy{}, 1},
		{"no retry", NoRetry(), 1},
		{"two retries", FixedDelay(2, time.Millisecond), 3},
		{"negative count", RetryPolicy{Count: -1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Attempts(); got != tt.want {
				t.Errorf("Attempts() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRetryPolicy_Retryable(t *testing.T) {
	p := RetryPolicy{Count: 2}
	tests := []struct {
		status, attempt int
		want            bool
	}{
		{500, 1, true},
		{503, 2, true},
		{599, 1, true},
		{503, 3, false},
		{404, 1, false},
		{400, 1, false},
		{200, 1, false},
		{600, 1, false},
		{0, 1, false},
	}
	for _, tt := range tests {
		if got := p.Retryable(tt.status, tt.attempt); got != tt.want {
			t.Errorf("Retryable(%d, %d) = %v, want %v", tt.status, tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicy_FixedBackoff(t *testing.T) {
	b := FixedDelay(3, 10*time.Millisecond).Backoff()
	for i := 0; i < 4; i++ {
		if d := b.NextBackOff(); d != 10*time.Millisecond {
			t.Errorf("delay %d = %v, want 10ms", i, d)
		}
	}
}

func TestRetryPolicy_ExponentialBackoff(t *testing.T) {
	p := RetryPolicy{
		Count:    5,
		Delay:    100 * time.Millisecond,
		Strategy: StrategyExponential,
		MaxDelay: 500 * time.Millisecond,
	}
	b := p.Backoff()
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond,
		500 * time.Millisecond,
	}
	for i, w := range want {
		if d := b.NextBackOff(); d != w {
			t.Errorf("delay %d = %v, want %v", i, d, w)
		}
	}
}

func TestWait_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Wait(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Wait did not return promptly after cancel")
	}
}

func TestWait_Elapses(t *testing.T) {
	if err := Wait(context.Background(), time.Millisecond); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	callCount := 0
	result, err := Retry(context.Background(), FixedDelay(2, time.Millisecond), func(int) (string, error) {
		callCount++
		return "success", nil
	})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "success" {
		t.Errorf("expected 'success', got %s", result)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetry_SucceedsAfterServerErrors(t *testing.T) {
	callCount := 0
	result, err := Retry(context.Background(), FixedDelay(2, time.Millisecond), func(attempt int) (string, error) {
		callCount++
		if attempt < 3 {
			return "", statusErr(503)
		}
		return "success", nil
	})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "success" {
		t.Errorf("expected 'success', got %s", result)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	callCount := 0
	_, err := Retry(context.Background(), FixedDelay(2, time.Millisecond), func(int) (string, error) {
		callCount++
		return "", statusErr(500)
	})
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
	if !errors.Is(err, ErrMaxAttemptsExceeded) {
		t.Fatalf("expected ErrMaxAttemptsExceeded, got %v", err)
	}
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected *ExhaustedError, got %T", err)
	}
	if ex.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", ex.Attempts)
	}
	if StatusOf(err) != 500 {
		t.Errorf("StatusOf = %d, want 500", StatusOf(err))
	}
}

func TestRetry_SingleAttemptReturnsRawError(t *testing.T) {
	_, err := Retry(context.Background(), NoRetry(), func(int) (string, error) {
		return "", statusErr(502)
	})
	if errors.Is(err, ErrMaxAttemptsExceeded) {
		t.Error("single attempt should not report exhaustion")
	}
	if StatusOf(err) != 502 {
		t.Errorf("StatusOf = %d, want 502", StatusOf(err))
	}
}

func TestRetry_NonRetryableStatus(t *testing.T) {
	for _, status := range []int{0, 400, 404, 422} {
		callCount := 0
		_, err := Retry(context.Background(), FixedDelay(3, time.Millisecond), func(int) (string, error) {
			callCount++
			return "", statusErr(status)
		})
		if callCount != 1 {
			t.Errorf("status %d: expected 1 call, got %d", status, callCount)
		}
		if StatusOf(err) != status {
			t.Errorf("status %d: got %v", status, err)
		}
	}
}

func TestRetry_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	callCount := 0
	_, err := Retry(ctx, FixedDelay(10, 100*time.Millisecond), func(int) (string, error) {
		callCount++
		return "", statusErr(500)
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetry_OnRetryCallback(t *testing.T) {
	var mu sync.Mutex
	var retries []int
	var delays []time.Duration

	p := FixedDelay(2, time.Millisecond)
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		retries = append(retries, attempt)
		delays = append(delays, delay)
	}

	_, _ = Retry(context.Background(), p, func(int) (string, error) {
		return "", statusErr(500)
	})

	mu.Lock()
	defer mu.Unlock()
	if len(retries) != 2 {
		t.Fatalf("expected 2 retry callbacks, got %d", len(retries))
	}
	if retries[0] != 1 || retries[1] != 2 {
		t.Errorf("unexpected retry attempts: %v", retries)
	}
	for _, d := range delays {
		if d != time.Millisecond {
			t.Errorf("expected 1ms delay, got %v", d)
		}
	}
}
