package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoStopsAfterMaxRetries(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := Do(context.Background(), Policy{MaxRetries: 2}, func(context.Context) (int, error) {
		calls++
		return 0, boom
	}, nil)
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if err != boom {
		t.Fatalf("expected original error, got %v", err)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	type retryCall struct {
		attempt int
		delay   time.Duration
	}
	var retries []retryCall
	calls := 0
	got, err := Do(context.Background(), Policy{MaxRetries: 3, BaseDelay: time.Millisecond}, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("rate limited")
		}
		return "ok", nil
	}, func(attempt int, err error, delay time.Duration) {
		retries = append(retries, retryCall{attempt, delay})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Fatalf("unexpected result %q", got)
	}
	if len(retries) != 1 || retries[0].attempt != 1 || retries[0].delay != 2*time.Millisecond {
		t.Fatalf("unexpected retry callbacks: %+v", retries)
	}
}

func TestDoZeroRetries(t *testing.T) {
	calls := 0
	retried := false
	_, err := Do(context.Background(), Policy{}, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("nope")
	}, func(int, error, time.Duration) { retried = true })
	if err == nil || calls != 1 || retried {
		t.Fatalf("calls=%d retried=%v err=%v", calls, retried, err)
	}
}

func TestDoReturnsLastErrorWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	boom := errors.New("boom")
	calls := 0
	_, err := Do(ctx, Policy{MaxRetries: 5, BaseDelay: time.Hour}, func(context.Context) (int, error) {
		calls++
		return 0, boom
	}, func(int, error, time.Duration) { cancel() })
	if err != boom || calls != 1 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{BaseDelay: time.Second}
	want := []time.Duration{0, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for attempt, w := range want {
		if got := p.Delay(attempt); got != w {
			t.Fatalf("Delay(%d) = %v, want %v", attempt, got, w)
		}
	}
}
