package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

// recordSleep captures requested backoff delays instead of sleeping.
func recordSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	var delays []time.Duration
	cfg := Config{Attempts: 3, BaseDelay: time.Second, Retryable: func(error) bool { return true }, Sleep: recordSleep(&delays)}

	calls := 0
	got, err := Do(context.Background(), cfg, func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("Do = (%q, %v)", got, err)
	}
	if calls != 1 || len(delays) != 0 {
		t.Errorf("calls = %d, delays = %v", calls, delays)
	}
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	var delays []time.Duration
	cfg := Config{Attempts: 3, BaseDelay: time.Second, Retryable: func(err error) bool { return errors.Is(err, errTransient) }, Sleep: recordSleep(&delays)}

	calls := 0
	got, err := Do(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("Do = (%d, %v)", got, err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	// Exponential schedule: 1s*2^0 then 1s*2^1, each plus sub-second jitter.
	if len(delays) != 2 {
		t.Fatalf("delays = %v", delays)
	}
	if delays[0] < time.Second || delays[0] >= 2*time.Second {
		t.Errorf("first delay %v outside [1s, 2s)", delays[0])
	}
	if delays[1] < 2*time.Second || delays[1] >= 3*time.Second {
		t.Errorf("second delay %v outside [2s, 3s)", delays[1])
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var delays []time.Duration
	cfg := Config{Attempts: 3, BaseDelay: time.Millisecond, Retryable: func(error) bool { return true }, Sleep: recordSleep(&delays)}

	calls := 0
	_, err := Do(context.Background(), cfg, func(context.Context) (string, error) {
		calls++
		return "", errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("err = %v", err)
	}
	if calls != 3 || len(delays) != 2 {
		t.Errorf("calls = %d, delays = %d", calls, len(delays))
	}
}

func TestDo_NonRetryableFailsFast(t *testing.T) {
	fatal := errors.New("bad request")
	cfg := Config{Attempts: 5, BaseDelay: time.Millisecond, Retryable: func(err error) bool { return errors.Is(err, errTransient) }}

	calls := 0
	_, err := Do(context.Background(), cfg, func(context.Context) (string, error) {
		calls++
		return "", fatal
	})
	if !errors.Is(err, fatal) || calls != 1 {
		t.Fatalf("err = %v, calls = %d", err, calls)
	}
}

func TestDo_ContextCanceledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		Attempts:  3,
		BaseDelay: time.Millisecond,
		Retryable: func(error) bool { return true },
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	_, err := Do(ctx, cfg, func(context.Context) (string, error) {
		return "", errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestDo_ZeroAttemptsStillRunsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Config{}, func(context.Context) (string, error) {
		calls++
		return "", errTransient
	})
	if calls != 1 || err == nil {
		t.Fatalf("calls = %d, err = %v", calls, err)
	}
}
