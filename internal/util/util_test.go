package util

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestRetrySucceedsAfterTransientErrors(t *testing.T) {
	var seen []int
	err := Retry(context.Background(), Backoff{Attempts: 5}, func(attempt int) error {
		seen = append(seen, attempt)
		if attempt < 3 {
			return errors.New("transient error")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Errorf("attempts = %v, want [1 2 3]", seen)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	last := errors.New("persistent error")
	err := Retry(context.Background(), Backoff{Attempts: 3}, func(int) error {
		attempts++
		return last
	})
	if !errors.Is(err, last) {
		t.Fatalf("Retry = %v, want %v", err, last)
	}
	if attempts != 3 {
		t.Errorf("Retry called fn %d times, want 3", attempts)
	}
}

func TestRetryZeroAttemptsCallsOnce(t *testing.T) {
	attempts := 0
	_ = Retry(context.Background(), Backoff{}, func(int) error {
		attempts++
		return errors.New("fail")
	})
	if attempts != 1 {
		t.Errorf("Retry called fn %d times, want 1", attempts)
	}
}

func TestRetryPermanentStops(t *testing.T) {
	attempts := 0
	cause := errors.New("bad request")
	err := Retry(context.Background(), Backoff{Attempts: 5}, func(int) error {
		attempts++
		return Permanent(cause)
	})
	if err != cause {
		t.Errorf("Retry = %v, want the unwrapped cause", err)
	}
	if attempts != 1 {
		t.Errorf("Retry called fn %d times, want 1", attempts)
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) != nil")
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Retry(ctx, Backoff{Attempts: 5, Base: time.Hour}, func(int) error {
		attempts++
		cancel()
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("Retry called fn %d times after cancel, want 1", attempts)
	}
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 5 * time.Second}
	for retry, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second} {
		if got := b.delay(retry); got != want {
			t.Errorf("delay(%d) = %v, want %v", retry, got, want)
		}
	}
	if got := (Backoff{Base: time.Second}).delay(4); got != 16*time.Second {
		t.Errorf("uncapped delay(4) = %v, want 16s", got)
	}
}

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(60, 3)
	now := time.Unix(1000, 0)
	rl.last, rl.now = now, func() time.Time { return now }

	for i := range 3 {
		if d := rl.reserve(); d != 0 {
			t.Fatalf("token %d: wait %v, want 0", i, d)
		}
	}
	if d := rl.reserve(); d != time.Second {
		t.Errorf("fourth token wait = %v, want 1s", d)
	}

	now = now.Add(2 * time.Second)
	if d := rl.reserve(); d != 0 {
		t.Errorf("after refill wait = %v, want 0", d)
	}
}

func TestRateLimiterFirstTokenImmediate(t *testing.T) {
	rl := NewRateLimiter(60, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = rl.Wait(ctx) // consumes the initial token
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second Wait = %v, want DeadlineExceeded", err)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
	} {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerTo(&buf, "info", "json").Info("hello", "k", 1)
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("json output = %q", buf.String())
	}

	buf.Reset()
	NewLoggerTo(&buf, "info", "text").Info("hello", "k", 1)
	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "k=1") {
		t.Errorf("text output = %q", buf.String())
	}

	buf.Reset()
	NewLoggerTo(&buf, "warn", "json").Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info line logged at warn level: %q", buf.String())
	}
}
