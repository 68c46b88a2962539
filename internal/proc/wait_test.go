package proc

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

// assertFileContains fails the test unless the file at path contains want.
func assertFileContains(t *testing.T, path, want string) {
	t.Helper()

	data, err := os.ReadFile(path) //nolint:gosec // G304: test-controlled path
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if !strings.Contains(string(data), want) {
		t.Errorf("%s content = %q, want substring %q", path, data, want)
	}
}

func TestWaitReady(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("ready on first attempt", func(t *testing.T) {
		t.Parallel()

		err := WaitReady(ctx, WaitReadyConfig{
			Interval: time.Millisecond,
			Timeout:  time.Second,
			Name:     "instant",
		}, func(_ context.Context, _ int) (bool, error) {
			return true, nil
		})
		if err != nil {
			t.Fatalf("WaitReady() error: %v", err)
		}
	})

	t.Run("ready after several attempts", func(t *testing.T) {
		t.Parallel()

		err := WaitReady(ctx, WaitReadyConfig{
			Interval: time.Millisecond,
			Timeout:  time.Second,
			Name:     "slow",
		}, func(_ context.Context, attempt int) (bool, error) {
			return attempt >= 3, nil
		})
		if err != nil {
			t.Fatalf("WaitReady() error: %v", err)
		}
	})

	t.Run("never ready times out", func(t *testing.T) {
		t.Parallel()

		err := WaitReady(ctx, WaitReadyConfig{
			Interval: time.Millisecond,
			Timeout:  50 * time.Millisecond,
			Name:     "never",
		}, func(_ context.Context, _ int) (bool, error) {
			return false, nil
		})
		if err == nil {
			t.Fatal("expected timeout error, got nil")
		}
	})

	t.Run("fatal check error aborts polling", func(t *testing.T) {
		t.Parallel()

		fatal := errors.New("broken")
		err := WaitReady(ctx, WaitReadyConfig{
			Interval: time.Millisecond,
			Timeout:  time.Second,
			Name:     "fatal",
		}, func(_ context.Context, _ int) (bool, error) {
			return false, fatal
		})
		if !errors.Is(err, fatal) {
			t.Fatalf("error = %v, want wrapped %v", err, fatal)
		}
	})

	t.Run("process exit aborts polling", func(t *testing.T) {
		t.Parallel()

		exited := make(chan struct{})
		close(exited)

		err := WaitReady(ctx, WaitReadyConfig{
			Interval:      time.Millisecond,
			Timeout:       time.Second,
			Name:          "dead",
			ProcessExited: exited,
		}, func(_ context.Context, _ int) (bool, error) {
			return true, nil
		})
		if !errors.Is(err, ErrProcessExited) {
			t.Fatalf("error = %v, want ErrProcessExited", err)
		}
	})

	t.Run("config validation", func(t *testing.T) {
		t.Parallel()

		check := func(_ context.Context, _ int) (bool, error) { return true, nil }

		if err := WaitReady(ctx, WaitReadyConfig{Interval: 0, Timeout: time.Second, Name: "x"}, check); !errors.Is(err, ErrIntervalNotPositive) {
			t.Errorf("zero interval error = %v, want ErrIntervalNotPositive", err)
		}
		if err := WaitReady(ctx, WaitReadyConfig{Interval: time.Millisecond, Timeout: 0, Name: "x"}, check); !errors.Is(err, ErrTimeoutNotPositive) {
			t.Errorf("zero timeout error = %v, want ErrTimeoutNotPositive", err)
		}
		if err := WaitReady(ctx, WaitReadyConfig{Interval: time.Millisecond, Timeout: time.Second}, check); err == nil {
			t.Error("empty name: expected error, got nil")
		}
	})
}
