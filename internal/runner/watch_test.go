package runner

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestWatchRunsImmediatelyAndTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan struct{}, 8)

	done := make(chan struct{})
	go func() {
		defer close(done)
		Watch(ctx, 5*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)), func(context.Context) {
			calls <- struct{}{}
		})
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("call %d never happened", i)
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch loop did not stop on cancel")
	}
}

func TestWatchStopsWithoutTickOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	Watch(ctx, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)), func(context.Context) {
		calls++
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want exactly the immediate run", calls)
	}
}
