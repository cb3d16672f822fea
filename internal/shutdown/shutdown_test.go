package shutdown

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"syscall"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_ReturnsRunnerResult(t *testing.T) {
	want := errors.New("boom")
	err := run(context.Background(), discardLogger(), time.Second, make(chan os.Signal), func(ctx context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestRun_SignalCancelsRunner(t *testing.T) {
	sigChan := make(chan os.Signal, 1)
	sigChan <- syscall.SIGTERM

	stopped := make(chan struct{})
	err := run(context.Background(), discardLogger(), time.Second, sigChan, func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	})
	if err != nil {
		t.Errorf("err = %v, want nil", err)
	}
	select {
	case <-stopped:
	default:
		t.Error("runner did not observe cancellation")
	}
}

func TestRun_ParentContextCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := run(ctx, discardLogger(), time.Second, make(chan os.Signal), func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	if err != nil {
		t.Errorf("err = %v, want nil", err)
	}
}

func TestRun_ErrorDuringShutdown(t *testing.T) {
	sigChan := make(chan os.Signal, 1)
	sigChan <- syscall.SIGINT
	want := errors.New("flush failed")

	err := run(context.Background(), discardLogger(), time.Second, sigChan, func(ctx context.Context) error {
		<-ctx.Done()
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestRun_Timeout(t *testing.T) {
	sigChan := make(chan os.Signal, 1)
	sigChan <- syscall.SIGTERM
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := run(context.Background(), discardLogger(), 50*time.Millisecond, sigChan, func(ctx context.Context) error {
		<-release
		return nil
	})
	if err != nil {
		t.Errorf("err = %v, want nil", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Run waited %v, want about the timeout", elapsed)
	}
}
