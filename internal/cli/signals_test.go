package cli

import (
	"context"
	"testing"
	"time"
)

func TestSignalHandlerCancelsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewSignalHandler(cancel)
	h.StartWithNotify(false)
	defer h.Stop()

	called := make(chan struct{})
	h.OnShutdown(func() { close(called) })

	// Inject a signal directly, bypassing the OS
	h.signals <- nil

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled after signal")
	}

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("shutdown callback did not run")
	}

	select {
	case <-h.shutdown:
	case <-time.After(time.Second):
		t.Fatal("Wait channel was not closed")
	}
}

func TestSignalHandlerStopWithoutSignal(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewSignalHandler(cancel)
	h.StartWithNotify(false)
	h.Stop()

	select {
	case <-h.done:
	case <-time.After(time.Second):
		t.Fatal("handler goroutine did not exit after Stop")
	}
}

func TestSignalHandlerStopIsIdempotent(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewSignalHandler(cancel)
	h.StartWithNotify(false)
	h.Stop()
	h.Stop()
}
