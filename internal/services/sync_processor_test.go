package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type reconcileFunc func(context.Context) error

func (f reconcileFunc) Reconcile(ctx context.Context) error { return f(ctx) }

func TestSyncProcessor_Lifecycle(t *testing.T) {
	var calls atomic.Int32
	target := reconcileFunc(func(context.Context) error {
		calls.Add(1)
		return errors.New("sheet unavailable")
	})

	p := NewSyncProcessor(target, SyncProcessorConfig{Interval: 10 * time.Millisecond}, nil)
	ctx := context.Background()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Fatal("second Start() should fail")
	}
	if !p.IsRunning() {
		t.Fatal("processor should be running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if calls.Load() < 3 {
		t.Fatalf("expected repeated runs despite errors, got %d", calls.Load())
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if p.IsRunning() {
		t.Fatal("processor should be stopped")
	}
	if p.Runs() < 3 {
		t.Fatalf("Runs() = %d, want >= 3", p.Runs())
	}
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() on a stopped processor error = %v", err)
	}
}

func TestSyncProcessor_Defaults(t *testing.T) {
	p := NewSyncProcessor(reconcileFunc(func(context.Context) error { return nil }), SyncProcessorConfig{}, nil)
	if p.config != DefaultSyncProcessorConfig() {
		t.Fatalf("expected defaults, got %+v", p.config)
	}
}
