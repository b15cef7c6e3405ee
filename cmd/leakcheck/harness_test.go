package main

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/wippyai/nativeguard/leak"
	"github.com/wippyai/nativeguard/native"
)

func newTestHarness(t *testing.T) *harness {
	t.Helper()
	h, err := newHarness(native.KindGo, leak.Config{Name: "Context", Max: 8})
	if err != nil {
		t.Fatalf("newHarness: %v", err)
	}
	t.Cleanup(func() { h.close() })
	return h
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"leak", "close", "dbl"} {
		if _, err := parseMode(s); err != nil {
			t.Errorf("parseMode(%q): %v", s, err)
		}
	}
	if _, err := parseMode("twice"); err == nil {
		t.Error("parseMode should reject unknown modes")
	}
}

func TestHarness_Close(t *testing.T) {
	for _, m := range []mode{modeClose, modeDbl} {
		t.Run(string(m), func(t *testing.T) {
			h := newTestHarness(t)
			if err := h.run(context.Background(), m, 4, 50); err != nil {
				t.Fatalf("run: %v", err)
			}

			s := h.stats()
			if s.Iterations != 200 || s.Failures != 0 {
				t.Fatalf("iterations = %d, failures = %d", s.Iterations, s.Failures)
			}
			if s.Live != 0 || s.Open != 0 {
				t.Fatalf("live = %d, open = %d, want 0", s.Live, s.Open)
			}
			if s.Closed != 200 || s.Lost != 0 {
				t.Fatalf("closed = %d, lost = %d", s.Closed, s.Lost)
			}
			if s.HeapAllocs != 200 || s.HeapFrees != 200 {
				t.Fatalf("heap allocs = %d, frees = %d", s.HeapAllocs, s.HeapFrees)
			}
		})
	}
}

func TestHarness_Leak(t *testing.T) {
	h := newTestHarness(t)
	if err := h.run(context.Background(), modeLeak, 4, 25); err != nil {
		t.Fatalf("run: %v", err)
	}
	h.collect(5 * time.Second)

	s := h.stats()
	if s.Failures != 0 {
		t.Fatalf("failures = %d", s.Failures)
	}
	if s.Closed != 0 {
		t.Fatalf("closed = %d, want 0", s.Closed)
	}
	// The collector may still be finishing a release; wait for the counts to settle.
	deadline := time.Now().Add(5 * time.Second)
	for s.Lost != 100 && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
		s = h.stats()
	}
	if s.Lost != 100 || s.Open != 0 {
		t.Fatalf("lost = %d, open = %d, want every context collected as lost", s.Lost, s.Open)
	}
	if s.Live != 0 {
		t.Fatalf("arena still holds %d handles after collection", s.Live)
	}
	if s.HeapAllocs != 100 || s.HeapFrees != 100 {
		t.Fatalf("heap allocs = %d, frees = %d", s.HeapAllocs, s.HeapFrees)
	}
}

func TestHarness_Canceled(t *testing.T) {
	h := newTestHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.run(ctx, modeClose, 2, 10); err == nil {
		t.Fatal("run should stop on a canceled context")
	}
}
