package app

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/skiff/internal/orchestrator"
)

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 2 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second}, // Would be 32s, capped to 30s
		{"many failures capped", 10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, baseInterval)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, baseInterval, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	// Verify that backoff never exceeds maxBackoff regardless of input
	baseInterval := 2 * time.Second
	for failures := 0; failures <= 20; failures++ {
		got := calculateBackoff(failures, baseInterval)
		if got > maxBackoff {
			t.Errorf("calculateBackoff(%d, %v) = %v, exceeds maxBackoff %v", failures, baseInterval, got, maxBackoff)
		}
	}
}

type noticeSink struct {
	mu      sync.Mutex
	notices []string
}

func (s *noticeSink) Publish(e orchestrator.Event) {
	if n, ok := e.(orchestrator.Notice); ok {
		s.mu.Lock()
		s.notices = append(s.notices, n.Message)
		s.mu.Unlock()
	}
}

func (s *noticeSink) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.notices...)
}

func TestHealthPoller_OutageAndRecovery(t *testing.T) {
	// Fails on checks 2 and 3, healthy otherwise.
	var calls atomic.Int32
	status := func(context.Context) (map[string]any, error) {
		n := calls.Add(1)
		if n == 2 || n == 3 {
			return nil, errors.New("connection refused")
		}
		return map[string]any{"status": "ok"}, nil
	}

	sink := &noticeSink{}
	ctx, cancel := context.WithCancel(context.Background())
	done := StartHealthPoller(ctx, sink, status, time.Millisecond, zerolog.Nop())

	deadline := time.Now().Add(5 * time.Second)
	for len(sink.list()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	want := []string{"Metadata gateway not responding", "Metadata gateway is back"}
	if got := sink.list(); !reflect.DeepEqual(got, want) {
		t.Fatalf("notices = %v, want %v", got, want)
	}
}

func TestHealthPoller_SingleFailureIsQuiet(t *testing.T) {
	var calls atomic.Int32
	status := func(context.Context) (map[string]any, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("timeout")
		}
		return nil, nil
	}

	sink := &noticeSink{}
	ctx, cancel := context.WithCancel(context.Background())
	done := StartHealthPoller(ctx, sink, status, time.Millisecond, zerolog.Nop())

	deadline := time.Now().Add(5 * time.Second)
	for calls.Load() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if got := sink.list(); len(got) != 0 {
		t.Fatalf("notices = %v, want none", got)
	}
}
