package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	p := Default()

	if p.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", p.MaxAttempts)
	}
	if p.InitialDelay != 500*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 500ms", p.InitialDelay)
	}
	if p.MaxDelay != 5*time.Second {
		t.Errorf("MaxDelay = %v, want 5s", p.MaxDelay)
	}
	if p.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2.0", p.Multiplier)
	}
	if p.Jitter != 0.1 {
		t.Errorf("Jitter = %v, want 0.1", p.Jitter)
	}
}

func TestNoRetry(t *testing.T) {
	p := NoRetry()

	if p.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", p.MaxAttempts)
	}
	if p.InitialDelay != 0 {
		t.Errorf("InitialDelay = %v, want 0", p.InitialDelay)
	}
	if p.ShouldRetry(1, errors.New("boom")) {
		t.Error("ShouldRetry(1) = true, want false for NoRetry")
	}
}

func TestNextDelay(t *testing.T) {
	tests := []struct {
		name    string
		policy  *Policy
		attempt int
		wantMin time.Duration
		wantMax time.Duration
	}{
		{
			name: "attempt 0 returns 0",
			policy: &Policy{
				MaxAttempts:  3,
				InitialDelay: 1 * time.Second,
				Multiplier:   2.0,
				Jitter:       0,
			},
			attempt: 0,
			wantMin: 0,
			wantMax: 0,
		},
		{
			name: "attempt 1 returns initial delay",
			policy: &Policy{
				MaxAttempts:  3,
				InitialDelay: 1 * time.Second,
				Multiplier:   2.0,
				Jitter:       0,
			},
			attempt: 1,
			wantMin: 1 * time.Second,
			wantMax: 1 * time.Second,
		},
		{
			name: "attempt 2 applies multiplier",
			policy: &Policy{
				MaxAttempts:  3,
				InitialDelay: 1 * time.Second,
				Multiplier:   2.0,
				Jitter:       0,
			},
			attempt: 2,
			wantMin: 2 * time.Second,
			wantMax: 2 * time.Second,
		},
		{
			name: "delay capped at max",
			policy: &Policy{
				MaxAttempts:  10,
				InitialDelay: 1 * time.Second,
				MaxDelay:     4 * time.Second,
				Multiplier:   2.0,
				Jitter:       0,
			},
			attempt: 5,
			wantMin: 4 * time.Second,
			wantMax: 4 * time.Second,
		},
		{
			name: "jitter stays within bounds",
			policy: &Policy{
				MaxAttempts:  3,
				InitialDelay: 1 * time.Second,
				Multiplier:   2.0,
				Jitter:       0.1,
			},
			attempt: 1,
			wantMin: 900 * time.Millisecond,
			wantMax: 1100 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.policy.NextDelay(tt.attempt)
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("NextDelay(%d) = %v, want in [%v, %v]", tt.attempt, got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	p := &Policy{MaxAttempts: 3}

	tests := []struct {
		attempt int
		want    bool
	}{
		{attempt: 1, want: true},
		{attempt: 2, want: true},
		{attempt: 3, want: false},
		{attempt: 4, want: false},
	}

	for _, tt := range tests {
		if got := p.ShouldRetry(tt.attempt, errors.New("boom")); got != tt.want {
			t.Errorf("ShouldRetry(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestSleep(t *testing.T) {
	t.Run("zero delay returns immediately", func(t *testing.T) {
		p := NoRetry()
		if err := p.Sleep(context.Background(), 1); err != nil {
			t.Errorf("Sleep() error = %v", err)
		}
	})

	t.Run("waits the attempt's delay", func(t *testing.T) {
		p := &Policy{MaxAttempts: 2, InitialDelay: 20 * time.Millisecond, Multiplier: 1.0}
		start := time.Now()
		if err := p.Sleep(context.Background(), 1); err != nil {
			t.Fatalf("Sleep() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
			t.Errorf("Sleep() returned after %v, want at least 20ms", elapsed)
		}
	})

	t.Run("cancelled context cuts the wait short", func(t *testing.T) {
		p := &Policy{MaxAttempts: 2, InitialDelay: 10 * time.Second, Multiplier: 1.0}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := p.Sleep(ctx, 1)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Sleep() error = %v, want DeadlineExceeded", err)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("Sleep() held for %v after cancellation", elapsed)
		}
	})
}
