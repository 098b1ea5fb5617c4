package retry

import (
	"context"
	"testing"
	"time"

	"github.com/corvidlabs/rawcore/pkg/rawerr"
)

func TestShouldRetryTransportErrors(t *testing.T) {
	p := NewPolicy()
	p.MaxAttempts = 3

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", rawerr.NewTimeoutError("read", time.Second), true},
		{"connection", rawerr.NewConnectionError("h", 80, nil), true},
		{"io", rawerr.NewIOError("read", nil), true},
		{"cancelled", rawerr.NewCancelledError("read", context.Canceled), false},
		{"validation", rawerr.NewValidationError("bad"), false},
		{"protocol", rawerr.NewProtocolError("bad status line", nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ShouldRetry(tt.err, 0, 1); got != tt.want {
				t.Errorf("ShouldRetry(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestShouldRetryStatusCodes(t *testing.T) {
	p := NewPolicy()
	if !p.ShouldRetry(nil, 503, 1) {
		t.Error("expected 503 to be retryable")
	}
	if p.ShouldRetry(nil, 404, 1) {
		t.Error("expected 404 to not be retryable")
	}
}

func TestShouldRetryRespectsMaxAttempts(t *testing.T) {
	p := NewPolicy()
	p.MaxAttempts = 2
	if p.ShouldRetry(rawerr.NewTimeoutError("read", time.Second), 0, 2) {
		t.Error("expected no retry once MaxAttempts is reached")
	}
}

func TestDelayBounds(t *testing.T) {
	p := NewPolicy()
	p.InitialDelay = 200 * time.Millisecond
	p.Factor = 2.0
	p.MaxDelay = 10 * time.Second

	for k := 1; k <= 5; k++ {
		d := p.Delay(k)
		base := float64(p.InitialDelay) * pow(p.Factor, k)
		min := time.Duration(base * 0.75)
		max := time.Duration(base * 1.25)
		if max > p.MaxDelay {
			max = p.MaxDelay
		}
		if d < min || d > max {
			t.Errorf("attempt %d: delay %v out of bounds [%v, %v]", k, d, min, max)
		}
	}
}

func TestDelayAttemptZero(t *testing.T) {
	p := NewPolicy()
	if got := p.Delay(0); got != p.InitialDelay {
		t.Errorf("Delay(0) = %v, want %v", got, p.InitialDelay)
	}
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
