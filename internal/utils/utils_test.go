package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitFor(t *testing.T) {
	start := time.Now()
	if err := WaitFor(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("returned after %s", elapsed)
	}
}

func TestWaitForCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := WaitFor(ctx, time.Hour); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("expected WaitFor to return once the context is done")
	}
}

func TestWaitForZeroDuration(t *testing.T) {
	if err := WaitFor(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := WaitFor(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled for a done context, got %v", err)
	}
}

func TestTruncateForLog(t *testing.T) {
	tests := map[string]struct {
		in    string
		limit int
		want  string
	}{
		"zero limit":   {in: `{"verdict":"true"}`, limit: 0, want: ""},
		"fits":         {in: `{"verdict":"true"}`, limit: 50, want: `{"verdict":"true"}`},
		"cut":          {in: `{"verdict":"true"}`, limit: 5, want: `{"ver...`},
		"whitespace":   {in: "\n  rating 8  \n", limit: 20, want: "rating 8"},
		"counts runes": {in: "Développeur Go", limit: 5, want: "Dével..."},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := TruncateForLog(tt.in, tt.limit); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
