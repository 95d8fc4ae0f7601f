package sched

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func mustParse(t *testing.T, s string) *Expr {
	t.Helper()
	e, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return e
}

func at(hour, min int) time.Time {
	// 24-02-2026 is a Tuesday.
	return time.Date(2026, 2, 24, hour, min, 0, 0, time.UTC)
}

func TestParseAndMatch(t *testing.T) {
	tests := []struct {
		expr  string
		time  time.Time
		match bool
	}{
		{"30 7 * * *", at(7, 30), true},
		{"30 7 * * *", at(7, 31), false},
		{"30 7 * * *", at(21, 30), false},
		{"0 21 * * *", at(21, 0), true},
		{"0 21 * * 0-6", at(21, 0), true},
		{"0 21 * * 0,6", at(21, 0), false}, // Tuesday not in weekend list
		{"*/15 * * * *", at(9, 45), true},
		{"*/15 * * * *", at(9, 50), false},
		{"0 9-17 * * *", at(13, 0), true},
		{"0 9-17 * * *", at(18, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			e := mustParse(t, tt.expr)
			if got := e.Matches(tt.time); got != tt.match {
				t.Errorf("Matches(%v) = %v, want %v", tt.time, got, tt.match)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, s := range []string{
		"",
		"* * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 7",
		"a * * * *",
		"*/0 * * * *",
		"5-2 * * * *",
	} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) did not fail", s)
		}
	}
}

func TestNext(t *testing.T) {
	e := mustParse(t, "30 7 * * *")

	next := e.Next(at(6, 0))
	if want := at(7, 30); !next.Equal(want) {
		t.Errorf("Next before trigger = %v, want %v", next, want)
	}

	// Exactly at the trigger: the next firing is tomorrow.
	next = e.Next(at(7, 30))
	if want := at(7, 30).AddDate(0, 0, 1); !next.Equal(want) {
		t.Errorf("Next at trigger = %v, want %v", next, want)
	}
}

func TestNext_WeekdayFilter(t *testing.T) {
	// Mondays only; from Tuesday the next run is six days out.
	e := mustParse(t, "0 9 * * 1")
	next := e.Next(at(10, 0))
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Next = %v, want %v", next, want)
	}
}

func TestEngine_FiresDueJob(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewEngine(logger)
	e.tick = time.Millisecond

	var mu sync.Mutex
	clock := at(7, 29)
	e.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	})

	var fired atomic.Int32
	if err := e.Add("reminder", "30 7 * * *", func(context.Context) {
		fired.Add(1)
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.Run(ctx)

	// Move the clock past the trigger and give the ticker time to fire.
	mu.Lock()
	clock = at(7, 30)
	mu.Unlock()
	deadline := time.Now().Add(time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	e.Wait()

	if got := fired.Load(); got != 1 {
		t.Errorf("job fired %d times, want 1", got)
	}
}

func TestEngine_RejectsBadExpr(t *testing.T) {
	e := NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := e.Add("bad", "not a cron", func(context.Context) {}); err == nil {
		t.Error("Add accepted a malformed expression")
	}
}
