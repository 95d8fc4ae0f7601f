// Package sched runs jobs on 5-field cron expressions. It backs the daily
// reminder posts.
package sched

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Expr is a parsed 5-field cron expression:
// minute(0-59) hour(0-23) dom(1-31) month(1-12) dow(0-6, 0=Sunday).
type Expr struct {
	minutes [60]bool
	hours   [24]bool
	doms    [32]bool // index 0 unused
	months  [13]bool // index 0 unused
	dows    [7]bool
}

// Matches reports whether t falls on the expression, at minute resolution.
func (e *Expr) Matches(t time.Time) bool {
	return e.minutes[t.Minute()] &&
		e.hours[t.Hour()] &&
		e.doms[t.Day()] &&
		e.months[int(t.Month())] &&
		e.dows[int(t.Weekday())]
}

// Parse parses a cron expression. Fields support *, N, N-M, */S, N-M/S and
// comma lists.
func Parse(s string) (*Expr, error) {
	fields := strings.Fields(s)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron %q: expected 5 fields, got %d", s, len(fields))
	}

	var e Expr
	specs := []struct {
		name     string
		min, max int
		set      func(int)
	}{
		{"minute", 0, 59, func(v int) { e.minutes[v] = true }},
		{"hour", 0, 23, func(v int) { e.hours[v] = true }},
		{"dom", 1, 31, func(v int) { e.doms[v] = true }},
		{"month", 1, 12, func(v int) { e.months[v] = true }},
		{"dow", 0, 6, func(v int) { e.dows[v] = true }},
	}
	for i, spec := range specs {
		vals, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("cron %q: %s: %w", s, spec.name, err)
		}
		for _, v := range vals {
			spec.set(v)
		}
	}
	return &e, nil
}

func parseField(field string, min, max int) ([]int, error) {
	var vals []int
	for _, part := range strings.Split(field, ",") {
		step := 1
		if idx := strings.Index(part, "/"); idx != -1 {
			s, err := strconv.Atoi(part[idx+1:])
			if err != nil || s <= 0 {
				return nil, fmt.Errorf("bad step in %q", part)
			}
			step = s
			part = part[:idx]
		}

		var lo, hi int
		switch {
		case part == "*":
			lo, hi = min, max
		case strings.Contains(part, "-"):
			bounds := strings.SplitN(part, "-", 2)
			var err error
			if lo, err = strconv.Atoi(bounds[0]); err != nil {
				return nil, fmt.Errorf("bad range start in %q", part)
			}
			if hi, err = strconv.Atoi(bounds[1]); err != nil {
				return nil, fmt.Errorf("bad range end in %q", part)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("bad value %q", part)
			}
			lo, hi = v, v
			if step != 1 {
				hi = max
			}
		}

		if lo < min || hi > max || lo > hi {
			return nil, fmt.Errorf("range %d-%d out of bounds [%d,%d]", lo, hi, min, max)
		}
		for v := lo; v <= hi; v += step {
			vals = append(vals, v)
		}
	}
	return vals, nil
}

// Next finds the first time strictly after `after` matching the expression.
// The zero time is returned when nothing matches within a year.
func (e *Expr) Next(after time.Time) time.Time {
	loc := after.Location()
	t := after.Truncate(time.Minute).Add(time.Minute)
	limit := t.Add(366 * 24 * time.Hour)
	for t.Before(limit) {
		if e.Matches(t) {
			return t
		}
		switch {
		case !e.months[int(t.Month())]:
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
		case !e.doms[t.Day()] || !e.dows[int(t.Weekday())]:
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
		case !e.hours[t.Hour()]:
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc)
		default:
			t = t.Add(time.Minute)
		}
	}
	return time.Time{}
}
