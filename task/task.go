// Package task defines the daily-task model and persistence for taskdeck.
package task

import (
	"context"
	"fmt"
	"time"
)

// Priority ranks a task. It carries the weight used by the completion score.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Weight returns the scoring weight for the priority.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// ParsePriority validates a priority string as submitted by the form.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s), nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// DateLayout is the display-date format shared by all records for one day.
// Records for "the same day" match on this exact string.
const DateLayout = "02-01-2006 (Monday)"

// DisplayDate formats t as a submission date.
func DisplayDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Task is one submitted daily task. Tasks are identified by ID; names are
// display-only and may repeat within the same owner and date.
type Task struct {
	ID            string    `json:"id" bson:"task_id"`
	Owner         string    `json:"user_id" bson:"user_id"`
	Date          string    `json:"date" bson:"date_today"`
	Name          string    `json:"task_name" bson:"task_name"`
	Priority      Priority  `json:"priority" bson:"priority"`
	Description   string    `json:"description" bson:"description"`
	DependsOn     string    `json:"depends_on,omitempty" bson:"depends_on,omitempty"`
	EstimatedTime string    `json:"estimated_time" bson:"estimated_time"`
	Completed     bool      `json:"completed" bson:"completed"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

// SummaryRef maps an owner and date to one posted summary message.
// A fresh row is inserted per post; rows are never upserted, so an owner
// and date can accumulate stale rows until the janitor reconciles them.
type SummaryRef struct {
	Owner     string    `json:"user_id" bson:"user_id"`
	Date      string    `json:"date" bson:"date_today"`
	MessageID string    `json:"message_id" bson:"task_message"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Store persists tasks and summary-message references.
type Store interface {
	// InsertTasks persists a batch of new tasks. IDs and CreatedAt are
	// assigned by the store. The batch is written in order.
	InsertTasks(ctx context.Context, tasks []*Task) error

	// ListTasks returns all tasks for an owner and date in insertion order.
	ListTasks(ctx context.Context, owner, date string) ([]*Task, error)

	// MarkCompleted sets the completion flag on the tasks with the given IDs
	// for the owner and date, returning how many records matched.
	MarkCompleted(ctx context.Context, owner, date string, ids []string) (int64, error)

	// InsertSummaryRef records a newly posted summary message.
	InsertSummaryRef(ctx context.Context, ref *SummaryRef) error

	// ListSummaryRefs returns all summary references for an owner and date
	// in insertion order.
	ListSummaryRefs(ctx context.Context, owner, date string) ([]*SummaryRef, error)

	// LatestSummaryRef returns the most recently inserted reference for an
	// owner and date, or ErrNoSummary when none exists.
	LatestSummaryRef(ctx context.Context, owner, date string) (*SummaryRef, error)

	// DeleteSummaryRefsExcept removes every reference for the owner and date
	// whose message ID differs from keep, returning how many were removed.
	DeleteSummaryRefsExcept(ctx context.Context, owner, date, keep string) (int64, error)

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// ErrNoSummary is returned when no summary message has been posted yet for
// the requested owner and date.
var ErrNoSummary = fmt.Errorf("no summary message recorded")
