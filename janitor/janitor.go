// Package janitor reconciles stale summary messages: once a fresh summary is
// posted for an owner and date, every older posted summary for that pair is
// deleted from the channel and from the reference store.
package janitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/taskdeck/taskdeck/discord"
	"github.com/taskdeck/taskdeck/task"
)

// MessageDeleter deletes a posted summary message from the channel.
type MessageDeleter interface {
	DeleteWebhookMessage(ctx context.Context, messageID string) error
}

// Job names the summary that must survive; everything older is removed.
type Job struct {
	Owner         string
	Date          string
	KeepMessageID string
}

// Result reports what one cleanup pass did. Deletion failures never abort
// the pass: an already-deleted message counts as done, a permission failure
// is logged and skipped, and the store rows are pruned regardless.
type Result struct {
	Attempted  int
	Deleted    int
	NotFound   int
	Forbidden  int
	Failed     int
	RowsPruned int64
}

// Janitor runs cleanup jobs on a single background worker. Submission
// handlers enqueue without waiting; tests call Clean directly.
type Janitor struct {
	store   task.Store
	deleter MessageDeleter
	logger  *slog.Logger

	queue chan Job
	wg    sync.WaitGroup
}

// New creates a Janitor with a buffered queue of the given size.
func New(store task.Store, deleter MessageDeleter, logger *slog.Logger, queueSize int) *Janitor {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Janitor{
		store:   store,
		deleter: deleter,
		logger:  logger,
		queue:   make(chan Job, queueSize),
	}
}

// Enqueue schedules a cleanup pass without blocking the caller. When the
// queue is full the job is dropped and logged; orphan rows are harmless and
// are retried by the next post for the same owner and date.
func (j *Janitor) Enqueue(job Job) {
	select {
	case j.queue <- job:
	default:
		j.logger.Warn("cleanup queue full, dropping job",
			"owner", job.Owner, "date", job.Date)
	}
}

// Run processes queued jobs until ctx is canceled. Call Wait after
// cancellation to let an in-flight job finish.
func (j *Janitor) Run(ctx context.Context) {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-j.queue:
				res, err := j.Clean(ctx, job)
				if err != nil {
					j.logger.Error("cleanup pass failed",
						"owner", job.Owner, "date", job.Date, "error", err)
					continue
				}
				j.logger.Info("cleaned stale summaries",
					"owner", job.Owner, "date", job.Date,
					"attempted", res.Attempted, "deleted", res.Deleted,
					"notFound", res.NotFound, "forbidden", res.Forbidden,
					"failed", res.Failed, "rowsPruned", res.RowsPruned)
			}
		}
	}()
}

// Wait blocks until the worker goroutine has exited.
func (j *Janitor) Wait() { j.wg.Wait() }

// Clean performs one cleanup pass synchronously. Every stale message gets a
// deletion attempt regardless of earlier failures, then all stale store rows
// are pruned in one sweep.
func (j *Janitor) Clean(ctx context.Context, job Job) (Result, error) {
	refs, err := j.store.ListSummaryRefs(ctx, job.Owner, job.Date)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, ref := range refs {
		if ref.MessageID == job.KeepMessageID {
			continue
		}
		res.Attempted++
		err := j.deleter.DeleteWebhookMessage(ctx, ref.MessageID)
		switch {
		case err == nil:
			res.Deleted++
		case errors.Is(err, discord.ErrNotFound):
			res.NotFound++
			j.logger.Info("stale summary already gone", "messageId", ref.MessageID)
		case errors.Is(err, discord.ErrForbidden):
			res.Forbidden++
			j.logger.Warn("no permission to delete stale summary", "messageId", ref.MessageID)
		default:
			res.Failed++
			j.logger.Warn("delete stale summary failed", "messageId", ref.MessageID, "error", err)
		}
	}

	pruned, err := j.store.DeleteSummaryRefsExcept(ctx, job.Owner, job.Date, job.KeepMessageID)
	if err != nil {
		return res, err
	}
	res.RowsPruned = pruned
	return res, nil
}
