package sched

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Engine fires registered jobs at their cron times. It runs on its own
// goroutine, isolated from the request handlers; jobs share nothing with it
// beyond what their closures capture.
type Engine struct {
	logger *slog.Logger
	now    func() time.Time
	tick   time.Duration

	mu   sync.Mutex
	jobs []*job

	wg sync.WaitGroup
}

type job struct {
	name    string
	expr    *Expr
	fn      func(context.Context)
	nextRun time.Time
}

// NewEngine creates an idle engine. Nothing fires until Run is called.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{
		logger: logger,
		now:    time.Now,
		tick:   30 * time.Second,
	}
}

// SetClock overrides the engine's time source. Used by tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Add registers a job under the given cron expression.
func (e *Engine) Add(name, cronExpr string, fn func(context.Context)) error {
	expr, err := Parse(cronExpr)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.jobs = append(e.jobs, &job{
		name:    name,
		expr:    expr,
		fn:      fn,
		nextRun: expr.Next(e.now()),
	})
	return nil
}

// Run fires due jobs until ctx is canceled. Each firing runs on its own
// goroutine so a slow job never delays the others. Call Wait after
// cancellation to drain in-flight jobs.
func (e *Engine) Run(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.tick)
		defer ticker.Stop()
		e.logger.Info("scheduler started", "jobs", len(e.jobs))
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("scheduler stopped")
				return
			case <-ticker.C:
				e.fireDue(ctx)
			}
		}
	}()
}

// Wait blocks until the ticker goroutine and all in-flight jobs are done.
func (e *Engine) Wait() { e.wg.Wait() }

func (e *Engine) fireDue(ctx context.Context) {
	now := e.now()
	e.mu.Lock()
	var due []*job
	for _, j := range e.jobs {
		if !j.nextRun.IsZero() && !now.Before(j.nextRun) {
			due = append(due, j)
			j.nextRun = j.expr.Next(now)
		}
	}
	e.mu.Unlock()

	for _, j := range due {
		e.logger.Info("firing scheduled job", "job", j.name)
		e.wg.Add(1)
		go func(j *job) {
			defer e.wg.Done()
			j.fn(ctx)
		}(j)
	}
}
