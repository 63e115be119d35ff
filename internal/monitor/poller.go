// Package monitor polls a submitted job until it reaches a terminal status or
// the polling budget runs out.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/amlpipe/internal/ctxlog"
)

const (
	DefaultInterval = 20 * time.Second
	DefaultStep     = 15 * time.Second
	DefaultBudget   = 3600 * time.Second
)

// FetchFunc returns the current status of the job being watched.
type FetchFunc func(ctx context.Context) (Status, error)

// Observer is notified of every status the poller sees, including the
// initial one.
type Observer func(job string, status Status)

// Poller waits for a job to finish.
type Poller struct {
	// Interval is the pause between two status checks.
	Interval time.Duration
	// Step is the amount elapsed time advances by per check. It is counted
	// separately from Interval, so with the defaults the budget allows 241
	// checks rather than 181. Zero uses Interval.
	Step time.Duration
	// Budget bounds the total elapsed time. Polling stops once it is exceeded.
	Budget time.Duration
	// Sleep pauses for d. It must return early with ctx.Err() when ctx is done.
	// Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Observer is optional.
	Observer Observer
}

// New returns a Poller with the default interval, step and budget.
func New() *Poller {
	return &Poller{Interval: DefaultInterval, Step: DefaultStep, Budget: DefaultBudget}
}

// Wait polls until status is terminal or the budget is exceeded. It returns
// nil when the job completed and a *JobError otherwise. If ctx is cancelled,
// the context error is returned.
func (p *Poller) Wait(ctx context.Context, job string, status Status, fetch FetchFunc) error {
	logger := ctxlog.FromContext(ctx).With("job", job)

	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	step := p.Step
	if step <= 0 {
		step = p.Interval
	}
	p.notify(job, status)

	var elapsed time.Duration
	for {
		if status.Terminal() {
			break
		}
		if elapsed > p.Budget {
			logger.Warn("Polling budget exceeded.", "status", status, "elapsed", elapsed, "budget", p.Budget)
			return &JobError{Job: job, Status: status, Kind: KindTimedOut, Elapsed: elapsed}
		}

		if err := sleep(ctx, p.Interval); err != nil {
			return err
		}
		next, err := fetch(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status of job %s: %w", job, err)
		}
		status = next
		elapsed += step

		logger.Info("Job status.", "status", status, "elapsed", elapsed)
		p.notify(job, status)
	}

	if status.Outcome() == Succeeded {
		return nil
	}
	logger.Error("Job ended unsuccessfully.", "status", status)
	return &JobError{Job: job, Status: status, Kind: kindOf(status), Elapsed: elapsed}
}

func (p *Poller) notify(job string, status Status) {
	if p.Observer != nil {
		p.Observer(job, status)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
