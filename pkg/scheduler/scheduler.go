package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/trustvault/settlement/internal/platform/logger"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultTick is how often a Scheduler checks its jobs.
const DefaultTick = 500 * time.Millisecond

var (
	// ErrNotFound is returned when cancelling a job that is not scheduled.
	ErrNotFound = errors.New("Job not found")
)

// Job provides an interface that tells Scheduler when and how to run the job.
type Job interface {
	// IsReady returns true when a job should be executed.
	IsReady(ctx context.Context) bool

	// Run executes the job.
	Run(ctx context.Context)

	// IsComplete returns true when a job should be removed from the scheduler.
	IsComplete(ctx context.Context) bool

	// Equal returns true if another job matches it. Used to cancel jobs.
	Equal(other Job) bool
}

// Scheduler runs jobs when they are ready. Jobs run one at a time on the goroutine calling Run.
type Scheduler struct {
	tick time.Duration

	lock sync.Mutex
	jobs []Job
}

// New returns a Scheduler checking its jobs every tick. A zero tick uses DefaultTick.
func New(tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Scheduler{tick: tick}
}

// ScheduleJob adds a job to the scheduler.
func (sch *Scheduler) ScheduleJob(ctx context.Context, job Job) error {
	sch.lock.Lock()
	defer sch.lock.Unlock()

	sch.jobs = append(sch.jobs, job)
	return nil
}

// CancelJob removes a job from the scheduler. The job passed in just needs to be equivalent based
// on the job's Equal function.
func (sch *Scheduler) CancelJob(ctx context.Context, job Job) error {
	sch.lock.Lock()
	defer sch.lock.Unlock()

	for i, existing := range sch.jobs {
		if existing.Equal(job) {
			sch.jobs = append(sch.jobs[:i], sch.jobs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Len returns the number of scheduled jobs.
func (sch *Scheduler) Len() int {
	sch.lock.Lock()
	defer sch.lock.Unlock()

	return len(sch.jobs)
}

// Run monitors jobs and runs them when they are ready until ctx is done.
func (sch *Scheduler) Run(ctx context.Context) error {
	ctx = logger.ContextWithNamedLogger(ctx, "scheduler")
	ticker := time.NewTicker(sch.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.NewLoggerFromContext(ctx).Info("scheduler stopped", zap.Int("jobs", sch.Len()))
			return nil
		case <-ticker.C:
			sch.runReady(ctx)
		}
	}
}

// runReady runs every ready job and drops the completed ones. Jobs run without the lock held so
// they may schedule or cancel jobs.
func (sch *Scheduler) runReady(ctx context.Context) {
	sch.lock.Lock()
	jobs := make([]Job, len(sch.jobs))
	copy(jobs, sch.jobs)
	sch.lock.Unlock()

	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		if !job.IsReady(ctx) {
			continue
		}

		job.Run(ctx)

		if job.IsComplete(ctx) {
			sch.CancelJob(ctx, job)
		}
	}
}
