package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type counter struct {
	runs int32
}

func (c *counter) Run(ctx context.Context) {
	atomic.AddInt32(&c.runs, 1)
}

type once struct {
	counter
}

func (o *once) IsReady(ctx context.Context) bool    { return true }
func (o *once) IsComplete(ctx context.Context) bool { return atomic.LoadInt32(&o.runs) > 0 }
func (o *once) Equal(other Job) bool                { return other == Job(o) }

func TestPeriodicProcess(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &counter{}

	pp := NewPeriodicProcess("sweep", c, time.Minute)
	pp.now = func() time.Time { return now }
	pp.next = now.Add(time.Minute)

	ctx := context.Background()
	assert.False(t, pp.IsReady(ctx))

	now = now.Add(time.Minute)
	require.True(t, pp.IsReady(ctx))
	pp.Run(ctx)
	assert.Equal(t, int32(1), c.runs)
	assert.False(t, pp.IsReady(ctx), "next run rescheduled")
	assert.False(t, pp.IsComplete(ctx))

	assert.True(t, pp.Equal(NewPeriodicProcess("sweep", c, time.Hour)))
	assert.False(t, pp.Equal(NewPeriodicProcess("other", c, time.Hour)))
}

func TestSchedulerRun(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	sch := New(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	job := &once{}
	require.NoError(t, sch.ScheduleJob(ctx, job))

	periodic := &counter{}
	require.NoError(t, sch.ScheduleJob(ctx, NewPeriodicProcess("tick", periodic, time.Millisecond)))

	done := make(chan error, 1)
	go func() { done <- sch.Run(ctx) }()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&periodic.runs) >= 3 && sch.Len() == 1
	}, 5*time.Second, time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&job.runs), "completed job runs once")

	cancel()
	require.NoError(t, <-done)
}

func TestCancelJob(t *testing.T) {
	sch := New(0)
	ctx := context.Background()

	pp := NewPeriodicProcess("sweep", &counter{}, time.Minute)
	require.NoError(t, sch.ScheduleJob(ctx, pp))
	require.NoError(t, sch.CancelJob(ctx, NewPeriodicProcess("sweep", nil, time.Minute)))
	assert.Equal(t, 0, sch.Len())
	assert.Equal(t, ErrNotFound, errors.Cause(sch.CancelJob(ctx, pp)))
}
