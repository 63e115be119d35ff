package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// script returns a fetch func that yields statuses in order and then repeats
// the last one.
func script(statuses ...Status) (FetchFunc, *int) {
	calls := 0
	return func(ctx context.Context) (Status, error) {
		i := calls
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		calls++
		return statuses[i], nil
	}, &calls
}

// fakeSleep records requested pauses without waiting.
type fakeSleep struct {
	pauses []time.Duration
}

func (f *fakeSleep) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.pauses = append(f.pauses, d)
	return nil
}

func newTestPoller() (*Poller, *fakeSleep) {
	fs := &fakeSleep{}
	return &Poller{Interval: 20 * time.Second, Step: 15 * time.Second, Budget: 3600 * time.Second, Sleep: fs.sleep}, fs
}

func TestStatus_Outcome(t *testing.T) {
	t.Parallel()

	cases := map[Status]Outcome{
		StatusNotStarted:      Continue,
		StatusQueued:          Continue,
		StatusStarting:        Continue,
		StatusPreparing:       Continue,
		StatusRunning:         Continue,
		StatusFinalizing:      Continue,
		StatusProvisioning:    Continue,
		StatusCancelRequested: Failed,
		StatusFailed:          Failed,
		StatusCanceled:        Failed,
		StatusNotResponding:   Failed,
		StatusCompleted:       Succeeded,
		StatusFinished:        Succeeded,
		Status("Paused"):      Failed,
		Status(""):            Failed,
	}
	for status, want := range cases {
		assert.Equal(t, want, status.Outcome(), "status %q", status)
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StatusRunning, ParseStatus("running"))
	assert.Equal(t, StatusCancelRequested, ParseStatus("CANCELREQUESTED"))
	assert.True(t, ParseStatus("Completed").Known())

	other := ParseStatus("Paused")
	assert.Equal(t, Status("Paused"), other)
	assert.False(t, other.Known())
}

func TestWait_Success(t *testing.T) {
	t.Parallel()

	for _, final := range []Status{StatusCompleted, StatusFinished} {
		final := final
		t.Run(string(final), func(t *testing.T) {
			t.Parallel()
			p, _ := newTestPoller()
			fetch, _ := script(StatusRunning, StatusFinalizing, final)

			err := p.Wait(context.Background(), "job-1", StatusQueued, fetch)
			require.NoError(t, err)
		})
	}
}

func TestWait_Failure(t *testing.T) {
	t.Parallel()

	cases := []struct {
		final Status
		kind  Kind
	}{
		{StatusFailed, KindFailed},
		{StatusCanceled, KindCanceled},
		{StatusCancelRequested, KindCanceled},
		{StatusNotResponding, KindNotResponding},
		{Status("Exploded"), KindUnknown},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(string(tc.final), func(t *testing.T) {
			t.Parallel()
			p, _ := newTestPoller()
			fetch, _ := script(StatusRunning, tc.final)

			err := p.Wait(context.Background(), "job-1", StatusStarting, fetch)

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrJobUnsuccessful))
			var jobErr *JobError
			require.True(t, errors.As(err, &jobErr))
			assert.Equal(t, tc.kind, jobErr.Kind)
			assert.Equal(t, tc.final, jobErr.Status)
			assert.Equal(t, "job-1", jobErr.Job)
		})
	}
}

func TestWait_TerminalInitialStatusDoesNotPoll(t *testing.T) {
	t.Parallel()

	p, fs := newTestPoller()
	fetch, calls := script(StatusRunning)

	err := p.Wait(context.Background(), "job-1", StatusFailed, fetch)

	require.ErrorIs(t, err, ErrJobUnsuccessful)
	assert.Zero(t, *calls)
	assert.Empty(t, fs.pauses)
}

func TestWait_BudgetBoundsLoop(t *testing.T) {
	t.Parallel()

	// Arrange
	p, fs := newTestPoller()
	fetch, calls := script(StatusRunning)

	// Act
	err := p.Wait(context.Background(), "job-1", StatusRunning, fetch)

	// Assert
	var jobErr *JobError
	require.True(t, errors.As(err, &jobErr))
	assert.Equal(t, KindTimedOut, jobErr.Kind)
	assert.Equal(t, StatusRunning, jobErr.Status)
	assert.True(t, errors.Is(err, ErrJobUnsuccessful))

	// Each check sleeps 20s but counts 15s, and the loop stops once elapsed
	// exceeds the budget: 3600/15 checks reach the budget, one more exceeds it.
	assert.Equal(t, 241, *calls)
	assert.Len(t, fs.pauses, 241)
	assert.Equal(t, 3615*time.Second, jobErr.Elapsed)
	for _, d := range fs.pauses {
		assert.Equal(t, 20*time.Second, d)
	}
}

func TestWait_SmallBudget(t *testing.T) {
	t.Parallel()

	p, _ := newTestPoller()
	p.Interval = time.Second
	p.Step = time.Second
	p.Budget = 3 * time.Second
	fetch, calls := script(StatusQueued)

	err := p.Wait(context.Background(), "job-1", StatusNotStarted, fetch)

	require.ErrorIs(t, err, ErrJobUnsuccessful)
	assert.Equal(t, 4, *calls)
}

func TestWait_ZeroStepCountsInterval(t *testing.T) {
	t.Parallel()

	p, fs := newTestPoller()
	p.Step = 0
	fetch, calls := script(StatusRunning)

	err := p.Wait(context.Background(), "job-1", StatusRunning, fetch)

	var jobErr *JobError
	require.True(t, errors.As(err, &jobErr))
	assert.Equal(t, 181, *calls)
	assert.Len(t, fs.pauses, 181)
	assert.Equal(t, 3620*time.Second, jobErr.Elapsed)
}

func TestWait_ContextCancelled(t *testing.T) {
	t.Parallel()

	p, _ := newTestPoller()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	fetch := func(ctx context.Context) (Status, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return StatusRunning, nil
	}

	err := p.Wait(ctx, "job-1", StatusRunning, fetch)

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrJobUnsuccessful))
	assert.Equal(t, 2, calls)
}

func TestWait_DefaultSleepHonoursContext(t *testing.T) {
	t.Parallel()

	p := &Poller{Interval: time.Hour, Budget: 2 * time.Hour}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	fetch, calls := script(StatusRunning)

	err := p.Wait(ctx, "job-1", StatusRunning, fetch)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, *calls)
}

func TestWait_FetchError(t *testing.T) {
	t.Parallel()

	p, _ := newTestPoller()
	boom := errors.New("boom")
	fetch := func(ctx context.Context) (Status, error) { return "", boom }

	err := p.Wait(context.Background(), "job-1", StatusRunning, fetch)

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "job-1")
}

func TestWait_Observer(t *testing.T) {
	t.Parallel()

	p, _ := newTestPoller()
	var seen []Status
	p.Observer = func(job string, status Status) {
		assert.Equal(t, "job-1", job)
		seen = append(seen, status)
	}
	fetch, _ := script(StatusPreparing, StatusRunning, StatusCompleted)

	require.NoError(t, p.Wait(context.Background(), "job-1", StatusQueued, fetch))

	assert.Equal(t, []Status{StatusQueued, StatusPreparing, StatusRunning, StatusCompleted}, seen)
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	p := New()
	assert.Equal(t, 20*time.Second, p.Interval)
	assert.Equal(t, 15*time.Second, p.Step)
	assert.Equal(t, time.Hour, p.Budget)
}
