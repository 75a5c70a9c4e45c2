package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-orders/internal/logger"
)

func newStarted(t *testing.T, workers int) *Scheduler {
	t.Helper()
	s := New(workers, time.Second, logger.Discard())
	s.Start()
	t.Cleanup(func() {
		_ = s.Stop(context.Background())
	})
	return s
}

func TestSchedule_RunsNoEarlierThanDelay(t *testing.T) {
	s := newStarted(t, 2)

	delay := 30 * time.Millisecond
	start := time.Now()
	fired := make(chan time.Time, 1)

	require.NoError(t, s.Schedule("probe", delay, func(ctx context.Context) error {
		fired <- time.Now()
		return nil
	}))

	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at.Sub(start), delay)
	case <-time.After(time.Second):
		t.Fatal("task never fired")
	}
}

func TestSchedule_FiresInDueOrder(t *testing.T) {
	s := newStarted(t, 1)

	var (
		mu    sync.Mutex
		order []string
		wg    sync.WaitGroup
	)
	record := func(name string) Action {
		return func(ctx context.Context) error {
			defer wg.Done()
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	wg.Add(3)
	require.NoError(t, s.Schedule("late", 60*time.Millisecond, record("late")))
	require.NoError(t, s.Schedule("early", 10*time.Millisecond, record("early")))
	require.NoError(t, s.Schedule("middle", 35*time.Millisecond, record("middle")))

	waitGroup(t, &wg, time.Second)
	assert.Equal(t, []string{"early", "middle", "late"}, order)
}

func TestSchedule_ManyPendingTasks(t *testing.T) {
	s := newStarted(t, 5)

	const n = 500
	var (
		ran atomic.Int64
		wg  sync.WaitGroup
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		delay := time.Duration(i%20) * time.Millisecond
		require.NoError(t, s.Schedule("bulk", delay, func(ctx context.Context) error {
			defer wg.Done()
			ran.Add(1)
			return nil
		}))
	}

	waitGroup(t, &wg, 5*time.Second)
	assert.Equal(t, int64(n), ran.Load())
	assert.Zero(t, s.Pending())
}

func TestSchedule_DoesNotBlockCaller(t *testing.T) {
	s := newStarted(t, 1)

	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{})
	require.NoError(t, s.Schedule("slow", 0, func(ctx context.Context) error {
		close(started)
		<-block
		return nil
	}))
	<-started

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			_ = s.Schedule("queued", time.Hour, func(ctx context.Context) error { return nil })
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Schedule blocked while a worker was busy")
	}
	assert.Equal(t, 50, s.Pending())
}

func TestSchedule_FailuresAreIsolated(t *testing.T) {
	s := newStarted(t, 1)

	var wg sync.WaitGroup
	wg.Add(3)
	require.NoError(t, s.Schedule("panics", 0, func(ctx context.Context) error {
		defer wg.Done()
		panic("boom")
	}))
	require.NoError(t, s.Schedule("fails", 5*time.Millisecond, func(ctx context.Context) error {
		defer wg.Done()
		return errors.New("order already transitioned")
	}))

	var ok atomic.Bool
	require.NoError(t, s.Schedule("succeeds", 10*time.Millisecond, func(ctx context.Context) error {
		defer wg.Done()
		ok.Store(true)
		return nil
	}))

	waitGroup(t, &wg, time.Second)
	assert.True(t, ok.Load(), "worker should survive a panicking task")
}

func TestSchedule_TaskTimeout(t *testing.T) {
	s := New(1, 20*time.Millisecond, logger.Discard())
	s.Start()
	defer s.Stop(context.Background())

	result := make(chan error, 1)
	require.NoError(t, s.Schedule("slow", 0, func(ctx context.Context) error {
		<-ctx.Done()
		result <- ctx.Err()
		return ctx.Err()
	}))

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled")
	}
}

func TestSchedule_NilAction(t *testing.T) {
	s := New(1, time.Second, logger.Discard())
	assert.Error(t, s.Schedule("nil", 0, nil))
}

func TestStop_DropsPendingAndRejectsNewWork(t *testing.T) {
	s := New(2, time.Second, logger.Discard())
	s.Start()

	var fired atomic.Bool
	require.NoError(t, s.Schedule("never", 50*time.Millisecond, func(ctx context.Context) error {
		fired.Store(true)
		return nil
	}))
	assert.Equal(t, 1, s.Pending())

	require.NoError(t, s.Stop(context.Background()))
	assert.Zero(t, s.Pending())

	err := s.Schedule("after-stop", 0, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrStopped)

	time.Sleep(80 * time.Millisecond)
	assert.False(t, fired.Load())

	// second stop is a no-op
	assert.NoError(t, s.Stop(context.Background()))
}

func TestStop_WaitsForRunningTask(t *testing.T) {
	s := New(1, time.Second, logger.Discard())
	s.Start()

	started := make(chan struct{})
	var finished atomic.Bool
	require.NoError(t, s.Schedule("running", 0, func(ctx context.Context) error {
		close(started)
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
		return nil
	}))

	<-started
	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, finished.Load())
}

func TestStop_ContextExpires(t *testing.T) {
	s := New(1, time.Minute, logger.Discard())
	s.Start()

	started := make(chan struct{})
	require.NoError(t, s.Schedule("stuck", 0, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func waitGroup(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for tasks")
	}
}
