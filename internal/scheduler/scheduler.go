// Package scheduler runs single-shot actions after a fixed delay on a small
// worker pool. Callers never block on scheduling, and failures inside an
// action are logged and dropped: nothing is retried or reported back.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"restaurant-orders/internal/logger"
)

// ErrStopped is returned by Schedule once Stop has been called
var ErrStopped = errors.New("scheduler stopped")

// Action is the deferred work. It must re-check the state of whatever it
// mutates, since anything may have happened while it was waiting.
type Action func(ctx context.Context) error

type task struct {
	name   string
	due    time.Time
	seq    uint64
	action Action
	index  int
}

// taskQueue is a min-heap ordered by due time, then by insertion order
type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	t := x.(*task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// Scheduler executes delayed actions on a fixed pool of workers
type Scheduler struct {
	workers     int
	taskTimeout time.Duration
	logger      *logger.Logger

	mu      sync.Mutex
	queue   taskQueue
	seq     uint64
	started bool
	stopped bool

	wake   chan struct{}
	jobs   chan *task
	quit   chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler; call Start to begin executing tasks
func New(workers int, taskTimeout time.Duration, log *logger.Logger) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	if taskTimeout <= 0 {
		taskTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		workers:     workers,
		taskTimeout: taskTimeout,
		logger:      log,
		wake:        make(chan struct{}, 1),
		jobs:        make(chan *task),
		quit:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the dispatcher and the worker pool. Calling it twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	s.wg.Add(s.workers + 1)
	go s.dispatch()
	for i := 0; i < s.workers; i++ {
		go s.work(i)
	}

	s.logger.Info("scheduler_started", "Deferred task scheduler started", "", map[string]interface{}{
		"workers": s.workers,
	})
}

// Schedule enqueues action to run no earlier than delay from now
func (s *Scheduler) Schedule(name string, delay time.Duration, action Action) error {
	if action == nil {
		return fmt.Errorf("schedule %s: nil action", name)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.seq++
	t := &task{
		name:   name,
		due:    time.Now().Add(delay),
		seq:    s.seq,
		action: action,
	}
	heap.Push(&s.queue, t)
	s.mu.Unlock()

	// Nudge the dispatcher in case the new task is now the earliest
	select {
	case s.wake <- struct{}{}:
	default:
	}

	s.logger.Debug("task_scheduled", fmt.Sprintf("Scheduled %s", name), "", map[string]interface{}{
		"task":     name,
		"delay_ms": delay.Milliseconds(),
	})
	return nil
}

// Pending returns the number of tasks whose timer has not fired yet
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Stop rejects new tasks, drops timers that have not fired and waits for
// running actions. If ctx expires first, running actions are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	dropped := len(s.queue)
	s.queue = nil
	s.mu.Unlock()

	close(s.quit)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.logger.Info("scheduler_stopped", "Deferred task scheduler stopped", "", map[string]interface{}{
			"dropped_tasks": dropped,
		})
		return nil
	case <-ctx.Done():
		s.cancel()
		return fmt.Errorf("failed to stop scheduler: %w", ctx.Err())
	}
}

func (s *Scheduler) dispatch() {
	defer s.wg.Done()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		s.mu.Lock()
		var (
			ready *task
			wait  time.Duration = -1
		)
		if len(s.queue) > 0 {
			if d := time.Until(s.queue[0].due); d <= 0 {
				ready = heap.Pop(&s.queue).(*task)
			} else {
				wait = d
			}
		}
		s.mu.Unlock()

		if ready != nil {
			select {
			case s.jobs <- ready:
				continue
			case <-s.quit:
				return
			}
		}

		var timerC <-chan time.Time
		if wait >= 0 {
			timer.Reset(wait)
			timerC = timer.C
		}

		select {
		case <-timerC:
		case <-s.wake:
			if timerC != nil && !timer.Stop() {
				<-timer.C
			}
		case <-s.quit:
			return
		}
	}
}

func (s *Scheduler) work(id int) {
	defer s.wg.Done()
	for {
		select {
		case t := <-s.jobs:
			s.run(id, t)
		case <-s.quit:
			return
		}
	}
}

func (s *Scheduler) run(workerID int, t *task) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task_panicked", fmt.Sprintf("Deferred task %s panicked", t.name), "",
				fmt.Errorf("panic: %v", r), map[string]interface{}{
					"task":   t.name,
					"worker": workerID,
				})
		}
	}()

	if err := t.action(ctx); err != nil {
		s.logger.Error("task_failed", fmt.Sprintf("Deferred task %s failed", t.name), "", err, map[string]interface{}{
			"task":        t.name,
			"worker":      workerID,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return
	}

	s.logger.Debug("task_completed", fmt.Sprintf("Deferred task %s completed", t.name), "", map[string]interface{}{
		"task":        t.name,
		"worker":      workerID,
		"late_ms":     start.Sub(t.due).Milliseconds(),
		"duration_ms": time.Since(start).Milliseconds(),
	})
}
