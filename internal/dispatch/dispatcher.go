package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"clipdraft/internal/lifecycle"
	"clipdraft/internal/logging"
)

var (
	ErrQueueFull        = errors.New("dispatch queue is full")
	ErrAlreadyScheduled = errors.New("item already scheduled")
	ErrStopped          = errors.New("dispatcher stopped")
)

const releaseTimeout = 5 * time.Second

// Task asks for one step of one item.
type Task struct {
	ItemID    int64
	Step      lifecycle.Step
	RequestID string
}

// Handler runs a task. A non-nil return value is the next step for the same
// item; it runs on the same worker under a freshly acquired token, without
// passing through the queue.
type Handler func(ctx context.Context, task Task) *Task

// PanicError wraps a value recovered from a handler.
type PanicError struct {
	Task  Task
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s step for item %d: %v", e.Task.Step, e.Task.ItemID, e.Value)
}

// Options configures a Dispatcher.
type Options struct {
	Workers   int
	QueueSize int
	Tokens    TokenStore
	Handler   Handler
	// OnPanic is called from the worker goroutine after a handler panic.
	OnPanic func(ctx context.Context, task Task, perr *PanicError)
	Logger  *slog.Logger
}

// Dispatcher owns the task queue and its workers.
type Dispatcher struct {
	workers int
	tokens  TokenStore
	handler Handler
	onPanic func(ctx context.Context, task Task, perr *PanicError)
	logger  *slog.Logger
	queue   chan Task

	mu        sync.Mutex
	scheduled map[int64]struct{}
	// active holds items a worker has taken off the queue.
	active    map[int64]struct{}
	// rerun holds one task submitted while its item was active.
	rerun     map[int64]Task
	running   bool
	stopped   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New constructs a dispatcher. Workers and QueueSize default to 1 when unset.
func New(opts Options) *Dispatcher {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	size := opts.QueueSize
	if size <= 0 {
		size = 1
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = NewMemoryTokens()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		workers:   workers,
		tokens:    tokens,
		handler:   opts.Handler,
		onPanic:   opts.OnPanic,
		logger:    logger,
		queue:     make(chan Task, size),
		scheduled: make(map[int64]struct{}),
		active:    make(map[int64]struct{}),
		rerun:     make(map[int64]Task),
	}
}

// Start launches the workers. Tasks submitted before Start wait in the queue.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}
	if d.running {
		return errors.New("dispatcher already running")
	}
	if d.handler == nil {
		return errors.New("dispatcher handler not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.wg.Add(d.workers)
	for i := 0; i < d.workers; i++ {
		go d.worker(runCtx, i)
	}
	return nil
}

// Stop cancels in-flight handlers and waits for workers to exit. Queued tasks
// are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	cancel := d.cancel
	d.running = false
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.wg.Wait()

	d.mu.Lock()
	dropped := len(d.queue)
	for len(d.queue) > 0 {
		<-d.queue
	}
	d.scheduled = make(map[int64]struct{})
	d.active = make(map[int64]struct{})
	d.rerun = make(map[int64]Task)
	d.mu.Unlock()
	if dropped > 0 {
		d.logger.Info("dispatcher stopped with queued tasks",
			logging.Int("dropped", dropped),
			logging.String(logging.FieldEventType, "dispatch_dropped"),
		)
	}
}

// Submit enqueues task without blocking. A task for an item that a worker is
// already running is held and run once more after the current step, so a
// state change made during the step is never lost.
func (d *Dispatcher) Submit(task Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}
	if _, ok := d.scheduled[task.ItemID]; ok {
		_, isActive := d.active[task.ItemID]
		_, held := d.rerun[task.ItemID]
		if isActive && !held {
			d.rerun[task.ItemID] = task
			return nil
		}
		return fmt.Errorf("%w: item %d", ErrAlreadyScheduled, task.ItemID)
	}
	select {
	case d.queue <- task:
		d.scheduled[task.ItemID] = struct{}{}
		return nil
	default:
		return fmt.Errorf("%w: item %d (capacity %d)", ErrQueueFull, task.ItemID, cap(d.queue))
	}
}

// Depth reports the number of queued tasks.
func (d *Dispatcher) Depth() int {
	return len(d.queue)
}

// Capacity reports the queue bound.
func (d *Dispatcher) Capacity() int {
	return cap(d.queue)
}

// Scheduled reports whether itemID is queued or running.
func (d *Dispatcher) Scheduled(itemID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.scheduled[itemID]
	return ok
}

func (d *Dispatcher) worker(ctx context.Context, index int) {
	defer d.wg.Done()
	logger := d.logger.With(logging.Int("worker", index))
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-d.queue:
			if ctx.Err() != nil {
				return
			}
			d.run(ctx, logger, task)
		}
	}
}

// run executes task and then every follow-up for the same item. The item
// stays scheduled until nothing is left to run for it.
func (d *Dispatcher) run(ctx context.Context, logger *slog.Logger, task Task) {
	d.mu.Lock()
	d.active[task.ItemID] = struct{}{}
	d.mu.Unlock()
	for {
		next := d.execute(ctx, logger, task)
		follow, ok := d.advance(task.ItemID, next, ctx.Err() != nil)
		if !ok {
			return
		}
		logger.Debug("continuing with next step",
			logging.Int64(logging.FieldItemID, follow.ItemID),
			logging.String(logging.FieldStep, string(follow.Step)),
		)
		task = follow
	}
}

// advance picks the item's next task: the handler's follow-up first, then a
// task submitted while the item was running. With neither left the item is
// unscheduled.
func (d *Dispatcher) advance(itemID int64, next *Task, canceled bool) (Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !canceled {
		if next != nil {
			return *next, true
		}
		if held, ok := d.rerun[itemID]; ok {
			delete(d.rerun, itemID)
			return held, true
		}
	}
	delete(d.scheduled, itemID)
	delete(d.active, itemID)
	delete(d.rerun, itemID)
	return Task{}, false
}

func (d *Dispatcher) execute(ctx context.Context, logger *slog.Logger, task Task) *Task {
	token, ok, err := d.tokens.Acquire(ctx, task.ItemID)
	if err != nil {
		logger.Warn("execution token unavailable; step skipped",
			logging.Int64(logging.FieldItemID, task.ItemID),
			logging.String(logging.FieldStep, string(task.Step)),
			logging.String(logging.FieldEventType, "dispatch_token_error"),
			logging.String(logging.FieldErrorHint, "check redis connectivity"),
			logging.Error(err),
		)
		return nil
	}
	if !ok {
		logger.Debug("item held by another worker; step skipped",
			logging.Int64(logging.FieldItemID, task.ItemID),
			logging.String(logging.FieldStep, string(task.Step)),
		)
		return nil
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := d.tokens.Release(releaseCtx, token); err != nil {
			logger.Warn("execution token release failed",
				logging.Int64(logging.FieldItemID, task.ItemID),
				logging.String(logging.FieldEventType, "dispatch_token_release_failed"),
				logging.String(logging.FieldImpact, "item stays locked until the token expires"),
				logging.Error(err),
			)
		}
	}()
	return d.invoke(ctx, task)
}

func (d *Dispatcher) invoke(ctx context.Context, task Task) (next *Task) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		next = nil
		perr := &PanicError{Task: task, Value: recovered, Stack: debug.Stack()}
		if d.onPanic != nil {
			d.onPanic(ctx, task, perr)
			return
		}
		d.logger.Error("step panicked", logging.Error(perr))
	}()
	return d.handler(ctx, task)
}
