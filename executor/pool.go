package executor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/fogfish/opts"
	"github.com/gammazero/deque"
	"github.com/google/uuid"

	"github.com/webriots/futurelite"
)

// Pool is a fixed-size worker pool. Every worker owns a queue and is
// one executor context: Checkout on a worker captures that worker and
// Checkin queues the continuation back onto it, which gives task
// chains affinity to the worker they suspended on.
type Pool struct {
	name    string
	threads int
	logger  *slog.Logger
	io      futurelite.IOExecutor

	workers []*worker
	ids     *haxmap.Map[uint64, int] // goroutine id -> worker index
	next    atomic.Uint64
	closed  atomic.Bool
	wg      sync.WaitGroup
}

type worker struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  deque.Deque[func()]
	closed bool
}

// workerContext is the checkout token of a Pool.
type workerContext int

var (
	// Name sets the pool's name.
	Name = opts.ForName[Pool, string]("name")

	// Threads sets the number of workers. It defaults to GOMAXPROCS.
	Threads = opts.ForName[Pool, int]("threads")

	// Logger sets the logger worker panics are reported to.
	Logger = opts.ForName[Pool, *slog.Logger]("logger")

	// IO attaches an asynchronous I/O sink.
	IO = opts.ForName[Pool, futurelite.IOExecutor]("io")
)

// NewPool starts a pool. Workers run until Close.
func NewPool(options ...opts.Option[Pool]) (*Pool, error) {
	p := &Pool{
		name:    "pool-" + uuid.NewString()[:8],
		threads: runtime.GOMAXPROCS(0),
		logger:  slog.Default(),
	}
	if err := opts.Apply(p, options); err != nil {
		return nil, fmt.Errorf("executor: configure pool: %w", err)
	}
	if p.threads <= 0 {
		return nil, fmt.Errorf("executor: pool %s: threads must be positive, got %d", p.name, p.threads)
	}

	p.ids = haxmap.New[uint64, int]()
	p.workers = make([]*worker, p.threads)

	ready := make(chan struct{})
	p.wg.Add(p.threads)
	for i := range p.workers {
		w := new(worker)
		w.cond = sync.NewCond(&w.mu)
		p.workers[i] = w
		go p.run(i, w, ready)
	}
	for range p.workers {
		<-ready
	}

	p.logger.Debug("executor pool started", slog.String("executor", p.name), slog.Int("threads", p.threads))
	return p, nil
}

func (p *Pool) run(idx int, w *worker, ready chan<- struct{}) {
	defer p.wg.Done()

	id := futurelite.GoroutineID(context.Background())
	p.ids.Set(id, idx)
	defer p.ids.Del(id)
	ready <- struct{}{}

	for {
		w.mu.Lock()
		for w.queue.Len() == 0 && !w.closed {
			w.cond.Wait()
		}
		if w.queue.Len() == 0 {
			w.mu.Unlock()
			return
		}
		fn := w.queue.PopFront()
		w.mu.Unlock()

		p.invoke(idx, fn)
	}
}

func (p *Pool) invoke(idx int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("executor work panicked",
				slog.String("executor", p.name),
				slog.Int("worker", idx),
				slog.Any("panic", r),
			)
		}
	}()
	fn()
}

func (p *Pool) push(idx int, fn func(), front bool) bool {
	if p.closed.Load() {
		return false
	}

	w := p.workers[idx]
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	if front {
		w.queue.PushFront(fn)
	} else {
		w.queue.PushBack(fn)
	}
	w.mu.Unlock()
	w.cond.Signal()
	return true
}

func (p *Pool) current() (int, bool) {
	return p.ids.Get(futurelite.GoroutineID(context.Background()))
}

// Name implements futurelite.Executor.
func (p *Pool) Name() string {
	return p.name
}

// Schedule queues fn on the calling worker when called from one, and
// round-robin otherwise.
func (p *Pool) Schedule(fn func()) bool {
	idx, ok := p.current()
	if !ok {
		idx = int(p.next.Add(1) % uint64(len(p.workers)))
	}
	return p.push(idx, fn, false)
}

// CallLater schedules fn after d.
func (p *Pool) CallLater(fn func(), d time.Duration) futurelite.TimerHandle {
	if p.closed.Load() {
		return nil
	}
	return &timer{t: time.AfterFunc(d, func() { p.Schedule(fn) })}
}

// CurrentThreadInExecutor implements futurelite.Executor.
func (p *Pool) CurrentThreadInExecutor(ctx context.Context) bool {
	_, ok := p.ids.Get(futurelite.GoroutineID(ctx))
	return ok
}

// CurrentContextID returns the index of the worker running the caller.
// Off the pool it returns 0, the same as worker 0, so check
// CurrentThreadInExecutor first when the caller may be elsewhere.
func (p *Pool) CurrentContextID(ctx context.Context) uint64 {
	idx, _ := p.ids.Get(futurelite.GoroutineID(ctx))
	return uint64(idx)
}

// Checkout captures the calling worker. Off the pool it returns
// futurelite.NoContext.
func (p *Pool) Checkout() futurelite.Context {
	if idx, ok := p.current(); ok {
		return workerContext(idx)
	}
	return futurelite.NoContext
}

// Checkin queues fn on the worker captured by Checkout.
func (p *Pool) Checkin(fn func(), c futurelite.Context, o futurelite.ScheduleOptions) bool {
	idx, ok := c.(workerContext)
	if !ok || int(idx) < 0 || int(idx) >= len(p.workers) {
		return p.Schedule(fn)
	}
	return p.push(int(idx), fn, o.Prompt)
}

// IOExecutor implements futurelite.IOProvider.
func (p *Pool) IOExecutor() futurelite.IOExecutor {
	return p.io
}

// Threads returns the number of workers.
func (p *Pool) Threads() int {
	return p.threads
}

// Close rejects new work, lets the workers drain what is queued and
// waits for them to exit. Calling Close from a worker deadlocks.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	for _, w := range p.workers {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		w.cond.Broadcast()
	}
	p.wg.Wait()

	p.logger.Debug("executor pool stopped", slog.String("executor", p.name))
	return nil
}

type timer struct {
	t *time.Timer
}

func (t *timer) Cancel() bool {
	return t.t.Stop()
}
