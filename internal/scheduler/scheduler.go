package scheduler

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/snowdamiz/meshcore/internal/heap"
	"github.com/snowdamiz/meshcore/internal/logging"
)

// DefaultCoroutineStackSize is the fixed "stack" allocation given to each
// process (§4.B: spawn allocates its coroutine stack, fixed 64 KiB). Go
// goroutines grow their own real stacks dynamically; stackMem exists purely
// to give StackBase a genuine, stable address per process.
const DefaultCoroutineStackSize = 64 * 1024

// DefaultStackHeapThreshold is the default per-actor heap GC threshold
// (§4.A), used when Config.HeapThreshold is left zero.
const DefaultStackHeapThreshold = heap.DefaultGCThreshold

// Config configures a Scheduler.
type Config struct {
	// Workers is the number of OS-thread-backed workers running
	// coroutines in parallel. Defaults to runtime.GOMAXPROCS(0) when
	// zero.
	Workers int

	// HeapThreshold overrides the per-actor heap GC threshold new
	// processes are created with.
	HeapThreshold uint64
}

// Option is a functional option for Scheduler construction.
type Option func(*Config)

// WithWorkers overrides the worker pool size.
func WithWorkers(n int) Option {
	return func(c *Config) { c.Workers = n }
}

// WithHeapThreshold overrides the default per-actor GC threshold.
func WithHeapThreshold(bytes uint64) Option {
	return func(c *Config) { c.HeapThreshold = bytes }
}

// readyQueue is the scheduler's run queue: a plain slice protected by a
// mutex, with a sync.Cond used to park workers when it's empty rather than
// have them spin.
type readyQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*Process
	closed bool
}

func newReadyQueue() *readyQueue {
	q := &readyQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *readyQueue) push(p *Process) {
	q.mu.Lock()
	q.items = append(q.items, p)
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks until a process is ready to run or the queue is closed, in
// which case it returns (nil, false).
func (q *readyQueue) pop() (*Process, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}

	if len(q.items) == 0 {
		return nil, false
	}

	p := q.items[0]
	q.items = q.items[1:]
	return p, true
}

func (q *readyQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *readyQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Scheduler is an M:N cooperative scheduler: a fixed pool of worker
// goroutines, each running at most one process at a time and never
// preempting it (§4.B, §5).
type Scheduler struct {
	cfg Config
	log *slog.Logger

	ready *readyQueue

	mu      sync.Mutex
	procs   map[Pid]*Process
	nextPid uint64

	workerWg sync.WaitGroup
	stopped  atomic.Bool

	gcHook atomic.Value // *GCHook
}

// New creates a Scheduler and starts its worker pool. Callers must call
// Stop to release the workers.
func New(opts ...Option) *Scheduler {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	if cfg.HeapThreshold == 0 {
		cfg.HeapThreshold = DefaultStackHeapThreshold
	}

	s := &Scheduler{
		cfg:   cfg,
		log:   logging.NewSubsystemLogger("SCHD"),
		ready: newReadyQueue(),
		procs: make(map[Pid]*Process),
	}

	s.workerWg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go s.workerLoop()
	}

	return s
}

// SetGCHook installs the callback invoked by ReductionCheck when a
// process's reduction budget is exhausted. Typically wired to
// gc.TryTrigger by the actor system that owns this scheduler.
func (s *Scheduler) SetGCHook(hook GCHook) {
	s.gcHook.Store(&hook)
}

// WorkerCount returns the number of parallel workers in the pool.
func (s *Scheduler) WorkerCount() int { return s.cfg.Workers }

// ReadyQueueDepth returns the number of processes currently waiting to be
// run, for telemetry consumers (internal/devserver).
func (s *Scheduler) ReadyQueueDepth() int { return s.ready.depth() }

// ProcessCount returns the number of processes the scheduler currently
// knows about, live or waiting.
func (s *Scheduler) ProcessCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

// Spawn creates a new process running body and pushes it onto the ready
// queue. body receives the Process so it can yield, check reductions, or
// read its Pid. The process's body goroutine is independent of the worker
// pool's own goroutines: it blocks on resumeCh until a worker swaps it in,
// so Stop does not wait on still-running actor bodies.
func (s *Scheduler) Spawn(body func(p *Process)) *Process {
	s.mu.Lock()
	s.nextPid++
	pid := Pid(s.nextPid)
	s.mu.Unlock()

	p := &Process{
		Pid:       pid,
		Heap:      heap.NewActorHeap(heap.WithThreshold(s.cfg.HeapThreshold)),
		state:     StateReady,
		resumeCh:  make(chan struct{}),
		yieldCh:   make(chan yieldReason),
		reduction: DefaultReductions,
		sched:     s,
		stackMem:  make([]byte, DefaultCoroutineStackSize),
	}
	p.StackBase = uintptr(unsafe.Pointer(&p.stackMem[0]))

	s.mu.Lock()
	s.procs[pid] = p
	s.mu.Unlock()

	go func() {
		<-p.resumeCh
		body(p)
		p.setState(StateExited)
		p.yieldCh <- yieldExited
	}()

	s.log.Debug("spawned process", "pid", pid)
	s.ready.push(p)

	return p
}

// Lookup returns the process for pid, if it still exists.
func (s *Scheduler) Lookup(pid Pid) (*Process, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.procs[pid]
	return p, ok
}

// Wake transitions a Waiting process back to Ready and re-enqueues it. It is
// a no-op if the process is not currently Waiting (e.g. it already woke via
// a race with a timer, or it already exited).
func (s *Scheduler) Wake(pid Pid) {
	p, ok := s.Lookup(pid)
	if !ok {
		return
	}

	if p.compareAndSetState(StateWaiting, StateReady) {
		s.ready.push(p)
	}
}

// workerLoop is the dispatch loop for one worker: pop a Ready process, swap
// it in, block until it yields or exits, and react accordingly. No two
// workers ever run the same process concurrently, and a worker runs exactly
// one process's body at a time (§4.B, §5).
func (s *Scheduler) workerLoop() {
	defer s.workerWg.Done()

	for {
		p, ok := s.ready.pop()
		if !ok {
			return
		}

		if !p.compareAndSetState(StateReady, StateRunning) {
			// Lost a race (e.g. process already exited); skip.
			continue
		}

		p.resumeCh <- struct{}{}
		reason := <-p.yieldCh

		switch reason {
		case yieldExited:
			s.mu.Lock()
			delete(s.procs, p.Pid)
			s.mu.Unlock()

		case yieldWaiting:
			// The process itself transitioned to Waiting before
			// yielding; it re-enters the ready queue only via
			// Wake.

		case yieldVoluntary:
			if p.State() == StateReady {
				s.ready.push(p)
			}
		}
	}
}

// Stop closes the ready queue and waits for every worker to exit. Processes
// still Waiting or Running are left as parked/blocked goroutines; the
// scheduler does not force-terminate actor bodies. Callers should ensure no
// actor is parked forever before stopping in production use.
func (s *Scheduler) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}

	s.ready.close()
	s.workerWg.Wait()
}
