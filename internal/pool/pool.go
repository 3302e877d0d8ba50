package pool

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"
)

// CodeTimeout marks a task that exceeded its wall-clock budget.
const CodeTimeout = "TIMEOUT"

var ErrPoolClosed = errors.New("worker pool is closed")

// Task is one conversion invocation. Run must honor ctx cancellation;
// conversions are CPU-bound so each execution unit runs one task at a time.
type Task struct {
	Format string
	Run    func(ctx context.Context) ([]byte, error)
}

// Result is the tagged outcome of a task. A failure inside a task never
// surfaces as an error from Submit; it always arrives here so one bad task
// cannot corrupt caller error handling.
type Result struct {
	OK         bool
	Output     []byte
	ErrMessage string
	ErrCode    string
}

// coder lets converter errors carry a machine-readable code across the
// pool boundary without the pool importing the converter package.
type coder interface {
	ErrorCode() string
}

// Config holds the pool sizing knobs.
type Config struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	TaskTimeout time.Duration
	IdleTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = runtime.NumCPU()
	}
	if c.MinWorkers <= 0 {
		c.MinWorkers = 2
	}
	if c.MinWorkers > c.MaxWorkers {
		c.MinWorkers = c.MaxWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = 5 * time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Second
	}
	return c
}

// Stats is a point-in-time snapshot for the status endpoint.
type Stats struct {
	MinWorkers int           `json:"min_workers"`
	MaxWorkers int           `json:"max_workers"`
	Workers    int           `json:"workers"`
	Busy       int           `json:"busy"`
	QueueDepth int           `json:"queue_depth"`
	Timeout    time.Duration `json:"task_timeout"`
}

// Pool is a bounded set of execution units consuming a FIFO queue.
type Pool struct {
	cfg   Config
	queue chan item
	done  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	workers int
	busy    int
	closed  bool
}

type item struct {
	ctx  context.Context
	task Task
	res  chan Result
}

// New builds a pool and starts MinWorkers units.
func New(cfg Config) *Pool {
	cfg = cfg.withDefaults()
	p := &Pool{
		cfg:   cfg,
		queue: make(chan item, cfg.QueueSize),
		done:  make(chan struct{}),
	}
	p.mu.Lock()
	for i := 0; i < cfg.MinWorkers; i++ {
		p.spawnLocked()
	}
	p.mu.Unlock()
	return p
}

// Submit enqueues the task and waits for its tagged result. The returned
// error is reserved for pool-level failure (closed pool, caller context
// cancelled); everything that happens inside the task comes back as a
// Result with OK=false.
func (p *Pool) Submit(ctx context.Context, t Task) (Result, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Result{}, ErrPoolClosed
	}
	if p.workers-p.busy == 0 && p.workers < p.cfg.MaxWorkers {
		p.spawnLocked()
	}
	p.mu.Unlock()

	it := item{ctx: ctx, task: t, res: make(chan Result, 1)}
	select {
	case p.queue <- it:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-p.done:
		return Result{}, ErrPoolClosed
	}

	select {
	case r := <-it.res:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-p.done:
		// Prefer a result that raced with shutdown.
		select {
		case r := <-it.res:
			return r, nil
		default:
			return Result{}, ErrPoolClosed
		}
	}
}

// Stats returns a snapshot of pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		MinWorkers: p.cfg.MinWorkers,
		MaxWorkers: p.cfg.MaxWorkers,
		Workers:    p.workers,
		Busy:       p.busy,
		QueueDepth: len(p.queue),
		Timeout:    p.cfg.TaskTimeout,
	}
}

// Close stops accepting work and waits for the units to exit. Abandoned
// (hung) task goroutines are not waited for.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()
}

func (p *Pool) spawnLocked() {
	p.workers++
	p.wg.Add(1)
	go p.worker()
}

// worker decrements p.workers in the same critical section as whatever
// decided it should exit, so the count never transiently understates the
// live units (two idle workers racing past the MinWorkers check could
// otherwise both retire).
func (p *Pool) worker() {
	defer p.wg.Done()

	idle := time.NewTimer(p.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case it := <-p.queue:
			abandoned := p.execute(it)
			if abandoned {
				// The unit that timed out is discarded so a hung converter
				// cannot permanently consume capacity; a fresh one takes
				// its place.
				p.mu.Lock()
				p.workers--
				if !p.closed {
					p.spawnLocked()
				}
				p.mu.Unlock()
				return
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(p.cfg.IdleTimeout)
		case <-idle.C:
			p.mu.Lock()
			if p.workers > p.cfg.MinWorkers {
				p.workers--
				p.mu.Unlock()
				return
			}
			p.mu.Unlock()
			idle.Reset(p.cfg.IdleTimeout)
		case <-p.done:
			p.mu.Lock()
			p.workers--
			p.mu.Unlock()
			return
		}
	}
}

// execute runs one task under the wall-clock budget. It reports whether
// the task was abandoned on timeout, in which case the calling unit must
// retire itself.
func (p *Pool) execute(it item) (abandoned bool) {
	p.mu.Lock()
	p.busy++
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.busy--
		p.mu.Unlock()
	}()

	if err := it.ctx.Err(); err != nil {
		it.res <- Result{OK: false, ErrMessage: err.Error()}
		return false
	}

	tctx, cancel := context.WithTimeout(it.ctx, p.cfg.TaskTimeout)
	defer cancel()

	out := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				out <- Result{OK: false, ErrMessage: fmt.Sprintf("task panic: %v", r)}
			}
		}()
		b, err := it.task.Run(tctx)
		if err != nil {
			out <- resultFromError(err)
			return
		}
		out <- Result{OK: true, Output: b}
	}()

	select {
	case r := <-out:
		it.res <- r
		return false
	case <-tctx.Done():
		if errors.Is(tctx.Err(), context.DeadlineExceeded) && it.ctx.Err() == nil {
			log.Printf("[pool] task %s exceeded %s budget, discarding unit", it.task.Format, p.cfg.TaskTimeout)
			it.res <- Result{
				OK:         false,
				ErrMessage: fmt.Sprintf("conversion exceeded the %s time limit", p.cfg.TaskTimeout),
				ErrCode:    CodeTimeout,
			}
			return true
		}
		it.res <- Result{OK: false, ErrMessage: it.ctx.Err().Error()}
		return false
	}
}

func resultFromError(err error) Result {
	r := Result{OK: false, ErrMessage: err.Error()}
	var c coder
	if errors.As(err, &c) {
		r.ErrCode = c.ErrorCode()
	}
	return r
}
