package threadpool

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Task is a unit of work executed exactly once on some worker.
type Task interface {
	Execute(wd *WorkerData)
}

// FollowUpper is implemented by tasks that chain another task after running.
type FollowUpper interface {
	FollowUp() Task
}

// WorkerData is per-worker scratch state handed to every task the worker runs.
type WorkerData struct {
	ID   int
	Pool *Pool

	bits []uint64
}

// Bits returns a zeroed bitset of at least n bits, reused across tasks on
// the same worker.
func (wd *WorkerData) Bits(n int) []uint64 {
	words := (n + 63) / 64
	if cap(wd.bits) < words {
		wd.bits = make([]uint64, words)
	}
	wd.bits = wd.bits[:words]
	clear(wd.bits)
	return wd.bits
}

// Config configures a Pool.
type Config struct {
	Workers   int
	QueueSize int
	Logger    *zap.Logger
	// OnComplete, if set, is called on the worker after each task.
	OnComplete func(Task)
}

// Pool runs tasks on a fixed set of goroutines.
type Pool struct {
	queue      chan Task
	workers    int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	log        *zap.Logger
	onComplete func(Task)

	executed atomic.Uint64
	inline   atomic.Uint64
}

// New creates a pool and starts its workers.
func New(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 16
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:      make(chan Task, cfg.QueueSize),
		workers:    cfg.Workers,
		ctx:        ctx,
		cancel:     cancel,
		log:        cfg.Logger,
		onComplete: cfg.OnComplete,
	}
	for i := range cfg.Workers {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Debug("thread pool started", zap.Int("workers", cfg.Workers), zap.Int("queue", cfg.QueueSize))
	return p
}

// Submit queues a task. It returns false if the queue is full or the pool
// is shut down.
func (p *Pool) Submit(t Task) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case p.queue <- t:
		return true
	default:
		return false
	}
}

// SubmitBlocking queues a task, waiting for room until ctx or the pool ends.
func (p *Pool) SubmitBlocking(ctx context.Context, t Task) error {
	select {
	case p.queue <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	wd := &WorkerData{ID: id, Pool: p}
	for {
		select {
		case t := <-p.queue:
			p.run(wd, t)
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) run(wd *WorkerData, t Task) {
	for t != nil {
		t.Execute(wd)
		p.executed.Add(1)
		if p.onComplete != nil {
			p.onComplete(t)
		}
		f, ok := t.(FollowUpper)
		if !ok {
			return
		}
		next := f.FollowUp()
		if next == nil || p.Submit(next) {
			return
		}
		// queue full: run the follow-up here rather than drop it
		p.inline.Add(1)
		t = next
	}
}

// RunBatch executes tasks concurrently, at most one per worker at a time,
// and waits for all of them and their follow-ups. It does not use the queue.
func (p *Pool) RunBatch(ctx context.Context, tasks []Task) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	var ids atomic.Int32
	for _, t := range tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			wd := &WorkerData{ID: int(ids.Add(1)) - 1, Pool: p}
			for t != nil {
				t.Execute(wd)
				p.executed.Add(1)
				if p.onComplete != nil {
					p.onComplete(t)
				}
				f, ok := t.(FollowUpper)
				if !ok {
					break
				}
				t = f.FollowUp()
			}
			return nil
		})
	}
	return g.Wait()
}

// Shutdown stops the workers. Queued tasks that have not started are dropped.
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
	p.log.Debug("thread pool stopped",
		zap.Uint64("executed", p.executed.Load()),
		zap.Uint64("inline_followups", p.inline.Load()))
}

// QueueLength returns the number of tasks waiting for a worker.
func (p *Pool) QueueLength() int { return len(p.queue) }

// Executed returns how many tasks have run, follow-ups included.
func (p *Pool) Executed() uint64 { return p.executed.Load() }

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int { return p.workers }
