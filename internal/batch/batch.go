// Package batch runs independent CAM jobs across a pool of workers. Each
// worker owns a queue and steals from its siblings when idle, so a slow
// board (a large Gerber, a dense clearing region) does not serialize the
// rest of the run.
package batch

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// Job is one unit of work, typically the full pipeline for one input
// file. Jobs must honor ctx cancellation at their own pass boundaries.
type Job func(ctx context.Context) error

// Pool is a fixed set of worker goroutines with per-worker queues and
// work stealing.
//
// Thread safety: Pool is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan task
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

type task struct {
	ctx context.Context
	fn  Job
	idx int
	err []error
	wg  *sync.WaitGroup
}

// New creates a pool with the given number of workers. Zero or negative
// means GOMAXPROCS. Workers start immediately.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	qlen := workers * 4
	if qlen < 8 {
		qlen = 8
	}

	p := &Pool{
		workers: workers,
		queues:  make([]chan task, workers),
		done:    make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan task, qlen)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	mine := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(mine)
			return
		case t := <-mine:
			t.run()
		default:
			if t, ok := p.steal(id); ok {
				t.run()
				continue
			}
			// Nothing to steal, block on the own queue.
			select {
			case <-p.done:
				p.drain(mine)
				return
			case t := <-mine:
				t.run()
			}
		}
	}
}

func (t task) run() {
	if t.fn == nil {
		return
	}
	defer t.wg.Done()
	if err := t.ctx.Err(); err != nil {
		t.err[t.idx] = err
		return
	}
	t.err[t.idx] = t.fn(t.ctx)
}

func (p *Pool) drain(q chan task) {
	for {
		select {
		case t := <-q:
			t.run()
		default:
			return
		}
	}
}

// steal takes one task from another worker's queue.
func (p *Pool) steal(myID int) (task, bool) {
	for i := 0; i < p.workers; i++ {
		if i == myID {
			continue
		}
		select {
		case t := <-p.queues[i]:
			return t, true
		default:
		}
	}
	return task{}, false
}

// Run executes all jobs and blocks until every one has finished or been
// skipped due to cancellation. The returned slice has one entry per job
// in input order; a job skipped after ctx was canceled reports ctx.Err().
// Running on a closed pool executes nothing and reports ErrClosed for
// each job.
func (p *Pool) Run(ctx context.Context, jobs []Job) []error {
	errs := make([]error, len(jobs))
	if len(jobs) == 0 {
		return errs
	}
	if !p.running.Load() {
		for i := range errs {
			errs[i] = ErrClosed
		}
		return errs
	}

	var wg sync.WaitGroup
	wg.Add(len(jobs))
	for i, fn := range jobs {
		t := task{ctx: ctx, fn: fn, idx: i, err: errs, wg: &wg}
		select {
		case p.queues[i%p.workers] <- t:
		case <-p.done:
			errs[i] = ErrClosed
			wg.Done()
		}
	}
	wg.Wait()
	return errs
}

// Close stops accepting work, finishes everything already queued and
// waits for the workers to exit. Safe to call more than once.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the pool size.
func (p *Pool) Workers() int {
	return p.workers
}

// errClosed is distinct from context errors so callers can tell a shut
// pool apart from a canceled run.
type errClosed struct{}

func (errClosed) Error() string { return "batch: pool is closed" }

// ErrClosed reports work submitted after Close.
var ErrClosed error = errClosed{}
