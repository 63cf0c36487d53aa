// Package workpool runs delivery simulations and resume attempts on a fixed
// number of workers fed by an unbounded FIFO queue, and hosts the long-lived
// per-vehicle charge cycles alongside them.
package workpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/medfleet/core/logger"
	"github.com/kilianp07/medfleet/core/monitoring"
)

// DefaultWorkers is used when New is given a non-positive worker count.
const DefaultWorkers = 10

// ErrClosed is returned when work is submitted after Close.
var ErrClosed = errors.New("workpool: closed")

// Job is a unit of work. The context is canceled when the pool shuts down.
type Job func(ctx context.Context)

// Pool is a bounded worker pool. Submit never blocks the caller, so a job may
// safely submit follow-up work from inside a worker.
type Pool struct {
	log logger.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Job
	closed bool

	ctx     context.Context
	cancel  context.CancelFunc
	g       *errgroup.Group
	workers sync.WaitGroup
}

// New starts a pool with the given number of workers.
func New(workers int, log logger.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	base, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(base)
	p := &Pool{log: log, ctx: ctx, cancel: cancel, g: g}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < workers; i++ {
		p.workers.Add(1)
		g.Go(func() error {
			defer p.workers.Done()
			p.work()
			return nil
		})
	}
	return p
}

// Submit enqueues a short-lived job for the workers.
func (p *Pool) Submit(j Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.queue = append(p.queue, j)
	p.cond.Signal()
	return nil
}

// Go runs a long-lived job outside the bounded workers. It is used for charge
// cycles, which must not starve deliveries of worker slots.
func (p *Pool) Go(j Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.g.Go(func() error {
		p.run(j)
		return nil
	})
	return nil
}

// Pending returns the number of queued jobs not yet picked up by a worker.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Close stops accepting work and waits for the queue to drain until ctx is
// done. The pool context is then canceled, which ends charge cycles and
// interrupts jobs still waiting on the clock.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.workers.Wait()
		close(drained)
	}()
	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
	}
	p.cancel()
	_ = p.g.Wait()
	return err
}

func (p *Pool) work() {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		j := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()
		p.run(j)
	}
}

// run executes j and keeps a panicking job from taking the worker down.
func (p *Pool) run(j Job) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.CaptureException(fmt.Errorf("job panicked: %v", r), map[string]string{"component": "workpool"})
			if p.log != nil {
				p.log.Errorf("job panicked: %v", r)
			}
		}
	}()
	j(p.ctx)
}
