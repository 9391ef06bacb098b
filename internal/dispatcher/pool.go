package dispatcher

import (
	"context"
	"sync"
	"time"
)

// Pool runs jobs on a fixed number of workers fed by a bounded queue.
type Pool struct {
	jobs           chan func()
	acquireTimeout time.Duration
	wg             sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines. Submit waits up to acquireTimeout for
// queue space before giving up.
func NewPool(workers, queueSize int, acquireTimeout time.Duration) *Pool {
	if workers <= 0 {
		workers = 8
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{
		jobs:           make(chan func(), queueSize),
		acquireTimeout: acquireTimeout,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

// Submit queues job. It returns false when the pool is closed or stays full
// for longer than the acquire timeout.
func (p *Pool) Submit(job func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	select {
	case p.jobs <- job:
		return true
	default:
	}
	if p.acquireTimeout <= 0 {
		return false
	}
	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()
	select {
	case p.jobs <- job:
		return true
	case <-timer.C:
		return false
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
