package worker

import (
	"errors"
	"sync"
)

// Job is one unit of background work.
type Job func()

// Pool runs jobs on a fixed set of workers. It serves the knowledge rebuild
// embedding fan-out and the periodic asset sweep; request handling never
// goes through it.
type Pool struct {
	jobs    chan Job
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	workers int
}

var ErrPoolClosed = errors.New("worker pool closed")

// NewPool starts a pool with the given worker count and queue size.
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	p := &Pool{
		jobs:    make(chan Job, queueSize),
		workers: workers,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for job := range p.jobs {
		if job != nil {
			job()
		}
	}
}

// Submit enqueues a job, blocking while the queue is full. The lock is held
// across the send so Close cannot close the channel under a blocked sender.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.jobs <- job
	return nil
}

// Close stops accepting jobs and waits for in-flight work to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
