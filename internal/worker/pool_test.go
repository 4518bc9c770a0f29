package worker

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestPoolRunsSubmittedJobs(t *testing.T) {
	p := NewPool(3, 8)
	defer p.Close()

	var ran int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		if err := p.Submit(func() {
			atomic.AddInt64(&ran, 1)
			wg.Done()
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()
	if got := atomic.LoadInt64(&ran); got != 20 {
		t.Fatalf("expected 20 jobs to run, got %d", got)
	}
}

func TestPoolSubmitAfterClose(t *testing.T) {
	p := NewPool(1, 1)
	p.Close()
	if err := p.Submit(func() {}); err != ErrPoolClosed {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestPoolCloseWaitsForInflight(t *testing.T) {
	p := NewPool(2, 4)
	var done int64
	for i := 0; i < 6; i++ {
		if err := p.Submit(func() { atomic.AddInt64(&done, 1) }); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	p.Close()
	if got := atomic.LoadInt64(&done); got != 6 {
		t.Fatalf("Close returned before all jobs finished: %d of 6", got)
	}
}

func TestPoolCloseIdempotent(t *testing.T) {
	p := NewPool(1, 1)
	p.Close()
	p.Close()
}
