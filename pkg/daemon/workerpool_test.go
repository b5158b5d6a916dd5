package daemon

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestWorkerPoolRunsAllAndReturnsFirstError(t *testing.T) {
	p := NewWorkerPool(2)
	var completed int32
	errBoom := errors.New("boom")

	err := p.Run(
		func() error { atomic.AddInt32(&completed, 1); return nil },
		func() error { atomic.AddInt32(&completed, 1); return errBoom },
		func() error { atomic.AddInt32(&completed, 1); return nil },
	)
	if !errors.Is(err, errBoom) {
		t.Fatalf("Run() error = %v, want %v", err, errBoom)
	}
	if completed != 3 {
		t.Fatalf("completed = %d, want 3 (all subtasks must run to completion)", completed)
	}
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	p := NewWorkerPool(1)
	var concurrent, maxConcurrent int32
	tasks := make([]func() error, 4)
	for i := range tasks {
		tasks[i] = func() error {
			n := atomic.AddInt32(&concurrent, 1)
			for {
				old := atomic.LoadInt32(&maxConcurrent)
				if n <= old || atomic.CompareAndSwapInt32(&maxConcurrent, old, n) {
					break
				}
			}
			atomic.AddInt32(&concurrent, -1)
			return nil
		}
	}
	if err := p.Run(tasks...); err != nil {
		t.Fatal(err)
	}
	if maxConcurrent > 1 {
		t.Errorf("maxConcurrent = %d, want <= 1", maxConcurrent)
	}
}
