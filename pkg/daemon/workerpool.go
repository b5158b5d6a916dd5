package daemon

import "golang.org/x/sync/errgroup"

// WorkerPool bounds the number of chunk subtasks running
// concurrently, keeping slow disk I/O from monopolizing the process
// while incoming RPC handlers keep their own goroutines. It serves
// the "submit a known batch of homogeneous subtasks, wait for all,
// collect the first error" shape every data-plane handler needs.
type WorkerPool struct {
	sem chan struct{}
}

// NewWorkerPool returns a WorkerPool allowing at most n subtasks to
// run concurrently across all requests sharing this pool.
func NewWorkerPool(n int) *WorkerPool {
	if n <= 0 {
		n = DefaultNumWorkers
	}
	return &WorkerPool{sem: make(chan struct{}, n)}
}

// Run executes each of tasks, bounded by the pool's concurrency
// limit, and returns the first error encountered (if any), only
// after every task has completed, so callers can safely reclaim
// per-task resources.
func (p *WorkerPool) Run(tasks ...func() error) error {
	var g errgroup.Group
	for _, task := range tasks {
		task := task
		p.sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-p.sem }()
			return task()
		})
	}
	return g.Wait()
}
