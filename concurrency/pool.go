// Package concurrency provides the bounded worker pool used for bulk
// plugin work such as restoring mounts at startup.
package concurrency

import (
	"context"
	"fmt"
	"sync"
)

// Job is one unit of work.
type Job interface {
	Execute(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context) error

func (f JobFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Result pairs a job's position in the submitted batch with its error.
type Result struct {
	Index int
	Err   error
}

// WorkerPool runs submitted jobs on a fixed number of goroutines.
type WorkerPool struct {
	size    int
	jobs    chan indexedJob
	results chan Result
	wg      sync.WaitGroup
	once    sync.Once
}

type indexedJob struct {
	index int
	job   Job
}

// NewWorkerPool creates a pool with size workers. size < 1 is treated as 1.
func NewWorkerPool(size int) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan indexedJob),
		results: make(chan Result),
	}
}

// Start launches the workers. Jobs observe ctx; a cancelled ctx makes the
// remaining jobs fail with ctx.Err() without running.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for ij := range p.jobs {
				p.results <- Result{Index: ij.index, Err: run(ctx, ij.job)}
			}
		}()
	}
	go func() {
		p.wg.Wait()
		close(p.results)
	}()
}

func run(ctx context.Context, job Job) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Execute(ctx)
}

// Submit blocks until a worker takes the job.
func (p *WorkerPool) Submit(index int, job Job) {
	p.jobs <- indexedJob{index: index, job: job}
}

// Close stops accepting jobs. Results is closed once running jobs finish.
func (p *WorkerPool) Close() {
	p.once.Do(func() { close(p.jobs) })
}

// Results streams one Result per submitted job.
func (p *WorkerPool) Results() <-chan Result {
	return p.results
}

// RunAll executes jobs with at most size running at once and returns their
// errors in submission order.
func RunAll(ctx context.Context, size int, jobs []Job) []error {
	errs := make([]error, len(jobs))
	if len(jobs) == 0 {
		return errs
	}
	if size > len(jobs) {
		size = len(jobs)
	}

	pool := NewWorkerPool(size)
	pool.Start(ctx)
	go func() {
		for i, job := range jobs {
			pool.Submit(i, job)
		}
		pool.Close()
	}()

	for res := range pool.Results() {
		errs[res.Index] = res.Err
	}
	return errs
}
