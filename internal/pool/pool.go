// Package pool provides a reusable worker pool for batch operations
// over many recordings, such as dataset scans and telemetry extraction.
package pool

import (
	"runtime"
	"sync"
)

// WorkerPool manages job distribution across multiple workers and
// collects their results.
type WorkerPool[Job any, Result any] struct {
	numWorkers int
	jobs       chan Job
	results    chan Result
	wg         sync.WaitGroup
}

// New creates a worker pool with the specified number of workers.
// If numWorkers is 0 or negative, it defaults to the CPU count.
// If numJobs is less than numWorkers, the pool is sized to match numJobs.
func New[Job any, Result any](numWorkers, numJobs int) *WorkerPool[Job, Result] {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numJobs > 0 {
		numWorkers = min(numWorkers, numJobs)
	}

	return &WorkerPool[Job, Result]{
		numWorkers: numWorkers,
		jobs:       make(chan Job, numJobs),
		results:    make(chan Result, numJobs),
	}
}

// Start begins the workers with the provided worker function. The
// function is called once per submitted job.
func (p *WorkerPool[Job, Result]) Start(workerFn func(Job) Result) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.results <- workerFn(job)
			}
		}()
	}
}

// Submit adds a job to the pool's queue.
func (p *WorkerPool[Job, Result]) Submit(job Job) {
	p.jobs <- job
}

// Close closes the job queue and, once all workers have drained it,
// closes the results channel.
func (p *WorkerPool[Job, Result]) Close() {
	close(p.jobs)
	go func() {
		p.wg.Wait()
		close(p.results)
	}()
}

// Results returns the channel results are delivered on. It is closed
// after Close once every worker has finished.
func (p *WorkerPool[Job, Result]) Results() <-chan Result {
	return p.results
}

// Map runs workerFn over every job using up to numWorkers workers and
// returns the results in completion order.
func Map[Job any, Result any](numWorkers int, jobs []Job, workerFn func(Job) Result) []Result {
	p := New[Job, Result](numWorkers, len(jobs))
	p.Start(workerFn)
	for _, job := range jobs {
		p.Submit(job)
	}
	p.Close()

	results := make([]Result, 0, len(jobs))
	for r := range p.Results() {
		results = append(results, r)
	}
	return results
}
