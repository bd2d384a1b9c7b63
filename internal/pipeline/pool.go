// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"runtime"
	"sync"

	"shroud/internal/report"
	"shroud/internal/scan"
)

// MaxDefaultWorkers caps the worker count picked from the CPU count
const MaxDefaultWorkers = 8

// DefaultWorkers returns runtime.NumCPU() capped at MaxDefaultWorkers
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n > MaxDefaultWorkers {
		n = MaxDefaultWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ProcessFunc handles one target
type ProcessFunc func(ctx context.Context, target scan.ScanTarget) report.FileResult

// Job is one queued target. Seq is its position in walk order.
type Job struct {
	Seq    int
	Target scan.ScanTarget
}

// Result pairs a file result with the job sequence number
type Result struct {
	Seq    int
	Result report.FileResult
}

// WorkerPool runs a fixed number of workers over submitted jobs
type WorkerPool struct {
	workers int
	process ProcessFunc
	jobs    chan Job
	results chan Result
	wg      sync.WaitGroup
}

// NewWorkerPool creates a pool. Workers below 1 use DefaultWorkers.
func NewWorkerPool(workers int, process ProcessFunc) *WorkerPool {
	if workers < 1 {
		workers = DefaultWorkers()
	}
	return &WorkerPool{
		workers: workers,
		process: process,
		jobs:    make(chan Job, workers*2),
		results: make(chan Result, workers*2),
	}
}

// Workers returns the worker count
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// Start launches the workers. Once ctx is cancelled, queued jobs are dropped
// without processing; a job already in progress runs to completion or abort.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx)
	}
}

func (wp *WorkerPool) worker(ctx context.Context) {
	defer wp.wg.Done()
	for job := range wp.jobs {
		if ctx.Err() != nil {
			continue
		}
		wp.results <- Result{Seq: job.Seq, Result: wp.process(ctx, job.Target)}
	}
}

// Submit queues a job. It returns false when ctx is done first.
func (wp *WorkerPool) Submit(ctx context.Context, job Job) bool {
	select {
	case wp.jobs <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

// Emit sends a result that needed no processing, such as a walk fault
func (wp *WorkerPool) Emit(r Result) {
	wp.results <- r
}

// Results returns the results channel. It is closed after Close once every
// worker has finished.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.results
}

// Close stops accepting jobs and closes Results once the workers drain
func (wp *WorkerPool) Close() {
	close(wp.jobs)
	go func() {
		wp.wg.Wait()
		close(wp.results)
	}()
}
