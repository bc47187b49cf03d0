// Copyright 2018 The Kura Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bridge runs backend operations on a pool of worker goroutines on
// behalf of callers that must block until the result is available.
//
// The kernel hands every request to a dispatch goroutine that expects an
// answer before it returns. Run gives such a caller a synchronous view of a
// backend operation while the operation itself executes on the executor's
// workers. Callers must be foreign to the pool: an operation that calls Run
// on its own executor could occupy every worker while waiting for a job none
// of them is free to start, so such calls are rejected with ErrReentrant.
package bridge

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrClosed is returned by Run once the executor has been closed.
	ErrClosed = errors.New("bridge: executor closed")

	// ErrReentrant is returned by Run when called from an operation running
	// on the same executor.
	ErrReentrant = errors.New("bridge: run called from a worker of the same executor")
)

// PanicError is returned by Run when the operation panicked.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("bridge: operation panicked: %v", p.Value)
}

type workerKey struct{}

// Executor is a fixed size pool of worker goroutines.
type Executor struct {
	jobs chan func()

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	workers int
	queued  prometheus.Gauge
	running prometheus.Gauge
}

// Option configures an Executor.
type Option func(*Executor)

// WithRegisterer registers the executor's queue gauges with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Executor) {
		reg.MustRegister(e.queued, e.running)
	}
}

// NewExecutor starts an executor with the given number of workers, or one per
// CPU if workers is not positive.
func NewExecutor(workers int, opts ...Option) *Executor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	e := &Executor{
		jobs:    make(chan func(), workers),
		workers: workers,
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "asyncfs",
			Subsystem: "bridge",
			Name:      "queued_operations",
			Help:      "Operations submitted but not yet picked up by a worker.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "asyncfs",
			Subsystem: "bridge",
			Name:      "running_operations",
			Help:      "Operations currently executing on a worker.",
		}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.work()
	}
	return e
}

func (e *Executor) work() {
	defer e.wg.Done()
	for job := range e.jobs {
		e.queued.Dec()
		e.running.Inc()
		job()
		e.running.Dec()
	}
}

// Workers returns the size of the pool.
func (e *Executor) Workers() int {
	return e.workers
}

// Close stops accepting operations, lets the ones already submitted run to
// completion and waits for the workers to exit. It is safe to call more than
// once.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.jobs)
	e.mu.Unlock()

	e.wg.Wait()
}

// submit hands job to the pool. The read lock keeps Close from closing the
// channel while a send is pending.
func (e *Executor) submit(job func()) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return ErrClosed
	}
	e.queued.Inc()
	e.jobs <- job
	return nil
}

type result[T any] struct {
	val T
	err error
}

// Run executes op on one of e's workers and blocks until it returns. The
// context handed to op carries a marker identifying e; Run refuses to execute
// when ctx already carries it. ctx is not used to abandon op early: once
// submitted, the operation runs to completion and the caller waits for it.
func Run[T any](ctx context.Context, e *Executor, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if owner, ok := ctx.Value(workerKey{}).(*Executor); ok && owner == e {
		return zero, ErrReentrant
	}

	done := make(chan result[T], 1)
	wctx := context.WithValue(ctx, workerKey{}, e)
	job := func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result[T]{err: &PanicError{Value: r, Stack: debug.Stack()}}
			}
		}()
		val, err := op(wctx)
		done <- result[T]{val: val, err: err}
	}
	if err := e.submit(job); err != nil {
		return zero, err
	}

	r := <-done
	return r.val, r.err
}
