package pool

import (
	"context"
	"sync"

	"github.com/ajitpratap0/pulsar/pkg/driver"
	"github.com/ajitpratap0/pulsar/pkg/pulsarerrors"
)

// job is one unit of submitted work plus its completion callback.
// Exactly one worker executes a job exactly once; a job that never
// reaches a worker is completed with a cancellation or rejection error
// by the submitting side instead.
type job struct {
	run      func(driver.Handle) (any, error)
	complete func(val any, err error)
}

type outcome[T any] struct {
	val T
	err error
}

// Future is a deferred result handle fulfilled exactly once with a
// job's outcome. It supports single-producer (the executing worker)
// single-consumer (the submitter) handoff; concurrent Await calls are
// serialized and observe the same outcome.
type Future[T any] struct {
	ch chan outcome[T]

	mu   sync.Mutex
	done bool
	out  outcome[T]
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{ch: make(chan outcome[T], 1)}
}

// complete fulfills the future. The channel is buffered and each job
// has exactly one completing party, so this never blocks.
func (f *Future[T]) complete(val T, err error) {
	f.ch <- outcome[T]{val: val, err: err}
}

// Await blocks until the job's outcome is available or ctx expires.
// After the first successful Await the outcome is cached and returned
// to any further call.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.done {
		return f.out.val, f.out.err
	}

	select {
	case out := <-f.ch:
		f.done = true
		f.out = out
		return out.val, out.err
	case <-ctx.Done():
		var zero T
		return zero, pulsarerrors.Wrap(ctx.Err(), pulsarerrors.ErrorTypeTimeout, "await interrupted")
	}
}
