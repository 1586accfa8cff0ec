package pool

import (
	"sync"
	"time"

	"github.com/ajitpratap0/pulsar/pkg/config"
	"github.com/ajitpratap0/pulsar/pkg/metrics"
	"github.com/ajitpratap0/pulsar/pkg/pulsarerrors"
)

// channel is the single synchronization point of the pool: it owns the
// pending-job queue and the registry of workers. One mutex protects the
// whole structure; idle workers block on per-worker handoff channels
// rather than a condition variable so that dequeue can race an idle
// timeout without losing jobs.
type channel struct {
	cfg  *config.Config
	coll *metrics.Collector

	// spawn starts a new worker. It is invoked with mu held and must
	// not block.
	spawn func()

	mu      sync.Mutex
	queue   []*job
	waiters []chan *job
	running int
	closed  bool
	stopped chan struct{}
}

func newChannel(cfg *config.Config, coll *metrics.Collector) *channel {
	return &channel{
		cfg:     cfg,
		coll:    coll,
		stopped: make(chan struct{}),
	}
}

// enqueue appends a job or hands it directly to an idle worker. It
// never blocks: a full queue is reported immediately as a backpressure
// signal.
func (ch *channel) enqueue(j *job) error {
	ch.mu.Lock()

	if ch.closed {
		ch.mu.Unlock()
		return pulsarerrors.New(pulsarerrors.ErrorTypeCancelled, "pool is shut down")
	}

	// An idle worker is waiting; hand the job over without queueing.
	if len(ch.waiters) > 0 {
		w := ch.waiters[0]
		ch.waiters = ch.waiters[1:]
		w <- j
		ch.mu.Unlock()
		ch.coll.JobSubmitted(0)
		return nil
	}

	if bound, ok := ch.cfg.Pool.QueueBound(); ok && len(ch.queue) >= bound {
		ch.mu.Unlock()
		return pulsarerrors.New(pulsarerrors.ErrorTypeQueueFull, "job queue is full").
			WithDetail("max_queue_size", bound)
	}

	ch.queue = append(ch.queue, j)
	depth := len(ch.queue)
	ch.spawnIfNeededLocked()
	ch.mu.Unlock()

	ch.coll.JobSubmitted(depth)
	return nil
}

// spawnIfNeededLocked starts a new worker when jobs are pending and the
// running count is below the concurrency limit. Callers hold mu.
func (ch *channel) spawnIfNeededLocked() {
	if ch.closed || ch.spawn == nil {
		return
	}
	if len(ch.queue) == 0 || ch.running >= ch.cfg.Pool.MaxConcurrency {
		return
	}
	ch.running++
	ch.coll.WorkerStarted(ch.running)
	ch.spawn()
}

// dequeue returns the next pending job, blocking up to timeout when the
// queue is empty. A zero timeout blocks indefinitely. A nil return
// tells the calling worker to retire (idle timeout or shutdown).
func (ch *channel) dequeue(timeout time.Duration) *job {
	ch.mu.Lock()

	if len(ch.queue) > 0 {
		j := ch.queue[0]
		ch.queue = ch.queue[1:]
		depth := len(ch.queue)
		ch.mu.Unlock()
		ch.coll.QueueDepthChanged(depth)
		return j
	}

	if ch.closed {
		ch.mu.Unlock()
		return nil
	}

	w := make(chan *job, 1)
	ch.waiters = append(ch.waiters, w)
	ch.mu.Unlock()

	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case j := <-w:
		return j
	case <-ch.stopped:
		return ch.cancelWait(w)
	case <-timeoutC:
		return ch.cancelWait(w)
	}
}

// cancelWait removes a handoff channel from the waiter list. A job
// delivered concurrently with the cancellation is taken, not lost.
func (ch *channel) cancelWait(w chan *job) *job {
	ch.mu.Lock()
	for i, x := range ch.waiters {
		if x == w {
			ch.waiters = append(ch.waiters[:i], ch.waiters[i+1:]...)
			break
		}
	}
	ch.mu.Unlock()

	select {
	case j := <-w:
		return j
	default:
		return nil
	}
}

// retire removes a worker from the running set. Jobs may have been
// queued while this worker was tearing down and still counted as
// running; when respawn is set the queue is re-checked so a
// replacement is spawned for them and no accepted job is stranded
// behind a retiring worker. A worker that never managed to connect
// retires without respawn, otherwise a down server would drive a
// spawn-fail-spawn loop.
func (ch *channel) retire(respawn bool) {
	ch.mu.Lock()
	ch.running--
	running := ch.running
	if respawn {
		ch.spawnIfNeededLocked()
	}
	ch.mu.Unlock()
	ch.coll.WorkerRetired(running)
}

// shutdown stops accepting new jobs and wakes idle workers so they
// retire. For drop and abort policies the pending queue is returned to
// the caller for cancellation; abort additionally signals waiting
// workers to stop immediately rather than drain.
func (ch *channel) shutdown(policy config.ShutdownPolicy) []*job {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return nil
	}
	ch.closed = true

	for _, w := range ch.waiters {
		w <- nil
	}
	ch.waiters = nil

	var dropped []*job
	if policy != config.ShutdownGraceful {
		dropped = ch.queue
		ch.queue = nil
	}
	if policy == config.ShutdownAbort {
		close(ch.stopped)
	}
	ch.mu.Unlock()
	return dropped
}

// drainRemaining empties the queue after workers have retired. Jobs are
// still pending here only if every worker died before draining them.
func (ch *channel) drainRemaining() []*job {
	ch.mu.Lock()
	remaining := ch.queue
	ch.queue = nil
	ch.mu.Unlock()
	return remaining
}

// stopping reports whether an abort shutdown has been signaled.
func (ch *channel) stopping() bool {
	select {
	case <-ch.stopped:
		return true
	default:
		return false
	}
}

func (ch *channel) stats() (queueDepth, running int) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.queue), ch.running
}
