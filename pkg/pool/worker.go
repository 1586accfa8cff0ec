package pool

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/pulsar/pkg/config"
	"github.com/ajitpratap0/pulsar/pkg/driver"
	"github.com/ajitpratap0/pulsar/pkg/metrics"
	"github.com/ajitpratap0/pulsar/pkg/pulsarerrors"
)

// worker owns at most one live connection and one goroutine. It pulls
// jobs from the channel, executes them, checks connection health, and
// either continues or retires. A worker that cannot establish or reset
// its connection retires; the channel spawns a replacement on the next
// enqueue.
type worker struct {
	id        int64
	cfg       *config.Config
	ch        *channel
	connector driver.Connector
	breaker   *CircuitBreaker
	coll      *metrics.Collector
	logger    *zap.Logger
	wg        *sync.WaitGroup
}

// run is the worker goroutine body. The channel has already counted
// this worker as running; retire is reported on every exit path.
func (w *worker) run() {
	defer w.wg.Done()
	respawn := false
	defer func() { w.ch.retire(respawn) }()

	log := w.logger.With(zap.Int64("worker_id", w.id))

	if w.ch.stopping() {
		return
	}

	conn, err := w.connect(log)
	if err != nil {
		log.Error("worker failed to establish connection", zap.Error(err))
		return
	}
	respawn = true
	defer conn.Close(context.Background())
	w.coll.ConnectionOpened()
	log.Debug("worker started")

	for {
		j := w.ch.dequeue(w.cfg.Pool.IdleTimeout)
		if j == nil {
			// Idle timeout elapsed or the pool is shutting down.
			log.Debug("worker retiring")
			return
		}

		w.execute(conn, j)

		if !conn.Healthy() {
			if err := conn.Reset(context.Background()); err != nil {
				log.Warn("connection reset failed, retiring worker", zap.Error(err))
				return
			}
			w.coll.ConnectionReset()
			log.Debug("connection reset after unhealthy state")
		}
	}
}

// connect establishes the worker's connection with retry, exponential
// backoff and optional circuit breaker protection.
func (w *worker) connect(log *zap.Logger) (driver.Handle, error) {
	delay := w.cfg.Reliability.RetryDelay
	var lastErr error

	for attempt := 1; attempt <= w.cfg.Reliability.ConnectRetries; attempt++ {
		if w.ch.stopping() {
			return nil, pulsarerrors.New(pulsarerrors.ErrorTypeCancelled, "pool is shutting down")
		}
		if w.breaker != nil && !w.breaker.Allow() {
			return nil, pulsarerrors.New(pulsarerrors.ErrorTypeConnection, "circuit breaker is open")
		}

		conn, err := w.connector.Connect(context.Background())
		if err == nil {
			if w.breaker != nil {
				w.breaker.RecordSuccess()
			}
			return conn, nil
		}

		lastErr = err
		if w.breaker != nil {
			w.breaker.RecordFailure()
		}
		w.coll.ConnectionFailed()
		log.Warn("connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", w.cfg.Reliability.ConnectRetries),
			zap.Error(err))

		if attempt < w.cfg.Reliability.ConnectRetries {
			time.Sleep(delay)
			delay = time.Duration(float64(delay) * w.cfg.Reliability.RetryMultiplier)
			if delay > w.cfg.Reliability.MaxRetryDelay {
				delay = w.cfg.Reliability.MaxRetryDelay
			}
		}
	}

	return nil, pulsarerrors.Wrap(lastErr, pulsarerrors.ErrorTypeConnection,
		"all connection attempts failed")
}

// execute runs one job and always fulfills its completion, even when
// the job function panics, so the submitter is never left waiting.
func (w *worker) execute(conn driver.Handle, j *job) {
	start := time.Now()
	val, err := runJob(conn, j)
	j.complete(val, err)
	w.coll.JobCompleted(time.Since(start), err == nil)
}

func runJob(conn driver.Handle, j *job) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pulsarerrors.Newf(pulsarerrors.ErrorTypeExec, "job panicked: %v", r)
		}
	}()
	return j.run(conn)
}
