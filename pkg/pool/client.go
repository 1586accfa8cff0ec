package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ajitpratap0/pulsar/pkg/config"
	"github.com/ajitpratap0/pulsar/pkg/driver"
	"github.com/ajitpratap0/pulsar/pkg/logger"
	"github.com/ajitpratap0/pulsar/pkg/metrics"
	"github.com/ajitpratap0/pulsar/pkg/pulsarerrors"
)

// Client is the pool facade. Submission methods wrap caller-supplied
// work into jobs and return a deferred result handle; they never block.
//
// Concurrent submissions are safe because the channel is internally
// synchronized. The Client's own mutable state (the direct connection
// used by Send and Begin) is not synchronized; callers using those
// surfaces concurrently must serialize externally.
type Client struct {
	cfg       *config.Config
	ch        *channel
	connector driver.Connector
	logger    *zap.Logger
	coll      *metrics.Collector
	breaker   *CircuitBreaker

	wg     sync.WaitGroup
	nextID atomic.Int64
	closed atomic.Bool

	// direct is a dedicated connection for the async and transaction
	// surfaces, established lazily outside the worker set.
	direct driver.Handle
}

// Option customizes a Client.
type Option func(*Client)

// WithConnector overrides how worker connections are established.
// Intended for alternative drivers and tests.
func WithConnector(c driver.Connector) Option {
	return func(cl *Client) { cl.connector = c }
}

// WithLogger overrides the Client's logger.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New creates a pool client from the given configuration. No
// connections are established until the first job is submitted.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, pulsarerrors.Wrap(err, pulsarerrors.ErrorTypeConfig, "invalid pool configuration")
	}

	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.With(zap.String("pool", cfg.Name))
	}
	if c.connector == nil {
		c.connector = driver.NewConnector(cfg)
	}
	c.coll = metrics.NewCollector(cfg.Name, cfg.Observability.EnableMetrics)
	if cfg.Reliability.CircuitBreaker {
		c.breaker = NewCircuitBreaker(cfg.Reliability.FailureThreshold,
			cfg.Reliability.BreakerCooldown, c.logger)
	}

	c.ch = newChannel(cfg, c.coll)
	c.ch.spawn = c.startWorker

	c.logger.Info("pool created",
		zap.Int("max_concurrency", cfg.Pool.MaxConcurrency),
		zap.Duration("idle_timeout", cfg.Pool.IdleTimeout),
		zap.String("shutdown_policy", string(cfg.Pool.OnShutdown)))
	return c, nil
}

// startWorker is the channel's spawn callback. The channel holds its
// lock and has already counted the worker as running.
func (c *Client) startWorker() {
	w := &worker{
		id:        c.nextID.Add(1),
		cfg:       c.cfg,
		ch:        c.ch,
		connector: c.connector,
		breaker:   c.breaker,
		coll:      c.coll,
		logger:    c.logger,
		wg:        &c.wg,
	}
	c.wg.Add(1)
	go w.run()
}

// Submit wraps an arbitrary unit of work into a job and enqueues it.
// The returned future is completed by the executing worker, or
// immediately with a queue-full or shutdown error.
func (c *Client) Submit(fn func(driver.Handle) (any, error)) *Future[any] {
	f := newFuture[any]()
	c.submit(fn, f.complete)
	return f
}

func (c *Client) submit(run func(driver.Handle) (any, error), complete func(any, error)) {
	j := &job{run: run, complete: complete}
	if err := c.ch.enqueue(j); err != nil {
		if pulsarerrors.IsType(err, pulsarerrors.ErrorTypeQueueFull) {
			c.coll.JobRejected()
		}
		complete(nil, err)
	}
}

// Query submits work that produces a typed value. The work function
// receives a live connection handle and may run any sequence of
// statements against it.
func Query[T any](c *Client, fn func(driver.Handle) (T, error)) *Future[T] {
	f := newFuture[T]()
	c.submit(
		func(h driver.Handle) (any, error) { return fn(h) },
		func(val any, err error) {
			if err != nil {
				var zero T
				f.complete(zero, err)
				return
			}
			v, _ := val.(T)
			f.complete(v, nil)
		})
	return f
}

// Exec submits a single parameterized statement and returns a future
// for its full result.
func (c *Client) Exec(cmd *driver.Command) *Future[*driver.Result] {
	return Query(c, func(h driver.Handle) (*driver.Result, error) {
		return h.Exec(context.Background(), cmd)
	})
}

// ExecRaw submits raw, possibly multi-statement text. Only the final
// statement's result is delivered.
func (c *Client) ExecRaw(sql string) *Future[*driver.Result] {
	return Query(c, func(h driver.Handle) (*driver.Result, error) {
		return h.ExecRaw(context.Background(), sql)
	})
}

// ExecPrepared submits execution of a statement prepared on every pool
// connection via the configuration's prepared list.
func (c *Client) ExecPrepared(p *driver.Prepared) *Future[*driver.Result] {
	return Query(c, func(h driver.Handle) (*driver.Result, error) {
		return h.ExecPrepared(context.Background(), p)
	})
}

// Send starts asynchronous execution on the Client's direct connection
// and returns the Receiver for pulling results back.
func (c *Client) Send(ctx context.Context, cmd *driver.Command, mode driver.AsyncMode) (*driver.Receiver, error) {
	h, err := c.directConn(ctx)
	if err != nil {
		return nil, err
	}
	return h.Send(ctx, cmd, mode)
}

// SendRaw starts asynchronous execution of raw statement text on the
// direct connection.
func (c *Client) SendRaw(ctx context.Context, sql string) (*driver.Receiver, error) {
	h, err := c.directConn(ctx)
	if err != nil {
		return nil, err
	}
	return h.SendRaw(ctx, sql)
}

// Begin opens a transaction on the direct connection.
func (c *Client) Begin(ctx context.Context) (*driver.Transaction, error) {
	h, err := c.directConn(ctx)
	if err != nil {
		return nil, err
	}
	return driver.Begin(ctx, h)
}

// Transact runs the given commands all-or-nothing on the direct
// connection.
func (c *Client) Transact(ctx context.Context, cmds ...*driver.Command) (*driver.Result, error) {
	h, err := c.directConn(ctx)
	if err != nil {
		return nil, err
	}
	return driver.Transact(ctx, h, cmds...)
}

func (c *Client) directConn(ctx context.Context) (driver.Handle, error) {
	if c.closed.Load() {
		return nil, pulsarerrors.New(pulsarerrors.ErrorTypeCancelled, "pool is shut down")
	}
	if c.direct != nil && !c.direct.Healthy() {
		if err := c.direct.Reset(ctx); err != nil {
			_ = c.direct.Close(ctx)
			c.direct = nil
		}
	}
	if c.direct == nil {
		h, err := c.connector.Connect(ctx)
		if err != nil {
			return nil, err
		}
		c.direct = h
	}
	return c.direct, nil
}

// Stats describes the pool's current resource usage.
type Stats struct {
	QueueDepth     int
	RunningWorkers int
	MaxConcurrency int
}

// Stats returns a point-in-time snapshot of pool state.
func (c *Client) Stats() Stats {
	depth, running := c.ch.stats()
	return Stats{
		QueueDepth:     depth,
		RunningWorkers: running,
		MaxConcurrency: c.cfg.Pool.MaxConcurrency,
	}
}

// Close shuts the pool down according to the configured shutdown
// policy. Graceful drains the queue and waits for all workers; drop
// cancels pending jobs but waits for in-flight ones; abort cancels
// pending jobs and abandons workers without waiting.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	policy := c.cfg.Pool.OnShutdown
	cancelled := c.ch.shutdown(policy)
	c.cancelJobs(cancelled)

	if policy != config.ShutdownAbort {
		c.wg.Wait()
		// Jobs are still queued here only if every worker died before
		// draining them; their submitters must not wait forever.
		c.cancelJobs(c.ch.drainRemaining())
	}

	if c.direct != nil {
		_ = c.direct.Close(ctx)
		c.direct = nil
	}

	c.logger.Info("pool closed", zap.String("shutdown_policy", string(policy)))
	return nil
}

func (c *Client) cancelJobs(jobs []*job) {
	for _, j := range jobs {
		j.complete(nil, pulsarerrors.New(pulsarerrors.ErrorTypeCancelled,
			"job discarded by pool shutdown"))
		c.coll.JobCancelled()
	}
}
