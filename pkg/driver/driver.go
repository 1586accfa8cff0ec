// Package driver binds the pool to the native PostgreSQL connection
// primitive. The Conn type wraps a pgconn.PgConn and implements Handle;
// everything above this package (the pool, transactions, the async
// receiver protocol) talks to the database exclusively through the
// Handle interface.
package driver

import (
	"context"
	"errors"
)

// ErrDone is returned by Receiver.Receive once the end-of-results marker
// has been consumed. It signals normal completion, not a failure.
var ErrDone = errors.New("pulsar: no more results")

// AsyncMode selects how results of an asynchronous send are delivered.
type AsyncMode int

const (
	// AsyncBatch delivers one Result per statement.
	AsyncBatch AsyncMode = iota
	// AsyncSingleRow delivers one Result per row, for large result sets.
	AsyncSingleRow
)

// Handle is an open, driver-level connection to the database server.
// A Handle is not safe for concurrent use; the pool guarantees exclusive
// ownership by the worker executing a job.
type Handle interface {
	// Exec runs a single parameterized statement and blocks for its result.
	// Multi-statement text is rejected server-side.
	Exec(ctx context.Context, cmd *Command) (*Result, error)

	// ExecRaw runs raw statement text, which may contain multiple
	// statements separated by semicolons. Only the final statement's
	// result is returned.
	ExecRaw(ctx context.Context, sql string) (*Result, error)

	// ExecPrepared runs a previously prepared statement by name.
	ExecPrepared(ctx context.Context, p *Prepared) (*Result, error)

	// Prepare creates a named prepared statement on this connection.
	Prepare(ctx context.Context, name, sql string, paramOIDs []uint32) error

	// Send starts asynchronous execution of a single statement and
	// returns without waiting for results. At most one Receiver may be
	// active per Handle; a second Send before the first reaches done
	// fails with a protocol error.
	Send(ctx context.Context, cmd *Command, mode AsyncMode) (*Receiver, error)

	// SendRaw starts asynchronous execution of raw, possibly
	// multi-statement text.
	SendRaw(ctx context.Context, sql string) (*Receiver, error)

	// Healthy reports whether the connection is still usable.
	Healthy() bool

	// Reset tears down and re-establishes the underlying connection,
	// replaying configured prepared statements.
	Reset(ctx context.Context) error

	// Close releases the connection.
	Close(ctx context.Context) error
}

// Connector establishes new connections at well-defined lifecycle
// points. The pool calls Connect when a worker spawns and Handle.Close
// when it retires.
type Connector interface {
	Connect(ctx context.Context) (Handle, error)
}

// ResultStream is the pull side of an asynchronous execution. Next
// blocks until one unit of result data is available and returns ErrDone
// after the last unit. A failed statement yields its error as one unit
// before ErrDone.
type ResultStream interface {
	Next(ctx context.Context) (*Result, error)
}
