// Package pulsar provides a concurrent PostgreSQL client built around a
// connection pool: application requests are multiplexed over a bounded
// set of live server connections, with both synchronous and
// asynchronous statement execution.
//
// The hard part of a database client is not statement text or value
// encoding - it is the concurrency core. Pulsar concentrates on:
//   - An elastic pool of workers, each owning exactly one connection,
//     scaling between zero and a configured maximum
//   - Non-blocking job submission with immediate backpressure signaling
//   - Broken-connection detection with reset-or-retire recovery
//   - Idle teardown that sheds connections during load troughs
//   - An asynchronous send/receive protocol for streaming large result
//     sets row by row
//   - Scoped transactions with rollback-on-close
//
// # Architecture
//
// The pool (pkg/pool) is organized around a single synchronization
// point, the channel, which owns the pending-job queue and the worker
// registry. Workers pull jobs in strict submission order, execute them
// against their private connection, and retire on idle timeout or
// unrecoverable connection failure. The driver layer (pkg/driver) binds
// the pool to PostgreSQL through pgconn and exposes the Handle
// interface that jobs are executed against.
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/ajitpratap0/pulsar/pkg/config"
//	    "github.com/ajitpratap0/pulsar/pkg/driver"
//	    "github.com/ajitpratap0/pulsar/pkg/pool"
//	)
//
//	cfg := config.New("app")
//	cfg.Connection.Params["host"] = "localhost"
//	cfg.Connection.Params["dbname"] = "app"
//
//	client, err := pool.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(context.Background())
//
//	future := client.Exec(driver.NewCommand("SELECT $1::INT", 42))
//	res, err := future.Await(context.Background())
//
// # Asynchronous Execution
//
// Send starts execution without blocking; results are pulled back one
// unit at a time through a Receiver:
//
//	rcv, err := client.Send(ctx, driver.NewCommand("SELECT generate_series(1, 1000000)"), driver.AsyncSingleRow)
//	if err != nil {
//	    return err
//	}
//	defer rcv.Close(ctx)
//
//	for {
//	    res, err := rcv.Receive(ctx)
//	    if errors.Is(err, driver.ErrDone) {
//	        break
//	    }
//	    ...
//	}
//
// See the package documentation of pkg/pool, pkg/driver and pkg/config
// for details.
package pulsar
