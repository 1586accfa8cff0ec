// Package pool implements the concurrent worker pool at the heart of
// Pulsar. A Client multiplexes submitted jobs over an elastic set of
// workers, each owning exactly one live server connection.
//
// The package provides:
//   - Non-blocking job submission with immediate backpressure signaling
//   - Elastic worker scaling between zero and a configured maximum
//   - Idle teardown that returns connections during load troughs
//   - Broken-connection detection with reset-or-retire recovery
//   - Graceful, drop and abort shutdown policies
//
// Example usage:
//
//	cfg := config.New("app")
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
// Jobs are served strictly in submission order. A single job runs on
// exactly one worker exactly once; it is never retried automatically.
package pool
