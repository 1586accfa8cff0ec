package driver

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pulsar/pkg/config"
	"github.com/ajitpratap0/pulsar/pkg/logger"
	"github.com/ajitpratap0/pulsar/pkg/pulsarerrors"
)

// Conn is the pgconn-backed Handle implementation. It owns exactly one
// server connection and is not safe for concurrent use.
type Conn struct {
	cfg    *config.Config
	pg     *pgconn.PgConn
	logger *zap.Logger

	// asyncActive is the ownership token for the connection's async
	// channel: set by Send, cleared when the Receiver reaches done.
	asyncActive atomic.Bool

	// broken is set when a Receiver is abandoned mid-protocol; the
	// connection reports unhealthy until Reset reconnects it.
	broken atomic.Bool
}

// Connect establishes a connection using the configuration's connection
// section and replays every configured prepared statement against it.
func Connect(ctx context.Context, cfg *config.Config) (*Conn, error) {
	connCtx := ctx
	if cfg.Connection.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, cfg.Connection.ConnectTimeout)
		defer cancel()
	}

	pg, err := pgconn.Connect(connCtx, buildConnString(&cfg.Connection))
	if err != nil {
		return nil, pulsarerrors.Wrap(err, pulsarerrors.ErrorTypeConnection, "failed to connect")
	}

	c := &Conn{
		cfg:    cfg,
		pg:     pg,
		logger: logger.With(zap.String("pool", cfg.Name)),
	}

	if err := c.replayPrepared(ctx); err != nil {
		_ = pg.Close(ctx)
		return nil, err
	}

	c.logger.Debug("connection established",
		zap.Int("prepared_statements", len(cfg.Connection.Prepared)))
	return c, nil
}

// replayPrepared prepares every configured statement on the connection.
func (c *Conn) replayPrepared(ctx context.Context) error {
	for _, ps := range c.cfg.Connection.Prepared {
		if _, err := c.pg.Prepare(ctx, ps.Name, ps.SQL, ps.ParamOIDs); err != nil {
			return pulsarerrors.Wrap(err, pulsarerrors.ErrorTypeConnection,
				"failed to replay prepared statement").WithDetail("statement", ps.Name)
		}
	}
	return nil
}

// Exec runs a single parameterized statement. The extended protocol is
// used, so multi-statement text is rejected by the server.
func (c *Conn) Exec(ctx context.Context, cmd *Command) (*Result, error) {
	if err := c.checkIdle(); err != nil {
		return nil, err
	}
	values, formats, err := encodeArgs(cmd.Args)
	if err != nil {
		return nil, pulsarerrors.Wrap(err, pulsarerrors.ErrorTypeExec, "failed to encode arguments")
	}
	pr := c.pg.ExecParams(ctx, cmd.SQL, values, nil, formats, nil).Read()
	if pr.Err != nil {
		return nil, pulsarerrors.Wrap(pr.Err, pulsarerrors.ErrorTypeExec, "statement failed")
	}
	return newResult(pr), nil
}

// ExecRaw runs raw statement text through the simple protocol. Multiple
// statements run as one implicit transaction; only the final statement's
// result is returned.
func (c *Conn) ExecRaw(ctx context.Context, sql string) (*Result, error) {
	if err := c.checkIdle(); err != nil {
		return nil, err
	}
	results, err := c.pg.Exec(ctx, sql).ReadAll()
	if err != nil {
		return nil, pulsarerrors.Wrap(err, pulsarerrors.ErrorTypeExec, "statement failed")
	}
	if len(results) == 0 {
		return &Result{}, nil
	}
	last := results[len(results)-1]
	if last.Err != nil {
		return nil, pulsarerrors.Wrap(last.Err, pulsarerrors.ErrorTypeExec, "statement failed")
	}
	return newResult(last), nil
}

// ExecPrepared runs a named prepared statement.
func (c *Conn) ExecPrepared(ctx context.Context, p *Prepared) (*Result, error) {
	if err := c.checkIdle(); err != nil {
		return nil, err
	}
	values, formats, err := encodeArgs(p.Args)
	if err != nil {
		return nil, pulsarerrors.Wrap(err, pulsarerrors.ErrorTypeExec, "failed to encode arguments")
	}
	pr := c.pg.ExecPrepared(ctx, p.Name, values, formats, nil).Read()
	if pr.Err != nil {
		return nil, pulsarerrors.Wrap(pr.Err, pulsarerrors.ErrorTypeExec,
			"prepared statement failed").WithDetail("statement", p.Name)
	}
	return newResult(pr), nil
}

// Prepare creates a named prepared statement on this connection.
func (c *Conn) Prepare(ctx context.Context, name, sql string, paramOIDs []uint32) error {
	if err := c.checkIdle(); err != nil {
		return err
	}
	if _, err := c.pg.Prepare(ctx, name, sql, paramOIDs); err != nil {
		return pulsarerrors.Wrap(err, pulsarerrors.ErrorTypeExec,
			"prepare failed").WithDetail("statement", name)
	}
	return nil
}

// Send starts asynchronous execution of a single statement. The call
// itself does not wait for results; pulling them back happens through
// the returned Receiver.
func (c *Conn) Send(ctx context.Context, cmd *Command, mode AsyncMode) (*Receiver, error) {
	if !c.asyncActive.CompareAndSwap(false, true) {
		return nil, pulsarerrors.New(pulsarerrors.ErrorTypeProtocol,
			"another receiver is active on this connection")
	}
	values, formats, err := encodeArgs(cmd.Args)
	if err != nil {
		c.asyncActive.Store(false)
		return nil, pulsarerrors.Wrap(err, pulsarerrors.ErrorTypeExec, "failed to encode arguments")
	}
	rr := c.pg.ExecParams(ctx, cmd.SQL, values, nil, formats, nil)
	var stream ResultStream
	if mode == AsyncSingleRow {
		stream = &rowStream{rr: rr}
	} else {
		stream = &singleStream{rr: rr}
	}
	return NewReceiver(stream, c.releaseAsync, c.markBroken), nil
}

// SendRaw starts asynchronous execution of raw, possibly multi-statement
// text. Each Receive pulls one statement's result.
func (c *Conn) SendRaw(ctx context.Context, sql string) (*Receiver, error) {
	if !c.asyncActive.CompareAndSwap(false, true) {
		return nil, pulsarerrors.New(pulsarerrors.ErrorTypeProtocol,
			"another receiver is active on this connection")
	}
	mrr := c.pg.Exec(ctx, sql)
	return NewReceiver(&multiStream{mrr: mrr}, c.releaseAsync, c.markBroken), nil
}

func (c *Conn) releaseAsync() {
	c.asyncActive.Store(false)
}

// markBroken flags the connection as stuck mid-protocol. The async
// token is deliberately not released: sync entry points keep failing
// with a protocol error until Reset reconnects.
func (c *Conn) markBroken() {
	c.broken.Store(true)
}

// checkIdle guards synchronous entry points against use while a
// Receiver is mid-protocol.
func (c *Conn) checkIdle() error {
	if c.asyncActive.Load() {
		return pulsarerrors.New(pulsarerrors.ErrorTypeProtocol,
			"connection is busy with an active receiver")
	}
	return nil
}

// Healthy reports whether the connection is still usable.
func (c *Conn) Healthy() bool {
	return c.pg != nil && !c.pg.IsClosed() && !c.broken.Load()
}

// Reset tears down the underlying connection and establishes a fresh
// one, replaying configured prepared statements. A poisoned connection
// may be reset even while its async token is held; reconnecting clears
// both flags.
func (c *Conn) Reset(ctx context.Context) error {
	if !c.broken.Load() {
		if err := c.checkIdle(); err != nil {
			return err
		}
	}
	if c.pg != nil {
		_ = c.pg.Close(ctx)
	}
	fresh, err := Connect(ctx, c.cfg)
	if err != nil {
		return pulsarerrors.Wrap(err, pulsarerrors.ErrorTypeConnection, "reset failed")
	}
	c.pg = fresh.pg
	c.asyncActive.Store(false)
	c.broken.Store(false)
	c.logger.Debug("connection reset")
	return nil
}

// Close releases the connection.
func (c *Conn) Close(ctx context.Context) error {
	if c.pg == nil {
		return nil
	}
	return c.pg.Close(ctx)
}

// Ping checks server reachability with the given configuration.
func Ping(ctx context.Context, cfg *config.Config) error {
	conn, err := Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	if err := conn.pg.Ping(ctx); err != nil {
		return pulsarerrors.Wrap(err, pulsarerrors.ErrorTypeConnection, "ping failed")
	}
	return nil
}

// buildConnString renders the connection section as a libpq keyword/value
// string. An explicit ConnString wins over individual parameters.
func buildConnString(cc *config.ConnectionConfig) string {
	if cc.ConnString != "" {
		return cc.ConnString
	}
	keys := make([]string, 0, len(cc.Params))
	for k := range cc.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteString("='")
		v := strings.ReplaceAll(cc.Params[k], `\`, `\\`)
		v = strings.ReplaceAll(v, `'`, `\'`)
		b.WriteString(v)
		b.WriteByte('\'')
	}
	return b.String()
}

// connector adapts Connect to the Connector interface.
type connector struct {
	cfg *config.Config
}

// NewConnector returns a Connector that dials with the given
// configuration.
func NewConnector(cfg *config.Config) Connector {
	return &connector{cfg: cfg}
}

func (d *connector) Connect(ctx context.Context) (Handle, error) {
	return Connect(ctx, d.cfg)
}
