package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pulsar/pkg/pulsarerrors"
)

// txHandle records executed statements and can fail a chosen one.
type txHandle struct {
	log     []string
	failSQL string
}

func (h *txHandle) Exec(_ context.Context, cmd *Command) (*Result, error) {
	h.log = append(h.log, cmd.SQL)
	if cmd.SQL == h.failSQL {
		return nil, pulsarerrors.New(pulsarerrors.ErrorTypeExec, "statement failed")
	}
	return &Result{Tag: "OK"}, nil
}

func (h *txHandle) ExecRaw(_ context.Context, sql string) (*Result, error) {
	h.log = append(h.log, sql)
	if sql == h.failSQL {
		return nil, pulsarerrors.New(pulsarerrors.ErrorTypeExec, "statement failed")
	}
	return &Result{Tag: "OK"}, nil
}

func (h *txHandle) ExecPrepared(_ context.Context, p *Prepared) (*Result, error) {
	h.log = append(h.log, "prepared:"+p.Name)
	return &Result{Tag: "OK"}, nil
}

func (h *txHandle) Prepare(_ context.Context, name, _ string, _ []uint32) error {
	h.log = append(h.log, "prepare:"+name)
	return nil
}

func (h *txHandle) Send(_ context.Context, _ *Command, _ AsyncMode) (*Receiver, error) {
	return nil, pulsarerrors.New(pulsarerrors.ErrorTypeInternal, "not supported")
}

func (h *txHandle) SendRaw(_ context.Context, _ string) (*Receiver, error) {
	return nil, pulsarerrors.New(pulsarerrors.ErrorTypeInternal, "not supported")
}

func (h *txHandle) Healthy() bool                 { return true }
func (h *txHandle) Reset(_ context.Context) error { return nil }
func (h *txHandle) Close(_ context.Context) error { return nil }

func TestTransactionCommit(t *testing.T) {
	ctx := context.Background()
	h := &txHandle{}

	tx, err := Begin(ctx, h)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Close(ctx), "close after commit is a no-op")

	assert.Equal(t, []string{"BEGIN", "COMMIT"}, h.log)
}

func TestTransactionRollbackOnClose(t *testing.T) {
	ctx := context.Background()
	h := &txHandle{}

	tx, err := Begin(ctx, h)
	require.NoError(t, err)
	require.NoError(t, tx.Close(ctx))

	assert.Equal(t, []string{"BEGIN", "ROLLBACK"}, h.log)
}

func TestTransactionDoubleFinishIsProtocolError(t *testing.T) {
	ctx := context.Background()
	h := &txHandle{}

	tx, err := Begin(ctx, h)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	err = tx.Commit(ctx)
	require.Error(t, err)
	assert.True(t, pulsarerrors.IsType(err, pulsarerrors.ErrorTypeProtocol))

	err = tx.Rollback(ctx)
	require.Error(t, err)
	assert.True(t, pulsarerrors.IsType(err, pulsarerrors.ErrorTypeProtocol))

	_, err = tx.Exec(ctx, NewCommand("SELECT 1"))
	require.Error(t, err)
	assert.True(t, pulsarerrors.IsType(err, pulsarerrors.ErrorTypeProtocol))
}

func TestTransactionExecDelegates(t *testing.T) {
	ctx := context.Background()
	h := &txHandle{}

	tx, err := Begin(ctx, h)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, NewCommand("INSERT INTO t VALUES (1)"))
	require.NoError(t, err)
	_, err = tx.ExecRaw(ctx, "SELECT 1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	assert.Equal(t, []string{"BEGIN", "INSERT INTO t VALUES (1)", "SELECT 1", "COMMIT"}, h.log)
}

func TestBeginFailure(t *testing.T) {
	ctx := context.Background()
	h := &txHandle{failSQL: "BEGIN"}

	_, err := Begin(ctx, h)
	require.Error(t, err)
	assert.True(t, pulsarerrors.IsType(err, pulsarerrors.ErrorTypeExec))
}

func TestTransactAllOrNothing(t *testing.T) {
	ctx := context.Background()

	t.Run("success commits", func(t *testing.T) {
		h := &txHandle{}
		res, err := Transact(ctx, h,
			NewCommand("INSERT INTO t VALUES (1)"),
			NewCommand("INSERT INTO t VALUES (2)"))
		require.NoError(t, err)
		assert.Equal(t, "OK", res.Tag)
		assert.Equal(t, []string{
			"BEGIN",
			"INSERT INTO t VALUES (1)",
			"INSERT INTO t VALUES (2)",
			"COMMIT",
		}, h.log)
	})

	t.Run("failure rolls back", func(t *testing.T) {
		h := &txHandle{failSQL: "INSERT INTO t VALUES (2)"}
		_, err := Transact(ctx, h,
			NewCommand("INSERT INTO t VALUES (1)"),
			NewCommand("INSERT INTO t VALUES (2)"),
			NewCommand("INSERT INTO t VALUES (3)"))
		require.Error(t, err)
		assert.Equal(t, []string{
			"BEGIN",
			"INSERT INTO t VALUES (1)",
			"INSERT INTO t VALUES (2)",
			"ROLLBACK",
		}, h.log)
	})
}
