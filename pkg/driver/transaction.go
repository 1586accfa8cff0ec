package driver

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/pulsar/pkg/logger"
	"github.com/ajitpratap0/pulsar/pkg/pulsarerrors"
)

// Transaction is a scoped handle over an open database transaction.
// It borrows the Handle it was started on and must not outlive it.
// A Transaction that goes out of scope without Commit is rolled back by
// Close; the usual pattern is
//
//	tx, err := driver.Begin(ctx, h)
//	if err != nil { ... }
//	defer tx.Close(ctx)
//	... tx.Exec(ctx, cmd) ...
//	return tx.Commit(ctx)
type Transaction struct {
	h        Handle
	finished bool
	log      *zap.Logger
}

// Begin starts a transaction on the given handle. On failure no
// Transaction is constructed.
func Begin(ctx context.Context, h Handle) (*Transaction, error) {
	if _, err := h.ExecRaw(ctx, "BEGIN"); err != nil {
		return nil, pulsarerrors.Wrap(err, pulsarerrors.ErrorTypeExec, "begin failed")
	}
	return &Transaction{h: h, log: logger.Get()}, nil
}

// Exec runs a parameterized statement inside the transaction.
func (t *Transaction) Exec(ctx context.Context, cmd *Command) (*Result, error) {
	if t.finished {
		return nil, pulsarerrors.New(pulsarerrors.ErrorTypeProtocol, "transaction already finished")
	}
	return t.h.Exec(ctx, cmd)
}

// ExecRaw runs raw statement text inside the transaction.
func (t *Transaction) ExecRaw(ctx context.Context, sql string) (*Result, error) {
	if t.finished {
		return nil, pulsarerrors.New(pulsarerrors.ErrorTypeProtocol, "transaction already finished")
	}
	return t.h.ExecRaw(ctx, sql)
}

// Commit commits the transaction. Calling Commit a second time, or
// after Rollback, is a protocol error.
func (t *Transaction) Commit(ctx context.Context) error {
	if t.finished {
		return pulsarerrors.New(pulsarerrors.ErrorTypeProtocol, "transaction already finished")
	}
	t.finished = true
	if _, err := t.h.ExecRaw(ctx, "COMMIT"); err != nil {
		return pulsarerrors.Wrap(err, pulsarerrors.ErrorTypeExec, "commit failed")
	}
	return nil
}

// Rollback aborts the transaction.
func (t *Transaction) Rollback(ctx context.Context) error {
	if t.finished {
		return pulsarerrors.New(pulsarerrors.ErrorTypeProtocol, "transaction already finished")
	}
	t.finished = true
	if _, err := t.h.ExecRaw(ctx, "ROLLBACK"); err != nil {
		return pulsarerrors.Wrap(err, pulsarerrors.ErrorTypeExec, "rollback failed")
	}
	return nil
}

// Close rolls the transaction back if it has not been committed or
// rolled back explicitly. Rollback-on-close is a safety net: its failure
// is reported in the return value and logged, not escalated.
func (t *Transaction) Close(ctx context.Context) error {
	if t.finished {
		return nil
	}
	err := t.Rollback(ctx)
	if err != nil {
		t.log.Warn("rollback on transaction close failed", zap.Error(err))
	}
	return err
}

// Transact executes the given commands as a single all-or-nothing
// transaction: it commits only if every statement succeeded and rolls
// back otherwise, returning the last statement's result.
func Transact(ctx context.Context, h Handle, cmds ...*Command) (*Result, error) {
	tx, err := Begin(ctx, h)
	if err != nil {
		return nil, err
	}
	defer tx.Close(ctx)

	var last *Result
	for _, cmd := range cmds {
		res, err := tx.Exec(ctx, cmd)
		if err != nil {
			return nil, err
		}
		last = res
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return last, nil
}
