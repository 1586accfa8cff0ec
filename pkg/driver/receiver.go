package driver

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ajitpratap0/pulsar/pkg/pulsarerrors"
)

// ReceiverState tracks the async protocol position of a Receiver.
type ReceiverState int32

const (
	// StateSending covers statement transmission; it resolves before
	// Send returns, so a live Receiver starts out busy.
	StateSending ReceiverState = iota
	// StateBusy means the statement is in flight and no result has been
	// pulled back yet.
	StateBusy
	// StateHasResult means at least one result unit has been consumed.
	StateHasResult
	// StateDone means the end-of-results marker has been consumed and
	// the connection is reusable.
	StateDone
)

// Receiver mediates the non-blocking send / blocking receive protocol
// over one connection. Each Receive call pulls back exactly one unit of
// result data; after ErrDone the underlying connection is idle again.
//
// A Receiver that is dropped before reaching done must be closed:
// Close drains all remaining results so the connection is never left
// mid-protocol.
type Receiver struct {
	stream  ResultStream
	state   atomic.Int32
	release func()
	poison  func()
}

// NewReceiver wraps a ResultStream in the receiver state machine.
// release is the ownership token return: it is invoked exactly once,
// when the stream is exhausted or the Receiver is closed. poison is
// invoked instead when the stream is abandoned mid-protocol, leaving
// the token held and the connection marked for reset.
func NewReceiver(stream ResultStream, release, poison func()) *Receiver {
	r := &Receiver{stream: stream, release: release, poison: poison}
	r.state.Store(int32(StateBusy))
	return r
}

// State returns the current protocol state.
func (r *Receiver) State() ReceiverState {
	return ReceiverState(r.state.Load())
}

// Busy reports whether the statement is still in flight with no result
// pulled back yet. Readiness of the very first result cannot be observed
// without reading from the connection, so Busy is a protocol-state poll:
// it turns false after the first Receive.
func (r *Receiver) Busy() bool {
	return r.State() == StateBusy
}

// Done reports whether the end-of-results marker has been consumed.
func (r *Receiver) Done() bool {
	return r.State() == StateDone
}

// Receive blocks until the next unit of result data is available.
// It returns ErrDone once after the last unit; a failed statement is
// reported as one erroring unit before ErrDone. Receiving after done is
// a protocol error.
func (r *Receiver) Receive(ctx context.Context) (*Result, error) {
	if r.Done() {
		return nil, pulsarerrors.New(pulsarerrors.ErrorTypeProtocol, "receive after done")
	}

	res, err := r.stream.Next(ctx)
	if errors.Is(err, ErrDone) {
		r.finish()
		return nil, ErrDone
	}
	r.state.Store(int32(StateHasResult))
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Close drains any remaining results, discarding them, and returns the
// connection to a reusable state. It may block until the server has
// delivered everything outstanding.
func (r *Receiver) Close(ctx context.Context) error {
	if r.Done() {
		return nil
	}
	for {
		_, err := r.stream.Next(ctx)
		if errors.Is(err, ErrDone) {
			r.finish()
			return nil
		}
		if err != nil && ctx.Err() != nil {
			// The context expired mid-drain; the connection is stuck
			// mid-protocol. The ownership token stays held so sync
			// calls keep failing fast, and the connection is poisoned
			// so its owner resets or replaces it.
			r.abandon()
			return pulsarerrors.Wrap(err, pulsarerrors.ErrorTypeConnection, "receiver drain interrupted")
		}
	}
}

func (r *Receiver) finish() {
	if r.state.Swap(int32(StateDone)) != int32(StateDone) && r.release != nil {
		r.release()
	}
}

func (r *Receiver) abandon() {
	if r.state.Swap(int32(StateDone)) != int32(StateDone) && r.poison != nil {
		r.poison()
	}
}

// singleStream adapts a ResultReader produced by an extended-protocol
// send: one result unit, then done.
type singleStream struct {
	rr        *pgconn.ResultReader
	delivered bool
}

func (s *singleStream) Next(ctx context.Context) (*Result, error) {
	if s.delivered {
		return nil, ErrDone
	}
	s.delivered = true
	pr := s.rr.Read()
	if pr.Err != nil {
		return nil, pulsarerrors.Wrap(pr.Err, pulsarerrors.ErrorTypeExec, "statement failed")
	}
	return newResult(pr), nil
}

// rowStream adapts a ResultReader in single-row mode: one result unit
// per row, then done. Row values are copied before the reader advances.
type rowStream struct {
	rr     *pgconn.ResultReader
	closed bool
}

func (s *rowStream) Next(ctx context.Context) (*Result, error) {
	if s.closed {
		return nil, ErrDone
	}
	if s.rr.NextRow() {
		return newRowResult(s.rr.FieldDescriptions(), s.rr.Values()), nil
	}
	s.closed = true
	if _, err := s.rr.Close(); err != nil {
		return nil, pulsarerrors.Wrap(err, pulsarerrors.ErrorTypeExec, "statement failed")
	}
	return nil, ErrDone
}

// multiStream adapts a MultiResultReader from a raw send: one result
// unit per statement, then done.
type multiStream struct {
	mrr      *pgconn.MultiResultReader
	errSeen  bool
	finished bool
}

func (s *multiStream) Next(ctx context.Context) (*Result, error) {
	if s.finished {
		return nil, ErrDone
	}
	if s.mrr.NextResult() {
		pr := s.mrr.ResultReader().Read()
		if pr.Err != nil {
			return nil, pulsarerrors.Wrap(pr.Err, pulsarerrors.ErrorTypeExec, "statement failed")
		}
		return newResult(pr), nil
	}
	s.finished = true
	if err := s.mrr.Close(); err != nil && !s.errSeen {
		s.errSeen = true
		s.finished = false // deliver the failure as a unit, then done
		return nil, pulsarerrors.Wrap(err, pulsarerrors.ErrorTypeExec, "statement failed")
	}
	return nil, ErrDone
}
