package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pulsar/pkg/pulsarerrors"
)

type streamStep struct {
	res *Result
	err error
}

// scriptStream plays back a fixed sequence of stream steps, then ErrDone.
type scriptStream struct {
	steps []streamStep
	i     int
}

func (s *scriptStream) Next(_ context.Context) (*Result, error) {
	if s.i >= len(s.steps) {
		return nil, ErrDone
	}
	st := s.steps[s.i]
	s.i++
	return st.res, st.err
}

func TestReceiverStateProgression(t *testing.T) {
	ctx := context.Background()
	released := 0
	r := NewReceiver(&scriptStream{steps: []streamStep{
		{res: &Result{Tag: "SELECT 1"}},
		{res: &Result{Tag: "SELECT 1"}},
	}}, func() { released++ }, nil)

	assert.Equal(t, StateBusy, r.State())
	assert.True(t, r.Busy())
	assert.False(t, r.Done())

	res, err := r.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", res.Tag)
	assert.Equal(t, StateHasResult, r.State())
	assert.False(t, r.Busy())

	_, err = r.Receive(ctx)
	require.NoError(t, err)

	_, err = r.Receive(ctx)
	require.ErrorIs(t, err, ErrDone)
	assert.True(t, r.Done())
	assert.Equal(t, 1, released, "ownership is released exactly once")
}

func TestReceiveAfterDoneIsProtocolError(t *testing.T) {
	ctx := context.Background()
	r := NewReceiver(&scriptStream{}, nil, nil)

	_, err := r.Receive(ctx)
	require.ErrorIs(t, err, ErrDone)

	_, err = r.Receive(ctx)
	require.Error(t, err)
	assert.True(t, pulsarerrors.IsType(err, pulsarerrors.ErrorTypeProtocol))
}

func TestReceiverDeliversErrorUnitBeforeDone(t *testing.T) {
	ctx := context.Background()
	execErr := pulsarerrors.New(pulsarerrors.ErrorTypeExec, "statement failed")
	r := NewReceiver(&scriptStream{steps: []streamStep{
		{err: execErr},
	}}, nil, nil)

	_, err := r.Receive(ctx)
	require.Error(t, err)
	assert.True(t, pulsarerrors.IsType(err, pulsarerrors.ErrorTypeExec))
	assert.False(t, r.Done(), "an erroring unit does not end the stream")

	_, err = r.Receive(ctx)
	require.ErrorIs(t, err, ErrDone)
	assert.True(t, r.Done())
}

func TestReceiverCloseDrainsRemaining(t *testing.T) {
	ctx := context.Background()
	released := 0
	stream := &scriptStream{steps: []streamStep{
		{res: &Result{Tag: "SELECT 1"}},
		{res: &Result{Tag: "SELECT 1"}},
		{res: &Result{Tag: "SELECT 1"}},
	}}
	r := NewReceiver(stream, func() { released++ }, nil)

	require.NoError(t, r.Close(ctx))
	assert.True(t, r.Done())
	assert.Equal(t, len(stream.steps), stream.i, "close must consume the whole stream")
	assert.Equal(t, 1, released)

	require.NoError(t, r.Close(ctx), "closing a done receiver is a no-op")
	assert.Equal(t, 1, released)
}

func TestReceiverCloseAfterPartialReceive(t *testing.T) {
	ctx := context.Background()
	released := 0
	r := NewReceiver(&scriptStream{steps: []streamStep{
		{res: &Result{Tag: "SELECT 1"}},
		{res: &Result{Tag: "SELECT 1"}},
	}}, func() { released++ }, nil)

	_, err := r.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, r.Close(ctx))
	assert.True(t, r.Done())
	assert.Equal(t, 1, released)
}

// stallStream never reaches the end marker on its own; draining it can
// only stop through context expiry.
type stallStream struct{}

func (stallStream) Next(ctx context.Context) (*Result, error) {
	if ctx.Err() != nil {
		return nil, pulsarerrors.Wrap(ctx.Err(), pulsarerrors.ErrorTypeConnection, "read interrupted")
	}
	return &Result{}, nil
}

func TestInterruptedDrainPoisonsConnection(t *testing.T) {
	c := &Conn{}
	c.asyncActive.Store(true)
	r := NewReceiver(stallStream{}, c.releaseAsync, c.markBroken)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Close(ctx)
	require.Error(t, err)
	assert.True(t, pulsarerrors.IsType(err, pulsarerrors.ErrorTypeConnection))
	assert.True(t, r.Done())

	// The ownership token stays held so sync calls fail fast, and the
	// connection reports unhealthy so its owner resets it.
	assert.True(t, c.asyncActive.Load())
	assert.True(t, c.broken.Load())
	assert.False(t, c.Healthy())

	_, execErr := c.Exec(context.Background(), NewCommand("SELECT 1"))
	require.Error(t, execErr)
	assert.True(t, pulsarerrors.IsType(execErr, pulsarerrors.ErrorTypeProtocol))
}

func TestConnRejectsConcurrentReceivers(t *testing.T) {
	ctx := context.Background()
	c := &Conn{}
	c.asyncActive.Store(true)

	_, err := c.Send(ctx, NewCommand("SELECT 1"), AsyncBatch)
	require.Error(t, err)
	assert.True(t, pulsarerrors.IsType(err, pulsarerrors.ErrorTypeProtocol))

	_, err = c.SendRaw(ctx, "SELECT 1")
	require.Error(t, err)
	assert.True(t, pulsarerrors.IsType(err, pulsarerrors.ErrorTypeProtocol))
}

func TestConnSyncSurfacesBlockedDuringReceive(t *testing.T) {
	ctx := context.Background()
	c := &Conn{}
	c.asyncActive.Store(true)

	_, err := c.Exec(ctx, NewCommand("SELECT 1"))
	require.Error(t, err)
	assert.True(t, pulsarerrors.IsType(err, pulsarerrors.ErrorTypeProtocol))

	_, err = c.ExecRaw(ctx, "SELECT 1")
	require.Error(t, err)
	assert.True(t, pulsarerrors.IsType(err, pulsarerrors.ErrorTypeProtocol))

	err = c.Reset(ctx)
	require.Error(t, err)
	assert.True(t, pulsarerrors.IsType(err, pulsarerrors.ErrorTypeProtocol))

	c.releaseAsync()
	assert.NoError(t, c.checkIdle(), "release returns the connection to idle")
}
