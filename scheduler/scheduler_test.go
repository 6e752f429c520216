package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/mwswap/swapd/foreignswap"
	"github.com/mwswap/swapd/nativetx"
	"github.com/mwswap/swapd/paramstore"
	"github.com/mwswap/swapd/peermsg"
	"github.com/mwswap/swapd/swap"
	"github.com/mwswap/swapd/swapfsm"
	"github.com/stretchr/testify/require"
)

// errStub mirrors swapfsm's own test stubs: every collaborator method fails
// unless a test configures it, so any FSM action that reaches past what a
// scheduler test set up cascades into Failed rather than hanging.
var errStub = errors.New("stub: not configured for this call")

type stubGateway struct{}

func (stubGateway) CurrentHeight(context.Context) (uint32, error) { return 0, errStub }
func (stubGateway) RegisterKernel(context.Context, swap.ID,
	*nativetx.Transaction) (swap.RegistrationCode, uint32, error) {
	return 0, 0, errStub
}
func (stubGateway) FetchConfirmationHeight(context.Context, swap.ID,
	swap.SubTxID) (uint32, bool, error) {
	return 0, false, errStub
}

type stubTransport struct{}

func (stubTransport) Send(string, swapfsm.MessageKind, *peermsg.Bundle) error { return nil }

type stubAdapter struct{}

func (stubAdapter) Initialize(context.Context) (bool, error) { return false, errStub }
func (stubAdapter) InitLockTime(context.Context, uint32, int64) (int64, error) {
	return 0, errStub
}
func (stubAdapter) ValidateLockTime(context.Context, int64, uint32, int64) (bool, error) {
	return false, errStub
}
func (stubAdapter) HasEnoughTimeToProcessLockTx(context.Context) (bool, error) {
	return false, errStub
}
func (stubAdapter) SendLockTx(context.Context) (bool, error)    { return false, errStub }
func (stubAdapter) ConfirmLockTx(context.Context) (bool, error) { return false, errStub }
func (stubAdapter) IsLockTimeExpired(context.Context) (bool, error) {
	return false, errStub
}
func (stubAdapter) SendRefund(context.Context) (bool, error)      { return false, errStub }
func (stubAdapter) ConfirmRefundTx(context.Context) (bool, error) { return false, errStub }
func (stubAdapter) SendRedeem(context.Context, [32]byte) (bool, error) {
	return false, errStub
}
func (stubAdapter) ConfirmRedeemTx(context.Context) (bool, error) { return false, errStub }
func (stubAdapter) ExtractRedeemSecret(context.Context) ([32]byte, error) {
	return [32]byte{}, errStub
}
func (stubAdapter) AddTxDetails(context.Context) (*foreignswap.TxDetails, error) {
	return nil, errStub
}

var _ foreignswap.Adapter = stubAdapter{}

func newTestFSM(t *testing.T, start swap.TopState) *swapfsm.FSM {
	t.Helper()

	store, err := paramstore.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	cfg := &swapfsm.Config{
		Store:          store,
		Gateway:        stubGateway{},
		Transport:      stubTransport{},
		Keys:           nativetx.DeterministicKeySource{Seed: [32]byte{9, 9, 9}},
		MinLockWindow:  10,
		MinNativeConfs: 1,
	}

	sw := swap.NewSwap(swap.NewID(), swap.NewRole(true, true))
	sw.TopState = start
	sw.MinHeight = 100
	sw.PeerResponseWindow = 50

	return swapfsm.NewFSMFromSwap(context.Background(), cfg, sw, stubAdapter{})
}

func TestSchedulerDrivesSwapToTerminalStateAndExits(t *testing.T) {
	defer leaktest.Check(t)()

	f := newTestFSM(t, swap.StateSendingNativeRedeemTx)

	s := New(context.Background(), 4)
	require.NoError(t, s.Register(f))
	require.Equal(t, 1, s.Active())

	require.NoError(t, s.Enqueue(f.Swap.ID, Event{Kind: EvTick}))
	require.NoError(t, s.Wait())

	require.Equal(t, swap.StateFailed, swap.TopState(f.CurrentState()))
}

func TestSchedulerEnqueueUnknownSwapReturnsError(t *testing.T) {
	defer leaktest.Check(t)()

	s := New(context.Background(), 4)
	defer func() { require.NoError(t, s.Stop()) }()

	err := s.Enqueue(swap.NewID(), Event{Kind: EvTick})
	require.ErrorIs(t, err, ErrUnknownSwap)
}

func TestSchedulerRegisterTwiceRejected(t *testing.T) {
	defer leaktest.Check(t)()

	f := newTestFSM(t, swap.StateSendingNativeRedeemTx)

	s := New(context.Background(), 4)
	defer func() { require.NoError(t, s.Stop()) }()

	require.NoError(t, s.Register(f))
	require.Error(t, s.Register(f))
}

func TestSchedulerStopCancelsRunningWorkers(t *testing.T) {
	defer leaktest.Check(t)()

	// StateInitial's action no-ops forever (fsm.NoOp) until the peer's
	// public key shows up in the Parameter Store, so this worker stays
	// alive until Stop cancels it.
	f := newTestFSM(t, swap.StateInitial)

	s := New(context.Background(), 4)
	require.NoError(t, s.Register(f))

	require.NoError(t, s.Enqueue(f.Swap.ID, Event{Kind: EvTick}))
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, s.Stop())
	require.Equal(t, 0, s.Active())
}

func TestSchedulerBroadcastTipExpiresSwapPastDeadline(t *testing.T) {
	defer leaktest.Check(t)()

	f := newTestFSM(t, swap.StateBuildingNativeLockTx)

	s := New(context.Background(), 4)
	require.NoError(t, s.Register(f))

	// newTestFSM sets MinHeight=100, PeerResponseWindow=50: expiry falls
	// back to PeerResponseHeight (150) before any Lock invitation exists.
	s.BroadcastTip(500)

	require.NoError(t, s.Stop())
	require.Equal(t, swap.StateFailed, swap.TopState(f.CurrentState()))
}
