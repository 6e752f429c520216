package swapfsm

import (
	"context"
	"errors"
	"testing"

	"github.com/mwswap/swapd/fsm"
	"github.com/mwswap/swapd/foreignswap"
	"github.com/mwswap/swapd/nativetx"
	"github.com/mwswap/swapd/paramstore"
	"github.com/mwswap/swapd/peermsg"
	"github.com/mwswap/swapd/swap"
	"github.com/stretchr/testify/require"
)

// errStub is returned by every stubGateway/stubAdapter method unless a test
// overrides it, so an action that reaches past what a given test set up fails
// fast into Failed rather than looping or panicking on a nil collaborator.
var errStub = errors.New("stub: not configured for this call")

// stubGateway is a NativeGateway that fails every call unless overridden.
type stubGateway struct {
	height            uint32
	regCode           swap.RegistrationCode
	unconfirmedHeight uint32
	confirmed         map[swap.SubTxID]uint32
	err               error
}

func (g *stubGateway) CurrentHeight(context.Context) (uint32, error) {
	if g.err != nil {
		return 0, g.err
	}
	return g.height, nil
}

func (g *stubGateway) RegisterKernel(context.Context, swap.ID,
	*nativetx.Transaction) (swap.RegistrationCode, uint32, error) {

	if g.err != nil {
		return 0, 0, g.err
	}
	return g.regCode, g.unconfirmedHeight, nil
}

func (g *stubGateway) FetchConfirmationHeight(_ context.Context, _ swap.ID,
	sub swap.SubTxID) (uint32, bool, error) {

	if g.err != nil {
		return 0, false, g.err
	}
	height, ok := g.confirmed[sub]
	return height, ok, nil
}

// stubTransport records every bundle sent to it.
type stubTransport struct {
	sent []MessageKind
}

func (t *stubTransport) Send(_ string, kind MessageKind, _ *peermsg.Bundle) error {
	t.sent = append(t.sent, kind)
	return nil
}

// stubAdapter is a foreignswap.Adapter that fails every call by default.
type stubAdapter struct {
	err error
}

func (a *stubAdapter) Initialize(context.Context) (bool, error) { return false, a.fail() }
func (a *stubAdapter) InitLockTime(context.Context, uint32, int64) (int64, error) {
	return 0, a.fail()
}
func (a *stubAdapter) ValidateLockTime(context.Context, int64, uint32, int64) (bool, error) {
	return false, a.fail()
}
func (a *stubAdapter) HasEnoughTimeToProcessLockTx(context.Context) (bool, error) {
	return false, a.fail()
}
func (a *stubAdapter) SendLockTx(context.Context) (bool, error)    { return false, a.fail() }
func (a *stubAdapter) ConfirmLockTx(context.Context) (bool, error) { return false, a.fail() }
func (a *stubAdapter) IsLockTimeExpired(context.Context) (bool, error) {
	return false, a.fail()
}
func (a *stubAdapter) SendRefund(context.Context) (bool, error)      { return false, a.fail() }
func (a *stubAdapter) ConfirmRefundTx(context.Context) (bool, error) { return false, a.fail() }
func (a *stubAdapter) SendRedeem(context.Context, [32]byte) (bool, error) {
	return false, a.fail()
}
func (a *stubAdapter) ConfirmRedeemTx(context.Context) (bool, error) { return false, a.fail() }
func (a *stubAdapter) ExtractRedeemSecret(context.Context) ([32]byte, error) {
	return [32]byte{}, a.fail()
}
func (a *stubAdapter) AddTxDetails(context.Context) (*foreignswap.TxDetails, error) {
	return nil, a.fail()
}

func (a *stubAdapter) fail() error {
	if a.err != nil {
		return a.err
	}
	return errStub
}

var _ foreignswap.Adapter = (*stubAdapter)(nil)

// recorder is an fsm.Observer that collects every notification, letting a
// test assert on the immediate transition a call produced even when the
// engine's internal loop cascades further afterward.
type recorder struct {
	notes []fsm.Notification
}

func (r *recorder) Notify(n fsm.Notification) {
	r.notes = append(r.notes, n)
}

func (r *recorder) first() fsm.Notification {
	if len(r.notes) == 0 {
		return fsm.Notification{}
	}
	return r.notes[0]
}

// newTestFSM builds an FSM backed by a real, temp-dir Parameter Store and a
// real DeterministicKeySource (grounded, not faked: nativetx.KeySource's
// reference implementation needs no external collaborator), entering
// directly at start rather than replaying every transition since Initial.
func newTestFSM(t *testing.T, role swap.Role, start swap.TopState) (*FSM, *recorder) {
	t.Helper()

	store, err := paramstore.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	cfg := &Config{
		Store:          store,
		Gateway:        &stubGateway{confirmed: map[swap.SubTxID]uint32{}},
		Transport:      &stubTransport{},
		Keys:           nativetx.DeterministicKeySource{Seed: [32]byte{1, 2, 3}},
		MinLockWindow:  10,
		MinNativeConfs: 1,
	}

	sw := swap.NewSwap(swap.NewID(), role)
	sw.TopState = start
	sw.MinHeight = 100
	sw.PeerResponseWindow = 50

	f := NewFSMFromSwap(context.Background(), cfg, sw, &stubAdapter{})

	rec := &recorder{}
	f.RegisterObserver(rec)

	return f, rec
}
