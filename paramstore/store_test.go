package paramstore

import (
	"testing"

	"github.com/mwswap/swapd/swap"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })

	return s
}

func TestGetRequiredMissing(t *testing.T) {
	s := newTestStore(t)
	id := swap.NewID()

	_, err := GetRequired(s, id, swap.SubTxDefault, swap.ParamAmount, AmountCodec)
	require.Error(t, err)

	var swapErr *swap.Error
	require.ErrorAs(t, err, &swapErr)
	require.Equal(t, swap.KindMissingParameter, swapErr.Kind)
}

func TestSetAndGet(t *testing.T) {
	s := newTestStore(t)
	id := swap.NewID()

	require.NoError(t, Set(
		s, id, swap.SubTxNativeLock, swap.ParamMinHeight, uint32(100),
		Uint32Codec,
	))

	got, err := GetRequired(
		s, id, swap.SubTxNativeLock, swap.ParamMinHeight, Uint32Codec,
	)
	require.NoError(t, err)
	require.Equal(t, uint32(100), got)

	// A different sub-tx partition must not see the value.
	_, ok, err := Get(
		s, id, swap.SubTxNativeRedeem, swap.ParamMinHeight, Uint32Codec,
	)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBatchAtomicCommit(t *testing.T) {
	s := newTestStore(t)
	id := swap.NewID()

	b := s.NewBatch(id)
	require.NoError(t, SetBatch(b, swap.SubTxDefault, swap.ParamFee, btcAmount(500), AmountCodec))
	require.NoError(t, SetBatch(b, swap.SubTxNativeLock, swap.ParamMaxHeight, uint32(900), Uint32Codec))

	// Nothing is visible before Commit.
	_, ok, err := Get(s, id, swap.SubTxDefault, swap.ParamFee, AmountCodec)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, b.Commit())

	fee, err := GetRequired(s, id, swap.SubTxDefault, swap.ParamFee, AmountCodec)
	require.NoError(t, err)
	require.Equal(t, btcAmount(500), fee)

	maxHeight, err := GetRequired(s, id, swap.SubTxNativeLock, swap.ParamMaxHeight, Uint32Codec)
	require.NoError(t, err)
	require.Equal(t, uint32(900), maxHeight)
}

func TestBatchDiscard(t *testing.T) {
	s := newTestStore(t)
	id := swap.NewID()

	b := s.NewBatch(id)
	require.NoError(t, SetBatch(b, swap.SubTxDefault, swap.ParamFee, btcAmount(1), AmountCodec))
	b.Discard()
	require.NoError(t, b.Commit())

	_, ok, err := Get(s, id, swap.SubTxDefault, swap.ParamFee, AmountCodec)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPubKeyRoundTrip(t *testing.T) {
	s := newTestStore(t)
	id := swap.NewID()

	priv := testPrivKey(t)
	pub := priv.PubKey()

	require.NoError(t, Set(
		s, id, swap.SubTxNativeRedeem, swap.ParamAtomicSwapSecretPublicKey,
		pub, PubKeyCodec,
	))

	got, err := GetRequired(
		s, id, swap.SubTxNativeRedeem, swap.ParamAtomicSwapSecretPublicKey,
		PubKeyCodec,
	)
	require.NoError(t, err)
	require.True(t, pub.IsEqual(got))
}
