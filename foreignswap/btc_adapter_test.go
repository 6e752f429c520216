package foreignswap

import (
	"context"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	height int32
	confs  map[chainhash.Hash]int32
	spends map[wire.OutPoint]wire.TxWitness
}

func newFakeChain(height int32) *fakeChain {
	return &fakeChain{
		height: height,
		confs:  make(map[chainhash.Hash]int32),
		spends: make(map[wire.OutPoint]wire.TxWitness),
	}
}

func (f *fakeChain) CurrentHeight(ctx context.Context) (int32, error) {
	return f.height, nil
}

func (f *fakeChain) PublishTransaction(ctx context.Context, tx *wire.MsgTx) error {
	txid := tx.TxHash()
	f.confs[txid] = 0

	for _, in := range tx.TxIn {
		f.spends[in.PreviousOutPoint] = in.Witness
	}

	return nil
}

func (f *fakeChain) Confirmations(ctx context.Context, txid *chainhash.Hash) (int32, error) {
	return f.confs[*txid], nil
}

func (f *fakeChain) FetchRedeemWitness(ctx context.Context, txid *chainhash.Hash,
	outputIndex uint32) (wire.TxWitness, bool, error) {

	witness, ok := f.spends[wire.OutPoint{Hash: *txid, Index: outputIndex}]

	return witness, ok, nil
}

type fakeFunding struct {
	utxo UTXO
}

func (f fakeFunding) SelectUTXO(ctx context.Context, amount btcutil.Amount) (UTXO, error) {
	return f.utxo, nil
}

type fakeSigner struct {
	priv *btcec.PrivateKey
}

func (f fakeSigner) SignHtlc(ctx context.Context, tx *wire.MsgTx, inputIndex int,
	script []byte, amount btcutil.Amount) ([]byte, error) {

	return []byte("fake-signature"), nil
}

func (f fakeSigner) PubKey() *btcec.PublicKey {
	return f.priv.PubKey()
}

func newTestAdapter(t *testing.T, chain *fakeChain) (*BtcAdapter, [32]byte) {
	t.Helper()

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	var secret [32]byte
	copy(secret[:], []byte("supersecretpreimage-32-bytes!!!!"))
	secretHash := sha256.Sum256(secret[:])

	cfg := BtcAdapterConfig{
		ChainParams: &chaincfg.RegressionNetParams,
		Chain:       chain,
		Funding: fakeFunding{utxo: UTXO{
			Outpoint: wire.OutPoint{Index: 0},
			PkScript: []byte{0x51},
			Value:    1_000_000,
		}},
		Signer:           fakeSigner{priv: priv},
		SecretHash:       secretHash,
		ReceiverPKH:      [20]byte{0xaa},
		SenderPKH:        [20]byte{0xbb},
		Amount:           500_000,
		MinConfirmations: 1,
		CltvSafetyMargin: 144,
	}

	return NewBtcAdapter(cfg), secret
}

func TestBtcAdapterHappyPath(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(100)
	adapter, secret := newTestAdapter(t, chain)

	expiry, err := adapter.InitLockTime(ctx, 500, 144)
	require.NoError(t, err)
	require.Equal(t, int64(244), expiry)

	ready, err := adapter.Initialize(ctx)
	require.NoError(t, err)
	require.True(t, ready)

	enoughTime, err := adapter.HasEnoughTimeToProcessLockTx(ctx)
	require.NoError(t, err)
	require.True(t, enoughTime)

	sent, err := adapter.SendLockTx(ctx)
	require.NoError(t, err)
	require.True(t, sent)

	// Not confirmed yet.
	confirmed, err := adapter.ConfirmLockTx(ctx)
	require.NoError(t, err)
	require.False(t, confirmed)

	chain.confs[adapter.lockTx.TxHash()] = 1

	confirmed, err = adapter.ConfirmLockTx(ctx)
	require.NoError(t, err)
	require.True(t, confirmed)

	sentRedeem, err := adapter.SendRedeem(ctx, secret)
	require.NoError(t, err)
	require.True(t, sentRedeem)

	redeemConfirmed, err := adapter.ConfirmRedeemTx(ctx)
	require.NoError(t, err)
	require.True(t, redeemConfirmed)

	recovered, err := adapter.ExtractRedeemSecret(ctx)
	require.NoError(t, err)
	require.Equal(t, secret, recovered)

	details, err := adapter.AddTxDetails(ctx)
	require.NoError(t, err)
	require.Len(t, details.LockTxID, 32)
}

func TestBtcAdapterLockTimeExpiry(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(100)
	adapter, _ := newTestAdapter(t, chain)

	_, err := adapter.InitLockTime(ctx, 500, 144)
	require.NoError(t, err)

	expired, err := adapter.IsLockTimeExpired(ctx)
	require.NoError(t, err)
	require.False(t, expired)

	chain.height = 300

	expired, err = adapter.IsLockTimeExpired(ctx)
	require.NoError(t, err)
	require.True(t, expired)
}

func TestBtcAdapterFactoryRegistryMissing(t *testing.T) {
	_, err := NewAdapter("NONEXISTENT-COIN", AdapterParams{})
	require.Error(t, err)
}

func TestNewBtcAdapterFactoryDerivesRoles(t *testing.T) {
	chain := newFakeChain(0)
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	factory := NewBtcAdapterFactory(
		&chaincfg.RegressionNetParams, chain,
		fakeFunding{}, fakeSigner{priv: priv}, 1, 144,
	)

	peerPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	adapter, err := factory(AdapterParams{
		IsInitiator:     true,
		Amount:          1000,
		CounterpartyKey: peerPriv.PubKey().SerializeCompressed(),
	})
	require.NoError(t, err)

	btcAdapter, ok := adapter.(*BtcAdapter)
	require.True(t, ok)
	require.NotEqual(t, btcAdapter.cfg.ReceiverPKH, btcAdapter.cfg.SenderPKH)
}
