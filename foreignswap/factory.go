package foreignswap

import (
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/mwswap/swapd/swap"
)

// AdapterFactory builds an Adapter for one swap, given its parameters.
// Registered per AtomicSwapCoin (spec §9 design note: "Lazy foreign adapter
// with per-swap injection").
type AdapterFactory func(params AdapterParams) (Adapter, error)

// AdapterParams is everything a factory needs to build one swap's Adapter.
// The chain client, funding source, and signer a concrete factory needs are
// expected to be closed over by the factory itself (see
// NewBtcAdapterFactory) rather than threaded through here, since those are
// shared across every swap on a given coin rather than swap-specific.
type AdapterParams struct {
	SwapID          swap.ID
	IsInitiator     bool
	Amount          btcutil.Amount
	CounterpartyKey []byte
	SecretHash      [32]byte
}

var (
	registryMu sync.Mutex
	registry   = map[string]AdapterFactory{}
)

// RegisterFactory registers f as the adapter factory for coin. Intended to
// be called from an init() in the package providing a given coin's adapter,
// the way the teacher's own subsystems register themselves rather than
// requiring a central switch statement.
func RegisterFactory(coin string, f AdapterFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[coin] = f
}

// NewAdapter resolves and constructs the Adapter for coin, failing with
// swap.KindSecondSideFactoryNotRegistered if no factory is registered.
func NewAdapter(coin string, params AdapterParams) (Adapter, error) {
	registryMu.Lock()
	factory, ok := registry[coin]
	registryMu.Unlock()

	if !ok {
		return nil, swap.NewError(swap.KindSecondSideFactoryNotRegistered, nil)
	}

	return factory(params)
}
