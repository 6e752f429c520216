package swapfsm

import (
	"github.com/mwswap/swapd/nativetx"
	"github.com/mwswap/swapd/paramstore"
	"github.com/mwswap/swapd/swap"
)

// pendingWrite stages one typed parameter write against a sub-tx whose
// bucket isn't chosen until setAll applies it, letting Deliver build a
// single flat list of writes per message kind regardless of each field's
// concrete type.
type pendingWrite func(batch *paramstore.Batch, sub swap.SubTxID) error

func set[T any](id swap.ParamID, v T, codec paramstore.Codec[T]) pendingWrite {
	return func(batch *paramstore.Batch, sub swap.SubTxID) error {
		return paramstore.SetBatch(batch, sub, id, v, codec)
	}
}

func setScalar(id swap.ParamID, v nativetx.Scalar) pendingWrite {
	return set(id, v, nativetx.ScalarCodec)
}

func setAll(batch *paramstore.Batch, sub swap.SubTxID, writes ...pendingWrite) error {
	for _, w := range writes {
		if err := w(batch, sub); err != nil {
			return err
		}
	}

	return nil
}

// getParam is a thin wrapper around paramstore.Get scoped to one FSM's swap,
// used throughout actions.go so every read site names only the sub-tx and
// parameter it needs.
func getParam[T any](f *FSM, sub swap.SubTxID, id swap.ParamID,
	codec paramstore.Codec[T]) (T, bool, error) {

	return paramstore.Get(f.Cfg.Store, f.Swap.ID, sub, id, codec)
}

// requireParam is getParam's GetRequired counterpart.
func requireParam[T any](f *FSM, sub swap.SubTxID, id swap.ParamID,
	codec paramstore.Codec[T]) (T, error) {

	return paramstore.GetRequired(f.Cfg.Store, f.Swap.ID, sub, id, codec)
}

// setOne stages and immediately commits a single parameter write, used by
// actions.go for the occasional write that does not belong to a larger
// batch (for example recording a kernel proof height).
func setOne[T any](f *FSM, sub swap.SubTxID, id swap.ParamID, v T, codec paramstore.Codec[T]) error {
	batch := f.Cfg.Store.NewBatch(f.Swap.ID)
	if err := paramstore.SetBatch(batch, sub, id, v, codec); err != nil {
		return err
	}
	return batch.Commit()
}
