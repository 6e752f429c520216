// Package swapfsm drives one swap's top-level state machine (spec §4.5):
// the sequence of Building/Handling/Sending states a swap moves through
// from creation to a terminal outcome, backed by the fsm engine and the
// Parameter Store.
package swapfsm

import (
	"context"

	"github.com/mwswap/swapd/fsm"
	"github.com/mwswap/swapd/foreignswap"
	"github.com/mwswap/swapd/nativetx"
	"github.com/mwswap/swapd/paramstore"
	"github.com/mwswap/swapd/swap"
)

// Config bundles every collaborator one swap's state machine needs to make
// progress, mirroring the teacher's own per-FSM Config convention.
type Config struct {
	// Store is the Parameter Store backing every swap driven by this
	// Config.
	Store *paramstore.Store

	// Gateway is the native chain's node.
	Gateway NativeGateway

	// Transport delivers wire message bundles to the peer.
	Transport Transport

	// Keys derives this party's native-chain scalars.
	Keys nativetx.KeySource

	// Inputs selects native-chain funding inputs for the Lock sub-tx.
	Inputs nativetx.InputSource

	// RangeProofProver drives the interactive bulletproof rounds.
	RangeProofProver nativetx.RangeProofProver

	// MinLockWindow is the smallest acceptable
	// (native_lock_height - peer_response_height) gap.
	MinLockWindow uint32

	// MinNativeConfs is the configured confirmation depth for native
	// sub-tx kernel proofs. No action in this package reads it: a sub-tx
	// counts as confirmed as soon as FetchConfirmationHeight reports a
	// height for it.
	MinNativeConfs uint32

	// ForeignLockSafetyMargin is the foreign lock's timeout safety margin,
	// in the foreign chain's own clock units (spec §4.4). No action in this
	// package reads it or compares the foreign lock time with the native
	// lock height.
	ForeignLockSafetyMargin int64
}

// FSM drives a single swap's top-level state machine.
type FSM struct {
	*fsm.StateMachine

	// Cfg holds this FSM's injected collaborators.
	Cfg *Config

	// Swap is the in-memory working copy of the swap being advanced.
	Swap *swap.Swap

	// Adapter is this swap's foreign-side collaborator, resolved once
	// via foreignswap.NewAdapter and reused for the swap's lifetime
	// (spec §9 design note: "Lazy foreign adapter with per-swap
	// injection").
	Adapter foreignswap.Adapter

	ctx context.Context

	*swap.PrefixLog
}

// NewFSM constructs a fresh FSM for a swap that has just been created by
// InitNewSwap or AcceptSwap, starting in the Initial state.
func NewFSM(ctx context.Context, cfg *Config, sw *swap.Swap,
	adapter foreignswap.Adapter) *FSM {

	return newFSM(ctx, cfg, sw, adapter, topState(swap.StateInitial))
}

// NewFSMFromSwap resumes an FSM from a swap loaded back from the Parameter
// Store, entering it directly at its persisted TopState rather than
// replaying every transition since Initial.
func NewFSMFromSwap(ctx context.Context, cfg *Config, sw *swap.Swap,
	adapter foreignswap.Adapter) *FSM {

	return newFSM(ctx, cfg, sw, adapter, topState(sw.TopState))
}

func newFSM(ctx context.Context, cfg *Config, sw *swap.Swap,
	adapter foreignswap.Adapter, current fsm.StateType) *FSM {

	f := &FSM{
		Cfg:     cfg,
		Swap:    sw,
		Adapter: adapter,
		ctx:     ctx,
		PrefixLog: &swap.PrefixLog{
			Logger: log,
			ID:     sw.ID,
		},
	}

	f.StateMachine = fsm.NewStateMachineWithState(f.buildStates(), current, 0)
	f.StateMachine.ActionEntryFunc = f.persistState

	return f
}

// persistState writes the swap's current TopState and derived Status to
// the Parameter Store. It runs as the engine's ActionEntryFunc, so by the
// time it fires s.current has already advanced to the state whose action is
// about to run (see fsm.StateMachine.getNextState): reading f.CurrentState()
// here always reflects the transition currently in flight, the same value
// the teacher's own updateReservation would have read off its
// fsm.Notification.NextState.
func (f *FSM) persistState() {
	next := swap.TopState(f.CurrentState())
	f.Swap.TopState = next
	f.Swap.Status = statusForState(next)

	batch := f.Cfg.Store.NewBatch(f.Swap.ID)

	if err := paramstore.SetBatch(batch, swap.SubTxDefault, swap.ParamState,
		next, paramstore.TopStateCodec); err != nil {

		f.Errorf("persist state: %v", err)
		return
	}

	if err := paramstore.SetBatch(batch, swap.SubTxDefault, swap.ParamStatus,
		f.Swap.Status, paramstore.StatusCodec); err != nil {

		f.Errorf("persist status: %v", err)
		return
	}

	if err := batch.Commit(); err != nil {
		f.Errorf("commit state persistence: %v", err)
		return
	}

	f.Debugf("entered state %v (status %v)", next, f.Swap.Status)
}

// statusForState derives the user-visible Status from TopState (spec §7).
// StateRefunded maps to StatusFailed: the protocol resolved safely, but the
// swap did not accomplish what the parties set out to do.
func statusForState(s swap.TopState) swap.Status {
	switch s {
	case swap.StateInitial:
		return swap.StatusPending
	case swap.StateCompleteSwap:
		return swap.StatusCompleted
	case swap.StateCanceled:
		return swap.StatusCanceled
	case swap.StateFailed, swap.StateRefunded:
		return swap.StatusFailed
	default:
		return swap.StatusInProgress
	}
}

// isFinalState reports whether the swap has reached a terminal outcome.
func (f *FSM) isFinalState() bool {
	return swap.TopState(f.CurrentState()).IsTerminal()
}
