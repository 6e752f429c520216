// Package scheduler funnels the concurrent wakeup sources a running swap
// reacts to — a new native-chain tip, an inbound peer message, a periodic
// adapter poll — into a bounded per-swap queue and serializes them, so each
// swap is always advanced by exactly one turn at a time even though many
// swaps run concurrently (spec §5). It is the daemon-level counterpart to
// swapfsm.FSM: the FSM is a pure step function, the Scheduler is what calls
// it.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/mwswap/swapd/swap"
	"github.com/mwswap/swapd/swapfsm"
	"golang.org/x/sync/errgroup"
)

// EventKind identifies which of spec §5's wakeup sources an Event carries.
type EventKind uint8

const (
	// EvTick is a generic re-entry request with no new information
	// attached, satisfying update_async (spec §5).
	EvTick EventKind = iota

	// EvTip carries a new native-chain tip height, satisfying
	// UpdateOnNextTip (spec §5).
	EvTip

	// EvPeerMessage carries an inbound peer message bundle to hand to
	// FSM.Deliver.
	EvPeerMessage
)

// Event is one unit of work enqueued for a single swap's worker.
type Event struct {
	Kind EventKind

	// Height is set for EvTip.
	Height uint32

	// MsgKind and Raw are set for EvPeerMessage.
	MsgKind swapfsm.MessageKind
	Raw     []byte
}

// ErrQueueFull is returned by Enqueue when a swap's queue has no room left
// and the event cannot be coalesced away.
var ErrQueueFull = fmt.Errorf("scheduler: swap queue full")

// ErrUnknownSwap is returned by Enqueue for a swap.ID that was never
// registered, or that has already reached a terminal state and been
// dropped.
var ErrUnknownSwap = fmt.Errorf("scheduler: unknown or finished swap")

// worker owns one swap's serialized queue and the FSM it drives.
type worker struct {
	id    swap.ID
	fsm   *swapfsm.FSM
	queue chan Event
}

// Scheduler supervises one worker goroutine per registered swap, run under
// an errgroup.Group. An error returned by one swap's turn is logged by that
// worker, which keeps running, so it never takes any other swap's worker
// down; panics are not recovered. Only a caller that cancels the
// Scheduler's own context stops every worker at once.
type Scheduler struct {
	ctx       context.Context
	cancel    context.CancelFunc
	group     *errgroup.Group
	queueSize int

	mu      sync.Mutex
	workers map[swap.ID]*worker
}

// New builds a Scheduler whose workers run until ctx is canceled or Stop is
// called. queueSize bounds each swap's per-swap event queue (spec §5).
func New(ctx context.Context, queueSize int) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)

	return &Scheduler{
		ctx:       gctx,
		cancel:    cancel,
		group:     group,
		queueSize: queueSize,
		workers:   make(map[swap.ID]*worker),
	}
}

// Register starts a worker for f, which begins serving events immediately.
// It returns an error if a worker for this swap's ID is already running.
func (s *Scheduler) Register(f *swapfsm.FSM) error {
	id := f.Swap.ID

	s.mu.Lock()
	if _, ok := s.workers[id]; ok {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: swap %s already registered", id)
	}

	w := &worker{
		id:    id,
		fsm:   f,
		queue: make(chan Event, s.queueSize),
	}
	s.workers[id] = w
	s.mu.Unlock()

	f.Infof("scheduler: registered")

	s.group.Go(func() error {
		defer s.unregister(id)
		return s.run(w)
	})

	return nil
}

// Enqueue hands ev to sw's queue. EvTick events are coalesced: if the queue
// is already full, whatever it holds, a tick is simply dropped, since every
// pending event already leads to a re-evaluation. Every other
// event kind is delivered or reported back as ErrQueueFull so the caller
// (the transport, the chain-notifier client) can decide whether to retry.
func (s *Scheduler) Enqueue(id swap.ID, ev Event) error {
	s.mu.Lock()
	w, ok := s.workers[id]
	s.mu.Unlock()

	if !ok {
		return ErrUnknownSwap
	}

	select {
	case w.queue <- ev:
		return nil
	default:
	}

	if ev.Kind == EvTick {
		return nil
	}

	return ErrQueueFull
}

// BroadcastTip enqueues an EvTip for every currently registered swap,
// satisfying every swap's UpdateOnNextTip registration at once (spec §5).
// A swap whose queue is momentarily full is skipped rather than blocked on;
// it is checked for expiry again only when a later EvTip reaches it, since
// EvTick carries no height.
func (s *Scheduler) BroadcastTip(height uint32) {
	s.mu.Lock()
	ids := make([]swap.ID, 0, len(s.workers))
	for id := range s.workers {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		_ = s.Enqueue(id, Event{Kind: EvTip, Height: height})
	}
}

// Wait blocks until every worker has returned, which happens either because
// the Scheduler's context was canceled or every registered swap reached a
// terminal state. The first non-nil error any worker returned, if any, is
// returned.
func (s *Scheduler) Wait() error {
	return s.group.Wait()
}

// Stop cancels every worker's context and returns once they have all exited.
func (s *Scheduler) Stop() error {
	s.cancel()
	return s.Wait()
}

// Active reports how many swaps currently have a running worker.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

func (s *Scheduler) unregister(id swap.ID) {
	s.mu.Lock()
	delete(s.workers, id)
	s.mu.Unlock()
}

// run is a worker's event loop. It returns nil once the swap reaches a
// terminal state or the Scheduler's context is canceled, and never returns
// a non-nil error: a failed turn is logged and the loop goes on.
func (s *Scheduler) run(w *worker) error {
	for {
		select {
		case <-s.ctx.Done():
			w.fsm.Infof("scheduler: worker stopped")
			return nil

		case ev, ok := <-w.queue:
			if !ok {
				return nil
			}

			if err := dispatch(w.fsm, ev); err != nil {
				w.fsm.Errorf("scheduler: turn failed: %v", err)
			}

			if swap.TopState(w.fsm.CurrentState()).IsTerminal() {
				w.fsm.Infof("scheduler: swap reached terminal state, "+
					"worker exiting")
				return nil
			}
		}
	}
}

// dispatch applies one Event to f, the single place that translates spec
// §5's abstract event source {Tick, Tip(h), PeerMessage, AdapterEvent} into
// calls against the FSM's concrete re-entry points.
func dispatch(f *swapfsm.FSM, ev Event) error {
	switch ev.Kind {
	case EvTip:
		if f.CheckExpired(ev.Height) {
			if err := f.OnFailed(swap.KindTransactionExpired, false); err != nil {
				return err
			}
		}
		return tick(f)

	case EvPeerMessage:
		return f.Deliver(ev.MsgKind, ev.Raw)

	default:
		return tick(f)
	}
}

// tick re-checks the native Lock sub-tx for an internally-detected or
// peer-reported failure before re-entering the state machine's action for
// its current state, the same order OnFailed's callers follow elsewhere in
// this package.
func tick(f *swapfsm.FSM) error {
	sub := swap.SubTxNativeLock

	if err := f.CheckSubTxFailures(sub); err != nil {
		return err
	}
	if err := f.CheckExternalFailures(sub); err != nil {
		return err
	}

	return f.SendEvent(swapfsm.EvUpdate, nil)
}
