package swap

import "fmt"

// ErrorKind is the closed set of failure reasons a swap can record, both as
// an internal diagnostic and, for a subset of them, as a value sent to the
// peer in a Failure notification (see ParamFailureReason vs
// ParamInternalFailureReason).
type ErrorKind uint8

const (
	// KindUnknown is the zero value; it is never intentionally recorded.
	KindUnknown ErrorKind = iota

	// KindFailToStartSwap indicates InitNewSwap/AcceptSwap could not
	// bring the swap to the Initial state.
	KindFailToStartSwap

	// KindMissingParameter indicates a get_required call found no value,
	// or a value of the wrong type, for a parameter id.
	KindMissingParameter

	// KindInvalidPeerSignature indicates a peer-supplied partial
	// signature failed verification.
	KindInvalidPeerSignature

	// KindFailedToCreateMultiSig indicates the interactive shared-output
	// construction (bulletproof rounds, shared blinding factor) could
	// not be completed.
	KindFailedToCreateMultiSig

	// KindInvalidTransaction indicates the assembled transaction failed
	// context validation.
	KindInvalidTransaction

	// KindMaxHeightUnacceptable indicates update_max_height computed a
	// window shorter than the configured floor.
	KindMaxHeightUnacceptable

	// KindNotEnoughTimeToFinishForeignTx indicates the foreign-side
	// party's pre-flight check failed.
	KindNotEnoughTimeToFinishForeignTx

	// KindTransactionExpired indicates the Lock sub-tx's MaxHeight (or
	// peer_response_height fallback) was reached without registration.
	KindTransactionExpired

	// KindFailedToRegister indicates the node gateway reported a
	// non-retryable registration failure for a kernel.
	KindFailedToRegister

	// KindFailedToSendParameters indicates the transport could not
	// deliver a peer message bundle.
	KindFailedToSendParameters

	// KindCanceled indicates the local user (or, on the wire, the peer)
	// canceled the swap.
	KindCanceled

	// KindSubTxFailed indicates a sub-tx-scoped failure was raised via
	// OnSubTxFailed.
	KindSubTxFailed

	// KindSecondSideFactoryNotRegistered indicates AtomicSwapCoin names
	// a coin with no registered AdapterFactory.
	KindSecondSideFactoryNotRegistered

	// KindUninitializedSecondSide indicates the foreign adapter is not
	// yet available. This is always recoverable and never surfaced to
	// the user as a failure.
	KindUninitializedSecondSide

	// KindUnknownFailure is used when a peer reports a FailureReason this
	// version does not recognize.
	KindUnknownFailure
)

// String returns the wire/log name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindFailToStartSwap:
		return "FailToStartSwap"
	case KindMissingParameter:
		return "MissingParameter"
	case KindInvalidPeerSignature:
		return "InvalidPeerSignature"
	case KindFailedToCreateMultiSig:
		return "FailedToCreateMultiSig"
	case KindInvalidTransaction:
		return "InvalidTransaction"
	case KindMaxHeightUnacceptable:
		return "MaxHeightUnacceptable"
	case KindNotEnoughTimeToFinishForeignTx:
		return "NotEnoughTimeToFinishForeignTx"
	case KindTransactionExpired:
		return "TransactionExpired"
	case KindFailedToRegister:
		return "FailedToRegister"
	case KindFailedToSendParameters:
		return "FailedToSendParameters"
	case KindCanceled:
		return "Canceled"
	case KindSubTxFailed:
		return "SubTxFailed"
	case KindSecondSideFactoryNotRegistered:
		return "SecondSideFactoryNotRegistered"
	case KindUninitializedSecondSide:
		return "UninitializedSecondSide"
	case KindUnknownFailure:
		return "Unknown"
	default:
		return "Unknown"
	}
}

// Error is the wrapped-cause error type every failure path in this module
// returns, mirroring the shape of fsm.ErrConfigError: a stable kind plus an
// optional underlying cause, so callers can branch with errors.Is/As instead
// of string matching.
type Error struct {
	Kind  ErrorKind
	Cause error
}

// NewError creates an Error of the given kind, optionally wrapping cause.
func NewError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}

	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

// Unwrap allows errors.Is/errors.As to see through to the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, swap.NewError(swap.KindMissingParameter, nil)).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}

	return other.Kind == e.Kind
}

// MissingParameter is a convenience constructor for the most common local
// error, raised by Store.GetRequired.
func MissingParameter(subTx SubTxID, id ParamID) *Error {
	return NewError(KindMissingParameter, fmt.Errorf(
		"parameter %v missing for sub-tx %v", id, subTx,
	))
}
