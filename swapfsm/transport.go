package swapfsm

import "github.com/mwswap/swapd/peermsg"

// Transport delivers a wire message bundle to the swap's peer. Connecting
// this to a real messaging channel is out of scope for this coordinator
// (spec §1's peer transport collaborator); a production deployment backs it
// with whatever request/response channel the two parties already share.
type Transport interface {
	Send(peerID string, kind MessageKind, b *peermsg.Bundle) error
}
