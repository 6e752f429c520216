package swap

// ParamID is the closed enumeration of parameter identifiers the Parameter
// Store can hold, keyed together with a SubTxID. Each id has exactly one
// expected payload type, enforced by the paramstore package's typed
// accessors rather than left to a runtime type assertion (spec §9 design
// note).
type ParamID uint16

const (
	ParamUnknown ParamID = iota

	ParamAmount
	ParamFee
	ParamMinHeight
	ParamPeerResponseHeight
	ParamPeerPublicExcess
	ParamPeerPublicNonce
	ParamPeerSignature
	ParamPeerOffset
	ParamPeerSharedBulletProofPart2
	ParamPeerSharedBulletProofPart3
	ParamPeerPublicSharedBlindingFactor

	ParamAtomicSwapSecretPublicKey
	ParamAtomicSwapSecretPrivateKey
	ParamAtomicSwapExternalLockTime

	ParamKernelID
	ParamKernelProofHeight
	ParamKernelUnconfirmedHeight
	ParamTransactionRegistered
	ParamKernel

	ParamState
	ParamFailureReason
	ParamInternalFailureReason

	ParamMaxHeight
	ParamSharedCoinID
	ParamTransactionType
	ParamCreateTime
	ParamLifetime

	ParamIsSender
	ParamIsInitiator
	ParamMyID
	ParamPeerID

	ParamAtomicSwapIsNativeSide
	ParamAtomicSwapCoin
	ParamAtomicSwapAmount
	ParamAtomicSwapPublicKey
	ParamAtomicSwapPeerPublicKey

	ParamSubTxIndex
	ParamStatus
	ParamPeerProtoVersion

	// ParamPeerMaxHeight carries the Lock invitation's proposed kernel
	// MaxHeight (spec §6.1); gated on PeerProtoVersion >= ProtoVersion1.
	ParamPeerMaxHeight

	// ParamExternalTxDetails carries the foreign-side party's serialized
	// foreignswap.TxDetails, the "External tx details" bundle (spec
	// §6.1).
	ParamExternalTxDetails
)

// name is used by String and by paramstore for log messages; it is not part
// of the wire format, which always uses the numeric ParamID.
var name = map[ParamID]string{
	ParamAmount:                          "Amount",
	ParamFee:                             "Fee",
	ParamMinHeight:                       "MinHeight",
	ParamPeerResponseHeight:              "PeerResponseHeight",
	ParamPeerPublicExcess:                "PeerPublicExcess",
	ParamPeerPublicNonce:                 "PeerPublicNonce",
	ParamPeerSignature:                   "PeerSignature",
	ParamPeerOffset:                      "PeerOffset",
	ParamPeerSharedBulletProofPart2:      "PeerSharedBulletProofPart2",
	ParamPeerSharedBulletProofPart3:      "PeerSharedBulletProofPart3",
	ParamPeerPublicSharedBlindingFactor:  "PeerPublicSharedBlindingFactor",
	ParamAtomicSwapSecretPublicKey:       "AtomicSwapSecretPublicKey",
	ParamAtomicSwapSecretPrivateKey:      "AtomicSwapSecretPrivateKey",
	ParamAtomicSwapExternalLockTime:      "AtomicSwapExternalLockTime",
	ParamKernelID:                        "KernelID",
	ParamKernelProofHeight:               "KernelProofHeight",
	ParamKernelUnconfirmedHeight:         "KernelUnconfirmedHeight",
	ParamTransactionRegistered:           "TransactionRegistered",
	ParamKernel:                          "Kernel",
	ParamState:                           "State",
	ParamFailureReason:                   "FailureReason",
	ParamInternalFailureReason:           "InternalFailureReason",
	ParamMaxHeight:                       "MaxHeight",
	ParamSharedCoinID:                    "SharedCoinID",
	ParamTransactionType:                 "TransactionType",
	ParamCreateTime:                      "CreateTime",
	ParamLifetime:                        "Lifetime",
	ParamIsSender:                        "IsSender",
	ParamIsInitiator:                     "IsInitiator",
	ParamMyID:                            "MyID",
	ParamPeerID:                          "PeerID",
	ParamAtomicSwapIsNativeSide:          "AtomicSwapIsNativeSide",
	ParamAtomicSwapCoin:                  "AtomicSwapCoin",
	ParamAtomicSwapAmount:                "AtomicSwapAmount",
	ParamAtomicSwapPublicKey:             "AtomicSwapPublicKey",
	ParamAtomicSwapPeerPublicKey:         "AtomicSwapPeerPublicKey",
	ParamSubTxIndex:                      "SubTxIndex",
	ParamStatus:                          "Status",
	ParamPeerProtoVersion:                "PeerProtoVersion",
	ParamPeerMaxHeight:                   "PeerMaxHeight",
	ParamExternalTxDetails:               "ExternalTxDetails",
}

// String returns the human-readable name of the parameter id.
func (p ParamID) String() string {
	if n, ok := name[p]; ok {
		return n
	}

	return "Unknown"
}

// ProtoVersion gates which optional bundle fields a peer message includes
// (SPEC_FULL "supplemented features").
type ProtoVersion uint8

const (
	// ProtoVersion0 is the legacy protocol: no PeerMaxHeight field in the
	// Lock invitation.
	ProtoVersion0 ProtoVersion = iota

	// ProtoVersion1 is the current protocol.
	ProtoVersion1
)
