package nativetx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdaptorSignatureRoundTrip(t *testing.T) {
	// myTrue is the native side's own, un-adapted contribution.
	excessNative, nonceNative := mustScalar(t), mustScalar(t)
	excessForeign, nonceForeign := mustScalar(t), mustScalar(t)

	pubExcessNative := ScalarBaseMult(excessNative)
	pubNonceNative := ScalarBaseMult(nonceNative)
	pubExcessForeign := ScalarBaseMult(excessForeign)
	pubNonceForeign := ScalarBaseMult(nonceForeign)

	msg := KernelMessage("redeem-kernel-msg")

	myTrue, err := SignPartial(
		excessNative, nonceNative, pubExcessForeign, pubNonceForeign, msg,
	)
	require.NoError(t, err)

	foreignTrue, err := SignPartial(
		excessForeign, nonceForeign, pubExcessNative, pubNonceNative, msg,
	)
	require.NoError(t, err)

	secret := mustScalar(t)
	secretPoint := ScalarBaseMult(secret)

	adapted := AdaptPartialSignature(foreignTrue, secret)

	// The adapted partial does not verify against the honest equation...
	ok, err := IsPartialSignatureValid(adapted, myTrue, msg)
	require.NoError(t, err)
	require.False(t, ok)

	// ...but it does commit to the previously advertised secret point.
	require.NoError(t, VerifyAdaptedRedeemCommitment(adapted, myTrue, msg, secretPoint))

	// Once the native side learns secret, it can finalize a valid kernel.
	total, err := FinalizeAdaptedSignature(myTrue, adapted, secret)
	require.NoError(t, err)

	aggregateExcess, err := AddPoints(pubExcessNative, pubExcessForeign)
	require.NoError(t, err)
	require.True(t, IsKernelSignatureValid(total, aggregateExcess, msg))

	// And ExtractSecret recovers the same secret from the finalized kernel.
	recovered, err := ExtractSecret(total, myTrue, adapted)
	require.NoError(t, err)
	require.True(t, recovered.Equal(secret))
}

func TestSecretFromPreimageRejectsWrongLength(t *testing.T) {
	_, err := SecretFromPreimage([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestSecretFromPreimageMatchesAdvertisedPoint(t *testing.T) {
	secret := mustScalar(t)
	preimage := secret.Bytes()

	recovered, err := SecretFromPreimage(preimage[:])
	require.NoError(t, err)
	require.True(t, recovered.Equal(secret))
}
