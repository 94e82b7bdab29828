package bridge

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func newValidatorSet(t *testing.T, n int) (*AccessPolicy, []*ecdsa.PrivateKey) {
	policy := NewAccessPolicy(testAdmin, AdministeredRoles())
	keys := make([]*ecdsa.PrivateKey, n)
	for i := range keys {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		keys[i] = key
		require.NoError(t, policy.Grant(testAdmin, RoleValidator, crypto.PubkeyToAddress(key.PublicKey)))
	}
	return policy, keys
}

func sign(t *testing.T, digest common.Hash, keys ...*ecdsa.PrivateKey) [][]byte {
	sigs := make([][]byte, 0, len(keys))
	for _, key := range keys {
		sig, err := SignApproval(digest, key)
		require.NoError(t, err)
		sigs = append(sigs, sig)
	}
	return sigs
}

func TestDefaultThreshold(t *testing.T) {
	require := require.New(t)
	// Base design: 3 validators, 2 required.
	require.Equal(2, DefaultThreshold(3))
	require.Equal(4, DefaultThreshold(5))
	require.Equal(1, DefaultThreshold(1))
}

func TestQuorumVerify(t *testing.T) {
	require := require.New(t)

	policy, keys := newValidatorSet(t, 5)
	v, err := NewQuorumVerifier(ConsensusConfig{MinValidators: 5, Threshold: 4})
	require.NoError(err)

	digest := ApprovalDigest("XCHAIN_RELAY_V2", common.HexToHash("0x01"), 1, nil)

	signers, err := v.Verify(policy, digest, sign(t, digest, keys[0], keys[1], keys[2], keys[3]))
	require.NoError(err)
	require.Len(signers, 4)

	_, err = v.Verify(policy, digest, sign(t, digest, keys[0], keys[1], keys[2]))
	require.ErrorIs(err, ErrInsufficientApprovals)
}

func TestQuorumRejectsDuplicateSigner(t *testing.T) {
	require := require.New(t)

	policy, keys := newValidatorSet(t, 3)
	v, err := NewQuorumVerifier(ConsensusConfig{MinValidators: 3, Threshold: 2})
	require.NoError(err)

	digest := ApprovalDigest("XCHAIN_RELAY_V2", common.HexToHash("0x02"), 1, nil)
	sigs := sign(t, digest, keys[0], keys[0])
	_, err = v.Verify(policy, digest, sigs)
	require.ErrorIs(err, ErrDuplicateApproval)
	require.ErrorIs(err, ErrInvalidApprovalSignature)
}

func TestQuorumRejectsNonValidatorSigner(t *testing.T) {
	require := require.New(t)

	policy, keys := newValidatorSet(t, 3)
	outsider, err := crypto.GenerateKey()
	require.NoError(err)

	v, err := NewQuorumVerifier(ConsensusConfig{MinValidators: 3, Threshold: 2})
	require.NoError(err)

	digest := ApprovalDigest("XCHAIN_RELAY_V2", common.HexToHash("0x03"), 1, nil)
	_, err = v.Verify(policy, digest, sign(t, digest, keys[0], outsider))
	require.ErrorIs(err, ErrInvalidApprovalSignature)
}

func TestQuorumRejectsGarbageSignature(t *testing.T) {
	require := require.New(t)

	policy, keys := newValidatorSet(t, 3)
	v, err := NewQuorumVerifier(ConsensusConfig{MinValidators: 3, Threshold: 2})
	require.NoError(err)

	digest := ApprovalDigest("XCHAIN_RELAY_V2", common.HexToHash("0x04"), 1, nil)
	sigs := sign(t, digest, keys[0])
	sigs = append(sigs, make([]byte, 65))
	_, err = v.Verify(policy, digest, sigs)
	require.ErrorIs(err, ErrInvalidApprovalSignature)
}

func TestApprovalDigestDomainSeparation(t *testing.T) {
	require := require.New(t)

	id := common.HexToHash("0x05")
	base := ApprovalDigest("XCHAIN_RELAY_V2", id, 1, nil)
	require.NotEqual(base, ApprovalDigest("XCHAIN_RELAY_V2", id, 2, nil))
	require.NotEqual(base, ApprovalDigest("OTHER_TAG", id, 1, nil))
	require.NotEqual(base, ApprovalDigest("XCHAIN_RELAY_V2", id, 1, []byte("staging")))
	require.NotEqual(base, ApprovalDigest("XCHAIN_RELAY_V2", common.HexToHash("0x06"), 1, nil))
}

func TestConsensusConfigValidation(t *testing.T) {
	require := require.New(t)

	_, err := NewQuorumVerifier(ConsensusConfig{MinValidators: 0, Threshold: 1})
	require.Error(err)
	_, err = NewQuorumVerifier(ConsensusConfig{MinValidators: 3, Threshold: 4})
	require.Error(err)
	_, err = NewQuorumVerifier(ConsensusConfig{MinValidators: 3, Threshold: 0})
	require.Error(err)
}
