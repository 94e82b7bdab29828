package bridge

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ConsensusConfig sets the validator quorum. Both values are deployment
// configuration; nothing in the engine hard-codes a committee size.
type ConsensusConfig struct {
	MinValidators int
	Threshold     int
}

// DefaultThreshold returns ceil(2/3 * minValidators), the base quorum used
// when a deployment does not pin an explicit threshold.
func DefaultThreshold(minValidators int) int {
	return (2*minValidators + 2) / 3
}

func (c ConsensusConfig) validate() error {
	if c.MinValidators <= 0 {
		return fmt.Errorf("consensus: min validators must be positive, got %d", c.MinValidators)
	}
	if c.Threshold <= 0 || c.Threshold > c.MinValidators {
		return fmt.Errorf("consensus: threshold %d out of range for %d validators", c.Threshold, c.MinValidators)
	}
	return nil
}

// ApprovalDigest builds the canonical message validators sign for one
// request and hashes it: Keccak-256 over
// protocolTag || requestId || sourceChainId || domain. The source chain id
// and domain discriminator keep a signature from being replayed for another
// chain or deployment.
func ApprovalDigest(protocolTag string, requestID common.Hash, sourceChain uint64, domain []byte) common.Hash {
	buf := make([]byte, 0, len(protocolTag)+common.HashLength+8+len(domain))
	buf = append(buf, protocolTag...)
	buf = append(buf, requestID.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, sourceChain)
	buf = append(buf, domain...)
	return crypto.Keccak256Hash(buf)
}

// SignApproval produces a validator approval: a 65-byte secp256k1 signature
// over the approval digest. Used by the validator-side signer tool and by
// tests.
func SignApproval(digest common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	return crypto.Sign(digest.Bytes(), key)
}

// QuorumVerifier checks batches of submitted approval signatures against the
// validator set held by an AccessPolicy.
type QuorumVerifier struct {
	cfg ConsensusConfig
}

func NewQuorumVerifier(cfg ConsensusConfig) (*QuorumVerifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &QuorumVerifier{cfg: cfg}, nil
}

// Threshold returns the configured quorum size.
func (v *QuorumVerifier) Threshold() int {
	return v.cfg.Threshold
}

// Verify recovers the signer of each submitted signature and requires at
// least Threshold distinct Validator-role signers. Any unrecoverable
// signature, any signer without the Validator role, and any two signatures
// recovering to the same address reject the whole batch; no partial credit
// is kept.
func (v *QuorumVerifier) Verify(policy *AccessPolicy, digest common.Hash, signatures [][]byte) ([]common.Address, error) {
	if len(signatures) < v.cfg.Threshold {
		return nil, fmt.Errorf("%w: got %d signatures, need %d", ErrInsufficientApprovals, len(signatures), v.cfg.Threshold)
	}

	seen := make(map[common.Address]bool, len(signatures))
	signers := make([]common.Address, 0, len(signatures))
	for i, sig := range signatures {
		pub, err := crypto.SigToPub(digest.Bytes(), sig)
		if err != nil {
			return nil, fmt.Errorf("%w: signature %d: %v", ErrInvalidApprovalSignature, i, err)
		}
		signer := crypto.PubkeyToAddress(*pub)
		if !policy.HasRole(RoleValidator, signer) {
			return nil, fmt.Errorf("%w: signature %d from non-validator %s", ErrInvalidApprovalSignature, i, signer.Hex())
		}
		if seen[signer] {
			return nil, fmt.Errorf("%w: %s signed twice", ErrDuplicateApproval, signer.Hex())
		}
		seen[signer] = true
		signers = append(signers, signer)
	}

	if len(signers) < v.cfg.Threshold {
		return nil, fmt.Errorf("%w: %d distinct validators, need %d", ErrInsufficientApprovals, len(signers), v.cfg.Threshold)
	}
	return signers, nil
}
