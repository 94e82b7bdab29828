package bridge

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DeriveRequestID computes the deterministic id for one transfer attempt:
// Keccak-256 over the packed tuple (asset, sender, recipient, amount,
// targetChain, sourceChain, nonce). The nonce is a per-source-chain counter
// incremented on every request, so two otherwise identical transfers still
// get distinct ids.
func DeriveRequestID(asset, sender, recipient common.Address, amount *big.Int, targetChain, sourceChain, nonce uint64) common.Hash {
	buf := make([]byte, 0, 3*common.AddressLength+32+3*8)
	buf = append(buf, asset.Bytes()...)
	buf = append(buf, sender.Bytes()...)
	buf = append(buf, recipient.Bytes()...)
	buf = append(buf, common.LeftPadBytes(amount.Bytes(), 32)...)
	buf = binary.BigEndian.AppendUint64(buf, targetChain)
	buf = binary.BigEndian.AppendUint64(buf, sourceChain)
	buf = binary.BigEndian.AppendUint64(buf, nonce)
	return crypto.Keccak256Hash(buf)
}

// ProcessedSet records every finalized request id. Finalize paths must check
// IsProcessed before moving value and Mark before reporting success, so a
// reentrant finalize on the same id observes processed=true and aborts.
type ProcessedSet struct {
	ids map[common.Hash]bool
}

func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{ids: make(map[common.Hash]bool)}
}

// IsProcessed reports whether id has been finalized.
func (s *ProcessedSet) IsProcessed(id common.Hash) bool {
	return s.ids[id]
}

// Mark records id as finalized. Marking twice is an error.
func (s *ProcessedSet) Mark(id common.Hash) error {
	if s.ids[id] {
		return ErrAlreadyProcessed
	}
	s.ids[id] = true
	return nil
}

// Unmark removes id again. Only the engine's rollback path uses this, while
// still holding the execution lock, when the custody call of a finalize
// fails after the id was marked.
func (s *ProcessedSet) Unmark(id common.Hash) {
	delete(s.ids, id)
}

// Restore re-adds a persisted id at boot.
func (s *ProcessedSet) Restore(id common.Hash) {
	s.ids[id] = true
}

// Len returns the number of finalized ids.
func (s *ProcessedSet) Len() int {
	return len(s.ids)
}
