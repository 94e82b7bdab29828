package bridge

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestDeriveRequestIDDeterministicAndNonceSensitive(t *testing.T) {
	require := require.New(t)

	a := DeriveRequestID(testAsset, testUser, testRecipient, big.NewInt(100), 2, 1, 0)
	b := DeriveRequestID(testAsset, testUser, testRecipient, big.NewInt(100), 2, 1, 0)
	require.Equal(a, b)

	// Any field change moves the id, the nonce in particular.
	require.NotEqual(a, DeriveRequestID(testAsset, testUser, testRecipient, big.NewInt(100), 2, 1, 1))
	require.NotEqual(a, DeriveRequestID(testAsset, testUser, testRecipient, big.NewInt(101), 2, 1, 0))
	require.NotEqual(a, DeriveRequestID(testAsset, testUser, testRecipient, big.NewInt(100), 3, 1, 0))
	require.NotEqual(a, DeriveRequestID(testAsset, testUser, testRecipient, big.NewInt(100), 2, 4, 0))
	require.NotEqual(a, DeriveRequestID(testAsset, testUser, testUser, big.NewInt(100), 2, 1, 0))
}

func TestProcessedSetMarksAtMostOnce(t *testing.T) {
	require := require.New(t)

	s := NewProcessedSet()
	id := common.HexToHash("0x0a")
	require.False(s.IsProcessed(id))

	require.NoError(s.Mark(id))
	require.True(s.IsProcessed(id))
	require.ErrorIs(s.Mark(id), ErrAlreadyProcessed)

	s.Unmark(id)
	require.False(s.IsProcessed(id))
	require.NoError(s.Mark(id))
	require.Equal(1, s.Len())
}
