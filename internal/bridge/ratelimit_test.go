package bridge

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterCapsAndLazyReset(t *testing.T) {
	require := require.New(t)

	now := time.Unix(1_700_000_000, 0)
	l := NewRateLimiter(time.Hour, big.NewInt(1000), big.NewInt(300), now)

	_, err := l.CheckAndReserve(testUser, big.NewInt(200), now)
	require.NoError(err)
	_, err = l.CheckAndReserve(testUser, big.NewInt(100), now)
	require.NoError(err)

	// Next reservation would exceed the per-user cap; counters stay put.
	_, err = l.CheckAndReserve(testUser, big.NewInt(1), now)
	require.ErrorIs(err, ErrRateLimitExceeded)
	require.Equal(int64(300), l.UserVolume(testUser).Int64())
	require.Equal(int64(300), l.GlobalVolume().Int64())

	// Window elapsed: the first reservation afterwards triggers exactly one
	// reset, even though several periods were missed.
	later := now.Add(5 * time.Hour)
	res, err := l.CheckAndReserve(testUser, big.NewInt(50), later)
	require.NoError(err)
	require.True(res.GlobalReset)
	require.True(res.UserReset)
	require.Equal(int64(50), l.UserVolume(testUser).Int64())
	require.Equal(int64(50), l.GlobalVolume().Int64())
}

func TestRateLimiterGlobalCapAcrossUsers(t *testing.T) {
	require := require.New(t)

	now := time.Unix(1_700_000_000, 0)
	l := NewRateLimiter(time.Hour, big.NewInt(500), big.NewInt(400), now)

	_, err := l.CheckAndReserve(testUser, big.NewInt(400), now)
	require.NoError(err)
	_, err = l.CheckAndReserve(testRecipient, big.NewInt(101), now)
	require.ErrorIs(err, ErrRateLimitExceeded)
	_, err = l.CheckAndReserve(testRecipient, big.NewInt(100), now)
	require.NoError(err)
}

func TestRateLimiterReleaseNeverGoesNegative(t *testing.T) {
	require := require.New(t)

	now := time.Unix(1_700_000_000, 0)
	l := NewRateLimiter(time.Hour, big.NewInt(1000), big.NewInt(1000), now)

	_, err := l.CheckAndReserve(testUser, big.NewInt(100), now)
	require.NoError(err)
	l.Release(testUser, big.NewInt(100))
	require.Zero(l.GlobalVolume().Sign())

	l.Release(testUser, big.NewInt(100))
	require.Zero(l.GlobalVolume().Sign())
	require.Zero(l.UserVolume(testUser).Sign())
}

func TestRateLimiterForceReset(t *testing.T) {
	require := require.New(t)

	now := time.Unix(1_700_000_000, 0)
	l := NewRateLimiter(time.Hour, big.NewInt(1000), big.NewInt(1000), now)

	_, err := l.CheckAndReserve(testUser, big.NewInt(900), now)
	require.NoError(err)
	l.ForceReset(now)
	require.Zero(l.GlobalVolume().Sign())

	_, err = l.CheckAndReserve(testUser, big.NewInt(900), now)
	require.NoError(err)
}
