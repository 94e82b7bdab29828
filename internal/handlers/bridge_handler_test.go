package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"bridge-relay/internal/bridge"
)

func TestParseHashParam(t *testing.T) {
	require := require.New(t)

	h, err := parseHashParam("0x1111111111111111111111111111111111111111111111111111111111111111")
	require.NoError(err)
	require.Equal("0x1111111111111111111111111111111111111111111111111111111111111111", h.Hex())

	_, err = parseHashParam("0x1234") // too short
	require.Error(err)
	_, err = parseHashParam("not-hex")
	require.Error(err)
}

func TestParseApprovals(t *testing.T) {
	require := require.New(t)

	sigs, err := parseApprovals([]string{"0x01ff", " 0xabcd "})
	require.NoError(err)
	require.Len(sigs, 2)
	require.Equal([]byte{0x01, 0xff}, sigs[0])

	_, err = parseApprovals([]string{"zz"})
	require.Error(err)
}

func TestEngineErrorStatusMapping(t *testing.T) {
	require := require.New(t)

	require.Equal(http.StatusForbidden, engineErrorStatus(bridge.ErrUnauthorized))
	require.Equal(http.StatusNotFound, engineErrorStatus(bridge.ErrRequestNotFound))
	require.Equal(http.StatusConflict, engineErrorStatus(bridge.ErrAlreadyProcessed))
	require.Equal(http.StatusConflict, engineErrorStatus(bridge.ErrSystemPaused))
	require.Equal(http.StatusTooManyRequests, engineErrorStatus(bridge.ErrRateLimitExceeded))
	require.Equal(http.StatusUnprocessableEntity, engineErrorStatus(bridge.ErrInsufficientApprovals))
	// Wrapped duplicate-signer failures map like any bad signature.
	require.Equal(http.StatusUnprocessableEntity, engineErrorStatus(bridge.ErrDuplicateApproval))
	require.Equal("INVALID_APPROVAL_SIGNATURE", engineErrorCode(bridge.ErrDuplicateApproval))
}
