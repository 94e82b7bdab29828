package bridge

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestAccessPolicyGrantRevoke(t *testing.T) {
	require := require.New(t)

	p := NewAccessPolicy(testAdmin, AdministeredRoles())
	require.True(p.HasRole(RoleAdmin, testAdmin))

	val := common.HexToAddress("0x01")
	require.NoError(p.Grant(testAdmin, RoleValidator, val))
	require.True(p.HasRole(RoleValidator, val))
	require.Equal(1, p.MemberCount(RoleValidator))

	require.NoError(p.Revoke(testAdmin, RoleValidator, val))
	require.False(p.HasRole(RoleValidator, val))
}

func TestAccessPolicyNonAdminRejected(t *testing.T) {
	require := require.New(t)

	p := NewAccessPolicy(testAdmin, AdministeredRoles())
	outsider := common.HexToAddress("0x02")

	require.ErrorIs(p.Grant(outsider, RoleValidator, outsider), ErrUnauthorized)
	require.ErrorIs(p.Revoke(outsider, RoleAdmin, testAdmin), ErrUnauthorized)
	require.False(p.HasRole(RoleValidator, outsider))
}

func TestAccessPolicyAdministeredSetIsExplicit(t *testing.T) {
	require := require.New(t)

	// Only the configured roles are grantable, even for Admin.
	p := NewAccessPolicy(testAdmin, []Role{RoleValidator})
	require.NoError(p.Grant(testAdmin, RoleValidator, common.HexToAddress("0x03")))
	require.ErrorIs(p.Grant(testAdmin, RoleRelayer, common.HexToAddress("0x03")), ErrUnauthorized)
}

func TestAccessPolicyCapabilityMatrix(t *testing.T) {
	require := require.New(t)

	p := NewAccessPolicy(testAdmin, AdministeredRoles())
	for _, role := range AdministeredRoles() {
		if role == RoleAdmin {
			continue
		}
		require.NoError(p.Grant(testAdmin, role, common.HexToAddress("0x04")))
	}
	for _, role := range AdministeredRoles() {
		require.NotEmpty(p.Members(role))
	}
}
