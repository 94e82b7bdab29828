package bridge

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Role names a capability inside the relay. Admin administers every other
// role; there is no deeper hierarchy.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleValidator Role = "validator"
	RoleRelayer   Role = "relayer"
	RoleEmergency Role = "emergency"
	RolePauser    Role = "pauser"
	RoleBridge    Role = "bridge"
	RoleOracle    Role = "oracle"
	RoleBlacklist Role = "blacklist"
)

// AdministeredRoles is the default set Admin may grant and revoke. Tests and
// deployments can narrow it; Admin itself is always administered by Admin so
// the root capability can rotate.
func AdministeredRoles() []Role {
	return []Role{
		RoleAdmin, RoleValidator, RoleRelayer, RoleEmergency,
		RolePauser, RoleBridge, RoleOracle, RoleBlacklist,
	}
}

// AccessPolicy holds role membership. It is a plain value injected into the
// engine, not a process-wide singleton; the engine's execution lock
// serializes all mutation.
type AccessPolicy struct {
	administered map[Role]bool
	members      map[Role]map[common.Address]bool
}

// NewAccessPolicy creates a policy with the given root admin and the set of
// roles that admin administers.
func NewAccessPolicy(admin common.Address, administered []Role) *AccessPolicy {
	p := &AccessPolicy{
		administered: make(map[Role]bool, len(administered)),
		members:      make(map[Role]map[common.Address]bool),
	}
	for _, r := range administered {
		p.administered[r] = true
	}
	p.add(RoleAdmin, admin)
	return p
}

func (p *AccessPolicy) add(role Role, account common.Address) {
	if p.members[role] == nil {
		p.members[role] = make(map[common.Address]bool)
	}
	p.members[role][account] = true
}

// HasRole reports whether account holds role.
func (p *AccessPolicy) HasRole(role Role, account common.Address) bool {
	return p.members[role][account]
}

// Grant adds account to role. Only an Admin may grant, and only roles in the
// administered set can be granted.
func (p *AccessPolicy) Grant(caller common.Address, role Role, account common.Address) error {
	if !p.HasRole(RoleAdmin, caller) || !p.administered[role] {
		return ErrUnauthorized
	}
	p.add(role, account)
	return nil
}

// Revoke removes account from role under the same rules as Grant.
func (p *AccessPolicy) Revoke(caller common.Address, role Role, account common.Address) error {
	if !p.HasRole(RoleAdmin, caller) || !p.administered[role] {
		return ErrUnauthorized
	}
	delete(p.members[role], account)
	return nil
}

// Restore re-adds a persisted grant without an authorization check. Used only
// when rehydrating state at boot.
func (p *AccessPolicy) Restore(role Role, account common.Address) {
	p.add(role, account)
}

// Members returns the holders of role in a stable order.
func (p *AccessPolicy) Members(role Role) []common.Address {
	out := make([]common.Address, 0, len(p.members[role]))
	for a := range p.members[role] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Hex() < out[j].Hex()
	})
	return out
}

// MemberCount returns the number of holders of role.
func (p *AccessPolicy) MemberCount(role Role) int {
	return len(p.members[role])
}
