package clients

import (
	"context"
	"math/big"
	"sync"

	"bridge-relay/internal/bridge"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryCustody is an in-process asset ledger for local development. It
// honors the same balance/allowance semantics as the ERC-20 backend.
type MemoryCustody struct {
	mu         sync.Mutex
	balances   map[common.Address]map[common.Address]*big.Int // asset -> holder
	allowances map[common.Address]map[common.Address]*big.Int // asset -> owner
}

func NewMemoryCustody() *MemoryCustody {
	return &MemoryCustody{
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

func get(m map[common.Address]map[common.Address]*big.Int, asset, key common.Address) *big.Int {
	if m[asset] == nil {
		return new(big.Int)
	}
	if v := m[asset][key]; v != nil {
		return v
	}
	return new(big.Int)
}

func set(m map[common.Address]map[common.Address]*big.Int, asset, key common.Address, v *big.Int) {
	if m[asset] == nil {
		m[asset] = make(map[common.Address]*big.Int)
	}
	m[asset][key] = v
}

// Fund credits a holder and grants the relay a matching allowance. Dev
// seeding only.
func (m *MemoryCustody) Fund(asset, holder common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set(m.balances, asset, holder, new(big.Int).Add(get(m.balances, asset, holder), amount))
	set(m.allowances, asset, holder, new(big.Int).Add(get(m.allowances, asset, holder), amount))
}

func (m *MemoryCustody) BalanceOf(_ context.Context, asset, holder common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(get(m.balances, asset, holder)), nil
}

func (m *MemoryCustody) Transfer(_ context.Context, asset, to common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set(m.balances, asset, to, new(big.Int).Add(get(m.balances, asset, to), amount))
	return nil
}

func (m *MemoryCustody) TransferFrom(_ context.Context, asset, from, to common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if get(m.allowances, asset, from).Cmp(amount) < 0 {
		return bridge.ErrInsufficientAllowance
	}
	if get(m.balances, asset, from).Cmp(amount) < 0 {
		return bridge.ErrInsufficientBalance
	}
	set(m.allowances, asset, from, new(big.Int).Sub(get(m.allowances, asset, from), amount))
	set(m.balances, asset, from, new(big.Int).Sub(get(m.balances, asset, from), amount))
	set(m.balances, asset, to, new(big.Int).Add(get(m.balances, asset, to), amount))
	return nil
}
