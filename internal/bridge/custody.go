package bridge

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CustodyAdapter is the external asset ledger. The engine never assumes a
// transfer worked: a nil error is the only success signal, and
// implementations are expected to surface ErrInsufficientBalance /
// ErrInsufficientAllowance where they can tell.
type CustodyAdapter interface {
	BalanceOf(ctx context.Context, asset, holder common.Address) (*big.Int, error)
	Transfer(ctx context.Context, asset, to common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, asset, from, to common.Address, amount *big.Int) error
}

// BurnAddress is where the burn leg sends destroyed value. Custody backends
// that support a native burn may special-case transfers to it.
var BurnAddress = common.Address{}
