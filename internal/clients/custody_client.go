package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"bridge-relay/internal/bridge"
	"bridge-relay/internal/metrics"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transferFrom","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

// ERC20Custody implements the custody adapter against ERC-20 tokens over an
// RPC endpoint. The relay's operator key signs the transfer transactions;
// receipts are always awaited and checked before success is reported.
type ERC20Custody struct {
	client         *ethclient.Client
	abi            abi.ABI
	key            *ecdsa.PrivateKey
	from           common.Address
	chainID        *big.Int
	gasLimit       uint64
	confirmTimeout time.Duration
	logger         *logrus.Logger

	// Serializes nonce allocation across concurrent callers.
	mu sync.Mutex
}

func NewERC20Custody(rpcEndpoint, operatorKeyHex string, chainID int64, gasLimit uint64, confirmTimeout time.Duration, logger *logrus.Logger) (*ERC20Custody, error) {
	client, err := ethclient.Dial(rpcEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain RPC: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(operatorKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid operator key: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	return &ERC20Custody{
		client:         client,
		abi:            parsed,
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		chainID:        big.NewInt(chainID),
		gasLimit:       gasLimit,
		confirmTimeout: confirmTimeout,
		logger:         logger,
	}, nil
}

// OperatorAddress returns the address the custody transactions are sent
// from. It doubles as the escrow account in single-operator deployments.
func (c *ERC20Custody) OperatorAddress() common.Address {
	return c.from
}

func (c *ERC20Custody) BalanceOf(ctx context.Context, asset, holder common.Address) (*big.Int, error) {
	timer := time.Now()
	defer func() {
		metrics.CustodyCallDuration.WithLabelValues("balanceOf").Observe(time.Since(timer).Seconds())
	}()

	data, err := c.abi.Pack("balanceOf", holder)
	if err != nil {
		return nil, err
	}
	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &asset, Data: data}, nil)
	if err != nil {
		metrics.CustodyCallErrors.WithLabelValues("balanceOf").Inc()
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}

	var balance *big.Int
	if err := c.abi.UnpackIntoInterface(&balance, "balanceOf", out); err != nil {
		return nil, fmt.Errorf("balanceOf decode failed: %w", err)
	}
	return balance, nil
}

func (c *ERC20Custody) Transfer(ctx context.Context, asset, to common.Address, amount *big.Int) error {
	data, err := c.abi.Pack("transfer", to, amount)
	if err != nil {
		return err
	}
	return c.send(ctx, "transfer", asset, data)
}

func (c *ERC20Custody) TransferFrom(ctx context.Context, asset, from, to common.Address, amount *big.Int) error {
	// Reject early with the precise reason instead of burning gas on a
	// revert.
	allowance, err := c.allowance(ctx, asset, from)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return bridge.ErrInsufficientAllowance
	}
	balance, err := c.BalanceOf(ctx, asset, from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return bridge.ErrInsufficientBalance
	}

	data, err := c.abi.Pack("transferFrom", from, to, amount)
	if err != nil {
		return err
	}
	return c.send(ctx, "transferFrom", asset, data)
}

func (c *ERC20Custody) allowance(ctx context.Context, asset, owner common.Address) (*big.Int, error) {
	data, err := c.abi.Pack("allowance", owner, c.from)
	if err != nil {
		return nil, err
	}
	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &asset, Data: data}, nil)
	if err != nil {
		metrics.CustodyCallErrors.WithLabelValues("allowance").Inc()
		return nil, fmt.Errorf("allowance call failed: %w", err)
	}

	var allowance *big.Int
	if err := c.abi.UnpackIntoInterface(&allowance, "allowance", out); err != nil {
		return nil, fmt.Errorf("allowance decode failed: %w", err)
	}
	return allowance, nil
}

// send signs, submits and awaits one custody transaction, treating anything
// but a successful receipt as failure.
func (c *ERC20Custody) send(ctx context.Context, method string, asset common.Address, data []byte) error {
	timer := time.Now()
	defer func() {
		metrics.CustodyCallDuration.WithLabelValues(method).Observe(time.Since(timer).Seconds())
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	nonce, err := c.client.PendingNonceAt(ctx, c.from)
	if err != nil {
		metrics.CustodyCallErrors.WithLabelValues(method).Inc()
		return fmt.Errorf("failed to fetch nonce: %w", err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		metrics.CustodyCallErrors.WithLabelValues(method).Inc()
		return fmt.Errorf("failed to fetch gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &asset,
		Gas:      c.gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return fmt.Errorf("failed to sign %s: %w", method, err)
	}
	if err := c.client.SendTransaction(ctx, signed); err != nil {
		metrics.CustodyCallErrors.WithLabelValues(method).Inc()
		return fmt.Errorf("failed to send %s: %w", method, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.client, signed)
	if err != nil {
		metrics.CustodyCallErrors.WithLabelValues(method).Inc()
		return fmt.Errorf("failed to confirm %s: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		metrics.CustodyCallErrors.WithLabelValues(method).Inc()
		return fmt.Errorf("custody %s reverted in tx %s", method, signed.Hash().Hex())
	}

	c.logger.WithFields(logrus.Fields{
		"method": method,
		"asset":  asset.Hex(),
		"tx":     signed.Hash().Hex(),
		"block":  receipt.BlockNumber.Uint64(),
	}).Info("Custody transfer confirmed")
	return nil
}
