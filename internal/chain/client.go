// Package chain wraps the Ethereum JSON-RPC surface the trading flow needs:
// ERC20 metadata and allowance reads, approval transactions, raw transaction
// submission, and bounded receipt waiting.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// receiptPollInterval is how often WaitReceipt polls for inclusion.
const receiptPollInterval = 2 * time.Second

// Client is a thin wrapper around ethclient bound to one chain.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
}

// Dial connects to an RPC endpoint and verifies it serves the expected chain.
func Dial(ctx context.Context, rpcURL string, chainID int64) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}

	remote, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: query chain id: %w", err)
	}
	if remote.Int64() != chainID {
		eth.Close()
		return nil, fmt.Errorf("chain: rpc serves chain %d, expected %d", remote.Int64(), chainID)
	}

	return &Client{eth: eth, chainID: remote}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// ChainID returns the chain this client is bound to.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// TokenDecimals reads decimals() from an ERC20 contract.
func (c *Client) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	values, err := c.callERC20(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("chain: decimals() of %s returned unexpected type %T", token, values[0])
	}
	return decimals, nil
}

// TokenSymbol reads symbol() from an ERC20 contract.
func (c *Client) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	values, err := c.callERC20(ctx, token, "symbol")
	if err != nil {
		return "", err
	}
	symbol, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("chain: symbol() of %s returned unexpected type %T", token, values[0])
	}
	return symbol, nil
}

// Allowance reads allowance(owner, spender) from an ERC20 contract.
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	values, err := c.callERC20(ctx, token, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	allowance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: allowance() of %s returned unexpected type %T", token, values[0])
	}
	return allowance, nil
}

// Approve sends an ERC20 approve(spender, amount) from the signer's address
// and returns the transaction hash. The gas limit is the node's estimate with
// 20% headroom.
func (c *Client) Approve(ctx context.Context, signer *Signer, token, spender common.Address, amount *big.Int) (string, error) {
	parsed, err := erc20ABIInstance()
	if err != nil {
		return "", fmt.Errorf("chain: parse erc20 abi: %w", err)
	}
	data, err := parsed.Pack("approve", spender, amount)
	if err != nil {
		return "", fmt.Errorf("chain: pack approve: %w", err)
	}

	return c.SendTransaction(ctx, signer, TxRequest{
		To:   token,
		Data: data,
	})
}

// TxRequest describes a transaction to sign and submit. Zero Gas means
// estimate; nil GasPrice means use the node's suggestion.
type TxRequest struct {
	To       common.Address
	Data     []byte
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int
}

// SendTransaction fills in nonce, gas, and gas price, signs the transaction,
// submits it, and returns the hash. The nonce comes from the pending block so
// back-to-back sends (approve then swap) do not collide.
func (c *Client) SendTransaction(ctx context.Context, signer *Signer, req TxRequest) (string, error) {
	from := signer.Address()

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("chain: pending nonce for %s: %w", from, err)
	}

	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	gas := req.Gas
	if gas == 0 {
		estimate, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
			From:  from,
			To:    &req.To,
			Data:  req.Data,
			Value: value,
		})
		if err != nil {
			return "", fmt.Errorf("chain: estimate gas: %w", err)
		}
		gas = estimate + estimate/5
	}

	gasPrice := req.GasPrice
	if gasPrice == nil {
		gasPrice, err = c.eth.SuggestGasPrice(ctx)
		if err != nil {
			return "", fmt.Errorf("chain: suggest gas price: %w", err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &req.To,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     req.Data,
	})

	signed, err := signer.SignTx(tx, c.chainID)
	if err != nil {
		return "", err
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("chain: send transaction: %w", err)
	}
	return signed.Hash().Hex(), nil
}

// WaitReceipt polls until the transaction is mined or the timeout elapses.
func (c *Client) WaitReceipt(ctx context.Context, txHash string, timeout time.Duration) (*types.Receipt, error) {
	hash := common.HexToHash(txHash)
	deadline := time.Now().Add(timeout)

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !receiptNotFound(err) {
			return nil, fmt.Errorf("chain: query receipt %s: %w", txHash, err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("chain: receipt for %s not found within %s", txHash, timeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// receiptNotFound reports whether a receipt query failed only because the
// transaction is not yet mined. RPC layers may wrap the sentinel, so the
// check unwraps.
func receiptNotFound(err error) bool {
	return errors.Is(err, ethereum.NotFound)
}

// callERC20 performs one read-only ERC20 method call.
func (c *Client) callERC20(ctx context.Context, token common.Address, method string, args ...any) ([]any, error) {
	parsed, err := erc20ABIInstance()
	if err != nil {
		return nil, fmt.Errorf("chain: parse erc20 abi: %w", err)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}

	output, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s on %s: %w", method, token, err)
	}

	values, err := parsed.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("chain: %s on %s returned no values", method, token)
	}
	return values, nil
}
