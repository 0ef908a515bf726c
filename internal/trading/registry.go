// Package trading implements the 0x swap execution flow: request validation,
// amount scaling, integrator fee deduction, and the simulated and live trade
// state machines.
package trading

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wycheng/smartflow/internal/domain"
)

// IntegratorFeeRate is the fee taken on the sell side's USD value.
var IntegratorFeeRate = decimal.RequireFromString("0.0015")

// TokenInfo is a known base token on one chain.
type TokenInfo struct {
	Symbol   string
	Address  string
	Decimals int
}

// baseTokenRegistry maps chain id to the base tokens trades can be
// denominated in. Addresses and decimals are per the canonical deployments;
// note BSC's bridged USDC uses 18 decimals.
var baseTokenRegistry = map[int64]map[string]TokenInfo{
	1: {
		"USDC": {Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eb48", Decimals: 6},
		"WETH": {Symbol: "WETH", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18},
	},
	10: {
		"USDC": {Symbol: "USDC", Address: "0x7F5c764cBc14f9669B88837ca1490cCa17c31607", Decimals: 6},
		"WETH": {Symbol: "WETH", Address: "0x4200000000000000000000000000000000000006", Decimals: 18},
	},
	56: {
		"USDC": {Symbol: "USDC", Address: "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d", Decimals: 18},
		"WBNB": {Symbol: "WBNB", Address: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", Decimals: 18},
	},
	137: {
		"USDC": {Symbol: "USDC", Address: "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", Decimals: 6},
		"WETH": {Symbol: "WETH", Address: "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619", Decimals: 18},
	},
	42161: {
		"USDC": {Symbol: "USDC", Address: "0xaf88d065e77c8cc2239327c5edb3a432268e5831", Decimals: 6},
		"WETH": {Symbol: "WETH", Address: "0x82af49447d8a07e3bd95bd0d56f35241523fbab1", Decimals: 18},
	},
	8453: {
		"USDC": {Symbol: "USDC", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
		"WETH": {Symbol: "WETH", Address: "0x4200000000000000000000000000000000000006", Decimals: 18},
	},
}

// resolveBaseToken returns the registry entry for (chainID, symbol).
func resolveBaseToken(chainID int64, symbol string) (TokenInfo, error) {
	registry, ok := baseTokenRegistry[chainID]
	if !ok {
		return TokenInfo{}, fmt.Errorf("trading: chain %d has no base token registry: %w", chainID, domain.ErrChainNotConfigured)
	}
	info, ok := registry[symbol]
	if !ok {
		return TokenInfo{}, fmt.Errorf("trading: chain %d does not support base token %s: %w", chainID, symbol, domain.ErrInvalidSwapRequest)
	}
	return info, nil
}

// chainUSDC returns the USDC entry for the chain, which the integrator fee is
// denominated in.
func chainUSDC(chainID int64) (TokenInfo, error) {
	registry, ok := baseTokenRegistry[chainID]
	if !ok || registry["USDC"].Address == "" {
		return TokenInfo{}, fmt.Errorf("trading: chain %d has no USDC configured for fee calculation: %w", chainID, domain.ErrChainNotConfigured)
	}
	return registry["USDC"], nil
}
