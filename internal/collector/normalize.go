// Package collector implements the smart-money pipeline: normalization of raw
// analytics payloads, cross-source correlation, dynamic-threshold filtering,
// signal scoring, and the run orchestration around them.
package collector

import (
	"fmt"
	"strconv"
	"time"

	"github.com/wycheng/smartflow/internal/domain"
)

// Normalizer converts raw analytics API payloads into uniform domain events.
// Each method is a pure function over one payload; output order matches the
// order of input rows.
type Normalizer struct{}

// DexTrades normalizes a dex-trades payload. The provider has shipped several
// field-name generations for the same facts, so each extraction tries the
// known aliases in order and the first non-empty value wins.
func (Normalizer) DexTrades(payload map[string]any) ([]domain.Event, error) {
	rows := payloadRows(payload)
	events := make([]domain.Event, 0, len(rows))
	for _, item := range rows {
		occurredAt := time.Now().UTC()
		if ts := strField(item, "timestamp", "block_timestamp"); ts != "" {
			parsed, err := parseTimestamp(ts)
			if err != nil {
				return nil, err
			}
			occurredAt = parsed
		}

		liquidity := 1.0
		if v, ok := floatField(item, "liquidityScore"); ok {
			liquidity = v
		}

		token := domain.Token{
			Symbol:         strField(item, "tokenSymbol", "token_bought_symbol", "token_name", "token_symbol"),
			Address:        strField(item, "token_bought_address", "token_address"),
			Chain:          strField(item, "chain"),
			LiquidityScore: liquidity,
		}
		wallet := &domain.Wallet{
			Address: strField(item, "address", "trader_address"),
		}

		usdNotional, _ := floatField(item, "usdNotional", "trade_value_usd", "token_bought_in_usd", "estimated_value_usd")
		txHash := strField(item, "txHash", "transaction_hash")

		metadata := map[string]any{
			"tx_hash":           txHash,
			"token_sold_symbol": strField(item, "token_sold_symbol", "traded_token_name"),
		}
		if v, ok := floatField(item, "traded_token_amount"); ok {
			metadata["traded_token_amount"] = v
		}

		events = append(events, domain.Event{
			Source:     domain.SourceDexTrades,
			Token:      token,
			Wallet:     wallet,
			TxHash:     txHash,
			Chain:      strField(item, "chain"),
			OccurredAt: occurredAt,
			Features: domain.EventFeature{
				USDNotional: usdNotional,
				Metadata:    metadata,
			},
		})
	}
	return events, nil
}

// TokenScreener normalizes a token-screener payload. Screener rows are
// point-in-time snapshots, so they are stamped with the current time.
func (Normalizer) TokenScreener(payload map[string]any) ([]domain.Event, error) {
	rows := payloadRows(payload)
	now := time.Now().UTC()
	events := make([]domain.Event, 0, len(rows))
	for _, item := range rows {
		liquidity, _ := floatField(item, "liquidity")
		volumeJump, _ := floatField(item, "volumeJump")

		metadata := map[string]any{}
		for _, key := range []string{"buy_volume", "sell_volume", "netflow", "market_cap_usd"} {
			if v, ok := floatField(item, key); ok {
				metadata[key] = v
			}
		}

		events = append(events, domain.Event{
			Source: domain.SourceTokenScreener,
			Token: domain.Token{
				Symbol:         strField(item, "tokenSymbol", "token_symbol"),
				Address:        strField(item, "token_address"),
				Chain:          strField(item, "chain"),
				LiquidityScore: liquidity,
			},
			OccurredAt: now,
			Features: domain.EventFeature{
				VolumeJump: volumeJump,
				Metadata:   metadata,
			},
		})
	}
	return events, nil
}

// Netflows normalizes a netflow payload. Rows that carry an address field
// describe a cohort wallet and get a Wallet attached with the cohort label.
func (Normalizer) Netflows(payload map[string]any) ([]domain.Event, error) {
	rows := payloadRows(payload)
	now := time.Now().UTC()
	events := make([]domain.Event, 0, len(rows))
	for _, item := range rows {
		var wallet *domain.Wallet
		if addr := strField(item, "address"); addr != "" {
			wallet = &domain.Wallet{
				Address: addr,
				Labels:  []string{strField(item, "cohort")},
			}
		}

		netflow, _ := floatField(item, "netflowUsd", "net_flow_24h_usd", "net_flow_7d_usd")

		metadata := map[string]any{}
		for _, key := range []string{"net_flow_24h_usd", "net_flow_7d_usd", "net_flow_30d_usd", "trader_count", "market_cap_usd"} {
			if v, ok := floatField(item, key); ok {
				metadata[key] = v
			}
		}

		symbol := strField(item, "tokenSymbol", "token_symbol")
		if symbol == "" {
			symbol = "UNKNOWN"
		}

		events = append(events, domain.Event{
			Source: domain.SourceNetflows,
			Token: domain.Token{
				Symbol:  symbol,
				Address: strField(item, "token_address"),
				Chain:   strField(item, "chain"),
			},
			Wallet:     wallet,
			OccurredAt: now,
			Features: domain.EventFeature{
				SmartMoneyNetflow: netflow,
				Metadata:          metadata,
			},
		})
	}
	return events, nil
}

// parseTimestamp parses an ISO8601 timestamp, accepting both 'Z' and numeric
// offsets, and treating naive timestamps as UTC. A present-but-unparsable
// value is a hard normalization failure.
func parseTimestamp(value string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("collector: parse timestamp %q: %w", value, domain.ErrNormalization)
}

// payloadRows extracts the "data" row list from a payload envelope.
func payloadRows(payload map[string]any) []map[string]any {
	raw, ok := payload["data"].([]any)
	if !ok {
		// Fixture clients may hand us rows already typed.
		if typed, ok := payload["data"].([]map[string]any); ok {
			return typed
		}
		return nil
	}
	rows := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]any); ok {
			rows = append(rows, m)
		}
	}
	return rows
}

// strField returns the first non-empty string value among the given keys.
func strField(item map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := item[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// floatField returns the first present numeric value among the given keys.
// JSON decoding yields float64, but fixture data and numeric strings are
// accepted too.
func floatField(item map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := item[key]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
