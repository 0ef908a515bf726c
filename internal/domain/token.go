// Package domain defines the core entities of the smart-money collector:
// tokens, wallets, events, signals, and trades, plus the store and cache
// interfaces their persistence is accessed through.
package domain

import "time"

// Token is a traded asset as seen by the upstream analytics provider.
// Identity for merge purposes is (Symbol, Chain); Address is enrichment data
// carried along when the source happens to provide it.
type Token struct {
	Symbol         string
	Address        string
	Chain          string
	LiquidityScore float64
	BlacklistFlags []string
}

// Clone returns a deep copy of the token.
func (t Token) Clone() Token {
	out := t
	if t.BlacklistFlags != nil {
		out.BlacklistFlags = make([]string, len(t.BlacklistFlags))
		copy(out.BlacklistFlags, t.BlacklistFlags)
	}
	return out
}

// AddressLabel is one provider-assigned tag for a wallet address.
type AddressLabel struct {
	Label    string
	Category string
}

// Wallet is an on-chain actor tracked by the analytics provider. AlphaScore
// is computed from the wallet's own event history and attached during
// enrichment.
type Wallet struct {
	Address      string
	Labels       []string
	AlphaScore   float64
	LastActiveAt *time.Time
}

// Clone returns a deep copy of the wallet.
func (w Wallet) Clone() Wallet {
	out := w
	if w.Labels != nil {
		out.Labels = make([]string, len(w.Labels))
		copy(out.Labels, w.Labels)
	}
	if w.LastActiveAt != nil {
		ts := *w.LastActiveAt
		out.LastActiveAt = &ts
	}
	return out
}
