package domain

import "time"

// SignalType is the directional classification of a signal.
type SignalType string

const (
	SignalBuy  SignalType = "buy"
	SignalSell SignalType = "sell"
)

// SignalReason is one human-readable contribution to a signal's score. The
// reasons list is append-only and its order matches evaluation order, so a
// signal can always be audited back to the facts that produced it.
type SignalReason struct {
	Code    string
	Message string
}

// Signal is the scored output of the pipeline for one merged event. Created
// once by the scorer and immutable thereafter; Score is always >= 0.
type Signal struct {
	Token       Token
	Wallets     []Wallet
	Score       float64
	Type        SignalType
	Reasons     []SignalReason
	GeneratedAt time.Time
	Metadata    map[string]any
}

// ReasonCodes returns the reason codes in evaluation order.
func (s Signal) ReasonCodes() []string {
	codes := make([]string, len(s.Reasons))
	for i, r := range s.Reasons {
		codes[i] = r.Code
	}
	return codes
}

// HasReason reports whether the signal carries a reason with the given code.
func (s Signal) HasReason(code string) bool {
	for _, r := range s.Reasons {
		if r.Code == code {
			return true
		}
	}
	return false
}
