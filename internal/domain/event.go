package domain

import "time"

// EventSource identifies which upstream endpoint produced an event.
type EventSource string

const (
	SourceDexTrades     EventSource = "dex_trades"
	SourceTokenScreener EventSource = "token_screener"
	SourceNetflows      EventSource = "netflows"
)

// EventFeature carries the numeric facts extracted from a raw source record.
// Metadata is an open map for source-specific fields that the scorer and
// reporting layers read by key.
type EventFeature struct {
	USDNotional       float64
	VolumeJump        float64
	SmartMoneyNetflow float64
	IsBuy             bool
	Metadata          map[string]any
}

// Clone returns a deep copy of the features.
func (f EventFeature) Clone() EventFeature {
	out := f
	if f.Metadata != nil {
		out.Metadata = make(map[string]any, len(f.Metadata))
		for k, v := range f.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Event is one normalized record from an upstream source. It is created once
// by the normalizer; the merge step clones before overlaying screener and
// netflow facts so distinct merged instances never alias state.
type Event struct {
	Source     EventSource
	Token      Token
	Wallet     *Wallet
	TxHash     string
	Chain      string
	OccurredAt time.Time
	Features   EventFeature
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	out := e
	out.Token = e.Token.Clone()
	if e.Wallet != nil {
		w := e.Wallet.Clone()
		out.Wallet = &w
	}
	out.Features = e.Features.Clone()
	return out
}

// MergeKey returns the (symbol, chain) correlation key for the event. The
// token's chain wins over the event-level chain when both are set.
func (e Event) MergeKey() (symbol, chain string) {
	chain = e.Token.Chain
	if chain == "" {
		chain = e.Chain
	}
	return e.Token.Symbol, chain
}
