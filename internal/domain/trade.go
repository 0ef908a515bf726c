package domain

import "time"

// TradeMode distinguishes simulated from live swap execution.
type TradeMode string

const (
	ModeSimulation TradeMode = "SIMULATION"
	ModeLive       TradeMode = "LIVE"
)

// TradeStatus is the lifecycle state of an executed trade record.
type TradeStatus string

const (
	TradePending   TradeStatus = "PENDING"
	TradeSubmitted TradeStatus = "SUBMITTED"
	TradeCompleted TradeStatus = "COMPLETED"
	TradeFailed    TradeStatus = "FAILED"
)

// ExecutedTrade is the persisted record of one swap attempt, simulated or
// live. The persisted row is the source of truth; the in-memory TradeResult
// returned by the execution service mirrors it.
type ExecutedTrade struct {
	ID                string
	Mode              TradeMode
	Status            TradeStatus
	ChainID           int64
	TakerAddress      string
	SellTokenAddress  string
	SellTokenSymbol   string
	BuyTokenAddress   string
	BuyTokenSymbol    string
	SellAmountRaw     string
	SellAmountDecimal string
	BuyAmountRaw      string
	BuyAmountDecimal  string
	Price             string
	IntegratorFeeUSD  string
	SlippageBps       int
	AllowanceTarget   string
	QuoteID           string
	TxHash            string
	TxPayload         map[string]any
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SimulatedTrade is a paper position opened for a buy signal and closed when
// the target price is reached.
type SimulatedTrade struct {
	ID           string
	TokenSymbol  string
	TokenAddress string
	Chain        string
	EntryPrice   float64
	TargetPrice  float64
	ExitPrice    float64
	Status       string // "OPEN" or "CLOSED"
	OpenedAt     time.Time
	ClosedAt     *time.Time
}

const (
	SimTradeOpen   = "OPEN"
	SimTradeClosed = "CLOSED"
)

// PipelineRun is the history record of one pipeline execution.
type PipelineRun struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	EventCount  int
	SignalCount int
	Stats       map[string]int
	Error       string
}
