// Package agents implements the multi-agent decision pipeline: a statically
// defined DAG whose nodes are pure Go functions over a shared AgentState
// scratchpad, wired and routed by Supervisor. Routing is ordinary Go code —
// there is no LLM in the control-flow loop anywhere in this package.
package agents

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tranvietlong/vnalgo-core/domain"
	"github.com/tranvietlong/vnalgo-core/usecase"
	"github.com/tranvietlong/vnalgo-core/vo"
)

// Phase is the pipeline's coarse progress marker.
type Phase string

const (
	PhaseIdle         Phase = "IDLE"
	PhaseScreening    Phase = "SCREENING"
	PhaseAnalyzing    Phase = "ANALYZING"
	PhaseRiskChecking Phase = "RISK_CHECKING"
	PhaseExecuting    Phase = "EXECUTING"
	PhaseCompleted    Phase = "COMPLETED"
	PhaseError        Phase = "ERROR"
)

// SignalAction is what the technical agent recommends for a symbol.
type SignalAction string

const (
	ActionBuy  SignalAction = "BUY"
	ActionSell SignalAction = "SELL"
	ActionHold SignalAction = "HOLD"
	ActionSkip SignalAction = "SKIP"
)

// ScreenerResult is one symbol's pass through the screener.
type ScreenerResult struct {
	Symbol      vo.Symbol
	EPSGrowth   decimal.Decimal
	PERatio     decimal.Decimal
	VolumeSpike bool
	PassedAt    time.Time
}

// TechnicalScore is the technical agent's composite assessment.
type TechnicalScore struct {
	Symbol             vo.Symbol
	RSI14              decimal.Decimal
	MACDSignal         string
	BBPosition         string
	TrendMA            string
	CompositeScore     decimal.Decimal
	RecommendedAction  SignalAction
	LatestPrice        vo.Price
	Exchange           vo.Exchange
	AnalysisTimestamp  time.Time
}

// EarlyWarningResult is the fundamental agent's risk-veto input.
type EarlyWarningResult struct {
	Symbol    vo.Symbol
	RiskLevel string // low | medium | high | critical
	Score     decimal.Decimal
	Summary   string
}

// RiskAssessment is the risk agent's per-symbol verdict.
type RiskAssessment struct {
	Symbol          vo.Symbol
	Approved        bool
	PositionSizePct decimal.Decimal
	LatestPrice     vo.Price
	Exchange        vo.Exchange
	StopLossPrice   vo.Price
	TakeProfitPrice vo.Price
	RejectionReason string
	AssessedAt      time.Time
}

// ExecutionPlan is the executor agent's per-symbol order intent.
type ExecutionPlan struct {
	Symbol     vo.Symbol
	Action     SignalAction
	Quantity   vo.Quantity
	Price      vo.Price
	OrderType  domain.OrderType
	Executed   bool
	OrderID    string
	ExecutedAt time.Time
}

// State is the pipeline scratchpad. Nodes return partial updates; the
// supervisor merges them additively (spec.md §4.9 — "a node never reads a
// field produced by a downstream node").
type State struct {
	Phase        Phase
	RunID        string
	TriggeredAt  time.Time
	ErrorMessage string

	Watchlist           []vo.Symbol
	TechnicalScores      map[vo.Symbol]TechnicalScore
	TopCandidates        []vo.Symbol
	RiskAssessments       map[vo.Symbol]RiskAssessment
	ApprovedTrades        []vo.Symbol
	ExecutionPlans        []ExecutionPlan
	AIInsights            map[vo.Symbol]string
	EarlyWarningResults   map[vo.Symbol]EarlyWarningResult

	// Portfolio context, injected at entry and read-only downstream.
	CurrentNAV        decimal.Decimal
	CurrentPositions  []domain.Position
	PurchasingPower   decimal.Decimal

	// Run configuration.
	MaxCandidates               int
	ScoreThreshold               decimal.Decimal
	DryRun                       bool
	ScreenerMinEPSGrowth         decimal.Decimal
	ScreenerMaxPERatio           decimal.Decimal
	ScreenerVolumeSpikeThreshold decimal.Decimal
}

// Update is a partial state delta a node returns. Only non-nil/non-zero
// fields are applied by Supervisor.merge.
type Update struct {
	Phase        *Phase
	RunID        *string
	TriggeredAt  *time.Time
	ErrorMessage *string

	Watchlist           []vo.Symbol
	TechnicalScores     map[vo.Symbol]TechnicalScore
	TopCandidates       []vo.Symbol
	RiskAssessments     map[vo.Symbol]RiskAssessment
	ApprovedTrades      []vo.Symbol
	ExecutionPlans      []ExecutionPlan
	AIInsights          map[vo.Symbol]string
	EarlyWarningResults map[vo.Symbol]EarlyWarningResult
}

// merge applies u onto s in place, additively: maps are merged key-by-key,
// slices are appended/replaced wholesale by the node that produces them
// (each field has exactly one producing node in the DAG).
func (s *State) merge(u Update) {
	if u.Phase != nil {
		s.Phase = *u.Phase
	}
	if u.RunID != nil {
		s.RunID = *u.RunID
	}
	if u.TriggeredAt != nil {
		s.TriggeredAt = *u.TriggeredAt
	}
	if u.ErrorMessage != nil {
		s.ErrorMessage = *u.ErrorMessage
	}
	if u.Watchlist != nil {
		s.Watchlist = u.Watchlist
	}
	if u.TechnicalScores != nil {
		if s.TechnicalScores == nil {
			s.TechnicalScores = map[vo.Symbol]TechnicalScore{}
		}
		for k, v := range u.TechnicalScores {
			s.TechnicalScores[k] = v
		}
	}
	if u.TopCandidates != nil {
		s.TopCandidates = u.TopCandidates
	}
	if u.RiskAssessments != nil {
		if s.RiskAssessments == nil {
			s.RiskAssessments = map[vo.Symbol]RiskAssessment{}
		}
		for k, v := range u.RiskAssessments {
			s.RiskAssessments[k] = v
		}
	}
	if u.ApprovedTrades != nil {
		s.ApprovedTrades = u.ApprovedTrades
	}
	if u.ExecutionPlans != nil {
		s.ExecutionPlans = u.ExecutionPlans
	}
	if u.AIInsights != nil {
		if s.AIInsights == nil {
			s.AIInsights = map[vo.Symbol]string{}
		}
		for k, v := range u.AIInsights {
			s.AIInsights[k] = v
		}
	}
	if u.EarlyWarningResults != nil {
		if s.EarlyWarningResults == nil {
			s.EarlyWarningResults = map[vo.Symbol]EarlyWarningResult{}
		}
		for k, v := range u.EarlyWarningResults {
			s.EarlyWarningResults[k] = v
		}
	}
}

// priceBandFor is the shared helper nodes use to build a usecase.PriceBand
// from a symbol's exchange and latest market price, consumed by the executor
// before it builds the order that ValidateOrder checks against that band.
func priceBandFor(symbol vo.Symbol, exchange vo.Exchange, referencePrice vo.Price) (usecase.PriceBand, error) {
	return usecase.CalculatePriceBand(symbol, exchange, referencePrice)
}
