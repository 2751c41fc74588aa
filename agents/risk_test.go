package agents

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tranvietlong/vnalgo-core/domain"
	"github.com/tranvietlong/vnalgo-core/vo"
)

func TestRiskAgent_KillSwitchVetoesAllCandidates(t *testing.T) {
	agent := NewRiskAgent(domain.RiskLimit{KillSwitchActive: true})

	s := State{
		TopCandidates: []vo.Symbol{"FPT"},
		TechnicalScores: map[vo.Symbol]TechnicalScore{
			"FPT": {Symbol: "FPT", LatestPrice: vo.NewPrice(50000), RecommendedAction: ActionBuy},
		},
		CurrentNAV: decimal.NewFromInt(1_000_000_000),
	}

	update := agent.Run(context.Background(), s)

	require.Contains(t, update.RiskAssessments, vo.Symbol("FPT"))
	assessment := update.RiskAssessments["FPT"]
	assert.False(t, assessment.Approved)
	assert.Contains(t, assessment.RejectionReason, "KILL_SWITCH")
	assert.Empty(t, update.ApprovedTrades)
}

func TestRiskAgent_CriticalEarlyWarningVetoes(t *testing.T) {
	agent := NewRiskAgent(domain.RiskLimit{MaxPositionPct: decimal.NewFromFloat(0.05)})

	s := State{
		TopCandidates: []vo.Symbol{"FPT"},
		TechnicalScores: map[vo.Symbol]TechnicalScore{
			"FPT": {Symbol: "FPT", LatestPrice: vo.NewPrice(50000), RecommendedAction: ActionBuy},
		},
		EarlyWarningResults: map[vo.Symbol]EarlyWarningResult{
			"FPT": {Symbol: "FPT", RiskLevel: "critical"},
		},
		CurrentNAV: decimal.NewFromInt(1_000_000_000),
	}

	update := agent.Run(context.Background(), s)

	assessment := update.RiskAssessments["FPT"]
	assert.False(t, assessment.Approved)
	assert.Contains(t, assessment.RejectionReason, "EARLY_WARNING")
}

func TestRiskAgent_ConcentrationCapRejectsOverexposure(t *testing.T) {
	agent := NewRiskAgent(domain.RiskLimit{MaxPositionPct: decimal.NewFromFloat(0.25)})

	nav := decimal.NewFromInt(1_000_000_000)
	s := State{
		TopCandidates: []vo.Symbol{"FPT"},
		TechnicalScores: map[vo.Symbol]TechnicalScore{
			"FPT": {Symbol: "FPT", LatestPrice: vo.NewPrice(50000), RecommendedAction: ActionBuy},
		},
		CurrentNAV: nav,
		CurrentPositions: []domain.Position{
			{Symbol: "FPT", MarketPrice: vo.NewPrice(50000), Quantity: vo.Quantity(100000)}, // already 5B VND, 500% of NAV
		},
	}

	update := agent.Run(context.Background(), s)

	assessment := update.RiskAssessments["FPT"]
	assert.False(t, assessment.Approved)
	assert.Contains(t, assessment.RejectionReason, "CONCENTRATION")
}

func TestRiskAgent_ApprovedBuyDerivesStopLossBelowAndTakeProfitAbove(t *testing.T) {
	agent := NewRiskAgent(domain.RiskLimit{
		MaxPositionPct: decimal.NewFromFloat(0.05),
		StopLossPct:    decimal.NewFromFloat(0.07),
		TakeProfitPct:  decimal.NewFromFloat(0.15),
	})

	s := State{
		TopCandidates: []vo.Symbol{"FPT"},
		TechnicalScores: map[vo.Symbol]TechnicalScore{
			"FPT": {Symbol: "FPT", LatestPrice: vo.NewPrice(100000), RecommendedAction: ActionBuy},
		},
		CurrentNAV: decimal.NewFromInt(1_000_000_000),
	}

	update := agent.Run(context.Background(), s)

	assessment := update.RiskAssessments["FPT"]
	require.True(t, assessment.Approved)
	assert.Contains(t, update.ApprovedTrades, vo.Symbol("FPT"))
	assert.True(t, assessment.StopLossPrice.Decimal.LessThan(assessment.LatestPrice.Decimal))
	assert.True(t, assessment.TakeProfitPrice.Decimal.GreaterThan(assessment.LatestPrice.Decimal))
}

func TestRouteAfterRisk_NoApprovedTradesFinalizes(t *testing.T) {
	assert.Equal(t, "finalize", routeAfterRisk(State{}))
	assert.Equal(t, "executor", routeAfterRisk(State{ApprovedTrades: []vo.Symbol{"FPT"}}))
}
