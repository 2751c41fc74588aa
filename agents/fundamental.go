package agents

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tranvietlong/vnalgo-core/ports"
	"github.com/tranvietlong/vnalgo-core/vo"
)

// FundamentalAgent is the optional node that enriches top candidates with an
// AI-generated narrative and an early-warning risk veto signal. It is
// intentionally thin: industry/DuPont ratio analysis is a named non-goal of
// this core (spec.md §1 Non-goals), so only the port surface is wired here —
// a real engine can be dropped in behind ports.AIEngine without further
// changes to this node.
type FundamentalAgent struct {
	engine ports.AIEngine
}

func NewFundamentalAgent(engine ports.AIEngine) *FundamentalAgent {
	return &FundamentalAgent{engine: engine}
}

func (a *FundamentalAgent) Run(ctx context.Context, s State) Update {
	insights := make(map[vo.Symbol]string, len(s.TopCandidates))
	warnings := make(map[vo.Symbol]EarlyWarningResult, len(s.TopCandidates))

	for _, symbol := range s.TopCandidates {
		if a.engine == nil {
			continue
		}

		score := s.TechnicalScores[symbol]
		summary := fmt.Sprintf("composite_score=%s action=%s macd=%s trend=%s",
			score.CompositeScore.String(), score.RecommendedAction, score.MACDSignal, score.TrendMA)

		analysis, err := a.engine.Analyze(ctx, symbol, summary)
		if err != nil {
			log.Warn().Str("symbol", string(symbol)).Err(err).Msg("🤖 AI engine call failed; proceeding without narrative")
			continue
		}
		insights[symbol] = analysis.Narrative

		warnings[symbol] = EarlyWarningResult{
			Symbol:    symbol,
			RiskLevel: analysis.RiskLevel,
			Score:     analysis.Score,
			Summary:   analysis.Narrative,
		}
	}

	phase := PhaseRiskChecking
	return Update{Phase: &phase, AIInsights: insights, EarlyWarningResults: warnings}
}

// routeAfterFundamental is unconditional: fundamental always proceeds to risk.
func routeAfterFundamental(State) string {
	return "risk"
}
