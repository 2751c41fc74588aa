package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tranvietlong/vnalgo-core/domain"
	"github.com/tranvietlong/vnalgo-core/vo"
)

// maxConcentrationPct caps existing-plus-new exposure to a single symbol at
// 30% of NAV for BUY candidates, per spec.md §4.9's concentration check.
var maxConcentrationPct = decimal.NewFromFloat(0.30)

// RiskAgent converts technical candidates into per-symbol RiskAssessments,
// applying the kill-switch veto, early-warning veto, position sizing with
// lot rounding, concentration, and stop-loss/take-profit derivation.
type RiskAgent struct {
	limits domain.RiskLimit
}

func NewRiskAgent(limits domain.RiskLimit) *RiskAgent {
	return &RiskAgent{limits: limits}
}

func (a *RiskAgent) Run(ctx context.Context, s State) Update {
	assessments := make(map[vo.Symbol]RiskAssessment, len(s.TopCandidates))
	var approved []vo.Symbol

	for _, symbol := range s.TopCandidates {
		score, ok := s.TechnicalScores[symbol]
		if !ok || score.LatestPrice.IsZero() {
			continue
		}

		assessment := a.assessOne(symbol, score, s)
		assessments[symbol] = assessment
		if assessment.Approved {
			approved = append(approved, symbol)
		} else {
			log.Info().Str("symbol", string(symbol)).Str("reason", assessment.RejectionReason).Msg("🛑 candidate rejected by risk agent")
		}
	}

	phase := PhaseExecuting
	return Update{Phase: &phase, RiskAssessments: assessments, ApprovedTrades: approved}
}

func (a *RiskAgent) assessOne(symbol vo.Symbol, score TechnicalScore, s State) RiskAssessment {
	now := time.Now()
	latest := score.LatestPrice

	if a.limits.KillSwitchActive {
		return RiskAssessment{
			Symbol:          symbol,
			Approved:        false,
			LatestPrice:     latest,
			Exchange:        score.Exchange,
			RejectionReason: "KILL_SWITCH: trading is halted by operator kill-switch",
			AssessedAt:      now,
		}
	}

	if ew, ok := s.EarlyWarningResults[symbol]; ok && ew.RiskLevel == "critical" {
		return RiskAssessment{
			Symbol:          symbol,
			Approved:        false,
			LatestPrice:     latest,
			Exchange:        score.Exchange,
			RejectionReason: fmt.Sprintf("EARLY_WARNING: %s flagged critical risk, vetoing trade", symbol),
			AssessedAt:      now,
		}
	}

	positionPct := a.limits.MaxPositionPct
	if positionPct.IsZero() {
		positionPct = decimal.NewFromFloat(0.05)
	}

	if score.RecommendedAction == ActionBuy {
		existing := decimal.Zero
		for _, pos := range s.CurrentPositions {
			if pos.Symbol == symbol {
				existing = pos.MarketValue()
				break
			}
		}
		if s.CurrentNAV.IsPositive() {
			newExposure := existing.Add(s.CurrentNAV.Mul(positionPct))
			concentration := newExposure.Div(s.CurrentNAV)
			if concentration.GreaterThan(maxConcentrationPct) {
				return RiskAssessment{
					Symbol:          symbol,
					Approved:        false,
					LatestPrice:     latest,
					Exchange:        score.Exchange,
					PositionSizePct: positionPct,
					RejectionReason: fmt.Sprintf("CONCENTRATION: %s exposure would reach %s%% of NAV, exceeds 30%% cap", symbol, concentration.Mul(decimal.NewFromInt(100)).StringFixed(2)),
					AssessedAt:      now,
				}
			}
		}
	}

	stopLossPct := a.limits.StopLossPct
	takeProfitPct := a.limits.TakeProfitPct

	var stopLoss, takeProfit vo.Price
	switch score.RecommendedAction {
	case ActionBuy:
		stopLoss = vo.Price{Decimal: latest.Decimal.Mul(decimal.NewFromInt(1).Sub(stopLossPct))}
		takeProfit = vo.Price{Decimal: latest.Decimal.Mul(decimal.NewFromInt(1).Add(takeProfitPct))}
	case ActionSell:
		stopLoss = vo.Price{Decimal: latest.Decimal.Mul(decimal.NewFromInt(1).Add(stopLossPct))}
		takeProfit = vo.Price{Decimal: latest.Decimal.Mul(decimal.NewFromInt(1).Sub(takeProfitPct))}
	}

	return RiskAssessment{
		Symbol:          symbol,
		Approved:        true,
		PositionSizePct: positionPct,
		LatestPrice:     latest,
		Exchange:        score.Exchange,
		StopLossPrice:   stopLoss,
		TakeProfitPrice: takeProfit,
		AssessedAt:      now,
	}
}

func routeAfterRisk(s State) string {
	if len(s.ApprovedTrades) == 0 {
		return "finalize"
	}
	return "executor"
}
