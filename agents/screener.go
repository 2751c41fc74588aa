package agents

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/tranvietlong/vnalgo-core/ports"
	"github.com/tranvietlong/vnalgo-core/vo"
)

// ScreenerAgent is the entry analytical node: it narrows the full market
// down to a capped watchlist using an external screening service plus tick
// volume-spike detection.
type ScreenerAgent struct {
	screener ports.Screener
	tickStore ports.TickStore
}

func NewScreenerAgent(screener ports.Screener, tickStore ports.TickStore) *ScreenerAgent {
	return &ScreenerAgent{screener: screener, tickStore: tickStore}
}

func (a *ScreenerAgent) Run(ctx context.Context, s State) Update {
	var watchlist []vo.Symbol

	if a.screener != nil {
		candidates, err := a.screener.Screen(ctx, s.ScreenerMinEPSGrowth, s.ScreenerMaxPERatio)
		if err != nil {
			log.Warn().Err(err).Msg("📉 screener service call failed; falling back to volume-spike detection only")
		} else {
			watchlist = append(watchlist, candidates...)
		}
	}

	if a.tickStore != nil {
		spikes, err := a.tickStore.QueryVolumeSpikes(ctx, s.ScreenerVolumeSpikeThreshold)
		if err != nil {
			log.Warn().Err(err).Msg("📉 volume-spike query failed")
		} else {
			watchlist = append(watchlist, spikes...)
		}
	}

	watchlist = dedupe(watchlist)
	if s.MaxCandidates > 0 && len(watchlist) > s.MaxCandidates {
		watchlist = watchlist[:s.MaxCandidates]
	}

	phase := PhaseAnalyzing
	log.Info().Int("count", len(watchlist)).Msg("🔍 screener produced watchlist")

	return Update{Phase: &phase, Watchlist: watchlist}
}

func dedupe(symbols []vo.Symbol) []vo.Symbol {
	seen := make(map[vo.Symbol]bool, len(symbols))
	out := make([]vo.Symbol, 0, len(symbols))
	for _, s := range symbols {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// routeAfterScreener is the conditional edge out of the screener node.
func routeAfterScreener(s State) string {
	if len(s.Watchlist) > 0 {
		return "technical"
	}
	return "finalize"
}
