package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Supervisor wires the pipeline's nodes into the fixed DAG described by
// spec.md §4.9: screener -> technical -> [fundamental] -> risk -> executor
// -> finalize, with conditional edges short-circuiting to finalize the
// moment a node produces no further work. There is no generic graph engine
// here — the routing is the same kind of explicit Go control flow the
// teacher uses for its own pipeline stages, just generalized to more nodes.
type Supervisor struct {
	screener    *ScreenerAgent
	technical   *TechnicalAgent
	fundamental *FundamentalAgent // nil when no AI engine is configured
	risk        *RiskAgent
	executor    *ExecutorAgent
	audit       *AuditLog
}

func NewSupervisor(
	screener *ScreenerAgent,
	technical *TechnicalAgent,
	fundamental *FundamentalAgent,
	risk *RiskAgent,
	executor *ExecutorAgent,
	audit *AuditLog,
) *Supervisor {
	return &Supervisor{
		screener:    screener,
		technical:   technical,
		fundamental: fundamental,
		risk:        risk,
		executor:    executor,
		audit:       audit,
	}
}

// Run executes one full pipeline pass starting from initial, returning the
// final merged state. initial must already carry run configuration
// (MaxCandidates, ScoreThreshold, thresholds, DryRun) and portfolio context
// (CurrentNAV, CurrentPositions, PurchasingPower) — see injectContext.
func (sv *Supervisor) Run(ctx context.Context, runID string, initial State) State {
	state := injectContext(runID, initial)

	log.Info().Str("run_id", runID).Msg("🚀 pipeline run starting")

	if panicked := sv.step("screener", ctx, &state, sv.screener.Run); panicked {
		return sv.finalize(state)
	}
	if routeAfterScreener(state) == "finalize" {
		return sv.finalize(state)
	}

	if panicked := sv.step("technical", ctx, &state, sv.technical.Run); panicked {
		return sv.finalize(state)
	}
	nextAfterTechnical := routeAfterTechnical(sv.fundamental != nil)(state)
	if nextAfterTechnical == "finalize" {
		return sv.finalize(state)
	}

	if nextAfterTechnical == "fundamental" {
		if panicked := sv.step("fundamental", ctx, &state, sv.fundamental.Run); panicked {
			return sv.finalize(state)
		}
		if routeAfterFundamental(state) == "finalize" {
			return sv.finalize(state)
		}
	}

	if panicked := sv.step("risk", ctx, &state, sv.risk.Run); panicked {
		return sv.finalize(state)
	}
	if routeAfterRisk(state) == "finalize" {
		return sv.finalize(state)
	}

	if panicked := sv.step("executor", ctx, &state, sv.executor.Run); panicked {
		return sv.finalize(state)
	}
	_ = routeAfterExecutor(state) // always "finalize"; kept for symmetry with other edges

	return sv.finalize(state)
}

// step runs one node and merges its Update into state, recovering from a
// panic so a single faulty agent isolates to an ERROR phase instead of
// crashing the process (spec.md §7). It reports whether it recovered.
func (sv *Supervisor) step(name string, ctx context.Context, state *State, run func(context.Context, State) Update) (panicked bool) {
	update := func() (u Update) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("node", name).Interface("panic", r).Msg("⛔ agent node panicked; isolating failure")
				msg := fmt.Sprintf("%s agent panicked: %v", name, r)
				panicked = true
				u = Update{ErrorMessage: &msg}
			}
		}()
		return run(ctx, *state)
	}()
	state.merge(update)
	return panicked
}

// injectContext is the DAG's entry node: it stamps RunID/TriggeredAt and
// leaves every caller-supplied field (portfolio context, run configuration)
// untouched for downstream nodes to read.
func injectContext(runID string, initial State) State {
	s := initial
	s.RunID = runID
	s.TriggeredAt = time.Now()
	s.Phase = PhaseScreening
	return s
}

// finalize is the DAG's sink node: it marks the terminal phase and writes
// the audit trail. A prior ErrorMessage is preserved as ERROR; otherwise the
// run is COMPLETED regardless of how early it short-circuited (an empty
// watchlist is not a pipeline failure).
func (sv *Supervisor) finalize(s State) State {
	if s.ErrorMessage != "" {
		s.Phase = PhaseError
	} else {
		s.Phase = PhaseCompleted
	}

	if sv.audit != nil {
		if err := sv.audit.RunAudit(s); err != nil {
			log.Error().Err(err).Str("run_id", s.RunID).Msg("🛑 failed to write audit entry")
		}
	}

	log.Info().
		Str("run_id", s.RunID).
		Str("phase", string(s.Phase)).
		Int("approved", len(s.ApprovedTrades)).
		Int("executed", len(s.ExecutionPlans)).
		Msg("🏁 pipeline run finished")

	return s
}
