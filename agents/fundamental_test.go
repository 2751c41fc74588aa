package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tranvietlong/vnalgo-core/vo"
)

func TestFundamentalAgent_Run_NilEngineProducesNoInsights(t *testing.T) {
	agent := NewFundamentalAgent(nil)
	s := State{TopCandidates: []vo.Symbol{"FPT"}}

	update := agent.Run(context.Background(), s)

	assert.Empty(t, update.AIInsights)
	assert.Empty(t, update.EarlyWarningResults)
}

func TestRouteAfterFundamental_AlwaysProceedsToRisk(t *testing.T) {
	assert.Equal(t, "risk", routeAfterFundamental(State{}))
}
