package config

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		original, existed := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if existed {
				os.Setenv(k, original)
			}
		})
	}
}

func TestLoad_AppliesDefaultsWhenEnvUnset(t *testing.T) {
	clearEnv(t, "DRY_RUN", "WATCHLIST", "SYNC_INTERVAL", "RISK_MAX_CONCENTRATION_PCT")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.DryRun)
	assert.Equal(t, []string{"FPT", "HPG", "VNM", "VCB", "MWG"}, cfg.Watchlist)
	assert.Equal(t, 2*time.Second, cfg.SyncInterval)
	assert.True(t, cfg.Risk.MaxConcentrationPct.Equal(decimal.NewFromFloat(0.30)))
}

func TestLoad_RequiresSSICredentialsWhenNotDryRun(t *testing.T) {
	clearEnv(t, "DRY_RUN", "SSI_CONSUMER_ID", "SSI_CONSUMER_SECRET", "SSI_PRIVATE_KEY_PATH")
	os.Setenv("DRY_RUN", "false")
	t.Cleanup(func() { os.Unsetenv("DRY_RUN") })

	_, err := Load()
	assert.Error(t, err)
}

func TestGetEnvList_SplitsOnCommaAndTrimsWhitespace(t *testing.T) {
	clearEnv(t, "TEST_LIST")
	os.Setenv("TEST_LIST", "FPT, HPG ,VNM")
	t.Cleanup(func() { os.Unsetenv("TEST_LIST") })

	got := getEnvList("TEST_LIST", nil)
	assert.Equal(t, []string{"FPT", "HPG", "VNM"}, got)
}

func TestGetEnvDecimal_FallsBackToDefaultOnInvalidValue(t *testing.T) {
	clearEnv(t, "TEST_DECIMAL")
	os.Setenv("TEST_DECIMAL", "not-a-number")
	t.Cleanup(func() { os.Unsetenv("TEST_DECIMAL") })

	got := getEnvDecimal("TEST_DECIMAL", decimal.NewFromInt(42))
	assert.True(t, got.Equal(decimal.NewFromInt(42)))
}
