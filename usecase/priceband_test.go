package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tranvietlong/vnalgo-core/vo"
)

func TestCalculatePriceBand_HOSE(t *testing.T) {
	band, err := CalculatePriceBand("FPT", vo.HOSE, vo.NewPrice(100000))
	require.NoError(t, err)

	assert.True(t, band.FloorPrice.Decimal.LessThanOrEqual(band.ReferencePrice.Decimal))
	assert.True(t, band.ReferencePrice.Decimal.LessThanOrEqual(band.CeilingPrice.Decimal))

	assert.True(t, band.CeilingPrice.Decimal.Mod(band.TickSize).IsZero())
	assert.True(t, band.FloorPrice.Decimal.Mod(band.TickSize).IsZero())
}

func TestValidateOrderPrice_HOSEBandRejection(t *testing.T) {
	// Scenario 3: reference 100,000 VND, submit BUY at 108,000 (ceiling ~107,000 after snap).
	band, err := CalculatePriceBand("FPT", vo.HOSE, vo.NewPrice(100000))
	require.NoError(t, err)
	require.Equal(t, "107000", band.CeilingPrice.String())

	ok, reason := ValidateOrderPrice(vo.NewPrice(108000), band)
	assert.False(t, ok)
	assert.Contains(t, reason, "exceeds ceiling")
}

func TestValidateOrderPrice_BoundaryAtCeiling(t *testing.T) {
	band, err := CalculatePriceBand("FPT", vo.HOSE, vo.NewPrice(100000))
	require.NoError(t, err)

	ok, _ := ValidateOrderPrice(band.CeilingPrice, band)
	assert.True(t, ok, "exactly at ceiling must be accepted")

	overCeiling := vo.Price{Decimal: band.CeilingPrice.Decimal.Add(band.TickSize)}
	ok, reason := ValidateOrderPrice(overCeiling, band)
	assert.False(t, ok)
	assert.Contains(t, reason, "exceeds ceiling")
}

func TestValidateOrderPrice_TickMisaligned(t *testing.T) {
	band, err := CalculatePriceBand("FPT", vo.HOSE, vo.NewPrice(100000))
	require.NoError(t, err)

	ok, reason := ValidateOrderPrice(vo.NewPrice(100001), band)
	assert.False(t, ok)
	assert.Contains(t, reason, "tick-misaligned")
}

func TestTickSizeThresholds(t *testing.T) {
	cases := []struct {
		ref  int64
		tick string
	}{
		{9999, "10"},
		{10000, "50"},
		{49999, "50"},
		{50000, "100"},
	}
	for _, c := range cases {
		band, err := CalculatePriceBand("TEST", vo.HOSE, vo.NewPrice(c.ref))
		require.NoError(t, err)
		assert.Equal(t, c.tick, band.TickSize.String(), "ref=%d", c.ref)
	}
}
