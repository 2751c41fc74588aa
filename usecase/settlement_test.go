package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateSettlement_T2Afternoon(t *testing.T) {
	// Scenario 4: Buy FPT on 2026-02-09 (Monday).
	buy := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	settlement := CalculateSettlement(buy)

	assert.Equal(t, "2026-02-11", settlement.SettlementDate.Format("2006-01-02"))
	assert.Equal(t, "afternoon", settlement.SellableSession)
}

func TestCanSellNow_Boundary(t *testing.T) {
	buy := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	settlementDay := time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)

	assert.False(t, CanSellNow(buy, settlementDay, 12), "12:59 must not be sellable")
	assert.True(t, CanSellNow(buy, settlementDay, 13), "13:00 must be sellable")
}

func TestIsTradingDay_SkipsWeekendsAndHolidays(t *testing.T) {
	saturday := time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC)
	assert.False(t, IsTradingDay(saturday))

	newYear := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.False(t, IsTradingDay(newYear))

	regular := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	assert.True(t, IsTradingDay(regular))
}

func TestNextTradingDay_SkipsTetHoliday(t *testing.T) {
	// 2026-01-23 is a Friday; the following trading day must skip the
	// Tet block (Jan 26-30) and land on Feb 2.
	friday := time.Date(2026, 1, 23, 0, 0, 0, 0, time.UTC)
	next := NextTradingDay(friday)
	assert.Equal(t, "2026-02-02", next.Format("2006-01-02"))
}
