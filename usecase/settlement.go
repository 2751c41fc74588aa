package usecase

import "time"

// vnHolidays2026 is the configured holiday set for 2026. Per spec.md §4.4
// this table may be swapped out without changing any function signature.
var vnHolidays2026 = map[string]bool{
	"2026-01-01": true, // New Year
	"2026-01-26": true, // Tet
	"2026-01-27": true,
	"2026-01-28": true,
	"2026-01-29": true,
	"2026-01-30": true,
	"2026-04-30": true, // Reunification Day
	"2026-05-01": true, // Labor Day
	"2026-09-02": true, // National Day
}

func dateKey(d time.Time) string {
	return d.Format("2006-01-02")
}

// IsTradingDay reports whether d is a weekday and not a configured holiday.
func IsTradingDay(d time.Time) bool {
	wd := d.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !vnHolidays2026[dateKey(d)]
}

// NextTradingDay returns the smallest date strictly after d that is a
// trading day.
func NextTradingDay(d time.Time) time.Time {
	candidate := d.AddDate(0, 0, 1)
	for !IsTradingDay(candidate) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// SettlementDate is the result of CalculateSettlement.
type SettlementDate struct {
	TradeDate       time.Time
	SettlementDate  time.Time
	SellableSession string
}

// CalculateSettlement applies T+2.5: two trading days after the trade date,
// sellable starting the afternoon session (≥13:00).
func CalculateSettlement(tradeDate time.Time) SettlementDate {
	t1 := NextTradingDay(tradeDate)
	t2 := NextTradingDay(t1)
	return SettlementDate{
		TradeDate:       tradeDate,
		SettlementDate:  t2,
		SellableSession: "afternoon",
	}
}

// CanSellNow reports whether shares bought on buyDate are sellable given
// currentDate/currentHour, per spec.md §4.4's boundary rule.
func CanSellNow(buyDate, currentDate time.Time, currentHour int) bool {
	settlement := CalculateSettlement(buyDate).SettlementDate
	cd := dateKey(currentDate)
	sd := dateKey(settlement)

	switch {
	case cd > sd:
		return true
	case cd == sd:
		return currentHour >= 13
	default:
		return false
	}
}
