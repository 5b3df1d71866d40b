package utils

import (
	"time"
)

// time.go - утилиты для работы со временем
//
// Границы торгового дня (UTC) для дневного kill-switch и
// границы funding-периодов для rollover.

// GetDayStart возвращает начало текущего дня (00:00:00) в UTC
func GetDayStart() time.Time {
	return GetDayStartFrom(time.Now().UTC())
}

// GetDayStartFrom возвращает начало дня для указанного времени в UTC
//
// Дневные счётчики (реализованный убыток, funding cost) сбрасываются
// строго на этой границе.
func GetDayStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameTradingDay проверяет, принадлежат ли оба времени одному дню UTC
func SameTradingDay(a, b time.Time) bool {
	return GetDayStartFrom(a).Equal(GetDayStartFrom(b))
}

// FundingPeriodStart возвращает начало funding-периода, содержащего t.
//
// Периоды выровнены по полуночи UTC: для 8h это 00:00, 08:00, 16:00;
// для 1h - каждый час.
//
// Пример:
//
//	FundingPeriodStart(2024-03-10 09:15 UTC, 8h) = 2024-03-10 08:00 UTC
func FundingPeriodStart(t time.Time, period time.Duration) time.Time {
	if period <= 0 {
		return GetDayStartFrom(t)
	}
	dayStart := GetDayStartFrom(t)
	elapsed := t.UTC().Sub(dayStart)
	return dayStart.Add(elapsed.Truncate(period))
}

// FundingPeriodEnd возвращает конец funding-периода, содержащего t
func FundingPeriodEnd(t time.Time, period time.Duration) time.Time {
	if period <= 0 {
		period = 8 * time.Hour
	}
	return FundingPeriodStart(t, period).Add(period)
}

// NextFundingBoundary возвращает ближайшую будущую границу периода.
// Если t лежит ровно на границе, возвращает следующую.
func NextFundingBoundary(t time.Time, period time.Duration) time.Time {
	end := FundingPeriodEnd(t, period)
	if !end.After(t.UTC()) {
		end = end.Add(period)
	}
	return end
}

// IsStale проверяет, старше ли отметка времени допустимого возраста
func IsStale(ts, now time.Time, tolerance time.Duration) bool {
	if ts.IsZero() {
		return true
	}
	return now.Sub(ts) > tolerance
}

// FormatDuration форматирует продолжительность в человекочитаемый вид
//
// Примеры: "45s", "5m30s", "2h15m"
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	return d.Round(time.Second).String()
}

// UnixMillis возвращает текущее время в миллисекундах Unix
func UnixMillis() int64 {
	return time.Now().UnixMilli()
}

// FromUnixMillis конвертирует миллисекунды Unix в time.Time
func FromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
