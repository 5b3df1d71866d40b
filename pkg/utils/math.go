package utils

import (
	"math"
)

// math.go - математические утилиты для перп-торговли
//
// Все функции чистые (pure functions), без побочных эффектов.

// RoundToLotSize округляет значение ВНИЗ до ближайшего кратного lotSize.
//
// Используется для округления объёма ордера до минимального шага биржи.
// Округление вниз гарантирует, что мы не превысим доступные средства.
//
// Примеры:
//   - RoundToLotSize(0.123456, 0.001) = 0.123
//   - RoundToLotSize(1.999, 0.01) = 1.99
func RoundToLotSize(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	return math.Floor(value/lotSize) * lotSize
}

// RoundToLotSizeUp округляет значение ВВЕРХ до ближайшего кратного lotSize.
//
// Используется когда нужно гарантировать минимальный объём (minQty биржи).
func RoundToLotSizeUp(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	return math.Ceil(value/lotSize) * lotSize
}

// Sign возвращает знак числа: +1, -1 или 0.
func Sign(x float64) float64 {
	if x > 0 {
		return 1
	}
	if x < 0 {
		return -1
	}
	return 0
}

// Clamp ограничивает значение диапазоном [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Abs возвращает абсолютное значение числа.
func Abs(x float64) float64 {
	return math.Abs(x)
}

// Min возвращает минимум из двух чисел.
func Min(a, b float64) float64 {
	return math.Min(a, b)
}

// Max возвращает максимум из двух чисел.
func Max(a, b float64) float64 {
	return math.Max(a, b)
}

// PctOf возвращает долю part от total в процентах.
// total <= 0 даёт 0, а не NaN: RiskState всегда остаётся числовым.
func PctOf(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return part / total * 100
}

// FundingPayment расчитывает платёж funding за период.
//
// Платёж = rate × notional. Знак определяется стороной позиции:
// положительная ставка платят лонги, получают шорты.
//
// Параметры:
//   - rate: ставка за период, доля (0.001 = 0.1%)
//   - notional: размер позиции в USD
//   - side: "long" или "short"
//
// Возвращает:
//   - Положительное значение = позиция ПЛАТИТ funding
//   - Отрицательное значение = позиция ПОЛУЧАЕТ funding
//
// Примеры:
//   - FundingPayment(0.001, 10000, "long")  = 10   (лонг платит)
//   - FundingPayment(0.001, 10000, "short") = -10  (шорт получает)
//   - FundingPayment(-0.001, 10000, "long") = -10  (лонг получает)
func FundingPayment(rate, notional float64, side string) float64 {
	if notional <= 0 {
		return 0
	}
	payment := rate * notional
	if side == "short" {
		payment = -payment
	}
	return payment
}

// LiquidationDistancePct оценивает дистанцию до ликвидации в процентах цены.
//
// Упрощённая модель изолированной маржи:
//
//	distance = (1/leverage - maintenanceMargin) × 100
//
// Параметры:
//   - leverage: плечо позиции
//   - maintenanceMarginPct: maintenance margin в процентах (0.5 = 0.5%)
//
// Возвращает:
//   - Дистанцию в процентах движения цены против позиции
//   - 0 если плечо некорректно
//
// Примеры:
//   - LiquidationDistancePct(10, 0.5) = 9.5  (10x: ликвидация при -9.5%)
//   - LiquidationDistancePct(2, 0.5)  = 49.5
func LiquidationDistancePct(leverage, maintenanceMarginPct float64) float64 {
	if leverage <= 0 {
		return 0
	}
	d := 100/leverage - maintenanceMarginPct
	if d < 0 {
		return 0
	}
	return d
}

// AnnualizedFundingPct переводит ставку за период в годовые проценты.
//
// Используется для сравнения привлекательности funding-возможностей
// на рынках с разной периодичностью расчёта.
//
// Параметры:
//   - ratePerPeriod: ставка за период, доля
//   - periodsPerDay: число расчётов в сутки (3 для 8h, 24 для 1h)
//
// Пример:
//   - AnnualizedFundingPct(0.0001, 3) = 10.95 (0.01% × 3 × 365)
func AnnualizedFundingPct(ratePerPeriod, periodsPerDay float64) float64 {
	if periodsPerDay <= 0 {
		return 0
	}
	return ratePerPeriod * periodsPerDay * 365 * 100
}
