package bot

import (
	"math"
	"testing"
	"time"

	"perpbot/internal/models"
	"perpbot/pkg/utils"
)

func newTestPositionManager() *PositionManager {
	pm := NewPositionManager(map[string]string{
		"BTC-PERP": "majors",
		"ETH-PERP": "majors",
	}, utils.NopLogger(), nil)
	pm.UpdateAccount(models.AccountSnapshot{
		Equity:         100_000,
		FreeCollateral: 80_000,
		Timestamp:      time.Now(),
	})
	return pm
}

func openAction(asset, side string, notional float64) models.ApprovedAction {
	return models.ApprovedAction{
		Asset:    asset,
		Kind:     models.ActionKindOpen,
		Side:     side,
		Notional: notional,
		Leverage: 3,
	}
}

func TestApplyOpen(t *testing.T) {
	pm := newTestPositionManager()

	delta, err := pm.Apply(openAction("BTC-PERP", models.SideLong, 5000), 50_000, 72*time.Hour, time.Now())
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if delta.SizeBefore != 0 || delta.SizeAfter != 5000 {
		t.Errorf("delta = %v -> %v, want 0 -> 5000", delta.SizeBefore, delta.SizeAfter)
	}

	pos := pm.Position("BTC-PERP")
	if pos == nil {
		t.Fatal("position missing after open")
	}
	if pos.Side != models.SideLong || pos.EntryPrice != 50_000 {
		t.Errorf("position = %+v", pos)
	}

	rs := pm.RiskState()
	if math.Abs(rs.AssetExposurePct["BTC-PERP"]-5) > 1e-9 {
		t.Errorf("asset exposure = %v, want 5%%", rs.AssetExposurePct["BTC-PERP"])
	}
	if math.Abs(rs.ClusterExposurePct["majors"]-5) > 1e-9 {
		t.Errorf("cluster exposure = %v, want 5%%", rs.ClusterExposurePct["majors"])
	}
}

func TestApplyIncreaseAveragesEntry(t *testing.T) {
	pm := newTestPositionManager()
	pm.Apply(openAction("BTC-PERP", models.SideLong, 5000), 50_000, 0, time.Now())

	_, err := pm.Apply(models.ApprovedAction{
		Asset: "BTC-PERP", Kind: models.ActionKindIncrease,
		Side: models.SideLong, Notional: 5000, Leverage: 3,
	}, 60_000, 0, time.Now())
	if err != nil {
		t.Fatalf("increase failed: %v", err)
	}

	pos := pm.Position("BTC-PERP")
	if pos.Notional != 10_000 {
		t.Errorf("notional = %v, want 10000", pos.Notional)
	}
	if math.Abs(pos.EntryPrice-55_000) > 1e-9 {
		t.Errorf("entry price = %v, want weighted 55000", pos.EntryPrice)
	}
}

func TestApplyDecreaseRealizesPnl(t *testing.T) {
	pm := newTestPositionManager()
	pm.Apply(openAction("BTC-PERP", models.SideLong, 10_000), 50_000, 0, time.Now())

	// Закрываем половину при +10% цене: qty 0.2, pnl доли = 0.1 × 5000 = 500
	_, err := pm.Apply(models.ApprovedAction{
		Asset: "BTC-PERP", Kind: models.ActionKindDecrease,
		Side: models.SideLong, Notional: 5000,
	}, 55_000, 0, time.Now())
	if err != nil {
		t.Fatalf("decrease failed: %v", err)
	}

	pos := pm.Position("BTC-PERP")
	if pos.Notional != 5000 {
		t.Errorf("notional = %v, want 5000", pos.Notional)
	}
	if math.Abs(pm.RealizedPnlToday()-500) > 1e-9 {
		t.Errorf("realized pnl = %v, want 500", pm.RealizedPnlToday())
	}
}

func TestApplyCloseRemovesPosition(t *testing.T) {
	pm := newTestPositionManager()
	pm.Apply(openAction("ETH-PERP", models.SideShort, 6000), 3000, 0, time.Now())

	_, err := pm.Apply(models.ApprovedAction{
		Asset: "ETH-PERP", Kind: models.ActionKindClose, Side: models.SideShort,
	}, 2900, 0, time.Now())
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if pm.Position("ETH-PERP") != nil {
		t.Error("position must be gone after close")
	}
	// Шорт 2 монеты, цена упала на 100: +200
	if math.Abs(pm.RealizedPnlToday()-200) > 1e-9 {
		t.Errorf("realized pnl = %v, want 200", pm.RealizedPnlToday())
	}
}

// TestNettingReduces проверяет инвариант одной нетто-позиции:
// противоположный open меньше позиции сокращает её
func TestNettingReduces(t *testing.T) {
	pm := newTestPositionManager()
	pm.Apply(openAction("BTC-PERP", models.SideLong, 10_000), 50_000, 0, time.Now())

	_, err := pm.Apply(openAction("BTC-PERP", models.SideShort, 4000), 50_000, 0, time.Now())
	if err != nil {
		t.Fatalf("netting apply failed: %v", err)
	}

	pos := pm.Position("BTC-PERP")
	if pos == nil {
		t.Fatal("position missing after netting")
	}
	if pos.Side != models.SideLong || pos.Notional != 6000 {
		t.Errorf("after netting: %s %v, want long 6000", pos.Side, pos.Notional)
	}
}

// TestNettingFlips: противоположный open больше позиции переворачивает её
func TestNettingFlips(t *testing.T) {
	pm := newTestPositionManager()
	pm.Apply(openAction("BTC-PERP", models.SideLong, 4000), 50_000, 0, time.Now())

	_, err := pm.Apply(openAction("BTC-PERP", models.SideShort, 10_000), 52_000, 0, time.Now())
	if err != nil {
		t.Fatalf("flip apply failed: %v", err)
	}

	pos := pm.Position("BTC-PERP")
	if pos == nil {
		t.Fatal("position missing after flip")
	}
	if pos.Side != models.SideShort || pos.Notional != 6000 {
		t.Errorf("after flip: %s %v, want short 6000", pos.Side, pos.Notional)
	}
	if pos.EntryPrice != 52_000 {
		t.Errorf("flip entry = %v, want fill price 52000", pos.EntryPrice)
	}

	// Закрытая лонг-доля реализовала прибыль: 0.08 монеты × 2000 = 160
	if math.Abs(pm.RealizedPnlToday()-160) > 1e-9 {
		t.Errorf("realized pnl = %v, want 160", pm.RealizedPnlToday())
	}
}

func TestNettingExactCloseLeavesNoPosition(t *testing.T) {
	pm := newTestPositionManager()
	pm.Apply(openAction("BTC-PERP", models.SideLong, 5000), 50_000, 0, time.Now())

	pm.Apply(openAction("BTC-PERP", models.SideShort, 5000), 50_000, 0, time.Now())
	if pm.Position("BTC-PERP") != nil {
		t.Error("equal netting must close the position entirely")
	}
}

func TestFundingRollover(t *testing.T) {
	pm := newTestPositionManager()
	pm.Apply(openAction("BTC-PERP", models.SideLong, 10_000), 50_000, 0, time.Now())

	// Лонг платит положительный funding: 0.1% × 10000 = 10
	payment := pm.ApplyFundingRollover("BTC-PERP", 0.001, time.Now())
	if math.Abs(payment-10) > 1e-9 {
		t.Errorf("payment = %v, want 10", payment)
	}

	pos := pm.Position("BTC-PERP")
	if math.Abs(pos.FundingCostToday-10) > 1e-9 {
		t.Errorf("funding cost today = %v, want 10", pos.FundingCostToday)
	}
	// Платёж уменьшает дневной P&L
	if math.Abs(pm.RealizedPnlToday()+10) > 1e-9 {
		t.Errorf("realized pnl = %v, want -10", pm.RealizedPnlToday())
	}

	// Шорт получал бы funding
	pm.Apply(openAction("ETH-PERP", models.SideShort, 10_000), 3000, 0, time.Now())
	payment = pm.ApplyFundingRollover("ETH-PERP", 0.001, time.Now())
	if math.Abs(payment+10) > 1e-9 {
		t.Errorf("short payment = %v, want -10 (collects)", payment)
	}
}

func TestRolloverWithoutPosition(t *testing.T) {
	pm := newTestPositionManager()
	if payment := pm.ApplyFundingRollover("BTC-PERP", 0.001, time.Now()); payment != 0 {
		t.Errorf("payment without position = %v, want 0", payment)
	}
}

func TestDailyLossPct(t *testing.T) {
	pm := newTestPositionManager()
	pm.Apply(openAction("BTC-PERP", models.SideLong, 50_000), 50_000, 0, time.Now())

	// Закрытие с убытком 5%: 1 монета × -5000
	pm.Apply(models.ApprovedAction{
		Asset: "BTC-PERP", Kind: models.ActionKindClose, Side: models.SideLong,
	}, 45_000, 0, time.Now())

	rs := pm.RiskState()
	if math.Abs(rs.DailyRealizedLossPct-5) > 1e-9 {
		t.Errorf("daily loss = %v%%, want 5%%", rs.DailyRealizedLossPct)
	}
}

func TestDayRollResetsCounters(t *testing.T) {
	pm := newTestPositionManager()
	now := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)

	pm.Apply(openAction("BTC-PERP", models.SideLong, 10_000), 50_000, 0, now)
	pm.Apply(models.ApprovedAction{
		Asset: "BTC-PERP", Kind: models.ActionKindDecrease,
		Side: models.SideLong, Notional: 5000,
	}, 45_000, 0, now)

	if pm.RealizedPnlToday() >= 0 {
		t.Fatal("expected realized loss before day roll")
	}

	// Следующий день UTC: счётчики сбрасываются
	nextDay := time.Date(2024, 3, 11, 0, 0, 1, 0, time.UTC)
	pm.ApplyFundingRollover("BTC-PERP", 0, nextDay)

	if pm.RealizedPnlToday() != 0 {
		t.Errorf("realized pnl after day roll = %v, want 0", pm.RealizedPnlToday())
	}
}

func TestReduceWithoutPositionFails(t *testing.T) {
	pm := newTestPositionManager()
	_, err := pm.Apply(models.ApprovedAction{
		Asset: "BTC-PERP", Kind: models.ActionKindDecrease,
		Side: models.SideLong, Notional: 1000,
	}, 50_000, 0, time.Now())
	if err == nil {
		t.Error("reduce without position must fail")
	}
}
