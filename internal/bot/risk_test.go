package bot

import (
	"math"
	"testing"
	"time"

	"perpbot/internal/config"
	"perpbot/internal/models"
	"perpbot/pkg/utils"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxAssetExposurePct:    40,
		MaxClusterExposurePct:  60,
		MinFreeCollateralPct:   20,
		ReduceCollateralPct:    10,
		EmergencyCollateralPct: 5,
		MaxDailyLossPct:        4.5,
		BasePositionPct:        5,
		MaxSinglePositionPct:   20,
		RecommendedLeverage:    3,
		MaxDailyFundingCostPct: 2,
		MaintenanceMarginPct:   0.5,
		Clusters: map[string]string{
			"BTC-PERP": "majors",
			"ETH-PERP": "majors",
		},
		Tiers: map[string]models.AssetTier{
			"BTC-PERP": {ID: "majors", MaxLeverage: 10, MaxPositionNotional: 250_000, MaxHoldTime: 72 * time.Hour, FundingPeriod: 8 * time.Hour},
			"ETH-PERP": {ID: "majors", MaxLeverage: 10, MaxPositionNotional: 250_000, MaxHoldTime: 72 * time.Hour, FundingPeriod: 8 * time.Hour},
		},
	}
}

func testRiskState() models.RiskState {
	return models.RiskState{
		FreeCollateralPct:  80,
		AssetExposurePct:   map[string]float64{},
		ClusterExposurePct: map[string]float64{},
		UpdatedAt:          time.Now(),
	}
}

func testAccount(equity float64) models.AccountSnapshot {
	return models.AccountSnapshot{
		Equity:         equity,
		FreeCollateral: equity * 0.8,
		Timestamp:      time.Now(),
	}
}

func buyDecision(strength float64) models.EnsembleDecision {
	return models.EnsembleDecision{
		Asset:     "BTC-PERP",
		Action:    models.ActionBuy,
		Strength:  strength,
		Method:    models.MethodWeighted,
		Timestamp: time.Now(),
	}
}

// ============================================================
// Sizing
// ============================================================

func TestSizing(t *testing.T) {
	rg := NewRiskGovernor(testRiskConfig(), utils.NopLogger(), nil)

	// 5% × 100000 × 0.45 = 2250
	notional, leverage := rg.Sizing("BTC-PERP", 0.45, 100_000)
	if math.Abs(notional-2250) > 1e-9 {
		t.Errorf("notional = %v, want 2250", notional)
	}
	// min(recommended 3, tier max 10) = 3
	if leverage != 3 {
		t.Errorf("leverage = %v, want 3", leverage)
	}
}

func TestSizingClampedBySingleCap(t *testing.T) {
	cfg := testRiskConfig()
	cfg.BasePositionPct = 50 // базовый размер больше потолка
	rg := NewRiskGovernor(cfg, utils.NopLogger(), nil)

	notional, _ := rg.Sizing("BTC-PERP", 1.0, 100_000)
	// clamp до MaxSinglePositionPct 20% = 20000
	if math.Abs(notional-20_000) > 1e-9 {
		t.Errorf("notional = %v, want 20000", notional)
	}
}

func TestSizingClampedByTierNotional(t *testing.T) {
	cfg := testRiskConfig()
	tier := cfg.Tiers["BTC-PERP"]
	tier.MaxPositionNotional = 1000
	cfg.Tiers["BTC-PERP"] = tier
	rg := NewRiskGovernor(cfg, utils.NopLogger(), nil)

	notional, _ := rg.Sizing("BTC-PERP", 1.0, 100_000)
	if notional != 1000 {
		t.Errorf("notional = %v, want tier cap 1000", notional)
	}
}

func TestSizingUnknownAsset(t *testing.T) {
	rg := NewRiskGovernor(testRiskConfig(), utils.NopLogger(), nil)
	notional, leverage := rg.Sizing("DOGE-PERP", 1.0, 100_000)
	if notional != 0 || leverage != 0 {
		t.Errorf("unknown asset must size to zero, got %v/%v", notional, leverage)
	}
}

// ============================================================
// Review
// ============================================================

func TestReviewApprovesOpen(t *testing.T) {
	rg := NewRiskGovernor(testRiskConfig(), utils.NopLogger(), nil)

	action := rg.Review(buyDecision(0.5), nil, testRiskState(), testAccount(100_000))
	if action.Kind != models.ActionKindOpen {
		t.Fatalf("kind = %s, want open (reason %q)", action.Kind, action.Reason)
	}
	if action.Side != models.SideLong {
		t.Errorf("side = %s, want long", action.Side)
	}
	if math.Abs(action.Notional-2500) > 1e-9 {
		t.Errorf("notional = %v, want 2500", action.Notional)
	}
}

func TestReviewHoldIsNoop(t *testing.T) {
	rg := NewRiskGovernor(testRiskConfig(), utils.NopLogger(), nil)

	d := buyDecision(0)
	d.Action = models.ActionHold
	action := rg.Review(d, nil, testRiskState(), testAccount(100_000))
	if action.Approved() {
		t.Errorf("HOLD must be noop, got %s", action.Kind)
	}
}

func TestReviewBlocksAssetExposure(t *testing.T) {
	cfg := testRiskConfig()
	cfg.MaxAssetExposurePct = 3 // желаемые 5% превысят лимит
	rg := NewRiskGovernor(cfg, utils.NopLogger(), nil)

	action := rg.Review(buyDecision(1.0), nil, testRiskState(), testAccount(100_000))
	if action.Approved() {
		t.Fatal("expected block")
	}
	if action.Reason != BlockAssetExposure {
		t.Errorf("reason = %s, want %s", action.Reason, BlockAssetExposure)
	}
}

func TestReviewBlocksClusterExposure(t *testing.T) {
	rg := NewRiskGovernor(testRiskConfig(), utils.NopLogger(), nil)

	rs := testRiskState()
	rs.AssetExposurePct["ETH-PERP"] = 58
	rs.ClusterExposurePct["majors"] = 58

	action := rg.Review(buyDecision(1.0), nil, rs, testAccount(100_000))
	if action.Reason != BlockClusterExposure {
		t.Errorf("reason = %s, want %s", action.Reason, BlockClusterExposure)
	}
}

func TestReviewBlocksFreeCollateral(t *testing.T) {
	rg := NewRiskGovernor(testRiskConfig(), utils.NopLogger(), nil)

	acct := testAccount(100_000)
	acct.FreeCollateral = 21_000 // 21%, маржа входа опустит ниже 20%

	action := rg.Review(buyDecision(1.0), nil, testRiskState(), acct)
	if action.Reason != BlockFreeCollateral {
		t.Errorf("reason = %s, want %s", action.Reason, BlockFreeCollateral)
	}
}

func TestReviewKillSwitchBlocksEntries(t *testing.T) {
	var events []models.Notification
	rg := NewRiskGovernor(testRiskConfig(), utils.NopLogger(), func(n models.Notification) {
		events = append(events, n)
	})

	rs := testRiskState()
	rs.DailyRealizedLossPct = 5.0

	action := rg.Review(buyDecision(0.5), nil, rs, testAccount(100_000))
	if action.Reason != BlockKillSwitch {
		t.Fatalf("reason = %s, want %s", action.Reason, BlockKillSwitch)
	}

	// Событие kill-switch дедуплицируется в пределах дня
	rg.Review(buyDecision(0.5), nil, rs, testAccount(100_000))
	var killEvents int
	for _, n := range events {
		if n.Type == models.NotificationTypeKillSwitch {
			killEvents++
		}
	}
	if killEvents != 1 {
		t.Errorf("kill switch events = %d, want 1", killEvents)
	}
}

func TestKillSwitchStaysLatchedForDay(t *testing.T) {
	rg := NewRiskGovernor(testRiskConfig(), utils.NopLogger(), nil)

	rs := testRiskState()
	rs.DailyRealizedLossPct = 5.0
	if action := rg.Review(buyDecision(0.5), nil, rs, testAccount(100_000)); action.Reason != BlockKillSwitch {
		t.Fatalf("reason = %s, want %s", action.Reason, BlockKillSwitch)
	}

	// Прибыльные выходы отыграли убыток ниже лимита - входы всё равно
	// заблокированы до конца торгового дня
	rs.DailyRealizedLossPct = 3.0
	action := rg.Review(buyDecision(0.5), nil, rs, testAccount(100_000))
	if action.Approved() {
		t.Fatal("entries must stay blocked for the rest of the day")
	}
	if action.Reason != BlockKillSwitch {
		t.Errorf("reason = %s, want %s", action.Reason, BlockKillSwitch)
	}

	rs.DailyRealizedLossPct = 0
	if action := rg.Review(buyDecision(0.5), nil, rs, testAccount(100_000)); action.Approved() {
		t.Error("fully recovered loss must not unlatch the kill-switch")
	}
}

func TestReviewDecreaseNeverBlocked(t *testing.T) {
	cfg := testRiskConfig()
	rg := NewRiskGovernor(cfg, utils.NopLogger(), nil)

	// Позиция больше желаемого размера - действие decrease
	pos := &models.Position{Asset: "BTC-PERP", Side: models.SideLong, Notional: 10_000, Leverage: 3}
	rs := testRiskState()
	rs.DailyRealizedLossPct = 99 // kill-switch активен

	action := rg.Review(buyDecision(0.1), pos, rs, testAccount(100_000))
	if action.Kind != models.ActionKindDecrease {
		t.Fatalf("kind = %s, want decrease (reason %q)", action.Kind, action.Reason)
	}
	if math.Abs(action.Notional-9500) > 1e-9 {
		t.Errorf("decrease notional = %v, want 9500", action.Notional)
	}
}

func TestReviewFlipOppositeSide(t *testing.T) {
	rg := NewRiskGovernor(testRiskConfig(), utils.NopLogger(), nil)

	pos := &models.Position{Asset: "BTC-PERP", Side: models.SideShort, Notional: 3000, Leverage: 3}
	action := rg.Review(buyDecision(0.5), pos, testRiskState(), testAccount(100_000))
	if action.Kind != models.ActionKindOpen {
		t.Fatalf("kind = %s, want open (flip)", action.Kind)
	}
	if action.Side != models.SideLong {
		t.Errorf("side = %s, want long", action.Side)
	}
}

func TestReviewHaltedAsset(t *testing.T) {
	rg := NewRiskGovernor(testRiskConfig(), utils.NopLogger(), nil)
	rg.HaltAsset("BTC-PERP", "liquidation distance computation failed")

	action := rg.Review(buyDecision(0.5), nil, testRiskState(), testAccount(100_000))
	if action.Reason != BlockAssetHalted {
		t.Errorf("reason = %s, want %s", action.Reason, BlockAssetHalted)
	}

	rg.ResetAsset("BTC-PERP")
	action = rg.Review(buyDecision(0.5), nil, testRiskState(), testAccount(100_000))
	if !action.Approved() {
		t.Errorf("after reset expected approval, got reason %q", action.Reason)
	}
}

// ============================================================
// Ликвидационная лестница
// ============================================================

func TestLadderEdgeTriggered(t *testing.T) {
	rg := NewRiskGovernor(testRiskConfig(), utils.NopLogger(), nil)

	positions := []models.Position{
		{Asset: "BTC-PERP", Side: models.SideLong, Notional: 30_000, Leverage: 3},
		{Asset: "ETH-PERP", Side: models.SideShort, Notional: 10_000, Leverage: 5},
	}

	// 12% - полоса блокировки входов, принудительных действий нет
	rs := testRiskState()
	rs.FreeCollateralPct = 12
	if actions := rg.EvaluateLadder(rs, positions); len(actions) != 0 {
		t.Fatalf("entry band must not force actions, got %d", len(actions))
	}

	// 8% - пересечение полосы reduce: одно сокращение крупнейшей позиции
	rs.FreeCollateralPct = 8
	actions := rg.EvaluateLadder(rs, positions)
	if len(actions) != 1 {
		t.Fatalf("reduce band actions = %d, want 1", len(actions))
	}
	if actions[0].Kind != models.ActionKindDecrease || actions[0].Asset != "BTC-PERP" {
		t.Errorf("expected decrease of BTC-PERP, got %s %s", actions[0].Kind, actions[0].Asset)
	}
	if math.Abs(actions[0].Notional-15_000) > 1e-9 {
		t.Errorf("reduce notional = %v, want half of 30000", actions[0].Notional)
	}

	// Остаёмся на 8% - повторного сокращения нет (идемпотентность)
	if actions := rg.EvaluateLadder(rs, positions); len(actions) != 0 {
		t.Fatalf("same band must not re-fire, got %d actions", len(actions))
	}

	// Восстановление взводит лестницу заново
	rs.FreeCollateralPct = 30
	rg.EvaluateLadder(rs, positions)
	rs.FreeCollateralPct = 8
	if actions := rg.EvaluateLadder(rs, positions); len(actions) != 1 {
		t.Fatalf("after recovery crossing must fire again, got %d actions", len(actions))
	}
}

func TestLadderEmergencyClosesAll(t *testing.T) {
	rg := NewRiskGovernor(testRiskConfig(), utils.NopLogger(), nil)

	positions := []models.Position{
		{Asset: "BTC-PERP", Side: models.SideLong, Notional: 30_000, Leverage: 3},
		{Asset: "ETH-PERP", Side: models.SideShort, Notional: 10_000, Leverage: 5},
	}

	rs := testRiskState()
	rs.FreeCollateralPct = 4
	actions := rg.EvaluateLadder(rs, positions)
	if len(actions) != 2 {
		t.Fatalf("emergency actions = %d, want 2", len(actions))
	}
	for _, a := range actions {
		if a.Kind != models.ActionKindClose {
			t.Errorf("emergency action kind = %s, want close", a.Kind)
		}
	}
}

func TestAssessLiquidationRisk(t *testing.T) {
	rg := NewRiskGovernor(testRiskConfig(), utils.NopLogger(), nil)

	rg.AssessLiquidationRisk([]models.Position{
		{Asset: "BTC-PERP", Side: models.SideLong, Notional: 30_000, Leverage: 10},
	})
	if rg.IsHalted("BTC-PERP") {
		t.Fatal("valid position must not halt the asset")
	}

	// Несчитаемая дистанция (испорченное плечо в книге) фатальна
	// для актива
	rg.AssessLiquidationRisk([]models.Position{
		{Asset: "ETH-PERP", Side: models.SideShort, Notional: 10_000, Leverage: 0},
	})
	if !rg.IsHalted("ETH-PERP") {
		t.Fatal("uncomputable liquidation distance must halt the asset")
	}
	if rg.IsHalted("BTC-PERP") {
		t.Error("halt must be scoped to the broken asset")
	}
}

// ============================================================
// Funding-cost governor
// ============================================================

func TestCheckFundingCost(t *testing.T) {
	rg := NewRiskGovernor(testRiskConfig(), utils.NopLogger(), nil)

	pos := models.Position{
		Asset:            "BTC-PERP",
		Side:             models.SideShort,
		Notional:         50_000,
		Leverage:         3,
		FundingCostToday: 1500, // 1.5% от 100k - в пределах лимита 2%
	}

	if action := rg.CheckFundingCost(pos, 100_000); action != nil {
		t.Errorf("cost within limit must not close, got %+v", action)
	}

	pos.FundingCostToday = 2500 // 2.5% > 2%
	action := rg.CheckFundingCost(pos, 100_000)
	if action == nil {
		t.Fatal("expected forced close")
	}
	if action.Kind != models.ActionKindClose || action.Notional != pos.Notional {
		t.Errorf("expected full close, got %+v", action)
	}
}
