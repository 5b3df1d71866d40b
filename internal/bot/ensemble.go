package bot

import (
	"fmt"
	"math"
	"time"

	"perpbot/internal/models"
)

// Ensemble объединяет сигналы стратегий в одно решение по активу.
//
// Методы диспетчеризуются явным switch по тегу, решение создаётся
// заново каждый цикл и не мутируется. Нормализация strength одинакова
// для всех активов, чтобы значения были сравнимы между рынками.
type Ensemble struct {
	// Method - метод комбинирования: voting, weighted, confidence, best
	Method string
	// MinConfidence - порог для voting (сигналы ниже исключаются из подсчёта)
	MinConfidence float64
	// NeutralBand - |strength| ниже порога даёт HOLD для weighted
	NeutralBand float64
}

// NewEnsemble создаёт комбинатор с указанным методом
func NewEnsemble(method string, minConfidence, neutralBand float64) (*Ensemble, error) {
	switch method {
	case models.MethodVoting, models.MethodWeighted, models.MethodConfidence, models.MethodBestPerformer:
	default:
		return nil, fmt.Errorf("unknown ensemble method: %q", method)
	}
	return &Ensemble{
		Method:        method,
		MinConfidence: minConfidence,
		NeutralBand:   neutralBand,
	}, nil
}

// Combine строит решение из набора сигналов одного актива.
// Пустой набор даёт HOLD со strength 0.
func (e *Ensemble) Combine(asset string, signals []models.StrategySignal, now time.Time) models.EnsembleDecision {
	decision := e.combine(asset, signals, now)
	RecordDecision(decision.Method, decision.Action)
	return decision
}

func (e *Ensemble) combine(asset string, signals []models.StrategySignal, now time.Time) models.EnsembleDecision {
	if len(signals) == 0 {
		return holdDecision(asset, e.Method, now)
	}

	switch e.Method {
	case models.MethodVoting:
		return e.combineVoting(asset, signals, now)
	case models.MethodWeighted:
		return e.combineWeighted(asset, signals, now)
	case models.MethodConfidence:
		return e.combineConfidence(asset, signals, now)
	case models.MethodBestPerformer:
		return e.combineBestPerformer(asset, signals, now)
	default:
		return holdDecision(asset, e.Method, now)
	}
}

// combineVoting - большинство голосов среди сигналов с confidence >= MinConfidence.
// Ничья BUY/SELL даёт HOLD. strength = winning_count / total_counted,
// знак по направлению победителя.
func (e *Ensemble) combineVoting(asset string, signals []models.StrategySignal, now time.Time) models.EnsembleDecision {
	votes := map[string]int{}
	var counted int
	var contributing []string

	for _, sig := range signals {
		if sig.Confidence < e.MinConfidence {
			continue
		}
		votes[sig.Action]++
		counted++
		contributing = append(contributing, sig.StrategyID)
	}

	if counted == 0 {
		return holdDecision(asset, models.MethodVoting, now)
	}

	action := models.ActionHold
	winning := votes[models.ActionHold]
	if votes[models.ActionBuy] > winning {
		action = models.ActionBuy
		winning = votes[models.ActionBuy]
	}
	if votes[models.ActionSell] > winning {
		action = models.ActionSell
		winning = votes[models.ActionSell]
	}
	// Ничья между BUY и SELL - направления нет
	if votes[models.ActionBuy] == votes[models.ActionSell] && votes[models.ActionBuy] >= winning {
		action = models.ActionHold
		winning = votes[models.ActionBuy]
	}

	strength := float64(winning) / float64(counted)
	switch action {
	case models.ActionSell:
		strength = -strength
	case models.ActionHold:
		strength = 0
	}

	return models.EnsembleDecision{
		Asset:        asset,
		Action:       action,
		Strength:     strength,
		Method:       models.MethodVoting,
		Contributing: contributing,
		Timestamp:    now,
	}
}

// combineWeighted - взвешенная сумма направлений.
//
//	score_i  = direction_i × confidence_i × weight_i × (accuracy_i или 1.0)
//	strength = Σscore / Σ(weight_i × (accuracy_i или 1.0))
//
// Фильтра по confidence нет: слабые сигналы вносят малый вклад сами.
// |strength| < NeutralBand трактуется как отсутствие консенсуса.
func (e *Ensemble) combineWeighted(asset string, signals []models.StrategySignal, now time.Time) models.EnsembleDecision {
	var sumScore, sumWeight float64
	contributing := make([]string, 0, len(signals))

	for _, sig := range signals {
		w := sig.Weight * sig.AccuracyOr(1.0)
		sumScore += sig.Direction() * sig.Confidence * w
		sumWeight += w
		contributing = append(contributing, sig.StrategyID)
	}

	if sumWeight == 0 {
		return holdDecision(asset, models.MethodWeighted, now)
	}

	strength := sumScore / sumWeight

	action := models.ActionHold
	switch {
	case strength >= e.NeutralBand:
		action = models.ActionBuy
	case strength <= -e.NeutralBand:
		action = models.ActionSell
	default:
		strength = 0
	}

	return models.EnsembleDecision{
		Asset:        asset,
		Action:       action,
		Strength:     strength,
		Method:       models.MethodWeighted,
		Contributing: contributing,
		Timestamp:    now,
	}
}

// combineConfidence - единственный сигнал с максимальной confidence.
// Ничья разрешается наименьшим strategy_id (детерминизм между запусками).
func (e *Ensemble) combineConfidence(asset string, signals []models.StrategySignal, now time.Time) models.EnsembleDecision {
	best := signals[0]
	for _, sig := range signals[1:] {
		if sig.Confidence > best.Confidence ||
			(sig.Confidence == best.Confidence && sig.StrategyID < best.StrategyID) {
			best = sig
		}
	}

	return models.EnsembleDecision{
		Asset:        asset,
		Action:       best.Action,
		Strength:     best.Direction() * best.Confidence,
		Method:       models.MethodConfidence,
		Contributing: []string{best.StrategyID},
		Timestamp:    now,
	}
}

// combineBestPerformer - сигнал стратегии с наибольшей исторической
// точностью. Без данных о точности метод вырождается в Voting.
func (e *Ensemble) combineBestPerformer(asset string, signals []models.StrategySignal, now time.Time) models.EnsembleDecision {
	var best *models.StrategySignal
	bestAcc := math.Inf(-1)

	for i := range signals {
		sig := &signals[i]
		if sig.Accuracy == nil {
			continue
		}
		if *sig.Accuracy > bestAcc ||
			(*sig.Accuracy == bestAcc && best != nil && sig.StrategyID < best.StrategyID) {
			best = sig
			bestAcc = *sig.Accuracy
		}
	}

	if best == nil {
		d := e.combineVoting(asset, signals, now)
		d.Method = models.MethodBestPerformer
		return d
	}

	return models.EnsembleDecision{
		Asset:        asset,
		Action:       best.Action,
		Strength:     best.Direction() * best.Confidence,
		Method:       models.MethodBestPerformer,
		Contributing: []string{best.StrategyID},
		Timestamp:    now,
	}
}

func holdDecision(asset, method string, now time.Time) models.EnsembleDecision {
	return models.EnsembleDecision{
		Asset:     asset,
		Action:    models.ActionHold,
		Strength:  0,
		Method:    method,
		Timestamp: now,
	}
}
