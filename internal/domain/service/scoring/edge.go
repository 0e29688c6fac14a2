package scoring

import "boxradar/internal/domain/value"

// Params несёт настраиваемые константы насыщения отображения балла.
type Params struct {
	Weights Weights

	// Очки за процент отклонения в ml-отображении; 1.67 ставит -30%
	// (недооценён) в 100 и +30% (переоценён) в 0.
	DeviationSlope float64

	PointsPerStation         float64
	CommercialDensityCeiling float64

	YieldPoorPct      float64
	YieldExcellentPct float64
}

// Веса пяти компонентов должны в сумме давать 1.0.
type Weights struct {
	PriceDeviation float64
	Yield          float64
	Storage        float64
	Demand         float64
	Liquidity      float64
}

func DefaultParams() Params {
	return Params{
		Weights: Weights{
			PriceDeviation: 0.30,
			Yield:          0.25,
			Storage:        0.20,
			Demand:         0.15,
			Liquidity:      0.10,
		},
		DeviationSlope:           1.67,
		PointsPerStation:         12,
		CommercialDensityCeiling: 30,
		YieldPoorPct:             2,
		YieldExcellentPct:        12,
	}
}

// Components — пять взвешенных слагаемых, каждое в хранимой шкале 0-100.
// Nil-компонент неизвестен и исключается с перенормировкой его веса.
type Components struct {
	PriceDeviation *float64
	Yield          *float64
	Storage        *float64
	Demand         *float64
	Liquidity      *float64
}

type Result struct {
	Score   *float64
	Partial bool
}

// CombineEdgeScore применяет фиксированное взвешивание к доступным
// компонентам. Неизвестные не вносят ноль: оставшиеся веса перенормируются
// к единице, а результат помечается частичным. Все неизвестны — балл
// неизвестен.
func CombineEdgeScore(w Weights, c Components) Result {
	terms := []struct {
		weight float64
		score  *float64
	}{
		{w.PriceDeviation, c.PriceDeviation},
		{w.Yield, c.Yield},
		{w.Storage, c.Storage},
		{w.Demand, c.Demand},
		{w.Liquidity, c.Liquidity},
	}

	var weighted, totalWeight float64
	missing := 0

	for _, t := range terms {
		if t.score == nil {
			missing++
			continue
		}

		weighted += t.weight * (*t.score / 100)
		totalWeight += t.weight
	}

	if totalWeight == 0 {
		return Result{Score: nil, Partial: false}
	}

	score := round2(clamp(weighted/totalWeight*100, 0, 100))

	return Result{Score: &score, Partial: missing > 0}
}

// PriceDeviationScore переводит ml-отклонение цены (положительное =
// переоценён) в балл 0-100 через насыщающееся линейное отображение с
// центром 0% = 50.
func PriceDeviationScore(deviationPct *float64, slope float64) *float64 {
	if deviationPct == nil {
		return nil
	}

	return ptr(round2(clamp(50-*deviationPct*slope, 0, 100)))
}

// YieldScore интерполирует валовую доходность между плохой и отличной
// опорными доходностями.
func YieldScore(grossYield *float64, poorPct, excellentPct float64) *float64 {
	if grossYield == nil || excellentPct <= poorPct {
		return nil
	}

	return ptr(round2(clamp((*grossYield-poorPct)/(excellentPct-poorPct)*100, 0, 100)))
}

// StorageScore — потенциал вертикального хранения плюс фиксированные бонусы
// за электричество (свет, стеллажи) и боксы полной высоты.
func StorageScore(verticalPotential float64, tags value.TagSet) float64 {
	score := verticalPotential
	if tags.Has("électricité") {
		score += 10
	}
	if tags.Has("hauteur 2.5m") {
		score += 10
	}

	return round2(clamp(score, 0, 100))
}

// DemandScore усредняет транспортный балл и нормированную коммерческую
// плотность по тем из двух сигналов, что доступны.
func DemandScore(transportScore, commercialDensity *float64, densityCeiling float64) *float64 {
	var sum float64
	n := 0

	if transportScore != nil {
		sum += clamp(*transportScore, 0, 100)
		n++
	}

	if commercialDensity != nil && densityCeiling > 0 {
		sum += clamp(*commercialDensity/densityCeiling*100, 0, 100)
		n++
	}

	if n == 0 {
		return nil
	}

	return ptr(round2(sum / float64(n)))
}
