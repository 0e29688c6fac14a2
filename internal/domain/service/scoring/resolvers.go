// Package scoring содержит резолверы признаков и калькулятор edge score.
// Каждый резолвер тотален: отсутствующий или кривой вход даёт nil
// («неизвестно»), но никогда не ошибку.
package scoring

import (
	"math"

	"boxradar/internal/domain/entity"
	"boxradar/internal/domain/value"
)

const (
	rentLowFactor  = 0.85
	rentHighFactor = 1.15

	// Премия аренды бокса под хранение к голому паркингу; применяется
	// целиком при потенциале вертикального хранения 100.
	storageYieldPremium = 0.30
)

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func ptr(v float64) *float64 {
	return &v
}

// TransportScore переводит число остановок гео-выборки в балл 0-100 с
// насыщением на настроенном потолке очков за станцию. Nil-выборка (нет
// координат или опрос деградировал) — неизвестно.
func TransportScore(sample *value.GeoSample, pointsPerStation float64) *float64 {
	if sample == nil {
		return nil
	}

	return ptr(round2(clamp(float64(sample.Stations)*pointsPerStation, 0, 100)))
}

// AccessibilityScore сводит теги доступности объявления к фиксированным
// вкладам, с небольшим бонусом за хорошо задокументированные объявления.
func AccessibilityScore(tags value.TagSet, photosCount int) float64 {
	score := float64(tags.CountHighAccess()) * 20
	if photosCount >= 3 {
		score += 10
	}

	return round2(clamp(score, 0, 100))
}

// LiquidityScore монотонно не убывает по числу фото, богатству тегов
// безопасности и площади.
func LiquidityScore(photosCount int, tags value.TagSet, surface *float64) float64 {
	score := float64(photosCount)*5 + float64(tags.CountSecurity())*8
	if surface != nil && *surface >= 15 {
		score += 20
	}

	return round2(clamp(score, 0, 100))
}

// VerticalStoragePotential ступенчатый, не непрерывный: боксу нужны и
// площадь (>= 12 м²), и запас высоты, чтобы стеллажировать в объёме.
func VerticalStoragePotential(surface *float64, tags value.TagSet) float64 {
	hasHeight := tags.HasHeightTag()
	bigEnough := surface != nil && *surface >= 12

	switch {
	case hasHeight && bigEnough:
		return 80
	case hasHeight || bigEnough:
		return 45
	default:
		return 20
	}
}

// PricePerSqm неизвестна, когда площадь отсутствует или неположительна.
func PricePerSqm(price float64, surface *float64) *float64 {
	if surface == nil || *surface <= 0 {
		return nil
	}

	return ptr(round2(price / *surface))
}

// RentEstimate выводит вилку месячной аренды из средней аренды за м² по
// зоне. Неизвестна без рыночного агрегата или пригодной площади.
func RentEstimate(agg *entity.MarketAggregate, surface *float64) (low, high *float64) {
	if agg == nil || surface == nil || *surface <= 0 {
		return nil, nil
	}

	base := agg.AvgRentPerSqm * *surface

	return ptr(round2(base * rentLowFactor)), ptr(round2(base * rentHighFactor))
}

// GrossYield годовой процент от середины вилки аренды к запрошенной цене.
func GrossYield(rentLow, rentHigh *float64, price float64) *float64 {
	if rentLow == nil || rentHigh == nil || price <= 0 {
		return nil
	}

	mid := (*rentLow + *rentHigh) / 2

	return ptr(round3(mid * 12 / price * 100))
}

// StorageYieldEstimate взвешивает валовую доходность потенциалом
// вертикального хранения: полностью пригодный бокс сдаётся с премией.
func StorageYieldEstimate(grossYield *float64, verticalPotential float64) *float64 {
	if grossYield == nil {
		return nil
	}

	return ptr(round3(*grossYield * (1 + storageYieldPremium*verticalPotential/100)))
}
