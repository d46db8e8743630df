// Package booze оценивает промилле по истории покупок участника.
package booze

import (
	"sort"
	"time"

	"kiosk/internal/domain"
)

const (
	// плотность чистого спирта, г/мл
	alcoholDensityGramsPerML = 0.789
	// условная масса тела, кг
	bodyWeightKg = 80.0
	// коэффициенты распределения по воде тела
	maleDistributionRatio   = 0.7
	femaleDistributionRatio = 0.6
	// линейное выведение, промилле в час
	eliminationPerMillePerHour = 0.15

	ballmerPeakCenter = 1.337
	ballmerPeakWindow = 0.05
)

// Drink одна покупка с содержанием чистого алкоголя в мл
type Drink struct {
	AlcoholML float64
	Timestamp time.Time
}

// Promille считает оценку промилле на момент now. Между соседними напитками
// (и от последнего до now) уровень линейно падает и на каждом шаге
// ограничивается нулём снизу. Безалкогольные покупки не учитываются.
func Promille(gender domain.Gender, drinks []Drink, now time.Time) float64 {
	ratio := maleDistributionRatio
	if gender == domain.GenderFemale {
		ratio = femaleDistributionRatio
	}

	active := make([]Drink, 0, len(drinks))
	for _, d := range drinks {
		if d.AlcoholML > 0 && !d.Timestamp.After(now) {
			active = append(active, d)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].Timestamp.Before(active[j].Timestamp)
	})

	promille := 0.0
	var last time.Time
	for i, d := range active {
		if i > 0 {
			promille = eliminate(promille, last, d.Timestamp)
		}
		grams := d.AlcoholML * alcoholDensityGramsPerML
		promille += grams / (bodyWeightKg * ratio)
		last = d.Timestamp
	}
	if len(active) > 0 {
		promille = eliminate(promille, last, now)
	}
	return promille
}

func eliminate(promille float64, from, to time.Time) float64 {
	hours := to.Sub(from).Hours()
	promille -= eliminationPerMillePerHour * hours
	if promille < 0 {
		return 0
	}
	return promille
}

// BallmerPeak сообщает, находится ли уровень в окне 1.337±0.05, и обратный
// отсчёт: внутри окна — время до выхода через нижнюю границу, выше окна —
// время до входа в него. Ниже окна отсчёт не имеет смысла и равен нулю.
func BallmerPeak(promille float64) (peaking bool, minutes, seconds int) {
	upper := ballmerPeakCenter + ballmerPeakWindow
	lower := ballmerPeakCenter - ballmerPeakWindow
	switch {
	case promille > upper:
		secs := countdownSeconds(promille - upper)
		return false, secs / 60, secs % 60
	case promille >= lower:
		secs := countdownSeconds(promille - lower)
		return true, secs / 60, secs % 60
	default:
		return false, 0, 0
	}
}

// остаток секунд усекается, не округляется
func countdownSeconds(perMille float64) int {
	return int(perMille / eliminationPerMillePerHour * 3600)
}
