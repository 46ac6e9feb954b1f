package risk

import "math"

// PlannedRisk is the loss if the stop is hit with units open.
func PlannedRisk(units, entry, stop float64) float64 {
	return units * math.Abs(entry-stop)
}

func RR(entry, stop, target float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 || target == 0 {
		return 0
	}
	return math.Abs(target-entry) / risk
}

func RiskPct(planned, capital float64) float64 {
	if capital <= 0 {
		return math.Inf(1)
	}
	return planned / capital
}
