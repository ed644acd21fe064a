package scoring

import "math"

// Raw-score tier boundaries for display normalization. Scores map linearly
// inside each tier; above the top boundary a logarithmic taper approaches
// the 0-1000 cap so a single outlier format cannot dominate the visible
// scale. Presentation-only: policy decisions always use raw scores.
const (
	tierBasicRaw = 100
	tierGoodRaw  = 300
	tierGreatRaw = 600
	tierBestRaw  = 1000

	normalizedMax = 1000
	tierSpan      = 200 // normalized width of each tier
)

// NormalizeScore maps a raw score into the 0-1000 display scale.
// -Inf maps to 0, +Inf to 1000.
func NormalizeScore(raw float64) int {
	switch {
	case math.IsInf(raw, -1):
		return 0
	case math.IsInf(raw, 1):
		return normalizedMax
	case raw <= 0:
		return 0
	case raw < tierBasicRaw:
		return interpolate(raw, 0, tierBasicRaw, 0)
	case raw < tierGoodRaw:
		return interpolate(raw, tierBasicRaw, tierGoodRaw, tierSpan)
	case raw < tierGreatRaw:
		return interpolate(raw, tierGoodRaw, tierGreatRaw, 2*tierSpan)
	case raw < tierBestRaw:
		return interpolate(raw, tierGreatRaw, tierBestRaw, 3*tierSpan)
	default:
		// Log taper above the top boundary: 1000 raw maps to 800 and the
		// curve approaches 1000 asymptotically.
		taper := 1 - 1/(1+math.Log10(raw/tierBestRaw))
		n := int(math.Round(4*tierSpan + tierSpan*taper))
		if n > normalizedMax {
			n = normalizedMax
		}
		return n
	}
}

// interpolate maps raw linearly from [lo,hi) onto [base, base+tierSpan).
func interpolate(raw, lo, hi float64, base int) int {
	frac := (raw - lo) / (hi - lo)
	return base + int(math.Round(frac*tierSpan))
}
