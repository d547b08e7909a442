package estimator

import (
	"math"
	"sort"
)

const twoPi = 2 * math.Pi

// wrapPhase maps p into [0, 2π).
func wrapPhase(p float64) float64 {
	r := floorMod(p, twoPi)
	if r >= twoPi {
		r = 0
	}
	return r
}

// floorMod returns x mod m with the sign of m.
func floorMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r != 0 && (r < 0) != (m < 0) {
		r += m
	}
	return r
}

// median returns the middle value of values, averaging the two central
// values for even lengths. values is not modified.
func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// withinBand keeps values strictly inside (mean-std, mean+std).
// When nothing qualifies (a constant sequence) all values are kept.
func withinBand(values []float64, mean, std float64) []float64 {
	kept := make([]float64, 0, len(values))
	for _, v := range values {
		if v > mean-std && v < mean+std {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return values
	}
	return kept
}

// unwrap removes 2π jumps between consecutive phase samples.
func unwrap(phase []float64) []float64 {
	out := make([]float64, len(phase))
	if len(phase) == 0 {
		return out
	}
	out[0] = phase[0]
	var correction float64
	for i := 1; i < len(phase); i++ {
		d := phase[i] - phase[i-1]
		dm := floorMod(d+math.Pi, twoPi) - math.Pi
		if dm == -math.Pi && d > 0 {
			dm = math.Pi
		}
		if math.Abs(d) >= math.Pi {
			correction += dm - d
		}
		out[i] = phase[i] + correction
	}
	return out
}

// nearestIndex returns the first index of values closest to target.
func nearestIndex(values []float64, target float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, v := range values {
		if d := math.Abs(v - target); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
