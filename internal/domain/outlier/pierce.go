package outlier

import "math"

// Pierce applies an iterative variant of Peirce's criterion: repeatedly
// remove the most extreme observation while its z-score exceeds a critical
// value approximated from the remaining sample size, then report everything
// removed.
type Pierce struct{}

func (Pierce) Name() string { return StrategyPierce }

// pierceCritical approximates the criterion's lookup table. Fewer than
// three points can never produce an outlier.
func pierceCritical(n int) float64 {
	if n < 3 {
		return math.Inf(1)
	}
	return 3 + 1.1*math.Log(float64(n))
}

func (Pierce) Flag(obs []Observation) []Observation {
	remaining := make([]int, len(obs))
	for i := range obs {
		remaining[i] = i
	}

	for len(remaining) > 2 {
		values := make([]float64, len(remaining))
		for i, idx := range remaining {
			values[i] = obs[idx].Value
		}
		m := mean(values)
		std := sampleStd(values)
		if std == 0 {
			break
		}

		maxZ := 0.0
		for _, v := range values {
			if z := math.Abs(v-m) / std; z > maxZ {
				maxZ = z
			}
		}
		if maxZ <= pierceCritical(len(remaining)) {
			break
		}

		// Remove every point attaining the extreme z-score.
		kept := remaining[:0]
		for i, idx := range remaining {
			if math.Abs(values[i]-m)/std != maxZ {
				kept = append(kept, idx)
			}
		}
		remaining = kept
	}

	survivors := make(map[int]bool, len(remaining))
	for _, idx := range remaining {
		survivors[idx] = true
	}
	var flagged []Observation
	for i, o := range obs {
		if !survivors[i] {
			flagged = append(flagged, o)
		}
	}
	return flagged
}
