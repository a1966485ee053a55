package outlier

import "math"

// Chauvenet applies Chauvenet's criterion in a single pass: an observation
// is rejected when the two-tailed normal tail probability of its z-score
// falls below 1/(2N).
type Chauvenet struct{}

func (Chauvenet) Name() string { return StrategyChauvenet }

func (Chauvenet) Flag(obs []Observation) []Observation {
	n := len(obs)
	if n < 2 {
		return nil
	}

	values := make([]float64, n)
	for i, o := range obs {
		values[i] = o.Value
	}
	m := mean(values)
	std := sampleStd(values)
	if std == 0 {
		// Zero variance: no z-score can exceed any threshold.
		return nil
	}

	criterion := 1 / (2 * float64(n))
	var flagged []Observation
	for i, o := range obs {
		z := math.Abs(values[i]-m) / std
		if math.Erfc(z) < criterion {
			flagged = append(flagged, o)
		}
	}
	return flagged
}
