package outlier

import (
	"math"
	"sort"
)

// QQ flags outliers from quantile-quantile behaviour: per field it orders
// observations by extremity, repeatedly trims the leading extreme and refits
// the quantile slope, then compares each trim step's slope change against
// the mean Cook's-distance of the step sequence. The threshold is the mean
// over every field's trim steps, not a per-step critical value, so this is
// a heuristic sweep rather than a calibrated test.
type QQ struct{}

func (QQ) Name() string { return StrategyQQ }

type qqRow struct {
	obs    Observation
	z      float64
	step   float64
	stepCD float64
}

func (QQ) Flag(obs []Observation) []Observation {
	groups := make(map[string][]Observation)
	var order []string
	for _, o := range obs {
		if _, ok := groups[o.FieldName]; !ok {
			order = append(order, o.FieldName)
		}
		groups[o.FieldName] = append(groups[o.FieldName], o)
	}

	var rows []*qqRow
	for _, field := range order {
		rows = append(rows, qqGroup(groups[field])...)
	}

	// Global threshold across every field's trim steps.
	var cds []float64
	for _, r := range rows {
		cds = append(cds, r.stepCD)
	}
	threshold := nanMean(cds)

	var flagged []Observation
	for _, r := range rows {
		if !math.IsNaN(r.step) && !math.IsNaN(threshold) && r.step > threshold {
			flagged = append(flagged, r.obs)
		}
	}
	return flagged
}

// qqGroup computes the trim-sweep statistics for one field's observations.
// Singleton groups cannot be evaluated and pass through unflagged.
func qqGroup(group []Observation) []*qqRow {
	n := len(group)
	rows := make([]*qqRow, n)
	for i, o := range group {
		rows[i] = &qqRow{obs: o, z: math.NaN(), step: math.NaN(), stepCD: math.NaN()}
	}
	if n < 2 {
		return rows
	}

	values := make([]float64, n)
	for i, o := range group {
		values[i] = o.Value
	}
	mu := mean(values)
	sd := popStd(values)
	for i := range rows {
		if sd == 0 {
			rows[i].z = 0
		} else {
			rows[i].z = (values[i] - mu) / sd
		}
	}

	// Order by extremity, most extreme first.
	sort.SliceStable(rows, func(i, j int) bool {
		return math.Abs(rows[i].z) > math.Abs(rows[j].z)
	})

	if n <= 3 {
		return rows
	}

	// Trim sweep: drop the leading extreme, refit the quantile slope.
	slopes := make([]float64, 0, n-2)
	for trim := 0; trim <= n-3; trim++ {
		subset := rows[trim:]
		sub := make([]float64, len(subset))
		for i, r := range subset {
			sub[i] = r.obs.Value
		}
		subMu := mean(sub)
		subSd := popStd(sub)

		quants := make([]float64, len(sub))
		for i := range sub {
			p := float64(i+1) / float64(len(sub)+1)
			quants[i] = normQuantile(p, subMu, subSd)
		}
		sorted := make([]float64, len(sub))
		copy(sorted, sub)
		sort.Float64s(sorted)

		slope, _ := fitLine(sorted, quants)
		slopes = append(slopes, slope)
	}

	// Magnitude of change between successive trims, and the regression
	// influence of that step sequence over the trim counter.
	steps := make([]float64, 0, len(slopes)-1)
	trims := make([]float64, 0, len(slopes)-1)
	for i := 1; i < len(slopes); i++ {
		steps = append(steps, math.Abs(slopes[i]-slopes[i-1]))
		trims = append(trims, float64(i))
	}
	stepCDs := cooksDistances(trims, steps)

	for i := range steps {
		rows[i].step = steps[i]
		rows[i].stepCD = stepCDs[i]
	}
	return rows
}
