package outlier

import "math"

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd is the n-1 denominator standard deviation.
func sampleStd(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// popStd is the n denominator standard deviation.
func popStd(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n))
}

// normQuantile is the inverse normal CDF for the given mean and deviation.
func normQuantile(p, mu, sigma float64) float64 {
	return mu + sigma*math.Sqrt2*math.Erfinv(2*p-1)
}

// fitLine returns the least-squares slope and intercept of y over x.
func fitLine(x, y []float64) (slope, intercept float64) {
	n := float64(len(x))
	if n == 0 {
		return 0, 0
	}
	mx, my := mean(x), mean(y)
	var sxx, sxy float64
	for i := range x {
		dx := x[i] - mx
		sxx += dx * dx
		sxy += dx * (y[i] - my)
	}
	if sxx == 0 {
		return 0, my
	}
	slope = sxy / sxx
	intercept = my - slope*mx
	return slope, intercept
}

// cooksDistances returns the per-point Cook's distance of the simple linear
// regression of y on x. Degenerate fits (fewer than three points, or zero
// residual variance) yield NaN distances.
func cooksDistances(x, y []float64) []float64 {
	n := len(x)
	dist := make([]float64, n)
	if n < 3 {
		for i := range dist {
			dist[i] = math.NaN()
		}
		return dist
	}

	slope, intercept := fitLine(x, y)
	mx := mean(x)
	var sxx, sse float64
	for i := range x {
		dx := x[i] - mx
		sxx += dx * dx
		r := y[i] - (intercept + slope*x[i])
		sse += r * r
	}

	const p = 2 // parameters in the fit
	s2 := sse / float64(n-p)
	for i := range x {
		if s2 == 0 || sxx == 0 {
			dist[i] = math.NaN()
			continue
		}
		h := 1/float64(n) + (x[i]-mx)*(x[i]-mx)/sxx
		r := y[i] - (intercept + slope*x[i])
		dist[i] = (r * r / (p * s2)) * (h / ((1 - h) * (1 - h)))
	}
	return dist
}

func nanMean(xs []float64) float64 {
	var sum float64
	var n int
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		sum += x
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
