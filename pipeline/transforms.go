package pipeline

import "math"

type transform interface {
	apply(x []float64) []float64
	kind() string
}

// simpleImputer replaces NaN with the fitted per-column statistic.
type simpleImputer struct {
	statistics []float64
}

func (s simpleImputer) apply(x []float64) []float64 {
	for i, v := range x {
		if math.IsNaN(v) {
			x[i] = s.statistics[i]
		}
	}
	return x
}

func (simpleImputer) kind() string { return StepSimpleImputer }

// standardScaler centres and scales each column. NaN passes through unchanged.
type standardScaler struct {
	mean  []float64
	scale []float64
}

func (s standardScaler) apply(x []float64) []float64 {
	for i := range x {
		scale := s.scale[i]
		if scale == 0 {
			scale = 1
		}
		x[i] = (x[i] - s.mean[i]) / scale
	}
	return x
}

func (standardScaler) kind() string { return StepStandardScaler }
