// Package anomaly implements the pure z-score classification of spec.md §4.6.
// It is a pure function of snapshot fields — the Stats Engine is not
// responsible for coloring decisions, only for producing the inputs.
package anomaly

import "math"

// Label is the classification assigned to the latest sample.
type Label string

const (
	Normal     Label = "normal"
	Variable   Label = "variable"
	Anomalous  Label = "anomalous"
	Critical   Label = "critical"
	Collecting Label = "collecting"
	Neutral    Label = "neutral"
)

// Classify labels a successful probe of latency x against a window mean mu
// and standard deviation sigma, per spec.md's z-score table. Callers
// resolve Collecting/Critical-on-failure and Neutral-outside-1m cases via
// the on1mWindow/collecting/failed inputs before ever reaching the z-score
// math, matching the decision order in spec.md §4.6.
func Classify(probeFailed, collecting, on1mWindow bool, x, mu, sigma float64) Label {
	if probeFailed {
		return Critical
	}
	if collecting {
		return Collecting
	}
	if !on1mWindow || sigma == 0 {
		return Neutral
	}

	z := math.Abs((x - mu) / sigma)
	switch {
	case z <= 1.0:
		return Normal
	case z <= 1.5:
		return Variable
	case z <= 2.0:
		return Anomalous
	default:
		return Critical
	}
}
