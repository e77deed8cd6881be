package scans

// ScorePolicy computes an aggregate risk score from severity counts.
// Implementations must be deterministic and monotonic: adding a finding
// of any severity never decreases the score.
type ScorePolicy interface {
	Score(c SeverityCounts) float64
}

// SeverityWeights is the default weighted-sum policy.
type SeverityWeights struct {
	Critical float64
	High     float64
	Medium   float64
	Low      float64
}

// DefaultWeights mirror the midpoints of the CVSS v3 severity bands.
func DefaultWeights() SeverityWeights {
	return SeverityWeights{Critical: 9.5, High: 7.5, Medium: 5.0, Low: 2.0}
}

func (w SeverityWeights) Score(c SeverityCounts) float64 {
	return w.Critical*float64(c.Critical) +
		w.High*float64(c.High) +
		w.Medium*float64(c.Medium) +
		w.Low*float64(c.Low)
}
