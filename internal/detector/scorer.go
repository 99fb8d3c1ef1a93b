// Package detector scores a metric reading against its recent history.
//
// Scoring flow:
//  1. expected = mean of the trailing history window
//  2. deviationPct = (current - expected) / expected * 100
//  3. effectiveThreshold = thresholdPct * (100 - sensitivity) / 50, floored at MinEffectiveThreshold
//  4. anomaly when |deviationPct| > effectiveThreshold
//  5. severity from |deviationPct| / effectiveThreshold against SeverityBands
//
// Everything here is pure and deterministic.
package detector

import (
	"fmt"
	"math"

	"github.com/adwatch/backend/internal/model"
)

// MinEffectiveThreshold - floor applied after sensitivity scaling (percent)
const MinEffectiveThreshold = 1.0

// SeverityBands - multiples of the effective threshold at which severity escalates
type SeverityBands struct {
	Warning  float64
	Critical float64
}

// DefaultSeverityBands - 1x..1.5x INFO, 1.5x..2x WARNING, beyond 2x CRITICAL
var DefaultSeverityBands = SeverityBands{Warning: 1.5, Critical: 2.0}

func (b SeverityBands) Validate() error {
	if !(b.Warning >= 1) {
		return fmt.Errorf("warning multiple must be >= 1, got %v", b.Warning)
	}
	if !(b.Critical > b.Warning) {
		return fmt.Errorf("critical multiple (%v) must exceed warning multiple (%v)", b.Critical, b.Warning)
	}
	return nil
}

// Classify maps an exceedance ratio to a severity; the upper bound of each band is inclusive.
func (b SeverityBands) Classify(ratio float64) model.Severity {
	switch {
	case ratio > b.Critical:
		return model.SeverityCritical
	case ratio > b.Warning:
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}

// Result - outcome of one scoring pass
type Result struct {
	Expected           float64
	Actual             float64
	DeviationPct       float64
	EffectiveThreshold float64
	Ratio              float64
	IsAnomaly          bool
	Severity           model.Severity // empty when IsAnomaly is false
}

// Direction - "above" or "below" the baseline
func (r Result) Direction() string {
	if r.DeviationPct < 0 {
		return "below"
	}
	return "above"
}

type Scorer struct {
	Bands SeverityBands
}

func NewScorer(bands SeverityBands) *Scorer {
	return &Scorer{Bands: bands}
}

// EffectiveThreshold scales thresholdPct inversely with sensitivity.
// Sensitivity is clamped to [0,100]; sensitivity 50 leaves the threshold unchanged.
func EffectiveThreshold(sensitivity int, thresholdPct float64) float64 {
	s := clamp(float64(sensitivity), 0, 100)
	eff := thresholdPct * (100 - s) / 50
	if math.IsNaN(eff) || eff < MinEffectiveThreshold {
		return MinEffectiveThreshold
	}
	return eff
}

// Baseline returns the trailing mean of history.
func Baseline(history []float64) (float64, error) {
	if len(history) == 0 {
		return 0, fmt.Errorf("%w: empty history", model.ErrInvalidBaseline)
	}
	expected := Mean(history)
	if expected == 0 || math.IsNaN(expected) || math.IsInf(expected, 0) {
		return 0, fmt.Errorf("%w: expected value %v", model.ErrInvalidBaseline, expected)
	}
	return expected, nil
}

// Score evaluates current against history. It returns model.ErrInvalidBaseline
// when no usable expected value can be derived; callers skip the observation.
func (s *Scorer) Score(history []float64, current float64, sensitivity int, thresholdPct float64) (Result, error) {
	expected, err := Baseline(history)
	if err != nil {
		return Result{}, err
	}
	if math.IsNaN(current) || math.IsInf(current, 0) {
		return Result{}, fmt.Errorf("%w: current value %v", model.ErrInvalidBaseline, current)
	}

	dev := (current - expected) / expected * 100
	eff := EffectiveThreshold(sensitivity, thresholdPct)
	r := Result{
		Expected:           expected,
		Actual:             current,
		DeviationPct:       dev,
		EffectiveThreshold: eff,
		Ratio:              math.Abs(dev) / eff,
	}
	if math.Abs(dev) > eff {
		r.IsAnomaly = true
		r.Severity = s.Bands.Classify(r.Ratio)
	}
	return r, nil
}
