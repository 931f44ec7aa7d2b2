package param

import "math"

// SmoothingType selects the interpolation curve a Smoother uses between
// its current and target values.
type SmoothingType int

const (
	LinearSmoothing SmoothingType = iota
	ExponentialSmoothing
	LogarithmicSmoothing
)

// Smoother ramps a domain value toward a target over a configurable rate,
// avoiding the audible zipper noise of a stepped parameter change. Next
// advances the smoother by exactly one sample and must be called from the
// audio thread at the processing sample rate.
type Smoother struct {
	kind      SmoothingType
	current   float64
	target    float64
	rate      float64
	threshold float64
	smoothing bool

	step float64

	logCurrent float64
	logTarget  float64
	logStep    float64
}

// NewSmoother creates a Smoother. rate is the number of samples to reach
// the target for Linear/Logarithmic smoothing, or the one-pole
// coefficient (0.9-0.999) for Exponential smoothing.
func NewSmoother(kind SmoothingType, rate float64) *Smoother {
	return &Smoother{kind: kind, rate: rate, threshold: 1e-4}
}

// SetTarget sets the value the smoother ramps toward.
func (s *Smoother) SetTarget(target float64) {
	if math.Abs(target-s.target) < s.threshold {
		return
	}
	s.target = target
	s.smoothing = true

	switch s.kind {
	case LinearSmoothing:
		if s.rate > 0 {
			s.step = (target - s.current) / s.rate
		}
	case LogarithmicSmoothing:
		const minVal = 1e-3
		cur, tgt := s.current, target
		if cur < minVal {
			cur = minVal
		}
		if tgt < minVal {
			tgt = minVal
		}
		s.logCurrent = math.Log(cur)
		s.logTarget = math.Log(tgt)
		if s.rate > 0 {
			s.logStep = (s.logTarget - s.logCurrent) / s.rate
		}
	}
}

// Next advances the smoother by one sample and returns the new current
// value.
func (s *Smoother) Next() float64 {
	if !s.smoothing {
		return s.current
	}
	switch s.kind {
	case ExponentialSmoothing:
		s.current += (s.target - s.current) * (1.0 - s.rate)
		if math.Abs(s.current-s.target) < s.threshold {
			s.current = s.target
			s.smoothing = false
		}
	case LinearSmoothing:
		s.current += s.step
		if (s.step > 0 && s.current >= s.target) || (s.step < 0 && s.current <= s.target) {
			s.current = s.target
			s.smoothing = false
		}
	case LogarithmicSmoothing:
		s.logCurrent += s.logStep
		if (s.logStep > 0 && s.logCurrent >= s.logTarget) || (s.logStep < 0 && s.logCurrent <= s.logTarget) {
			s.current = s.target
			s.smoothing = false
		} else {
			s.current = math.Exp(s.logCurrent)
		}
	}
	return s.current
}

// IsSmoothing reports whether the target has not yet been reached.
func (s *Smoother) IsSmoothing() bool { return s.smoothing }

// Reset snaps current and target to value, ending any in-flight ramp.
func (s *Smoother) Reset(value float64) {
	s.current = value
	s.target = value
	s.smoothing = false
}

// SetRate updates the smoothing rate.
func (s *Smoother) SetRate(rate float64) { s.rate = rate }

// SmoothedParameter pairs a Parameter with a Smoother over its domain
// value, so SetDomainValue moves the target and NextSmoothed supplies
// a per-sample ramped read for the audio thread.
type SmoothedParameter struct {
	*Parameter
	smoother *Smoother
	enabled  bool
}

// NewSmoothedParameter wraps p with smoothing, initialized to p's current
// domain value so the first render block starts with no ramp in flight.
func NewSmoothedParameter(p *Parameter, kind SmoothingType, rate float64) *SmoothedParameter {
	sp := &SmoothedParameter{Parameter: p, smoother: NewSmoother(kind, rate), enabled: true}
	sp.smoother.Reset(p.DomainValue())
	return sp
}

// SetDomainValue writes through to the underlying Parameter and retargets
// the smoother.
func (sp *SmoothedParameter) SetDomainValue(v float64) {
	sp.Parameter.SetDomainValue(v)
	if sp.enabled {
		sp.smoother.SetTarget(v)
	}
}

// NextSmoothed advances and returns the smoothed domain value for the
// current sample.
func (sp *SmoothedParameter) NextSmoothed() float64 {
	if !sp.enabled {
		return sp.DomainValue()
	}
	return sp.smoother.Next()
}

// SetSmoothing enables or disables ramping; disabling snaps immediately to
// the current domain value.
func (sp *SmoothedParameter) SetSmoothing(enabled bool) {
	sp.enabled = enabled
	if !enabled {
		sp.smoother.Reset(sp.DomainValue())
	}
}
