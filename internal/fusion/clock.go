package fusion

import (
	"fmt"
	"math"
)

// Clock holds the fixed tick interval shared by the filters built from it.
//
// Every estimator owns its own Clock; there is no process-wide interval.
type Clock struct {
	dt      float64
	invSqrt InvSqrtKind
}

// NewClock fixes the sampling interval (seconds) and selects the default
// inverse-sqrt strategy for quaternion filters created from it.
func NewClock(interval float64) (*Clock, error) {
	if math.IsNaN(interval) || math.IsInf(interval, 0) || interval <= 0 {
		return nil, fmt.Errorf("fusion: sample interval must be > 0, got %v", interval)
	}
	return &Clock{dt: interval, invSqrt: InvSqrtFast}, nil
}

// Interval returns the tick interval in seconds.
func (c *Clock) Interval() float64 {
	return c.dt
}

// Weight is a blend coefficient a with its complement 1-a.
//
// The zero value is not useful; start from DefaultComplementaryWeight or
// DefaultRateWeight, or call Set.
type Weight struct {
	a float64
	b float64
}

const (
	DefaultComplementaryWeight = 0.95
	DefaultRateWeight          = 0.7
	DefaultGain                = 0.1
)

func newWeight(a float64) Weight {
	return Weight{a: a, b: 1 - a}
}

// Set stores a and recomputes 1-a. Values outside [0,1) leave the weight
// unchanged and return false.
func (w *Weight) Set(a float64) bool {
	if math.IsNaN(a) || a < 0 || a >= 1 {
		return false
	}
	w.a = a
	w.b = 1 - a
	return true
}

// A is the weight kept for the previous (gyro-propagated) estimate.
func (w Weight) A() float64 { return w.a }

// B is the weight given to the new measurement.
func (w Weight) B() float64 { return w.b }
