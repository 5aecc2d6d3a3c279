package fusion

import "math"

// ComplementaryFilter blends gyro-integrated roll/pitch with accelerometer
// tilt. Yaw is gyro integration only and drifts without bound.
//
// Axis mapping: gyro X drives pitch, gyro Y drives roll.
type ComplementaryFilter struct {
	dt float64
	w  Weight
}

func NewComplementaryFilter(clk *Clock) *ComplementaryFilter {
	return &ComplementaryFilter{dt: clk.dt, w: newWeight(DefaultComplementaryWeight)}
}

// SetWeight sets the gyro weight a; the accel weight becomes 1-a.
// It returns false and changes nothing unless 0 <= a < 1.
func (f *ComplementaryFilter) SetWeight(a float64) bool {
	return f.w.Set(a)
}

func (f *ComplementaryFilter) Weight() Weight {
	return f.w
}

// Update advances angles in place by one tick.
func (f *ComplementaryFilter) Update(s *Sample, angles *EulerAngles) {
	// With ax or ay exactly zero the accel tilt term is 0 for this tick and
	// the gyro term dominates; this is not an error.
	accelPitch, accelRoll, _ := AccelTilt(s)

	a, b := f.w.a, f.w.b
	angles.Pitch = a*(s.Gx*f.dt+angles.Pitch) + b*accelPitch
	angles.Roll = a*(s.Gy*f.dt+angles.Roll) + b*accelRoll
	angles.Yaw = s.Gz*f.dt + angles.Yaw
}

// AccelTilt returns the accelerometer-only pitch and roll in degrees, and
// whether the sample carried a usable tilt reference.
func AccelTilt(s *Sample) (pitch, roll float64, ok bool) {
	if !tiltObservable(s) {
		return 0, 0, false
	}
	pitch = math.Atan2(s.Ay, math.Sqrt(s.Ax*s.Ax+s.Az*s.Az)) * radToDeg
	roll = math.Atan2(-s.Ax, math.Sqrt(s.Ay*s.Ay+s.Az*s.Az)) * radToDeg
	return pitch, roll, true
}

func tiltObservable(s *Sample) bool {
	return s.Ax != 0 && s.Ay != 0
}
