package fusion

// RateFilter is a single-pole low-pass over the three gyro channels.
//
// The EulerAngles passed to Update is used as a rate vector (deg/s), not an
// orientation: Pitch tracks gx, Roll tracks gy, Yaw tracks gz.
type RateFilter struct {
	w Weight
}

func NewRateFilter() *RateFilter {
	return &RateFilter{w: newWeight(DefaultRateWeight)}
}

// SetWeight sets the weight on the previous output. It returns false and
// changes nothing unless 0 <= a < 1.
func (f *RateFilter) SetWeight(a float64) bool {
	return f.w.Set(a)
}

func (f *RateFilter) Weight() Weight {
	return f.w
}

func (f *RateFilter) Update(s *Sample, rate *EulerAngles) {
	a, b := f.w.a, f.w.b
	rate.Pitch = a*rate.Pitch + b*s.Gx
	rate.Roll = a*rate.Roll + b*s.Gy
	rate.Yaw = a*rate.Yaw + b*s.Gz
}
