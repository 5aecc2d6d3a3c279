package fusion

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Correction reports what the accelerometer feedback did on a tick.
type Correction int

const (
	// Corrected means the gradient step toward measured gravity was applied.
	Corrected Correction = iota
	// SkippedZeroAccel means the accel vector was exactly zero and the tick
	// was pure gyro integration.
	SkippedZeroAccel
	// Aligned means the estimate already matched measured gravity, so the
	// gradient was zero and nothing was subtracted.
	Aligned
)

func (c Correction) String() string {
	switch c {
	case Corrected:
		return "corrected"
	case SkippedZeroAccel:
		return "skipped_zero_accel"
	case Aligned:
		return "aligned"
	default:
		return "unknown"
	}
}

// QuaternionFilter is a gradient-descent AHRS (Madgwick, IMU-only variant).
//
// It owns its quaternion. Yaw is not observable from gravity and drifts with
// gyro error.
type QuaternionFilter struct {
	dt      float64
	beta    float64
	kind    InvSqrtKind
	invSqrt InvSqrtFunc
	q       Quaternion
	running bool
}

func NewQuaternionFilter(clk *Clock) *QuaternionFilter {
	return &QuaternionFilter{
		dt:      clk.dt,
		beta:    DefaultGain,
		kind:    clk.invSqrt,
		invSqrt: clk.invSqrt.Func(),
		q:       Identity,
	}
}

// SetGain sets beta for subsequent ticks.
func (f *QuaternionFilter) SetGain(beta float64) {
	f.beta = beta
}

func (f *QuaternionFilter) Gain() float64 {
	return f.beta
}

// SetInvSqrt switches the normalization routine for subsequent ticks.
func (f *QuaternionFilter) SetInvSqrt(kind InvSqrtKind) {
	f.kind = kind
	f.invSqrt = kind.Func()
}

func (f *QuaternionFilter) InvSqrt() InvSqrtKind {
	return f.kind
}

// Reset returns the estimate to the identity rotation.
func (f *QuaternionFilter) Reset() {
	f.q = Identity
	f.running = false
}

// Quaternion returns a copy of the current estimate.
func (f *QuaternionFilter) Quaternion() Quaternion {
	return f.q
}

// Running reports whether Update has run since construction or Reset.
func (f *QuaternionFilter) Running() bool {
	return f.running
}

// Update advances the estimate by one tick and writes Euler angles (degrees)
// into angles.
func (f *QuaternionFilter) Update(s *Sample, angles *EulerAngles) Correction {
	omega := quat.Number{
		Imag: s.Gx * degToRad,
		Jmag: s.Gy * degToRad,
		Kmag: s.Gz * degToRad,
	}
	q := f.q.number()
	qDot := quat.Scale(0.5, quat.Mul(q, omega))

	corr := SkippedZeroAccel
	// A zero accel vector cannot be normalized; skip feedback for this tick.
	if gravityObservable(s) {
		step, ok := f.gradient(s)
		if ok {
			qDot = quat.Sub(qDot, quat.Scale(f.beta, step))
			corr = Corrected
		} else {
			corr = Aligned
		}
	}

	q = quat.Add(q, quat.Scale(f.dt, qDot))

	// Renormalize every tick: first-order integration does not preserve the norm.
	f.q = fromNumber(quat.Scale(f.invSqrt(normSq(q)), q))
	f.running = true

	*angles = f.q.Euler()
	return corr
}

// gradient returns the normalized gradient of the objective between the
// gravity direction implied by q and the measured accel direction. ok is false
// when the gradient is exactly zero.
func (f *QuaternionFilter) gradient(s *Sample) (quat.Number, bool) {
	recipNorm := f.invSqrt(s.Ax*s.Ax + s.Ay*s.Ay + s.Az*s.Az)
	ax := s.Ax * recipNorm
	ay := s.Ay * recipNorm
	az := s.Az * recipNorm

	q0, q1, q2, q3 := f.q.W, f.q.X, f.q.Y, f.q.Z
	q0q0, q1q1, q2q2, q3q3 := q0*q0, q1*q1, q2*q2, q3*q3

	s0 := 4*q0*q2q2 + 2*q2*ax + 4*q0*q1q1 - 2*q1*ay
	s1 := 4*q1*q3q3 - 2*q3*ax + 4*q0q0*q1 - 2*q0*ay - 4*q1 + 8*q1*q1q1 + 8*q1*q2q2 + 4*q1*az
	s2 := 4*q0q0*q2 + 2*q0*ax + 4*q2*q3q3 - 2*q3*ay - 4*q2 + 8*q2*q1q1 + 8*q2*q2q2 + 4*q2*az
	s3 := 4*q1q1*q3 - 2*q1*ax + 4*q2q2*q3 - 2*q2*ay

	n := s0*s0 + s1*s1 + s2*s2 + s3*s3
	if n == 0 {
		return quat.Number{}, false
	}
	return quat.Scale(f.invSqrt(n), quat.Number{Real: s0, Imag: s1, Jmag: s2, Kmag: s3}), true
}

func normSq(n quat.Number) float64 {
	return n.Real*n.Real + n.Imag*n.Imag + n.Jmag*n.Jmag + n.Kmag*n.Kmag
}

// Euler converts q to degrees. The rotation about body x is reported as
// Pitch and the rotation about body y as Roll, matching the gyro mapping of
// ComplementaryFilter.
func (q Quaternion) Euler() EulerAngles {
	sqw, sqx, sqy, sqz := q.W*q.W, q.X*q.X, q.Y*q.Y, q.Z*q.Z

	rotX := math.Atan2(2*(q.Y*q.Z+q.X*q.W), -sqx-sqy+sqz+sqw)
	rotY := math.Asin(clamp(-2*(q.X*q.Z-q.Y*q.W), -1, 1))
	rotZ := math.Atan2(2*(q.X*q.Y+q.Z*q.W), sqx-sqy-sqz+sqw)

	return EulerAngles{
		Pitch: unsignedZero(rotX * radToDeg),
		Roll:  unsignedZero(rotY * radToDeg),
		Yaw:   unsignedZero(rotZ * radToDeg),
	}
}

// unsignedZero maps -0 to 0 so a level attitude never prints as "-0".
func unsignedZero(v float64) float64 {
	if v == 0 {
		return 0
	}
	return v
}

func gravityObservable(s *Sample) bool {
	return !(s.Ax == 0 && s.Ay == 0 && s.Az == 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
