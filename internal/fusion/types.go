package fusion

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

const (
	radToDeg = 180.0 / math.Pi
	degToRad = math.Pi / 180.0
)

// Sample is one six-axis IMU reading.
//
// Accel axes share any consistent scale (g or normalized); gyro axes are deg/s.
type Sample struct {
	Ax, Ay, Az float64
	Gx, Gy, Gz float64
}

// EulerAngles is a caller-owned roll/pitch/yaw triple in degrees.
//
// ComplementaryFilter and RateFilter read their previous output from it, so it
// must be kept across ticks for continuous tracking.
type EulerAngles struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Quaternion is an orientation quaternion (w, x, y, z).
type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Identity is the zero rotation.
var Identity = Quaternion{W: 1}

// NormSquared returns w²+x²+y²+z².
func (q Quaternion) NormSquared() float64 {
	return q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z
}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quaternion {
	return Quaternion{W: n.Real, X: n.Imag, Y: n.Jmag, Z: n.Kmag}
}
