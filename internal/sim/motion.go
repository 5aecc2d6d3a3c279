// Package sim synthesizes IMU samples for a body rotating at constant rates.
package sim

import (
	"context"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/num/quat"

	"imufusion/internal/fusion"
)

// Motion rotates at fixed body rates and reports the gravity direction the
// accelerometer would see (1 g, no linear acceleration).
//
// Rates are body-frame rates about x, y and z in deg/s.
type Motion struct {
	dt    float64
	rates [3]float64
	noise float64
	rng   *rand.Rand

	q quat.Number
}

type Options struct {
	Interval float64
	// Body rates in deg/s.
	RateX, RateY, RateZ float64
	// NoiseDps is the standard deviation of gyro noise.
	NoiseDps float64
	Seed     int64
}

func NewMotion(opts Options) *Motion {
	return &Motion{
		dt:    opts.Interval,
		rates: [3]float64{opts.RateX, opts.RateY, opts.RateZ},
		noise: opts.NoiseDps,
		rng:   rand.New(rand.NewSource(opts.Seed)),
		q:     quat.Number{Real: 1},
	}
}

// Step advances the true attitude by one interval and returns the sample
// measured at the start of it.
func (m *Motion) Step() fusion.Sample {
	g := m.gravity()
	s := fusion.Sample{
		Ax: g.Imag, Ay: g.Jmag, Az: g.Kmag,
		Gx: m.rates[0], Gy: m.rates[1], Gz: m.rates[2],
	}
	if m.noise > 0 {
		s.Gx += m.rng.NormFloat64() * m.noise
		s.Gy += m.rng.NormFloat64() * m.noise
		s.Gz += m.rng.NormFloat64() * m.noise
	}

	const d2r = math.Pi / 180
	half := quat.Number{
		Imag: 0.5 * m.rates[0] * d2r * m.dt,
		Jmag: 0.5 * m.rates[1] * d2r * m.dt,
		Kmag: 0.5 * m.rates[2] * d2r * m.dt,
	}
	m.q = quat.Mul(m.q, quat.Exp(half))
	m.q = quat.Scale(1/quat.Abs(m.q), m.q)
	return s
}

// Next implements the attitude service's sample source. It never blocks.
func (m *Motion) Next(ctx context.Context) (fusion.Sample, error) {
	if err := ctx.Err(); err != nil {
		return fusion.Sample{}, err
	}
	return m.Step(), nil
}

// Truth returns the exact attitude after the steps taken so far.
func (m *Motion) Truth() fusion.Quaternion {
	return fusion.Quaternion{W: m.q.Real, X: m.q.Imag, Y: m.q.Jmag, Z: m.q.Kmag}
}

// gravity is the earth z axis expressed in the body frame: q* (0,0,0,1) q.
func (m *Motion) gravity() quat.Number {
	return quat.Mul(quat.Mul(quat.Conj(m.q), quat.Number{Kmag: 1}), m.q)
}
