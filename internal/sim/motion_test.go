package sim

import (
	"context"
	"math"
	"testing"

	"imufusion/internal/fusion"
)

func TestMotion_StationaryIsLevel(t *testing.T) {
	m := NewMotion(Options{Interval: 0.01})
	for i := 0; i < 10; i++ {
		s := m.Step()
		if s != (fusion.Sample{Az: 1}) {
			t.Fatalf("step %d sample=%+v", i, s)
		}
	}
}

func TestMotion_RollQuarterTurn(t *testing.T) {
	// 90 deg/s about x for 1 s.
	m := NewMotion(Options{Interval: 0.01, RateX: 90})
	var s fusion.Sample
	for i := 0; i <= 100; i++ {
		s = m.Step()
	}
	// Measured at t=1s: gravity now lies along body y.
	if math.Abs(s.Ay-1) > 1e-9 || math.Abs(s.Az) > 1e-9 || math.Abs(s.Ax) > 1e-9 {
		t.Fatalf("accel=(%v,%v,%v) want (0,1,0)", s.Ax, s.Ay, s.Az)
	}
	if s.Gx != 90 || s.Gy != 0 || s.Gz != 0 {
		t.Fatalf("gyro=(%v,%v,%v)", s.Gx, s.Gy, s.Gz)
	}
}

func TestMotion_TruthMatchesFilter(t *testing.T) {
	m := NewMotion(Options{Interval: 0.005, RateX: 20, RateY: -10, RateZ: 30})
	clk, err := fusion.NewClock(0.005)
	if err != nil {
		t.Fatalf("NewClock: %v", err)
	}
	f := fusion.NewQuaternionFilter(clk)
	f.SetGain(0.05)
	var angles fusion.EulerAngles
	for i := 0; i < 400; i++ {
		s, err := m.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		f.Update(&s, &angles)
	}
	want := m.Truth().Euler()
	if math.Abs(angles.Pitch-want.Pitch) > 1 || math.Abs(angles.Roll-want.Roll) > 1 {
		t.Fatalf("estimate=%+v truth=%+v", angles, want)
	}
}

func TestMotion_NoiseIsDeterministic(t *testing.T) {
	a := NewMotion(Options{Interval: 0.01, NoiseDps: 0.5, Seed: 7})
	b := NewMotion(Options{Interval: 0.01, NoiseDps: 0.5, Seed: 7})
	for i := 0; i < 20; i++ {
		if sa, sb := a.Step(), b.Step(); sa != sb {
			t.Fatalf("step %d differs: %+v vs %+v", i, sa, sb)
		}
	}
}

func TestMotion_NextHonorsContext(t *testing.T) {
	m := NewMotion(Options{Interval: 0.01})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Next(ctx); err == nil {
		t.Fatalf("expected error")
	}
}
