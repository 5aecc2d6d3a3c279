package fusion

import (
	"fmt"
	"math"
	"strings"
)

// InvSqrtKind selects the reciprocal square root routine used by the
// quaternion filter's normalization steps.
type InvSqrtKind int

const (
	// InvSqrtFast uses the float32 bit-level initial guess refined by Newton steps.
	InvSqrtFast InvSqrtKind = iota
	// InvSqrtExact uses 1/math.Sqrt.
	InvSqrtExact
)

func (k InvSqrtKind) String() string {
	switch k {
	case InvSqrtFast:
		return "fast"
	case InvSqrtExact:
		return "exact"
	default:
		return fmt.Sprintf("InvSqrtKind(%d)", int(k))
	}
}

// ParseInvSqrtKind maps "fast" / "exact" to a kind. Empty means fast.
func ParseInvSqrtKind(s string) (InvSqrtKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fast":
		return InvSqrtFast, nil
	case "exact":
		return InvSqrtExact, nil
	default:
		return 0, fmt.Errorf("fusion: unknown inv_sqrt %q (want fast or exact)", s)
	}
}

// InvSqrtFunc computes 1/sqrt(x) for x > 0.
type InvSqrtFunc func(x float64) float64

// Func resolves the kind to its routine. Unknown kinds resolve to exact.
func (k InvSqrtKind) Func() InvSqrtFunc {
	if k == InvSqrtFast {
		return FastInvSqrt
	}
	return ExactInvSqrt
}

// ExactInvSqrt returns 1/sqrt(x). x == 0 gives +Inf, x < 0 gives NaN.
func ExactInvSqrt(x float64) float64 {
	return 1.0 / math.Sqrt(x)
}

// minNormalFloat32 is the smallest positive normal float32 (2^-126).
const minNormalFloat32 = 0x1p-126

// FastInvSqrt approximates 1/sqrt(x) from the float32 bit pattern of x.
// Relative error is below 1e-9 after the final float64 refinement.
// Non-positive input returns the same sentinels as ExactInvSqrt.
func FastInvSqrt(x float64) float64 {
	if x <= 0 || math.IsNaN(x) {
		return ExactInvSqrt(x)
	}
	f := float32(x)
	if f < minNormalFloat32 || math.IsInf(float64(f), 0) {
		// Subnormal or outside float32 range; the bit trick loses precision.
		return ExactInvSqrt(x)
	}
	half := 0.5 * f
	i := math.Float32bits(f)
	i = 0x5f3759df - i>>1
	y := math.Float32frombits(i)
	y = y * (1.5 - half*y*y)
	y = y * (1.5 - half*y*y)

	r := float64(y)
	return r * (1.5 - 0.5*x*r*r)
}
