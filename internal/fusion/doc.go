// Package fusion estimates attitude from six-axis IMU samples taken at a fixed
// interval.
//
// Three filters share one Clock per estimator:
//   - ComplementaryFilter: gyro-integrated roll/pitch blended with accel tilt
//   - RateFilter: single-pole smoothing of the gyro rates
//   - QuaternionFilter: gradient-descent AHRS holding a unit quaternion
//
// Filters never allocate, block or return errors. Degenerate accelerometer
// input (zero tilt axes, zero vector) drops the correction term for that tick.
// None of the types are safe for concurrent use; callers that share a filter
// across goroutines must serialize access.
package fusion
