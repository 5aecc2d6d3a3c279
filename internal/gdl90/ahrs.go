package gdl90

import "math"

// Attitude is what the AHRS frames carry.
//
// Scaling on the wire:
//   - roll/pitch/heading: 0.1 deg units
//   - yaw rate: 0.1 deg/s units
//   - g-load: 0.1 g units in the LE report
//
// Fields that are not valid are sent as the 0x7FFF / 0xFFFF sentinels.
// There is no air data source, so airspeed, pressure altitude and vertical
// speed are always invalid.
type Attitude struct {
	Valid bool

	RollDeg  float64
	PitchDeg float64

	// HeadingDeg is the gyro-integrated yaw wrapped to [0,360); it is
	// relative to the start-up orientation, not magnetic.
	HeadingDeg   float64
	HeadingValid bool

	YawRateDps float64
	GLoad      float64
}

// ForeFlightAHRSFrame builds the ForeFlight AHRS message (0x65, sub-id 0x01).
// Heading and airspeeds are always sent invalid.
func ForeFlightAHRSFrame(a Attitude) []byte {
	msg := make([]byte, 12)
	msg[0] = 0x65
	msg[1] = 0x01

	pitch := int16(0x7FFF)
	roll := int16(0x7FFF)
	hdg := uint16(0xFFFF)
	ias := uint16(0xFFFF)
	tas := uint16(0xFFFF)

	if a.Valid {
		pitch = deg10(a.PitchDeg)
		roll = deg10(a.RollDeg)
	}

	putI16(msg[2:], roll)
	putI16(msg[4:], pitch)
	putU16(msg[6:], hdg)
	putU16(msg[8:], ias)
	putU16(msg[10:], tas)

	return Frame(msg)
}

// AHRSGDL90LEFrame builds the "LE" AHRS report.
//
// Payload starts with: 0x4C, 0x45, 0x01, 0x01.
func AHRSGDL90LEFrame(a Attitude) []byte {
	msg := make([]byte, 24)
	msg[0] = 0x4C
	msg[1] = 0x45
	msg[2] = 0x01
	msg[3] = 0x01

	pitch := int16(0x7FFF)
	roll := int16(0x7FFF)
	hdg := int16(0x7FFF)
	slipSkid := int16(0x7FFF)
	yawRate := int16(0x7FFF)
	g := int16(0x7FFF)
	airspeed := int16(0x7FFF)
	palt := uint16(0xFFFF)
	vs := int16(0x7FFF)

	if a.Valid {
		pitch = deg10(a.PitchDeg)
		roll = deg10(a.RollDeg)
		if a.HeadingValid {
			hdg = deg10(wrap360(a.HeadingDeg))
		}
		yawRate = deg10(a.YawRateDps)
		g = deg10(a.GLoad)
	}

	putI16(msg[4:], roll)
	putI16(msg[6:], pitch)
	putI16(msg[8:], hdg)
	putI16(msg[10:], slipSkid)
	putI16(msg[12:], yawRate)
	putI16(msg[14:], g)
	putI16(msg[16:], airspeed)
	putU16(msg[18:], palt)
	putI16(msg[20:], vs)
	// Reserved.
	msg[22] = 0x7F
	msg[23] = 0xFF

	return Frame(msg)
}

func putI16(b []byte, v int16) {
	putU16(b, uint16(v))
}

func putU16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func deg10(deg float64) int16 {
	v := math.Round(deg * 10)
	if math.IsNaN(v) {
		return 0x7FFF
	}
	if v < -32768 {
		return -32768
	}
	if v > 32767 {
		return 32767
	}
	return int16(v)
}

func wrap360(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
