package gdl90

import "strings"

// ForeFlightIDFrame builds a ForeFlight "ID" message (0x65, subtype 0).
// Names are truncated to 8 and 16 bytes.
func ForeFlightIDFrame(shortName string, longName string) []byte {
	msg := make([]byte, 39)
	msg[0] = 0x65
	msg[1] = 0x00 // ID
	msg[2] = 0x01 // version

	// Serial number unknown.
	for i := 3; i <= 10; i++ {
		msg[i] = 0xFF
	}

	shortName = strings.TrimSpace(shortName)
	if shortName == "" {
		shortName = "IMUFusn"
	}
	if len(shortName) > 8 {
		shortName = shortName[:8]
	}
	copy(msg[11:], []byte(shortName))

	longName = strings.TrimSpace(longName)
	if longName == "" {
		longName = "imufusion AHRS"
	}
	if len(longName) > 16 {
		longName = longName[:16]
	}
	copy(msg[19:], []byte(longName))

	// Capabilities: none (no ownship geometric altitude).
	msg[38] = 0x00

	return Frame(msg)
}
