package gdl90

import "time"

const (
	flagByte   = 0x7E
	escapeByte = 0x7D
	escapeXor  = 0x20
)

// Frame takes an unframed GDL90 message (message ID + payload bytes), appends
// the GDL90 CRC16, applies byte-stuffing, and wraps with 0x7E flags.
func Frame(message []byte) []byte {
	crc := crc16(message)

	// CRC goes out low byte first.
	withCRC := make([]byte, 0, len(message)+2)
	withCRC = append(withCRC, message...)
	withCRC = append(withCRC, byte(crc&0xFF), byte((crc>>8)&0xFF))

	out := make([]byte, 0, 2+len(withCRC)*2)
	out = append(out, flagByte)
	for _, b := range withCRC {
		if b == flagByte || b == escapeByte {
			out = append(out, escapeByte, b^escapeXor)
			continue
		}
		out = append(out, b)
	}
	out = append(out, flagByte)
	return out
}

// HeartbeatFrameAt builds a standard GDL90 Heartbeat (0x00) stamped with the
// seconds since 0000Z of now.
//
// EFB apps drop the connection without one per second. There is no GPS, so
// the UTC-OK bit stays clear; maintenanceRequired is raised while the IMU is
// failing.
func HeartbeatFrameAt(now time.Time, maintenanceRequired bool) []byte {
	msg := make([]byte, 7)
	msg[0] = 0x00

	// bit0 UAT initialized, bit4 addr talkback, bit6 maintenance required.
	flags := byte(0x01) | byte(0x10)
	if maintenanceRequired {
		flags |= 0x40
	}
	msg[1] = flags

	nowUTC := now.UTC()
	midnightUTC := time.Date(nowUTC.Year(), nowUTC.Month(), nowUTC.Day(), 0, 0, 0, 0, time.UTC)
	seconds := uint32(nowUTC.Sub(midnightUTC).Seconds())

	// Bit 16 of the timestamp lives in bit7 of status byte 2.
	msg[2] = byte((seconds >> 16) << 7)
	msg[3] = byte(seconds & 0xFF)
	msg[4] = byte((seconds & 0xFFFF) >> 8)
	msg[5] = 0x00
	msg[6] = 0x00

	return Frame(msg)
}

// StratuxHeartbeatFrame builds the Stratux heartbeat (0xCC) that tells apps
// an AHRS is present.
func StratuxHeartbeatFrame(ahrsValid bool) []byte {
	msg := make([]byte, 2)
	msg[0] = 0xCC
	b := byte(0)
	if ahrsValid {
		b |= 0x01
	}
	protocolVers := byte(1)
	b |= protocolVers << 2
	msg[1] = b
	return Frame(msg)
}
