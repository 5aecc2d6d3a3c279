package icm20948

import (
	"fmt"
	"math"
	"time"

	"imufusion/internal/fusion"
	"imufusion/internal/i2c"
)

var sleep = time.Sleep

// ICM-20948 accel+gyro driver (magnetometer unused).
//
// WHO_AM_I at 0x00 must read 0xEA. Registers are banked; bank 0 holds the
// data and interrupt registers, bank 2 the rate and range configuration.

const (
	addrDefault = 0x68

	regWhoAmI  = 0x00
	whoAmIVal  = 0xEA
	regBankSel = 0x7F

	// Bank 0.
	regIntPinCfg  = 0x0F
	regIntEnable  = 0x10
	regIntEnable1 = 0x11
	regPwrMgmt1   = 0x06
	regPwrMgmt2   = 0x07
	regAccelXoutH = 0x2D // accel XYZ then gyro XYZ, big-endian int16

	bitReset       = 0x80
	clkAuto        = 0x01
	bitRawDataRdy  = 0x01
	bitIntLatchClr = 0x30 // latch until any read clears it

	// Bank 2.
	bank2           = 2
	regGyroSmplrt   = 0x00
	regGyroConfig1  = 0x01
	regAccelSmplrt2 = 0x11
	regAccelConfig  = 0x14

	// FS_SEL with DLPF enabled.
	gyroFS250dps = 0x01
	accelFS4g    = 0x03

	baseRateHz = 1125
)

// Reading is one timestamped accel (g) + gyro (deg/s) sample.
type Reading struct {
	Time time.Time
	fusion.Sample
}

// Options configures the device. The zero value means 50 Hz, no interrupt.
type Options struct {
	RateHz int
	// DataReady routes the raw-data-ready interrupt to INT1 for GPIO pacing.
	DataReady bool
}

type Device struct {
	dev regIO

	curBank    byte
	rateHz     int
	scaleAccel float64
	scaleGyro  float64
	buf        [12]byte
}

type regIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

func DefaultAddress() uint16 { return addrDefault }

// RateFor converts a sampling interval into the nearest supported output rate.
func RateFor(interval time.Duration) int {
	if interval <= 0 {
		return 50
	}
	hz := int(math.Round(float64(time.Second) / float64(interval)))
	if hz < 5 {
		return 5
	}
	if hz > baseRateHz {
		return baseRateHz
	}
	return hz
}

func New(dev *i2c.Dev, opts Options) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("icm20948: dev is nil")
	}
	return newWithIO(dev, opts)
}

func newWithIO(dev regIO, opts Options) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("icm20948: dev is nil")
	}
	if opts.RateHz <= 0 {
		opts.RateHz = 50
	}
	d := &Device{dev: dev, curBank: 0xFF, rateHz: opts.RateHz}

	if err := d.setBank(0); err != nil {
		return nil, err
	}
	who, err := d.dev.ReadRegU8(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("icm20948: whoami read failed: %w", err)
	}
	if who != whoAmIVal {
		return nil, fmt.Errorf("icm20948: whoami=0x%02X want 0x%02X", who, whoAmIVal)
	}
	if err := d.init(opts); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) RateHz() int { return d.rateHz }

func (d *Device) init(opts Options) error {
	if err := d.dev.WriteReg(regPwrMgmt1, bitReset); err != nil {
		return fmt.Errorf("icm20948: reset failed: %w", err)
	}
	sleep(100 * time.Millisecond)
	// Reset returns the bank select to 0.
	d.curBank = 0

	if err := d.dev.WriteReg(regPwrMgmt1, clkAuto); err != nil {
		return fmt.Errorf("icm20948: wake failed: %w", err)
	}
	// All accel and gyro axes on.
	if err := d.dev.WriteReg(regPwrMgmt2, 0x00); err != nil {
		return fmt.Errorf("icm20948: enable sensors failed: %w", err)
	}
	sleep(10 * time.Millisecond)

	if err := d.setBank(bank2); err != nil {
		return err
	}
	// ODR = 1125/(1+div).
	div := baseRateHz/d.rateHz - 1
	if div < 0 {
		div = 0
	}
	if div > 0xFF {
		div = 0xFF
	}
	if err := d.dev.WriteReg(regGyroSmplrt, byte(div)); err != nil {
		return fmt.Errorf("icm20948: gyro rate failed: %w", err)
	}
	if err := d.dev.WriteReg(regAccelSmplrt2, byte(div)); err != nil {
		return fmt.Errorf("icm20948: accel rate failed: %w", err)
	}
	if err := d.dev.WriteReg(regGyroConfig1, gyroFS250dps); err != nil {
		return fmt.Errorf("icm20948: gyro config failed: %w", err)
	}
	if err := d.dev.WriteReg(regAccelConfig, accelFS4g); err != nil {
		return fmt.Errorf("icm20948: accel config failed: %w", err)
	}
	d.rateHz = baseRateHz / (div + 1)

	if err := d.setBank(0); err != nil {
		return err
	}
	intr := byte(0x00)
	if opts.DataReady {
		if err := d.dev.WriteReg(regIntPinCfg, bitIntLatchClr); err != nil {
			return fmt.Errorf("icm20948: int pin config failed: %w", err)
		}
		intr = bitRawDataRdy
	}
	if err := d.dev.WriteReg(regIntEnable, 0x00); err != nil {
		return fmt.Errorf("icm20948: int enable failed: %w", err)
	}
	if err := d.dev.WriteReg(regIntEnable1, intr); err != nil {
		return fmt.Errorf("icm20948: int enable failed: %w", err)
	}

	d.scaleAccel = 4.0 / 32768.0
	d.scaleGyro = 250.0 / 32768.0
	return nil
}

func (d *Device) setBank(bank byte) error {
	if d.curBank == bank {
		return nil
	}
	if err := d.dev.WriteReg(regBankSel, bank<<4); err != nil {
		return fmt.Errorf("icm20948: set bank %d failed: %w", bank, err)
	}
	d.curBank = bank
	return nil
}

// Read returns the latest accel+gyro sample.
func (d *Device) Read() (Reading, error) {
	if d == nil {
		return Reading{}, fmt.Errorf("icm20948: device is nil")
	}
	if err := d.setBank(0); err != nil {
		return Reading{}, err
	}
	buf := d.buf[:]
	if err := d.dev.ReadReg(regAccelXoutH, buf); err != nil {
		return Reading{}, fmt.Errorf("icm20948: read sensors failed: %w", err)
	}

	word := func(i int) float64 { return float64(int16(uint16(buf[i])<<8 | uint16(buf[i+1]))) }
	return Reading{
		Time: time.Now(),
		Sample: fusion.Sample{
			Ax: word(0) * d.scaleAccel,
			Ay: word(2) * d.scaleAccel,
			Az: word(4) * d.scaleAccel,
			Gx: word(6) * d.scaleGyro,
			Gy: word(8) * d.scaleGyro,
			Gz: word(10) * d.scaleGyro,
		},
	}, nil
}
