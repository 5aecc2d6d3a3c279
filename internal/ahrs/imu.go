package ahrs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"imufusion/internal/drdy"
	"imufusion/internal/fusion"
	"imufusion/internal/i2c"
	"imufusion/internal/sensors/icm20948"
)

type imuReader interface {
	Read() (icm20948.Reading, error)
}

type edgeWaiter interface {
	Wait(ctx context.Context) (time.Time, error)
}

// IMUSource reads the ICM-20948, optionally waiting for its data-ready edge
// before each read.
type IMUSource struct {
	dev  imuReader
	line edgeWaiter

	closers []func() error
}

func NewIMUSource(dev imuReader, line edgeWaiter) *IMUSource {
	return &IMUSource{dev: dev, line: line}
}

type IMUOptions struct {
	Bus      int
	Address  uint16
	Interval time.Duration
	// DataReadyGPIO is the BCM pin wired to INT1; 0 disables edge pacing.
	DataReadyGPIO int
}

// OpenIMU opens the bus, initializes the sensor and, if configured, the
// data-ready line. A data-ready line that cannot be opened falls back to
// ticker pacing.
func OpenIMU(opts IMUOptions) (*IMUSource, error) {
	if opts.Address == 0 {
		opts.Address = icm20948.DefaultAddress()
	}
	bus, err := i2c.OpenNumber(opts.Bus)
	if err != nil {
		return nil, fmt.Errorf("ahrs: open %s: %w", i2c.Path(opts.Bus), err)
	}

	useDRDY := opts.DataReadyGPIO > 0
	dev, err := icm20948.New(bus.Dev(opts.Address), icm20948.Options{
		RateHz:    icm20948.RateFor(opts.Interval),
		DataReady: useDRDY,
	})
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("ahrs: imu init: %w", err)
	}
	log.Printf("ahrs: icm20948 at %s addr=0x%02X rate=%dHz", bus, opts.Address, dev.RateHz())

	src := &IMUSource{dev: dev, closers: []func() error{bus.Close}}
	if useDRDY {
		line, err := drdy.Open(opts.DataReadyGPIO)
		if err != nil {
			log.Printf("ahrs: data-ready gpio %d unavailable, using ticker: %v", opts.DataReadyGPIO, err)
		} else {
			src.line = line
			src.closers = append([]func() error{line.Close}, src.closers...)
		}
	}
	return src, nil
}

func (s *IMUSource) Next(ctx context.Context) (fusion.Sample, error) {
	if s.line != nil {
		if _, err := s.line.Wait(ctx); err != nil {
			return fusion.Sample{}, err
		}
	}
	r, err := s.dev.Read()
	if err != nil {
		return fusion.Sample{}, err
	}
	return r.Sample, nil
}

func (s *IMUSource) SelfPaced() bool {
	return s.line != nil
}

func (s *IMUSource) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
