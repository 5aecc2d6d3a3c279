package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"imufusion/internal/fusion"
)

type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Source replays recorded samples with their relative timing.
//
// START markers reset the origin. speed: 1.0 = real time, 2.0 = half waits.
// Next returns io.EOF at the end of the log unless loop is set.
type Source struct {
	records []Record
	speed   float64
	loop    bool
	sleeper Sleeper

	i        int
	origin   time.Duration
	lastAt   time.Duration
	haveLast bool
}

func NewSource(records []Record, speed float64, loop bool, sleeper Sleeper) (*Source, error) {
	if speed <= 0 {
		return nil, fmt.Errorf("replay: speed must be > 0")
	}
	n := 0
	for _, r := range records {
		if !r.Start {
			n++
		}
	}
	if n == 0 {
		return nil, errors.New("replay: no samples")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	return &Source{records: records, speed: speed, loop: loop, sleeper: sleeper}, nil
}

func (s *Source) Next(ctx context.Context) (fusion.Sample, error) {
	for {
		if s.i >= len(s.records) {
			if !s.loop {
				return fusion.Sample{}, io.EOF
			}
			s.i = 0
			s.origin, s.lastAt, s.haveLast = 0, 0, false
		}
		r := s.records[s.i]
		s.i++
		if r.Start {
			s.origin = r.At
			s.lastAt = 0
			s.haveLast = false
			continue
		}

		at := r.At - s.origin
		if at < 0 {
			at = 0
		}
		if s.haveLast {
			wait := time.Duration(float64(at-s.lastAt) / s.speed)
			if wait > 0 {
				if err := s.sleeper.Sleep(ctx, wait); err != nil {
					return fusion.Sample{}, err
				}
			}
		}
		s.lastAt = at
		s.haveLast = true
		return r.Sample, nil
	}
}

// SelfPaced reports that Next already waits for the recorded cadence.
func (s *Source) SelfPaced() bool { return true }
