// Package ahrs runs the attitude filters against a sample source on a fixed
// tick and publishes the result.
package ahrs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"imufusion/internal/fusion"
	"imufusion/internal/metrics"
)

const (
	FilterComplementary = "complementary"
	FilterMadgwick      = "madgwick"
)

// Source yields one sample per call. Implementations that block until a
// sample is due (data-ready line, replay clock) also implement SelfPaced.
type Source interface {
	Next(ctx context.Context) (fusion.Sample, error)
}

type selfPacer interface {
	SelfPaced() bool
}

// Recorder receives every sample fed to the filters.
type Recorder interface {
	WriteSample(now time.Time, s fusion.Sample) error
}

type Config struct {
	Filter   string
	Interval time.Duration

	// Nil keeps the filter default.
	ComplementaryWeight *float64
	RateWeight          *float64
	Beta                *float64

	InvSqrt fusion.InvSqrtKind
}

type Snapshot struct {
	Valid      bool               `json:"valid"`
	Filter     string             `json:"filter"`
	Attitude   fusion.EulerAngles `json:"attitude"`
	Rate       fusion.EulerAngles `json:"rate"`
	Quaternion *fusion.Quaternion `json:"quaternion,omitempty"`
	// GLoad is the accel magnitude of the last sample, in g.
	GLoad     float64   `json:"g_load"`
	Ticks     uint64    `json:"ticks"`
	Skipped   uint64    `json:"skipped_corrections"`
	Errors    uint64    `json:"source_errors"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Settings is the runtime-tunable part of the estimator.
type Settings struct {
	Filter              string  `json:"filter"`
	SampleInterval      string  `json:"sample_interval"`
	ComplementaryWeight float64 `json:"complementary_weight"`
	RateWeight          float64 `json:"rate_weight"`
	Beta                float64 `json:"beta"`
	InvSqrt             string  `json:"inv_sqrt"`
}

// SettingsUpdate carries the fields to change; nil fields are left alone.
type SettingsUpdate struct {
	Filter              *string  `json:"filter,omitempty"`
	ComplementaryWeight *float64 `json:"complementary_weight,omitempty"`
	RateWeight          *float64 `json:"rate_weight,omitempty"`
	Beta                *float64 `json:"beta,omitempty"`
	InvSqrt             *string  `json:"inv_sqrt,omitempty"`
}

type Service struct {
	src      Source
	interval time.Duration

	// mu guards the filters, their accumulators and the snapshot. The tick
	// loop and settings changes both take it.
	mu       sync.RWMutex
	filter   string
	comp     *fusion.ComplementaryFilter
	rate     *fusion.RateFilter
	quat     *fusion.QuaternionFilter
	attitude fusion.EulerAngles
	rates    fusion.EulerAngles
	snap     Snapshot

	rec     Recorder
	metrics *metrics.Metrics
	publish func(Snapshot)

	now func() time.Time
}

// sleep is swapped in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func New(cfg Config, src Source) (*Service, error) {
	if src == nil {
		return nil, fmt.Errorf("ahrs: source is nil")
	}
	filter, err := normalizeFilter(cfg.Filter)
	if err != nil {
		return nil, err
	}
	clk, err := fusion.NewClock(cfg.Interval.Seconds())
	if err != nil {
		return nil, fmt.Errorf("ahrs: %w", err)
	}

	s := &Service{
		src:      src,
		interval: cfg.Interval,
		filter:   filter,
		comp:     fusion.NewComplementaryFilter(clk),
		rate:     fusion.NewRateFilter(),
		quat:     fusion.NewQuaternionFilter(clk),
		now:      func() time.Time { return time.Now().UTC() },
	}
	if cfg.ComplementaryWeight != nil && !s.comp.SetWeight(*cfg.ComplementaryWeight) {
		return nil, fmt.Errorf("ahrs: complementary weight %v rejected", *cfg.ComplementaryWeight)
	}
	if cfg.RateWeight != nil && !s.rate.SetWeight(*cfg.RateWeight) {
		return nil, fmt.Errorf("ahrs: rate weight %v rejected", *cfg.RateWeight)
	}
	if cfg.Beta != nil {
		if !validGain(*cfg.Beta) {
			return nil, fmt.Errorf("ahrs: beta %v rejected", *cfg.Beta)
		}
		s.quat.SetGain(*cfg.Beta)
	}
	s.quat.SetInvSqrt(cfg.InvSqrt)
	s.resetLocked()
	return s, nil
}

// SetRecorder must be called before Run.
func (s *Service) SetRecorder(r Recorder) {
	s.rec = r
}

// SetMetrics must be called before Run.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// OnUpdate registers fn to receive every published snapshot. It is called
// from the tick loop and must not block. Must be called before Run.
func (s *Service) OnUpdate(fn func(Snapshot)) {
	s.publish = fn
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	if snap.Quaternion != nil {
		q := *snap.Quaternion
		snap.Quaternion = &q
	}
	return snap
}

// Run ticks until ctx is done or a non-looping source is exhausted.
// Source errors are recorded and the loop carries on.
func (s *Service) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("ahrs: service is nil")
	}
	var tick <-chan time.Time
	if p, ok := s.src.(selfPacer); !ok || !p.SelfPaced() {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		sample, err := s.src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				log.Printf("ahrs: source exhausted after %d ticks", s.Snapshot().Ticks)
				return nil
			}
			s.sourceError(err)
			if tick == nil {
				// Self-paced sources fail fast; don't spin.
				if sleep(ctx, s.interval) != nil {
					return nil
				}
			}
			continue
		}
		s.update(sample)
	}
}

func (s *Service) update(sample fusion.Sample) {
	now := s.now()

	s.mu.Lock()
	skipped := false
	var q *fusion.Quaternion
	switch s.filter {
	case FilterComplementary:
		s.comp.Update(&sample, &s.attitude)
		skipped = sample.Ax == 0 && sample.Ay == 0 && sample.Az == 0
	default:
		skipped = s.quat.Update(&sample, &s.attitude) == fusion.SkippedZeroAccel
		v := s.quat.Quaternion()
		q = &v
	}
	s.rate.Update(&sample, &s.rates)

	s.snap.Valid = true
	s.snap.Filter = s.filter
	s.snap.Attitude = s.attitude
	s.snap.Rate = s.rates
	s.snap.Quaternion = q
	s.snap.GLoad = math.Sqrt(sample.Ax*sample.Ax + sample.Ay*sample.Ay + sample.Az*sample.Az)
	s.snap.Ticks++
	if skipped {
		s.snap.Skipped++
	}
	s.snap.LastError = ""
	s.snap.UpdatedAt = now
	snap := s.snap
	s.mu.Unlock()

	if s.rec != nil {
		if err := s.rec.WriteSample(now, sample); err != nil {
			log.Printf("ahrs: recording disabled: %v", err)
			s.rec = nil
		}
	}
	normErr := 0.0
	if q != nil {
		normErr = math.Abs(q.NormSquared() - 1)
	}
	s.metrics.Tick(snap.Attitude.Roll, snap.Attitude.Pitch, snap.Attitude.Yaw, normErr, skipped)
	if s.publish != nil {
		s.publish(snap)
	}
}

func (s *Service) sourceError(err error) {
	s.mu.Lock()
	first := s.snap.LastError == ""
	s.snap.Valid = false
	s.snap.Errors++
	s.snap.LastError = err.Error()
	s.snap.UpdatedAt = s.now()
	s.mu.Unlock()

	// Log transitions only; a dead sensor would otherwise flood the log.
	if first {
		log.Printf("ahrs: source error: %v", err)
	}
	s.metrics.SourceError()
}

// Reset returns every estimator to its initial state: identity quaternion,
// zero angles and zero rates. Counters are kept.
func (s *Service) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
}

func (s *Service) resetLocked() {
	s.quat.Reset()
	s.attitude = fusion.EulerAngles{}
	s.rates = fusion.EulerAngles{}
	s.snap.Filter = s.filter
	s.snap.Attitude = s.attitude
	s.snap.Rate = s.rates
	s.snap.Quaternion = nil
	if s.filter == FilterMadgwick {
		q := s.quat.Quaternion()
		s.snap.Quaternion = &q
	}
}

func (s *Service) SetComplementaryWeight(a float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comp.SetWeight(a)
}

func (s *Service) SetRateWeight(a float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate.SetWeight(a)
}

// SetGain rejects negative and non-finite beta.
func (s *Service) SetGain(beta float64) bool {
	if !validGain(beta) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quat.SetGain(beta)
	return true
}

func (s *Service) SetInvSqrt(kind fusion.InvSqrtKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quat.SetInvSqrt(kind)
}

func (s *Service) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Settings{
		Filter:              s.filter,
		SampleInterval:      s.interval.String(),
		ComplementaryWeight: s.comp.Weight().A(),
		RateWeight:          s.rate.Weight().A(),
		Beta:                s.quat.Gain(),
		InvSqrt:             s.quat.InvSqrt().String(),
	}
}

// ApplySettings validates every field first and changes nothing if any is
// rejected. Switching filters resets the estimator state.
func (s *Service) ApplySettings(u SettingsUpdate) error {
	if s == nil {
		return fmt.Errorf("ahrs: service is nil")
	}
	var filter string
	if u.Filter != nil {
		f, err := normalizeFilter(*u.Filter)
		if err != nil {
			return err
		}
		filter = f
	}
	if u.ComplementaryWeight != nil && !validWeight(*u.ComplementaryWeight) {
		return fmt.Errorf("ahrs: complementary_weight must be in [0,1)")
	}
	if u.RateWeight != nil && !validWeight(*u.RateWeight) {
		return fmt.Errorf("ahrs: rate_weight must be in [0,1)")
	}
	if u.Beta != nil && !validGain(*u.Beta) {
		return fmt.Errorf("ahrs: beta must be finite and >= 0")
	}
	var kind fusion.InvSqrtKind
	if u.InvSqrt != nil {
		k, err := fusion.ParseInvSqrtKind(*u.InvSqrt)
		if err != nil {
			return fmt.Errorf("ahrs: %w", err)
		}
		kind = k
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ComplementaryWeight != nil {
		s.comp.SetWeight(*u.ComplementaryWeight)
	}
	if u.RateWeight != nil {
		s.rate.SetWeight(*u.RateWeight)
	}
	if u.Beta != nil {
		s.quat.SetGain(*u.Beta)
	}
	if u.InvSqrt != nil {
		s.quat.SetInvSqrt(kind)
	}
	if u.Filter != nil && filter != s.filter {
		s.filter = filter
		s.resetLocked()
		log.Printf("ahrs: filter switched to %s", filter)
	}
	return nil
}

func normalizeFilter(name string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(name)); f {
	case "", FilterMadgwick:
		return FilterMadgwick, nil
	case FilterComplementary:
		return f, nil
	default:
		return "", fmt.Errorf("ahrs: unknown filter %q", name)
	}
}

func validWeight(a float64) bool {
	return !math.IsNaN(a) && a >= 0 && a < 1
}

func validGain(beta float64) bool {
	return !math.IsNaN(beta) && !math.IsInf(beta, 0) && beta >= 0
}
