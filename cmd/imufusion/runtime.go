package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"imufusion/internal/ahrs"
	"imufusion/internal/config"
	"imufusion/internal/fusion"
	"imufusion/internal/metrics"
	"imufusion/internal/replay"
	"imufusion/internal/sim"
	"imufusion/internal/udp"
	"imufusion/internal/web"
)

// streamMinGap caps browser stream updates at 20 Hz.
const streamMinGap = 50 * time.Millisecond

type runtime struct {
	cfg        config.Config
	configPath string

	svc      *ahrs.Service
	metrics  *metrics.Metrics
	attitude *web.AttitudeBroadcaster
	logs     *web.LogBuffer
	out      *udp.Broadcaster

	closers []func() error
}

// openIMU is swapped in tests so no hardware is touched.
var openIMU = func(opts ahrs.IMUOptions) (ahrs.Source, func() error, error) {
	src, err := ahrs.OpenIMU(opts)
	if err != nil {
		return nil, nil, err
	}
	return src, src.Close, nil
}

func serviceConfig(f config.FusionConfig) (ahrs.Config, error) {
	kind, err := fusion.ParseInvSqrtKind(f.InvSqrt)
	if err != nil {
		return ahrs.Config{}, err
	}
	return ahrs.Config{
		Filter:              f.Filter,
		Interval:            f.SampleInterval,
		ComplementaryWeight: f.ComplementaryWeight,
		RateWeight:          f.RateWeight,
		Beta:                f.Beta,
		InvSqrt:             kind,
	}, nil
}

// buildSource returns the configured sample source and its cleanup, if any.
func buildSource(cfg config.Config) (ahrs.Source, func() error, error) {
	switch cfg.IMU.Source {
	case config.SourceReplay:
		recs, err := replay.Load(cfg.Replay.Path)
		if err != nil {
			return nil, nil, err
		}
		src, err := replay.NewSource(recs, cfg.Replay.Speed, cfg.Replay.Loop, nil)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("replay: %s (%d records, speed=%v loop=%v)", cfg.Replay.Path, len(recs), cfg.Replay.Speed, cfg.Replay.Loop)
		return src, nil, nil
	case config.SourceSim:
		s := cfg.Sim
		log.Printf("sim: rates roll=%v pitch=%v yaw=%v deg/s noise=%v", s.RollRateDps, s.PitchRateDps, s.YawRateDps, s.NoiseDps)
		// Gyro x drives pitch and gyro y drives roll.
		return sim.NewMotion(sim.Options{
			Interval: cfg.Fusion.SampleInterval.Seconds(),
			RateX:    s.PitchRateDps,
			RateY:    s.RollRateDps,
			RateZ:    s.YawRateDps,
			NoiseDps: s.NoiseDps,
			Seed:     s.Seed,
		}), nil, nil
	default:
		return openIMU(ahrs.IMUOptions{
			Bus:           cfg.IMU.I2CBus,
			Address:       cfg.IMU.Address,
			Interval:      cfg.Fusion.SampleInterval,
			DataReadyGPIO: cfg.IMU.DataReadyGPIO,
		})
	}
}

func newRuntime(cfg config.Config, configPath string, logs *web.LogBuffer) (*runtime, error) {
	rt := &runtime{
		cfg:        cfg,
		configPath: configPath,
		metrics:    metrics.New(),
		attitude:   web.NewAttitudeBroadcaster(streamMinGap),
		logs:       logs,
	}

	src, closeSrc, err := buildSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if closeSrc != nil {
		rt.closers = append(rt.closers, closeSrc)
	}

	scfg, err := serviceConfig(cfg.Fusion)
	if err != nil {
		rt.Close()
		return nil, err
	}
	svc, err := ahrs.New(scfg, src)
	if err != nil {
		rt.Close()
		return nil, err
	}
	svc.SetMetrics(rt.metrics)
	svc.OnUpdate(rt.attitude.Publish)
	rt.svc = svc

	if cfg.Record.Enable {
		w, err := replay.CreateWriter(cfg.Record.Path)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("record: %w", err)
		}
		svc.SetRecorder(w)
		rt.closers = append(rt.closers, w.Close)
		log.Printf("record: writing samples to %s", cfg.Record.Path)
	}

	if cfg.Output.Dest != "" {
		b, err := udp.NewBroadcaster(cfg.Output.Dest)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.out = b
		rt.closers = append(rt.closers, b.Close)
	}
	return rt, nil
}

// Run blocks until ctx is done or the estimator stops on its own (a
// non-looping replay reaching its end). A web server failure is returned.
func (rt *runtime) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		if err := rt.svc.Run(ctx); err != nil {
			errCh <- err
		}
	}()

	if rt.out != nil {
		log.Printf("udp: dest=%s interval=%s", rt.cfg.Output.Dest, rt.cfg.Output.Interval)
		o := udp.NewOutput(rt.out, rt.svc.Snapshot, rt.cfg.Output.Interval)
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Run(ctx)
		}()
	}

	if rt.cfg.Web.Listen != "" {
		h := web.Handler(web.Options{
			Service:    rt.svc,
			Attitude:   rt.attitude,
			ConfigPath: rt.configPath,
			Logs:       rt.logs,
			Metrics:    rt.metrics.Handler(),
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := web.Serve(ctx, rt.cfg.Web.Listen, h); err != nil {
				select {
				case errCh <- fmt.Errorf("web: %w", err):
				default:
				}
				cancel()
			}
		}()
	}

	wg.Wait()
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func (rt *runtime) Close() error {
	if rt == nil {
		return nil
	}
	var errs []error
	// Reverse order of acquisition.
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
