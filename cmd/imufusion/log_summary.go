package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"imufusion/internal/ahrs"
	"imufusion/internal/config"
	"imufusion/internal/fusion"
	"imufusion/internal/replay"
)

type logSummary struct {
	Segments     int
	Samples      int
	MaxDuration  time.Duration
	MeanInterval time.Duration
	MeanAccelG   float64
	MeanGyro     [3]float64
	ZeroAccel    int
}

func summarizeSampleLog(records []replay.Record) logSummary {
	s := logSummary{}
	var prev time.Duration
	havePrev := false
	var gaps time.Duration
	nGaps := 0
	var accelSum float64

	for _, r := range records {
		if r.Start {
			s.Segments++
			havePrev = false
			continue
		}
		if s.Segments == 0 {
			s.Segments = 1
		}
		s.Samples++
		if r.At > s.MaxDuration {
			s.MaxDuration = r.At
		}
		if havePrev && r.At > prev {
			gaps += r.At - prev
			nGaps++
		}
		prev = r.At
		havePrev = true

		x := r.Sample
		if x.Ax == 0 && x.Ay == 0 && x.Az == 0 {
			s.ZeroAccel++
		}
		accelSum += math.Sqrt(x.Ax*x.Ax + x.Ay*x.Ay + x.Az*x.Az)
		s.MeanGyro[0] += x.Gx
		s.MeanGyro[1] += x.Gy
		s.MeanGyro[2] += x.Gz
	}
	if s.Samples > 0 {
		n := float64(s.Samples)
		s.MeanAccelG = accelSum / n
		for i := range s.MeanGyro {
			s.MeanGyro[i] /= n
		}
	}
	if nGaps > 0 {
		s.MeanInterval = gaps / time.Duration(nGaps)
	}
	return s
}

// recordSource feeds samples back-to-back, skipping START markers.
type recordSource struct {
	records []replay.Record
	i       int
}

func (r *recordSource) Next(ctx context.Context) (fusion.Sample, error) {
	for r.i < len(r.records) {
		rec := r.records[r.i]
		r.i++
		if !rec.Start {
			return rec.Sample, nil
		}
	}
	return fusion.Sample{}, io.EOF
}

func (r *recordSource) SelfPaced() bool { return true }

// runOffline pushes every sample through the configured estimator without
// waiting and returns the final state.
func runOffline(records []replay.Record, f config.FusionConfig) (ahrs.Snapshot, error) {
	scfg, err := serviceConfig(f)
	if err != nil {
		return ahrs.Snapshot{}, err
	}
	svc, err := ahrs.New(scfg, &recordSource{records: records})
	if err != nil {
		return ahrs.Snapshot{}, err
	}
	if err := svc.Run(context.Background()); err != nil {
		return ahrs.Snapshot{}, err
	}
	return svc.Snapshot(), nil
}

func printLogSummary(w io.Writer, path string, f config.FusionConfig) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	recs, err := replay.Load(path)
	if err != nil {
		return err
	}
	s := summarizeSampleLog(recs)
	snap, err := runOffline(recs, f)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "segments: %d\n", s.Segments)
	fmt.Fprintf(w, "samples: %d\n", s.Samples)
	fmt.Fprintf(w, "zero_accel_samples: %d\n", s.ZeroAccel)
	fmt.Fprintf(w, "max_duration: %s\n", s.MaxDuration)
	fmt.Fprintf(w, "mean_interval: %s\n", s.MeanInterval)
	fmt.Fprintf(w, "mean_accel_g: %.4f\n", s.MeanAccelG)
	fmt.Fprintf(w, "mean_gyro_dps: %.4f %.4f %.4f\n", s.MeanGyro[0], s.MeanGyro[1], s.MeanGyro[2])
	fmt.Fprintf(w, "filter: %s\n", snap.Filter)
	fmt.Fprintf(w, "final_roll_deg: %.2f\n", snap.Attitude.Roll)
	fmt.Fprintf(w, "final_pitch_deg: %.2f\n", snap.Attitude.Pitch)
	fmt.Fprintf(w, "final_yaw_deg: %.2f\n", snap.Attitude.Yaw)
	fmt.Fprintf(w, "skipped_corrections: %d\n", snap.Skipped)
	return nil
}
