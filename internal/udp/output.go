package udp

import (
	"context"
	"log"
	"time"

	"imufusion/internal/ahrs"
	"imufusion/internal/gdl90"
)

type sender interface {
	Send(payload []byte) error
}

// Output streams attitude to an EFB: heartbeats and the device ID once per
// second, AHRS reports every interval.
type Output struct {
	dst      sender
	snapshot func() ahrs.Snapshot
	interval time.Duration
	now      func() time.Time
}

func NewOutput(dst sender, snapshot func() ahrs.Snapshot, interval time.Duration) *Output {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Output{dst: dst, snapshot: snapshot, interval: interval, now: time.Now}
}

// AttitudeFromSnapshot maps the estimator output onto the GDL90 AHRS fields.
// Yaw is offered as heading only when the snapshot carries a quaternion; the
// complementary filter's yaw is an unbounded gyro integral.
func AttitudeFromSnapshot(s ahrs.Snapshot) gdl90.Attitude {
	return gdl90.Attitude{
		Valid:        s.Valid,
		RollDeg:      s.Attitude.Roll,
		PitchDeg:     s.Attitude.Pitch,
		HeadingDeg:   s.Attitude.Yaw,
		HeadingValid: s.Quaternion != nil,
		YawRateDps:   s.Rate.Yaw,
		GLoad:        s.GLoad,
	}
}

// Frames returns the AHRS report frames for one snapshot.
func Frames(s ahrs.Snapshot) [][]byte {
	att := AttitudeFromSnapshot(s)
	return [][]byte{
		gdl90.ForeFlightAHRSFrame(att),
		gdl90.AHRSGDL90LEFrame(att),
	}
}

func (o *Output) Run(ctx context.Context) {
	tick := time.NewTicker(o.interval)
	defer tick.Stop()

	var lastHeartbeat time.Time
	var failing bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		snap := o.snapshot()
		var frames [][]byte
		now := o.now()
		if now.Sub(lastHeartbeat) >= time.Second {
			lastHeartbeat = now
			frames = append(frames,
				gdl90.HeartbeatFrameAt(now, !snap.Valid),
				gdl90.StratuxHeartbeatFrame(snap.Valid),
				gdl90.ForeFlightIDFrame("", ""),
			)
		}
		frames = append(frames, Frames(snap)...)

		for _, f := range frames {
			if err := o.dst.Send(f); err != nil {
				if !failing {
					log.Printf("udp: send failed: %v", err)
				}
				failing = true
				break
			}
			if failing {
				log.Printf("udp: send recovered")
			}
			failing = false
		}
	}
}
