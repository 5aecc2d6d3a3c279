package web

import (
	"sync"
	"time"

	"imufusion/internal/ahrs"
	"imufusion/internal/fusion"
)

// AttitudeSnapshot is the JSON view of one estimator update.
type AttitudeSnapshot struct {
	Valid  bool   `json:"valid"`
	Filter string `json:"filter"`

	RollDeg  float64 `json:"roll_deg"`
	PitchDeg float64 `json:"pitch_deg"`
	YawDeg   float64 `json:"yaw_deg"`

	RollRateDps  float64 `json:"roll_rate_dps"`
	PitchRateDps float64 `json:"pitch_rate_dps"`
	YawRateDps   float64 `json:"yaw_rate_dps"`

	Quaternion *fusion.Quaternion `json:"quaternion,omitempty"`
	GLoad      float64            `json:"g_load"`

	Ticks              uint64 `json:"ticks"`
	SkippedCorrections uint64 `json:"skipped_corrections"`
	SourceErrors       uint64 `json:"source_errors"`
	LastError          string `json:"last_error,omitempty"`
	LastUpdateUTC      string `json:"last_update_utc,omitempty"`
}

func attitudeFromSnapshot(s ahrs.Snapshot) AttitudeSnapshot {
	out := AttitudeSnapshot{
		Valid:              s.Valid,
		Filter:             s.Filter,
		RollDeg:            s.Attitude.Roll,
		PitchDeg:           s.Attitude.Pitch,
		YawDeg:             s.Attitude.Yaw,
		RollRateDps:        s.Rate.Roll,
		PitchRateDps:       s.Rate.Pitch,
		YawRateDps:         s.Rate.Yaw,
		Quaternion:         s.Quaternion,
		GLoad:              s.GLoad,
		Ticks:              s.Ticks,
		SkippedCorrections: s.Skipped,
		SourceErrors:       s.Errors,
		LastError:          s.LastError,
	}
	if !s.UpdatedAt.IsZero() {
		out.LastUpdateUTC = s.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return out
}

// AttitudeBroadcaster fans estimator updates out to stream listeners.
// It keeps the most recent value so new subscribers get an immediate sample,
// and drops updates for subscribers that fall behind.
type AttitudeBroadcaster struct {
	mu       sync.RWMutex
	subs     map[int]chan AttitudeSnapshot
	nextID   int
	last     AttitudeSnapshot
	haveLast bool

	// minGap throttles publishing; the tick loop can run far faster than a
	// browser wants to redraw.
	minGap    time.Duration
	lastSent  time.Time
	publishMu sync.Mutex
}

func NewAttitudeBroadcaster(minGap time.Duration) *AttitudeBroadcaster {
	return &AttitudeBroadcaster{
		subs:   make(map[int]chan AttitudeSnapshot),
		minGap: minGap,
	}
}

func (b *AttitudeBroadcaster) Subscribe(buffer int) (int, <-chan AttitudeSnapshot) {
	if b == nil {
		return 0, nil
	}
	if buffer <= 0 {
		buffer = 2
	}
	ch := make(chan AttitudeSnapshot, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	last := b.last
	have := b.haveLast
	b.mu.Unlock()
	if have {
		select {
		case ch <- last:
		default:
		}
	}
	return id, ch
}

func (b *AttitudeBroadcaster) Unsubscribe(id int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	ch, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish is suitable as an ahrs.Service OnUpdate hook.
func (b *AttitudeBroadcaster) Publish(s ahrs.Snapshot) {
	if b == nil {
		return
	}
	now := time.Now()
	b.publishMu.Lock()
	if b.minGap > 0 && !b.lastSent.IsZero() && now.Sub(b.lastSent) < b.minGap {
		b.publishMu.Unlock()
		return
	}
	b.lastSent = now
	b.publishMu.Unlock()

	att := attitudeFromSnapshot(s)
	b.mu.Lock()
	b.last = att
	b.haveLast = true
	for _, ch := range b.subs {
		select {
		case ch <- att:
		default:
		}
	}
	b.mu.Unlock()
}
