// Package drdy paces sample reads off an IMU data-ready interrupt line.
package drdy

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Wait after Close.
var ErrClosed = errors.New("drdy: line closed")

// Line delivers one event per rising edge of the interrupt pin.
//
// Edges that arrive while nobody is waiting are coalesced: the reader only
// ever needs the most recent sample.
type Line struct {
	events chan time.Time
	done   chan struct{}

	closeOnce sync.Once
	closeFn   func() error
	closeErr  error
}

func newLine(closeFn func() error) *Line {
	return &Line{
		events:  make(chan time.Time, 1),
		done:    make(chan struct{}),
		closeFn: closeFn,
	}
}

// edge records an interrupt. Safe to call from the watcher goroutine.
func (l *Line) edge(at time.Time) {
	select {
	case l.events <- at:
		return
	default:
	}
	// Replace the stale pending edge with the new one.
	select {
	case <-l.events:
	default:
	}
	select {
	case l.events <- at:
	default:
	}
}

// Wait blocks until the next edge, ctx is done, or the line is closed.
func (l *Line) Wait(ctx context.Context) (time.Time, error) {
	select {
	case at := <-l.events:
		return at, nil
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	case <-l.done:
		return time.Time{}, ErrClosed
	}
}

func (l *Line) Close() error {
	if l == nil {
		return nil
	}
	l.closeOnce.Do(func() {
		close(l.done)
		if l.closeFn != nil {
			l.closeErr = l.closeFn()
		}
	})
	return l.closeErr
}

// Open requests BCM GPIO pin as an input with rising-edge detection.
func Open(pin int) (*Line, error) {
	return openFn(pin)
}
