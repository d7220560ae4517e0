// Package framesync paces a frame loop to the frame rate of a core.
package framesync

import (
	"fmt"
	"math"
	"time"

	"github.com/retrohost/retrohost/pkg/libretro"
)

type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// FrameSync sleeps the rest of every frame.
//
// The sleep is corrected by how much the previous frame went off its
// plan (scheduler oversleep, slow frames), the correction is clamped
// to the tolerance so a single long frame is caught up over several
// frames instead of skipping the sleep of the next one entirely.
//
//	Prepare(fps) -> run the frame -> SyncNow()
type FrameSync struct {
	clock     Clock
	tolerance time.Duration

	target   time.Duration
	adj      time.Duration
	prepared time.Time
	last     time.Time
}

type Option func(*FrameSync)

func WithClock(c Clock) Option { return func(s *FrameSync) { s.clock = c } }

// New makes a frame sync with the max correction per frame.
func New(tolerance time.Duration, opts ...Option) *FrameSync {
	s := &FrameSync{clock: systemClock{}, tolerance: max(tolerance, 0)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Prepare starts a frame of 1/fps seconds.
func (s *FrameSync) Prepare(fps float64) error {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return fmt.Errorf("%w: fps %v", libretro.ErrValidation, fps)
	}
	now := s.clock.Now()
	target := time.Duration(float64(time.Second) / fps)
	if !s.last.IsZero() && target == s.target {
		// the part of the previous frame which is already corrected
		// doesn't count twice
		delta := now.Sub(s.last) - (s.target - s.adj)
		s.adj = min(max(delta, -s.tolerance), s.tolerance)
	} else {
		s.adj = 0
	}
	s.target = target
	s.prepared = now
	return nil
}

// SyncNow sleeps the rest of the frame started by Prepare and returns
// the slept time, which is never negative.
func (s *FrameSync) SyncNow() time.Duration {
	if s.prepared.IsZero() {
		return 0
	}
	work := s.clock.Now().Sub(s.prepared)
	sleep := max(s.target-work-s.adj, 0)
	if sleep > 0 {
		s.clock.Sleep(sleep)
	}
	s.last = s.prepared
	return sleep
}

// Reset forgets the previous frames, e.g. after a pause.
func (s *FrameSync) Reset() {
	s.adj = 0
	s.last = time.Time{}
	s.prepared = time.Time{}
}

func (s *FrameSync) Target() time.Duration { return s.target }

// Adjustment is the correction of the current frame.
func (s *FrameSync) Adjustment() time.Duration { return s.adj }
