package framesync

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/retrohost/retrohost/pkg/libretro"
)

type fakeClock struct {
	now       time.Time
	oversleep time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d + c.oversleep)
}
func (c *fakeClock) work(d time.Duration) { c.now = c.now.Add(d) }

func TestPrepareBadFps(t *testing.T) {
	s := New(time.Millisecond, WithClock(&fakeClock{now: time.Unix(1, 0)}))
	for _, fps := range []float64{0, -60, math.NaN(), math.Inf(1)} {
		if err := s.Prepare(fps); !errors.Is(err, libretro.ErrValidation) {
			t.Errorf("fps %v should fail, %v", fps, err)
		}
	}
}

func TestPacing(t *testing.T) {
	tests := []struct {
		name      string
		fps       float64
		tolerance time.Duration
		oversleep time.Duration
		work      func(frame int) time.Duration
	}{
		{name: "ideal", fps: 60, tolerance: 2 * time.Millisecond},
		{name: "oversleep", fps: 60, tolerance: 2 * time.Millisecond, oversleep: 300 * time.Microsecond},
		{name: "big oversleep", fps: 60.0998, tolerance: 2 * time.Millisecond, oversleep: 5 * time.Millisecond},
		{
			name: "busy frames", fps: 50, tolerance: 5 * time.Millisecond,
			work: func(i int) time.Duration { return time.Duration(i%7) * time.Millisecond },
		},
		{
			name: "slow frame", fps: 60, tolerance: time.Millisecond,
			work: func(i int) time.Duration {
				if i == 10 {
					return 50 * time.Millisecond
				}
				return 0
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Unix(100, 0), oversleep: test.oversleep}
			s := New(test.tolerance, WithClock(clock))
			target := time.Duration(float64(time.Second) / test.fps)

			for i := range 300 {
				if err := s.Prepare(test.fps); err != nil {
					t.Fatalf("prepare: %v", err)
				}
				var work time.Duration
				if test.work != nil {
					work = test.work(i)
					clock.work(work)
				}
				slept := s.SyncNow()
				if slept < 0 {
					t.Fatalf("frame %v: negative sleep %v", i, slept)
				}
				if work > 0 {
					continue
				}
				if diff := slept - target; diff > test.tolerance || diff < -test.tolerance {
					t.Errorf("frame %v: slept %v, target %v, tolerance %v", i, slept, target, test.tolerance)
				}
			}
		})
	}
}

func TestNoDrift(t *testing.T) {
	clock := &fakeClock{now: time.Unix(100, 0), oversleep: 400 * time.Microsecond}
	s := New(2*time.Millisecond, WithClock(clock))
	start := clock.now

	const frames = 600
	for range frames {
		_ = s.Prepare(60)
		s.SyncNow()
	}
	elapsed := clock.now.Sub(start)
	ideal := frames * s.Target()
	// only the first frame oversleeps without a correction
	if diff := elapsed - ideal; diff < 0 || diff > time.Millisecond {
		t.Errorf("drift %v after %v frames", diff, frames)
	}
}

func TestCatchUp(t *testing.T) {
	clock := &fakeClock{now: time.Unix(100, 0)}
	s := New(time.Millisecond, WithClock(clock))

	_ = s.Prepare(60)
	clock.work(30 * time.Millisecond)
	if slept := s.SyncNow(); slept != 0 {
		t.Errorf("a late frame shouldn't sleep, slept %v", slept)
	}
	_ = s.Prepare(60)
	if adj := s.Adjustment(); adj != time.Millisecond {
		t.Errorf("correction should be clamped, have %v", adj)
	}
	if slept := s.SyncNow(); slept != s.Target()-time.Millisecond {
		t.Errorf("wrong catch-up sleep %v", slept)
	}
}

func TestReset(t *testing.T) {
	clock := &fakeClock{now: time.Unix(100, 0)}
	s := New(time.Millisecond, WithClock(clock))
	_ = s.Prepare(60)
	s.SyncNow()
	clock.work(time.Second)
	s.Reset()
	_ = s.Prepare(60)
	if s.Adjustment() != 0 {
		t.Errorf("a pause shouldn't be corrected")
	}
	if s.SyncNow() != s.Target() {
		t.Errorf("should sleep a full frame")
	}
}
