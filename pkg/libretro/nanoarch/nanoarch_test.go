package nanoarch

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/retrohost/retrohost/pkg/libretro"
	"github.com/retrohost/retrohost/pkg/libretro/abi"
	"github.com/retrohost/retrohost/pkg/libretro/core"
	"github.com/retrohost/retrohost/pkg/logger"
)

func TestRegistry(t *testing.T) {
	r := newRegistry[string]()
	if _, ok := r.lookup(1); ok {
		t.Errorf("empty registry shouldn't find anything")
	}
	if err := r.enter(1, "a"); !errors.Is(err, libretro.ErrLifecycle) {
		t.Errorf("unknown session should fail: %v", err)
	}

	r.add("a")
	// the only session takes calls from any thread
	if s, ok := r.lookup(42); !ok || s != "a" {
		t.Errorf("single session fallback, have %v %v", s, ok)
	}

	r.add("b")
	if _, ok := r.lookup(42); ok {
		t.Errorf("no fallback with two sessions")
	}
	if err := r.enter(1, "a"); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if err := r.enter(2, "b"); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if err := r.enter(1, "b"); !errors.Is(err, libretro.ErrLifecycle) {
		t.Errorf("a thread hosts one session: %v", err)
	}
	if err := r.enter(1, "a"); err != nil {
		t.Errorf("reentry should work: %v", err)
	}
	for tok, want := range map[uintptr]string{1: "a", 2: "b"} {
		if s, _ := r.lookup(tok); s != want {
			t.Errorf("thread %v: %v != %v", tok, s, want)
		}
	}

	r.leave(1)
	if s, ok := r.lookup(1); !ok || s != "a" {
		t.Errorf("should stay after the inner leave")
	}
	r.leave(1)
	if _, ok := r.lookup(1); ok {
		t.Errorf("should be gone after the outer leave")
	}

	r.remove("b")
	if _, ok := r.lookup(2); !ok {
		t.Errorf("should fall back to a")
	}
	if s, _ := r.lookup(2); s != "a" {
		t.Errorf("wrong fallback %v", s)
	}
	if r.len() != 1 {
		t.Errorf("len %v", r.len())
	}
}

func TestRegistryConcurrent(t *testing.T) {
	r := newRegistry[int]()
	var wg sync.WaitGroup
	for i := range 8 {
		r.add(i)
		wg.Add(1)
		go func(tok uintptr, s int) {
			defer wg.Done()
			for range 1000 {
				if err := r.enter(tok, s); err != nil {
					t.Errorf("enter: %v", err)
					return
				}
				if got, _ := r.lookup(tok); got != s {
					t.Errorf("thread %v: %v != %v", tok, got, s)
				}
				r.leave(tok)
			}
		}(uintptr(i+1), i)
	}
	wg.Wait()
}

func TestPerf(t *testing.T) {
	if timeUsec() <= 0 {
		t.Errorf("bad time")
	}
	a := perfCounter()
	b := perfCounter()
	if b < a {
		t.Errorf("counter goes back %v < %v", b, a)
	}
	f := cpuFeatures()
	if f&abi.SimdSSE2 != 0 && f&abi.SimdSSE == 0 {
		t.Errorf("sse2 implies sse: %b", f)
	}
}

type frames struct {
	core.NoCallbacks
	mu     sync.Mutex
	video  int
	audio  int
	last   core.Frame
	polled int
}

func (f *frames) Video(frame core.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.video++
	f.last = frame
	f.last.Data = nil
}

func (f *frames) Audio(s []int16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio += len(s)
}

func (f *frames) InputPoll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polled++
}

// TestNES runs a real NES core, e.g.
//
//	RETROHOST_TEST_CORE=./cores/nestopia_libretro.so RETROHOST_TEST_ROM=./Super\ Mario\ Bros.nes go test
func TestNES(t *testing.T) {
	corePath, rom := os.Getenv("RETROHOST_TEST_CORE"), os.Getenv("RETROHOST_TEST_ROM")
	if corePath == "" || rom == "" {
		t.Skip("no RETROHOST_TEST_CORE or RETROHOST_TEST_ROM")
	}

	plugin, err := Open(corePath, logger.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	dir := t.TempDir()
	paths, err := libretro.NewPathSet(filepath.Join(dir, "system"), filepath.Join(dir, "saves"), filepath.Join(dir, "assets"))
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	cb := &frames{}
	host, err := core.New(plugin, paths,
		core.WithLogger(logger.Nop()),
		core.WithCallbacks(cb),
		core.WithDispatcherOptions(libretro.WithBridge(plugin)),
	)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	defer func() {
		if err := host.Deinit(); err != nil {
			t.Errorf("deinit: %v", err)
		}
	}()

	if err := host.LoadGame(rom); err != nil {
		t.Fatalf("load: %v", err)
	}
	av := host.AvInfo()
	g := av.Geometry()
	if g.BaseWidth != 256 || g.BaseHeight != 240 || g.MaxWidth != 602 || g.MaxHeight != 240 {
		t.Errorf("geometry %+v", g)
	}
	if timing := av.Timing(); math.Abs(timing.Fps-60.0998) > 0.001 || timing.SampleRate != 48000 {
		t.Errorf("timing %+v", timing)
	}
	if av.PixelFormat() != libretro.PixelFormatXRGB8888 {
		t.Errorf("pixel format %v", av.PixelFormat())
	}

	for range 60 {
		if err := host.Run(); err != nil {
			t.Fatalf("run: %v", err)
		}
	}
	cb.mu.Lock()
	if cb.video != 60 || cb.polled == 0 || cb.audio == 0 {
		t.Errorf("60 frames gave %v frames, %v samples, %v polls", cb.video, cb.audio, cb.polled)
	}
	if cb.last.Width != 256 || cb.last.Format != libretro.PixelFormatXRGB8888 {
		t.Errorf("last frame %+v", cb.last)
	}
	cb.mu.Unlock()

	if _, err := host.SaveState(1); err != nil {
		t.Errorf("save: %v", err)
	}
	if _, err := host.LoadState(1); err != nil {
		t.Errorf("load: %v", err)
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nothing.so"), logger.Nop()); !errors.Is(err, libretro.ErrResourceUnavailable) {
		t.Errorf("should fail with no lib: %v", err)
	}
}
