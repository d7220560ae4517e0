package libretro

import (
	"errors"
	"sync"
	"testing"

	"github.com/retrohost/retrohost/pkg/libretro/abi"
)

func TestSampleRateBounds(t *testing.T) {
	tests := []struct {
		rate float64
		ok   bool
	}{
		{rate: 7999, ok: false},
		{rate: 8000, ok: true},
		{rate: 48000, ok: true},
		{rate: 192000, ok: true},
		{rate: 192001, ok: false},
	}

	for _, test := range tests {
		av := NewAvInfo(nil)
		_ = av.SetTiming(60, 44100)
		err := av.SetTiming(50, test.rate)
		if test.ok && err != nil {
			t.Errorf("rate %v should be accepted, %v", test.rate, err)
		}
		if !test.ok {
			if !errors.Is(err, ErrValidation) {
				t.Errorf("rate %v should be rejected, %v", test.rate, err)
			}
			if tm := av.Timing(); tm.SampleRate != 44100 || tm.Fps != 60 {
				t.Errorf("old timing should stay after rejection, %+v", tm)
			}
		}
	}
}

func TestGeometry(t *testing.T) {
	av := NewAvInfo(nil)
	if g := av.Geometry(); g != (Geometry{}) {
		t.Errorf("should be zero before load, %v", g)
	}

	gen := av.Generation()
	av.SetGeometry(Geometry{BaseWidth: 256, BaseHeight: 240, MaxWidth: 602, MaxHeight: 240})
	if av.Generation() == gen {
		t.Errorf("generation should change")
	}
	g := av.Geometry()
	if g.BaseWidth != 256 || g.MaxWidth != 602 {
		t.Errorf("wrong geometry %v", g)
	}
	if g.Aspect() != float32(256)/240 {
		t.Errorf("wrong derived aspect %v", g.Aspect())
	}

	av.UpdateGeometry(Geometry{BaseWidth: 512, BaseHeight: 224, AspectRatio: 4.0 / 3})
	g = av.Geometry()
	if g.BaseWidth != 512 || g.MaxWidth != 602 || g.MaxHeight != 240 {
		t.Errorf("max size should stay, %v", g)
	}

	av.SetGeometry(Geometry{BaseWidth: 320, BaseHeight: 240, MaxWidth: 100, MaxHeight: 100})
	if g = av.Geometry(); g.MaxWidth < g.BaseWidth || g.MaxHeight < g.BaseHeight {
		t.Errorf("max should be at least base, %v", g)
	}
}

func TestSetAvInfo(t *testing.T) {
	av := NewAvInfo(nil)
	err := av.SetAvInfo(abi.SystemAvInfo{
		Geometry: abi.Geometry{BaseWidth: 256, BaseHeight: 240, MaxWidth: 602, MaxHeight: 240},
		Timing:   abi.SystemTiming{Fps: 60.0998, SampleRate: 100},
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("bad rate should fail, %v", err)
	}
	if av.Geometry().BaseWidth != 256 {
		t.Errorf("geometry should be applied anyway")
	}
}

func TestPixelFormat(t *testing.T) {
	av := NewAvInfo(nil)
	if !av.SetPixelFormat(abi.PixelFormatXRGB8888) {
		t.Fatalf("should accept XRGB8888")
	}
	if av.PixelFormat() != PixelFormatXRGB8888 || av.PixelFormat().BPP() != 4 {
		t.Errorf("wrong format %v", av.PixelFormat())
	}
	if av.SetPixelFormat(42) {
		t.Errorf("should reject 42")
	}
	if av.PixelFormat() != PixelFormatUnknown {
		t.Errorf("should fall back to unknown, %v", av.PixelFormat())
	}
	if av.LastGoodPixelFormat() != PixelFormatXRGB8888 {
		t.Errorf("last good format is lost, %v", av.LastGoodPixelFormat())
	}
}

func TestAvInfoConcurrent(t *testing.T) {
	av := NewAvInfo(nil)
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := range 1000 {
			av.SetGeometry(Geometry{BaseWidth: uint32(i), BaseHeight: 1, MaxWidth: uint32(i), MaxHeight: 1})
		}
	}()
	go func() {
		defer wg.Done()
		for range 1000 {
			_ = av.SetTiming(60, 48000)
			av.SetPixelFormat(abi.PixelFormatRGB565)
		}
	}()
	go func() {
		defer wg.Done()
		for range 1000 {
			_ = av.Snapshot()
		}
	}()
	wg.Wait()
	if av.Generation() != 3000 {
		t.Errorf("wrong generation %v", av.Generation())
	}
}

func TestGraphicsNegotiate(t *testing.T) {
	g := NewGraphicsApi()
	if g.Preferred() != abi.HwContextNone {
		t.Errorf("no hw contexts, got %v", g.Preferred())
	}
	err := g.Negotiate(&abi.HwRenderCallback{ContextType: abi.HwContextOpenGLCore})
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("should be unsupported, %v", err)
	}

	g = NewGraphicsApi(abi.HwContextOpenGLCore, abi.HwContextOpenGL)
	err = g.Negotiate(&abi.HwRenderCallback{ContextType: abi.HwContextOpenGLCore, VersionMajor: 3, VersionMinor: 3, Depth: true})
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if c := g.Config(); c.Major != 3 || !c.Depth || c.Context != abi.HwContextOpenGLCore {
		t.Errorf("wrong config %v", c)
	}
}
