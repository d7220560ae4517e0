package libretro

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/retrohost/retrohost/pkg/libretro/abi"
)

type PixelFormat uint32

const (
	PixelFormat0RGB1555 PixelFormat = abi.PixelFormat0RGB1555
	PixelFormatXRGB8888 PixelFormat = abi.PixelFormatXRGB8888
	PixelFormatRGB565   PixelFormat = abi.PixelFormatRGB565
	PixelFormatUnknown  PixelFormat = abi.PixelFormatUnknown
)

// ToPixelFormat maps a raw enum value, false for unknown values.
func ToPixelFormat(raw uint32) (PixelFormat, bool) {
	switch p := PixelFormat(raw); p {
	case PixelFormat0RGB1555, PixelFormatXRGB8888, PixelFormatRGB565:
		return p, true
	}
	return PixelFormatUnknown, false
}

// BPP is the number of bytes per pixel.
func (p PixelFormat) BPP() int {
	switch p {
	case PixelFormatXRGB8888:
		return 4
	case PixelFormat0RGB1555, PixelFormatRGB565:
		return 2
	}
	return 0
}

func (p PixelFormat) String() string {
	switch p {
	case PixelFormat0RGB1555:
		return "0RGB1555"
	case PixelFormatXRGB8888:
		return "XRGB8888"
	case PixelFormatRGB565:
		return "RGB565"
	}
	return "Unknown"
}

func (p PixelFormat) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

type Geometry struct {
	BaseWidth   uint32
	BaseHeight  uint32
	MaxWidth    uint32
	MaxHeight   uint32
	AspectRatio float32
}

// Aspect returns the aspect ratio, if the core reports none (<= 0)
// it is base width / base height.
func (g Geometry) Aspect() float32 {
	if g.AspectRatio > 0 || g.BaseHeight == 0 {
		return g.AspectRatio
	}
	return float32(g.BaseWidth) / float32(g.BaseHeight)
}

func (g Geometry) String() string {
	return fmt.Sprintf("%vx%v (max %vx%v, %.4f)", g.BaseWidth, g.BaseHeight, g.MaxWidth, g.MaxHeight, g.Aspect())
}

type Timing struct {
	Fps        float64
	SampleRate float64
}

// AvInfo is the live audio/video description of a running core.
// Every field is synchronized separately, so a writer of one field
// doesn't stall readers of another.
type AvInfo struct {
	baseW, baseH atomic.Uint32
	maxW, maxH   atomic.Uint32
	rotation     atomic.Uint32

	aspectMu sync.RWMutex
	aspect   float32

	timingMu sync.RWMutex
	timing   Timing

	pixMu   sync.RWMutex
	pix     PixelFormat
	lastPix atomic.Uint32

	gen atomic.Uint64

	graphics *GraphicsApi
}

func NewAvInfo(graphics *GraphicsApi) *AvInfo {
	if graphics == nil {
		graphics = NewGraphicsApi()
	}
	av := &AvInfo{pix: PixelFormat0RGB1555, graphics: graphics}
	av.lastPix.Store(uint32(PixelFormat0RGB1555))
	return av
}

// Generation grows with every accepted change,
// readers compare it to detect stale copies.
func (a *AvInfo) Generation() uint64 { return a.gen.Load() }

func (a *AvInfo) Graphics() *GraphicsApi { return a.graphics }

// SetGeometry copies the values as is, max size is raised to the base size
// when smaller.
func (a *AvInfo) SetGeometry(g Geometry) {
	g.MaxWidth = max(g.MaxWidth, g.BaseWidth)
	g.MaxHeight = max(g.MaxHeight, g.BaseHeight)
	a.baseW.Store(g.BaseWidth)
	a.baseH.Store(g.BaseHeight)
	a.maxW.Store(g.MaxWidth)
	a.maxH.Store(g.MaxHeight)
	a.aspectMu.Lock()
	a.aspect = g.AspectRatio
	a.aspectMu.Unlock()
	a.gen.Add(1)
}

// UpdateGeometry is SET_GEOMETRY: max sizes stay as they were.
func (a *AvInfo) UpdateGeometry(base Geometry) {
	g := a.Geometry()
	g.BaseWidth, g.BaseHeight, g.AspectRatio = base.BaseWidth, base.BaseHeight, base.AspectRatio
	a.SetGeometry(g)
}

func (a *AvInfo) Geometry() Geometry {
	a.aspectMu.RLock()
	aspect := a.aspect
	a.aspectMu.RUnlock()
	return Geometry{
		BaseWidth:   a.baseW.Load(),
		BaseHeight:  a.baseH.Load(),
		MaxWidth:    a.maxW.Load(),
		MaxHeight:   a.maxH.Load(),
		AspectRatio: aspect,
	}
}

// SetTiming stores the new timing if the sample rate is valid,
// otherwise the old values are kept.
func (a *AvInfo) SetTiming(fps, sampleRate float64) error {
	if err := ValidateSampleRate(sampleRate); err != nil {
		return err
	}
	a.timingMu.Lock()
	a.timing = Timing{Fps: fps, SampleRate: sampleRate}
	a.timingMu.Unlock()
	a.gen.Add(1)
	return nil
}

func (a *AvInfo) Timing() Timing {
	a.timingMu.RLock()
	defer a.timingMu.RUnlock()
	return a.timing
}

// SetAvInfo applies geometry and timing of the retro_system_av_info struct.
// Geometry is applied even when the timing is rejected.
func (a *AvInfo) SetAvInfo(av abi.SystemAvInfo) error {
	a.SetGeometry(Geometry(av.Geometry))
	return a.SetTiming(av.Timing.Fps, av.Timing.SampleRate)
}

// SetPixelFormat stores the format of the core frames.
// Unknown values store PixelFormatUnknown and report false,
// the last known format is still there in LastGoodPixelFormat.
func (a *AvInfo) SetPixelFormat(raw uint32) bool {
	p, ok := ToPixelFormat(raw)
	a.pixMu.Lock()
	a.pix = p
	a.pixMu.Unlock()
	if ok {
		a.lastPix.Store(uint32(p))
	}
	a.gen.Add(1)
	return ok
}

func (a *AvInfo) PixelFormat() PixelFormat {
	a.pixMu.RLock()
	defer a.pixMu.RUnlock()
	return a.pix
}

func (a *AvInfo) LastGoodPixelFormat() PixelFormat { return PixelFormat(a.lastPix.Load()) }

func (a *AvInfo) SetRotation(deg uint32) {
	a.rotation.Store(deg % 360)
	a.gen.Add(1)
}

func (a *AvInfo) Rotation() uint32 { return a.rotation.Load() }

// AvSnapshot is a copy of everything at once, for logs and dumps.
type AvSnapshot struct {
	Geometry    Geometry
	Timing      Timing
	PixelFormat PixelFormat
	Rotation    uint32
	Graphics    GraphicsConfig
	Generation  uint64
}

func (a *AvInfo) Snapshot() AvSnapshot {
	return AvSnapshot{
		Geometry:    a.Geometry(),
		Timing:      a.Timing(),
		PixelFormat: a.PixelFormat(),
		Rotation:    a.Rotation(),
		Graphics:    a.graphics.Config(),
		Generation:  a.Generation(),
	}
}
