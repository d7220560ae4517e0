package libretro

import (
	"fmt"
	"slices"
	"sync"

	"github.com/retrohost/retrohost/pkg/libretro/abi"
)

type GraphicsConfig struct {
	Context          abi.HwContextType
	Major            uint32
	Minor            uint32
	Depth            bool
	Stencil          bool
	BottomLeftOrigin bool
	CacheContext     bool
	Debug            bool
}

func (c GraphicsConfig) String() string {
	return fmt.Sprintf("%v %v.%v depth=%v stencil=%v bottom-left=%v", c.Context, c.Major, c.Minor,
		c.Depth, c.Stencil, c.BottomLeftOrigin)
}

// GraphicsApi is the rendering API negotiated with the core.
// Without hardware contexts only software rendering is possible.
type GraphicsApi struct {
	mu        sync.RWMutex
	conf      GraphicsConfig
	supported []abi.HwContextType
}

func NewGraphicsApi(supported ...abi.HwContextType) *GraphicsApi {
	return &GraphicsApi{supported: supported}
}

func (g *GraphicsApi) Config() GraphicsConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.conf
}

// Preferred is the context the host would like the core to use.
func (g *GraphicsApi) Preferred() abi.HwContextType {
	if len(g.supported) == 0 {
		return abi.HwContextNone
	}
	return g.supported[0]
}

func (g *GraphicsApi) IsSupported(t abi.HwContextType) bool { return slices.Contains(g.supported, t) }

// Negotiate takes the render request of a core.
func (g *GraphicsApi) Negotiate(cb *abi.HwRenderCallback) error {
	if cb == nil {
		return validationErr("nil hw render callback")
	}
	if !g.IsSupported(cb.ContextType) {
		return fmt.Errorf("%w: hw context %v", ErrUnsupported, cb.ContextType)
	}
	g.mu.Lock()
	g.conf = GraphicsConfig{
		Context:          cb.ContextType,
		Major:            cb.VersionMajor,
		Minor:            cb.VersionMinor,
		Depth:            cb.Depth,
		Stencil:          cb.Stencil,
		BottomLeftOrigin: cb.BottomLeftOrigin,
		CacheContext:     cb.CacheContext,
		Debug:            cb.DebugContext,
	}
	g.mu.Unlock()
	return nil
}
