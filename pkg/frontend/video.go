package frontend

import (
	"image"
	"sync"

	img "github.com/retrohost/retrohost/pkg/image"
	"github.com/retrohost/retrohost/pkg/libretro"
	"github.com/retrohost/retrohost/pkg/libretro/core"
)

// video keeps a copy of the last core frame.
// The frame is converted to RGBA only when someone asks for it.
type video struct {
	mu     sync.Mutex
	data   []byte
	w, h   int
	pitch  int
	format libretro.PixelFormat
	frames uint64
	dups   uint64

	pool img.Pool
}

// store copies the borrowed frame, repeated and hardware frames keep
// the previous one.
func (v *video) store(f core.Frame) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if f.Dup || f.Hw || len(f.Data) == 0 {
		v.dups++
		return false
	}
	v.data = append(v.data[:0], f.Data...)
	v.w, v.h, v.pitch, v.format = int(f.Width), int(f.Height), int(f.Pitch), f.Format
	v.frames++
	return true
}

// snapshot converts the last frame and rotates it by rot degrees,
// nil without a frame.
func (v *video) snapshot(rot uint32) (*image.RGBA, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.data == nil {
		return nil, nil
	}
	f := v.pool.Get(v.w, v.h)
	if err := img.Convert(&f.RGBA, v.data, v.format, v.w, v.h, v.pitch); err != nil {
		v.pool.Put(f)
		return nil, err
	}
	if rot%360 == 0 {
		out := image.NewRGBA(f.Rect)
		copy(out.Pix, f.Pix)
		v.pool.Put(f)
		return out, nil
	}
	out := img.Rotate(&f.RGBA, rot)
	v.pool.Put(f)
	return out, nil
}

func (v *video) counters() (frames, dups uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frames, v.dups
}
