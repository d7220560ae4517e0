// Package image turns core frames into images.
package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/retrohost/retrohost/pkg/libretro"
	"github.com/retrohost/retrohost/pkg/os"
	"golang.org/x/image/draw"
)

const (
	ScaleNearestNeighbour = iota
	ScaleBilinear
)

// Frame is an RGBA copy of a core frame.
type Frame struct{ image.RGBA }

func (f *Frame) Opaque() bool { return true }

// Pool keeps frames for reuse between the core and the frame consumers.
type Pool struct{ p sync.Pool }

// Get returns a frame of w x h, its pixels are not cleared.
func (p *Pool) Get(w, h int) *Frame {
	f, _ := p.p.Get().(*Frame)
	if f == nil {
		f = &Frame{}
	}
	size := w * h * 4
	if cap(f.Pix) < size {
		f.Pix = make([]uint8, size)
	}
	f.Pix = f.Pix[:size]
	f.Stride = w * 4
	f.Rect = image.Rect(0, 0, w, h)
	return f
}

func (p *Pool) Put(f *Frame) { p.p.Put(f) }

// Convert copies a w x h frame with rows of pitch bytes into dst.
// Rows may be padded by the core, pitch is the packed width in bytes.
func Convert(dst *image.RGBA, data []byte, format libretro.PixelFormat, w, h, pitch int) error {
	bpp := format.BPP()
	if bpp == 0 {
		return fmt.Errorf("%w: pixel format %v", libretro.ErrUnsupported, format)
	}
	if w <= 0 || h <= 0 || pitch < w*bpp || len(data) < pitch*(h-1)+w*bpp {
		return fmt.Errorf("%w: frame %vx%v, pitch %v, %v bytes", libretro.ErrValidation, w, h, pitch, len(data))
	}
	if dst.Rect.Dx() < w || dst.Rect.Dy() < h {
		return fmt.Errorf("%w: %v is smaller than %vx%v", libretro.ErrValidation, dst.Rect, w, h)
	}

	for y := range h {
		src := data[y*pitch : y*pitch+w*bpp]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		switch format {
		case libretro.PixelFormatXRGB8888:
			// B, G, R, X
			for x := 0; x < len(src); x += 4 {
				out[x], out[x+1], out[x+2], out[x+3] = src[x+2], src[x+1], src[x], 0xff
			}
		case libretro.PixelFormatRGB565:
			for x := range w {
				px := binary.LittleEndian.Uint16(src[x*2:])
				r, g, b := px>>11, (px>>5)&0x3f, px&0x1f
				o := out[x*4 : x*4+4 : x*4+4]
				o[0], o[1], o[2], o[3] = uint8(r<<3|r>>2), uint8(g<<2|g>>4), uint8(b<<3|b>>2), 0xff
			}
		case libretro.PixelFormat0RGB1555:
			for x := range w {
				px := binary.LittleEndian.Uint16(src[x*2:])
				r, g, b := (px>>10)&0x1f, (px>>5)&0x1f, px&0x1f
				o := out[x*4 : x*4+4 : x*4+4]
				o[0], o[1], o[2], o[3] = uint8(r<<3|r>>2), uint8(g<<3|g>>2), uint8(b<<3|b>>2), 0xff
			}
		}
	}
	return nil
}

// Rotate turns an image clockwise by 90, 180 or 270 degrees.
// Other angles return the image as is.
func Rotate(src *image.RGBA, deg uint32) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	var dst *image.RGBA
	switch deg % 360 {
	case 90, 270:
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	case 180:
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	default:
		return src
	}
	for y := range h {
		for x := range w {
			var dx, dy int
			switch deg % 360 {
			case 90:
				dx, dy = h-1-y, x
			case 180:
				dx, dy = w-1-x, h-1-y
			case 270:
				dx, dy = y, w-1-x
			}
			s := src.PixOffset(x+src.Rect.Min.X, y+src.Rect.Min.Y)
			d := dst.PixOffset(dx, dy)
			copy(dst.Pix[d:d+4], src.Pix[s:s+4])
		}
	}
	return dst
}

func Resize(scaleType int, src *image.RGBA, out *image.RGBA) {
	switch scaleType {
	case ScaleBilinear:
		draw.ApproxBiLinear.Scale(out, out.Bounds(), src, src.Bounds(), draw.Src, nil)
	default:
		draw.NearestNeighbor.Scale(out, out.Bounds(), src, src.Bounds(), draw.Src, nil)
	}
}

// Thumbnail scales the image down to fit into w x h keeping the aspect ratio.
// The aspect ratio of the screen is used when it's set.
func Thumbnail(src *image.RGBA, w, h int, aspect float32) *image.RGBA {
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	if aspect <= 0 {
		aspect = float32(sw) / float32(sh)
	}
	tw, th := w, int(float32(w)/aspect+0.5)
	if th > h {
		tw, th = int(float32(h)*aspect+0.5), h
	}
	out := image.NewRGBA(image.Rect(0, 0, max(tw, 1), max(th, 1)))
	Resize(ScaleBilinear, src, out)
	return out
}

// SavePNG writes the image into a file next to a save state.
func SavePNG(path string, img image.Image) error {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return err
	}
	return os.WriteFileAtomic(path, buf.Bytes(), 0644)
}
