package image

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/retrohost/retrohost/pkg/libretro"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name   string
		format libretro.PixelFormat
		px     []byte
		want   color.RGBA
	}{
		{name: "xrgb8888", format: libretro.PixelFormatXRGB8888, px: []byte{0x30, 0x20, 0x10, 0x00}, want: color.RGBA{0x10, 0x20, 0x30, 0xff}},
		{name: "rgb565 red", format: libretro.PixelFormatRGB565, px: []byte{0x00, 0xf8}, want: color.RGBA{0xff, 0, 0, 0xff}},
		{name: "rgb565 green", format: libretro.PixelFormatRGB565, px: []byte{0xe0, 0x07}, want: color.RGBA{0, 0xff, 0, 0xff}},
		{name: "0rgb1555 blue", format: libretro.PixelFormat0RGB1555, px: []byte{0x1f, 0x00}, want: color.RGBA{0, 0, 0xff, 0xff}},
		{name: "0rgb1555 white", format: libretro.PixelFormat0RGB1555, px: []byte{0xff, 0x7f}, want: color.RGBA{0xff, 0xff, 0xff, 0xff}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// 2x2 with a padded row
			bpp := test.format.BPP()
			pitch := 2*bpp + 3
			data := make([]byte, pitch*2)
			for y := range 2 {
				for x := range 2 {
					copy(data[y*pitch+x*bpp:], test.px)
				}
			}
			dst := image.NewRGBA(image.Rect(0, 0, 2, 2))
			if err := Convert(dst, data, test.format, 2, 2, pitch); err != nil {
				t.Fatalf("convert: %v", err)
			}
			for y := range 2 {
				for x := range 2 {
					if c := dst.RGBAAt(x, y); c != test.want {
						t.Errorf("(%v,%v): %v != %v", x, y, c, test.want)
					}
				}
			}
		})
	}
}

func TestConvertErrors(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if err := Convert(dst, make([]byte, 64), libretro.PixelFormatUnknown, 4, 4, 16); !errors.Is(err, libretro.ErrUnsupported) {
		t.Errorf("unknown format: %v", err)
	}
	if err := Convert(dst, make([]byte, 10), libretro.PixelFormatXRGB8888, 4, 4, 16); !errors.Is(err, libretro.ErrValidation) {
		t.Errorf("short data: %v", err)
	}
	if err := Convert(dst, make([]byte, 256), libretro.PixelFormatXRGB8888, 8, 8, 32); !errors.Is(err, libretro.ErrValidation) {
		t.Errorf("small dst: %v", err)
	}
}

func TestRotate(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.SetRGBA(0, 0, color.RGBA{R: 1, A: 255})

	tests := []struct {
		deg  uint32
		w, h int
		x, y int
	}{
		{deg: 0, w: 3, h: 2, x: 0, y: 0},
		{deg: 90, w: 2, h: 3, x: 1, y: 0},
		{deg: 180, w: 3, h: 2, x: 2, y: 1},
		{deg: 270, w: 2, h: 3, x: 0, y: 2},
	}
	for _, test := range tests {
		out := Rotate(src, test.deg)
		if out.Rect.Dx() != test.w || out.Rect.Dy() != test.h {
			t.Errorf("%v: wrong size %v", test.deg, out.Rect)
		}
		if out.RGBAAt(test.x, test.y).R != 1 {
			t.Errorf("%v: the corner is not at (%v,%v)", test.deg, test.x, test.y)
		}
	}
}

func TestThumbnail(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 256, 240))
	out := Thumbnail(src, 160, 160, 4.0/3)
	if out.Rect.Dx() != 160 || out.Rect.Dy() != 120 {
		t.Errorf("wrong size %v", out.Rect)
	}
	out = Thumbnail(image.NewRGBA(image.Rect(0, 0, 100, 400)), 160, 160, 0)
	if out.Rect.Dx() != 40 || out.Rect.Dy() != 160 {
		t.Errorf("wrong tall size %v", out.Rect)
	}
}

func TestSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x", "01.png")
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	if err := SavePNG(path, img); err != nil {
		t.Fatalf("save: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()
	cfg, err := png.DecodeConfig(f)
	if err != nil || cfg.Width != 8 {
		t.Errorf("bad png %v %v", cfg, err)
	}
}

func TestPool(t *testing.T) {
	var p Pool
	f := p.Get(4, 2)
	if len(f.Pix) != 32 || f.Stride != 16 {
		t.Errorf("wrong frame %v %v", len(f.Pix), f.Stride)
	}
	p.Put(f)
	f = p.Get(2, 2)
	if len(f.Pix) != 16 || f.Rect.Dx() != 2 {
		t.Errorf("wrong reused frame %v", f.Rect)
	}
}
