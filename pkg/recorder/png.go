package recorder

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/retrohost/retrohost/pkg/logger"
)

const (
	demuxFile = "input.txt"
	videoFile = "f%06d.png"
)

type pool struct{ sync.Pool }

func (p *pool) Get() *png.EncoderBuffer {
	if b, ok := p.Pool.Get().(*png.EncoderBuffer); ok {
		return b
	}
	return &png.EncoderBuffer{}
}
func (p *pool) Put(b *png.EncoderBuffer) { p.Pool.Put(b) }

type frame struct {
	img *image.RGBA
	dur time.Duration
}

// pngStream saves frames as a PNG sequence with an ffmpeg concat file.
//
//	ffmpeg -f concat -i input.txt -i audio.wav -pix_fmt yuv420p out.mp4
type pngStream struct {
	buf      chan frame
	dir      string
	demux    *file
	enc      png.Encoder
	timecode bool

	seq     int
	elapsed time.Duration

	loop sync.WaitGroup
	save sync.WaitGroup
	errs chan error
	log  *logger.Logger
}

func newPngStream(dir, game string, fps float64, compress int, timecode bool, log *logger.Logger) (*pngStream, error) {
	demux, err := newFile(dir, demuxFile)
	if err != nil {
		return nil, err
	}
	head := fmt.Sprintf("ffconcat version 1.0\n# d: %v, g: %v, fps: %v\n\n", time.Now().Format("20060102"), game, fps)
	if err = demux.WriteString(head); err != nil {
		_ = demux.Close()
		return nil, err
	}
	return &pngStream{
		buf:      make(chan frame, 8),
		dir:      dir,
		demux:    demux,
		enc:      png.Encoder{CompressionLevel: png.CompressionLevel(compress), BufferPool: &pool{}},
		timecode: timecode,
		errs:     make(chan error, 1),
		log:      log,
	}, nil
}

func (p *pngStream) Start() {
	p.loop.Add(1)
	go func() {
		defer p.loop.Done()
		for f := range p.buf {
			if err := p.Save(f); err != nil {
				p.log.Error().Err(err).Msg("frame write")
			}
		}
	}()
}

// Write queues a copy of the image shown for dur.
func (p *pngStream) Write(img image.Image, dur time.Duration) {
	p.buf <- frame{img: clone(img), dur: dur}
}

func (p *pngStream) Save(f frame) error {
	p.seq++
	name := fmt.Sprintf(videoFile, p.seq)
	if p.timecode {
		AddLabel(f.img, 2, f.img.Rect.Dy()-14, TimeFormat(p.elapsed))
	}
	p.elapsed += f.dur

	p.save.Add(1)
	go p.saveImage(name, f.img)
	// see: https://ffmpeg.org/ffmpeg-formats.html#concat
	return p.demux.WriteString(fmt.Sprintf("file %v\nduration %v\n", name, f.dur.Seconds()))
}

func (p *pngStream) saveImage(name string, img image.Image) {
	defer p.save.Done()
	var buf bytes.Buffer
	err := p.enc.Encode(&buf, img)
	if err == nil {
		err = os.WriteFile(filepath.Join(p.dir, name), buf.Bytes(), 0644)
	}
	if err != nil {
		select {
		case p.errs <- fmt.Errorf("frame %v: %w", name, err):
		default:
		}
	}
}

func (p *pngStream) Stop() error {
	close(p.buf)
	p.loop.Wait()
	p.save.Wait()

	var result *multierror.Error
	select {
	case err := <-p.errs:
		result = multierror.Append(result, err)
	default:
	}
	result = multierror.Append(result, p.demux.Flush())
	result = multierror.Append(result, p.demux.Close())
	return result.ErrorOrNil()
}

// Frames is the number of saved frames.
func (p *pngStream) Frames() int { return p.seq }
