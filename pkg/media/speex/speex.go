// Package speex is a media.DSP over the speexdsp resampler.
package speex

/*
   #cgo pkg-config: speexdsp
   #cgo st LDFLAGS: -l:libspeexdsp.a

   #include <stdint.h>
   #include "speex_resampler.h"
*/
import "C"

import (
	"errors"
	"fmt"
	"math"
	"unsafe"

	"github.com/retrohost/retrohost/pkg/media"
)

// Quality
const (
	QualityMax     = 10
	QualityMin     = 0
	QualityDefault = 4
	QualityDesktop = 5
	QualityVoid    = 3
)

const (
	errorSuccess  = 0
	errorBadState = 2
)

const channels = 2

// Resampler converts the samples into normalized float planes,
// resamples every channel and puts them back interleaved.
type Resampler struct {
	state   *C.SpeexResamplerState
	in, out [channels][]float32
}

var _ media.DSP = (*Resampler)(nil)

// Factory makes resamplers of the quality for media.WithDSP.
func Factory(quality int) media.DSPFactory {
	return func(srcHz, dstHz int) (media.DSP, error) { return New(srcHz, dstHz, quality) }
}

func New(srcHz, dstHz, quality int) (*Resampler, error) {
	if srcHz <= 0 || dstHz <= 0 {
		return nil, fmt.Errorf("bad rates %v -> %v", srcHz, dstHz)
	}
	quality = min(max(quality, QualityMin), QualityMax)

	var err C.int
	state := C.speex_resampler_init(
		C.spx_uint32_t(channels),
		C.spx_uint32_t(srcHz),
		C.spx_uint32_t(dstHz),
		C.int(quality),
		&err,
	)
	if state == nil {
		return nil, strError(int(err))
	}
	C.speex_resampler_skip_zeros(state)
	return &Resampler{state: state}, nil
}

func (r *Resampler) Process(out, in []int16) (int, error) {
	if r.state == nil {
		return 0, strError(errorBadState)
	}
	inFrames, outFrames := len(in)/channels, len(out)/channels
	if inFrames == 0 || outFrames == 0 {
		return 0, nil
	}
	for c := range channels {
		r.in[c] = grow(r.in[c], inFrames)
		r.out[c] = grow(r.out[c], outFrames)
	}
	for i := range inFrames {
		for c := range channels {
			r.in[c][i] = float32(in[i*channels+c]) / 32768
		}
	}

	written := outFrames
	for c := range channels {
		inLen, outLen := C.spx_uint32_t(inFrames), C.spx_uint32_t(outFrames)
		res := C.speex_resampler_process_float(
			r.state,
			C.spx_uint32_t(c),
			(*C.float)(unsafe.Pointer(&r.in[c][0])),
			&inLen,
			(*C.float)(unsafe.Pointer(&r.out[c][0])),
			&outLen,
		)
		if res != errorSuccess {
			return 0, strError(int(res))
		}
		written = min(written, int(outLen))
	}

	for i := range written {
		for c := range channels {
			out[i*channels+c] = toInt16(r.out[c][i])
		}
	}
	return written * channels, nil
}

func (r *Resampler) Close() error {
	if r.state == nil {
		return nil
	}
	C.speex_resampler_destroy(r.state)
	r.state = nil
	return nil
}

func grow(b []float32, n int) []float32 {
	if cap(b) < n {
		return make([]float32, n)
	}
	return b[:n]
}

func toInt16(v float32) int16 {
	s := math.Round(float64(v) * 32768)
	return int16(min(max(s, math.MinInt16), math.MaxInt16))
}

func strError(code int) error {
	cs := C.speex_resampler_strerror(C.int(code))
	if cs == nil {
		return errors.New("speex: unknown error")
	}
	return errors.New("speex: " + C.GoString(cs))
}
