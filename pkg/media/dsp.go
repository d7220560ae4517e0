package media

import (
	"fmt"
	"math"
)

// DSP converts interleaved stereo samples from one rate to another.
// Implementations keep the stream state between calls.
type DSP interface {
	// Process resamples in into out and returns the number of written samples.
	Process(out, in []int16) (int, error)
	Close() error
}

// DSPFactory makes a DSP for the rates.
type DSPFactory func(srcHz, dstHz int) (DSP, error)

// OutSize is the max number of samples a DSP makes of n input samples.
func OutSize(n, srcHz, dstHz int) int {
	frames := int(math.Ceil(float64(n/2)*float64(dstHz)/float64(srcHz))) + 2
	return frames * 2
}

// linear is a streaming linear interpolator in 32.32 fixed point.
// It keeps the last frame of a chunk so chunks join without clicks.
type linear struct {
	step   uint64
	pos    uint64
	prev   [2]int16
	primed bool
}

func NewLinear(srcHz, dstHz int) (DSP, error) {
	if srcHz <= 0 || dstHz <= 0 {
		return nil, fmt.Errorf("bad rates %v -> %v", srcHz, dstHz)
	}
	return &linear{step: uint64(float64(srcHz) / float64(dstHz) * (1 << 32))}, nil
}

func (l *linear) Process(out, in []int16) (int, error) {
	n := len(in) / 2
	if n == 0 {
		return 0, nil
	}
	if !l.primed {
		l.prev, l.primed = [2]int16{in[0], in[1]}, true
		l.pos = 1 << 32
	}
	frame := func(i int) (int64, int64) {
		if i < 0 {
			return int64(l.prev[0]), int64(l.prev[1])
		}
		return int64(in[i*2]), int64(in[i*2+1])
	}

	w := 0
	for ; w+1 < len(out); w += 2 {
		i := int(l.pos >> 32)
		if i >= n {
			break
		}
		frac := int64(l.pos & 0xFFFFFFFF)
		l0, r0 := frame(i - 1)
		l1, r1 := frame(i)
		out[w] = int16(l0 + ((l1-l0)*frac)>>32)
		out[w+1] = int16(r0 + ((r1-r0)*frac)>>32)
		l.pos += l.step
	}

	if end := uint64(n) << 32; l.pos >= end {
		l.pos -= end
	} else {
		// out is full, the rest of the chunk is skipped
		l.pos = 0
	}
	l.prev = [2]int16{in[len(in)-2], in[len(in)-1]}
	return w, nil
}

func (l *linear) Close() error { return nil }
