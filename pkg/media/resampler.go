package media

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/retrohost/retrohost/pkg/libretro"
	"github.com/retrohost/retrohost/pkg/logger"
	"github.com/retrohost/retrohost/pkg/thread"
)

const (
	DefaultChunk      = 2048 // frames
	DefaultPoll       = 3 * time.Millisecond
	DefaultBufferSize = 1 << 19
)

type source struct{ hz, channels int }

// Resampler moves the core audio from the frame thread to the output rate.
//
// The frame thread pushes samples into the input ring, a background
// thread reads them in chunks, converts to stereo, resamples when the
// rates differ and puts the result into the output ring (or a sink).
type Resampler struct {
	in    *Ring
	out   *Ring
	sink  func(Samples)
	dstHz int

	chunk  int
	poll   time.Duration
	newDSP DSPFactory

	srcMu sync.Mutex
	src   source

	runMu   sync.Mutex
	stop    atomic.Bool
	done    <-chan struct{}
	tid     atomic.Uintptr
	dropped atomic.Uint64

	log *logger.Logger
}

type ResamplerOption func(*Resampler)

func WithChunk(frames int) ResamplerOption     { return func(r *Resampler) { r.chunk = frames } }
func WithPoll(d time.Duration) ResamplerOption { return func(r *Resampler) { r.poll = d } }
func WithDSP(f DSPFactory) ResamplerOption     { return func(r *Resampler) { r.newDSP = f } }
func WithBuffer(samples int) ResamplerOption {
	return func(r *Resampler) { r.in = NewRing(samples) }
}

// WithSink calls fn with the resampled samples instead of
// writing them into the output ring.
func WithSink(fn func(Samples)) ResamplerOption { return func(r *Resampler) { r.sink = fn } }

func WithResamplerLogger(l *logger.Logger) ResamplerOption {
	return func(r *Resampler) { r.log = l }
}

func NewResampler(dstHz int, opts ...ResamplerOption) (*Resampler, error) {
	if err := libretro.ValidateSampleRate(float64(dstHz)); err != nil {
		return nil, err
	}
	r := &Resampler{
		dstHz:  dstHz,
		chunk:  DefaultChunk,
		poll:   DefaultPoll,
		newDSP: NewLinear,
		log:    logger.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	if r.chunk <= 0 || r.poll <= 0 {
		return nil, fmt.Errorf("%w: chunk %v, poll %v", libretro.ErrValidation, r.chunk, r.poll)
	}
	if r.in == nil {
		r.in = NewRing(DefaultBufferSize)
	}
	if r.sink == nil {
		r.out = NewRing(r.in.Cap() * 2)
	}
	r.log = r.log.Module("audio")
	return r, nil
}

// Push queues the core samples, it never blocks.
// The samples which don't fit are dropped and counted.
func (r *Resampler) Push(s Samples) int {
	n := r.in.Write(s)
	if n < len(s) {
		r.dropped.Add(uint64(len(s) - n))
	}
	return n
}

// SetSource sets the format of the pushed samples.
func (r *Resampler) SetSource(hz, channels int) error {
	if err := libretro.ValidateSampleRate(float64(hz)); err != nil {
		return err
	}
	if channels != 1 && channels != 2 {
		return fmt.Errorf("%w: %v channels", libretro.ErrValidation, channels)
	}
	r.srcMu.Lock()
	r.src = source{hz: hz, channels: channels}
	r.srcMu.Unlock()
	return nil
}

// source never waits for the lock, the loop tries again next time.
func (r *Resampler) source() (source, bool) {
	if !r.srcMu.TryLock() {
		return source{}, false
	}
	defer r.srcMu.Unlock()
	return r.src, true
}

// Output is the ring of the resampled stereo samples, nil with a sink.
func (r *Resampler) Output() *Ring { return r.out }

func (r *Resampler) Rate() int { return r.dstHz }

// Dropped is the number of samples lost on full rings.
func (r *Resampler) Dropped() uint64 { return r.dropped.Load() }

// Start runs the resampling thread, it does nothing when it's running already.
func (r *Resampler) Start() {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if r.done != nil {
		select {
		case <-r.done:
		default:
			return
		}
	}
	r.stop.Store(false)
	r.done = thread.Locked(r.loop)
}

// Stop tells the thread to quit and waits for it.
// The thread sees the flag in one poll interval or one chunk.
// Called from the sink, it only sets the flag and returns without
// waiting, the thread quits after the sink returns.
func (r *Resampler) Stop() {
	if r.tid.Load() == thread.Id() {
		r.stop.Store(true)
		return
	}
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if r.done == nil {
		return
	}
	r.stop.Store(true)
	<-r.done
	r.done = nil
}

func (r *Resampler) Running() bool {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if r.done == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

func (r *Resampler) loop() {
	var (
		cur    source
		dsp    DSP
		in     = make(Samples, r.chunk*2)
		stereo = make(Samples, r.chunk*2)
		out    Samples
	)
	r.tid.Store(thread.Id())
	defer func() {
		r.tid.Store(0)
		if dsp != nil {
			_ = dsp.Close()
		}
	}()

	for !r.stop.Load() {
		src, ok := r.source()
		if !ok || src.hz == 0 {
			time.Sleep(r.poll)
			continue
		}
		if src != cur {
			if dsp != nil {
				_ = dsp.Close()
				dsp = nil
			}
			if src.hz != r.dstHz {
				d, err := r.newDSP(src.hz, r.dstHz)
				if err != nil {
					r.log.Error().Err(err).Msgf("no resampler for %v Hz", src.hz)
					time.Sleep(r.poll)
					continue
				}
				dsp = d
				out = make(Samples, OutSize(len(stereo), src.hz, r.dstHz))
			}
			cur = src
			r.log.Debug().Msgf("audio: %v Hz x%v -> %v Hz", src.hz, src.channels, r.dstHz)
		}

		avail := r.in.Len()
		avail -= avail % src.channels
		n := min(avail, r.chunk*src.channels)
		if n == 0 {
			time.Sleep(r.poll)
			continue
		}
		n = r.in.Read(in[:n])
		s := toStereo(stereo, in[:n], src.channels)

		if dsp == nil {
			r.emit(s)
			continue
		}
		w, err := dsp.Process(out, s)
		if err != nil {
			r.log.Error().Err(err).Msg("resample")
			continue
		}
		r.emit(out[:w])
	}
}

func (r *Resampler) emit(s Samples) {
	if r.sink != nil {
		r.sink(s)
		return
	}
	if n := r.out.Write(s); n < len(s) {
		r.dropped.Add(uint64(len(s) - n))
	}
}

func toStereo(dst, src Samples, channels int) Samples {
	if channels == 2 {
		return src
	}
	for i, v := range src {
		dst[i*2], dst[i*2+1] = v, v
	}
	return dst[:len(src)*2]
}
