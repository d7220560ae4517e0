package recorder

import (
	"encoding/binary"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/retrohost/retrohost/pkg/logger"
)

const (
	audioFile   = "audio.wav"
	wavHeaderSz = 44
)

// wavStream writes 16-bit stereo PCM into a WAV file.
// The header is written on Stop when the data size is known.
type wavStream struct {
	buf chan []int16
	hz  int
	wav *file
	wg  sync.WaitGroup
	log *logger.Logger
}

func newWavStream(dir string, hz int, log *logger.Logger) (*wavStream, error) {
	wav, err := newFile(dir, audioFile)
	if err != nil {
		return nil, err
	}
	if err = wav.Write(make([]byte, wavHeaderSz)); err != nil {
		_ = wav.Close()
		return nil, err
	}
	return &wavStream{buf: make(chan []int16, 32), hz: hz, wav: wav, log: log}, nil
}

func (w *wavStream) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		var bs []byte
		for pcm := range w.buf {
			if cap(bs) < len(pcm)*2 {
				bs = make([]byte, len(pcm)*2)
			}
			bs = bs[:len(pcm)*2]
			for i, s := range pcm {
				binary.LittleEndian.PutUint16(bs[i*2:], uint16(s))
			}
			if err := w.wav.Write(bs); err != nil {
				w.log.Error().Err(err).Msg("wav write")
			}
		}
	}()
}

// Write queues a copy of the samples.
func (w *wavStream) Write(pcm []int16) {
	w.buf <- append([]int16(nil), pcm...)
}

func (w *wavStream) Stop() error {
	close(w.buf)
	w.wg.Wait()

	var result *multierror.Error
	result = multierror.Append(result, w.wav.Flush())
	size, err := w.wav.Size()
	result = multierror.Append(result, err)
	if size >= wavHeaderSz {
		result = multierror.Append(result, w.wav.WriteAt(wavHeader(uint32(size-wavHeaderSz), w.hz), 0))
	}
	result = multierror.Append(result, w.wav.Close())
	return result.ErrorOrNil()
}

// wavHeader makes the RIFF header of 16-bit stereo PCM data.
// See: http://soundfile.sapp.org/doc/WaveFormat
func wavHeader(dataSize uint32, hz int) []byte {
	const (
		bits = 16
		ch   = 2
	)
	h := make([]byte, wavHeaderSz)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], 36+dataSize)
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:], ch)
	binary.LittleEndian.PutUint32(h[24:], uint32(hz))
	binary.LittleEndian.PutUint32(h[28:], uint32(hz*ch*bits/8))
	binary.LittleEndian.PutUint16(h[32:], ch*bits/8)
	binary.LittleEndian.PutUint16(h[34:], bits)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], dataSize)
	return h
}
