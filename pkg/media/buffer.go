package media

// Buffer collects audio samples into fixed-size chunks.
// It's not thread safe and should be used for 16bit PCM (LE interleaved) data.
type (
	Buffer struct {
		s  Samples
		wi int
	}
	OnFull  func(s Samples)
	Samples []int16
)

func NewBuffer(numSamples int) Buffer { return Buffer{s: make(Samples, numSamples)} }

// Write fills the buffer with data calling a callback function every time
// the internal buffer fills out. The callback gets a view of the buffer
// valid until the next write.
func (b *Buffer) Write(s Samples, onFull OnFull) (r int) {
	for r < len(s) {
		w := copy(b.s[b.wi:], s[r:])
		r += w
		b.wi += w
		if b.wi == len(b.s) {
			b.wi = 0
			if onFull != nil {
				onFull(b.s)
			}
		}
	}
	return
}

// Flush hands out what's left in the buffer.
func (b *Buffer) Flush(fn OnFull) {
	if b.wi == 0 {
		return
	}
	if fn != nil {
		fn(b.s[:b.wi])
	}
	b.wi = 0
}

func (b *Buffer) Len() int { return b.wi }
