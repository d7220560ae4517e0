package speex

import (
	"math"
	"testing"

	"github.com/retrohost/retrohost/pkg/media"
)

func TestToInt16(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{in: 0, want: 0},
		{in: 0.5, want: 16384},
		{in: -1, want: math.MinInt16},
		{in: 1, want: math.MaxInt16},
		{in: 1.7, want: math.MaxInt16},
		{in: -3, want: math.MinInt16},
	}
	for _, test := range tests {
		if v := toInt16(test.in); v != test.want {
			t.Errorf("%v: %v != %v", test.in, v, test.want)
		}
	}
}

func TestResample(t *testing.T) {
	r, err := New(44100, 48000, QualityDesktop)
	if err != nil {
		t.Fatalf("speex: %v", err)
	}
	defer func() { _ = r.Close() }()

	const frames = 4410
	in := make([]int16, frames*2)
	for i := range frames {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/44100))
		in[i*2], in[i*2+1] = v, v
	}
	out := make([]int16, media.OutSize(len(in), 44100, 48000))

	total := 0
	for range 10 {
		n, err := r.Process(out, in)
		if err != nil {
			t.Fatalf("process: %v", err)
		}
		for i := 0; i < n; i += 2 {
			if out[i] != out[i+1] {
				t.Fatalf("channels differ at %v", i)
			}
		}
		total += n
	}
	// the filter delay eats some frames at the start
	if want := 48000 * 2; total > want || total < want-2*200 {
		t.Errorf("one second gave %v samples", total)
	}
}

func TestClosed(t *testing.T) {
	r, err := New(32000, 48000, QualityMin)
	if err != nil {
		t.Fatalf("speex: %v", err)
	}
	_ = r.Close()
	if _, err := r.Process(make([]int16, 4), make([]int16, 4)); err == nil {
		t.Errorf("closed resampler should fail")
	}
	if err := r.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
