// Package recorder writes the session audio and video into a folder
// which ffmpeg can turn into a movie.
package recorder

import (
	"crypto/rand"
	"fmt"
	"image"
	"math/big"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/retrohost/retrohost/pkg/libretro"
	"github.com/retrohost/retrohost/pkg/logger"
	"github.com/retrohost/retrohost/pkg/os"
)

type Options struct {
	Dir string
	// folder name template: %date:<go layout>%, %game%, %user%, %rand:<n>%
	Name          string
	Game          string
	User          string
	Hz            int
	Fps           float64
	CompressLevel int
	Timecode      bool
}

type Recording struct {
	mu      sync.Mutex
	enabled bool

	audio *wavStream
	video *pngStream

	path string
	opts Options
	log  *logger.Logger
}

// naming regexp
var (
	reDate = regexp.MustCompile(`%date:(.*?)%`)
	reUser = regexp.MustCompile(`%user%`)
	reGame = regexp.MustCompile(`%game%`)
	reRand = regexp.MustCompile(`%rand:(\d+)%`)
)

func NewRecording(opts Options, log *logger.Logger) (*Recording, error) {
	if opts.Hz <= 0 || opts.Fps <= 0 {
		return nil, fmt.Errorf("%w: recording at %v Hz, %v fps", libretro.ErrValidation, opts.Hz, opts.Fps)
	}
	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, err
	}
	opts.Dir = dir
	return &Recording{opts: opts, log: log.Module("recorder")}, nil
}

// Start opens a new recording folder, it does nothing when recording already.
func (r *Recording) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enabled {
		return nil
	}

	name := libretro.SanitizeName(parseName(r.opts.Name, r.opts.Game, r.opts.User))
	if name == "" {
		name = time.Now().Format("20060102-150405")
	}
	path := filepath.Join(r.opts.Dir, name)
	if err := os.CheckCreateDir(path); err != nil {
		return err
	}

	audio, err := newWavStream(path, r.opts.Hz, r.log)
	if err != nil {
		return err
	}
	video, err := newPngStream(path, r.opts.Game, r.opts.Fps, r.opts.CompressLevel, r.opts.Timecode, r.log)
	if err != nil {
		return multierror.Append(err, audio.Stop())
	}
	audio.Start()
	video.Start()

	r.audio, r.video, r.path = audio, video, path
	r.enabled = true
	r.log.Info().Msgf("recording into %v", path)
	return nil
}

func (r *Recording) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return nil
	}
	r.enabled = false

	var result *multierror.Error
	result = multierror.Append(result, r.audio.Stop())
	result = multierror.Append(result, r.video.Stop())
	r.log.Info().Msgf("recorded %v frames into %v", r.video.Frames(), r.path)
	return result.ErrorOrNil()
}

func (r *Recording) Set(enable bool) error {
	if enable {
		return r.Start()
	}
	return r.Stop()
}

func (r *Recording) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// Path is the folder of the current or the last recording.
func (r *Recording) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

func (r *Recording) WriteVideo(img image.Image, dur time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enabled {
		r.video.Write(img, dur)
	}
}

func (r *Recording) WriteAudio(samples []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enabled {
		r.audio.Write(samples)
	}
}

func parseName(name, game, user string) (out string) {
	if d := reDate.FindStringSubmatch(name); d != nil {
		out = reDate.ReplaceAllString(name, time.Now().Format(d[1]))
	} else {
		out = name
	}
	if rnd := reRand.FindStringSubmatch(out); rnd != nil {
		out = reRand.ReplaceAllString(out, random(rnd[1]))
	}
	out = reUser.ReplaceAllString(out, user)
	out = reGame.ReplaceAllString(out, game)
	return
}

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func random(num string) string {
	n, err := strconv.Atoi(num)
	if err != nil {
		return ""
	}
	b := make([]byte, n)
	lim := big.NewInt(int64(len(letterBytes)))
	for i := range b {
		k, err := rand.Int(rand.Reader, lim)
		if err != nil {
			return ""
		}
		b[i] = letterBytes[k.Int64()]
	}
	return string(b)
}
