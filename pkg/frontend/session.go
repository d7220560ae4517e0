// Package frontend runs a game: it drives the core frame by frame and
// moves its video, audio and input to and from the rest of the program.
package frontend

import (
	"context"
	"fmt"
	"image"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/retrohost/retrohost/pkg/cloud"
	"github.com/retrohost/retrohost/pkg/config"
	"github.com/retrohost/retrohost/pkg/framesync"
	img "github.com/retrohost/retrohost/pkg/image"
	"github.com/retrohost/retrohost/pkg/libretro"
	"github.com/retrohost/retrohost/pkg/libretro/core"
	"github.com/retrohost/retrohost/pkg/libretro/savestate"
	"github.com/retrohost/retrohost/pkg/logger"
	"github.com/retrohost/retrohost/pkg/media"
	"github.com/retrohost/retrohost/pkg/media/speex"
	"github.com/retrohost/retrohost/pkg/monitoring"
	"github.com/retrohost/retrohost/pkg/os"
	"github.com/retrohost/retrohost/pkg/recorder"
	"github.com/retrohost/retrohost/pkg/thread"
)

const (
	thumbnailW = 160
	thumbnailH = 120
	// the slot of autosaves
	autoSlot = 0
)

var uploadRetry = cloud.NewRetry(time.Second, 3)

// Session is one core with one game.
//
// Run is the only method that calls the core callbacks, everything
// else may be called from other goroutines and is serialized by the host.
type Session struct {
	Id uuid.UUID

	conf  config.Config
	host  *core.Host
	sync  *framesync.FrameSync
	audio *media.Resampler
	rec   atomic.Pointer[recorder.Recording]
	store cloud.Storage

	input   InputState
	video   video
	watcher *optionsWatcher

	onVideo func(*image.RGBA)
	onAudio func(media.Samples)
	dsp     media.DSPFactory
	clock   framesync.Clock
	metrics *monitoring.Metrics

	gen      uint64
	dropped  uint64
	lastSave atomic.Int64
	uploads  sync.WaitGroup

	log *logger.Logger
}

type Option func(*Session)

func WithLogger(l *logger.Logger) Option       { return func(s *Session) { s.log = l } }
func WithMetrics(m *monitoring.Metrics) Option { return func(s *Session) { s.metrics = m } }
func WithStorage(st cloud.Storage) Option      { return func(s *Session) { s.store = st } }
func WithDSP(f media.DSPFactory) Option        { return func(s *Session) { s.dsp = f } }
func WithClock(c framesync.Clock) Option       { return func(s *Session) { s.clock = c } }
func WithAudio(fn func(media.Samples)) Option  { return func(s *Session) { s.onAudio = fn } }

// WithVideo gets every new frame converted to RGBA.
// Without it the frames are converted only for recordings and previews.
func WithVideo(fn func(*image.RGBA)) Option { return func(s *Session) { s.onVideo = fn } }

// NewSession initializes the core, the game is loaded with LoadGame.
func NewSession(conf config.Config, plugin core.Plugin, opts ...Option) (*Session, error) {
	s := &Session{
		Id:   uuid.Must(uuid.NewV4()),
		conf: conf,
		dsp:  speex.Factory(speex.QualityDesktop),
		log:  logger.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.Extend(s.log.With().Str("sid", s.Id.String()[:8]))

	if plugin == nil {
		return nil, fmt.Errorf("%w: no core", libretro.ErrValidation)
	}
	paths, err := libretro.NewPathSet(conf.Paths.System, conf.Paths.Save, conf.Paths.Assets)
	if err != nil {
		_ = plugin.Close()
		return nil, err
	}

	audioOpts := []media.ResamplerOption{
		media.WithDSP(s.dsp),
		media.WithSink(s.emitAudio),
		media.WithResamplerLogger(s.log),
	}
	if conf.Emulator.Audio.Buffer > 0 {
		audioOpts = append(audioOpts, media.WithBuffer(conf.Emulator.Audio.Buffer))
	}
	if s.audio, err = media.NewResampler(conf.Emulator.Audio.Hz, audioOpts...); err != nil {
		_ = plugin.Close()
		return nil, err
	}

	fsOpts := []framesync.Option{}
	if s.clock != nil {
		fsOpts = append(fsOpts, framesync.WithClock(s.clock))
	}
	tolerance := time.Duration(conf.Emulator.RateControlDelta * float64(time.Second))
	s.sync = framesync.New(tolerance, fsOpts...)

	envOpts := []libretro.DispatcherOption{
		libretro.WithUser(conf.Emulator.Username, conf.Emulator.Language),
		libretro.WithObserver(func(cmd uint32, handled bool) {
			s.metrics.Env(strconv.FormatUint(uint64(cmd), 10), handled)
		}),
		libretro.WithMessages(func(msg string, frames uint32) {
			s.log.Info().Msgf("[%v] %v", frames, msg)
		}),
	}
	if b, ok := plugin.(libretro.Bridge); ok {
		envOpts = append(envOpts, libretro.WithBridge(b))
	}

	library := libretro.SanitizeName(plugin.SystemInfo().LibraryName)
	optsFile := conf.OptionsPath(library)
	host, err := core.New(plugin, paths,
		core.WithLogger(s.log),
		core.WithCallbacks(callbacks{s}),
		core.WithOptions(conf.Emulator.Options),
		core.WithOptionsFile(optsFile),
		core.WithExtensions(conf.Library.Extensions),
		core.WithDispatcherOptions(envOpts...),
	)
	if err != nil {
		return nil, err
	}
	s.host = host

	if conf.Emulator.WatchOptions {
		w, err := watchOptions(optsFile, host.Options(), nil, s.log.Module("options"))
		if err != nil {
			s.log.Warn().Err(err).Msg("no options watcher")
		} else {
			s.watcher = w
		}
	}
	return s, nil
}

// LoadGame loads a ROM, restores the autosave and starts the audio.
// A missing local autosave is fetched from the storage first.
func (s *Session) LoadGame(ctx context.Context, path string) error {
	if err := s.host.LoadGame(path); err != nil {
		return err
	}

	auto, err := s.host.SaveInfo(autoSlot)
	if err != nil {
		return err
	}
	if s.store != nil && !os.Exists(auto.Path()) {
		if err := s.restore(ctx, auto); err != nil {
			s.log.Warn().Err(err).Msgf("no remote save %v", auto.Key())
		}
	}

	av := s.host.AvInfo()
	s.gen = av.Generation()
	s.setAudioSource()
	s.audio.Start()

	if s.conf.Recording.Enabled {
		if err := s.startRecording(); err != nil {
			s.log.Error().Err(err).Msg("recording")
		}
	}

	if s.conf.Emulator.Autosave() > 0 && os.Exists(auto.Path()) {
		_, err := s.host.LoadState(autoSlot)
		s.metrics.Save("load", err)
		if err != nil {
			s.log.Warn().Err(err).Msg("autosave is not loaded")
		}
	}
	s.lastSave.Store(time.Now().UnixNano())
	return nil
}

// Run runs n frames, or until the context is done when n is 0.
// The frames run on a locked OS thread, and so do the core callbacks.
func (s *Session) Run(ctx context.Context, n int) (err error) {
	<-thread.Locked(func() { err = s.loop(ctx, n) })
	return err
}

func (s *Session) loop(ctx context.Context, n int) error {
	if st := s.host.State(); st != core.GameLoaded {
		return fmt.Errorf("%w: run in the %v state", libretro.ErrLifecycle, st)
	}
	s.sync.Reset()
	for frame := 0; n <= 0 || frame < n; frame++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := s.sync.Prepare(s.fps()); err != nil {
			return err
		}
		start := time.Now()
		if err := s.host.Run(); err != nil {
			return err
		}
		work := time.Since(start)

		if g := s.host.AvInfo().Generation(); g != s.gen {
			s.gen = g
			s.setAudioSource()
		}
		if every := s.conf.Emulator.Autosave(); every > 0 && time.Since(time.Unix(0, s.lastSave.Load())) >= every {
			if err := s.Save(ctx, autoSlot); err != nil {
				s.log.Error().Err(err).Msg("autosave")
			}
		}

		sleep := s.sync.SyncNow()
		s.metrics.Frame(work, sleep)
		s.countDropped()

		if s.host.ShutdownRequested() {
			s.log.Info().Msg("The core has asked to shut down")
			return nil
		}
	}
	return nil
}

// fps is the frame rate of the core unless the config forces one.
func (s *Session) fps() float64 {
	if s.conf.Emulator.Fps > 0 {
		return s.conf.Emulator.Fps
	}
	return s.host.AvInfo().Timing().Fps
}

func (s *Session) setAudioSource() {
	hz := int(math.Round(s.host.AvInfo().Timing().SampleRate))
	if err := s.audio.SetSource(hz, 2); err != nil {
		s.log.Error().Err(err).Msg("audio source")
	}
}

func (s *Session) countDropped() {
	d := s.audio.Dropped()
	if d > s.dropped && s.metrics != nil {
		s.metrics.AudioDropped.Add(float64(d - s.dropped))
	}
	s.dropped = d
}

// Save writes a slot with a preview image and mirrors it into the storage.
func (s *Session) Save(ctx context.Context, slot int) error {
	info, err := s.host.SaveState(slot)
	s.metrics.Save("save", err)
	if err != nil {
		return err
	}
	s.lastSave.Store(time.Now().UnixNano())

	if frame, err := s.Frame(); err != nil {
		s.log.Warn().Err(err).Msg("no preview")
	} else if frame != nil {
		thumb := img.Thumbnail(frame, thumbnailW, thumbnailH, s.host.AvInfo().Geometry().Aspect())
		if err := img.SavePNG(info.PreviewPath(), thumb); err != nil {
			s.log.Warn().Err(err).Msg("no preview")
		}
	}
	s.mirror(ctx, info)
	return nil
}

// Load restores a slot.
func (s *Session) Load(slot int) error {
	_, err := s.host.LoadState(slot)
	s.metrics.Save("load", err)
	return err
}

func (s *Session) Reset() error { return s.host.Reset() }

// mirror uploads a slot in the background, the session waits for
// the uploads on Close.
func (s *Session) mirror(ctx context.Context, info savestate.SaveInfo) {
	if s.store == nil {
		return
	}
	data, err := os.ReadFile(info.Path())
	if err != nil {
		s.log.Error().Err(err).Msg("mirror")
		return
	}
	tags := map[string]string{
		"library": info.Library,
		"rom":     info.Rom,
		"session": s.Id.String(),
	}
	ctx = context.WithoutCancel(ctx)
	s.uploads.Add(1)
	go func() {
		defer s.uploads.Done()
		err := uploadRetry.Do(ctx, func() error { return s.store.Save(ctx, info.Key(), data, tags) })
		if err != nil {
			s.log.Error().Err(err).Msgf("upload %v", info.Key())
			return
		}
		s.log.Debug().Msgf("uploaded %v", info.Key())
	}()
}

func (s *Session) restore(ctx context.Context, info savestate.SaveInfo) error {
	if !s.store.Has(ctx, info.Key()) {
		return nil
	}
	data, err := s.store.Load(ctx, info.Key())
	if err != nil {
		return err
	}
	if err = os.CheckCreateDir(info.Folder()); err != nil {
		return err
	}
	if err = os.WriteFileAtomic(info.Path(), data, 0644); err != nil {
		return err
	}
	s.log.Info().Msgf("Restored %v from the storage", info.Key())
	return nil
}

// Frame returns the last frame of the core turned by the core
// rotation, nil before the first one.
func (s *Session) Frame() (*image.RGBA, error) {
	return s.video.snapshot(s.host.AvInfo().Rotation())
}

func (s *Session) Input() *InputState { return &s.input }

// ConnectController plugs a device into a port of the core.
func (s *Session) ConnectController(port, device uint) error {
	return s.host.ConnectController(port, device)
}

func (s *Session) startRecording() error {
	rec := s.rec.Load()
	if rec == nil {
		var err error
		rec, err = recorder.NewRecording(recorder.Options{
			Dir:           s.conf.Recording.Dir,
			Name:          s.conf.Recording.Name,
			Game:          s.host.RomName(),
			User:          s.conf.Emulator.Username,
			Hz:            s.audio.Rate(),
			Fps:           s.fps(),
			CompressLevel: s.conf.Recording.CompressLevel,
			Timecode:      s.conf.Recording.Timecode,
		}, s.log)
		if err != nil {
			return err
		}
		s.rec.Store(rec)
	}
	return rec.Start()
}

// SetRecording starts or stops the recording of the game.
func (s *Session) SetRecording(enable bool) error {
	if s.host.State() != core.GameLoaded {
		return fmt.Errorf("%w: recording without a game", libretro.ErrLifecycle)
	}
	if enable {
		return s.startRecording()
	}
	if rec := s.rec.Load(); rec != nil {
		return rec.Stop()
	}
	return nil
}

func (s *Session) Recording() bool {
	rec := s.rec.Load()
	return rec != nil && rec.Enabled()
}

func (s *Session) emitAudio(samples media.Samples) {
	if rec := s.rec.Load(); rec != nil {
		rec.WriteAudio(samples)
	}
	if s.onAudio != nil {
		s.onAudio(samples)
	}
}

func (s *Session) Host() *core.Host { return s.host }

// Close stops everything and releases the core.
func (s *Session) Close() error {
	var result *multierror.Error
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.audio.Stop()
	if rec := s.rec.Load(); rec != nil {
		if err := rec.Stop(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.uploads.Wait()
	if err := s.host.Deinit(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// callbacks are the core callbacks, called by the core inside Run.
type callbacks struct{ s *Session }

func (c callbacks) Video(f core.Frame) {
	s := c.s
	if !s.video.store(f) {
		return
	}
	if s.onVideo == nil && !s.Recording() {
		return
	}
	frame, err := s.Frame()
	if err != nil || frame == nil {
		return
	}
	if s.onVideo != nil {
		s.onVideo(frame)
	}
	if rec := s.rec.Load(); rec != nil {
		rec.WriteVideo(frame, s.sync.Target())
	}
}

func (c callbacks) Audio(samples []int16) { c.s.audio.Push(samples) }

func (c callbacks) InputPoll() {}

func (c callbacks) InputState(port, device, index, id uint) int16 {
	return c.s.input.State(port, device, index, id)
}
