package core

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/retrohost/retrohost/pkg/compression/zip"
	"github.com/retrohost/retrohost/pkg/libretro"
	"github.com/retrohost/retrohost/pkg/libretro/abi"
	"github.com/retrohost/retrohost/pkg/libretro/savestate"
	"github.com/retrohost/retrohost/pkg/logger"
	"github.com/retrohost/retrohost/pkg/os"
)

type State int32

const (
	Uninitialized State = iota
	Initialized
	GameLoaded
	Terminated
)

var stateNames = [...]string{"uninitialized", "initialized", "game loaded", "terminated"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Host owns a core and calls it only in the order the libretro API allows.
// All the methods are serialized, the core callbacks happen inside Run
// on the caller's thread.
type Host struct {
	mu    sync.Mutex
	state State

	plugin Plugin
	cb     Callbacks
	env    *libretro.Dispatcher
	sys    SystemInfo

	av    *libretro.AvInfo
	opts  *libretro.OptionStore
	paths libretro.PathSet
	subs  *libretro.SubsystemTable

	rom        string
	extracted  string
	extensions string
	optsFile   string
	overrides  map[string]string
	graphics   *libretro.GraphicsApi
	envOptions []libretro.DispatcherOption

	log *logger.Logger
}

type Option func(*Host)

func WithLogger(l *logger.Logger) Option { return func(h *Host) { h.log = l } }

// WithOptions sets core option values which win over saved and default ones.
func WithOptions(overrides map[string]string) Option {
	return func(h *Host) { h.overrides = overrides }
}

// WithOptionsFile keeps the core options in a file between sessions.
func WithOptionsFile(path string) Option { return func(h *Host) { h.optsFile = path } }

func WithGraphics(g *libretro.GraphicsApi) Option { return func(h *Host) { h.graphics = g } }
func WithCallbacks(cb Callbacks) Option           { return func(h *Host) { h.cb = cb } }

// WithExtensions is the list of ROM extensions used when the core has none.
func WithExtensions(ext string) Option { return func(h *Host) { h.extensions = ext } }

func WithDispatcherOptions(o ...libretro.DispatcherOption) Option {
	return func(h *Host) { h.envOptions = append(h.envOptions, o...) }
}

// New binds the host to the core and initializes it.
// The core is closed when it fails to initialize.
func New(plugin Plugin, paths libretro.PathSet, opts ...Option) (*Host, error) {
	if plugin == nil {
		return nil, fmt.Errorf("%w: no core", libretro.ErrValidation)
	}
	h := &Host{plugin: plugin, paths: paths, cb: NoCallbacks{}, log: logger.Default()}
	for _, o := range opts {
		o(h)
	}
	h.log = h.log.Module("core")

	h.av = libretro.NewAvInfo(h.graphics)
	h.opts = libretro.NewOptionStore(h.overrides)
	h.subs = &libretro.SubsystemTable{}
	if h.optsFile != "" {
		if err := h.opts.Load(h.optsFile); err != nil {
			h.log.Warn().Err(err).Msgf("couldn't read options %v", h.optsFile)
		}
	}
	envOpts := append([]libretro.DispatcherOption{libretro.WithLogger(h.log)}, h.envOptions...)
	h.env = libretro.NewDispatcher(h.av, h.opts, paths, h.subs, envOpts...)

	h.sys = plugin.SystemInfo()
	plugin.Bind(h.env, h.cb)

	if err := h.Init(); err != nil {
		h.env.Close()
		var result *multierror.Error
		result = multierror.Append(result, err)
		if cerr := plugin.Close(); cerr != nil {
			result = multierror.Append(result, cerr)
		}
		return nil, result.ErrorOrNil()
	}
	return h, nil
}

// Init initializes the core, it's done once by New.
func (h *Host) Init() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Uninitialized {
		return h.lifecycle("init")
	}
	if err := h.plugin.Init(); err != nil {
		return fmt.Errorf("%w: init: %w", libretro.ErrPluginRejected, err)
	}
	h.state = Initialized
	h.log.Info().Msgf("Core %v %v is ready", h.sys.LibraryName, h.sys.LibraryVersion)
	return nil
}

// LoadGame checks and loads a ROM file.
// When it returns, the AV info has the values of the loaded game.
func (h *Host) LoadGame(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Initialized {
		return h.lifecycle("load game")
	}
	if path == "" && h.env.SupportsNoGame() {
		return h.start(GameInfo{}, libretro.SanitizeName(h.sys.LibraryName))
	}

	if err := libretro.ValidatePath(path); err != nil {
		return err
	}
	ext := h.sys.ValidExtensions
	if ext == "" {
		ext = h.extensions
	}
	if h.extractable(path, ext) {
		rom, err := h.extract(path, ext)
		if err != nil {
			return err
		}
		path = rom
		defer func() {
			if h.state != GameLoaded {
				h.cleanExtracted()
			}
		}()
	}
	if err := libretro.ValidateRomExtension(path, ext); err != nil {
		return err
	}
	size, err := os.FileSize(path)
	if err != nil {
		return fmt.Errorf("%w: %w", libretro.ErrResourceUnavailable, err)
	}
	if err := libretro.ValidateRomSize(size); err != nil {
		return err
	}

	game := GameInfo{Path: path}
	if !h.sys.NeedFullpath {
		if game.Data, err = os.ReadFile(path); err != nil {
			return fmt.Errorf("%w: %w", libretro.ErrResourceUnavailable, err)
		}
	}
	h.log.Debug().Msgf("ROM size: %v, fullpath: %v", size, h.sys.NeedFullpath)
	return h.start(game, libretro.RomName(path))
}

// start loads the game into the core, a game without a path
// starts cores that run without content.
func (h *Host) start(game GameInfo, rom string) error {
	if !h.plugin.LoadGame(game) {
		return fmt.Errorf("%w: load game %v", libretro.ErrPluginRejected, rom)
	}
	if err := h.av.SetAvInfo(h.plugin.SystemAvInfo()); err != nil {
		h.plugin.UnloadGame()
		return err
	}
	h.rom = rom
	h.state = GameLoaded

	if err := h.loadRam(); err != nil {
		h.log.Warn().Err(err).Msg("no battery save")
	}
	av := h.av.Snapshot()
	h.log.Info().Msgf("Loaded %v: %v, %.4f fps, %v Hz, %v",
		h.rom, av.Geometry, av.Timing.Fps, av.Timing.SampleRate, av.PixelFormat)
	return nil
}

// Run runs the core for one frame.
func (h *Host) Run() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != GameLoaded {
		return h.lifecycle("run")
	}
	h.plugin.Run()
	return nil
}

func (h *Host) Reset() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != GameLoaded {
		return h.lifecycle("reset")
	}
	h.plugin.Reset()
	return nil
}

// SaveState writes the core state into a slot.
func (h *Host) SaveState(slot int) (savestate.SaveInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != GameLoaded {
		return savestate.SaveInfo{}, h.lifecycle("save state")
	}
	info := h.saveInfo(slot)
	if err := savestate.Save(info, h.plugin.Serialize); err != nil {
		return info, err
	}
	h.log.Debug().Msgf("saved %v bytes into %v", info.Size, info.Path())
	return info, nil
}

// LoadState restores the core state from a slot.
func (h *Host) LoadState(slot int) (savestate.SaveInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != GameLoaded {
		return savestate.SaveInfo{}, h.lifecycle("load state")
	}
	info := h.saveInfo(slot)
	if err := savestate.Load(info, h.plugin.Unserialize); err != nil {
		return info, err
	}
	h.log.Debug().Msgf("loaded %v", info.Path())
	return info, nil
}

// SaveInfo describes a slot of the loaded game.
func (h *Host) SaveInfo(slot int) (savestate.SaveInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != GameLoaded {
		return savestate.SaveInfo{}, h.lifecycle("save info")
	}
	return h.saveInfo(slot), nil
}

func (h *Host) saveInfo(slot int) savestate.SaveInfo {
	return savestate.SaveInfo{
		Dir:     h.paths.Save(),
		Library: libretro.SanitizeName(h.sys.LibraryName),
		Rom:     h.rom,
		Slot:    slot,
		Size:    int(h.plugin.SerializeSize()),
	}
}

// UnloadGame unloads the game, without a game it does nothing.
func (h *Host) UnloadGame() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case GameLoaded:
		return h.unload()
	case Initialized:
		return nil
	default:
		return h.lifecycle("unload game")
	}
}

func (h *Host) unload() error {
	err := h.saveRam()
	h.plugin.UnloadGame()
	h.cleanExtracted()
	h.state = Initialized
	h.log.Info().Msgf("Unloaded %v", h.rom)
	h.rom = ""
	return err
}

// extractable is a zip archive which the core can't open itself.
func (h *Host) extractable(path, ext string) bool {
	if h.sys.BlockExtract || !strings.EqualFold(filepath.Ext(path), zip.Ext) {
		return false
	}
	return libretro.ValidateRomExtension(path, ext) != nil
}

// extract unpacks the first ROM of the archive into the save dir,
// it stays there until the game is unloaded.
func (h *Host) extract(path, ext string) (string, error) {
	h.cleanExtracted()
	dir := filepath.Join(h.paths.Save(), ".extract", libretro.RomName(path))
	files, err := zip.New(h.log).Extract(path, dir, ext)
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("%w: %v: %w", libretro.ErrResourceUnavailable, path, err)
	}
	h.extracted = dir
	h.log.Debug().Msgf("Extracted %v", files[0])
	return files[0], nil
}

func (h *Host) cleanExtracted() {
	if h.extracted == "" {
		return
	}
	if err := os.RemoveAll(h.extracted); err != nil {
		h.log.Warn().Err(err).Msgf("couldn't remove %v", h.extracted)
	}
	h.extracted = ""
}

// Deinit shuts the core down and releases it.
// It always ends in the terminal state, the errors on the way are collected.
func (h *Host) Deinit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Terminated {
		return nil
	}

	var result *multierror.Error
	if h.state == GameLoaded {
		if err := h.unload(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if h.state == Initialized {
		h.plugin.Deinit()
	}
	if h.optsFile != "" {
		if err := h.opts.Save(h.optsFile); err != nil {
			result = multierror.Append(result, err)
		}
	}
	h.env.Close()
	if err := h.plugin.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("%w: close: %w", libretro.ErrResourceUnavailable, err))
	}
	h.state = Terminated
	h.log.Debug().Msg("Core is closed")
	return result.ErrorOrNil()
}

// ConnectController sets the device type of a port.
func (h *Host) ConnectController(port, device uint) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Initialized && h.state != GameLoaded {
		return h.lifecycle("connect controller")
	}
	if err := libretro.ValidatePort(port); err != nil {
		return err
	}
	if !h.subs.HasController(int(port), uint32(device)) {
		h.log.Warn().Msgf("device %v is not declared for the port %v", device, port)
	}
	h.plugin.SetControllerPortDevice(port, device)
	return nil
}

func (h *Host) loadRam() error {
	mem := h.memory()
	if mem == nil {
		return nil
	}
	return savestate.LoadRam(h.saveInfo(0), mem)
}

func (h *Host) saveRam() error {
	mem := h.memory()
	if mem == nil {
		return nil
	}
	return savestate.SaveRam(h.saveInfo(0), mem)
}

func (h *Host) memory() []byte {
	if mp, ok := h.plugin.(MemoryPlugin); ok {
		return mp.MemoryData(abi.MemorySaveRam)
	}
	return nil
}

func (h *Host) lifecycle(op string) error {
	return fmt.Errorf("%w: %v in the %v state", libretro.ErrLifecycle, op, h.state)
}

func (h *Host) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Host) RomName() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rom
}

// ShutdownRequested is true when the core asked to quit.
func (h *Host) ShutdownRequested() bool { return h.env.ShutdownRequested() }

func (h *Host) AvInfo() *libretro.AvInfo             { return h.av }
func (h *Host) Options() *libretro.OptionStore       { return h.opts }
func (h *Host) Subsystems() *libretro.SubsystemTable { return h.subs }
func (h *Host) SystemInfo() SystemInfo               { return h.sys }
