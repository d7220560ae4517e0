// Package nanoarch loads libretro cores from shared libraries.
package nanoarch

/*
#include <stdlib.h>
#include "nanoarch.h"
*/
import "C"

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/retrohost/retrohost/pkg/libretro"
	"github.com/retrohost/retrohost/pkg/libretro/abi"
	"github.com/retrohost/retrohost/pkg/libretro/core"
	"github.com/retrohost/retrohost/pkg/logger"
	"github.com/retrohost/retrohost/pkg/media"
	"github.com/retrohost/retrohost/pkg/thread"
)

// audioBatch is the size of the buffer for the cores sending one frame at a time.
const audioBatch = 1024

var sessions = newRegistry[*Core]()

type symbols struct {
	init, deinit, apiVersion              unsafe.Pointer
	getSystemInfo, getSystemAvInfo        unsafe.Pointer
	setEnvironment, setVideoRefresh       unsafe.Pointer
	setInputPoll, setInputState           unsafe.Pointer
	setAudioSample, setAudioSampleBatch   unsafe.Pointer
	reset, run, loadGame, unloadGame      unsafe.Pointer
	serializeSize, serialize, unserialize unsafe.Pointer
	setControllerPortDevice               unsafe.Pointer
	getMemorySize, getMemoryData          unsafe.Pointer
}

// Core is a core.Plugin of a shared library.
type Core struct {
	path string
	lib  unsafe.Pointer
	fn   symbols
	api  uint

	sys *core.SystemInfo
	env core.Environment
	cb  core.Callbacks

	format  atomic.Uint32
	audio   media.Buffer
	sample  [2]int16
	onAudio media.OnFull

	game struct {
		path, meta *C.char
		data       unsafe.Pointer
	}
	perf abi.PerfCallback

	log     *logger.Logger
	coreLog *logger.Logger
}

var (
	_ core.Plugin       = (*Core)(nil)
	_ core.MemoryPlugin = (*Core)(nil)
	_ libretro.Bridge   = (*Core)(nil)
)

// Open loads the core library and its API.
func Open(path string, log *logger.Logger) (*Core, error) {
	if err := libretro.ValidatePath(path); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Default()
	}
	c := &Core{path: path, log: log.Module("nanoarch"), cb: core.NoCallbacks{}}
	c.coreLog = log.Module("core")

	lib, err := loadLib(path)
	if err != nil {
		c.log.Warn().Err(err).Msgf("load fail: %v", path)
		if lib, err = loadLibRolling(path); err != nil {
			return nil, fmt.Errorf("%w: core %v: %v", libretro.ErrResourceUnavailable, path, err)
		}
	}
	c.lib = lib

	for _, s := range []struct {
		name string
		ptr  *unsafe.Pointer
	}{
		{"retro_init", &c.fn.init},
		{"retro_deinit", &c.fn.deinit},
		{"retro_api_version", &c.fn.apiVersion},
		{"retro_get_system_info", &c.fn.getSystemInfo},
		{"retro_get_system_av_info", &c.fn.getSystemAvInfo},
		{"retro_set_environment", &c.fn.setEnvironment},
		{"retro_set_video_refresh", &c.fn.setVideoRefresh},
		{"retro_set_input_poll", &c.fn.setInputPoll},
		{"retro_set_input_state", &c.fn.setInputState},
		{"retro_set_audio_sample", &c.fn.setAudioSample},
		{"retro_set_audio_sample_batch", &c.fn.setAudioSampleBatch},
		{"retro_reset", &c.fn.reset},
		{"retro_run", &c.fn.run},
		{"retro_load_game", &c.fn.loadGame},
		{"retro_unload_game", &c.fn.unloadGame},
		{"retro_serialize_size", &c.fn.serializeSize},
		{"retro_serialize", &c.fn.serialize},
		{"retro_unserialize", &c.fn.unserialize},
		{"retro_set_controller_port_device", &c.fn.setControllerPortDevice},
		{"retro_get_memory_size", &c.fn.getMemorySize},
		{"retro_get_memory_data", &c.fn.getMemoryData},
	} {
		if *s.ptr, err = loadFunction(lib, s.name); err != nil {
			_ = closeLib(lib)
			return nil, err
		}
	}

	c.api = uint(C.bridge_retro_api_version(c.fn.apiVersion))
	if c.api != C.RETRO_API_VERSION {
		_ = closeLib(lib)
		return nil, fmt.Errorf("%w: libretro API v%v", libretro.ErrUnsupported, c.api)
	}

	c.format.Store(abi.PixelFormat0RGB1555)
	c.audio = media.NewBuffer(audioBatch)
	c.onAudio = func(s media.Samples) { c.cb.Audio(s) }
	c.perf = abi.PerfCallback{
		GetTimeUsec:    uintptr(unsafe.Pointer(C.core_get_time_usec_cgo)),
		GetCpuFeatures: uintptr(unsafe.Pointer(C.core_get_cpu_features_cgo)),
		GetPerfCounter: uintptr(unsafe.Pointer(C.core_get_perf_counter_cgo)),
		PerfRegister:   uintptr(unsafe.Pointer(C.core_perf_register_cgo)),
		PerfStart:      uintptr(unsafe.Pointer(C.core_perf_start_cgo)),
		PerfStop:       uintptr(unsafe.Pointer(C.core_perf_stop_cgo)),
		PerfLog:        uintptr(unsafe.Pointer(C.core_perf_log_cgo)),
	}
	sessions.add(c)

	sys := c.SystemInfo()
	c.log.Info().Msgf("System >>> %v (%v) [%v] nfp: %v, api: %v",
		sys.LibraryName, sys.LibraryVersion, sys.ValidExtensions, sys.NeedFullpath, c.api)
	return c, nil
}

// call runs fn on a locked thread bound to the core,
// so the callbacks made from it find their way back here.
func (c *Core) call(fn func()) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	tok := thread.Id()
	if err := sessions.enter(tok, c); err != nil {
		return err
	}
	defer sessions.leave(tok)
	fn()
	return nil
}

func (c *Core) mustCall(name string, fn func()) {
	if err := c.call(fn); err != nil {
		c.log.Error().Err(err).Msgf("%v skipped", name)
	}
}

func (c *Core) Bind(env core.Environment, cb core.Callbacks) {
	c.env = env
	if cb != nil {
		c.cb = cb
	}
	c.mustCall("bind", func() {
		C.bridge_retro_set_callback(c.fn.setEnvironment, unsafe.Pointer(C.core_environment_cgo))
		C.bridge_retro_set_callback(c.fn.setVideoRefresh, unsafe.Pointer(C.core_video_refresh_cgo))
		C.bridge_retro_set_callback(c.fn.setInputPoll, unsafe.Pointer(C.core_input_poll_cgo))
		C.bridge_retro_set_callback(c.fn.setInputState, unsafe.Pointer(C.core_input_state_cgo))
		C.bridge_retro_set_callback(c.fn.setAudioSample, unsafe.Pointer(C.core_audio_sample_cgo))
		C.bridge_retro_set_callback(c.fn.setAudioSampleBatch, unsafe.Pointer(C.core_audio_sample_batch_cgo))
	})
}

func (c *Core) Init() error { return c.call(func() { C.bridge_call(c.fn.init) }) }
func (c *Core) Deinit()     { c.mustCall("deinit", func() { C.bridge_call(c.fn.deinit) }) }
func (c *Core) Reset()      { c.mustCall("reset", func() { C.bridge_call(c.fn.reset) }) }

func (c *Core) Run() {
	c.mustCall("run", func() {
		C.bridge_call(c.fn.run)
		c.audio.Flush(c.onAudio)
	})
}

func (c *Core) LoadGame(game core.GameInfo) bool {
	c.freeGame()
	if game.Path == "" && len(game.Data) == 0 {
		var ok bool
		c.mustCall("load", func() { ok = bool(C.bridge_retro_load_game(c.fn.loadGame, nil)) })
		return ok
	}
	var info C.struct_retro_game_info
	c.game.path = C.CString(game.Path)
	info.path = c.game.path
	if game.Meta != "" {
		c.game.meta = C.CString(game.Meta)
		info.meta = c.game.meta
	}
	if len(game.Data) > 0 {
		// cores may keep the pointer until the game is unloaded
		c.game.data = C.CBytes(game.Data)
		info.data = c.game.data
		info.size = C.size_t(len(game.Data))
	}

	var ok bool
	c.mustCall("load", func() { ok = bool(C.bridge_retro_load_game(c.fn.loadGame, &info)) })
	if !ok {
		c.freeGame()
		return false
	}
	// needed for nestopia
	for port := range uint(abi.MaxControllerPorts) {
		c.SetControllerPortDevice(port, abi.DeviceJoypad)
	}
	return true
}

func (c *Core) UnloadGame() {
	c.mustCall("unload", func() { C.bridge_call(c.fn.unloadGame) })
	c.freeGame()
}

func (c *Core) freeGame() {
	for _, p := range []unsafe.Pointer{unsafe.Pointer(c.game.path), unsafe.Pointer(c.game.meta), c.game.data} {
		if p != nil {
			C.free(p)
		}
	}
	c.game.path, c.game.meta, c.game.data = nil, nil, nil
}

func (c *Core) SystemInfo() core.SystemInfo {
	if c.sys == nil {
		var si C.struct_retro_system_info
		C.bridge_retro_get_system_info(c.fn.getSystemInfo, &si)
		c.sys = &core.SystemInfo{
			LibraryName:     C.GoString(si.library_name),
			LibraryVersion:  C.GoString(si.library_version),
			ValidExtensions: C.GoString(si.valid_extensions),
			NeedFullpath:    bool(si.need_fullpath),
			BlockExtract:    bool(si.block_extract),
		}
	}
	return *c.sys
}

func (c *Core) SystemAvInfo() (av abi.SystemAvInfo) {
	c.mustCall("av", func() { C.bridge_retro_get_system_av_info(c.fn.getSystemAvInfo, unsafe.Pointer(&av)) })
	return
}

func (c *Core) SerializeSize() (n uint) {
	c.mustCall("serialize size", func() { n = uint(C.bridge_retro_serialize_size(c.fn.serializeSize)) })
	return
}

func (c *Core) Serialize(buf []byte) (ok bool) {
	if len(buf) == 0 {
		return false
	}
	c.mustCall("serialize", func() {
		ok = bool(C.bridge_retro_serialize(c.fn.serialize, unsafe.Pointer(&buf[0]), C.size_t(len(buf))))
	})
	return
}

func (c *Core) Unserialize(buf []byte) (ok bool) {
	if len(buf) == 0 {
		return false
	}
	c.mustCall("unserialize", func() {
		ok = bool(C.bridge_retro_unserialize(c.fn.unserialize, unsafe.Pointer(&buf[0]), C.size_t(len(buf))))
	})
	return
}

func (c *Core) SetControllerPortDevice(port, device uint) {
	c.mustCall("port device", func() {
		C.bridge_retro_set_controller_port_device(c.fn.setControllerPortDevice, C.unsigned(port), C.unsigned(device))
	})
}

// MemoryData is a view of the core memory, nil when the core has none.
func (c *Core) MemoryData(id uint) []byte {
	size := uint(C.bridge_retro_get_memory_size(c.fn.getMemorySize, C.unsigned(id)))
	ptr := C.bridge_retro_get_memory_data(c.fn.getMemoryData, C.unsigned(id))
	if size == 0 || ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), size)
}

func (c *Core) Close() error {
	sessions.remove(c)
	c.freeGame()
	err := closeLib(c.lib)
	c.lib = nil
	return err
}

func (c *Core) Log() uintptr { return uintptr(C.bridge_log_printf()) }

func (c *Core) Perf() *abi.PerfCallback { return &c.perf }

// Vfs has no file system to give, cores use their own.
func (c *Core) Vfs(uint32) (unsafe.Pointer, uint32) { return nil, 0 }

func (c *Core) HwRender(cb *abi.HwRenderCallback) {
	cb.GetCurrentFramebuffer = uintptr(unsafe.Pointer(C.core_hw_get_current_framebuffer_cgo))
	cb.GetProcAddress = uintptr(unsafe.Pointer(C.core_hw_get_proc_address_cgo))
}

func (c *Core) String() string { return fmt.Sprintf("nanoarch::%v", c.path) }
