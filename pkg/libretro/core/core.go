// Package core runs a libretro core through its lifecycle.
package core

import (
	"unsafe"

	"github.com/retrohost/retrohost/pkg/libretro"
	"github.com/retrohost/retrohost/pkg/libretro/abi"
)

// Plugin is the raw libretro API of a loaded core.
// None of the methods are safe for concurrent use.
type Plugin interface {
	// Bind gives the core the host callbacks, it's called before Init.
	Bind(env Environment, cb Callbacks)
	Init() error
	Deinit()
	Run()
	Reset()
	LoadGame(game GameInfo) bool
	UnloadGame()
	SystemInfo() SystemInfo
	SystemAvInfo() abi.SystemAvInfo
	SerializeSize() uint
	Serialize(buf []byte) bool
	Unserialize(buf []byte) bool
	SetControllerPortDevice(port, device uint)
	// Close releases the library.
	Close() error
}

// MemoryPlugin is a core with exposed memory regions, e.g. battery saves.
type MemoryPlugin interface {
	MemoryData(id uint) []byte
}

// Environment answers RETRO_ENVIRONMENT_* calls.
type Environment interface {
	Handle(cmd uint32, data unsafe.Pointer) (bool, error)
}

// Callbacks are called by the core inside Run on the same thread.
type Callbacks interface {
	Video(frame Frame)
	Audio(samples []int16)
	InputPoll()
	InputState(port, device, index, id uint) int16
}

// Frame is a borrowed view of the core video frame, valid only until
// the callback returns.
type Frame struct {
	Data   []byte
	Width  uint
	Height uint
	Pitch  uint
	Format libretro.PixelFormat
	// Dup is a repeated frame without data.
	Dup bool
	// Hw is a frame rendered into the hardware framebuffer.
	Hw bool
}

type GameInfo struct {
	Path string
	Data []byte
	Meta string
}

type SystemInfo struct {
	LibraryName     string
	LibraryVersion  string
	ValidExtensions string
	NeedFullpath    bool
	BlockExtract    bool
}

type NoCallbacks struct{}

func (NoCallbacks) Video(Frame)                      {}
func (NoCallbacks) Audio([]int16)                    {}
func (NoCallbacks) InputPoll()                       {}
func (NoCallbacks) InputState(_, _, _, _ uint) int16 { return 0 }
