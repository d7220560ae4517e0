// Package coretest has a pure Go core for tests of everything above the cgo layer.
package coretest

import (
	"sync"
	"unsafe"

	"github.com/retrohost/retrohost/pkg/libretro"
	"github.com/retrohost/retrohost/pkg/libretro/abi"
	"github.com/retrohost/retrohost/pkg/libretro/core"
)

// Fake is an in-memory core. It negotiates its settings through the
// environment like a real one and draws a frame of Av size on every Run.
type Fake struct {
	Info        core.SystemInfo
	Av          abi.SystemAvInfo
	PixelFormat uint32
	// Variables are legacy options like {"fake_palette", "Palette; a|b"}.
	Variables [][2]string

	// Memory is what gets serialized, Ram is the battery memory.
	Memory []byte
	Ram    []byte

	InitErr           error
	CloseErr          error
	RejectGame        bool
	RejectSerialize   bool
	RejectUnserialize bool
	// ShutdownAfter asks the host to quit after so many frames.
	ShutdownAfter int
	// NoGame runs without content.
	NoGame bool

	// Unhandled collects the environment calls the host refused.
	Unhandled []uint32

	mu     sync.Mutex
	env    core.Environment
	cb     core.Callbacks
	calls  []string
	frames int
	ports  map[uint]uint
	game   core.GameInfo
	vars   []abi.Variable
}

var _ core.Plugin = (*Fake)(nil)
var _ core.MemoryPlugin = (*Fake)(nil)

// NES returns a core with the values of a known NES core and ROM.
func NES() *Fake {
	return &Fake{
		Info: core.SystemInfo{
			LibraryName:     "FakeNES",
			LibraryVersion:  "1.0",
			ValidExtensions: "nes|fds",
		},
		Av: abi.SystemAvInfo{
			Geometry: abi.Geometry{BaseWidth: 256, BaseHeight: 240, MaxWidth: 602, MaxHeight: 240, AspectRatio: 4.0 / 3},
			Timing:   abi.SystemTiming{Fps: 60.0998, SampleRate: 48000},
		},
		PixelFormat: abi.PixelFormatXRGB8888,
		Variables:   [][2]string{{"fake_palette", "Palette; default|vivid|gray"}},
		Memory:      make([]byte, 4096),
		Ram:         make([]byte, 2048),
	}
}

func (f *Fake) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

// Calls lists the API calls in the order they were made.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) Frames() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

func (f *Fake) Port(port uint) (uint, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.ports[port]
	return d, ok
}

func (f *Fake) Game() core.GameInfo { return f.game }

func (f *Fake) call(cmd uint32, data unsafe.Pointer) bool {
	ok, err := f.env.Handle(cmd, data)
	if err != nil || !ok {
		f.Unhandled = append(f.Unhandled, cmd)
	}
	return ok
}

func (f *Fake) Bind(env core.Environment, cb core.Callbacks) {
	f.record("bind")
	f.env, f.cb = env, cb
}

func (f *Fake) Init() error {
	f.record("init")
	if f.InitErr != nil {
		return f.InitErr
	}
	var dir *byte
	f.call(abi.EnvGetSystemDirectory, unsafe.Pointer(&dir))
	if f.NoGame {
		noGame := true
		f.call(abi.EnvSetSupportNoGame, unsafe.Pointer(&noGame))
	}
	if len(f.Variables) > 0 {
		f.vars = f.vars[:0]
		for _, v := range f.Variables {
			f.vars = append(f.vars, abi.Variable{Key: abi.Bytes(v[0]), Value: abi.Bytes(v[1])})
		}
		f.vars = append(f.vars, abi.Variable{})
		f.call(abi.EnvSetVariables, unsafe.Pointer(&f.vars[0]))
	}
	return nil
}

func (f *Fake) Deinit() { f.record("deinit") }

func (f *Fake) LoadGame(game core.GameInfo) bool {
	f.record("load")
	if f.RejectGame {
		return false
	}
	f.game = game
	pf := f.PixelFormat
	f.call(abi.EnvSetPixelFormat, unsafe.Pointer(&pf))
	return true
}

func (f *Fake) UnloadGame() { f.record("unload") }

func (f *Fake) Run() {
	f.cb.InputPoll()
	keys := f.cb.InputState(0, abi.DeviceJoypad, 0, abi.DeviceIdJoypadMask)

	var update bool
	f.call(abi.EnvGetVariableUpdate, unsafe.Pointer(&update))

	f.mu.Lock()
	f.frames++
	if len(f.Memory) > 0 {
		f.Memory[f.frames%len(f.Memory)] = byte(f.frames) ^ byte(keys)
	}
	quit := f.ShutdownAfter > 0 && f.frames >= f.ShutdownAfter
	f.mu.Unlock()
	if quit {
		f.call(abi.EnvShutdown, nil)
	}

	bpp := uint(4)
	if f.PixelFormat != abi.PixelFormatXRGB8888 {
		bpp = 2
	}
	w, h := uint(f.Av.Geometry.BaseWidth), uint(f.Av.Geometry.BaseHeight)
	f.cb.Video(core.Frame{Data: make([]byte, w*h*bpp), Width: w, Height: h, Pitch: w * bpp, Format: libretro.PixelFormat(f.PixelFormat)})

	if f.Av.Timing.Fps > 0 {
		n := int(f.Av.Timing.SampleRate/f.Av.Timing.Fps) * 2
		samples := make([]int16, n)
		for i := range samples {
			samples[i] = int16(i)
		}
		f.cb.Audio(samples)
	}
}

func (f *Fake) Reset() {
	f.record("reset")
	f.mu.Lock()
	clear(f.Memory)
	f.mu.Unlock()
}

func (f *Fake) SystemInfo() core.SystemInfo    { return f.Info }
func (f *Fake) SystemAvInfo() abi.SystemAvInfo { return f.Av }
func (f *Fake) SerializeSize() uint            { return uint(len(f.Memory)) }

func (f *Fake) Serialize(buf []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RejectSerialize || len(buf) < len(f.Memory) {
		return false
	}
	copy(buf, f.Memory)
	return true
}

func (f *Fake) Unserialize(buf []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RejectUnserialize {
		return false
	}
	copy(f.Memory, buf)
	return true
}

func (f *Fake) SetControllerPortDevice(port, device uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ports == nil {
		f.ports = make(map[uint]uint)
	}
	f.ports[port] = device
}

func (f *Fake) MemoryData(id uint) []byte {
	if id == abi.MemorySaveRam {
		return f.Ram
	}
	return nil
}

func (f *Fake) Close() error {
	f.record("close")
	return f.CloseErr
}
