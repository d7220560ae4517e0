package libretro

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/retrohost/retrohost/pkg/libretro/abi"
	"github.com/retrohost/retrohost/pkg/logger"
)

// Bridge gives the native functions which the host hands out to cores.
// The pure Go host has none of them, see NoBridge.
type Bridge interface {
	// Log is the retro_log_printf_t address, 0 when there is none.
	Log() uintptr
	// Perf returns the perf interface or nil.
	Perf() *abi.PerfCallback
	// Vfs returns the VFS interface of the highest version up to the requested one.
	Vfs(version uint32) (iface unsafe.Pointer, ver uint32)
	// HwRender fills the host functions of a hardware render request.
	HwRender(cb *abi.HwRenderCallback)
}

type NoBridge struct{}

func (NoBridge) Log() uintptr                        { return 0 }
func (NoBridge) Perf() *abi.PerfCallback             { return nil }
func (NoBridge) Vfs(uint32) (unsafe.Pointer, uint32) { return nil, 0 }
func (NoBridge) HwRender(*abi.HwRenderCallback)      {}

type handler func(d *Dispatcher, data unsafe.Pointer) (bool, error)

// Dispatcher answers the environment calls of a core.
// It keeps no state of its own besides the strings given to the core,
// everything else goes into the AvInfo, options, paths and subsystems
// of the session.
type Dispatcher struct {
	av    *AvInfo
	opts  *OptionStore
	paths PathSet
	subs  *SubsystemTable

	bridge   Bridge
	cstr     abi.CStrings
	username string
	language uint32
	noGame   atomic.Bool
	shutdown atomic.Bool

	onMessage func(msg string, frames uint32)
	observer  func(cmd uint32, handled bool)
	handlers  map[uint32]handler
	log       *logger.Logger
}

type DispatcherOption func(*Dispatcher)

func WithBridge(b Bridge) DispatcherOption { return func(d *Dispatcher) { d.bridge = b } }
func WithUser(name string, language uint32) DispatcherOption {
	return func(d *Dispatcher) { d.username, d.language = name, language }
}
func WithLogger(l *logger.Logger) DispatcherOption { return func(d *Dispatcher) { d.log = l } }

// WithObserver is called after every environment call.
func WithObserver(fn func(cmd uint32, handled bool)) DispatcherOption {
	return func(d *Dispatcher) { d.observer = fn }
}

func WithMessages(fn func(msg string, frames uint32)) DispatcherOption {
	return func(d *Dispatcher) { d.onMessage = fn }
}

func NewDispatcher(av *AvInfo, opts *OptionStore, paths PathSet, subs *SubsystemTable, options ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		av:       av,
		opts:     opts,
		paths:    paths,
		subs:     subs,
		bridge:   NoBridge{},
		username: "retrohost",
		log:      logger.Default(),
	}
	for _, o := range options {
		o(d)
	}
	d.log = d.log.Module("env")
	d.handlers = make(map[uint32]handler)
	for _, family := range []map[uint32]handler{directoryFamily, optionFamily, avFamily, miscFamily} {
		for cmd, h := range family {
			d.handlers[cmd&^abi.Experimental] = h
		}
	}
	return d
}

// Handle runs an environment command.
// Unknown commands return false without an error, errors are only for
// missing payloads which the command requires.
func (d *Dispatcher) Handle(cmd uint32, data unsafe.Pointer) (ok bool, err error) {
	h, found := d.handlers[cmd&^abi.Experimental]
	if !found {
		d.log.Debug().Msgf("unhandled env %v", cmd&^abi.Experimental)
		d.observe(cmd, false)
		return false, nil
	}
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("%w: env %v: %v", ErrResourceUnavailable, cmd, r)
		}
		d.observe(cmd, ok)
	}()
	return h(d, data)
}

// Commands lists every handled command.
func (d *Dispatcher) Commands() []uint32 {
	out := make([]uint32, 0, len(d.handlers))
	for cmd := range d.handlers {
		out = append(out, cmd)
	}
	return out
}

func (d *Dispatcher) observe(cmd uint32, handled bool) {
	if d.observer != nil {
		d.observer(cmd&^abi.Experimental, handled)
	}
}

// ShutdownRequested is true after the core asked to quit.
func (d *Dispatcher) ShutdownRequested() bool { return d.shutdown.Load() }

func (d *Dispatcher) SupportsNoGame() bool { return d.noGame.Load() }

// Close frees the strings given to the core, call it after the core is unloaded.
func (d *Dispatcher) Close() { d.cstr.Release() }

func required(data unsafe.Pointer, what string) error {
	if data == nil {
		return validationErr("nil payload of %v", what)
	}
	return nil
}

// set writes a value into the payload.
func set[T any](data unsafe.Pointer, what string, v T) (bool, error) {
	if err := required(data, what); err != nil {
		return false, err
	}
	*(*T)(data) = v
	return true, nil
}
