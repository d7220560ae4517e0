package abi

import "unsafe"

// Geometry is struct retro_game_geometry.
type Geometry struct {
	BaseWidth   uint32
	BaseHeight  uint32
	MaxWidth    uint32
	MaxHeight   uint32
	AspectRatio float32
}

// SystemTiming is struct retro_system_timing.
type SystemTiming struct {
	Fps        float64
	SampleRate float64
}

// SystemAvInfo is struct retro_system_av_info.
type SystemAvInfo struct {
	Geometry Geometry
	Timing   SystemTiming
}

// Variable is struct retro_variable.
type Variable struct {
	Key   *byte
	Value *byte
}

// CoreOptionDisplay is struct retro_core_option_display.
type CoreOptionDisplay struct {
	Key     *byte
	Visible bool
}

type CoreOptionValue struct {
	Value *byte
	Label *byte
}

type CoreOptionV2Category struct {
	Key  *byte
	Desc *byte
	Info *byte
}

type CoreOptionV2Definition struct {
	Key             *byte
	Desc            *byte
	DescCategorized *byte
	Info            *byte
	InfoCategorized *byte
	CategoryKey     *byte
	Values          [NumCoreOptionValuesMax]CoreOptionValue
	DefaultValue    *byte
}

type CoreOptionsV2 struct {
	Categories  *CoreOptionV2Category
	Definitions *CoreOptionV2Definition
}

type CoreOptionsV2Intl struct {
	Us    *CoreOptionsV2
	Local *CoreOptionsV2
}

// HwRenderCallback is struct retro_hw_render_callback.
// Function pointers are kept as plain addresses.
type HwRenderCallback struct {
	ContextType           HwContextType
	ContextReset          uintptr
	GetCurrentFramebuffer uintptr
	GetProcAddress        uintptr
	Depth                 bool
	Stencil               bool
	BottomLeftOrigin      bool
	VersionMajor          uint32
	VersionMinor          uint32
	CacheContext          bool
	ContextDestroy        uintptr
	DebugContext          bool
}

type SubsystemMemoryInfo struct {
	Extension *byte
	Type      uint32
}

type SubsystemRomInfo struct {
	Desc            *byte
	ValidExtensions *byte
	NeedFullpath    bool
	BlockExtract    bool
	Required        bool
	Memory          *SubsystemMemoryInfo
	NumMemory       uint32
}

type SubsystemInfo struct {
	Desc    *byte
	Ident   *byte
	Roms    *SubsystemRomInfo
	NumRoms uint32
	Id      uint32
}

type ControllerDescription struct {
	Desc *byte
	Id   uint32
}

type ControllerInfo struct {
	Types    *ControllerDescription
	NumTypes uint32
}

type LogCallback struct {
	Log uintptr
}

type Message struct {
	Msg    *byte
	Frames uint32
}

type PerfCallback struct {
	GetTimeUsec    uintptr
	GetCpuFeatures uintptr
	GetPerfCounter uintptr
	PerfRegister   uintptr
	PerfStart      uintptr
	PerfStop       uintptr
	PerfLog        uintptr
}

type VfsInterfaceInfo struct {
	RequiredInterfaceVersion uint32
	Iface                    unsafe.Pointer
}

// Index returns the i-th element of a C array starting at p.
func Index[T any](p *T, i int) *T {
	var zero T
	return (*T)(unsafe.Add(unsafe.Pointer(p), uintptr(i)*unsafe.Sizeof(zero)))
}
