// Package abi has the libretro constants and Go mirrors of the C structs
// which cores pass through the environment callback.
// The struct layouts follow libretro.h on 64-bit targets.
package abi

const Experimental = 0x10000

// Environment commands.
const (
	EnvSetRotation                  = 1
	EnvGetOverscan                  = 2
	EnvGetCanDupe                   = 3
	EnvSetMessage                   = 6
	EnvShutdown                     = 7
	EnvSetPerformanceLevel          = 8
	EnvGetSystemDirectory           = 9
	EnvSetPixelFormat               = 10
	EnvSetInputDescriptors          = 11
	EnvSetKeyboardCallback          = 12
	EnvSetDiskControlInterface      = 13
	EnvSetHwRender                  = 14
	EnvGetVariable                  = 15
	EnvSetVariables                 = 16
	EnvGetVariableUpdate            = 17
	EnvSetSupportNoGame             = 18
	EnvGetLibretroPath              = 19
	EnvSetFrameTimeCallback         = 21
	EnvSetAudioCallback             = 22
	EnvGetRumbleInterface           = 23
	EnvGetInputDeviceCapabilities   = 24
	EnvGetLogInterface              = 27
	EnvGetPerfInterface             = 28
	EnvGetLocationInterface         = 29
	EnvGetCoreAssetsDirectory       = 30
	EnvGetSaveDirectory             = 31
	EnvSetSystemAvInfo              = 32
	EnvSetProcAddressCallback       = 33
	EnvSetSubsystemInfo             = 34
	EnvSetControllerInfo            = 35
	EnvSetMemoryMaps                = 36 | Experimental
	EnvSetGeometry                  = 37
	EnvGetUsername                  = 38
	EnvGetLanguage                  = 39
	EnvGetCurrentSoftwareFramebuf   = 40 | Experimental
	EnvGetHwRenderInterface         = 41 | Experimental
	EnvSetSupportAchievements       = 42 | Experimental
	EnvSetSerializationQuirks       = 44
	EnvGetVfsInterface              = 45 | Experimental
	EnvGetLedInterface              = 46 | Experimental
	EnvGetAudioVideoEnable          = 47 | Experimental
	EnvGetFastForwarding            = 49 | Experimental
	EnvGetTargetRefreshRate         = 50 | Experimental
	EnvGetInputBitmasks             = 51 | Experimental
	EnvGetCoreOptionsVersion        = 52
	EnvSetCoreOptions               = 53
	EnvSetCoreOptionsIntl           = 54
	EnvSetCoreOptionsDisplay        = 55
	EnvGetPreferredHwRender         = 56
	EnvGetDiskControlIfaceVersion   = 57
	EnvGetMessageInterfaceVersion   = 59
	EnvSetMessageExt                = 60
	EnvGetInputMaxUsers             = 61
	EnvSetMinimumAudioLatency       = 63
	EnvSetContentInfoOverride       = 65
	EnvGetGameInfoExt               = 66
	EnvSetCoreOptionsV2             = 67
	EnvSetCoreOptionsV2Intl         = 68
	EnvSetCoreOptionsUpdateDisplay  = 69
	EnvSetVariable                  = 70
	EnvGetThrottleState             = 71 | Experimental
	EnvGetSavestateContext          = 72 | Experimental
	EnvGetJitCapable                = 74
	EnvGetMicrophoneInterface       = 75 | Experimental
	EnvGetDevicePower               = 77 | Experimental
	EnvSetNetpacketInterface        = 78
	EnvGetPlaylistDirectory         = 79
	EnvGetFileBrowserStartDirectory = 80
)

// CoreOptionsVersion is the highest core options API version we handle.
const CoreOptionsVersion = 2

const (
	MaxSubsystems           = 40
	MaxSubsystemRoms        = 16
	MaxControllerPorts      = 8
	NumCoreOptionValuesMax  = 128
	MaxCoreOptionKeyLen     = 255
	MaxCStringLen           = 65535
	AudioVideoEnableVideo   = 1 << 0
	AudioVideoEnableAudio   = 1 << 1
	HwFrameBufferValid      = ^uintptr(0)
	VfsInterfaceVersionHost = 3
)

// Pixel formats.
const (
	PixelFormat0RGB1555 = 0
	PixelFormatXRGB8888 = 1
	PixelFormatRGB565   = 2
	PixelFormatUnknown  = 0x7fffffff
)

// HwContextType mirrors enum retro_hw_context_type.
type HwContextType int32

const (
	HwContextNone HwContextType = iota
	HwContextOpenGL
	HwContextOpenGLES2
	HwContextOpenGLCore
	HwContextOpenGLES3
	HwContextOpenGLESVersion
	HwContextVulkan
	HwContextD3D11
	HwContextD3D10
	HwContextD3D12
	HwContextD3D9
)

func (t HwContextType) String() string {
	switch t {
	case HwContextNone:
		return "none"
	case HwContextOpenGL:
		return "OpenGL"
	case HwContextOpenGLES2:
		return "OpenGLES2"
	case HwContextOpenGLCore:
		return "OpenGL Core"
	case HwContextOpenGLES3:
		return "OpenGLES3"
	case HwContextOpenGLESVersion:
		return "OpenGLES"
	case HwContextVulkan:
		return "Vulkan"
	case HwContextD3D11, HwContextD3D10, HwContextD3D12, HwContextD3D9:
		return "Direct3D"
	}
	return "unknown"
}

// Log levels.
const (
	LogDebug = iota
	LogInfo
	LogWarn
	LogError
)

// Input devices.
const (
	DeviceNone = iota
	DeviceJoypad
	DeviceMouse
	DeviceKeyboard
	DeviceLightgun
	DeviceAnalog
	DevicePointer
)

const (
	DeviceIdJoypadB = iota
	DeviceIdJoypadY
	DeviceIdJoypadSelect
	DeviceIdJoypadStart
	DeviceIdJoypadUp
	DeviceIdJoypadDown
	DeviceIdJoypadLeft
	DeviceIdJoypadRight
	DeviceIdJoypadA
	DeviceIdJoypadX
	DeviceIdJoypadL
	DeviceIdJoypadR
	DeviceIdJoypadL2
	DeviceIdJoypadR2
	DeviceIdJoypadL3
	DeviceIdJoypadR3
	DeviceIdJoypadMask = 256
)

const (
	DeviceIndexAnalogLeft   = 0
	DeviceIndexAnalogRight  = 1
	DeviceIndexAnalogButton = 2
	DeviceIdAnalogX         = 0
	DeviceIdAnalogY         = 1
)

// Memory regions.
const (
	MemorySaveRam   = 0
	MemoryRtc       = 1
	MemorySystemRam = 2
	MemoryVideoRam  = 3
)

// Perf CPU feature flags.
const (
	SimdSSE    = 1 << 0
	SimdSSE2   = 1 << 1
	SimdVMX    = 1 << 2
	SimdVMX128 = 1 << 3
	SimdAVX    = 1 << 4
	SimdNEON   = 1 << 5
	SimdSSE3   = 1 << 6
	SimdSSSE3  = 1 << 7
	SimdMMX    = 1 << 8
	SimdMMXEXT = 1 << 9
	SimdSSE4   = 1 << 10
	SimdSSE42  = 1 << 11
	SimdAVX2   = 1 << 12
	SimdVFPU   = 1 << 13
	SimdPS     = 1 << 14
	SimdAES    = 1 << 15
	SimdVFPV3  = 1 << 16
	SimdVFPV4  = 1 << 17
	SimdPOPCNT = 1 << 18
	SimdMOVBE  = 1 << 19
	SimdCMOV   = 1 << 20
	SimdASIMD  = 1 << 21
)
