package nanoarch

import (
	"time"

	"github.com/retrohost/retrohost/pkg/libretro/abi"
	"golang.org/x/sys/cpu"
)

var epoch = time.Now()

// cpuFeatures are the RETRO_SIMD_* flags of the host CPU.
func cpuFeatures() uint64 {
	var f uint64
	set := func(has bool, flag uint64) {
		if has {
			f |= flag
		}
	}
	set(cpu.X86.HasSSE2, abi.SimdSSE|abi.SimdSSE2|abi.SimdMMX|abi.SimdMMXEXT|abi.SimdCMOV)
	set(cpu.X86.HasSSE3, abi.SimdSSE3)
	set(cpu.X86.HasSSSE3, abi.SimdSSSE3)
	set(cpu.X86.HasSSE41, abi.SimdSSE4)
	set(cpu.X86.HasSSE42, abi.SimdSSE42)
	set(cpu.X86.HasAVX, abi.SimdAVX)
	set(cpu.X86.HasAVX2, abi.SimdAVX2)
	set(cpu.X86.HasAES, abi.SimdAES)
	set(cpu.X86.HasPOPCNT, abi.SimdPOPCNT)
	set(cpu.ARM64.HasASIMD, abi.SimdASIMD|abi.SimdNEON)
	set(cpu.ARM64.HasAES, abi.SimdAES)
	set(cpu.ARM.HasNEON, abi.SimdNEON)
	set(cpu.ARM.HasVFPv3, abi.SimdVFPV3)
	set(cpu.ARM.HasVFPv4, abi.SimdVFPV4)
	return f
}

func timeUsec() int64 { return time.Now().UnixMicro() }

// perfCounter is a monotonic tick count in nanoseconds.
func perfCounter() uint64 { return uint64(time.Since(epoch).Nanoseconds()) }
