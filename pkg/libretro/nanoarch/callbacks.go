package nanoarch

/*
#include "nanoarch.h"
*/
import "C"

import (
	"strings"
	"unsafe"

	"github.com/retrohost/retrohost/pkg/libretro"
	"github.com/retrohost/retrohost/pkg/libretro/abi"
	"github.com/retrohost/retrohost/pkg/libretro/core"
	"github.com/retrohost/retrohost/pkg/logger"
	"github.com/retrohost/retrohost/pkg/thread"
)

func current() *Core {
	c, ok := sessions.lookup(thread.Id())
	if !ok {
		return nil
	}
	return c
}

//export coreEnvironment
func coreEnvironment(cmd C.uint, data unsafe.Pointer) C.bool {
	c := current()
	if c == nil || c.env == nil {
		return false
	}
	ok, err := c.env.Handle(uint32(cmd), data)
	if err != nil {
		c.log.Error().Err(err).Msgf("env %v", uint32(cmd)&^abi.Experimental)
		return false
	}
	if ok && uint32(cmd)&^abi.Experimental == abi.EnvSetPixelFormat {
		c.format.Store(*(*uint32)(data))
	}
	return C.bool(ok)
}

//export coreVideoRefresh
func coreVideoRefresh(data unsafe.Pointer, width, height C.uint, pitch C.size_t) {
	c := current()
	if c == nil {
		return
	}
	frame := core.Frame{
		Width:  uint(width),
		Height: uint(height),
		Pitch:  uint(pitch),
		Format: libretro.PixelFormat(c.format.Load()),
	}
	switch {
	case data == nil:
		frame.Dup = true
	case uintptr(data) == abi.HwFrameBufferValid:
		frame.Hw = true
	default:
		frame.Data = unsafe.Slice((*byte)(data), int(pitch)*int(height))
	}
	c.cb.Video(frame)
}

//export coreInputPoll
func coreInputPoll() {
	if c := current(); c != nil {
		c.cb.InputPoll()
	}
}

//export coreInputState
func coreInputState(port, device, index, id C.uint) C.int16_t {
	c := current()
	if c == nil {
		return 0
	}
	return C.int16_t(c.cb.InputState(uint(port), uint(device), uint(index), uint(id)))
}

//export coreAudioSample
func coreAudioSample(left, right C.int16_t) {
	c := current()
	if c == nil {
		return
	}
	c.sample[0], c.sample[1] = int16(left), int16(right)
	c.audio.Write(c.sample[:], c.onAudio)
}

//export coreAudioSampleBatch
func coreAudioSampleBatch(data unsafe.Pointer, frames C.size_t) C.size_t {
	c := current()
	if c == nil || data == nil || frames == 0 {
		return frames
	}
	// keep the order with the single samples
	c.audio.Flush(c.onAudio)
	c.cb.Audio(unsafe.Slice((*int16)(data), int(frames)*2))
	return frames
}

//export coreLog
func coreLog(level C.int, msg *C.char) {
	log := logger.Default()
	if c := current(); c != nil {
		log = c.coreLog
	}
	m := strings.TrimRight(C.GoString(msg), "\r\n")
	switch int(level) {
	case abi.LogDebug:
		log.Debug().Msg(m)
	case abi.LogInfo:
		log.Info().Msg(m)
	case abi.LogWarn:
		log.Warn().Msg(m)
	default:
		log.Error().Msg(m)
	}
}

//export coreGetTimeUsec
func coreGetTimeUsec() C.int64_t { return C.int64_t(timeUsec()) }

//export coreGetCpuFeatures
func coreGetCpuFeatures() C.uint64_t { return C.uint64_t(cpuFeatures()) }

//export coreGetPerfCounter
func coreGetPerfCounter() C.uint64_t { return C.uint64_t(perfCounter()) }
