package frontend

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/retrohost/retrohost/pkg/libretro/abi"
)

const numAxes = 4

// InputState stores the controller state of all ports.
//   - uint16 button bitmask
//   - int16 analog axes x4 (left stick, right stick)
//   - int16 analog triggers x2 (L2, R2)
//
// It's written by any goroutine and read by the core on the run thread.
type InputState [abi.MaxControllerPorts]struct {
	keys     atomic.Uint32 // lower 16 bits used
	axes     atomic.Int64  // packed: [LX:16][LY:16][RX:16][RY:16]
	triggers atomic.Int32  // packed: [L2:16][R2:16]
}

// SetInput sets the input state of a port, ports out of range are ignored.
//
//	[BTN:2][LX:2][LY:2][RX:2][RY:2][L2:2][R2:2]
func (s *InputState) SetInput(port int, data []byte) {
	if port < 0 || port >= len(s) || len(data) < 2 {
		return
	}

	s[port].keys.Store(uint32(binary.LittleEndian.Uint16(data)))

	var packedAxes int64
	for i := 0; i < numAxes && i*2+3 < len(data); i++ {
		axis := int64(int16(binary.LittleEndian.Uint16(data[i*2+2:])))
		packedAxes |= (axis & 0xFFFF) << (i * 16)
	}
	s[port].axes.Store(packedAxes)

	if len(data) >= 14 {
		l2 := int32(int16(binary.LittleEndian.Uint16(data[10:])))
		r2 := int32(int16(binary.LittleEndian.Uint16(data[12:])))
		s[port].triggers.Store((l2 & 0xFFFF) | ((r2 & 0xFFFF) << 16))
	}
}

// SetButtons changes only the buttons of a port.
func (s *InputState) SetButtons(port int, buttons uint16) {
	if port < 0 || port >= len(s) {
		return
	}
	s[port].keys.Store(uint32(buttons))
}

// Reset releases everything.
func (s *InputState) Reset() {
	for p := range s {
		s[p].keys.Store(0)
		s[p].axes.Store(0)
		s[p].triggers.Store(0)
	}
}

// State answers the input state query of the core.
func (s *InputState) State(port, device, index, id uint) int16 {
	if port >= uint(len(s)) {
		return 0
	}
	p := &s[port]
	switch device {
	case abi.DeviceJoypad:
		keys := p.keys.Load()
		if id == abi.DeviceIdJoypadMask {
			return int16(keys)
		}
		if id < 16 && keys&(1<<id) != 0 {
			return 1
		}
	case abi.DeviceAnalog:
		switch index {
		case abi.DeviceIndexAnalogLeft, abi.DeviceIndexAnalogRight:
			if id > abi.DeviceIdAnalogY {
				return 0
			}
			return int16(p.axes.Load() >> ((index*2 + id) * 16))
		case abi.DeviceIndexAnalogButton:
			switch id {
			case abi.DeviceIdJoypadL2:
				return int16(p.triggers.Load())
			case abi.DeviceIdJoypadR2:
				return int16(p.triggers.Load() >> 16)
			}
			if id < 16 && p.keys.Load()&(1<<id) != 0 {
				return 0x7fff
			}
		}
	}
	return 0
}
