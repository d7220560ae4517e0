package libretro

import (
	"sync"

	"github.com/retrohost/retrohost/pkg/libretro/abi"
)

const maxControllerTypes = 64

type SubsystemRom struct {
	Desc         string
	Extensions   string
	NeedFullpath bool
	BlockExtract bool
	Required     bool
}

type Subsystem struct {
	Id    uint32
	Desc  string
	Ident string
	Roms  []SubsystemRom
}

type Controller struct {
	Id   uint32
	Desc string
}

// SubsystemTable keeps what the core tells about its subsystems
// and controller types per port.
type SubsystemTable struct {
	mu          sync.RWMutex
	subsystems  []Subsystem
	controllers [abi.MaxControllerPorts][]Controller
}

func (t *SubsystemTable) SetSubsystems(s []Subsystem) {
	if len(s) > abi.MaxSubsystems {
		s = s[:abi.MaxSubsystems]
	}
	t.mu.Lock()
	t.subsystems = s
	t.mu.Unlock()
}

func (t *SubsystemTable) Subsystems() []Subsystem {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.subsystems
}

func (t *SubsystemTable) SetControllers(port int, c []Controller) {
	if port < 0 || port >= abi.MaxControllerPorts {
		return
	}
	t.mu.Lock()
	t.controllers[port] = c
	t.mu.Unlock()
}

func (t *SubsystemTable) Controllers(port int) []Controller {
	if port < 0 || port >= abi.MaxControllerPorts {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.controllers[port]
}

// HasController tells if the device id was declared for the port,
// any device is fine when the core declared nothing.
func (t *SubsystemTable) HasController(port int, id uint32) bool {
	cs := t.Controllers(port)
	if len(cs) == 0 {
		return true
	}
	for _, c := range cs {
		if c.Id == id {
			return true
		}
	}
	return false
}

func readSubsystems(p *abi.SubsystemInfo) []Subsystem {
	var out []Subsystem
	for i := 0; i < abi.MaxSubsystems; i++ {
		info := abi.Index(p, i)
		if info.Desc == nil && info.Ident == nil {
			break
		}
		s := Subsystem{Id: info.Id, Desc: abi.GoString(info.Desc), Ident: abi.GoString(info.Ident)}
		for j := 0; j < int(min(info.NumRoms, abi.MaxSubsystemRoms)) && info.Roms != nil; j++ {
			r := abi.Index(info.Roms, j)
			s.Roms = append(s.Roms, SubsystemRom{
				Desc:         abi.GoString(r.Desc),
				Extensions:   abi.GoString(r.ValidExtensions),
				NeedFullpath: r.NeedFullpath,
				BlockExtract: r.BlockExtract,
				Required:     r.Required,
			})
		}
		out = append(out, s)
	}
	return out
}

func readControllers(p *abi.ControllerInfo) [][]Controller {
	var out [][]Controller
	for port := 0; port < abi.MaxControllerPorts; port++ {
		info := abi.Index(p, port)
		if info.Types == nil {
			break
		}
		var cs []Controller
		for j := 0; j < int(min(info.NumTypes, maxControllerTypes)); j++ {
			d := abi.Index(info.Types, j)
			cs = append(cs, Controller{Id: d.Id, Desc: abi.GoString(d.Desc)})
		}
		out = append(out, cs)
	}
	return out
}
