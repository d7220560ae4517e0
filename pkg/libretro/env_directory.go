package libretro

import (
	"unsafe"

	"github.com/retrohost/retrohost/pkg/libretro/abi"
)

var directoryFamily = map[uint32]handler{
	abi.EnvGetSystemDirectory:     getSystemDirectory,
	abi.EnvGetSaveDirectory:       getSaveDirectory,
	abi.EnvGetCoreAssetsDirectory: getAssetsDirectory,
	abi.EnvSetSubsystemInfo:       setSubsystemInfo,
	abi.EnvGetVfsInterface:        getVfsInterface,
}

func getSystemDirectory(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	d.log.Debug().Msgf("system dir: %v", d.paths.System())
	return set(data, "system dir", d.cstr.Get(d.paths.System()))
}

func getSaveDirectory(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	d.log.Debug().Msgf("save dir: %v", d.paths.Save())
	return set(data, "save dir", d.cstr.Get(d.paths.Save()))
}

func getAssetsDirectory(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	return set(data, "assets dir", d.cstr.Get(d.paths.Assets()))
}

func setSubsystemInfo(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	if err := required(data, "subsystem info"); err != nil {
		return false, err
	}
	s := readSubsystems((*abi.SubsystemInfo)(data))
	d.subs.SetSubsystems(s)
	d.log.Debug().Msgf("subsystems: %v", len(s))
	return true, nil
}

// getVfsInterface always reports the support, the interface itself
// is set only when the bridge has one.
func getVfsInterface(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	if err := required(data, "vfs"); err != nil {
		return false, err
	}
	info := (*abi.VfsInterfaceInfo)(data)
	iface, ver := d.bridge.Vfs(info.RequiredInterfaceVersion)
	if iface != nil && ver >= info.RequiredInterfaceVersion {
		info.Iface = iface
		info.RequiredInterfaceVersion = ver
		d.log.Debug().Msgf("vfs v%v", ver)
	}
	return true, nil
}
