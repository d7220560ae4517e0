package libretro

import (
	"unsafe"

	"github.com/retrohost/retrohost/pkg/libretro/abi"
)

var miscFamily = map[uint32]handler{
	abi.EnvSetControllerInfo:   setControllerInfo,
	abi.EnvGetLogInterface:     getLogInterface,
	abi.EnvGetUsername:         getUsername,
	abi.EnvGetLanguage:         getLanguage,
	abi.EnvSetMessage:          setMessage,
	abi.EnvGetInputBitmasks:    getInputBitmasks,
	abi.EnvSetPerformanceLevel: setPerformanceLevel,
	abi.EnvSetSupportNoGame:    setSupportNoGame,
	abi.EnvShutdown:            shutdown,
}

func setControllerInfo(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	if err := required(data, "controller info"); err != nil {
		return false, err
	}
	ports := readControllers((*abi.ControllerInfo)(data))
	for port, cs := range ports {
		d.subs.SetControllers(port, cs)
	}
	d.log.Debug().Msgf("controller ports: %v", len(ports))
	return true, nil
}

func getLogInterface(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	if err := required(data, "log"); err != nil {
		return false, err
	}
	fn := d.bridge.Log()
	if fn == 0 {
		return false, nil
	}
	(*abi.LogCallback)(data).Log = fn
	return true, nil
}

func getUsername(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	return set(data, "username", d.cstr.Get(d.username))
}

func getLanguage(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	return set(data, "language", d.language)
}

func setMessage(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	if err := required(data, "message"); err != nil {
		return false, err
	}
	m := (*abi.Message)(data)
	msg := abi.GoString(m.Msg)
	d.log.Info().Msgf("core: %v", msg)
	if d.onMessage != nil {
		d.onMessage(msg, m.Frames)
	}
	return true, nil
}

// getInputBitmasks tells that we can return the whole joypad state at once.
func getInputBitmasks(_ *Dispatcher, _ unsafe.Pointer) (bool, error) { return true, nil }

func setPerformanceLevel(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	if err := required(data, "performance level"); err != nil {
		return false, err
	}
	d.log.Debug().Msgf("performance level: %v", *(*uint32)(data))
	return true, nil
}

func setSupportNoGame(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	if err := required(data, "no game"); err != nil {
		return false, err
	}
	d.noGame.Store(*(*bool)(data))
	return true, nil
}

func shutdown(d *Dispatcher, _ unsafe.Pointer) (bool, error) {
	d.log.Info().Msg("core requested shutdown")
	d.shutdown.Store(true)
	return true, nil
}
