package libretro

import (
	"errors"
	"unsafe"

	"github.com/retrohost/retrohost/pkg/libretro/abi"
)

var avFamily = map[uint32]handler{
	abi.EnvSetGeometry:          setGeometry,
	abi.EnvSetSystemAvInfo:      setSystemAvInfo,
	abi.EnvSetPixelFormat:       setPixelFormat,
	abi.EnvGetAudioVideoEnable:  getAudioVideoEnable,
	abi.EnvGetPreferredHwRender: getPreferredHwRender,
	abi.EnvSetHwRender:          setHwRender,
	abi.EnvGetPerfInterface:     getPerfInterface,
	abi.EnvGetCanDupe:           getCanDupe,
	abi.EnvSetRotation:          setRotation,
	abi.EnvGetOverscan:          getOverscan,
}

func setGeometry(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	if err := required(data, "geometry"); err != nil {
		return false, err
	}
	g := Geometry(*(*abi.Geometry)(data))
	d.av.UpdateGeometry(g)
	d.log.Debug().Msgf("geometry: %vx%v", g.BaseWidth, g.BaseHeight)
	return true, nil
}

// setSystemAvInfo is false when the new timing was rejected,
// the geometry is applied still.
func setSystemAvInfo(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	if err := required(data, "av info"); err != nil {
		return false, err
	}
	av := *(*abi.SystemAvInfo)(data)
	if err := d.av.SetAvInfo(av); err != nil {
		d.log.Warn().Err(err).Msg("av info")
		return false, nil
	}
	d.log.Debug().Msgf("av info: %v, %.4f fps, %v Hz", d.av.Geometry(), av.Timing.Fps, av.Timing.SampleRate)
	return true, nil
}

func setPixelFormat(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	if err := required(data, "pixel format"); err != nil {
		return false, err
	}
	raw := *(*uint32)(data)
	if !d.av.SetPixelFormat(raw) {
		d.log.Warn().Msgf("unsupported pixel format %v", raw)
		return false, nil
	}
	d.log.Debug().Msgf("pixel format: %v", d.av.PixelFormat())
	return true, nil
}

func getAudioVideoEnable(_ *Dispatcher, data unsafe.Pointer) (bool, error) {
	return set(data, "av enable", int32(abi.AudioVideoEnableVideo|abi.AudioVideoEnableAudio))
}

func getPreferredHwRender(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	return set(data, "preferred hw", uint32(d.av.Graphics().Preferred()))
}

// setHwRender is false for the contexts we can't make.
func setHwRender(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	if err := required(data, "hw render"); err != nil {
		return false, err
	}
	cb := (*abi.HwRenderCallback)(data)
	if err := d.av.Graphics().Negotiate(cb); err != nil {
		if errors.Is(err, ErrUnsupported) {
			d.log.Warn().Err(err).Msg("hw render")
			return false, nil
		}
		return false, err
	}
	d.bridge.HwRender(cb)
	d.log.Info().Msgf("hw render: %v", d.av.Graphics().Config())
	return true, nil
}

func getPerfInterface(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	if err := required(data, "perf"); err != nil {
		return false, err
	}
	perf := d.bridge.Perf()
	if perf == nil {
		return false, nil
	}
	*(*abi.PerfCallback)(data) = *perf
	return true, nil
}

func getCanDupe(_ *Dispatcher, data unsafe.Pointer) (bool, error) { return set(data, "can dupe", true) }

func getOverscan(_ *Dispatcher, data unsafe.Pointer) (bool, error) { return set(data, "overscan", false) }

func setRotation(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	if err := required(data, "rotation"); err != nil {
		return false, err
	}
	d.av.SetRotation(*(*uint32)(data) * 90)
	return true, nil
}
