package libretro

import (
	"strings"
	"unsafe"

	"github.com/retrohost/retrohost/pkg/libretro/abi"
)

// a sane limit of option definitions in one call
const maxOptionDefs = 4096

var optionFamily = map[uint32]handler{
	abi.EnvGetCoreOptionsVersion: getCoreOptionsVersion,
	abi.EnvSetCoreOptionsV2:      setCoreOptionsV2,
	abi.EnvSetCoreOptionsV2Intl:  setCoreOptionsV2Intl,
	abi.EnvSetCoreOptionsDisplay: setCoreOptionsDisplay,
	abi.EnvGetVariableUpdate:     getVariableUpdate,
	abi.EnvGetVariable:           getVariable,
	abi.EnvSetVariables:          setVariables,
	abi.EnvSetVariable:           setVariable,
}

func getCoreOptionsVersion(_ *Dispatcher, data unsafe.Pointer) (bool, error) {
	return set(data, "options version", uint32(abi.CoreOptionsVersion))
}

func setCoreOptionsV2(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	if err := required(data, "options v2"); err != nil {
		return false, err
	}
	defs := readOptionsV2((*abi.CoreOptionsV2)(data))
	d.opts.Define(defs)
	d.log.Debug().Msgf("core options: %v", len(defs))
	return true, nil
}

// setCoreOptionsV2Intl uses the US definitions with the local texts on top.
func setCoreOptionsV2Intl(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	if err := required(data, "options v2 intl"); err != nil {
		return false, err
	}
	intl := (*abi.CoreOptionsV2Intl)(data)
	if intl.Us == nil {
		return false, validationErr("no us options")
	}
	defs := readOptionsV2(intl.Us)
	if intl.Local != nil {
		local := make(map[string]OptionDef)
		for _, l := range readOptionsV2(intl.Local) {
			local[l.Key] = l
		}
		for i := range defs {
			if l, ok := local[defs[i].Key]; ok {
				if l.Desc != "" {
					defs[i].Desc = l.Desc
				}
				if l.Info != "" {
					defs[i].Info = l.Info
				}
			}
		}
	}
	d.opts.Define(defs)
	d.log.Debug().Msgf("core options (intl): %v", len(defs))
	return true, nil
}

func setCoreOptionsDisplay(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	if err := required(data, "options display"); err != nil {
		return false, err
	}
	opt := (*abi.CoreOptionDisplay)(data)
	key := abi.GoString(opt.Key)
	if key == "" || len(key) > abi.MaxCoreOptionKeyLen {
		return false, validationErr("bad option key %q", key)
	}
	if !d.opts.SetVisible(key, opt.Visible) {
		d.log.Debug().Msgf("display of unknown option %v", key)
	}
	return true, nil
}

func getVariableUpdate(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	return set(data, "variable update", d.opts.ConsumeUpdated())
}

// getVariable is false for nil or when there is no such option.
func getVariable(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	if data == nil {
		return false, nil
	}
	v := (*abi.Variable)(data)
	key := abi.GoString(v.Key)
	value, ok := d.opts.Get(key)
	if !ok {
		v.Value = nil
		return false, nil
	}
	v.Value = d.cstr.Get(value)
	return true, nil
}

// setVariables takes the old {key, "Desc; a|b|c"} option list.
func setVariables(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	if err := required(data, "variables"); err != nil {
		return false, err
	}
	var defs []OptionDef
	for i := 0; i < maxOptionDefs; i++ {
		v := abi.Index((*abi.Variable)(data), i)
		if v.Key == nil {
			break
		}
		desc, values, _ := strings.Cut(abi.GoString(v.Value), ";")
		def := OptionDef{Key: abi.GoString(v.Key), Desc: strings.TrimSpace(desc), Visible: true}
		for _, val := range strings.Split(strings.TrimSpace(values), "|") {
			if val != "" {
				def.Values = append(def.Values, val)
			}
		}
		defs = append(defs, def)
	}
	d.opts.Define(defs)
	d.log.Debug().Msgf("core variables: %v", len(defs))
	return true, nil
}

// setVariable is a core changing its own option,
// nil only checks if it's supported.
func setVariable(d *Dispatcher, data unsafe.Pointer) (bool, error) {
	if data == nil {
		return true, nil
	}
	v := (*abi.Variable)(data)
	if v.Key == nil || v.Value == nil {
		return false, nil
	}
	if err := d.opts.Set(abi.GoString(v.Key), abi.GoString(v.Value)); err != nil {
		d.log.Warn().Err(err).Msg("core option")
		return false, nil
	}
	return true, nil
}

func readOptionsV2(opts *abi.CoreOptionsV2) []OptionDef {
	if opts == nil || opts.Definitions == nil {
		return nil
	}
	categories := make(map[string]string)
	for i := 0; opts.Categories != nil && i < maxOptionDefs; i++ {
		c := abi.Index(opts.Categories, i)
		if c.Key == nil {
			break
		}
		categories[abi.GoString(c.Key)] = abi.GoString(c.Desc)
	}

	var defs []OptionDef
	for i := 0; i < maxOptionDefs; i++ {
		o := abi.Index(opts.Definitions, i)
		if o.Key == nil {
			break
		}
		def := OptionDef{
			Key:      abi.GoString(o.Key),
			Desc:     abi.GoString(o.Desc),
			Info:     abi.GoString(o.Info),
			Category: categories[abi.GoString(o.CategoryKey)],
			Default:  abi.GoString(o.DefaultValue),
			Visible:  true,
		}
		for j := range o.Values {
			if o.Values[j].Value == nil {
				break
			}
			def.Values = append(def.Values, abi.GoString(o.Values[j].Value))
		}
		defs = append(defs, def)
	}
	return defs
}
