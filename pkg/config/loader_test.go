package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testYaml = `
library:
  core: cores/nestopia_libretro.so
  rom: roms/game.nes
emulator:
  autosavesec: 30
  options:
    nestopia_blargg_ntsc_filter: disabled
`

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(testYaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RETROHOST_EMULATOR_AUDIO_HZ", "44100")

	var conf Config
	if err := LoadConfig(&conf, dir); err != nil {
		t.Fatalf("load: %v", err)
	}

	if conf.Library.Core != "cores/nestopia_libretro.so" {
		t.Errorf("wrong core %v", conf.Library.Core)
	}
	if conf.Emulator.AutosaveSec != 30 {
		t.Errorf("wrong autosave %v", conf.Emulator.AutosaveSec)
	}
	if conf.Emulator.Options["nestopia_blargg_ntsc_filter"] != "disabled" {
		t.Errorf("wrong options %v", conf.Emulator.Options)
	}
	if conf.Emulator.Audio.Hz != 44100 {
		t.Errorf("env wasn't applied, %v", conf.Emulator.Audio.Hz)
	}
	if conf.Emulator.RateControlDelta != 0.005 {
		t.Errorf("wrong default delta %v", conf.Emulator.RateControlDelta)
	}
	if a := conf.Emulator.Audio; a.Resampler != "speex" || a.Quality != 5 {
		t.Errorf("the default resampler should be speex, %+v", a)
	}
	if conf.Paths.Save != "saves" {
		t.Errorf("wrong default save dir %v", conf.Paths.Save)
	}
	if err := conf.Validate(); err != nil {
		t.Errorf("should be valid, %v", err)
	}
}

func TestOptionsPath(t *testing.T) {
	conf := Config{Paths: Paths{Save: "saves"}}
	if p := conf.OptionsPath("nestopia"); p != filepath.Join("saves", "nestopia", "nestopia.opt") {
		t.Errorf("wrong path %v", p)
	}
	conf.Emulator.OptionsFile = "x.opt"
	if p := conf.OptionsPath("nestopia"); p != "x.opt" {
		t.Errorf("wrong path %v", p)
	}
}
