package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/retrohost/retrohost/pkg/config"
	"github.com/retrohost/retrohost/pkg/libretro"
	"github.com/retrohost/retrohost/pkg/libretro/core"
	"github.com/retrohost/retrohost/pkg/libretro/core/coretest"
	"github.com/retrohost/retrohost/pkg/logger"
	"github.com/retrohost/retrohost/pkg/media/speex"
)

func TestParseFlags(t *testing.T) {
	f, err := parseFlags([]string{"-c", "conf", "--rom", "game.nes", "-n", "60", "--dump-av"})
	if err != nil {
		t.Fatalf("flags: %v", err)
	}
	if f.conf != "conf" || f.rom != "game.nes" || f.frames != 60 || !f.dumpAv || f.debug {
		t.Errorf("wrong flags %+v", f)
	}
	if _, err := parseFlags([]string{"--nope"}); err == nil {
		t.Errorf("unknown flag should fail")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	yaml := "library:\n  core: cores/fake.so\n  rom: roms/a.nes\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	conf, err := loadConfig(flags{conf: dir, rom: "roms/b.nes", debug: true})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if conf.Library.Core != "cores/fake.so" || conf.Library.Rom != "roms/b.nes" || !conf.Debug {
		t.Errorf("flags should override the file, %+v", conf.Library)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("debug: false\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(flags{conf: dir}); err == nil {
		t.Errorf("no core should fail")
	}
}

func TestResampler(t *testing.T) {
	for _, name := range []string{"", "linear", "speex"} {
		f, err := resampler(config.Audio{Resampler: name, Quality: 5})
		if err != nil || f == nil {
			t.Errorf("%q: %v", name, err)
		}
	}

	for name, speexed := range map[string]bool{"": true, "speex": true, "linear": false} {
		f, _ := resampler(config.Audio{Resampler: name, Quality: 5})
		dsp, err := f(44100, 48000)
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}
		if _, ok := dsp.(*speex.Resampler); ok != speexed {
			t.Errorf("%q: wrong resampler %T", name, dsp)
		}
		_ = dsp.Close()
	}

	if _, err := resampler(config.Audio{Resampler: "sinc"}); !errors.Is(err, libretro.ErrValidation) {
		t.Errorf("unknown resampler: %v", err)
	}
}

func TestDumpAv(t *testing.T) {
	dir := t.TempDir()
	paths, err := libretro.NewPathSet(filepath.Join(dir, "system"), filepath.Join(dir, "saves"), filepath.Join(dir, "assets"))
	if err != nil {
		t.Fatal(err)
	}
	rom := filepath.Join(dir, "game.nes")
	if err := os.WriteFile(rom, make([]byte, 1024), 0644); err != nil {
		t.Fatal(err)
	}
	h, err := core.New(coretest.NES(), paths, core.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = h.Deinit() }()
	if err := h.LoadGame(rom); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := dumpAv(&buf, h); err != nil {
		t.Fatalf("dump: %v", err)
	}
	var out struct {
		System struct{ LibraryName string }
		Av     struct {
			PixelFormat string
			Timing      struct{ Fps float64 }
		}
		Options map[string]string
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("bad json %v: %v", buf.String(), err)
	}
	if out.System.LibraryName != "FakeNES" || out.Av.Timing.Fps != 60.0998 {
		t.Errorf("wrong dump %v", buf.String())
	}
	if !strings.Contains(out.Av.PixelFormat, "8888") {
		t.Errorf("wrong pixel format %v", out.Av.PixelFormat)
	}
	if out.Options["fake_palette"] != "default" {
		t.Errorf("wrong options %v", out.Options)
	}
}
