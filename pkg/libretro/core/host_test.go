package core_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/retrohost/retrohost/pkg/libretro"
	"github.com/retrohost/retrohost/pkg/libretro/core"
	"github.com/retrohost/retrohost/pkg/libretro/core/coretest"
	"github.com/retrohost/retrohost/pkg/logger"
)

type testRun struct {
	host   *core.Host
	plugin *coretest.Fake
	rom    string
	dir    string
}

func newHost(t *testing.T, plugin *coretest.Fake, opts ...core.Option) testRun {
	t.Helper()
	dir := t.TempDir()
	paths, err := libretro.NewPathSet(filepath.Join(dir, "system"), filepath.Join(dir, "saves"), filepath.Join(dir, "assets"))
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	rom := filepath.Join(dir, "Super Mario Bros.nes")
	if err := os.WriteFile(rom, bytes.Repeat([]byte{0x4e}, 40976), 0644); err != nil {
		t.Fatalf("rom: %v", err)
	}
	opts = append([]core.Option{core.WithLogger(logger.Nop())}, opts...)
	host, err := core.New(plugin, paths, opts...)
	if err != nil {
		t.Fatalf("new host: %v", err)
	}
	t.Cleanup(func() { _ = host.Deinit() })
	return testRun{host: host, plugin: plugin, rom: rom, dir: dir}
}

func TestLoadWithoutContent(t *testing.T) {
	r := newHost(t, coretest.NES())
	if err := r.host.LoadGame(""); !errors.Is(err, libretro.ErrValidation) {
		t.Errorf("a core with games needs one: %v", err)
	}

	plugin := coretest.NES()
	plugin.NoGame = true
	r = newHost(t, plugin)
	if err := r.host.LoadGame(""); err != nil {
		t.Fatalf("load without content: %v", err)
	}
	if r.host.State() != core.GameLoaded || r.host.RomName() != "FakeNES" {
		t.Errorf("wrong state %v, rom %v", r.host.State(), r.host.RomName())
	}
	if g := plugin.Game(); g.Path != "" || g.Data != nil {
		t.Errorf("the core should get no content, %+v", g)
	}
	if err := r.host.Run(); err != nil {
		t.Errorf("run: %v", err)
	}
	if _, err := r.host.SaveState(1); err != nil {
		t.Errorf("save: %v", err)
	}
}

func TestStateMachine(t *testing.T) {
	r := newHost(t, coretest.NES())
	h := r.host

	if h.State() != core.Initialized {
		t.Fatalf("should be initialized, have %v", h.State())
	}
	if err := h.Init(); !errors.Is(err, libretro.ErrLifecycle) {
		t.Errorf("second init: %v", err)
	}

	notLoaded := map[string]func() error{
		"run":   h.Run,
		"reset": h.Reset,
		"save":  func() error { _, err := h.SaveState(0); return err },
		"load":  func() error { _, err := h.LoadState(0); return err },
	}
	for name, call := range notLoaded {
		if err := call(); !errors.Is(err, libretro.ErrLifecycle) {
			t.Errorf("%v without a game: %v", name, err)
		}
	}

	if err := h.UnloadGame(); err != nil {
		t.Errorf("unload without a game is no-op: %v", err)
	}
	if err := h.LoadGame(r.rom); err != nil {
		t.Fatalf("load game: %v", err)
	}
	if h.State() != core.GameLoaded {
		t.Errorf("should be loaded, have %v", h.State())
	}
	if err := h.LoadGame(r.rom); !errors.Is(err, libretro.ErrLifecycle) {
		t.Errorf("second load: %v", err)
	}
	for name, call := range notLoaded {
		if name == "load" {
			continue
		}
		if err := call(); err != nil {
			t.Errorf("%v with a game: %v", name, err)
		}
	}

	if err := h.UnloadGame(); err != nil {
		t.Errorf("unload: %v", err)
	}
	if err := h.UnloadGame(); err != nil {
		t.Errorf("second unload: %v", err)
	}
	if h.State() != core.Initialized {
		t.Errorf("should be back to initialized, have %v", h.State())
	}

	if err := h.Deinit(); err != nil {
		t.Errorf("deinit: %v", err)
	}
	if err := h.Deinit(); err != nil {
		t.Errorf("second deinit: %v", err)
	}
	if h.State() != core.Terminated {
		t.Errorf("should be terminated, have %v", h.State())
	}
	if err := h.LoadGame(r.rom); !errors.Is(err, libretro.ErrLifecycle) {
		t.Errorf("load after deinit: %v", err)
	}

	want := []string{"bind", "init", "load", "reset", "unload", "deinit", "close"}
	if calls := r.plugin.Calls(); !slices.Equal(calls, want) {
		t.Errorf("wrong core calls %v, want %v", calls, want)
	}
}

func TestAvInfoAfterLoad(t *testing.T) {
	r := newHost(t, coretest.NES())
	if err := r.host.LoadGame(r.rom); err != nil {
		t.Fatalf("load game: %v", err)
	}
	av := r.host.AvInfo()

	g := av.Geometry()
	if g.BaseWidth != 256 || g.BaseHeight != 240 || g.MaxWidth != 602 || g.MaxHeight != 240 {
		t.Errorf("wrong geometry %v", g)
	}
	timing := av.Timing()
	if math.Abs(timing.Fps-60.0998) > 1e-4 {
		t.Errorf("wrong fps %v", timing.Fps)
	}
	if timing.SampleRate != 48000 {
		t.Errorf("wrong sample rate %v", timing.SampleRate)
	}
	if pf := av.PixelFormat(); pf != libretro.PixelFormatXRGB8888 {
		t.Errorf("wrong pixel format %v", pf)
	}
	if len(r.plugin.Unhandled) > 0 {
		t.Errorf("refused env calls %v", r.plugin.Unhandled)
	}
	if name := r.host.RomName(); name != "Super Mario Bros" {
		t.Errorf("wrong rom name %v", name)
	}
	if len(r.plugin.Game().Data) != 40976 {
		t.Errorf("the core should get the ROM data")
	}
}

func TestLoadGameChecks(t *testing.T) {
	r := newHost(t, coretest.NES())
	h := r.host

	wrongExt := filepath.Join(r.dir, "game.gba")
	_ = os.WriteFile(wrongExt, []byte{1}, 0644)
	empty := filepath.Join(r.dir, "empty.nes")
	_ = os.WriteFile(empty, nil, 0644)

	tests := []struct {
		path string
		err  error
	}{
		{path: "", err: libretro.ErrValidation},
		{path: r.dir + "/../x.nes", err: libretro.ErrValidation},
		{path: wrongExt, err: libretro.ErrValidation},
		{path: empty, err: libretro.ErrValidation},
		{path: filepath.Join(r.dir, "missing.nes"), err: libretro.ErrResourceUnavailable},
	}
	for _, test := range tests {
		if err := h.LoadGame(test.path); !errors.Is(err, test.err) {
			t.Errorf("%q: want %v, have %v", test.path, test.err, err)
		}
		if h.State() != core.Initialized {
			t.Errorf("%q: state changed to %v", test.path, h.State())
		}
	}
}

func TestLoadGameRejected(t *testing.T) {
	plugin := coretest.NES()
	plugin.RejectGame = true
	r := newHost(t, plugin)
	if err := r.host.LoadGame(r.rom); !errors.Is(err, libretro.ErrPluginRejected) {
		t.Errorf("should be rejected, %v", err)
	}
	if r.host.State() != core.Initialized {
		t.Errorf("wrong state %v", r.host.State())
	}
}

func TestLoadGameBadTiming(t *testing.T) {
	plugin := coretest.NES()
	plugin.Av.Timing.SampleRate = 4000
	r := newHost(t, plugin)
	if err := r.host.LoadGame(r.rom); !errors.Is(err, libretro.ErrValidation) {
		t.Errorf("bad sample rate should fail, %v", err)
	}
	if r.host.State() != core.Initialized {
		t.Errorf("wrong state %v", r.host.State())
	}
	if calls := plugin.Calls(); calls[len(calls)-1] != "unload" {
		t.Errorf("the game should be unloaded, %v", calls)
	}
}

func TestInitFailure(t *testing.T) {
	plugin := coretest.NES()
	plugin.InitErr = errors.New("no bios")
	paths, _ := libretro.NewPathSet(t.TempDir(), t.TempDir(), t.TempDir())
	host, err := core.New(plugin, paths, core.WithLogger(logger.Nop()))
	if host != nil || !errors.Is(err, libretro.ErrPluginRejected) {
		t.Errorf("init failure: %v", err)
	}
	if calls := plugin.Calls(); calls[len(calls)-1] != "close" {
		t.Errorf("the core should be closed, %v", calls)
	}
}

func TestSaveLoadState(t *testing.T) {
	r := newHost(t, coretest.NES())
	h := r.host
	if err := h.LoadGame(r.rom); err != nil {
		t.Fatalf("load game: %v", err)
	}
	for range 10 {
		_ = h.Run()
	}
	saved := bytes.Clone(r.plugin.Memory)

	info, err := h.SaveState(3)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	want := filepath.Join(r.dir, "saves", "FakeNES", "Super Mario Bros", "03.save")
	if info.Path() != want {
		t.Errorf("wrong save path %v", info.Path())
	}

	_ = h.Reset()
	for range 5 {
		_ = h.Run()
	}
	if _, err := h.LoadState(3); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(saved, r.plugin.Memory) {
		t.Errorf("state is not restored")
	}

	if _, err := h.SaveState(100); !errors.Is(err, libretro.ErrValidation) {
		t.Errorf("bad slot: %v", err)
	}
	if _, err := h.LoadState(4); !errors.Is(err, libretro.ErrResourceUnavailable) {
		t.Errorf("empty slot: %v", err)
	}

	r.plugin.RejectUnserialize = true
	if _, err := h.LoadState(3); !errors.Is(err, libretro.ErrPluginRejected) {
		t.Errorf("refused state: %v", err)
	}

	// a core with a smaller state can't take the bigger one
	r.plugin.RejectUnserialize = false
	r.plugin.Memory = r.plugin.Memory[:1024]
	if _, err := h.LoadState(3); !errors.Is(err, libretro.ErrValidation) {
		t.Errorf("bigger state should be rejected: %v", err)
	}
}

func TestBatteryRam(t *testing.T) {
	plugin := coretest.NES()
	r := newHost(t, plugin)
	_ = r.host.LoadGame(r.rom)
	copy(plugin.Ram, "battery")
	if err := r.host.UnloadGame(); err != nil {
		t.Fatalf("unload: %v", err)
	}
	clear(plugin.Ram)
	_ = r.host.LoadGame(r.rom)
	if !bytes.HasPrefix(plugin.Ram, []byte("battery")) {
		t.Errorf("battery ram is not restored")
	}
}

func TestConnectController(t *testing.T) {
	r := newHost(t, coretest.NES())
	if err := r.host.ConnectController(1, 1); err != nil {
		t.Errorf("connect: %v", err)
	}
	if d, ok := r.plugin.Port(1); !ok || d != 1 {
		t.Errorf("port is not set")
	}
	if err := r.host.ConnectController(8, 1); !errors.Is(err, libretro.ErrValidation) {
		t.Errorf("bad port: %v", err)
	}
}

func TestOptions(t *testing.T) {
	file := filepath.Join(t.TempDir(), "FakeNES.opt")
	_ = os.WriteFile(file, []byte(`fake_palette = "gray"`+"\n"), 0644)

	r := newHost(t, coretest.NES(), core.WithOptionsFile(file))
	if v, _ := r.host.Options().Get("fake_palette"); v != "gray" {
		t.Errorf("saved value should win over the default, have %v", v)
	}
	_ = r.host.Options().Set("fake_palette", "vivid")
	if err := r.host.Deinit(); err != nil {
		t.Fatalf("deinit: %v", err)
	}
	data, _ := os.ReadFile(file)
	if !bytes.Contains(data, []byte(`fake_palette = "vivid"`)) {
		t.Errorf("options are not saved: %s", data)
	}

	r = newHost(t, coretest.NES(), core.WithOptionsFile(file), core.WithOptions(map[string]string{"fake_palette": "default"}))
	if v, _ := r.host.Options().Get("fake_palette"); v != "default" {
		t.Errorf("override should win, have %v", v)
	}
}

func TestDeinitCollectsErrors(t *testing.T) {
	plugin := coretest.NES()
	plugin.CloseErr = errors.New("dlclose")
	r := newHost(t, plugin)
	_ = r.host.LoadGame(r.rom)
	err := r.host.Deinit()
	if !errors.Is(err, libretro.ErrResourceUnavailable) {
		t.Errorf("close error is lost: %v", err)
	}
	if r.host.State() != core.Terminated {
		t.Errorf("should be terminated anyway, %v", r.host.State())
	}
}

func TestLoadZippedGame(t *testing.T) {
	r := newHost(t, coretest.NES())
	archive := filepath.Join(r.dir, "Mario.zip")
	writeZip(t, archive, "Mario.nes", bytes.Repeat([]byte{0x4e}, 4096))

	if err := r.host.LoadGame(archive); err != nil {
		t.Fatalf("load zip: %v", err)
	}
	game := r.plugin.Game()
	if filepath.Base(game.Path) != "Mario.nes" || len(game.Data) != 4096 {
		t.Errorf("wrong game %v, %v bytes", game.Path, len(game.Data))
	}
	if r.host.RomName() != "Mario" {
		t.Errorf("wrong rom name %v", r.host.RomName())
	}
	if err := r.host.UnloadGame(); err != nil {
		t.Fatalf("unload: %v", err)
	}
	if _, err := os.Stat(game.Path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("extracted rom should be removed, %v", err)
	}

	plugin := coretest.NES()
	plugin.Info.BlockExtract = true
	blocked := newHost(t, plugin)
	if err := blocked.host.LoadGame(archive); !errors.Is(err, libretro.ErrValidation) {
		t.Errorf("core without extraction should get the zip as is: %v", err)
	}

	empty := filepath.Join(r.dir, "Empty.zip")
	writeZip(t, empty, "readme.txt", []byte("hi"))
	if err := r.host.LoadGame(empty); !errors.Is(err, libretro.ErrResourceUnavailable) {
		t.Errorf("zip without roms: %v", err)
	}
}

func writeZip(t *testing.T, path, name string, data []byte) {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = f.Write(data); err != nil {
		t.Fatal(err)
	}
	if err = w.Close(); err != nil {
		t.Fatal(err)
	}
	if err = os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}
