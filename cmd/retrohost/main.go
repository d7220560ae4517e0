package main

import (
	"context"
	"fmt"
	"io"
	stdos "os"
	"time"

	"github.com/goccy/go-json"
	"github.com/retrohost/retrohost/pkg/cloud"
	"github.com/retrohost/retrohost/pkg/config"
	"github.com/retrohost/retrohost/pkg/frontend"
	"github.com/retrohost/retrohost/pkg/libretro"
	"github.com/retrohost/retrohost/pkg/libretro/core"
	"github.com/retrohost/retrohost/pkg/libretro/nanoarch"
	"github.com/retrohost/retrohost/pkg/logger"
	"github.com/retrohost/retrohost/pkg/media"
	"github.com/retrohost/retrohost/pkg/media/speex"
	"github.com/retrohost/retrohost/pkg/monitoring"
	"github.com/retrohost/retrohost/pkg/os"
	"github.com/retrohost/retrohost/pkg/service"
	"github.com/retrohost/retrohost/pkg/thread"
	flag "github.com/spf13/pflag"
)

var Version = "?"

type flags struct {
	conf   string
	core   string
	rom    string
	debug  bool
	frames int
	dumpAv bool
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("retrohost", flag.ContinueOnError)
	fs.StringVarP(&f.conf, "conf", "c", "", "the folder of config.yaml")
	fs.StringVar(&f.core, "core", "", "the core library, overrides the config")
	fs.StringVar(&f.rom, "rom", "", "the game, overrides the config")
	fs.BoolVarP(&f.debug, "debug", "d", false, "debug logs")
	fs.IntVarP(&f.frames, "frames", "n", 0, "run so many frames and quit, 0 runs until stopped")
	fs.BoolVar(&f.dumpAv, "dump-av", false, "print the core info after the game is loaded and quit")
	err := fs.Parse(args)
	return f, err
}

func loadConfig(f flags) (config.Config, error) {
	var conf config.Config
	if err := config.LoadConfig(&conf, f.conf); err != nil {
		return conf, err
	}
	if f.core != "" {
		conf.Library.Core = f.core
	}
	if f.rom != "" {
		conf.Library.Rom = f.rom
	}
	if f.debug {
		conf.Debug = true
	}
	return conf, conf.Validate()
}

func resampler(conf config.Audio) (media.DSPFactory, error) {
	switch conf.Resampler {
	case "", "speex":
		return speex.Factory(conf.Quality), nil
	case "linear":
		return media.NewLinear, nil
	}
	return nil, fmt.Errorf("%w: unknown resampler %q", libretro.ErrValidation, conf.Resampler)
}

type dump struct {
	System  core.SystemInfo
	Av      libretro.AvSnapshot
	Options map[string]string
	Defs    []libretro.OptionDef `json:"Definitions"`
}

func dumpAv(w io.Writer, h *core.Host) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(dump{
		System:  h.SystemInfo(),
		Av:      h.AvInfo().Snapshot(),
		Options: h.Options().Snapshot(),
		Defs:    h.Options().Definitions(),
	})
}

func run(f flags, conf config.Config, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-os.ExpectTermination()
		log.Info().Msg("Stopping")
		cancel()
	}()

	mon := monitoring.New(conf.Monitoring, log)
	services := service.Group{}
	services.Add(mon)
	services.Start()
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := services.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("service shutdown errors")
		}
	}()

	dsp, err := resampler(conf.Emulator.Audio)
	if err != nil {
		return err
	}
	store, err := cloud.Store(ctx, conf.Storage, log)
	if err != nil {
		return err
	}
	plugin, err := nanoarch.Open(conf.Library.Core, log)
	if err != nil {
		return err
	}
	s, err := frontend.NewSession(conf, plugin,
		frontend.WithLogger(log),
		frontend.WithMetrics(mon.Metrics()),
		frontend.WithStorage(store),
		frontend.WithDSP(dsp),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Error().Err(err).Msg("session close")
		}
	}()

	if err = s.LoadGame(ctx, conf.Library.Rom); err != nil {
		return err
	}
	if f.dumpAv {
		return dumpAv(stdos.Stdout, s.Host())
	}
	return s.Run(ctx, f.frames)
}

func main() {
	f, err := parseFlags(stdos.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	conf, err := loadConfig(f)
	log := logger.NewConsole(conf.Debug, "rh", false)
	if err != nil {
		log.Error().Err(err).Msg("config")
		os.Exit(1)
	}
	log.Info().Msgf("version %s", Version)
	log.Debug().Msgf("config: %+v", conf)

	code := 0
	thread.MainWrapMaybe(func() {
		if err := run(f, conf, log); err != nil {
			log.Error().Err(err).Msg("retrohost")
			code = 1
		}
	})
	os.Exit(code)
}
